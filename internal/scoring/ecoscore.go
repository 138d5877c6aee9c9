package scoring

import "strings"

// Blend weights in percent.
const (
	carbonWeight    = 40
	packagingWeight = 35
	ethicsWeight    = 25

	localBonus    = 5
	ecoLabelBonus = 3
)

// EcoFactors are the inputs of the headline eco-score.
type EcoFactors struct {
	Authoritative    int
	HasAuthoritative bool
	Carbon           int
	Packaging        int
	Ethics           int
	IsLocal          bool
	NutritionGrade   string
	Labels           []string
}

// EcoBreakdown holds the terms of the eco-score.
type EcoBreakdown struct {
	Score         int      `json:"score"`
	Authoritative bool     `json:"authoritative"`
	Blend         int      `json:"blend"`
	Local         int      `json:"local"`
	Nutrition     int      `json:"nutrition"`
	EcoLabels     int      `json:"ecoLabels"`
	MatchedLabels []string `json:"matchedLabels,omitempty"`
}

// EcoScore passes an authoritative score through unchanged. Otherwise it
// blends the sub-scores 40/35/25, truncating, and adds the locality,
// nutrition grade and eco-label bonuses.
func (t *Tables) EcoScore(f EcoFactors) EcoBreakdown {
	if f.HasAuthoritative {
		return EcoBreakdown{Score: clampScore(f.Authoritative), Authoritative: true}
	}

	var b EcoBreakdown
	b.Blend = (f.Carbon*carbonWeight + f.Packaging*packagingWeight + f.Ethics*ethicsWeight) / 100
	if f.IsLocal {
		b.Local = localBonus
	}
	b.Nutrition = t.nutritionGrades[f.NutritionGrade]
	b.MatchedLabels = t.matchEcoLabels(f.Labels)
	b.EcoLabels = len(b.MatchedLabels) * ecoLabelBonus

	b.Score = clampScore(b.Blend + b.Local + b.Nutrition + b.EcoLabels)
	return b
}

// matchEcoLabels returns each eco-label present as an exact tag, in table
// order. Locale-prefixed tags such as "en:organic" do not count.
func (t *Tables) matchEcoLabels(labels []string) []string {
	present := make(map[string]bool, len(labels))
	for _, l := range labels {
		present[strings.ToLower(strings.TrimSpace(l))] = true
	}
	var matched []string
	for _, eco := range t.ecoLabels {
		if present[eco] {
			matched = append(matched, eco)
		}
	}
	return matched
}
