package scoring

import "strings"

const (
	baseScore               = 50
	unmatchedCategoryImpact = -10
	carbonLabelCap          = 15
)

// CarbonFactors are the inputs of the carbon score.
type CarbonFactors struct {
	Categories string
	Countries  string
	Region     Region
	IsLocal    bool
	Packaging  PackagingType
	Labels     []string
}

// CarbonBreakdown holds the signed terms of a carbon score.
type CarbonBreakdown struct {
	Score          int    `json:"score"`
	Category       int    `json:"category"`
	CategoryMatch  string `json:"categoryMatch,omitempty"`
	Transport      int    `json:"transport"`
	TransportTier  string `json:"transportTier,omitempty"`
	Processing     int    `json:"processing"`
	Packaging      int    `json:"packaging"`
	Certifications int    `json:"certifications"`
}

// CarbonScore starts from 50 and adds category, transport, processing,
// packaging and carbon-label terms.
func (t *Tables) CarbonScore(f CarbonFactors) CarbonBreakdown {
	var b CarbonBreakdown
	categories := strings.ToLower(f.Categories)

	b.Category, b.CategoryMatch = t.categoryImpact(categories)
	b.Transport, b.TransportTier = transportImpact(f.Countries, f.Region, f.IsLocal)
	b.Processing = t.processingImpact(categories)
	b.Packaging = t.packagingCarbon[f.Packaging]
	b.Certifications = t.carbonLabelBonus(f.Labels)

	b.Score = clampScore(baseScore + b.Category + b.Transport + b.Processing + b.Packaging + b.Certifications)
	return b
}

// categoryImpact converts the first matching emission factor to a centred
// score term. Products without categories are not penalised.
func (t *Tables) categoryImpact(categories string) (int, string) {
	if categories == "" {
		return 0, ""
	}
	for _, c := range t.carbon {
		if strings.Contains(categories, c.Category) {
			return int(100-c.KgCO2e*3.33) - 50, c.Category
		}
	}
	return unmatchedCategoryImpact, ""
}

func transportImpact(countries string, region Region, isLocal bool) (int, string) {
	if isLocal {
		return transportLocal, "local"
	}
	tokens := countryTokens(countries)
	if len(tokens) == 0 {
		return 0, ""
	}
	if region.mentions(tokens) {
		return transportLocal, "local"
	}
	return region.transportImpact(tokens)
}

func (t *Tables) processingImpact(categories string) int {
	for _, p := range t.processing {
		if containsAny(categories, p.Keywords) {
			return p.Impact
		}
	}
	return 0
}

func (t *Tables) carbonLabelBonus(labels []string) int {
	total := 0
	for _, l := range t.carbonLabels {
		for _, label := range labels {
			if strings.Contains(strings.ToLower(label), l.Key) {
				total += l.Value
				break
			}
		}
	}
	return min(total, carbonLabelCap)
}
