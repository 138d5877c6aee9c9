package scoring

import "strings"

const (
	certificationCap    = 20
	certificationOffset = 10
	ingredientFloor     = -15
)

// EthicsFactors are the inputs of the ethics score.
type EthicsFactors struct {
	Labels      []string
	Countries   string
	Ingredients string
	Brand       string
}

// EthicsBreakdown holds the signed terms of an ethics score.
type EthicsBreakdown struct {
	Score          int      `json:"score"`
	Certifications int      `json:"certifications"`
	Country        int      `json:"country"`
	CountryMatch   string   `json:"countryMatch,omitempty"`
	Ingredients    int      `json:"ingredients"`
	Flagged        []string `json:"flagged,omitempty"`
	Brand          int      `json:"brand"`
	BrandMatch     string   `json:"brandMatch,omitempty"`
}

// EthicsScore starts from 50 and adds certification, country, ingredient
// and brand terms.
func (t *Tables) EthicsScore(f EthicsFactors) EthicsBreakdown {
	var b EthicsBreakdown

	b.Certifications = t.certificationTerm(f.Labels)
	b.Country, b.CountryMatch = t.countryTerm(f.Countries)
	b.Ingredients, b.Flagged = t.ingredientTerm(strings.ToLower(f.Ingredients))
	b.Brand, b.BrandMatch = t.brandTerm(strings.ToLower(f.Brand))

	b.Score = clampScore(baseScore + b.Certifications + b.Country + b.Ingredients + b.Brand)
	return b
}

// certificationTerm is -10 with no certifications and at most +10.
func (t *Tables) certificationTerm(labels []string) int {
	total := 0
	for _, label := range labels {
		if c, ok := t.matchCertification(label); ok {
			total += c.Weight
		}
	}
	return min(total, certificationCap) - certificationOffset
}

func (t *Tables) matchCertification(label string) (CertificationWeight, bool) {
	label = strings.ToLower(label)
	for _, c := range t.certifications {
		if c.Key != "" && strings.Contains(label, c.Key) {
			return c, true
		}
	}
	return CertificationWeight{}, false
}

// countryTerm uses the first table country named in the list.
func (t *Tables) countryTerm(countries string) (int, string) {
	tokens := countryTokens(countries)
	if len(tokens) == 0 {
		return 0, ""
	}
	for _, c := range t.countries {
		if anyTokenContains(tokens, []string{c.Country}) {
			return (c.Score - 65) / 2, c.Country
		}
	}
	return 0, ""
}

func (t *Tables) ingredientTerm(ingredients string) (int, []string) {
	if ingredients == "" {
		return 0, nil
	}
	total := 0
	var flagged []string
	for _, p := range t.ingredients {
		if strings.Contains(ingredients, p.Key) {
			total += p.Value
			flagged = append(flagged, p.Key)
		}
	}
	return max(total, ingredientFloor), flagged
}

func (t *Tables) brandTerm(brand string) (int, string) {
	if brand == "" {
		return 0, ""
	}
	if a, ok := firstAdjustment(brand, t.ethicalBrands); ok {
		return a.Value, a.Key
	}
	if a, ok := firstAdjustment(brand, t.unethicalBrands); ok {
		return a.Value, a.Key
	}
	return 0, ""
}
