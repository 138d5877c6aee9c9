package scoring

import (
	"fmt"
	"slices"
	"strings"
)

// WorldRegion is the catch-all region code. Scoring treats it as
// DefaultRegionCode.
const (
	WorldRegion       = "world"
	DefaultRegionCode = "mx"
)

// Region is a home region with the country keywords used to judge locality
// and transport distance.
type Region struct {
	Code        string   `yaml:"code" json:"code"`
	Name        string   `yaml:"name" json:"name"`
	Aliases     []string `yaml:"aliases" json:"aliases,omitempty"`
	Neighbors   []string `yaml:"neighbors" json:"-"`
	Continental []string `yaml:"continental" json:"-"`
	Distant     []string `yaml:"distant" json:"-"`
}

// Transport tier adjustments to the carbon score.
const (
	transportLocal       = 15
	transportNeighbor    = 5
	transportContinental = 0
	transportDistant     = -5
	transportElsewhere   = -10
)

func defaultRegions() []Region {
	return []Region{
		{
			Code:        "mx",
			Name:        "Mexico",
			Aliases:     []string{"mexico", "méxico"},
			Neighbors:   []string{"usa", "united states", "canada"},
			Continental: []string{"spain", "france", "germany"},
			Distant:     []string{"china", "brazil"},
		},
		{
			Code:        "au",
			Name:        "Australia",
			Aliases:     []string{"australia"},
			Neighbors:   []string{"new zealand"},
			Continental: []string{"indonesia", "singapore", "malaysia"},
			Distant:     []string{"china", "united states", "india"},
		},
		{
			Code:        "br",
			Name:        "Brazil",
			Aliases:     []string{"brazil", "brasil"},
			Neighbors:   []string{"argentina", "uruguay", "paraguay"},
			Continental: []string{"chile", "colombia", "peru", "mexico"},
			Distant:     []string{"china", "united states", "india"},
		},
		{
			Code:        "ca",
			Name:        "Canada",
			Aliases:     []string{"canada"},
			Neighbors:   []string{"usa", "united states"},
			Continental: []string{"mexico"},
			Distant:     []string{"china", "india", "brazil"},
		},
		{
			Code:        "fr",
			Name:        "France",
			Aliases:     []string{"france"},
			Neighbors:   []string{"spain", "germany", "belgium", "italy", "switzerland"},
			Continental: []string{"netherlands", "united kingdom", "portugal", "austria"},
			Distant:     []string{"china", "india", "united states", "brazil"},
		},
		{
			Code:        "de",
			Name:        "Germany",
			Aliases:     []string{"germany", "deutschland"},
			Neighbors:   []string{"france", "austria", "netherlands", "poland", "switzerland", "belgium", "denmark"},
			Continental: []string{"italy", "spain", "united kingdom", "czech"},
			Distant:     []string{"china", "india", "united states", "brazil"},
		},
		{
			Code:        "in",
			Name:        "India",
			Aliases:     []string{"india"},
			Neighbors:   []string{"bangladesh", "nepal", "sri lanka"},
			Continental: []string{"china", "thailand", "vietnam"},
			Distant:     []string{"united states", "brazil", "germany"},
		},
		{
			Code:        "it",
			Name:        "Italy",
			Aliases:     []string{"italy", "italia"},
			Neighbors:   []string{"france", "switzerland", "austria", "slovenia"},
			Continental: []string{"germany", "spain", "netherlands", "belgium"},
			Distant:     []string{"china", "india", "united states", "brazil"},
		},
		{
			Code:        "jp",
			Name:        "Japan",
			Aliases:     []string{"japan", "日本"},
			Neighbors:   []string{"south korea", "taiwan"},
			Continental: []string{"china", "thailand", "vietnam"},
			Distant:     []string{"united states", "australia", "brazil"},
		},
		{
			Code:        "es",
			Name:        "Spain",
			Aliases:     []string{"spain", "españa", "espana"},
			Neighbors:   []string{"france", "portugal"},
			Continental: []string{"germany", "italy", "netherlands", "belgium", "united kingdom"},
			Distant:     []string{"china", "india", "united states", "brazil"},
		},
		{
			Code:        "uk",
			Name:        "United Kingdom",
			Aliases:     []string{"united kingdom", "great britain", "england", "scotland", "wales"},
			Neighbors:   []string{"ireland", "france"},
			Continental: []string{"germany", "netherlands", "belgium", "spain", "italy"},
			Distant:     []string{"china", "india", "united states", "brazil"},
		},
		{
			Code:        "us",
			Name:        "United States",
			Aliases:     []string{"united states", "usa"},
			Neighbors:   []string{"canada", "mexico"},
			Continental: []string{"brazil", "argentina", "colombia"},
			Distant:     []string{"china", "india", "vietnam"},
		},
		{
			Code: WorldRegion,
			Name: "World (International)",
		},
	}
}

func compileRegions(in []Region) ([]Region, error) {
	out := make([]Region, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, r := range in {
		code := strings.ToLower(strings.TrimSpace(r.Code))
		if code == "" {
			return nil, fmt.Errorf("region %q: empty code", r.Name)
		}
		if seen[code] {
			return nil, fmt.Errorf("region %q: duplicate code", code)
		}
		seen[code] = true
		out = append(out, Region{
			Code:        code,
			Name:        r.Name,
			Aliases:     lowerAll(r.Aliases),
			Neighbors:   lowerAll(r.Neighbors),
			Continental: lowerAll(r.Continental),
			Distant:     lowerAll(r.Distant),
		})
	}
	if !seen[DefaultRegionCode] {
		return nil, fmt.Errorf("regions: default region %q is not defined", DefaultRegionCode)
	}
	return out, nil
}

// Regions returns the configured regions in display order.
func (t *Tables) Regions() []Region {
	out := make([]Region, len(t.regions))
	for i, r := range t.regions {
		out[i] = r
		out[i].Aliases = slices.Clone(r.Aliases)
		out[i].Neighbors = slices.Clone(r.Neighbors)
		out[i].Continental = slices.Clone(r.Continental)
		out[i].Distant = slices.Clone(r.Distant)
	}
	return out
}

// HasRegion reports whether code names a configured region.
func (t *Tables) HasRegion(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, r := range t.regions {
		if r.Code == code {
			return true
		}
	}
	return false
}

// ResolveRegion returns the region used for scoring. Empty and "world"
// resolve to the default region; unknown codes get a region with no
// transport tiers, so only an exact code match counts as local.
func (t *Tables) ResolveRegion(code string) Region {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == WorldRegion {
		code = DefaultRegionCode
	}
	for _, r := range t.regions {
		if r.Code == code {
			return r
		}
	}
	return Region{Code: code, Name: strings.ToUpper(code)}
}

// mentions reports whether any country token names the region.
func (r Region) mentions(tokens []string) bool {
	for _, tok := range tokens {
		if tok == r.Code || containsAny(tok, r.Aliases) {
			return true
		}
	}
	return false
}

// transportImpact places non-local countries into the region's tiers.
func (r Region) transportImpact(tokens []string) (int, string) {
	switch {
	case anyTokenContains(tokens, r.Neighbors):
		return transportNeighbor, "neighbor"
	case anyTokenContains(tokens, r.Continental):
		return transportContinental, "continental"
	case anyTokenContains(tokens, r.Distant):
		return transportDistant, "distant"
	}
	return transportElsewhere, "elsewhere"
}
