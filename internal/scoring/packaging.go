package scoring

import "strings"

// Packaging classification sources, in fallback order.
const (
	SourceMaterials = "materials"
	SourceText      = "text"
	SourceInferred  = "inferred"
)

const (
	neutralPackagingScore = 50
	compositePenalty      = 10
	compositeTypeLimit    = 2
)

// PackagingBreakdown is the packaging classification and how it was reached.
type PackagingBreakdown struct {
	Score         int           `json:"score"`
	Type          PackagingType `json:"type"`
	Source        string        `json:"source"`
	Matched       []string      `json:"matched,omitempty"`
	DistinctTypes int           `json:"distinctTypes,omitempty"`
	Penalty       int           `json:"penalty,omitempty"`
}

// ClassifyPackaging scores packaging from the first available source:
// material tags, then the packaging description, then keywords in the
// product name, brand and categories. Sources are never blended.
func (t *Tables) ClassifyPackaging(materialTags []string, packagingText, productName, brand, categories string) PackagingBreakdown {
	if len(materialTags) > 0 {
		return t.classifyMaterials(materialTags)
	}
	if strings.TrimSpace(packagingText) != "" {
		return t.classifyText(packagingText)
	}
	return t.inferPackaging(productName + " " + brand + " " + categories)
}

func (t *Tables) classifyMaterials(tags []string) PackagingBreakdown {
	result := PackagingBreakdown{Score: neutralPackagingScore, Type: PackagingMixed, Source: SourceMaterials}

	total := 0
	var order []PackagingType
	counts := make(map[PackagingType]int)
	for _, tag := range tags {
		clean := normalizeTag(tag)
		for _, m := range t.materials {
			if !strings.Contains(clean, m.key) {
				continue
			}
			total += m.score
			result.Matched = append(result.Matched, m.key)
			if counts[m.kind] == 0 {
				order = append(order, m.kind)
			}
			counts[m.kind]++
			break
		}
	}
	if len(result.Matched) == 0 {
		return result
	}

	// Ties go to the type encountered first.
	predominant := order[0]
	for _, kind := range order[1:] {
		if counts[kind] > counts[predominant] {
			predominant = kind
		}
	}

	score := total / len(result.Matched)
	result.DistinctTypes = len(order)
	if result.DistinctTypes > compositeTypeLimit {
		result.Penalty = -compositePenalty
		score -= compositePenalty
	}
	result.Score = clampScore(score)
	result.Type = predominant
	return result
}

func (t *Tables) classifyText(text string) PackagingBreakdown {
	for _, rule := range t.textRules {
		if m := rule.re.FindString(text); m != "" {
			return PackagingBreakdown{
				Score:   clampScore(rule.score),
				Type:    rule.kind,
				Source:  SourceText,
				Matched: []string{strings.ToLower(m)},
			}
		}
	}
	return PackagingBreakdown{Score: neutralPackagingScore, Type: PackagingMixed, Source: SourceText}
}

func (t *Tables) inferPackaging(text string) PackagingBreakdown {
	text = strings.ToLower(text)
	for _, a := range t.archetypes {
		for _, kw := range a.keywords {
			if kw != "" && strings.Contains(text, kw) {
				return PackagingBreakdown{
					Score:   clampScore(a.score),
					Type:    a.kind,
					Source:  SourceInferred,
					Matched: []string{kw},
				}
			}
		}
	}
	return PackagingBreakdown{Score: neutralPackagingScore, Type: PackagingMixed, Source: SourceInferred}
}
