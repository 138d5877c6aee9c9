package scoring

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LocalCertificationID is the id of the certification added to local products.
const LocalCertificationID = "local"

// ExtractCertifications returns one certification per recognised label,
// deduplicated by id in first-seen order. Local products always carry
// exactly one local certification.
func (t *Tables) ExtractCertifications(labels []string, isLocal bool) []Certification {
	certs := make([]Certification, 0, len(labels)+1)
	seen := make(map[string]bool)
	for _, label := range labels {
		c, ok := t.matchCertification(label)
		if !ok || seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		certs = append(certs, Certification{ID: c.Key, Name: c.Name, Description: c.Description})
	}
	if isLocal && !seen[LocalCertificationID] {
		certs = append(certs, t.localCertification())
	}
	return certs
}

func (t *Tables) localCertification() Certification {
	for _, c := range t.certifications {
		if c.Key == LocalCertificationID {
			return Certification{ID: c.Key, Name: c.Name, Description: c.Description}
		}
	}
	return Certification{
		ID:          LocalCertificationID,
		Name:        "Local Product",
		Description: "Produced locally, reducing transportation emissions",
	}
}

// ExtractMaterials groups material tags by normalized name and reports each
// group's share of the tag count. Without tags the default composition for
// the packaging type is used. The result is sorted by percentage, highest
// first, and never empty.
func (t *Tables) ExtractMaterials(materialTags []string, packaging PackagingType) []Material {
	var names []string
	counts := make(map[string]int)
	total := 0
	for _, tag := range materialTags {
		name := materialName(tag)
		if name == "" {
			continue
		}
		if counts[name] == 0 {
			names = append(names, name)
		}
		counts[name]++
		total++
	}

	var materials []Material
	if total == 0 {
		materials = t.defaultComposition(packaging)
	} else {
		materials = make([]Material, 0, len(names))
		for _, name := range names {
			materials = append(materials, Material{
				Name:         name,
				Percentage:   float64(counts[name]) / float64(total) * 100,
				IsRecyclable: containsAny(strings.ToLower(name), t.recyclableMaterials),
			})
		}
	}

	sort.SliceStable(materials, func(i, j int) bool {
		return materials[i].Percentage > materials[j].Percentage
	})
	return materials
}

func (t *Tables) defaultComposition(packaging PackagingType) []Material {
	if m, ok := t.defaultMaterials[packaging]; ok {
		return append([]Material(nil), m...)
	}
	return append([]Material(nil), t.defaultMaterials[PackagingMixed]...)
}

// materialName turns "en:pet-1-polyethylene-terephthalate" into
// "Pet 1 Polyethylene Terephthalate".
func materialName(tag string) string {
	name := normalizeTag(tag)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return cases.Title(language.Und).String(name)
}
