package scoring

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTables reads a YAML table file. Sections present in the file replace
// the built-in section of the same name; absent sections keep the defaults.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	return ParseTables(data)
}

// ParseTables is LoadTables over an in-memory document.
func ParseTables(data []byte) (*Tables, error) {
	var overrides TableFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&overrides); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse tables: %w", err)
	}
	return NewTables(mergeTableFile(DefaultTableFile(), overrides))
}

func mergeTableFile(base, over TableFile) TableFile {
	if over.Carbon != nil {
		base.Carbon = over.Carbon
	}
	if over.Materials != nil {
		base.Materials = over.Materials
	}
	if over.TextRules != nil {
		base.TextRules = over.TextRules
	}
	if over.Archetypes != nil {
		base.Archetypes = over.Archetypes
	}
	if over.Certifications != nil {
		base.Certifications = over.Certifications
	}
	if over.Countries != nil {
		base.Countries = over.Countries
	}
	if over.Ingredients != nil {
		base.Ingredients = over.Ingredients
	}
	if over.EthicalBrands != nil {
		base.EthicalBrands = over.EthicalBrands
	}
	if over.UnethicalBrands != nil {
		base.UnethicalBrands = over.UnethicalBrands
	}
	if over.CarbonLabels != nil {
		base.CarbonLabels = over.CarbonLabels
	}
	if over.Processing != nil {
		base.Processing = over.Processing
	}
	if over.PackagingCarbon != nil {
		base.PackagingCarbon = over.PackagingCarbon
	}
	if over.NutritionGrades != nil {
		base.NutritionGrades = over.NutritionGrades
	}
	if over.EcoLabels != nil {
		base.EcoLabels = over.EcoLabels
	}
	if over.RecyclableMaterials != nil {
		base.RecyclableMaterials = over.RecyclableMaterials
	}
	if over.DefaultMaterials != nil {
		base.DefaultMaterials = over.DefaultMaterials
	}
	if over.Regions != nil {
		base.Regions = over.Regions
	}
	return base
}
