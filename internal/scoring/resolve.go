package scoring

import (
	"math"
	"strings"

	"github.com/ZanzyTHEbar/ecoscan/internal/types"
	"github.com/google/uuid"
)

const (
	defaultName     = "Product"
	defaultCategory = "General"
)

// productNamespace seeds the ids generated for products without a barcode.
var productNamespace = uuid.MustParse("6f1d1a7e-2f4b-5c8e-9a3d-0b7c4e2f8a61")

// Input is a raw product with every optional field resolved to its
// default. Matching fields are lowercased; display fields keep their case.
type Input struct {
	ID       string
	Name     string
	Brand    string
	Category string
	ImageURL string

	Categories          string
	BrandKey            string
	Ingredients         string
	PackagingText       string
	MaterialTags        []string
	Labels              []string
	Countries           string
	ManufacturingPlaces string
	Origins             string

	EcoScore       int
	HasEcoScore    bool
	NutritionGrade string
}

// Resolve applies the documented defaults to a raw product.
func Resolve(raw types.RawProduct) Input {
	in := Input{
		Brand:               strings.TrimSpace(raw.Brands),
		Categories:          strings.ToLower(strings.TrimSpace(raw.Categories)),
		Ingredients:         strings.ToLower(strings.TrimSpace(raw.IngredientsText)),
		PackagingText:       strings.TrimSpace(raw.PackagingText),
		MaterialTags:        cleanTags(raw.PackagingMaterialsTags),
		Labels:              resolveLabels(raw),
		Countries:           strings.ToLower(strings.TrimSpace(raw.Countries)),
		ManufacturingPlaces: strings.ToLower(strings.TrimSpace(raw.ManufacturingPlaces)),
		Origins:             strings.ToLower(strings.TrimSpace(raw.Origins)),
		ImageURL:            firstNonEmpty(raw.ImageFrontURL, raw.ImageURL),
	}
	in.BrandKey = strings.ToLower(in.Brand)

	firstCategory := firstListItem(raw.Categories)
	in.Category = firstNonEmpty(firstCategory, defaultCategory)

	in.Name = firstNonEmpty(raw.ProductName, raw.ProductNameEN, raw.GenericName)
	if in.Name == "" {
		switch {
		case in.Brand != "" && firstCategory != "":
			in.Name = in.Brand + " " + firstCategory
		case in.Brand != "":
			in.Name = in.Brand
		case firstCategory != "":
			in.Name = firstCategory
		default:
			in.Name = defaultName
		}
	}

	in.ID = strings.TrimSpace(raw.Code)
	if in.ID == "" {
		key := strings.Join([]string{in.Name, in.Brand, in.Categories}, "\x00")
		in.ID = uuid.NewSHA1(productNamespace, []byte(key)).String()
	}

	if raw.EcoscoreScore != nil && !math.IsNaN(*raw.EcoscoreScore) {
		in.EcoScore = clampScore(int(math.Round(*raw.EcoscoreScore)))
		in.HasEcoScore = true
	}

	grade := strings.ToLower(strings.TrimSpace(raw.NutriscoreGrade))
	if len(grade) == 1 && grade[0] >= 'a' && grade[0] <= 'e' {
		in.NutritionGrade = grade
	}

	return in
}

// resolveLabels prefers the taxonomy tags and falls back to the free-text
// label list ("Organic, Fair trade" -> "organic", "fair-trade").
func resolveLabels(raw types.RawProduct) []string {
	if tags := cleanTags(raw.LabelsTags); len(tags) > 0 {
		return tags
	}
	var out []string
	for _, part := range strings.Split(raw.Labels, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		out = append(out, strings.Join(strings.Fields(part), "-"))
	}
	return out
}

func cleanTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func firstListItem(s string) string {
	first, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(first)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
