package scoring

import (
	"fmt"
	"regexp"
	"strings"
)

// CarbonFootprint is the emission factor of a product category in kg CO2e.
type CarbonFootprint struct {
	Category string  `yaml:"category"`
	KgCO2e   float64 `yaml:"kg_co2e"`
}

// MaterialScore maps a packaging material keyword to its score and type.
type MaterialScore struct {
	Material string `yaml:"material"`
	Score    int    `yaml:"score"`
	Type     string `yaml:"type"`
}

// TextRule matches a free-text packaging description.
type TextRule struct {
	Pattern string `yaml:"pattern"`
	Score   int    `yaml:"score"`
	Type    string `yaml:"type"`
}

// Archetype infers packaging from product name, brand and category keywords.
type Archetype struct {
	Keywords []string `yaml:"keywords"`
	Score    int      `yaml:"score"`
	Type     string   `yaml:"type"`
}

// CertificationWeight is a recognised label with its ethics weight.
type CertificationWeight struct {
	Key         string `yaml:"key"`
	Weight      int    `yaml:"weight"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// CountryEthics is the ethics score of a producing country.
type CountryEthics struct {
	Country string `yaml:"country"`
	Score   int    `yaml:"score"`
}

// Adjustment is a signed score contribution keyed by a substring.
type Adjustment struct {
	Key   string `yaml:"key"`
	Value int    `yaml:"value"`
}

// ProcessingLevel maps category keywords to a carbon adjustment.
type ProcessingLevel struct {
	Keywords []string `yaml:"keywords"`
	Impact   int      `yaml:"impact"`
}

// DefaultComposition is the material composition assumed for a packaging
// type when no material tags are available.
type DefaultComposition struct {
	Type      string     `yaml:"type"`
	Materials []Material `yaml:"materials"`
}

// TableFile is the editable form of the reference tables. Slices are read in
// declaration order: the first matching entry wins everywhere.
type TableFile struct {
	Carbon              []CarbonFootprint     `yaml:"carbon"`
	Materials           []MaterialScore       `yaml:"materials"`
	TextRules           []TextRule            `yaml:"text_rules"`
	Archetypes          []Archetype           `yaml:"archetypes"`
	Certifications      []CertificationWeight `yaml:"certifications"`
	Countries           []CountryEthics       `yaml:"countries"`
	Ingredients         []Adjustment          `yaml:"ingredients"`
	EthicalBrands       []Adjustment          `yaml:"ethical_brands"`
	UnethicalBrands     []Adjustment          `yaml:"unethical_brands"`
	CarbonLabels        []Adjustment          `yaml:"carbon_labels"`
	Processing          []ProcessingLevel     `yaml:"processing"`
	PackagingCarbon     []Adjustment          `yaml:"packaging_carbon"`
	NutritionGrades     []Adjustment          `yaml:"nutrition_grades"`
	EcoLabels           []string              `yaml:"eco_labels"`
	RecyclableMaterials []string              `yaml:"recyclable_materials"`
	DefaultMaterials    []DefaultComposition  `yaml:"default_materials"`
	Regions             []Region              `yaml:"regions"`
}

type materialEntry struct {
	key   string
	score int
	kind  PackagingType
}

type textEntry struct {
	re    *regexp.Regexp
	score int
	kind  PackagingType
}

type archetypeEntry struct {
	keywords []string
	score    int
	kind     PackagingType
}

// Tables is the compiled, read-only form of a TableFile. A *Tables is safe
// for concurrent use; nothing mutates it after NewTables returns.
type Tables struct {
	carbon              []CarbonFootprint
	materials           []materialEntry
	textRules           []textEntry
	archetypes          []archetypeEntry
	certifications      []CertificationWeight
	countries           []CountryEthics
	ingredients         []Adjustment
	ethicalBrands       []Adjustment
	unethicalBrands     []Adjustment
	carbonLabels        []Adjustment
	processing          []ProcessingLevel
	packagingCarbon     map[PackagingType]int
	nutritionGrades     map[string]int
	ecoLabels           []string
	recyclableMaterials []string
	defaultMaterials    map[PackagingType][]Material
	regions             []Region
}

// NewTables validates and compiles a table file.
func NewTables(f TableFile) (*Tables, error) {
	t := &Tables{
		carbon:              lowerCarbon(f.Carbon),
		certifications:      append([]CertificationWeight(nil), f.Certifications...),
		countries:           append([]CountryEthics(nil), f.Countries...),
		ingredients:         lowerAdjustments(f.Ingredients),
		ethicalBrands:       lowerAdjustments(f.EthicalBrands),
		unethicalBrands:     lowerAdjustments(f.UnethicalBrands),
		carbonLabels:        lowerAdjustments(f.CarbonLabels),
		processing:          append([]ProcessingLevel(nil), f.Processing...),
		packagingCarbon:     make(map[PackagingType]int),
		nutritionGrades:     make(map[string]int),
		ecoLabels:           lowerAll(f.EcoLabels),
		recyclableMaterials: lowerAll(f.RecyclableMaterials),
		defaultMaterials:    make(map[PackagingType][]Material),
	}

	for _, m := range f.Materials {
		kind, ok := ParsePackagingType(m.Type)
		if !ok {
			return nil, fmt.Errorf("material %q: unknown packaging type %q", m.Material, m.Type)
		}
		t.materials = append(t.materials, materialEntry{key: strings.ToLower(m.Material), score: m.Score, kind: kind})
	}

	for _, r := range f.TextRules {
		kind, ok := ParsePackagingType(r.Type)
		if !ok {
			return nil, fmt.Errorf("text rule %q: unknown packaging type %q", r.Pattern, r.Type)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("text rule %q: %w", r.Pattern, err)
		}
		t.textRules = append(t.textRules, textEntry{re: re, score: r.Score, kind: kind})
	}

	for _, a := range f.Archetypes {
		kind, ok := ParsePackagingType(a.Type)
		if !ok {
			return nil, fmt.Errorf("archetype %v: unknown packaging type %q", a.Keywords, a.Type)
		}
		t.archetypes = append(t.archetypes, archetypeEntry{keywords: lowerAll(a.Keywords), score: a.Score, kind: kind})
	}

	for i, c := range t.certifications {
		t.certifications[i].Key = strings.ToLower(c.Key)
	}
	for i, c := range t.countries {
		t.countries[i].Country = strings.ToLower(c.Country)
	}
	for i, p := range t.processing {
		t.processing[i].Keywords = lowerAll(p.Keywords)
	}

	for _, a := range f.PackagingCarbon {
		kind, ok := ParsePackagingType(a.Key)
		if !ok {
			return nil, fmt.Errorf("packaging carbon: unknown packaging type %q", a.Key)
		}
		t.packagingCarbon[kind] = a.Value
	}
	for _, a := range f.NutritionGrades {
		t.nutritionGrades[strings.ToLower(a.Key)] = a.Value
	}

	for _, d := range f.DefaultMaterials {
		kind, ok := ParsePackagingType(d.Type)
		if !ok {
			return nil, fmt.Errorf("default materials: unknown packaging type %q", d.Type)
		}
		if len(d.Materials) == 0 {
			return nil, fmt.Errorf("default materials for %s: empty composition", kind)
		}
		t.defaultMaterials[kind] = append([]Material(nil), d.Materials...)
	}
	for _, kind := range PackagingTypes {
		if _, ok := t.defaultMaterials[kind]; !ok {
			return nil, fmt.Errorf("default materials: missing composition for %s", kind)
		}
	}

	regions, err := compileRegions(f.Regions)
	if err != nil {
		return nil, err
	}
	t.regions = regions

	return t, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

func lowerAdjustments(in []Adjustment) []Adjustment {
	out := make([]Adjustment, 0, len(in))
	for _, a := range in {
		out = append(out, Adjustment{Key: strings.ToLower(a.Key), Value: a.Value})
	}
	return out
}

func lowerCarbon(in []CarbonFootprint) []CarbonFootprint {
	out := make([]CarbonFootprint, 0, len(in))
	for _, c := range in {
		out = append(out, CarbonFootprint{Category: strings.ToLower(c.Category), KgCO2e: c.KgCO2e})
	}
	return out
}

var defaultTables = mustTables(DefaultTableFile())

func mustTables(f TableFile) *Tables {
	t, err := NewTables(f)
	if err != nil {
		panic(fmt.Sprintf("scoring: invalid built-in tables: %v", err))
	}
	return t
}

// DefaultTables returns the built-in reference tables.
func DefaultTables() *Tables {
	return defaultTables
}

// DefaultTableFile returns a fresh copy of the built-in table definitions.
func DefaultTableFile() TableFile {
	return TableFile{
		Carbon: []CarbonFootprint{
			{"beef", 27.0}, {"lamb", 24.0}, {"cheese", 13.5}, {"pork", 12.1},
			{"poultry", 6.9}, {"fish", 6.1}, {"eggs", 4.8}, {"dairy", 3.2},
			{"butter", 9.0}, {"vegetables", 0.5}, {"fruits", 0.5}, {"legumes", 0.9},
			{"grains", 1.5}, {"bread", 1.4}, {"processed", 2.5}, {"snacks", 3.2},
			{"chocolate", 19.0}, {"coffee", 17.0}, {"sugarcane", 1.2}, {"water", 0.3},
			{"soda", 0.8}, {"juice", 1.2}, {"beer", 1.0}, {"wine", 1.8},
		},
		Materials: []MaterialScore{
			{"glass", 90, "reusable"},
			{"aluminum", 85, "recyclable"},
			{"metal", 85, "recyclable"},
			{"paper", 80, "recyclable"},
			{"cardboard", 80, "recyclable"},
			{"pet", 70, "recyclable"},
			{"hdpe", 65, "recyclable"},
			{"pp", 60, "recyclable"},
			{"ps", 40, "non-recyclable"},
			{"pvc", 20, "non-recyclable"},
			{"mixed", 50, "mixed"},
			{"compostable", 85, "compostable"},
			{"biodegradable", 75, "compostable"},
		},
		// First match wins. Negated and plastic-specific rules sit above the
		// bare "recyclable" rule, which would otherwise shadow them.
		TextRules: []TextRule{
			{`100% recyclable|fully recyclable`, 85, "recyclable"},
			{`non-recyclable|not recyclable`, 30, "non-recyclable"},
			{`plastic.*recyclable`, 65, "recyclable"},
			{`recyclable`, 75, "recyclable"},
			{`compostable|biodegradable`, 80, "compostable"},
			{`reusable|refillable|returnable`, 90, "reusable"},
			{`glass|bottle made of glass`, 88, "reusable"},
			{`aluminum|aluminium|tin can`, 82, "recyclable"},
			{`tetra pak|carton`, 70, "mixed"},
			{`mixed materials|multi-material`, 50, "mixed"},
			{`plastic.*film|plastic.*bag`, 25, "non-recyclable"},
		},
		Archetypes: []Archetype{
			{[]string{"maruchan", "cup noodle", "instant soup"}, 20, "non-recyclable"},
			{[]string{"sabritas", "doritos", "cheetos", "ruffles", "chips"}, 15, "non-recyclable"},
			{[]string{"coca-cola", "pepsi", "soda can", "beer can"}, 85, "recyclable"},
			{[]string{"glass bottle", "beer bottle", "wine bottle"}, 90, "reusable"},
			{[]string{"water bottle", "pet bottle"}, 70, "recyclable"},
			{[]string{"milk carton", "juice carton", "tetra pak"}, 65, "mixed"},
			{[]string{"yogurt", "yoghurt"}, 40, "mixed"},
			{[]string{"cereal box"}, 60, "recyclable"},
			{[]string{"cookies", "chocolate bar", "candy"}, 30, "non-recyclable"},
		},
		Certifications: []CertificationWeight{
			{"organic", 20, "Organic", "No pesticides, sustainable farming"},
			{"fair-trade", 18, "Fair Trade", "Fair wages, ethical sourcing"},
			{"rainforest-alliance", 15, "Rainforest Alliance", "Biodiversity protection"},
			{"carbon-neutral", 15, "Carbon Neutral", "Net-zero carbon emissions"},
			{"b-corp", 12, "B Corp", "Social and environmental performance"},
			{"vegan", 10, "Vegan", "No animal products"},
			{"non-gmo", 8, "Non-GMO", "No genetically modified organisms"},
			{"gluten-free", 5, "Gluten Free", "Suitable for celiacs"},
			{"halal", 3, "Halal", "Prepared according to Islamic law"},
			{"kosher", 3, "Kosher", "Prepared according to Jewish law"},
			{LocalCertificationID, 0, "Local Product", "Produced locally, reducing transportation emissions"},
		},
		Countries: []CountryEthics{
			{"switzerland", 90}, {"norway", 88}, {"denmark", 87}, {"sweden", 86},
			{"finland", 85}, {"germany", 82}, {"netherlands", 80}, {"austria", 78},
			{"belgium", 77}, {"canada", 75}, {"australia", 74}, {"new zealand", 73},
			{"united kingdom", 72}, {"france", 70}, {"mexico", 60}, {"united states", 65},
			{"spain", 68}, {"italy", 67}, {"japan", 75}, {"south korea", 70},
		},
		Ingredients: []Adjustment{
			{"palm oil", -15}, {"high fructose corn syrup", -10}, {"artificial colors", -8},
			{"artificial flavors", -6}, {"preservatives", -5}, {"trans fats", -12},
			{"monosodium glutamate", -4},
		},
		EthicalBrands: []Adjustment{
			{"patagonia", 10}, {"ben & jerry", 8}, {"seventh generation", 9},
			{"tom's", 7}, {"the body shop", 6},
		},
		UnethicalBrands: []Adjustment{
			{"nestlé", -10}, {"coca-cola", -8}, {"pepsi", -7},
			{"monsanto", -15}, {"philip morris", -12},
		},
		CarbonLabels: []Adjustment{
			{"carbon-neutral", 15}, {"climate-neutral", 10}, {"renewable-energy", 8},
		},
		Processing: []ProcessingLevel{
			{[]string{"fresh", "raw"}, 10},
			{[]string{"frozen"}, 0},
			{[]string{"canned"}, -5},
			{[]string{"processed", "ultra-processed"}, -10},
		},
		PackagingCarbon: []Adjustment{
			{"reusable", 10}, {"compostable", 8}, {"recyclable", 5},
			{"mixed", -5}, {"non-recyclable", -10},
		},
		NutritionGrades: []Adjustment{
			{"a", 8}, {"b", 4}, {"c", 0}, {"d", -4}, {"e", -8},
		},
		EcoLabels: []string{
			"organic", "fair-trade", "rainforest-alliance", "carbon-neutral", "vegan", "cruelty-free",
		},
		RecyclableMaterials: []string{
			"glass", "aluminum", "metal", "paper", "cardboard", "pet", "hdpe", "pp",
		},
		DefaultMaterials: []DefaultComposition{
			{"reusable", []Material{{"Glass", 100, true}}},
			{"recyclable", []Material{{"PET Plastic", 60, true}, {"Aluminum", 30, true}, {"Paper", 10, true}}},
			{"compostable", []Material{{"Plant-based Materials", 100, false}}},
			{"mixed", []Material{{"Mixed Plastics", 50, false}, {"Cardboard", 30, true}, {"Aluminum Foil", 20, false}}},
			{"non-recyclable", []Material{{"Multi-layer Plastic", 100, false}}},
		},
		Regions: defaultRegions(),
	}
}
