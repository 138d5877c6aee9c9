package scoring

// PackagingType is the closed classification of a product's packaging.
// Values are the persisted raw strings used by scan history.
type PackagingType string

const (
	PackagingRecyclable    PackagingType = "Recyclable"
	PackagingCompostable   PackagingType = "Compostable"
	PackagingReusable      PackagingType = "Reusable"
	PackagingNonRecyclable PackagingType = "Non-Recyclable"
	PackagingMixed         PackagingType = "Mixed Materials"
)

// PackagingTypes lists every packaging type in declaration order.
var PackagingTypes = []PackagingType{
	PackagingRecyclable,
	PackagingCompostable,
	PackagingReusable,
	PackagingNonRecyclable,
	PackagingMixed,
}

// Valid reports whether t is one of the declared packaging types.
func (t PackagingType) Valid() bool {
	for _, known := range PackagingTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParsePackagingType accepts raw values and the lowercase keys used in
// table files ("recyclable", "non-recyclable", "mixed", ...).
func ParsePackagingType(s string) (PackagingType, bool) {
	switch s {
	case "Recyclable", "recyclable":
		return PackagingRecyclable, true
	case "Compostable", "compostable":
		return PackagingCompostable, true
	case "Reusable", "reusable":
		return PackagingReusable, true
	case "Non-Recyclable", "non-recyclable", "nonRecyclable", "non_recyclable":
		return PackagingNonRecyclable, true
	case "Mixed Materials", "mixed", "mixed-materials", "mixed_materials":
		return PackagingMixed, true
	}
	return "", false
}

// Certification is a normalized label recognised on a product.
type Certification struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Material is one entry of a product's material composition.
type Material struct {
	Name         string  `json:"name" yaml:"name"`
	Percentage   float64 `json:"percentage" yaml:"percentage"`
	IsRecyclable bool    `json:"isRecyclable" yaml:"recyclable"`
}

// Product is the scored product entity. Values are constructed once by
// Tables.Score and not modified afterwards.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Brand          string          `json:"brand,omitempty"`
	Category       string          `json:"category"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	EcoScore       int             `json:"ecoScore"`
	PackagingScore int             `json:"packagingScore"`
	CarbonScore    int             `json:"carbonScore"`
	EthicsScore    int             `json:"ethicsScore"`
	PackagingType  PackagingType   `json:"packagingType"`
	Certifications []Certification `json:"certifications"`
	Materials      []Material      `json:"materials"`
	IsLocal        bool            `json:"isLocal"`
}

// Assessment is a scored product together with the contribution of every
// scoring term.
type Assessment struct {
	Product   Product   `json:"product"`
	Breakdown Breakdown `json:"breakdown"`
}

// Breakdown records the signed terms that produced each sub-score.
type Breakdown struct {
	Region    string             `json:"region"`
	Packaging PackagingBreakdown `json:"packaging"`
	Carbon    CarbonBreakdown    `json:"carbon"`
	Ethics    EthicsBreakdown    `json:"ethics"`
	Eco       EcoBreakdown       `json:"eco"`
}
