package types

// RawProduct is an unvalidated OpenFoodFacts product record. Every field is
// optional; absent values decode to their zero value.
type RawProduct struct {
	Code                   string   `json:"code,omitempty"`
	ProductName            string   `json:"product_name,omitempty"`
	ProductNameEN          string   `json:"product_name_en,omitempty"`
	GenericName            string   `json:"generic_name,omitempty"`
	Brands                 string   `json:"brands,omitempty"`
	Categories             string   `json:"categories,omitempty"`
	ImageURL               string   `json:"image_url,omitempty"`
	ImageFrontURL          string   `json:"image_front_url,omitempty"`
	ImageSmallURL          string   `json:"image_small_url,omitempty"`
	EcoscoreGrade          string   `json:"ecoscore_grade,omitempty"`
	EcoscoreScore          *float64 `json:"ecoscore_score,omitempty"`
	NutriscoreGrade        string   `json:"nutriscore_grade,omitempty"`
	NutriscoreScore        *float64 `json:"nutriscore_score,omitempty"`
	PackagingMaterialsTags []string `json:"packaging_materials_tags,omitempty"`
	PackagingText          string   `json:"packaging_text,omitempty"`
	IngredientsText        string   `json:"ingredients_text,omitempty"`
	Labels                 string   `json:"labels,omitempty"`
	LabelsTags             []string `json:"labels_tags,omitempty"`
	Countries              string   `json:"countries,omitempty"`
	ManufacturingPlaces    string   `json:"manufacturing_places,omitempty"`
	Origins                string   `json:"origins,omitempty"`
}

// ProductResponse is the OpenFoodFacts v2 product envelope. Status 1 means
// the product exists.
type ProductResponse struct {
	Code          string      `json:"code"`
	Status        int         `json:"status"`
	StatusVerbose string      `json:"status_verbose,omitempty"`
	Product       *RawProduct `json:"product,omitempty"`
}

// ScoreRequest is the body of POST /api/v1/score.
type ScoreRequest struct {
	Product RawProduct `json:"product"`
	Region  string     `json:"region"`
	Explain bool       `json:"explain"`
}

// ScanRequest records a decision about a barcode.
type ScanRequest struct {
	Barcode  string `json:"barcode" binding:"required"`
	Region   string `json:"region"`
	Decision string `json:"decision" binding:"required"`
}
