package scoring

// DemoProducts returns the offline seed products keyed by barcode. Each call
// returns fresh values.
func DemoProducts() map[string]Product {
	local := Certification{
		ID:          LocalCertificationID,
		Name:        "Local Product",
		Description: "Produced locally, reducing transportation emissions",
	}
	return map[string]Product{
		"8901234567890": {
			ID:             "8901234567890",
			Name:           "Organic Greek Yogurt",
			Brand:          "Nature's Best",
			Category:       "Dairy",
			EcoScore:       85,
			PackagingScore: 90,
			CarbonScore:    80,
			EthicsScore:    85,
			PackagingType:  PackagingRecyclable,
			Certifications: []Certification{
				{ID: "organic", Name: "USDA Organic", Description: "Certified organic ingredients"},
				{ID: "non-gmo", Name: "Non-GMO", Description: "No genetically modified organisms"},
				local,
			},
			Materials: []Material{{Name: "Glass", Percentage: 100, IsRecyclable: true}},
			IsLocal:   true,
		},
		"7501059200050": {
			ID:             "7501059200050",
			Name:           "Plastic Water Bottle",
			Brand:          "Generic",
			Category:       "Beverages",
			EcoScore:       25,
			PackagingScore: 20,
			CarbonScore:    30,
			EthicsScore:    40,
			PackagingType:  PackagingNonRecyclable,
			Certifications: []Certification{},
			Materials:      []Material{{Name: "PET Plastic", Percentage: 100, IsRecyclable: false}},
		},
		"3017620422003": {
			ID:             "3017620422003",
			Name:           "Nutella",
			Brand:          "Ferrero",
			Category:       "Breakfast Foods",
			ImageURL:       "https://images.openfoodfacts.org/images/products/301/762/042/2003/front_en.631.400.jpg",
			EcoScore:       45,
			PackagingScore: 60,
			CarbonScore:    40,
			EthicsScore:    50,
			PackagingType:  PackagingRecyclable,
			Certifications: []Certification{},
			Materials: []Material{
				{Name: "Glass", Percentage: 85, IsRecyclable: true},
				{Name: "Plastic", Percentage: 15, IsRecyclable: false},
			},
		},
		"1234567890123": {
			ID:             "1234567890123",
			Name:           "Eco-Friendly Detergent",
			Brand:          "Green Clean",
			Category:       "Cleaning",
			EcoScore:       92,
			PackagingScore: 95,
			CarbonScore:    88,
			EthicsScore:    90,
			PackagingType:  PackagingCompostable,
			Certifications: []Certification{
				{ID: "vegan", Name: "Vegan", Description: "No animal products"},
				{ID: "cruelty-free", Name: "Cruelty Free", Description: "Not tested on animals"},
				local,
			},
			Materials: []Material{{Name: "Plant-based Plastic", Percentage: 100, IsRecyclable: true}},
			IsLocal:   true,
		},
	}
}

// DemoProduct returns the seed product for barcode, if any.
func DemoProduct(barcode string) (Product, bool) {
	p, ok := DemoProducts()[barcode]
	return p, ok
}
