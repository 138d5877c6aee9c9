package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEthicsScore(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		name     string
		factors  EthicsFactors
		expected int
	}{
		{
			name: "certified swiss ethical brand with flagged ingredients",
			factors: EthicsFactors{
				Labels:      []string{"en:fair-trade", "en:organic"},
				Countries:   "Switzerland",
				Ingredients: "sugar, palm oil, high fructose corn syrup, preservatives",
				Brand:       "Patagonia Provisions",
			},
			expected: 67, // 50 + 10 + 12 - 15 + 10
		},
		{
			name:     "uncertified unethical brand",
			factors:  EthicsFactors{Brand: "Nestlé"},
			expected: 30,
		},
		{
			name:     "country score is truncated toward zero",
			factors:  EthicsFactors{Labels: []string{"en:organic"}, Countries: "mexico"},
			expected: 58, // 50 + 10 - 2
		},
		{
			name:     "first country in table order wins",
			factors:  EthicsFactors{Countries: "Japan, United States"},
			expected: 40, // united states precedes japan: (65-65)/2
		},
		{
			name:     "partial certification",
			factors:  EthicsFactors{Labels: []string{"en:vegan", "en:vegetarian"}},
			expected: 50,
		},
		{
			name:     "nothing known",
			factors:  EthicsFactors{},
			expected: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tables.EthicsScore(tt.factors).Score)
		})
	}
}

func TestEthicsScore_Terms(t *testing.T) {
	result := DefaultTables().EthicsScore(EthicsFactors{
		Labels:      []string{"en:organic", "en:eu-organic", "en:fair-trade"},
		Ingredients: "Palm Oil, Trans Fats",
		Brand:       "Coca-Cola",
	})

	assert.Equal(t, 10, result.Certifications)
	assert.Equal(t, -15, result.Ingredients)
	assert.Equal(t, []string{"palm oil", "trans fats"}, result.Flagged)
	assert.Equal(t, -8, result.Brand)
	assert.Equal(t, "coca-cola", result.BrandMatch)
	assert.Equal(t, 37, result.Score)
}

func TestEthicsScore_EthicalListCheckedFirst(t *testing.T) {
	tables := DefaultTables()
	value, match := tables.brandTerm("tom's of maine by coca-cola")

	assert.Equal(t, 7, value)
	assert.Equal(t, "tom's", match)
}
