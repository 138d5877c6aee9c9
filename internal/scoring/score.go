package scoring

import (
	"fmt"

	"github.com/ZanzyTHEbar/ecoscan/internal/types"
)

// Score builds the scored product for raw as seen from homeRegion.
// Identical arguments always produce an identical Product.
func (t *Tables) Score(raw types.RawProduct, homeRegion string) Product {
	return t.Assess(raw, homeRegion).Product
}

// Assess is Score with the contribution of every term.
func (t *Tables) Assess(raw types.RawProduct, homeRegion string) Assessment {
	return t.AssessInput(Resolve(raw), homeRegion)
}

// AssessInput scores an already resolved product. It panics if the result
// breaks a Product invariant, which only a table or arithmetic bug can cause.
func (t *Tables) AssessInput(in Input, homeRegion string) Assessment {
	region := t.ResolveRegion(homeRegion)
	isLocal := region.IsLocal(in)

	packaging := t.ClassifyPackaging(in.MaterialTags, in.PackagingText, in.Name, in.Brand, in.Categories)
	carbon := t.CarbonScore(CarbonFactors{
		Categories: in.Categories,
		Countries:  in.Countries,
		Region:     region,
		IsLocal:    isLocal,
		Packaging:  packaging.Type,
		Labels:     in.Labels,
	})
	ethics := t.EthicsScore(EthicsFactors{
		Labels:      in.Labels,
		Countries:   in.Countries,
		Ingredients: in.Ingredients,
		Brand:       in.BrandKey,
	})
	eco := t.EcoScore(EcoFactors{
		Authoritative:    in.EcoScore,
		HasAuthoritative: in.HasEcoScore,
		Carbon:           carbon.Score,
		Packaging:        packaging.Score,
		Ethics:           ethics.Score,
		IsLocal:          isLocal,
		NutritionGrade:   in.NutritionGrade,
		Labels:           in.Labels,
	})

	p := Product{
		ID:             in.ID,
		Name:           in.Name,
		Brand:          in.Brand,
		Category:       in.Category,
		ImageURL:       in.ImageURL,
		EcoScore:       eco.Score,
		PackagingScore: packaging.Score,
		CarbonScore:    carbon.Score,
		EthicsScore:    ethics.Score,
		PackagingType:  packaging.Type,
		Certifications: t.ExtractCertifications(in.Labels, isLocal),
		Materials:      t.ExtractMaterials(in.MaterialTags, packaging.Type),
		IsLocal:        isLocal,
	}
	if err := p.Validate(); err != nil {
		panic(fmt.Sprintf("scoring: product %s: %v", p.ID, err))
	}

	return Assessment{
		Product: p,
		Breakdown: Breakdown{
			Region:    region.Code,
			Packaging: packaging,
			Carbon:    carbon,
			Ethics:    ethics,
			Eco:       eco,
		},
	}
}

// IsLocal reports whether the product's countries, manufacturing places or
// origins name the region.
func (r Region) IsLocal(in Input) bool {
	for _, field := range []string{in.Countries, in.ManufacturingPlaces, in.Origins} {
		if r.mentions(countryTokens(field)) {
			return true
		}
	}
	return false
}
