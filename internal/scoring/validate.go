package scoring

import (
	"errors"
	"fmt"
)

// Validate checks the Product invariants: sub-scores within [0,100], a
// declared packaging type, unique certification ids and a non-empty
// material list.
func (p Product) Validate() error {
	var errs []error
	scores := []struct {
		name  string
		value int
	}{
		{"ecoScore", p.EcoScore},
		{"packagingScore", p.PackagingScore},
		{"carbonScore", p.CarbonScore},
		{"ethicsScore", p.EthicsScore},
	}
	for _, s := range scores {
		if s.value < 0 || s.value > 100 {
			errs = append(errs, fmt.Errorf("%s %d out of range", s.name, s.value))
		}
	}
	if !p.PackagingType.Valid() {
		errs = append(errs, fmt.Errorf("unknown packaging type %q", p.PackagingType))
	}
	seen := make(map[string]bool, len(p.Certifications))
	for _, c := range p.Certifications {
		if seen[c.ID] {
			errs = append(errs, fmt.Errorf("duplicate certification %q", c.ID))
		}
		seen[c.ID] = true
	}
	if len(p.Materials) == 0 {
		errs = append(errs, errors.New("empty material composition"))
	}
	if p.ID == "" {
		errs = append(errs, errors.New("empty id"))
	}
	return errors.Join(errs...)
}
