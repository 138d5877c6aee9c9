package history

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/ecoscan/internal/scoring"
)

// Decision is what the user did with a scanned product.
type Decision string

const (
	DecisionPurchased   Decision = "Purchased"
	DecisionAvoided     Decision = "Avoided"
	DecisionAlternative Decision = "Found Alternative"
	DecisionUndecided   Decision = "Undecided"
)

// Decisions lists every decision in display order.
var Decisions = []Decision{
	DecisionPurchased,
	DecisionAvoided,
	DecisionAlternative,
	DecisionUndecided,
}

// Valid reports whether d is one of the four persisted values.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPurchased, DecisionAvoided, DecisionAlternative, DecisionUndecided:
		return true
	}
	return false
}

// GoodChoice reports whether the decision counts as a sustainable choice.
func (d Decision) GoodChoice() bool {
	return d == DecisionAvoided || d == DecisionAlternative
}

// ParseDecision accepts the persisted raw values and short aliases,
// case-insensitively.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "purchased", "purchase", "bought":
		return DecisionPurchased, nil
	case "avoided", "avoid":
		return DecisionAvoided, nil
	case "found alternative", "found-alternative", "found_alternative", "alternative":
		return DecisionAlternative, nil
	case "undecided", "":
		return DecisionUndecided, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// referenceEpoch is the zero point of the scanDate encoding used by the
// existing mobile client.
var referenceEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// ScanTime is a timestamp that encodes in JSON as fractional seconds since
// 2001-01-01T00:00:00Z.
type ScanTime struct {
	time.Time
}

// NewScanTime wraps t, dropping the monotonic reading.
func NewScanTime(t time.Time) ScanTime {
	return ScanTime{Time: t.Round(0).UTC()}
}

// ReferenceSeconds returns the seconds elapsed since the reference epoch.
func (t ScanTime) ReferenceSeconds() float64 {
	return t.Sub(referenceEpoch).Seconds()
}

// ScanTimeFromReference converts reference seconds back to a ScanTime,
// rounded to the microsecond.
func ScanTimeFromReference(seconds float64) ScanTime {
	whole, frac := math.Modf(seconds)
	d := time.Duration(whole)*time.Second + time.Duration(math.Round(frac*1e6))*time.Microsecond
	return ScanTime{Time: referenceEpoch.Add(d)}
}

func (t ScanTime) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, t.ReferenceSeconds(), 'f', -1, 64), nil
}

func (t *ScanTime) UnmarshalJSON(data []byte) error {
	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("scanDate: %w", err)
	}
	*t = ScanTimeFromReference(seconds)
	return nil
}

// ScanHistory is a point-in-time snapshot of a scored product and the
// decision taken on it. Its JSON shape is the durable contract shared with
// the mobile client.
type ScanHistory struct {
	ID             string                  `json:"id"`
	ProductID      string                  `json:"productId"`
	ProductName    string                  `json:"productName"`
	Brand          string                  `json:"brand,omitempty"`
	Category       string                  `json:"category,omitempty"`
	ImageURL       string                  `json:"imageUrl,omitempty"`
	EcoScore       int                     `json:"ecoScore"`
	PackagingScore int                     `json:"packagingScore"`
	CarbonScore    int                     `json:"carbonScore"`
	EthicsScore    int                     `json:"ethicsScore"`
	ScanDate       ScanTime                `json:"scanDate"`
	Decision       Decision                `json:"decision"`
	PackagingType  scoring.PackagingType   `json:"packagingType"`
	Certifications []scoring.Certification `json:"certifications"`
	Materials      []scoring.Material      `json:"materials"`
	IsLocal        bool                    `json:"isLocal"`
}

// Freeze copies every scoring field of p by value into a new snapshot.
// Later changes to p's slices do not reach the snapshot.
func Freeze(p scoring.Product, decision Decision, id string, at time.Time) ScanHistory {
	certifications := make([]scoring.Certification, len(p.Certifications))
	copy(certifications, p.Certifications)
	materials := make([]scoring.Material, len(p.Materials))
	copy(materials, p.Materials)

	return ScanHistory{
		ID:             id,
		ProductID:      p.ID,
		ProductName:    p.Name,
		Brand:          p.Brand,
		Category:       p.Category,
		ImageURL:       p.ImageURL,
		EcoScore:       p.EcoScore,
		PackagingScore: p.PackagingScore,
		CarbonScore:    p.CarbonScore,
		EthicsScore:    p.EthicsScore,
		ScanDate:       NewScanTime(at),
		Decision:       decision,
		PackagingType:  p.PackagingType,
		Certifications: certifications,
		Materials:      materials,
		IsLocal:        p.IsLocal,
	}
}

// Validate checks a snapshot read back from storage or a client.
func (s ScanHistory) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scan history id is empty")
	}
	if !s.Decision.Valid() {
		return fmt.Errorf("scan %s: unknown decision %q", s.ID, s.Decision)
	}
	if !s.PackagingType.Valid() {
		return fmt.Errorf("scan %s: unknown packaging type %q", s.ID, s.PackagingType)
	}
	for _, check := range []struct {
		name  string
		value int
	}{
		{"ecoScore", s.EcoScore},
		{"packagingScore", s.PackagingScore},
		{"carbonScore", s.CarbonScore},
		{"ethicsScore", s.EthicsScore},
	} {
		if check.value < 0 || check.value > 100 {
			return fmt.Errorf("scan %s: %s %d out of range", s.ID, check.name, check.value)
		}
	}
	return nil
}
