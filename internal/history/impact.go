package history

import "math"

// ImpactMetrics accumulates the estimated environmental effect of a user's
// decisions.
type ImpactMetrics struct {
	CO2Saved      float64 `json:"co2Saved"`
	PlasticSaved  float64 `json:"plasticSaved"`
	TotalScans    int     `json:"totalScans"`
	GoodDecisions int     `json:"goodDecisions"`
}

// Record adds one decision on a product with the given eco-score.
func (m *ImpactMetrics) Record(decision Decision, ecoScore int) {
	m.TotalScans++

	switch {
	case decision.GoodChoice():
		if ecoScore < 50 {
			m.CO2Saved += 1.0
			m.PlasticSaved += 0.2
		} else {
			m.CO2Saved += 0.5
			m.PlasticSaved += 0.1
		}
		m.GoodDecisions++
	case decision == DecisionPurchased && ecoScore >= 70:
		m.CO2Saved += 0.3
		m.PlasticSaved += 0.05
		m.GoodDecisions++
	}
}

// TreesEquivalent is the CO2 saved expressed in trees absorbing 21 kg a
// year.
func (m ImpactMetrics) TreesEquivalent() int {
	return atLeastOne(m.CO2Saved / 21.0)
}

// BottlesEquivalent is the plastic saved in 20 g water bottles.
func (m ImpactMetrics) BottlesEquivalent() int {
	return atLeastOne(m.PlasticSaved / 0.02)
}

// KilometersEquivalent is the CO2 saved in car kilometres at 0.2 kg/km.
func (m ImpactMetrics) KilometersEquivalent() int {
	return atLeastOne(m.CO2Saved / 0.2)
}

// GoodDecisionPercentage is the rounded share of good decisions, capped
// at 100.
func (m ImpactMetrics) GoodDecisionPercentage() int {
	if m.TotalScans <= 0 {
		return 0
	}
	pct := int(math.Round(float64(m.GoodDecisions) / float64(m.TotalScans) * 100))
	return min(100, pct)
}

// BetterThanPercentage maps the good-decision share to an estimated
// percentile among users.
func (m ImpactMetrics) BetterThanPercentage() int {
	switch pct := m.GoodDecisionPercentage(); {
	case pct < 30:
		return 25
	case pct < 50:
		return 50
	case pct < 70:
		return 65
	case pct < 85:
		return 80
	default:
		return 90
	}
}

// ImpactReport is the rendered form of ImpactMetrics.
type ImpactReport struct {
	ImpactMetrics
	Trees                  int `json:"trees"`
	Bottles                int `json:"bottles"`
	Kilometers             int `json:"kilometers"`
	GoodDecisionPercentage int `json:"goodDecisionPercentage"`
	BetterThanPercentage   int `json:"betterThanPercentage"`
}

// Report derives the equivalences from m.
func (m ImpactMetrics) Report() ImpactReport {
	return ImpactReport{
		ImpactMetrics:          m,
		Trees:                  m.TreesEquivalent(),
		Bottles:                m.BottlesEquivalent(),
		Kilometers:             m.KilometersEquivalent(),
		GoodDecisionPercentage: m.GoodDecisionPercentage(),
		BetterThanPercentage:   m.BetterThanPercentage(),
	}
}

func atLeastOne(v float64) int {
	return max(1, int(math.Round(v)))
}
