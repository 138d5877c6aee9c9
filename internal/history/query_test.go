package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleScans() []ScanHistory {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	scan := func(id, name, brand string, eco int, decision Decision, day int) ScanHistory {
		return ScanHistory{
			ID:          id,
			ProductName: name,
			Brand:       brand,
			EcoScore:    eco,
			Decision:    decision,
			ScanDate:    NewScanTime(base.AddDate(0, 0, day)),
		}
	}
	return []ScanHistory{
		scan("a", "Organic Greek Yogurt", "Nature's Best", 85, DecisionPurchased, 0),
		scan("b", "Plastic Water Bottle", "Generic", 25, DecisionAvoided, 1),
		scan("c", "Fair Trade Coffee", "Ethical Bean", 78, DecisionAlternative, 2),
		scan("d", "Instant Noodles", "Maruchan", 25, DecisionUndecided, 3),
	}
}

func ids(scans []ScanHistory) []string {
	out := make([]string, len(scans))
	for i, s := range scans {
		out[i] = s.ID
	}
	return out
}

func TestQuery_Apply(t *testing.T) {
	scans := sampleScans()

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"default is most recent first", Query{}, []string{"d", "c", "b", "a"}},
		{"oldest first", Query{Sort: SortDateAsc}, []string{"a", "b", "c", "d"}},
		{"score descending keeps ties stable", Query{Sort: SortScoreDesc}, []string{"a", "c", "b", "d"}},
		{"score ascending keeps ties stable", Query{Sort: SortScoreAsc, Search: ""}, []string{"b", "d", "c", "a"}},
		{"search matches name case-insensitively", Query{Search: "YOGURT"}, []string{"a"}},
		{"search matches brand", Query{Search: "maruchan"}, []string{"d"}},
		{"decision filter", Query{Decision: DecisionAvoided}, []string{"b"}},
		{"search and filter combine", Query{Search: "water", Decision: DecisionPurchased}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.query.Apply(scans)))
		})
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(scans), "input order must not change")
}

func TestParseSortOrder(t *testing.T) {
	for input, want := range map[string]SortOrder{
		"":           SortDateDesc,
		"recent":     SortDateDesc,
		"oldest":     SortDateAsc,
		"score_desc": SortScoreDesc,
		"Lowest":     SortScoreAsc,
	} {
		got, err := ParseSortOrder(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseSortOrder("alphabetical")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleScans())

	assert.Equal(t, 4, summary.TotalScans)
	assert.Equal(t, (85+25+78+25)/4, summary.AverageScore)
	assert.Equal(t, 2, summary.GoodChoices)
	assert.InDelta(t, 0.75+0.22, summary.CO2Saved, 1e-9)
	assert.Equal(t, 1, summary.ByDecision[DecisionUndecided])

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.AverageScore)
	assert.Len(t, empty.ByDecision, 4)
}
