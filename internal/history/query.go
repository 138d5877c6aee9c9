package history

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// SortOrder selects the ordering of a history listing.
type SortOrder string

const (
	SortDateDesc  SortOrder = "date_desc"
	SortDateAsc   SortOrder = "date_asc"
	SortScoreDesc SortOrder = "score_desc"
	SortScoreAsc  SortOrder = "score_asc"
)

// ParseSortOrder maps query-string values to a SortOrder. Empty means most
// recent first.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "date_desc", "recent", "newest":
		return SortDateDesc, nil
	case "date_asc", "oldest":
		return SortDateAsc, nil
	case "score_desc", "highest":
		return SortScoreDesc, nil
	case "score_asc", "lowest":
		return SortScoreAsc, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Query filters and orders scan history.
type Query struct {
	Search   string
	Decision Decision // empty matches every decision
	Sort     SortOrder
}

// Apply returns the scans matching q in q's order. The input is not
// modified.
func (q Query) Apply(scans []ScanHistory) []ScanHistory {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(q.Search))

	result := make([]ScanHistory, 0, len(scans))
	for _, scan := range scans {
		if q.Decision != "" && scan.Decision != q.Decision {
			continue
		}
		if needle != "" &&
			!strings.Contains(fold.String(scan.ProductName), needle) &&
			!strings.Contains(fold.String(scan.Brand), needle) {
			continue
		}
		result = append(result, scan)
	}

	var less func(a, b ScanHistory) bool
	switch q.Sort {
	case SortDateAsc:
		less = func(a, b ScanHistory) bool { return a.ScanDate.Before(b.ScanDate.Time) }
	case SortScoreDesc:
		less = func(a, b ScanHistory) bool { return a.EcoScore > b.EcoScore }
	case SortScoreAsc:
		less = func(a, b ScanHistory) bool { return a.EcoScore < b.EcoScore }
	default:
		less = func(a, b ScanHistory) bool { return a.ScanDate.After(b.ScanDate.Time) }
	}
	sort.SliceStable(result, func(i, j int) bool { return less(result[i], result[j]) })

	return result
}

// Summary aggregates a history listing.
type Summary struct {
	TotalScans   int              `json:"totalScans"`
	AverageScore int              `json:"averageScore"`
	GoodChoices  int              `json:"goodChoices"`
	CO2Saved     float64          `json:"co2Saved"`
	ByDecision   map[Decision]int `json:"byDecision"`
}

// Summarize computes the listing statistics. The average is truncated.
func Summarize(scans []ScanHistory) Summary {
	summary := Summary{
		TotalScans: len(scans),
		ByDecision: make(map[Decision]int, len(Decisions)),
	}
	for _, d := range Decisions {
		summary.ByDecision[d] = 0
	}

	total := 0
	for _, scan := range scans {
		total += scan.EcoScore
		summary.ByDecision[scan.Decision]++
		if scan.Decision.GoodChoice() {
			summary.GoodChoices++
			summary.CO2Saved += float64(100-scan.EcoScore) * 0.01
		}
	}
	if len(scans) > 0 {
		summary.AverageScore = total / len(scans)
	}
	return summary
}
