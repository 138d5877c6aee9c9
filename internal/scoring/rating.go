package scoring

// Rating returns the display band of a score.
func Rating(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}
