package constants

// Letter grade breakpoints, applied to the aggregate percentage.
// Fixed by policy; not configurable.
var gradeBreakpoints = []struct {
	Min    float64
	Letter string
}{
	{90, "A"},
	{80, "B"},
	{70, "C"},
	{60, "D"},
	{0, "F"},
}

// LetterGrade returns the letter for an aggregate percentage in [0,100].
func LetterGrade(percent float64) string {
	for _, bp := range gradeBreakpoints {
		if percent >= bp.Min {
			return bp.Letter
		}
	}
	return "F"
}

// TrustThreshold is the extraction confidence above which total_marks must
// reconcile with the sum of question max scores.
const TrustThreshold = 0.8
