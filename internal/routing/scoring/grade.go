package scoring

// Grade buckets a total score into a letter used by routing-rule authors
// when writing score-range conditions. The engine itself never consumes
// grades.
type Grade struct {
	Letter      string `json:"letter"`
	Description string `json:"description"`
}

// GetGrade maps a total score to its letter grade.
func GetGrade(score int) Grade {
	switch {
	case score >= 80:
		return Grade{Letter: "A", Description: "Hot lead, prioritize immediate contact"}
	case score >= 60:
		return Grade{Letter: "B", Description: "Warm lead, contact within one business day"}
	case score >= 40:
		return Grade{Letter: "C", Description: "Cool lead, add to nurture campaign"}
	default:
		return Grade{Letter: "D", Description: "Cold lead, low priority follow-up"}
	}
}
