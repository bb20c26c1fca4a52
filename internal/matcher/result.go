package matcher

// Recommendation is the hiring signal derived from the overall match score.
type Recommendation string

const (
	StrongYes Recommendation = "strong_yes"
	Yes       Recommendation = "yes"
	Maybe     Recommendation = "maybe"
	No        Recommendation = "no"
)

// Recommend maps a 0..100 score to a recommendation. Boundaries are inclusive.
func Recommend(score float64) Recommendation {
	switch {
	case score >= 75:
		return StrongYes
	case score >= 60:
		return Yes
	case score >= 45:
		return Maybe
	default:
		return No
	}
}

// Valid reports whether r is one of the known recommendations.
func (r Recommendation) Valid() bool {
	switch r {
	case StrongYes, Yes, Maybe, No:
		return true
	default:
		return false
	}
}

// Result is the outcome of matching one resume against one job.
type Result struct {
	MatchScore      float64        `json:"match_score"`
	SkillsMatch     float64        `json:"skills_match"`
	ExperienceMatch float64        `json:"experience_match"`
	MatchedSkills   []string       `json:"skills"`
	ExperienceYears *float64       `json:"experience_years"`
	Recommendation  Recommendation `json:"recommendation"`
	Summary         string         `json:"ai_summary"`
}

// Map returns the result in its persisted document shape. Education and the
// candidate summary are not produced by the matcher and are always nil.
func (r *Result) Map() map[string]any {
	var years any
	if r.ExperienceYears != nil {
		years = *r.ExperienceYears
	}
	return map[string]any{
		"match_score":      r.MatchScore,
		"skills_match":     r.SkillsMatch,
		"experience_match": r.ExperienceMatch,
		"skills":           r.MatchedSkills,
		"experience_years": years,
		"education":        nil,
		"summary":          nil,
		"ai_summary":       r.Summary,
		"recommendation":   string(r.Recommendation),
	}
}
