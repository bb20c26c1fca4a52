package pipeline

import (
	"time"

	"github.com/spigell/hire-matcher/internal/matcher"
)

type Job struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Department       string    `json:"department,omitempty"`
	Location         string    `json:"location,omitempty"`
	JobType          string    `json:"job_type,omitempty"`
	ExperienceLevel  string    `json:"experience_level,omitempty"`
	Description      string    `json:"description,omitempty"`
	Requirements     string    `json:"requirements,omitempty"`
	Responsibilities string    `json:"responsibilities,omitempty"`
	SkillsRequired   string    `json:"skills_required,omitempty"`
	Status           JobStatus `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Profile returns the fields used for matching.
func (j *Job) Profile() matcher.JobProfile {
	return matcher.JobProfile{
		Title:            j.Title,
		Description:      j.Description,
		Requirements:     j.Requirements,
		Responsibilities: j.Responsibilities,
		SkillsRequired:   j.SkillsRequired,
		ExperienceLevel:  j.ExperienceLevel,
	}
}

type Candidate struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	FullName        string    `json:"full_name"`
	Phone           string    `json:"phone,omitempty"`
	ResumeText      string    `json:"-"`
	Skills          []string  `json:"skills"`
	ExperienceYears *float64  `json:"experience_years"`
	Summary         string    `json:"summary,omitempty"`
	Source          string    `json:"source,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Application links a candidate to a job. Match results are stored flattened;
// nil scores mean the resume was not scored.
type Application struct {
	ID               int64                  `json:"id"`
	JobID            int64                  `json:"job_id"`
	CandidateID      int64                  `json:"candidate_id"`
	Status           ApplicationStatus      `json:"status"`
	CoverLetter      string                 `json:"cover_letter,omitempty"`
	MatchScore       *float64               `json:"match_score"`
	SkillsMatch      *float64               `json:"skills_match"`
	ExperienceMatch  *float64               `json:"experience_match"`
	AISummary        string                 `json:"ai_summary,omitempty"`
	AIRecommendation matcher.Recommendation `json:"ai_recommendation,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
	AppliedAt        time.Time              `json:"applied_at"`
	UpdatedAt        time.Time              `json:"updated_at"`

	// Read-only fields filled by list and get queries.
	CandidateName  string `json:"candidate_name,omitempty"`
	CandidateEmail string `json:"candidate_email,omitempty"`
	JobTitle       string `json:"job_title,omitempty"`
}

// applyMatch copies a match result onto the application.
func (a *Application) applyMatch(res *matcher.Result) {
	if res == nil {
		return
	}
	match, skills, experience := res.MatchScore, res.SkillsMatch, res.ExperienceMatch
	a.MatchScore = &match
	a.SkillsMatch = &skills
	a.ExperienceMatch = &experience
	a.AISummary = res.Summary
	a.AIRecommendation = res.Recommendation
}

type Screening struct {
	ID                 int64                   `json:"id"`
	ApplicationID      int64                   `json:"application_id"`
	Status             ScreeningStatus         `json:"status"`
	Source             ScreeningSource         `json:"source"`
	ScheduledAt        *time.Time              `json:"scheduled_at"`
	StartedAt          *time.Time              `json:"started_at"`
	CompletedAt        *time.Time              `json:"completed_at"`
	DurationMinutes    *int                    `json:"duration_minutes"`
	TechnicalScore     *float64                `json:"technical_score"`
	CommunicationScore *float64                `json:"communication_score"`
	CulturalFitScore   *float64                `json:"cultural_fit_score"`
	OverallScore       *float64                `json:"overall_score"`
	Recommendation     ScreeningRecommendation `json:"recommendation,omitempty"`
	Notes              string                  `json:"notes,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// Evaluation is the interviewer's assessment submitted when a screening completes.
type Evaluation struct {
	TechnicalScore     float64                 `json:"technical_score"`
	CommunicationScore float64                 `json:"communication_score"`
	CulturalFitScore   float64                 `json:"cultural_fit_score"`
	OverallScore       *float64                `json:"overall_score,omitempty"`
	Recommendation     ScreeningRecommendation `json:"recommendation,omitempty"`
	Notes              *string                 `json:"notes,omitempty"`
}

type ActivityEntry struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type JobFilter struct {
	Status JobStatus
}

type ApplicationFilter struct {
	JobID    int64
	Status   ApplicationStatus
	Search   string
	MinScore *float64
	Offset   int
	Limit    int
}

type ScreeningFilter struct {
	ApplicationID int64
	Status        ScreeningStatus
	Offset        int
	Limit         int
}

type ApplicationStats struct {
	Total        int                       `json:"total"`
	ByStatus     map[ApplicationStatus]int `json:"by_status"`
	AverageScore *float64                  `json:"average_match_score"`
}

type ScreeningStats struct {
	Total            int                             `json:"total"`
	ByStatus         map[ScreeningStatus]int         `json:"by_status"`
	ByRecommendation map[ScreeningRecommendation]int `json:"by_recommendation"`
	AverageOverall   *float64                        `json:"average_overall_score"`
}

// BulkResult reports a bulk invite. Items are committed one by one, so a
// partial result is normal.
type BulkResult struct {
	Invited    int              `json:"invited"`
	Skipped    int              `json:"skipped"`
	InvitedIDs []int64          `json:"invited_ids"`
	SkippedIDs []int64          `json:"skipped_ids"`
	Reasons    map[int64]string `json:"reasons,omitempty"`
}
