package pipeline

import "fmt"

// ApplicationStatus is the hiring stage of an application.
type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "pending"
	StatusScreening   ApplicationStatus = "screening"
	StatusShortlisted ApplicationStatus = "shortlisted"
	StatusInterview   ApplicationStatus = "interview"
	StatusOffered     ApplicationStatus = "offered"
	StatusRejected    ApplicationStatus = "rejected"
	StatusHired       ApplicationStatus = "hired"
)

// ApplicationStatuses lists every status in pipeline order.
var ApplicationStatuses = []ApplicationStatus{
	StatusPending, StatusScreening, StatusShortlisted, StatusInterview, StatusOffered, StatusRejected, StatusHired,
}

func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	status := ApplicationStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown application status %q", ErrValidation, s)
	}
	return status, nil
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusScreening, StatusShortlisted, StatusInterview, StatusOffered, StatusRejected, StatusHired:
		return true
	default:
		return false
	}
}

func (s ApplicationStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusHired:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the pipeline allows moving from s to next.
func (s ApplicationStatus) CanTransition(next ApplicationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusScreening || next == StatusShortlisted || next == StatusRejected
	case StatusScreening:
		return next == StatusShortlisted || next == StatusRejected || next == StatusPending
	case StatusShortlisted:
		return next == StatusInterview || next == StatusRejected
	case StatusInterview:
		return next == StatusOffered || next == StatusRejected
	case StatusOffered:
		return next == StatusHired || next == StatusRejected
	case StatusRejected, StatusHired:
		return false
	default:
		return false
	}
}

// ScreeningStatus is the lifecycle state of a screening.
type ScreeningStatus string

const (
	ScreeningScheduled  ScreeningStatus = "scheduled"
	ScreeningInProgress ScreeningStatus = "in_progress"
	ScreeningCompleted  ScreeningStatus = "completed"
	ScreeningCancelled  ScreeningStatus = "cancelled"
)

var ScreeningStatuses = []ScreeningStatus{
	ScreeningScheduled, ScreeningInProgress, ScreeningCompleted, ScreeningCancelled,
}

func ParseScreeningStatus(s string) (ScreeningStatus, error) {
	status := ScreeningStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown screening status %q", ErrValidation, s)
	}
	return status, nil
}

func (s ScreeningStatus) Valid() bool {
	switch s {
	case ScreeningScheduled, ScreeningInProgress, ScreeningCompleted, ScreeningCancelled:
		return true
	default:
		return false
	}
}

// Active screenings block new screenings for the same application.
func (s ScreeningStatus) Active() bool {
	switch s {
	case ScreeningScheduled, ScreeningInProgress:
		return true
	default:
		return false
	}
}

func (s ScreeningStatus) CanTransition(next ScreeningStatus) bool {
	switch s {
	case ScreeningScheduled:
		return next == ScreeningInProgress || next == ScreeningCompleted || next == ScreeningCancelled
	case ScreeningInProgress:
		return next == ScreeningCompleted || next == ScreeningCancelled
	case ScreeningCompleted, ScreeningCancelled:
		return false
	default:
		return false
	}
}

// ScreeningSource records who created a screening.
type ScreeningSource string

const (
	SourceManual ScreeningSource = "manual"
	SourceAuto   ScreeningSource = "auto"
	SourceBulk   ScreeningSource = "bulk"
)

func ParseScreeningSource(s string) (ScreeningSource, error) {
	switch src := ScreeningSource(s); src {
	case "":
		return SourceManual, nil
	case SourceManual, SourceAuto, SourceBulk:
		return src, nil
	default:
		return "", fmt.Errorf("%w: unknown screening source %q", ErrValidation, s)
	}
}

// ScreeningRecommendation is the outcome of a completed screening.
type ScreeningRecommendation string

const (
	StrongPass ScreeningRecommendation = "strong_pass"
	Pass       ScreeningRecommendation = "pass"
	Borderline ScreeningRecommendation = "borderline"
	Fail       ScreeningRecommendation = "fail"
)

func ParseScreeningRecommendation(s string) (ScreeningRecommendation, error) {
	switch rec := ScreeningRecommendation(s); rec {
	case StrongPass, Pass, Borderline, Fail:
		return rec, nil
	default:
		return "", fmt.Errorf("%w: unknown screening recommendation %q", ErrValidation, s)
	}
}

// RecommendScreening maps an overall screening score to a recommendation.
func RecommendScreening(overall float64) ScreeningRecommendation {
	switch {
	case overall >= 80:
		return StrongPass
	case overall >= 65:
		return Pass
	case overall >= 50:
		return Borderline
	default:
		return Fail
	}
}

// Advances reports whether the candidate moves forward after the screening.
func (r ScreeningRecommendation) Advances() bool {
	switch r {
	case StrongPass, Pass:
		return true
	default:
		return false
	}
}

// JobStatus controls whether a job accepts applications.
type JobStatus string

const (
	JobDraft  JobStatus = "draft"
	JobActive JobStatus = "active"
	JobPaused JobStatus = "paused"
	JobClosed JobStatus = "closed"
)

func ParseJobStatus(s string) (JobStatus, error) {
	switch status := JobStatus(s); status {
	case JobDraft, JobActive, JobPaused, JobClosed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown job status %q", ErrValidation, s)
	}
}
