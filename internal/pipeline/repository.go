package pipeline

import (
	"context"
	"time"
)

// Repository persists pipeline entities. Tx runs fn in one transaction and
// rolls back when fn returns an error.
type Repository interface {
	Queries
	Tx(ctx context.Context, fn func(q Queries) error) error
}

// Queries are the storage operations. Lookups of missing rows return
// ErrNotFound. Lock* variants hold a row lock until the transaction ends.
type Queries interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id int64) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)
	UpdateJobStatus(ctx context.Context, id int64, status JobStatus, at time.Time) error

	CandidateByEmail(ctx context.Context, email string) (*Candidate, error)
	GetCandidate(ctx context.Context, id int64) (*Candidate, error)
	CreateCandidate(ctx context.Context, c *Candidate) error
	UpdateCandidateProfile(ctx context.Context, c *Candidate) error

	// CreateApplication returns ErrDuplicateApplication when the candidate
	// already applied to the job.
	CreateApplication(ctx context.Context, app *Application) error
	ApplicationExists(ctx context.Context, jobID, candidateID int64) (bool, error)
	GetApplication(ctx context.Context, id int64) (*Application, error)
	LockApplication(ctx context.Context, id int64) (*Application, error)
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, int, error)
	UpdateApplication(ctx context.Context, app *Application) error
	DeleteApplication(ctx context.Context, id int64) error
	ApplicationStats(ctx context.Context, jobID int64) (*ApplicationStats, error)

	// CreateScreening returns ErrInvalidTransition when the application
	// already has an active screening.
	CreateScreening(ctx context.Context, s *Screening) error
	GetScreening(ctx context.Context, id int64) (*Screening, error)
	LockScreening(ctx context.Context, id int64) (*Screening, error)
	ActiveScreening(ctx context.Context, applicationID int64) (*Screening, error)
	UpdateScreening(ctx context.Context, s *Screening) error
	DeleteScreenings(ctx context.Context, applicationID int64) (int64, error)
	ListScreenings(ctx context.Context, filter ScreeningFilter) ([]Screening, int, error)
	ScreeningStats(ctx context.Context) (*ScreeningStats, error)

	LogActivity(ctx context.Context, entry ActivityEntry) error
	ListActivity(ctx context.Context, limit int) ([]ActivityEntry, error)

	Setting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string, at time.Time) error
}
