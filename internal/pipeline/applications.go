package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/logger"
	"github.com/spigell/hire-matcher/internal/matcher"
)

// Submission is a candidate applying to a job with a resume document or text.
type Submission struct {
	JobID           int64
	Email           string
	FullName        string
	Phone           string
	CoverLetter     string
	Resume          []byte
	ResumeMediaType string
	// ResumeText is used when no document is attached.
	ResumeText string
	Source     string
}

// Submit creates an application for an active job. Extraction and scoring
// failures leave the application unscored; invariant violations are returned.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Application, error) {
	email := normalizeEmail(sub.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", ErrValidation, sub.Email)
	}
	name := strings.TrimSpace(sub.FullName)
	if name == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrValidation)
	}

	job, err := s.repo.GetJob(ctx, sub.JobID)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", sub.JobID, err)
	}
	if job.Status != JobActive {
		return nil, fmt.Errorf("job %d is %s: %w", job.ID, job.Status, ErrJobNotAccepting)
	}

	log := s.logger.With(logger.Job(job.ID), zap.String(logger.FieldCandidate, email))

	text := strings.TrimSpace(sub.ResumeText)
	if len(sub.Resume) > 0 {
		text = s.extractResume(ctx, log, sub.Resume, sub.ResumeMediaType)
	}
	result := s.score(ctx, log, text, job)

	source := strings.TrimSpace(sub.Source)
	if source == "" {
		source = "direct"
	}

	now := s.timestamp()
	app := &Application{
		JobID:       job.ID,
		Status:      StatusPending,
		CoverLetter: strings.TrimSpace(sub.CoverLetter),
		AppliedAt:   now,
		UpdatedAt:   now,
	}
	app.applyMatch(result)

	err = s.repo.Tx(ctx, func(q Queries) error {
		candidate, err := q.CandidateByEmail(ctx, email)
		switch {
		case errors.Is(err, ErrNotFound):
			candidate = &Candidate{
				Email:     email,
				FullName:  name,
				Phone:     strings.TrimSpace(sub.Phone),
				Source:    source,
				CreatedAt: now,
				UpdatedAt: now,
			}
			applyProfile(candidate, text, result, now)
			if err := q.CreateCandidate(ctx, candidate); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			exists, err := q.ApplicationExists(ctx, job.ID, candidate.ID)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateApplication
			}
			if applyProfile(candidate, text, result, now) {
				if err := q.UpdateCandidateProfile(ctx, candidate); err != nil {
					return err
				}
			}
		}

		app.CandidateID = candidate.ID
		if err := q.CreateApplication(ctx, app); err != nil {
			return err
		}

		return q.LogActivity(ctx, ActivityEntry{
			Action:     "application_submitted",
			EntityType: "application",
			EntityID:   app.ID,
			Details:    fmt.Sprintf("job=%d candidate=%d source=%s", job.ID, candidate.ID, source),
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("submitting application: %w", err)
	}

	app.CandidateEmail = email
	app.CandidateName = name
	app.JobTitle = job.Title

	log.Info("application submitted",
		logger.Application(app.ID),
		zap.Bool("scored", app.MatchScore != nil),
	)

	s.autoInviteApplication(ctx, app)

	return app, nil
}

// applyProfile updates the candidate from an analyzed resume. It reports
// whether anything changed.
func applyProfile(c *Candidate, text string, res *matcher.Result, now time.Time) bool {
	if text == "" || res == nil {
		return false
	}
	c.ResumeText = text
	c.Skills = res.MatchedSkills
	c.ExperienceYears = res.ExperienceYears
	c.Summary = res.Summary
	c.UpdatedAt = now
	return true
}

func (s *Service) extractResume(ctx context.Context, log *zap.Logger, data []byte, mediaType string) string {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()

	text, err := s.extract(ctx, data, mediaType)
	if err != nil {
		log.Warn("resume extraction failed, continuing without text",
			zap.String("media_type", mediaType),
			zap.Int("size", len(data)),
			zap.Error(err),
		)
		return ""
	}
	return text
}

func (s *Service) score(ctx context.Context, log *zap.Logger, text string, job *Job) *matcher.Result {
	if s.scorer == nil || text == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ScoreTimeout)
	defer cancel()

	res, err := s.scorer.Match(ctx, text, job.Profile())
	if err != nil {
		log.Warn("scoring failed, continuing without scores", zap.Error(err))
		return nil
	}
	return res
}

type NewApplication struct {
	JobID       int64  `json:"job_id"`
	CandidateID int64  `json:"candidate_id"`
	CoverLetter string `json:"cover_letter"`
}

// CreateApplication adds an existing candidate to a job on behalf of a
// recruiter. The stored resume is scored when present.
func (s *Service) CreateApplication(ctx context.Context, in NewApplication) (*Application, error) {
	job, err := s.repo.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", in.JobID, err)
	}
	candidate, err := s.repo.GetCandidate(ctx, in.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("candidate %d: %w", in.CandidateID, err)
	}

	log := s.logger.With(logger.Job(job.ID), zap.String(logger.FieldCandidate, candidate.Email))
	result := s.score(ctx, log, candidate.ResumeText, job)

	now := s.timestamp()
	app := &Application{
		JobID:       job.ID,
		CandidateID: candidate.ID,
		Status:      StatusPending,
		CoverLetter: strings.TrimSpace(in.CoverLetter),
		AppliedAt:   now,
		UpdatedAt:   now,
	}
	app.applyMatch(result)

	err = s.repo.Tx(ctx, func(q Queries) error {
		exists, err := q.ApplicationExists(ctx, job.ID, candidate.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateApplication
		}
		if err := q.CreateApplication(ctx, app); err != nil {
			return err
		}
		return q.LogActivity(ctx, ActivityEntry{
			Action:     "application_created",
			EntityType: "application",
			EntityID:   app.ID,
			Details:    fmt.Sprintf("job=%d candidate=%d", job.ID, candidate.ID),
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("creating application: %w", err)
	}

	log.Info("application created", logger.Application(app.ID))
	s.autoInviteApplication(ctx, app)
	return app, nil
}

func (s *Service) GetApplication(ctx context.Context, id int64) (*Application, error) {
	return s.repo.GetApplication(ctx, id)
}

// ListApplications returns one page of applications, best matches first, and
// the total number of matching rows.
func (s *Service) ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown application status %q", ErrValidation, filter.Status)
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Limit = clampLimit(filter.Limit)
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListApplications(ctx, filter)
}

type ApplicationUpdate struct {
	Status *ApplicationStatus `json:"status"`
	Notes  *string            `json:"notes"`
}

// UpdateApplication sets status and notes. Any known status is accepted unless
// strict transitions are configured.
func (s *Service) UpdateApplication(ctx context.Context, id int64, upd ApplicationUpdate) (*Application, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown application status %q", ErrValidation, *upd.Status)
	}

	return s.mutateApplication(ctx, id, "application_updated", func(app *Application) error {
		if upd.Status != nil && *upd.Status != app.Status {
			if s.cfg.StrictTransitions && !app.Status.CanTransition(*upd.Status) {
				return fmt.Errorf("%s -> %s: %w", app.Status, *upd.Status, ErrInvalidTransition)
			}
			app.Status = *upd.Status
		}
		if upd.Notes != nil {
			app.Notes = *upd.Notes
		}
		return nil
	})
}

// Shortlist moves a pending or screening application to shortlisted.
func (s *Service) Shortlist(ctx context.Context, id int64) (*Application, error) {
	return s.mutateApplication(ctx, id, "application_shortlisted", func(app *Application) error {
		if app.Status != StatusPending && app.Status != StatusScreening {
			return fmt.Errorf("cannot shortlist %s application: %w", app.Status, ErrInvalidTransition)
		}
		app.Status = StatusShortlisted
		return nil
	})
}

// Reject moves any application that is not yet final to rejected.
func (s *Service) Reject(ctx context.Context, id int64) (*Application, error) {
	return s.mutateApplication(ctx, id, "application_rejected", func(app *Application) error {
		if app.Status.Terminal() {
			return fmt.Errorf("cannot reject %s application: %w", app.Status, ErrInvalidTransition)
		}
		app.Status = StatusRejected
		return nil
	})
}

func (s *Service) mutateApplication(ctx context.Context, id int64, action string, mutate func(app *Application) error) (*Application, error) {
	var updated *Application
	err := s.repo.Tx(ctx, func(q Queries) error {
		app, err := q.LockApplication(ctx, id)
		if err != nil {
			return err
		}
		previous := app.Status
		if err := mutate(app); err != nil {
			return err
		}
		app.UpdatedAt = s.timestamp()
		if err := q.UpdateApplication(ctx, app); err != nil {
			return err
		}
		updated = app
		return q.LogActivity(ctx, ActivityEntry{
			Action:     action,
			EntityType: "application",
			EntityID:   id,
			Details:    fmt.Sprintf("%s -> %s", previous, app.Status),
			CreatedAt:  app.UpdatedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("application %d: %w", id, err)
	}

	s.logger.Info(strings.ReplaceAll(action, "_", " "),
		logger.Application(id),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// DeleteApplication removes the application and its screenings.
func (s *Service) DeleteApplication(ctx context.Context, id int64) error {
	err := s.repo.Tx(ctx, func(q Queries) error {
		if _, err := q.LockApplication(ctx, id); err != nil {
			return err
		}
		removed, err := q.DeleteScreenings(ctx, id)
		if err != nil {
			return err
		}
		if err := q.DeleteApplication(ctx, id); err != nil {
			return err
		}
		return q.LogActivity(ctx, ActivityEntry{
			Action:     "application_deleted",
			EntityType: "application",
			EntityID:   id,
			Details:    fmt.Sprintf("screenings_removed=%d", removed),
			CreatedAt:  s.timestamp(),
		})
	})
	if err != nil {
		return fmt.Errorf("deleting application %d: %w", id, err)
	}

	s.logger.Info("application deleted", logger.Application(id))
	return nil
}

// ApplicationStats counts applications per status. jobID 0 covers all jobs.
func (s *Service) ApplicationStats(ctx context.Context, jobID int64) (*ApplicationStats, error) {
	return s.repo.ApplicationStats(ctx, jobID)
}
