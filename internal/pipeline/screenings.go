package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/logger"
	"github.com/spigell/hire-matcher/internal/utils"
)

const (
	weightTechnical     = 0.4
	weightCommunication = 0.35
	weightCulturalFit   = 0.25
)

type NewScreening struct {
	ApplicationID int64           `json:"application_id"`
	ScheduledAt   *time.Time      `json:"scheduled_at"`
	Source        ScreeningSource `json:"source"`
}

// CreateScreening schedules a screening and moves the application to
// screening. An application may have only one active screening.
func (s *Service) CreateScreening(ctx context.Context, in NewScreening) (*Screening, error) {
	source, err := ParseScreeningSource(string(in.Source))
	if err != nil {
		return nil, err
	}

	var screening *Screening
	err = s.repo.Tx(ctx, func(q Queries) error {
		var err error
		screening, err = s.invite(ctx, q, in.ApplicationID, source, in.ScheduledAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling screening for application %d: %w", in.ApplicationID, err)
	}

	s.logger.Info("screening scheduled",
		logger.Application(in.ApplicationID),
		logger.Screening(screening.ID),
		zap.String("source", string(source)),
	)
	return screening, nil
}

// invite runs inside a transaction. The application row is locked before the
// active screening check so concurrent invites serialize.
func (s *Service) invite(ctx context.Context, q Queries, applicationID int64, source ScreeningSource, scheduledAt *time.Time) (*Screening, error) {
	app, err := q.LockApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	active, err := q.ActiveScreening(ctx, applicationID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("screening %d is already %s: %w", active.ID, active.Status, ErrInvalidTransition)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	if s.cfg.StrictTransitions && app.Status != StatusScreening && !app.Status.CanTransition(StatusScreening) {
		return nil, fmt.Errorf("%s -> %s: %w", app.Status, StatusScreening, ErrInvalidTransition)
	}

	now := s.timestamp()
	if scheduledAt != nil {
		at := scheduledAt.UTC()
		scheduledAt = &at
	}
	screening := &Screening{
		ApplicationID: applicationID,
		Status:        ScreeningScheduled,
		Source:        source,
		ScheduledAt:   scheduledAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := q.CreateScreening(ctx, screening); err != nil {
		return nil, err
	}

	previous := app.Status
	app.Status = StatusScreening
	app.UpdatedAt = now
	if err := q.UpdateApplication(ctx, app); err != nil {
		return nil, err
	}

	if err := q.LogActivity(ctx, ActivityEntry{
		Action:     "screening_scheduled",
		EntityType: "screening",
		EntityID:   screening.ID,
		Details:    fmt.Sprintf("application=%d source=%s previous_status=%s", applicationID, source, previous),
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}

	return screening, nil
}

// StartScreening marks a scheduled screening as in progress.
func (s *Service) StartScreening(ctx context.Context, id int64) (*Screening, error) {
	return s.mutateScreening(ctx, id, "screening_started", func(q Queries, sc *Screening, now time.Time) error {
		if sc.Status != ScreeningScheduled {
			return fmt.Errorf("cannot start %s screening: %w", sc.Status, ErrInvalidTransition)
		}
		sc.Status = ScreeningInProgress
		sc.StartedAt = &now
		return nil
	})
}

// CompleteScreening records the evaluation and moves the application to
// shortlisted on a passing recommendation or to rejected otherwise.
func (s *Service) CompleteScreening(ctx context.Context, id int64, ev Evaluation) (*Screening, error) {
	if err := validateEvaluation(ev); err != nil {
		return nil, err
	}

	return s.mutateScreening(ctx, id, "screening_completed", func(q Queries, sc *Screening, now time.Time) error {
		if !sc.Status.CanTransition(ScreeningCompleted) {
			return fmt.Errorf("cannot complete %s screening: %w", sc.Status, ErrInvalidTransition)
		}

		technical, communication, cultural := ev.TechnicalScore, ev.CommunicationScore, ev.CulturalFitScore
		overall := utils.Round1(technical*weightTechnical + communication*weightCommunication + cultural*weightCulturalFit)
		if ev.OverallScore != nil {
			overall = *ev.OverallScore
		}
		recommendation := ev.Recommendation
		if recommendation == "" {
			recommendation = RecommendScreening(overall)
		}

		sc.Status = ScreeningCompleted
		sc.TechnicalScore = &technical
		sc.CommunicationScore = &communication
		sc.CulturalFitScore = &cultural
		sc.OverallScore = &overall
		sc.Recommendation = recommendation
		if ev.Notes != nil {
			sc.Notes = *ev.Notes
		}
		if sc.StartedAt == nil {
			sc.StartedAt = &now
		}
		sc.CompletedAt = &now
		duration := int(now.Sub(*sc.StartedAt).Minutes())
		sc.DurationMinutes = &duration

		app, err := q.LockApplication(ctx, sc.ApplicationID)
		if err != nil {
			return err
		}
		app.Status = StatusRejected
		if recommendation.Advances() {
			app.Status = StatusShortlisted
		}
		app.UpdatedAt = now
		return q.UpdateApplication(ctx, app)
	})
}

func validateEvaluation(ev Evaluation) error {
	scores := map[string]float64{
		"technical_score":     ev.TechnicalScore,
		"communication_score": ev.CommunicationScore,
		"cultural_fit_score":  ev.CulturalFitScore,
	}
	if ev.OverallScore != nil {
		scores["overall_score"] = *ev.OverallScore
	}
	for name, v := range scores {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %s must be between 0 and 100", ErrValidation, name)
		}
	}
	if ev.Recommendation != "" {
		if _, err := ParseScreeningRecommendation(string(ev.Recommendation)); err != nil {
			return err
		}
	}
	return nil
}

// CancelScreening cancels an active screening. The application returns to
// pending only if it is still in screening.
func (s *Service) CancelScreening(ctx context.Context, id int64) (*Screening, error) {
	return s.mutateScreening(ctx, id, "screening_cancelled", func(q Queries, sc *Screening, now time.Time) error {
		if !sc.Status.CanTransition(ScreeningCancelled) {
			return fmt.Errorf("cannot cancel %s screening: %w", sc.Status, ErrInvalidTransition)
		}
		sc.Status = ScreeningCancelled

		app, err := q.LockApplication(ctx, sc.ApplicationID)
		if err != nil {
			return err
		}
		if app.Status != StatusScreening {
			return nil
		}
		app.Status = StatusPending
		app.UpdatedAt = now
		return q.UpdateApplication(ctx, app)
	})
}

func (s *Service) UpdateScreeningNotes(ctx context.Context, id int64, notes string) (*Screening, error) {
	return s.mutateScreening(ctx, id, "screening_notes_updated", func(_ Queries, sc *Screening, _ time.Time) error {
		sc.Notes = notes
		return nil
	})
}

func (s *Service) mutateScreening(ctx context.Context, id int64, action string, mutate func(q Queries, sc *Screening, now time.Time) error) (*Screening, error) {
	var updated *Screening
	err := s.repo.Tx(ctx, func(q Queries) error {
		sc, err := q.LockScreening(ctx, id)
		if err != nil {
			return err
		}
		now := s.timestamp()
		previous := sc.Status
		if err := mutate(q, sc, now); err != nil {
			return err
		}
		sc.UpdatedAt = now
		if err := q.UpdateScreening(ctx, sc); err != nil {
			return err
		}
		updated = sc
		return q.LogActivity(ctx, ActivityEntry{
			Action:     action,
			EntityType: "screening",
			EntityID:   id,
			Details:    fmt.Sprintf("%s -> %s", previous, sc.Status),
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("screening %d: %w", id, err)
	}

	s.logger.Info("screening updated",
		logger.Screening(id),
		logger.Application(updated.ApplicationID),
		zap.String("action", action),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) GetScreening(ctx context.Context, id int64) (*Screening, error) {
	return s.repo.GetScreening(ctx, id)
}

func (s *Service) ListScreenings(ctx context.Context, filter ScreeningFilter) ([]Screening, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown screening status %q", ErrValidation, filter.Status)
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.ListScreenings(ctx, filter)
}

func (s *Service) ScreeningStats(ctx context.Context) (*ScreeningStats, error) {
	return s.repo.ScreeningStats(ctx)
}
