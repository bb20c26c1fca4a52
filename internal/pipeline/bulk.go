package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/logger"
)

// BulkInvite schedules a screening for each application in its own
// transaction. Missing applications and applications with an active screening
// are skipped; the rest are invited. An empty source is recorded as bulk.
// Any other error stops the batch and is returned with the result so far.
func (s *Service) BulkInvite(ctx context.Context, ids []int64, source ScreeningSource) (*BulkResult, error) {
	if source == "" {
		source = SourceBulk
	}
	src, err := ParseScreeningSource(string(source))
	if err != nil {
		return nil, err
	}

	result := &BulkResult{
		InvitedIDs: []int64{},
		SkippedIDs: []int64{},
		Reasons:    map[int64]string{},
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var screening *Screening
		err := s.repo.Tx(ctx, func(q Queries) error {
			var err error
			screening, err = s.invite(ctx, q, id, src, nil)
			return err
		})

		switch {
		case err == nil:
			result.Invited++
			result.InvitedIDs = append(result.InvitedIDs, id)
			s.logger.Info("screening scheduled",
				logger.Application(id),
				logger.Screening(screening.ID),
				zap.String("source", string(src)),
			)
		case errors.Is(err, ErrNotFound):
			s.skip(result, id, "application not found")
		case errors.Is(err, ErrInvalidTransition):
			s.skip(result, id, "active screening exists")
		default:
			s.logger.Error("bulk invite aborted",
				logger.Application(id),
				zap.Int("invited", result.Invited),
				zap.Error(err),
			)
			return result, fmt.Errorf("inviting application %d: %w", id, err)
		}
	}

	s.logger.Info("bulk invite finished",
		zap.String("source", string(src)),
		zap.Int("invited", result.Invited),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *Service) skip(result *BulkResult, id int64, reason string) {
	result.Skipped++
	result.SkippedIDs = append(result.SkippedIDs, id)
	result.Reasons[id] = reason
}

// AutoInvite invites every pending application of jobID (0 for all jobs)
// whose match score reaches the configured threshold. Nothing happens while
// auto invite is disabled.
func (s *Service) AutoInvite(ctx context.Context, jobID int64) (*BulkResult, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.AutoInviteScreening {
		s.logger.Info("auto invite skipped", zap.String("reason", "disabled in settings"))
		return &BulkResult{InvitedIDs: []int64{}, SkippedIDs: []int64{}}, nil
	}

	var candidates []Application
	filter := ApplicationFilter{JobID: jobID, Status: StatusPending, Limit: maxPageSize}
	for {
		page, total, err := s.repo.ListApplications(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("listing pending applications: %w", err)
		}
		candidates = append(candidates, page...)
		filter.Offset += len(page)
		if len(page) == 0 || filter.Offset >= total {
			break
		}
	}

	selected := Select(candidates, s.logger, AutoInviteSteps(float64(cfg.AutoInviteThreshold))...)

	ids := make([]int64, 0, len(selected))
	for _, app := range selected {
		ids = append(ids, app.ID)
	}
	return s.BulkInvite(ctx, ids, SourceAuto)
}

// autoInviteApplication applies the auto invite policy to a new application.
// Failures are logged and never reach the submitter.
func (s *Service) autoInviteApplication(ctx context.Context, app *Application) {
	log := s.logger.With(logger.Application(app.ID))

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		log.Warn("auto invite: loading settings failed", zap.Error(err))
		return
	}
	if !cfg.AutoInviteScreening {
		return
	}

	selected := Select([]Application{*app}, zap.NewNop(), AutoInviteSteps(float64(cfg.AutoInviteThreshold))...)
	if len(selected) == 0 {
		return
	}

	res, err := s.BulkInvite(ctx, []int64{app.ID}, SourceAuto)
	if err != nil {
		log.Warn("auto invite failed", zap.Error(err))
		return
	}
	if res.Invited == 1 {
		app.Status = StatusScreening
	}
}
