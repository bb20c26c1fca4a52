// Package pipeline drives applications and screenings through the hiring
// stages and enforces their invariants.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/extract"
	"github.com/spigell/hire-matcher/internal/matcher"
	"github.com/spigell/hire-matcher/internal/settings"
)

const (
	defaultExtractTimeout = 10 * time.Second
	defaultScoreTimeout   = 30 * time.Second
	defaultPageSize       = 20
	maxPageSize           = 100
)

// Scorer rates a resume against a job.
type Scorer interface {
	Match(ctx context.Context, resumeText string, job matcher.JobProfile) (*matcher.Result, error)
}

// Extractor turns an uploaded document into text.
type Extractor func(ctx context.Context, data []byte, mediaType string) (string, error)

type Config struct {
	// StrictTransitions makes manual status updates follow the transition table.
	StrictTransitions bool          `mapstructure:"strict-transitions"`
	ExtractTimeout    time.Duration `mapstructure:"extract-timeout"`
	ScoreTimeout      time.Duration `mapstructure:"score-timeout"`
}

type Service struct {
	repo     Repository
	scorer   Scorer
	extract  Extractor
	settings *settings.Store
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the pipeline. scorer may be nil, in which case applications
// are stored without scores.
func NewService(repo Repository, scorer Scorer, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = defaultExtractTimeout
	}
	if cfg.ScoreTimeout <= 0 {
		cfg.ScoreTimeout = defaultScoreTimeout
	}

	return &Service{
		repo:     repo,
		scorer:   scorer,
		extract:  extract.Extract,
		settings: settings.New(repo),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithExtractor replaces the document extractor.
func (s *Service) WithExtractor(e Extractor) *Service {
	s.extract = e
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// Settings returns the current pipeline settings.
func (s *Service) Settings(ctx context.Context) (*settings.Settings, error) {
	return s.settings.Load(ctx)
}

type SettingsUpdate struct {
	AutoInviteScreening *bool `json:"auto_invite_screening"`
	AutoInviteThreshold *int  `json:"auto_invite_threshold"`
}

// UpdateSettings applies the non-nil fields. The threshold must be within 0..100.
func (s *Service) UpdateSettings(ctx context.Context, upd SettingsUpdate) (*settings.Settings, error) {
	current, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	if upd.AutoInviteThreshold != nil {
		if *upd.AutoInviteThreshold < 0 || *upd.AutoInviteThreshold > 100 {
			return nil, fmt.Errorf("%w: auto invite threshold must be between 0 and 100", ErrValidation)
		}
		current.AutoInviteThreshold = *upd.AutoInviteThreshold
	}
	if upd.AutoInviteScreening != nil {
		current.AutoInviteScreening = *upd.AutoInviteScreening
	}

	if err := s.settings.Save(ctx, *current); err != nil {
		return nil, err
	}
	if err := s.repo.LogActivity(ctx, ActivityEntry{
		Action:     "settings_updated",
		EntityType: "settings",
		Details:    fmt.Sprintf("auto_invite_screening=%t auto_invite_threshold=%d", current.AutoInviteScreening, current.AutoInviteThreshold),
		CreatedAt:  s.timestamp(),
	}); err != nil {
		return nil, err
	}

	s.logger.Info("settings updated",
		zap.Bool("auto_invite_screening", current.AutoInviteScreening),
		zap.Int("auto_invite_threshold", current.AutoInviteThreshold),
	)
	return current, nil
}

// Activity returns the most recent activity entries.
func (s *Service) Activity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	return s.repo.ListActivity(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
