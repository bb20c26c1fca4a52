// Package matcher scores how well a resume fits a job posting.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hire-matcher/internal/embedding"
	"github.com/spigell/hire-matcher/internal/logger"
	"github.com/spigell/hire-matcher/internal/utils"
)

// ErrScoringUnavailable means no score could be produced. Callers store the
// application without scores.
var ErrScoringUnavailable = errors.New("scoring unavailable")

const summaryTemplate = "Resume shows %.0f%% semantic alignment with the role. Skills coverage: %.0f%%. Experience alignment: %.0f%%."

// JobProfile holds the job fields that take part in matching.
type JobProfile struct {
	Title            string `mapstructure:"title"`
	Description      string `mapstructure:"description"`
	Requirements     string `mapstructure:"requirements"`
	Responsibilities string `mapstructure:"responsibilities"`
	// SkillsRequired is either a JSON array of strings or a comma separated list.
	SkillsRequired  string `mapstructure:"skills-required"`
	ExperienceLevel string `mapstructure:"experience-level"`
}

type Matcher struct {
	embedder   embedding.Embedder
	skills     SkillMatcher
	experience ExperienceEstimator
	logger     *zap.Logger
}

type Option func(*Matcher)

func WithSkillMatcher(s SkillMatcher) Option {
	return func(m *Matcher) { m.skills = s }
}

func WithExperienceEstimator(e ExperienceEstimator) Option {
	return func(m *Matcher) { m.experience = e }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

// New returns a Matcher using embedder for all similarity computations.
func New(embedder embedding.Embedder, opts ...Option) *Matcher {
	m := &Matcher{
		embedder:   embedder,
		skills:     SubstringSkills{},
		experience: RegexExperience{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match scores resumeText against job. Any failure to embed is reported as
// ErrScoringUnavailable.
func (m *Matcher) Match(ctx context.Context, resumeText string, job JobProfile) (*Result, error) {
	resume := strings.TrimSpace(resumeText)
	if resume == "" {
		return nil, fmt.Errorf("%w: empty resume text", ErrScoringUnavailable)
	}
	if m.embedder == nil {
		return nil, fmt.Errorf("%w: embedder is not configured", ErrScoringUnavailable)
	}

	views := BuildViews(job)
	if views.Overview == "" {
		return nil, fmt.Errorf("%w: job has no description", ErrScoringUnavailable)
	}

	provider, model := embedding.Describe(m.embedder)
	log := logger.WithEmbedding(m.logger, provider, model)
	log.Debug("matching resume",
		zap.Int("resume_length", utf8.RuneCountInString(resume)),
		zap.String("job_title", utils.TruncateForLog(job.Title, 80)),
	)

	texts := []string{resume, views.Overview, views.Skills, views.Experience}
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		if text == "" {
			continue
		}
		g.Go(func() error {
			vec, err := m.embedder.Embed(gctx, text)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
	}

	scores := make([]float64, 3)
	for i := range scores {
		score, err := similarity(vectors[0], vectors[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
		}
		scores[i] = score
	}

	matched := m.skills.Match(resume, ParseSkills(job.SkillsRequired))
	if matched == nil {
		matched = []string{}
	}

	result := &Result{
		MatchScore:      scores[0],
		SkillsMatch:     scores[1],
		ExperienceMatch: scores[2],
		MatchedSkills:   matched,
		ExperienceYears: m.experience.Estimate(resume),
		Recommendation:  Recommend(scores[0]),
	}
	result.Summary = fmt.Sprintf(summaryTemplate, result.MatchScore, result.SkillsMatch, result.ExperienceMatch)

	log.Debug("resume matched",
		zap.Float64("match_score", result.MatchScore),
		zap.Float64("skills_match", result.SkillsMatch),
		zap.Float64("experience_match", result.ExperienceMatch),
		zap.String("recommendation", string(result.Recommendation)),
	)

	return result, nil
}

// similarity converts two vectors into a score in [0,100] with one decimal.
// A missing view vector scores 0.
func similarity(resume, view []float32) (float64, error) {
	if view == nil {
		return 0, nil
	}
	cos, err := embedding.Cosine(resume, view)
	if err != nil {
		return 0, err
	}
	cos = max(0, min(1, cos))
	return utils.Round1(cos * 100), nil
}
