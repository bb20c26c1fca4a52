package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/spigell/hire-matcher/internal/matcher"
	"github.com/spigell/hire-matcher/internal/pipeline"
	"github.com/spigell/hire-matcher/internal/store"
)

// stubScorer returns the score registered for a resume text.
type stubScorer struct {
	mu     sync.Mutex
	scores map[string]float64
	err    error
	calls  int
}

func (s *stubScorer) Match(_ context.Context, resumeText string, _ matcher.JobProfile) (*matcher.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	score := s.scores[resumeText]
	return &matcher.Result{
		MatchScore:      score,
		SkillsMatch:     score,
		ExperienceMatch: score,
		MatchedSkills:   []string{"go"},
		Recommendation:  matcher.Recommend(score),
		Summary:         "stub",
	}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc    *pipeline.Service
	store  *store.Store
	scorer *stubScorer
	clock  *clock
	job    *pipeline.Job
}

func newFixture(t *testing.T, cfg pipeline.Config) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "pipeline.db"),
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store:  st,
		scorer: &stubScorer{scores: map[string]float64{}},
		clock:  &clock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.svc = pipeline.NewService(st, f.scorer, cfg, zaptest.NewLogger(t)).WithClock(f.clock.Now)

	f.job, err = f.svc.CreateJob(ctx, pipeline.NewJob{
		Title:          "Backend Engineer",
		Description:    "Build APIs in Go",
		SkillsRequired: "Go, PostgreSQL",
		Status:         pipeline.JobActive,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return f
}

func (f *fixture) submit(t *testing.T, email string, score float64) *pipeline.Application {
	t.Helper()
	resume := "resume of " + email
	f.scorer.scores[resume] = score
	app, err := f.svc.Submit(context.Background(), pipeline.Submission{
		JobID:      f.job.ID,
		Email:      email,
		FullName:   "Candidate " + email,
		ResumeText: resume,
	})
	if err != nil {
		t.Fatalf("submit %s: %v", email, err)
	}
	return app
}

func (f *fixture) application(t *testing.T, id int64) *pipeline.Application {
	t.Helper()
	app, err := f.svc.GetApplication(context.Background(), id)
	if err != nil {
		t.Fatalf("get application %d: %v", id, err)
	}
	return app
}

func enableAutoInvite(t *testing.T, svc *pipeline.Service, threshold int) {
	t.Helper()
	on := true
	if _, err := svc.UpdateSettings(context.Background(), pipeline.SettingsUpdate{
		AutoInviteScreening: &on,
		AutoInviteThreshold: &threshold,
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
}

func TestSubmitStoresScoredApplication(t *testing.T) {
	f := newFixture(t, pipeline.Config{})

	app := f.submit(t, "Ann@Example.com", 82)

	if app.Status != pipeline.StatusPending {
		t.Fatalf("expected pending, got %s", app.Status)
	}
	if app.MatchScore == nil || *app.MatchScore != 82 {
		t.Fatalf("expected score 82, got %v", app.MatchScore)
	}
	if app.AIRecommendation != matcher.StrongYes {
		t.Fatalf("expected strong_yes, got %s", app.AIRecommendation)
	}

	stored := f.application(t, app.ID)
	if stored.CandidateEmail != "ann@example.com" || stored.JobTitle != "Backend Engineer" {
		t.Fatalf("unexpected stored application: %+v", stored)
	}

	candidate, err := f.store.CandidateByEmail(context.Background(), "ann@example.com")
	if err != nil {
		t.Fatalf("candidate by email: %v", err)
	}
	if candidate.ResumeText != "resume of Ann@Example.com" || len(candidate.Skills) != 1 {
		t.Fatalf("expected resume profile on candidate, got %+v", candidate)
	}
}

func TestSubmitTwiceKeepsOneApplication(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	f.submit(t, "ann@example.com", 70)

	_, err := f.svc.Submit(ctx, pipeline.Submission{
		JobID:      f.job.ID,
		Email:      "ANN@example.com ",
		FullName:   "Ann",
		ResumeText: "another resume",
	})
	if !errors.Is(err, pipeline.ErrDuplicateApplication) {
		t.Fatalf("expected ErrDuplicateApplication, got %v", err)
	}

	stats, err := f.svc.ApplicationStats(ctx, f.job.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected a single application, got %d", stats.Total)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	draft, err := f.svc.CreateJob(ctx, pipeline.NewJob{Title: "Draft role"})
	if err != nil {
		t.Fatalf("create draft job: %v", err)
	}

	tests := []struct {
		name string
		sub  pipeline.Submission
		want error
	}{
		{"bad email", pipeline.Submission{JobID: f.job.ID, Email: "not-an-email", FullName: "Ann"}, pipeline.ErrValidation},
		{"missing name", pipeline.Submission{JobID: f.job.ID, Email: "ann@example.com"}, pipeline.ErrValidation},
		{"missing job", pipeline.Submission{JobID: 999, Email: "ann@example.com", FullName: "Ann"}, pipeline.ErrNotFound},
		{"draft job", pipeline.Submission{JobID: draft.ID, Email: "ann@example.com", FullName: "Ann"}, pipeline.ErrJobNotAccepting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Submit(ctx, tt.sub); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSubmitWithoutScoresWhenScoringFails(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	f.scorer.err = matcher.ErrScoringUnavailable

	app, err := f.svc.Submit(context.Background(), pipeline.Submission{
		JobID:      f.job.ID,
		Email:      "ann@example.com",
		FullName:   "Ann",
		ResumeText: "Go developer",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if app.MatchScore != nil || app.AIRecommendation != "" {
		t.Fatalf("expected unscored application, got %+v", app)
	}
}

func TestSubmitWithoutScoresWhenExtractionFails(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	f.svc.WithExtractor(func(context.Context, []byte, string) (string, error) {
		return "", errors.New("corrupt pdf")
	})

	app, err := f.svc.Submit(context.Background(), pipeline.Submission{
		JobID:           f.job.ID,
		Email:           "ann@example.com",
		FullName:        "Ann",
		Resume:          []byte("%PDF-broken"),
		ResumeMediaType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if app.MatchScore != nil {
		t.Fatalf("expected unscored application")
	}
	if f.scorer.calls != 0 {
		t.Fatalf("scorer should not run without text, ran %d times", f.scorer.calls)
	}
}

func TestSecondActiveScreeningIsRejected(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	app := f.submit(t, "ann@example.com", 70)
	first, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: app.ID})
	if err != nil {
		t.Fatalf("create screening: %v", err)
	}
	if first.Source != pipeline.SourceManual || first.Status != pipeline.ScreeningScheduled {
		t.Fatalf("unexpected screening: %+v", first)
	}

	if _, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: app.ID}); !errors.Is(err, pipeline.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	_, total, err := f.svc.ListScreenings(ctx, pipeline.ScreeningFilter{ApplicationID: app.ID})
	if err != nil {
		t.Fatalf("list screenings: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one screening, got %d", total)
	}
	if got := f.application(t, app.ID).Status; got != pipeline.StatusScreening {
		t.Fatalf("expected screening status, got %s", got)
	}
}

func TestCompleteScreeningMovesApplication(t *testing.T) {
	tests := []struct {
		name       string
		eval       pipeline.Evaluation
		wantRec    pipeline.ScreeningRecommendation
		wantStatus pipeline.ApplicationStatus
		wantScore  float64
	}{
		{
			name:       "pass",
			eval:       pipeline.Evaluation{TechnicalScore: 80, CommunicationScore: 70, CulturalFitScore: 60},
			wantRec:    pipeline.Pass,
			wantStatus: pipeline.StatusShortlisted,
			wantScore:  71.5,
		},
		{
			name:       "fail",
			eval:       pipeline.Evaluation{TechnicalScore: 40, CommunicationScore: 40, CulturalFitScore: 40},
			wantRec:    pipeline.Fail,
			wantStatus: pipeline.StatusRejected,
			wantScore:  40,
		},
		{
			name:       "explicit borderline",
			eval:       pipeline.Evaluation{TechnicalScore: 90, CommunicationScore: 90, CulturalFitScore: 90, Recommendation: pipeline.Borderline},
			wantRec:    pipeline.Borderline,
			wantStatus: pipeline.StatusRejected,
			wantScore:  90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, pipeline.Config{})
			ctx := context.Background()

			app := f.submit(t, "ann@example.com", 70)
			sc, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: app.ID})
			if err != nil {
				t.Fatalf("create screening: %v", err)
			}
			if _, err := f.svc.StartScreening(ctx, sc.ID); err != nil {
				t.Fatalf("start screening: %v", err)
			}
			f.clock.Advance(45 * time.Minute)

			done, err := f.svc.CompleteScreening(ctx, sc.ID, tt.eval)
			if err != nil {
				t.Fatalf("complete screening: %v", err)
			}
			if done.Status != pipeline.ScreeningCompleted || done.CompletedAt == nil {
				t.Fatalf("expected completed screening with timestamp, got %+v", done)
			}
			if done.Recommendation != tt.wantRec {
				t.Fatalf("expected %s, got %s", tt.wantRec, done.Recommendation)
			}
			if done.OverallScore == nil || *done.OverallScore != tt.wantScore {
				t.Fatalf("expected overall %.1f, got %v", tt.wantScore, done.OverallScore)
			}
			if done.DurationMinutes == nil || *done.DurationMinutes != 45 {
				t.Fatalf("expected 45 minutes, got %v", done.DurationMinutes)
			}
			if got := f.application(t, app.ID).Status; got != tt.wantStatus {
				t.Fatalf("expected application %s, got %s", tt.wantStatus, got)
			}
		})
	}
}

func TestCompleteScreeningValidatesScores(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	app := f.submit(t, "ann@example.com", 70)
	sc, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: app.ID})
	if err != nil {
		t.Fatalf("create screening: %v", err)
	}

	_, err = f.svc.CompleteScreening(ctx, sc.ID, pipeline.Evaluation{TechnicalScore: 120})
	if !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	got, err := f.svc.GetScreening(ctx, sc.ID)
	if err != nil {
		t.Fatalf("get screening: %v", err)
	}
	if got.Status != pipeline.ScreeningScheduled {
		t.Fatalf("expected screening to stay scheduled, got %s", got.Status)
	}
}

func TestCancelScreening(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	app := f.submit(t, "ann@example.com", 70)
	sc, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: app.ID})
	if err != nil {
		t.Fatalf("create screening: %v", err)
	}

	cancelled, err := f.svc.CancelScreening(ctx, sc.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != pipeline.ScreeningCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := f.application(t, app.ID).Status; got != pipeline.StatusPending {
		t.Fatalf("expected application back to pending, got %s", got)
	}

	if _, err := f.svc.CancelScreening(ctx, sc.ID); !errors.Is(err, pipeline.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second cancel, got %v", err)
	}
	if _, err := f.svc.CompleteScreening(ctx, sc.ID, pipeline.Evaluation{}); !errors.Is(err, pipeline.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on complete, got %v", err)
	}

	// a new screening is allowed once the old one is cancelled
	next, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: app.ID})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	shortlisted := pipeline.StatusShortlisted
	if _, err := f.svc.UpdateApplication(ctx, app.ID, pipeline.ApplicationUpdate{Status: &shortlisted}); err != nil {
		t.Fatalf("update application: %v", err)
	}
	if _, err := f.svc.CancelScreening(ctx, next.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.application(t, app.ID).Status; got != pipeline.StatusShortlisted {
		t.Fatalf("cancel should not touch a shortlisted application, got %s", got)
	}
}

func TestBulkInviteSkipsActiveScreenings(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	a := f.submit(t, "a@example.com", 70)
	b := f.submit(t, "b@example.com", 70)
	c := f.submit(t, "c@example.com", 70)

	if _, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: b.ID}); err != nil {
		t.Fatalf("create screening: %v", err)
	}

	res, err := f.svc.BulkInvite(ctx, []int64{a.ID, b.ID, c.ID, 999}, "")
	if err != nil {
		t.Fatalf("bulk invite: %v", err)
	}
	if res.Invited != 2 || res.Skipped != 2 {
		t.Fatalf("expected 2 invited and 2 skipped, got %+v", res)
	}
	if res.Reasons[b.ID] != "active screening exists" || res.Reasons[999] != "application not found" {
		t.Fatalf("unexpected reasons: %v", res.Reasons)
	}

	screenings, total, err := f.svc.ListScreenings(ctx, pipeline.ScreeningFilter{ApplicationID: a.ID})
	if err != nil {
		t.Fatalf("list screenings: %v", err)
	}
	if total != 1 || screenings[0].Source != pipeline.SourceBulk {
		t.Fatalf("expected one bulk screening for A, got %+v", screenings)
	}

	_, total, err = f.svc.ListScreenings(ctx, pipeline.ScreeningFilter{ApplicationID: b.ID})
	if err != nil {
		t.Fatalf("list screenings: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected B to keep exactly one screening, got %d", total)
	}
}

func TestAutoInviteOnSubmit(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()
	enableAutoInvite(t, f.svc, 75)

	strong := f.submit(t, "strong@example.com", 75)
	weak := f.submit(t, "weak@example.com", 74.9)

	if strong.Status != pipeline.StatusScreening {
		t.Fatalf("expected strong candidate to be invited, got %s", strong.Status)
	}
	if got := f.application(t, weak.ID).Status; got != pipeline.StatusPending {
		t.Fatalf("expected weak candidate to stay pending, got %s", got)
	}

	screenings, _, err := f.svc.ListScreenings(ctx, pipeline.ScreeningFilter{ApplicationID: strong.ID})
	if err != nil {
		t.Fatalf("list screenings: %v", err)
	}
	if len(screenings) != 1 || screenings[0].Source != pipeline.SourceAuto {
		t.Fatalf("expected one auto screening, got %+v", screenings)
	}
}

func TestAutoInviteSweep(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	high := f.submit(t, "high@example.com", 90)
	f.submit(t, "low@example.com", 50)
	f.scorer.err = errors.New("offline")
	unscored, err := f.svc.Submit(ctx, pipeline.Submission{JobID: f.job.ID, Email: "none@example.com", FullName: "None", ResumeText: "x"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.scorer.err = nil

	res, err := f.svc.AutoInvite(ctx, f.job.ID)
	if err != nil {
		t.Fatalf("auto invite while disabled: %v", err)
	}
	if res.Invited != 0 {
		t.Fatalf("expected nothing while disabled, got %+v", res)
	}

	enableAutoInvite(t, f.svc, 80)

	res, err = f.svc.AutoInvite(ctx, f.job.ID)
	if err != nil {
		t.Fatalf("auto invite: %v", err)
	}
	if res.Invited != 1 || len(res.InvitedIDs) != 1 || res.InvitedIDs[0] != high.ID {
		t.Fatalf("expected only the high scorer, got %+v", res)
	}
	if got := f.application(t, unscored.ID).Status; got != pipeline.StatusPending {
		t.Fatalf("unscored application must not be invited, got %s", got)
	}

	res, err = f.svc.AutoInvite(ctx, f.job.ID)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.Invited != 0 {
		t.Fatalf("second sweep should invite nobody, got %+v", res)
	}
}

func TestUpdateApplicationTransitions(t *testing.T) {
	hired := pipeline.StatusHired

	t.Run("permissive", func(t *testing.T) {
		f := newFixture(t, pipeline.Config{})
		app := f.submit(t, "ann@example.com", 70)

		got, err := f.svc.UpdateApplication(context.Background(), app.ID, pipeline.ApplicationUpdate{Status: &hired})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if got.Status != pipeline.StatusHired {
			t.Fatalf("expected hired, got %s", got.Status)
		}
	})

	t.Run("strict", func(t *testing.T) {
		f := newFixture(t, pipeline.Config{StrictTransitions: true})
		app := f.submit(t, "ann@example.com", 70)

		_, err := f.svc.UpdateApplication(context.Background(), app.ID, pipeline.ApplicationUpdate{Status: &hired})
		if !errors.Is(err, pipeline.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if got := f.application(t, app.ID).Status; got != pipeline.StatusPending {
			t.Fatalf("expected status unchanged, got %s", got)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newFixture(t, pipeline.Config{})
		app := f.submit(t, "ann@example.com", 70)
		bogus := pipeline.ApplicationStatus("archived")

		_, err := f.svc.UpdateApplication(context.Background(), app.ID, pipeline.ApplicationUpdate{Status: &bogus})
		if !errors.Is(err, pipeline.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestShortlistAndReject(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	app := f.submit(t, "ann@example.com", 70)

	got, err := f.svc.Shortlist(ctx, app.ID)
	if err != nil {
		t.Fatalf("shortlist: %v", err)
	}
	if got.Status != pipeline.StatusShortlisted {
		t.Fatalf("expected shortlisted, got %s", got.Status)
	}
	if _, err := f.svc.Shortlist(ctx, app.ID); !errors.Is(err, pipeline.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := f.svc.Reject(ctx, app.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.Reject(ctx, app.ID); !errors.Is(err, pipeline.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for rejected application, got %v", err)
	}
	if _, err := f.svc.Reject(ctx, 999); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteApplicationRemovesScreenings(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	app := f.submit(t, "ann@example.com", 70)
	if _, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: app.ID}); err != nil {
		t.Fatalf("create screening: %v", err)
	}

	if err := f.svc.DeleteApplication(ctx, app.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetApplication(ctx, app.ID); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, total, err := f.svc.ListScreenings(ctx, pipeline.ScreeningFilter{ApplicationID: app.ID})
	if err != nil {
		t.Fatalf("list screenings: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected screenings to be removed, got %d", total)
	}
}

func TestUpdateSettingsValidatesThreshold(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	for _, v := range []int{-1, 101} {
		threshold := v
		if _, err := f.svc.UpdateSettings(ctx, pipeline.SettingsUpdate{AutoInviteThreshold: &threshold}); !errors.Is(err, pipeline.ErrValidation) {
			t.Fatalf("threshold %d: expected ErrValidation, got %v", v, err)
		}
	}

	threshold := 60
	got, err := f.svc.UpdateSettings(ctx, pipeline.SettingsUpdate{AutoInviteThreshold: &threshold})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if got.AutoInviteThreshold != 60 || got.AutoInviteScreening {
		t.Fatalf("unexpected settings: %+v", got)
	}

	loaded, err := f.svc.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if loaded.AutoInviteThreshold != 60 {
		t.Fatalf("expected persisted threshold 60, got %d", loaded.AutoInviteThreshold)
	}
}

func TestJobStatusChange(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	job, err := f.svc.SetJobStatus(ctx, f.job.ID, pipeline.JobClosed)
	if err != nil {
		t.Fatalf("set job status: %v", err)
	}
	if job.Status != pipeline.JobClosed {
		t.Fatalf("expected closed, got %s", job.Status)
	}

	_, err = f.svc.Submit(ctx, pipeline.Submission{JobID: f.job.ID, Email: "ann@example.com", FullName: "Ann", ResumeText: "x"})
	if !errors.Is(err, pipeline.ErrJobNotAccepting) {
		t.Fatalf("expected ErrJobNotAccepting, got %v", err)
	}

	activity, err := f.svc.Activity(ctx, 0)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(activity) == 0 || activity[0].Action != "job_status_changed" {
		t.Fatalf("expected latest activity to be the status change, got %+v", activity)
	}
}

func TestScreeningNotesListAndStats(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	first := f.submit(t, "ann@example.com", 82)
	second := f.submit(t, "bob@example.com", 64)

	done, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: first.ID})
	if err != nil {
		t.Fatalf("create screening: %v", err)
	}
	open, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: second.ID})
	if err != nil {
		t.Fatalf("create screening: %v", err)
	}

	if _, err := f.svc.CompleteScreening(ctx, done.ID, pipeline.Evaluation{
		TechnicalScore:     90,
		CommunicationScore: 80,
		CulturalFitScore:   70,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	noted, err := f.svc.UpdateScreeningNotes(ctx, open.ID, "call moved to Friday")
	if err != nil {
		t.Fatalf("notes: %v", err)
	}
	if noted.Notes != "call moved to Friday" || noted.Status != pipeline.ScreeningScheduled {
		t.Fatalf("unexpected screening after notes update: %+v", noted)
	}

	scheduled, total, err := f.svc.ListScreenings(ctx, pipeline.ScreeningFilter{Status: pipeline.ScreeningScheduled})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(scheduled) != 1 || scheduled[0].ID != open.ID {
		t.Fatalf("expected only screening %d, got %d items (total %d)", open.ID, len(scheduled), total)
	}

	byApp, _, err := f.svc.ListScreenings(ctx, pipeline.ScreeningFilter{ApplicationID: first.ID})
	if err != nil {
		t.Fatalf("list by application: %v", err)
	}
	if len(byApp) != 1 || byApp[0].ID != done.ID {
		t.Fatalf("expected screening %d for application %d, got %+v", done.ID, first.ID, byApp)
	}

	if _, _, err := f.svc.ListScreenings(ctx, pipeline.ScreeningFilter{Status: "paused"}); !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}

	stats, err := f.svc.ScreeningStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.ByStatus[pipeline.ScreeningCompleted] != 1 || stats.ByStatus[pipeline.ScreeningScheduled] != 1 {
		t.Fatalf("unexpected status counts: %+v", stats)
	}
	if stats.ByRecommendation[pipeline.StrongPass] != 1 {
		t.Fatalf("expected one strong_pass, got %v", stats.ByRecommendation)
	}
	if stats.AverageOverall == nil || *stats.AverageOverall != 81.5 {
		t.Fatalf("expected average overall 81.5, got %v", stats.AverageOverall)
	}
}

func TestConcurrentScreeningsLeaveOneActive(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()
	app := f.submit(t, "ann@example.com", 80)

	const callers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		invalid int
		other   []error
	)
	start := make(chan struct{})
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateScreening(ctx, pipeline.NewScreening{ApplicationID: app.ID})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, pipeline.ErrInvalidTransition):
				invalid++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if ok != 1 || invalid != callers-1 || len(other) != 0 {
		t.Fatalf("expected 1 success and %d ErrInvalidTransition, got ok=%d invalid=%d other=%v", callers-1, ok, invalid, other)
	}

	active, total, err := f.svc.ListScreenings(ctx, pipeline.ScreeningFilter{ApplicationID: app.ID})
	if err != nil {
		t.Fatalf("list screenings: %v", err)
	}
	if total != 1 || active[0].Status != pipeline.ScreeningScheduled {
		t.Fatalf("expected exactly one scheduled screening, got %+v", active)
	}
	if got := f.application(t, app.ID).Status; got != pipeline.StatusScreening {
		t.Fatalf("expected application in screening, got %s", got)
	}
}

func TestConcurrentSubmitsKeepOneApplication(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()
	f.scorer.scores["same resume"] = 70

	const callers = 10
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ok    int
		dup   int
		other []error
	)
	start := make(chan struct{})
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			email := "same@example.com"
			if i%2 == 0 {
				email = "Same@Example.com"
			}
			_, err := f.svc.Submit(ctx, pipeline.Submission{
				JobID:      f.job.ID,
				Email:      email,
				FullName:   "Same Candidate",
				ResumeText: "same resume",
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, pipeline.ErrDuplicateApplication):
				dup++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if ok != 1 || dup != callers-1 || len(other) != 0 {
		t.Fatalf("expected 1 success and %d duplicates, got ok=%d dup=%d other=%v", callers-1, ok, dup, other)
	}

	_, total, err := f.svc.ListApplications(ctx, pipeline.ApplicationFilter{JobID: f.job.ID})
	if err != nil {
		t.Fatalf("list applications: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one application, got %d", total)
	}
}

// failingRepo breaks LockApplication for one id inside transactions.
type failingRepo struct {
	pipeline.Repository
	failID int64
	err    error
}

func (r *failingRepo) Tx(ctx context.Context, fn func(q pipeline.Queries) error) error {
	return r.Repository.Tx(ctx, func(q pipeline.Queries) error {
		return fn(failingQueries{Queries: q, failID: r.failID, err: r.err})
	})
}

type failingQueries struct {
	pipeline.Queries
	failID int64
	err    error
}

func (q failingQueries) LockApplication(ctx context.Context, id int64) (*pipeline.Application, error) {
	if id == q.failID {
		return nil, q.err
	}
	return q.Queries.LockApplication(ctx, id)
}

func TestBulkInviteStopsOnStorageError(t *testing.T) {
	f := newFixture(t, pipeline.Config{})
	ctx := context.Background()

	a := f.submit(t, "a@example.com", 70)
	b := f.submit(t, "b@example.com", 70)
	c := f.submit(t, "c@example.com", 70)

	boom := errors.New("database is locked")
	repo := &failingRepo{Repository: f.store, failID: b.ID, err: boom}
	svc := pipeline.NewService(repo, f.scorer, pipeline.Config{}, zaptest.NewLogger(t)).WithClock(f.clock.Now)

	res, err := svc.BulkInvite(ctx, []int64{a.ID, b.ID, c.ID}, "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if res == nil || res.Invited != 1 || res.Skipped != 0 || res.InvitedIDs[0] != a.ID {
		t.Fatalf("expected only A invited and nothing skipped, got %+v", res)
	}

	if got := f.application(t, a.ID).Status; got != pipeline.StatusScreening {
		t.Fatalf("expected A to stay invited, got %s", got)
	}
	for _, id := range []int64{b.ID, c.ID} {
		if got := f.application(t, id).Status; got != pipeline.StatusPending {
			t.Fatalf("expected application %d to stay pending, got %s", id, got)
		}
	}
}
