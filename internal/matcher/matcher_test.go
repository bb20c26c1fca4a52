package matcher

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/spigell/hire-matcher/internal/embedding"
)

// mapEmbedder returns fixed vectors for known texts and a default otherwise.
type mapEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	def     []float32
	err     error
	seen    []string
}

func (m *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, text)
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return m.def, nil
}

var backendJob = JobProfile{
	Title:            "Backend Engineer",
	Description:      "Build payment APIs",
	Requirements:     "5 years with Go",
	Responsibilities: "Own services",
	SkillsRequired:   `["Go", "PostgreSQL", "Kafka"]`,
	ExperienceLevel:  "senior",
}

func TestMatchScoresViews(t *testing.T) {
	resume := "Go developer, 6 years, PostgreSQL and Redis"
	views := BuildViews(backendJob)

	emb := &mapEmbedder{
		vectors: map[string][]float32{
			resume:           {1, 0},
			views.Overview:   {1, 0},
			views.Skills:     {1, 1},
			views.Experience: {-1, 0},
		},
	}

	res, err := New(emb).Match(context.Background(), "  "+resume+"\n", backendJob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.MatchScore != 100 {
		t.Fatalf("expected overview score 100, got %v", res.MatchScore)
	}
	if res.SkillsMatch != 70.7 {
		t.Fatalf("expected skills score 70.7, got %v", res.SkillsMatch)
	}
	if res.ExperienceMatch != 0 {
		t.Fatalf("negative similarity must clamp to 0, got %v", res.ExperienceMatch)
	}
	if res.Recommendation != StrongYes {
		t.Fatalf("expected strong_yes, got %s", res.Recommendation)
	}
	if got := strings.Join(res.MatchedSkills, ","); got != "Go,PostgreSQL" {
		t.Fatalf("unexpected matched skills: %q", got)
	}
	if res.ExperienceYears == nil || *res.ExperienceYears != 6 {
		t.Fatalf("expected 6 years, got %v", res.ExperienceYears)
	}

	expectSummary := "Resume shows 100% semantic alignment with the role. Skills coverage: 71%. Experience alignment: 0%."
	if res.Summary != expectSummary {
		t.Fatalf("unexpected summary: %q", res.Summary)
	}

	if len(emb.seen) != 4 {
		t.Fatalf("expected resume embedded once and three views, got %d calls", len(emb.seen))
	}
}

func TestMatchScoresStayInBounds(t *testing.T) {
	m := New(embedding.NewHashing(128))

	resumes := []string{
		"Go",
		"Senior Go engineer with 10 years in PostgreSQL, Kafka and payments",
		"Chef. Bakery. 3 years croissants.",
		strings.Repeat("kubernetes terraform ", 200),
	}

	for _, resume := range resumes {
		res, err := m.Match(context.Background(), resume, backendJob)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", resume, err)
		}
		for name, score := range map[string]float64{
			"match":      res.MatchScore,
			"skills":     res.SkillsMatch,
			"experience": res.ExperienceMatch,
		} {
			if score < 0 || score > 100 {
				t.Fatalf("%s score out of bounds: %v", name, score)
			}
			if math.Round(score*10)/10 != score {
				t.Fatalf("%s score not rounded to one decimal: %v", name, score)
			}
		}
		if !res.Recommendation.Valid() {
			t.Fatalf("unexpected recommendation %q", res.Recommendation)
		}
	}
}

func TestMatchSkillEncodingsAgree(t *testing.T) {
	resume := "Worked with python, Docker and AWS"
	m := New(embedding.NewHashing(64))

	jsonJob := backendJob
	jsonJob.SkillsRequired = `["Python", "Docker", "Rust"]`
	commaJob := backendJob
	commaJob.SkillsRequired = "Python, Docker ,Rust,"

	a, err := m.Match(context.Background(), resume, jsonJob)
	if err != nil {
		t.Fatalf("json skills: %v", err)
	}
	b, err := m.Match(context.Background(), resume, commaJob)
	if err != nil {
		t.Fatalf("comma skills: %v", err)
	}

	if strings.Join(a.MatchedSkills, "|") != strings.Join(b.MatchedSkills, "|") {
		t.Fatalf("encodings disagree: %v vs %v", a.MatchedSkills, b.MatchedSkills)
	}
	if strings.Join(a.MatchedSkills, "|") != "Python|Docker" {
		t.Fatalf("unexpected matched skills: %v", a.MatchedSkills)
	}
}

func TestMatchUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		m      *Matcher
		resume string
		job    JobProfile
	}{
		{name: "empty resume", m: New(embedding.NewHashing(8)), resume: "   ", job: backendJob},
		{name: "empty overview", m: New(embedding.NewHashing(8)), resume: "go", job: JobProfile{SkillsRequired: "Go"}},
		{name: "no embedder", m: New(nil), resume: "go", job: backendJob},
		{name: "embedding error", m: New(&mapEmbedder{err: errors.New("quota")}), resume: "go", job: backendJob},
		{
			name:   "lazy build failure",
			m:      New(embedding.NewLazy(func(context.Context) (embedding.Embedder, error) { return nil, errors.New("no model") })),
			resume: "go",
			job:    backendJob,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.m.Match(context.Background(), tt.resume, tt.job)
			if !errors.Is(err, ErrScoringUnavailable) {
				t.Fatalf("expected ErrScoringUnavailable, got %v", err)
			}
			if res != nil {
				t.Fatalf("expected no result, got %+v", res)
			}
		})
	}
}

func TestMatchUsesInjectedHeuristics(t *testing.T) {
	years := 42.0
	m := New(embedding.NewHashing(16),
		WithSkillMatcher(fixedSkills{"Everything"}),
		WithExperienceEstimator(fixedYears{&years}),
	)

	res, err := m.Match(context.Background(), "resume", backendJob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.MatchedSkills) != 1 || res.MatchedSkills[0] != "Everything" {
		t.Fatalf("expected injected skills, got %v", res.MatchedSkills)
	}
	if res.ExperienceYears == nil || *res.ExperienceYears != 42 {
		t.Fatalf("expected injected years, got %v", res.ExperienceYears)
	}
}

type fixedSkills []string

func (f fixedSkills) Match(string, []string) []string { return f }

type fixedYears struct{ v *float64 }

func (f fixedYears) Estimate(string) *float64 { return f.v }

func TestResultMap(t *testing.T) {
	years := 5.0
	res := &Result{
		MatchScore:      80.5,
		SkillsMatch:     60,
		ExperienceMatch: 40,
		MatchedSkills:   []string{"Go"},
		ExperienceYears: &years,
		Recommendation:  StrongYes,
		Summary:         "s",
	}

	got := res.Map()
	expectKeys := []string{"match_score", "skills_match", "experience_match", "skills", "experience_years", "education", "summary", "ai_summary", "recommendation"}
	if len(got) != len(expectKeys) {
		t.Fatalf("expected %d keys, got %d: %v", len(expectKeys), len(got), got)
	}
	for _, k := range expectKeys {
		if _, ok := got[k]; !ok {
			t.Fatalf("missing key %q", k)
		}
	}
	if got["education"] != nil || got["summary"] != nil {
		t.Fatalf("education and summary must be nil: %v", got)
	}
	if got["experience_years"] != 5.0 || got["recommendation"] != "strong_yes" {
		t.Fatalf("unexpected values: %v", got)
	}

	res.ExperienceYears = nil
	if res.Map()["experience_years"] != nil {
		t.Fatal("expected nil experience_years")
	}
}
