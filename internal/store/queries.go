package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/hire-matcher/internal/matcher"
	"github.com/spigell/hire-matcher/internal/pipeline"
	"github.com/spigell/hire-matcher/internal/utils"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// queries runs statements on a database or inside a transaction.
type queries struct {
	q queryer
	d dialect
}

var _ pipeline.Queries = (*queries)(nil)

func (s *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

func (s *queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func expectAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, pipeline.ErrNotFound)
	}
	return nil
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, pipeline.ErrNotFound)
	}
	return err
}

// jobs

const jobColumns = `id, title, department, location, job_type, experience_level, description,
	requirements, responsibilities, skills_required, status, created_at, updated_at`

func (s *queries) CreateJob(ctx context.Context, job *pipeline.Job) error {
	id, err := s.insert(ctx, `INSERT INTO jobs (title, department, location, job_type, experience_level, description,
		requirements, responsibilities, skills_required, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Title, job.Department, job.Location, job.JobType, job.ExperienceLevel, job.Description,
		job.Requirements, job.Responsibilities, job.SkillsRequired, string(job.Status),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	job.ID = id
	return nil
}

func scanJob(row scanner) (*pipeline.Job, error) {
	var (
		job                  pipeline.Job
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&job.ID, &job.Title, &job.Department, &job.Location, &job.JobType, &job.ExperienceLevel,
		&job.Description, &job.Requirements, &job.Responsibilities, &job.SkillsRequired, &status,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if job.Status, err = pipeline.ParseJobStatus(status); err != nil {
		return nil, fmt.Errorf("job %d: %w", job.ID, err)
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *queries) GetJob(ctx context.Context, id int64) (*pipeline.Job, error) {
	job, err := scanJob(s.queryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "job", id)
	}
	return job, nil
}

func (s *queries) ListJobs(ctx context.Context, filter pipeline.JobFilter) ([]pipeline.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []pipeline.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *queries) UpdateJobStatus(ctx context.Context, id int64, status pipeline.JobStatus, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, string(status), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return expectAffected(res, "job", id)
}

// candidates

const candidateColumns = `id, email, full_name, phone, resume_text, skills, experience_years, summary, source, created_at, updated_at`

func scanCandidate(row scanner) (*pipeline.Candidate, error) {
	var (
		c                    pipeline.Candidate
		skills               string
		years                sql.NullFloat64
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.Email, &c.FullName, &c.Phone, &c.ResumeText, &skills, &years, &c.Summary,
		&c.Source, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	c.Skills = []string{}
	if skills != "" {
		if err := json.Unmarshal([]byte(skills), &c.Skills); err != nil {
			return nil, fmt.Errorf("candidate %d skills: %w", c.ID, err)
		}
	}
	c.ExperienceYears = floatPtr(years)

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func encodeSkills(skills []string) string {
	if skills == nil {
		skills = []string{}
	}
	data, _ := json.Marshal(skills)
	return string(data)
}

func (s *queries) CandidateByEmail(ctx context.Context, email string) (*pipeline.Candidate, error) {
	c, err := scanCandidate(s.queryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE email = ?`, strings.ToLower(email)))
	if err != nil {
		return nil, notFound(err, "candidate", email)
	}
	return c, nil
}

func (s *queries) GetCandidate(ctx context.Context, id int64) (*pipeline.Candidate, error) {
	c, err := scanCandidate(s.queryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "candidate", id)
	}
	return c, nil
}

func (s *queries) CreateCandidate(ctx context.Context, c *pipeline.Candidate) error {
	id, err := s.insert(ctx, `INSERT INTO candidates (email, full_name, phone, resume_text, skills, experience_years,
		summary, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToLower(c.Email), c.FullName, c.Phone, c.ResumeText, encodeSkills(c.Skills), nullFloat(c.ExperienceYears),
		c.Summary, c.Source, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	c.ID = id
	return nil
}

func (s *queries) UpdateCandidateProfile(ctx context.Context, c *pipeline.Candidate) error {
	res, err := s.exec(ctx, `UPDATE candidates SET resume_text = ?, skills = ?, experience_years = ?, summary = ?, updated_at = ?
		WHERE id = ?`,
		c.ResumeText, encodeSkills(c.Skills), nullFloat(c.ExperienceYears), c.Summary, formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	return expectAffected(res, "candidate", c.ID)
}

// applications

const applicationSelect = `SELECT a.id, a.job_id, a.candidate_id, a.status, a.cover_letter, a.match_score, a.skills_match,
	a.experience_match, a.ai_summary, a.ai_recommendation, a.notes, a.applied_at, a.updated_at,
	c.full_name, c.email, j.title
	FROM applications a
	JOIN candidates c ON c.id = a.candidate_id
	JOIN jobs j ON j.id = a.job_id`

func scanApplication(row scanner) (*pipeline.Application, error) {
	var (
		app                       pipeline.Application
		status, recommendation    string
		match, skills, experience sql.NullFloat64
		appliedAt, updatedAt      string
	)
	if err := row.Scan(&app.ID, &app.JobID, &app.CandidateID, &status, &app.CoverLetter, &match, &skills,
		&experience, &app.AISummary, &recommendation, &app.Notes, &appliedAt, &updatedAt,
		&app.CandidateName, &app.CandidateEmail, &app.JobTitle); err != nil {
		return nil, err
	}

	var err error
	if app.Status, err = pipeline.ParseApplicationStatus(status); err != nil {
		return nil, fmt.Errorf("application %d: %w", app.ID, err)
	}
	if recommendation != "" {
		app.AIRecommendation = matcher.Recommendation(recommendation)
		if !app.AIRecommendation.Valid() {
			return nil, fmt.Errorf("application %d: unknown recommendation %q", app.ID, recommendation)
		}
	}
	app.MatchScore = floatPtr(match)
	app.SkillsMatch = floatPtr(skills)
	app.ExperienceMatch = floatPtr(experience)
	if app.AppliedAt, err = parseTime(appliedAt); err != nil {
		return nil, err
	}
	if app.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *queries) CreateApplication(ctx context.Context, app *pipeline.Application) error {
	id, err := s.insert(ctx, `INSERT INTO applications (job_id, candidate_id, status, cover_letter, match_score,
		skills_match, experience_match, ai_summary, ai_recommendation, notes, applied_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.JobID, app.CandidateID, string(app.Status), app.CoverLetter, nullFloat(app.MatchScore),
		nullFloat(app.SkillsMatch), nullFloat(app.ExperienceMatch), app.AISummary, string(app.AIRecommendation),
		app.Notes, formatTime(app.AppliedAt), formatTime(app.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return pipeline.ErrDuplicateApplication
		}
		return fmt.Errorf("insert application: %w", err)
	}
	app.ID = id
	return nil
}

func (s *queries) ApplicationExists(ctx context.Context, jobID, candidateID int64) (bool, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM applications WHERE job_id = ? AND candidate_id = ?`, jobID, candidateID).Scan(&n); err != nil {
		return false, fmt.Errorf("check application: %w", err)
	}
	return n > 0, nil
}

func (s *queries) GetApplication(ctx context.Context, id int64) (*pipeline.Application, error) {
	app, err := scanApplication(s.queryRow(ctx, applicationSelect+` WHERE a.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "application", id)
	}
	return app, nil
}

func (s *queries) LockApplication(ctx context.Context, id int64) (*pipeline.Application, error) {
	app, err := scanApplication(s.queryRow(ctx, applicationSelect+` WHERE a.id = ?`+s.d.lockSuffix("a"), id))
	if err != nil {
		return nil, notFound(err, "application", id)
	}
	return app, nil
}

func applicationWhere(filter pipeline.ApplicationFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.JobID > 0 {
		clauses = append(clauses, "a.job_id = ?")
		args = append(args, filter.JobID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "a.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		clauses = append(clauses, "(LOWER(c.full_name) LIKE ? OR LOWER(c.email) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if filter.MinScore != nil {
		clauses = append(clauses, "a.match_score >= ?")
		args = append(args, *filter.MinScore)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *queries) ListApplications(ctx context.Context, filter pipeline.ApplicationFilter) ([]pipeline.Application, int, error) {
	where, args := applicationWhere(filter)

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM applications a
		JOIN candidates c ON c.id = a.candidate_id
		JOIN jobs j ON j.id = a.job_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	query := applicationSelect + where +
		` ORDER BY (a.match_score IS NULL), a.match_score DESC, a.applied_at DESC, a.id DESC LIMIT ? OFFSET ?`
	rows, err := s.query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	apps := []pipeline.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		apps = append(apps, *app)
	}
	return apps, total, rows.Err()
}

func (s *queries) UpdateApplication(ctx context.Context, app *pipeline.Application) error {
	res, err := s.exec(ctx, `UPDATE applications SET status = ?, notes = ?, updated_at = ? WHERE id = ?`,
		string(app.Status), app.Notes, formatTime(app.UpdatedAt), app.ID)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return expectAffected(res, "application", app.ID)
}

func (s *queries) DeleteApplication(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return expectAffected(res, "application", id)
}

func (s *queries) ApplicationStats(ctx context.Context, jobID int64) (*pipeline.ApplicationStats, error) {
	where := ""
	var args []any
	if jobID > 0 {
		where = " WHERE job_id = ?"
		args = append(args, jobID)
	}

	stats := &pipeline.ApplicationStats{ByStatus: make(map[pipeline.ApplicationStatus]int, len(pipeline.ApplicationStatuses))}
	for _, st := range pipeline.ApplicationStatuses {
		stats.ByStatus[st] = 0
	}

	rows, err := s.query(ctx, `SELECT status, COUNT(*) FROM applications`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("application stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		st, err := pipeline.ParseApplicationStatus(status)
		if err != nil {
			return nil, err
		}
		stats.ByStatus[st] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := s.queryRow(ctx, `SELECT AVG(match_score) FROM applications`+where, args...).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average match score: %w", err)
	}
	if avg.Valid {
		v := utils.Round1(avg.Float64)
		stats.AverageScore = &v
	}
	return stats, nil
}

// screenings

const screeningColumns = `id, application_id, status, source, scheduled_at, started_at, completed_at, duration_minutes,
	technical_score, communication_score, cultural_fit_score, overall_score, recommendation, notes, created_at, updated_at`

func scanScreening(row scanner) (*pipeline.Screening, error) {
	var (
		sc                                      pipeline.Screening
		status, source, recommendation          string
		scheduledAt, startedAt, completedAt     sql.NullString
		duration                                sql.NullInt64
		technical, communication, cultural, all sql.NullFloat64
		createdAt, updatedAt                    string
	)
	if err := row.Scan(&sc.ID, &sc.ApplicationID, &status, &source, &scheduledAt, &startedAt, &completedAt, &duration,
		&technical, &communication, &cultural, &all, &recommendation, &sc.Notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if sc.Status, err = pipeline.ParseScreeningStatus(status); err != nil {
		return nil, fmt.Errorf("screening %d: %w", sc.ID, err)
	}
	if sc.Source, err = pipeline.ParseScreeningSource(source); err != nil {
		return nil, fmt.Errorf("screening %d: %w", sc.ID, err)
	}
	if recommendation != "" {
		if sc.Recommendation, err = pipeline.ParseScreeningRecommendation(recommendation); err != nil {
			return nil, fmt.Errorf("screening %d: %w", sc.ID, err)
		}
	}
	if sc.ScheduledAt, err = timePtr(scheduledAt); err != nil {
		return nil, err
	}
	if sc.StartedAt, err = timePtr(startedAt); err != nil {
		return nil, err
	}
	if sc.CompletedAt, err = timePtr(completedAt); err != nil {
		return nil, err
	}
	sc.DurationMinutes = intPtr(duration)
	sc.TechnicalScore = floatPtr(technical)
	sc.CommunicationScore = floatPtr(communication)
	sc.CulturalFitScore = floatPtr(cultural)
	sc.OverallScore = floatPtr(all)
	if sc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *queries) CreateScreening(ctx context.Context, sc *pipeline.Screening) error {
	id, err := s.insert(ctx, `INSERT INTO screenings (application_id, status, source, scheduled_at, started_at, completed_at,
		duration_minutes, technical_score, communication_score, cultural_fit_score, overall_score, recommendation, notes,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ApplicationID, string(sc.Status), string(sc.Source), nullTime(sc.ScheduledAt), nullTime(sc.StartedAt),
		nullTime(sc.CompletedAt), nullInt(sc.DurationMinutes), nullFloat(sc.TechnicalScore), nullFloat(sc.CommunicationScore),
		nullFloat(sc.CulturalFitScore), nullFloat(sc.OverallScore), string(sc.Recommendation), sc.Notes,
		formatTime(sc.CreatedAt), formatTime(sc.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("application %d already has an active screening: %w", sc.ApplicationID, pipeline.ErrInvalidTransition)
		}
		return fmt.Errorf("insert screening: %w", err)
	}
	sc.ID = id
	return nil
}

func (s *queries) GetScreening(ctx context.Context, id int64) (*pipeline.Screening, error) {
	sc, err := scanScreening(s.queryRow(ctx, `SELECT `+screeningColumns+` FROM screenings WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "screening", id)
	}
	return sc, nil
}

func (s *queries) LockScreening(ctx context.Context, id int64) (*pipeline.Screening, error) {
	sc, err := scanScreening(s.queryRow(ctx, `SELECT `+screeningColumns+` FROM screenings WHERE id = ?`+s.d.lockSuffix(""), id))
	if err != nil {
		return nil, notFound(err, "screening", id)
	}
	return sc, nil
}

func (s *queries) ActiveScreening(ctx context.Context, applicationID int64) (*pipeline.Screening, error) {
	sc, err := scanScreening(s.queryRow(ctx, `SELECT `+screeningColumns+` FROM screenings
		WHERE application_id = ? AND status IN ('scheduled', 'in_progress') ORDER BY id DESC LIMIT 1`, applicationID))
	if err != nil {
		return nil, notFound(err, "active screening for application", applicationID)
	}
	return sc, nil
}

func (s *queries) UpdateScreening(ctx context.Context, sc *pipeline.Screening) error {
	res, err := s.exec(ctx, `UPDATE screenings SET status = ?, scheduled_at = ?, started_at = ?, completed_at = ?,
		duration_minutes = ?, technical_score = ?, communication_score = ?, cultural_fit_score = ?, overall_score = ?,
		recommendation = ?, notes = ?, updated_at = ? WHERE id = ?`,
		string(sc.Status), nullTime(sc.ScheduledAt), nullTime(sc.StartedAt), nullTime(sc.CompletedAt),
		nullInt(sc.DurationMinutes), nullFloat(sc.TechnicalScore), nullFloat(sc.CommunicationScore),
		nullFloat(sc.CulturalFitScore), nullFloat(sc.OverallScore), string(sc.Recommendation), sc.Notes,
		formatTime(sc.UpdatedAt), sc.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("application %d already has an active screening: %w", sc.ApplicationID, pipeline.ErrInvalidTransition)
		}
		return fmt.Errorf("update screening: %w", err)
	}
	return expectAffected(res, "screening", sc.ID)
}

func (s *queries) DeleteScreenings(ctx context.Context, applicationID int64) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM screenings WHERE application_id = ?`, applicationID)
	if err != nil {
		return 0, fmt.Errorf("delete screenings: %w", err)
	}
	return res.RowsAffected()
}

func (s *queries) ListScreenings(ctx context.Context, filter pipeline.ScreeningFilter) ([]pipeline.Screening, int, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ApplicationID > 0 {
		clauses = append(clauses, "application_id = ?")
		args = append(args, filter.ApplicationID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM screenings`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count screenings: %w", err)
	}

	rows, err := s.query(ctx, `SELECT `+screeningColumns+` FROM screenings`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list screenings: %w", err)
	}
	defer rows.Close()

	out := []pipeline.Screening{}
	for rows.Next() {
		sc, err := scanScreening(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *sc)
	}
	return out, total, rows.Err()
}

func (s *queries) ScreeningStats(ctx context.Context) (*pipeline.ScreeningStats, error) {
	stats := &pipeline.ScreeningStats{
		ByStatus:         make(map[pipeline.ScreeningStatus]int, len(pipeline.ScreeningStatuses)),
		ByRecommendation: map[pipeline.ScreeningRecommendation]int{},
	}
	for _, st := range pipeline.ScreeningStatuses {
		stats.ByStatus[st] = 0
	}

	rows, err := s.query(ctx, `SELECT status, recommendation, COUNT(*) FROM screenings GROUP BY status, recommendation`)
	if err != nil {
		return nil, fmt.Errorf("screening stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status, recommendation string
			n                      int
		)
		if err := rows.Scan(&status, &recommendation, &n); err != nil {
			return nil, err
		}
		st, err := pipeline.ParseScreeningStatus(status)
		if err != nil {
			return nil, err
		}
		stats.ByStatus[st] += n
		stats.Total += n
		if recommendation != "" {
			rec, err := pipeline.ParseScreeningRecommendation(recommendation)
			if err != nil {
				return nil, err
			}
			stats.ByRecommendation[rec] += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := s.queryRow(ctx, `SELECT AVG(overall_score) FROM screenings WHERE status = 'completed'`).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average overall score: %w", err)
	}
	if avg.Valid {
		v := utils.Round1(avg.Float64)
		stats.AverageOverall = &v
	}
	return stats, nil
}

// activity

func (s *queries) LogActivity(ctx context.Context, entry pipeline.ActivityEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if _, err := s.exec(ctx, `INSERT INTO activity_log (action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?)`, entry.Action, entry.EntityType, entry.EntityID, entry.Details, formatTime(entry.CreatedAt)); err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

func (s *queries) ListActivity(ctx context.Context, limit int) ([]pipeline.ActivityEntry, error) {
	rows, err := s.query(ctx, `SELECT id, action, entity_type, entity_id, details, created_at FROM activity_log
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	entries := []pipeline.ActivityEntry{}
	for rows.Next() {
		var (
			e         pipeline.ActivityEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// settings

func (s *queries) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.queryRow(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return value, true, nil
}

func (s *queries) PutSetting(ctx context.Context, key, value string, at time.Time) error {
	_, err := s.exec(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(at))
	return err
}
