package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/logger"
)

type NewJob struct {
	Title            string    `json:"title" mapstructure:"title"`
	Department       string    `json:"department" mapstructure:"department"`
	Location         string    `json:"location" mapstructure:"location"`
	JobType          string    `json:"job_type" mapstructure:"job-type"`
	ExperienceLevel  string    `json:"experience_level" mapstructure:"experience-level"`
	Description      string    `json:"description" mapstructure:"description"`
	Requirements     string    `json:"requirements" mapstructure:"requirements"`
	Responsibilities string    `json:"responsibilities" mapstructure:"responsibilities"`
	SkillsRequired   string    `json:"skills_required" mapstructure:"skills-required"`
	Status           JobStatus `json:"status" mapstructure:"status"`
}

// CreateJob stores a new job. Jobs start as drafts unless a status is given.
func (s *Service) CreateJob(ctx context.Context, in NewJob) (*Job, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: job title is required", ErrValidation)
	}

	status := in.Status
	if status == "" {
		status = JobDraft
	}
	if _, err := ParseJobStatus(string(status)); err != nil {
		return nil, err
	}

	now := s.timestamp()
	job := &Job{
		Title:            title,
		Department:       strings.TrimSpace(in.Department),
		Location:         strings.TrimSpace(in.Location),
		JobType:          strings.TrimSpace(in.JobType),
		ExperienceLevel:  strings.TrimSpace(in.ExperienceLevel),
		Description:      strings.TrimSpace(in.Description),
		Requirements:     strings.TrimSpace(in.Requirements),
		Responsibilities: strings.TrimSpace(in.Responsibilities),
		SkillsRequired:   strings.TrimSpace(in.SkillsRequired),
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.repo.Tx(ctx, func(q Queries) error {
		if err := q.CreateJob(ctx, job); err != nil {
			return err
		}
		return q.LogActivity(ctx, ActivityEntry{
			Action:     "job_created",
			EntityType: "job",
			EntityID:   job.ID,
			Details:    job.Title,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	s.logger.Info("job created", logger.Job(job.ID), zap.String("status", string(job.Status)))
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id int64) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	if filter.Status != "" {
		if _, err := ParseJobStatus(string(filter.Status)); err != nil {
			return nil, err
		}
	}
	return s.repo.ListJobs(ctx, filter)
}

// SetJobStatus opens, pauses or closes a job.
func (s *Service) SetJobStatus(ctx context.Context, id int64, status JobStatus) (*Job, error) {
	if _, err := ParseJobStatus(string(status)); err != nil {
		return nil, err
	}

	var job *Job
	err := s.repo.Tx(ctx, func(q Queries) error {
		now := s.timestamp()
		if err := q.UpdateJobStatus(ctx, id, status, now); err != nil {
			return err
		}
		var err error
		if job, err = q.GetJob(ctx, id); err != nil {
			return err
		}
		return q.LogActivity(ctx, ActivityEntry{
			Action:     "job_status_changed",
			EntityType: "job",
			EntityID:   id,
			Details:    string(status),
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job status changed", logger.Job(id), zap.String("status", string(status)))
	return job, nil
}
