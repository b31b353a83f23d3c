// jobs.go persists Job rows. Every status change is a conditional update so a
// job is claimed by at most one worker.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobPending: {JobRunning},
	JobRunning: {JobCompleted, JobFailed},
}

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NewJob builds a PENDING job with input marshaled to JSON.
func NewJob(projectID string, moduleID *string, jobType JobType, input any) (*Job, error) {
	job := &Job{
		ProjectID: projectID,
		ModuleID:  moduleID,
		Type:      jobType,
		Status:    JobPending,
	}
	if input != nil {
		data, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("marshal job input: %w", err)
		}
		job.Input = datatypes.JSON(data)
	}
	return job, nil
}

// CreateJob inserts a job as PENDING.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	job.Status = JobPending
	job.Progress = 0
	if err := s.conn(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob loads a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := s.conn(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return nil, mapNotFound(err, ErrJobNotFound)
	}
	return &job, nil
}

// JobForUser loads a job only if userID owns its project.
func (s *Store) JobForUser(ctx context.Context, userID, jobID string) (*Job, error) {
	db := s.conn(ctx)
	var job Job
	err := db.Where("id = ? AND project_id IN (?)", jobID, ownedProjects(db, userID)).First(&job).Error
	if err != nil {
		return nil, mapNotFound(err, ErrJobNotFound)
	}
	return &job, nil
}

// ListJobs returns a project's jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, projectID string) ([]Job, error) {
	var jobs []Job
	err := s.conn(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	return jobs, nil
}

// ClaimNextJob moves the oldest PENDING job to RUNNING and returns it. It
// returns nil when there is nothing to claim or another worker won the race.
func (s *Store) ClaimNextJob(ctx context.Context) (*Job, error) {
	var claimed *Job
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var job Job
		err := tx.Where("status = ?", JobPending).
			Order("created_at ASC").
			Limit(1).
			Find(&job).Error
		if err != nil {
			return fmt.Errorf("query pending job: %w", err)
		}
		if job.ID == "" {
			return nil
		}

		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, JobPending).
			Updates(map[string]any{
				"status":     JobRunning,
				"started_at": s.now(),
				"attempts":   gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("claim job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.First(&job, "id = ?", job.ID).Error; err != nil {
			return fmt.Errorf("reload job: %w", err)
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// RecordJobAttempt bumps the attempt counter of a running job before a retry.
func (s *Store) RecordJobAttempt(ctx context.Context, jobID string) error {
	err := s.conn(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", jobID, JobRunning).
		Update("attempts", gorm.Expr("attempts + 1")).Error
	if err != nil {
		return fmt.Errorf("update job attempts: %w", err)
	}
	return nil
}

// UpdateJobProgress sets the progress of a running job, clamped to 0..100.
func (s *Store) UpdateJobProgress(ctx context.Context, jobID string, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	err := s.conn(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", jobID, JobRunning).
		Update("progress", pct).Error
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// CompleteJob marks a running job COMPLETED with result stored as JSON.
func (s *Store) CompleteJob(ctx context.Context, jobID string, result any) error {
	updates := map[string]any{
		"progress":    100,
		"finished_at": s.now(),
	}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
		updates["result"] = datatypes.JSON(data)
	}
	return s.finishJob(ctx, jobID, JobCompleted, updates)
}

// FailJob marks a running job FAILED.
func (s *Store) FailJob(ctx context.Context, jobID, message, category string) error {
	return s.finishJob(ctx, jobID, JobFailed, map[string]any{
		"error":          message,
		"error_category": category,
		"finished_at":    s.now(),
	})
}

func (s *Store) finishJob(ctx context.Context, jobID string, to JobStatus, updates map[string]any) error {
	if !JobRunning.CanTransition(to) {
		return fmt.Errorf("job %s: cannot move to %s", jobID, to)
	}
	updates["status"] = to
	res := s.conn(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", jobID, JobRunning).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("finish job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s is not running", jobID)
	}
	return nil
}

// FailInterruptedJobs marks jobs left RUNNING by a previous process as FAILED
// and returns how many were changed.
func (s *Store) FailInterruptedJobs(ctx context.Context) (int64, error) {
	res := s.conn(ctx).Model(&Job{}).
		Where("status = ?", JobRunning).
		Updates(map[string]any{
			"status":         JobFailed,
			"error":          "interrupted by server restart",
			"error_category": "interrupted",
			"finished_at":    s.now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FinishedJobsBefore lists COMPLETED and FAILED jobs that finished before
// cutoff, oldest first.
func (s *Store) FinishedJobsBefore(ctx context.Context, cutoff time.Time) ([]Job, error) {
	var jobs []Job
	err := s.conn(ctx).
		Where("status IN ? AND finished_at < ?", []JobStatus{JobCompleted, JobFailed}, cutoff.UTC()).
		Order("finished_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("query finished jobs: %w", err)
	}
	return jobs, nil
}

// DeleteJobs removes finished jobs by ID. Jobs that are still PENDING or
// RUNNING are left alone.
func (s *Store) DeleteJobs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).
		Where("id IN ? AND status IN ?", ids, []JobStatus{JobCompleted, JobFailed}).
		Delete(&Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
