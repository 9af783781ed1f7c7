package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JobStore persists job state between stages. A job lives from submission
// until it is explicitly deleted.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
	// Transition moves a job from one status to another in a single step and
	// returns the updated job. It fails with ErrInvalidTransition when the
	// stored status is not from, so only one caller can claim a job.
	Transition(ctx context.Context, id string, from, to JobStatus) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Delete(ctx context.Context, id string) error
}

// Repository is the Postgres JobStore, backed by the safety_stock_jobs table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new job repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new job record
func (r *Repository) Create(ctx context.Context, job *Job) error {
	plan, err := json.Marshal(job.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	query := `
		INSERT INTO safety_stock_jobs (
			id, status, plan, stage, stage_index, message, has_forecast,
			history_rows, forecast_rows, skipped_groups, error_message,
			created_at, updated_at, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.db.ExecContext(
		ctx, query,
		job.ID, job.Status, string(plan), job.Stage, job.StageIndex, job.Message, job.HasForecast,
		job.HistoryRows, job.ForecastRows, job.SkippedRows, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.CompletedAt,
	)
	return err
}

// Update writes the mutable fields of an existing job
func (r *Repository) Update(ctx context.Context, job *Job) error {
	query := `
		UPDATE safety_stock_jobs
		SET status = $1, stage = $2, stage_index = $3, message = $4,
		    history_rows = $5, forecast_rows = $6, skipped_groups = $7,
		    error_message = $8, updated_at = $9, started_at = $10, completed_at = $11
		WHERE id = $12
	`

	res, err := r.db.ExecContext(
		ctx, query,
		job.Status, job.Stage, job.StageIndex, job.Message,
		job.HistoryRows, job.ForecastRows, job.SkippedRows,
		job.ErrorMessage, job.UpdatedAt, job.StartedAt, job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, job.ID)
}

// Transition is a conditional update on the stored status
func (r *Repository) Transition(ctx context.Context, id string, from, to JobStatus) (*Job, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE safety_stock_jobs SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now().UTC(), id, from,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrInvalidTransition)
	}
	return job, nil
}

// Get retrieves a job by ID
func (r *Repository) Get(ctx context.Context, id string) (*Job, error) {
	query := `
		SELECT id, status, plan, stage, stage_index, message, has_forecast,
		       history_rows, forecast_rows, skipped_groups, error_message,
		       created_at, updated_at, started_at, completed_at
		FROM safety_stock_jobs
		WHERE id = $1
	`

	job := &Job{}
	var plan []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.Status, &plan, &job.Stage, &job.StageIndex, &job.Message, &job.HasForecast,
		&job.HistoryRows, &job.ForecastRows, &job.SkippedRows, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(plan, &job.Plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan of job %s: %w", id, err)
	}
	return job, nil
}

// Delete removes a job record
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM safety_stock_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	return nil
}
