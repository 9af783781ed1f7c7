package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	safetystock "github.com/andresuchdata/safety-stock/internal/pipeline/safety_stock"
)

// Batch is the parsed content of one upload.
type Batch struct {
	History  []safetystock.DemandRecord
	Master   []safetystock.ItemMasterRecord
	Forecast []safetystock.ForecastRecord
}

// BatchLoader reads and validates the uploaded files of a job.
type BatchLoader interface {
	LoadBatch(ctx context.Context, jobID string, hasForecast bool) (*Batch, error)
}

// ResultSink persists the output of a calculation stage.
type ResultSink interface {
	SaveHistory(ctx context.Context, jobID string, rows []safetystock.HistoryResult, skipped []safetystock.SkippedGroup) error
	SaveForecast(ctx context.Context, jobID string, rows []safetystock.ForecastResult, skipped []safetystock.SkippedGroup) error
}

// Observer is notified with a snapshot of the job after every persisted change.
type Observer func(job *Job)

// Orchestrator walks a job through its stage plan, persisting the job after
// each transition so progress can be polled.
type Orchestrator struct {
	store     JobStore
	loader    BatchLoader
	sink      ResultSink
	calc      *safetystock.Calculator
	observers []Observer
	log       zerolog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(store JobStore, loader BatchLoader, sink ResultSink, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		loader: loader,
		sink:   sink,
		calc:   safetystock.NewCalculator(log),
		log:    log.With().Str("component", "orchestrator").Logger(),
	}
}

// Observe registers fn to receive job snapshots.
func (o *Orchestrator) Observe(fn Observer) {
	o.observers = append(o.observers, fn)
}

// Run executes every stage of a queued job. The job is claimed first, so a
// job submitted twice only runs once. A stage or store error marks the job
// failed and is returned.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.store.Transition(ctx, jobID, StatusQueued, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}

	o.log.Info().Str("job_id", job.ID).Int("stages", len(job.Plan)).Msg("job started")

	var batch *Batch
	for _, stage := range job.Plan {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, job, err)
		}

		if err := job.Advance(stage); err != nil {
			return o.fail(ctx, job, fmt.Errorf("%s: %w", stage, err))
		}
		if err := o.persist(ctx, job); err != nil {
			return o.fail(ctx, job, err)
		}

		switch stage {
		case StageValidating:
			batch, err = o.loader.LoadBatch(ctx, job.ID, job.HasForecast)
		case StageHistory:
			err = o.runHistory(ctx, job, batch)
		case StageForecast:
			err = o.runForecast(ctx, job, batch)
		}
		if err != nil {
			return o.fail(ctx, job, fmt.Errorf("%s stage: %w", stage, err))
		}
	}

	o.log.Info().
		Str("job_id", job.ID).
		Int("history_rows", job.HistoryRows).
		Int("forecast_rows", job.ForecastRows).
		Int("skipped_groups", job.SkippedRows).
		Msg("job completed")

	return nil
}

func (o *Orchestrator) runHistory(ctx context.Context, job *Job, batch *Batch) error {
	rows, skipped, err := o.calc.CalculateHistory(batch.History, batch.Master)
	if err != nil {
		return err
	}

	if err := o.exporting(ctx, job); err != nil {
		return err
	}
	if err := o.sink.SaveHistory(ctx, job.ID, rows, skipped); err != nil {
		return fmt.Errorf("failed to save history results: %w", err)
	}

	job.HistoryRows = len(rows)
	job.SkippedRows += len(skipped)
	return nil
}

func (o *Orchestrator) runForecast(ctx context.Context, job *Job, batch *Batch) error {
	rows, skipped, err := o.calc.CalculateForecast(batch.Forecast, batch.Master)
	if err != nil {
		return err
	}

	if err := o.exporting(ctx, job); err != nil {
		return err
	}
	if err := o.sink.SaveForecast(ctx, job.ID, rows, skipped); err != nil {
		return fmt.Errorf("failed to save forecast results: %w", err)
	}

	job.ForecastRows = len(rows)
	job.SkippedRows += len(skipped)
	return nil
}

func (o *Orchestrator) exporting(ctx context.Context, job *Job) error {
	job.Message = MessageExporting
	return o.persist(ctx, job)
}

func (o *Orchestrator) persist(ctx context.Context, job *Job) error {
	if err := o.store.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job %s: %w", job.ID, err)
	}
	for _, fn := range o.observers {
		fn(job.Clone())
	}
	return nil
}

// fail records cause on the job. The update uses a context detached from
// ctx so a cancelled or timed out job is still marked failed.
func (o *Orchestrator) fail(ctx context.Context, job *Job, cause error) error {
	job.Fail(cause)
	o.log.Error().Err(cause).Str("job_id", job.ID).Str("stage", string(job.Stage)).Msg("job failed")

	if err := o.persist(context.WithoutCancel(ctx), job); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to record job failure")
	}
	return cause
}
