package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/safety-stock/internal/cache"
	"github.com/andresuchdata/safety-stock/internal/domain"
	"github.com/andresuchdata/safety-stock/internal/pipeline"
	safetystock "github.com/andresuchdata/safety-stock/internal/pipeline/safety_stock"
	"github.com/andresuchdata/safety-stock/internal/repository"
	"github.com/andresuchdata/safety-stock/internal/storage"
)

var (
	// ErrResultsNotReady means the job has not completed yet.
	ErrResultsNotReady = errors.New("results not ready")
	// ErrMissingUpload means a required input file was not uploaded.
	ErrMissingUpload = errors.New("required file missing")
	// ErrUnknownUpload means a file could not be matched to an input kind.
	ErrUnknownUpload = errors.New("unrecognized upload")
	// ErrInvalidWorkbook means an xlsx upload could not be converted.
	ErrInvalidWorkbook = errors.New("invalid workbook")
	// ErrNoForecast means the job was submitted without forecast data.
	ErrNoForecast = errors.New("job has no forecast data")
	// ErrJobRunning means the job cannot be changed while it is processing.
	ErrJobRunning = errors.New("job is running")
)

// Submitter queues a job for asynchronous execution.
type Submitter interface {
	Submit(jobID string) error
}

// CalculationService owns the job lifecycle: it stores uploads, submits
// jobs, and serves progress and results. It is also the BatchLoader and
// ResultSink of the orchestrator.
type CalculationService struct {
	store   pipeline.JobStore
	results repository.ResultRepository
	objects storage.ObjectStorage
	cache   cache.JobCache
	reader  *safetystock.Reader
	worker  Submitter
	newID   func() string
}

func NewCalculationService(
	store pipeline.JobStore,
	results repository.ResultRepository,
	objects storage.ObjectStorage,
	cacheImpl cache.JobCache,
	logger zerolog.Logger,
) *CalculationService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopJobCache()
	}
	return &CalculationService{
		store:   store,
		results: results,
		objects: objects,
		cache:   cacheImpl,
		reader:  safetystock.NewReader(logger),
		newID:   uuid.NewString,
	}
}

// SetWorker wires the queue jobs are submitted to.
func (s *CalculationService) SetWorker(w Submitter) {
	s.worker = w
}

// OnJobUpdate refreshes the cached snapshot. It is registered as an
// orchestrator observer.
func (s *CalculationService) OnJobUpdate(job *pipeline.Job) {
	if err := s.cache.SetJob(context.Background(), job); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("safety stock: cache set job failed")
	}
}

// CreateJob stores the uploaded files and registers a pending job.
// HISTORY_DATA and ITEM_MASTER are required, FORECAST_DATA is optional.
func (s *CalculationService) CreateJob(ctx context.Context, files []*domain.UploadedFile) (*pipeline.Job, error) {
	byKind := make(map[domain.FileKind]*domain.UploadedFile, len(files))
	for _, f := range files {
		kind := f.Kind
		if kind == "" {
			var ok bool
			kind, ok = domain.ClassifyUpload(f.Filename)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownUpload, f.Filename)
			}
		}
		byKind[kind] = f
	}

	for _, kind := range []domain.FileKind{domain.FileHistory, domain.FileItemMaster} {
		if _, ok := byKind[kind]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingUpload, kind.ObjectName())
		}
	}
	_, hasForecast := byKind[domain.FileForecast]

	job := pipeline.NewJob(s.newID(), hasForecast)

	for _, kind := range domain.FileKinds {
		f, ok := byKind[kind]
		if !ok {
			continue
		}

		data := f.Data
		if f.IsXLSX() {
			converted, err := xlsxBytesToCSV(data)
			if err != nil {
				return nil, fmt.Errorf("%w %s: %v", ErrInvalidWorkbook, f.Filename, err)
			}
			data = converted
		}

		if err := s.objects.UploadObject(ctx, storage.JobKey(job.ID, kind.ObjectName()), data); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", f.Filename, err)
		}
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.OnJobUpdate(job)

	log.Info().Str("job_id", job.ID).Bool("forecast", hasForecast).Int("files", len(byKind)).Msg("safety stock: job created")
	return job, nil
}

// StartJob queues a pending job. The job is marked queued before it is
// submitted, so a second start of the same job is rejected.
func (s *CalculationService) StartJob(ctx context.Context, id string) (*pipeline.Job, error) {
	if s.worker == nil {
		return nil, fmt.Errorf("no worker configured: %w", pipeline.ErrWorkerStopped)
	}

	job, err := s.store.Transition(ctx, id, pipeline.StatusPending, pipeline.StatusQueued)
	if err != nil {
		return nil, err
	}
	s.OnJobUpdate(job)

	if err := s.worker.Submit(id); err != nil {
		// Put the job back so the client can retry once the queue drains.
		if reverted, rerr := s.store.Transition(context.WithoutCancel(ctx), id, pipeline.StatusQueued, pipeline.StatusPending); rerr != nil {
			log.Error().Err(rerr).Str("job_id", id).Msg("safety stock: failed to release unsubmitted job")
		} else {
			s.OnJobUpdate(reverted)
		}
		return nil, err
	}
	return job, nil
}

// GetJob returns the latest job snapshot, from cache when available.
func (s *CalculationService) GetJob(ctx context.Context, id string) (*pipeline.Job, error) {
	if job, ok, err := s.cache.GetJob(ctx, id); err == nil && ok {
		return job, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("safety stock: cache get job failed")
	}

	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJob(ctx, job); err != nil {
		log.Warn().Err(err).Msg("safety stock: cache set job failed")
	}
	return job, nil
}

func (s *CalculationService) completedJob(ctx context.Context, id string) (*pipeline.Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != pipeline.StatusCompleted {
		return nil, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrResultsNotReady)
	}
	return job, nil
}

// GetHistoryResults returns the history-based rows of a completed job.
func (s *CalculationService) GetHistoryResults(ctx context.Context, id string) (*domain.HistoryResults, error) {
	if _, err := s.completedJob(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.results.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	skipped, err := s.results.GetSkipped(ctx, id, repository.EstimatorHistory)
	if err != nil {
		return nil, err
	}

	if rows == nil {
		rows = make([]safetystock.HistoryResult, 0)
	}
	if skipped == nil {
		skipped = make([]safetystock.SkippedGroup, 0)
	}
	return &domain.HistoryResults{JobID: id, Rows: rows, Skipped: skipped, Total: len(rows)}, nil
}

// GetForecastResults returns the forecast-based rows of a completed job.
func (s *CalculationService) GetForecastResults(ctx context.Context, id string) (*domain.ForecastResults, error) {
	job, err := s.completedJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.HasForecast {
		return nil, ErrNoForecast
	}

	rows, err := s.results.GetForecast(ctx, id)
	if err != nil {
		return nil, err
	}
	skipped, err := s.results.GetSkipped(ctx, id, repository.EstimatorForecast)
	if err != nil {
		return nil, err
	}

	if rows == nil {
		rows = make([]safetystock.ForecastResult, 0)
	}
	if skipped == nil {
		skipped = make([]safetystock.SkippedGroup, 0)
	}
	return &domain.ForecastResults{JobID: id, Rows: rows, Skipped: skipped, Total: len(rows)}, nil
}

// ArchiveName is the download name of a job's result bundle.
func ArchiveName(id string) string {
	return fmt.Sprintf("safety_stock_%s.zip", id)
}

// WriteArchive writes a zip holding the result CSVs of a completed job.
func (s *CalculationService) WriteArchive(ctx context.Context, id string, w io.Writer) error {
	job, err := s.completedJob(ctx, id)
	if err != nil {
		return err
	}

	names := []string{safetystock.HistoryResultFile}
	if job.HasForecast {
		names = append(names, safetystock.ForecastResultFile)
	}

	zw := zip.NewWriter(w)
	for _, name := range names {
		data, err := s.objects.ReadObject(ctx, storage.JobKey(id, name))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		entry, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := entry.Write(data); err != nil {
			return fmt.Errorf("failed to write %s to archive: %w", name, err)
		}
	}
	return zw.Close()
}

// DeleteJob clears a job with its uploads and results. Running jobs are
// rejected.
func (s *CalculationService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == pipeline.StatusProcessing {
		return fmt.Errorf("job %s: %w", id, ErrJobRunning)
	}

	if err := s.results.DeleteJob(ctx, id); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	if err := storage.DeletePrefix(ctx, s.objects, storage.JobPrefix(id)); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.InvalidateJob(ctx, id); err != nil {
		log.Warn().Err(err).Msg("safety stock: cache invalidate job failed")
	}

	log.Info().Str("job_id", id).Msg("safety stock: job deleted")
	return nil
}

// LoadBatch reads and parses the stored uploads of a job concurrently.
func (s *CalculationService) LoadBatch(ctx context.Context, jobID string, hasForecast bool) (*pipeline.Batch, error) {
	batch := &pipeline.Batch{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		data, err := s.objects.ReadObject(gctx, storage.JobKey(jobID, safetystock.HistoryDataFile))
		if err != nil {
			return err
		}
		batch.History, err = s.reader.ReadHistory(bytes.NewReader(data))
		return err
	})
	g.Go(func() error {
		data, err := s.objects.ReadObject(gctx, storage.JobKey(jobID, safetystock.ItemMasterFile))
		if err != nil {
			return err
		}
		batch.Master, err = s.reader.ReadItemMaster(bytes.NewReader(data))
		return err
	})
	if hasForecast {
		g.Go(func() error {
			data, err := s.objects.ReadObject(gctx, storage.JobKey(jobID, safetystock.ForecastDataFile))
			if err != nil {
				return err
			}
			batch.Forecast, err = s.reader.ReadForecast(bytes.NewReader(data))
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batch, nil
}

// SaveHistory stores history rows and exports SAFETY_STOCK_DATA.csv.
func (s *CalculationService) SaveHistory(ctx context.Context, jobID string, rows []safetystock.HistoryResult, skipped []safetystock.SkippedGroup) error {
	if err := s.results.SaveHistory(ctx, jobID, rows, skipped); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := safetystock.WriteHistoryCSV(&buf, rows); err != nil {
		return err
	}
	return s.objects.UploadObject(ctx, storage.JobKey(jobID, safetystock.HistoryResultFile), buf.Bytes())
}

// SaveForecast stores forecast rows and exports SAFETY_STOCK_FCST_BASED.csv.
func (s *CalculationService) SaveForecast(ctx context.Context, jobID string, rows []safetystock.ForecastResult, skipped []safetystock.SkippedGroup) error {
	if err := s.results.SaveForecast(ctx, jobID, rows, skipped); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := safetystock.WriteForecastCSV(&buf, rows); err != nil {
		return err
	}
	return s.objects.UploadObject(ctx, storage.JobKey(jobID, safetystock.ForecastResultFile), buf.Bytes())
}

var (
	_ pipeline.BatchLoader = (*CalculationService)(nil)
	_ pipeline.ResultSink  = (*CalculationService)(nil)
)
