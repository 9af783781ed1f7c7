package repository

import (
	"context"
	"sync"

	safetystock "github.com/andresuchdata/safety-stock/internal/pipeline/safety_stock"
)

// Estimator names under which skipped groups are stored.
const (
	EstimatorHistory  = "history"
	EstimatorForecast = "forecast"
)

// ResultRepository stores calculation output per job.
type ResultRepository interface {
	SaveHistory(ctx context.Context, jobID string, rows []safetystock.HistoryResult, skipped []safetystock.SkippedGroup) error
	SaveForecast(ctx context.Context, jobID string, rows []safetystock.ForecastResult, skipped []safetystock.SkippedGroup) error
	GetHistory(ctx context.Context, jobID string) ([]safetystock.HistoryResult, error)
	GetForecast(ctx context.Context, jobID string) ([]safetystock.ForecastResult, error)
	GetSkipped(ctx context.Context, jobID, estimator string) ([]safetystock.SkippedGroup, error)
	DeleteJob(ctx context.Context, jobID string) error
}

type jobResults struct {
	history  []safetystock.HistoryResult
	forecast []safetystock.ForecastResult
	skipped  map[string][]safetystock.SkippedGroup
}

type memoryResultRepository struct {
	mu   sync.RWMutex
	jobs map[string]*jobResults
}

// NewMemoryResultRepository keeps results in process memory.
func NewMemoryResultRepository() ResultRepository {
	return &memoryResultRepository{jobs: make(map[string]*jobResults)}
}

func (r *memoryResultRepository) entry(jobID string) *jobResults {
	res, ok := r.jobs[jobID]
	if !ok {
		res = &jobResults{skipped: make(map[string][]safetystock.SkippedGroup)}
		r.jobs[jobID] = res
	}
	return res
}

func (r *memoryResultRepository) SaveHistory(_ context.Context, jobID string, rows []safetystock.HistoryResult, skipped []safetystock.SkippedGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.entry(jobID)
	res.history = append([]safetystock.HistoryResult(nil), rows...)
	res.skipped[EstimatorHistory] = append([]safetystock.SkippedGroup(nil), skipped...)
	return nil
}

func (r *memoryResultRepository) SaveForecast(_ context.Context, jobID string, rows []safetystock.ForecastResult, skipped []safetystock.SkippedGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.entry(jobID)
	res.forecast = append([]safetystock.ForecastResult(nil), rows...)
	res.skipped[EstimatorForecast] = append([]safetystock.SkippedGroup(nil), skipped...)
	return nil
}

func (r *memoryResultRepository) GetHistory(_ context.Context, jobID string) ([]safetystock.HistoryResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return append([]safetystock.HistoryResult(nil), res.history...), nil
}

func (r *memoryResultRepository) GetForecast(_ context.Context, jobID string) ([]safetystock.ForecastResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return append([]safetystock.ForecastResult(nil), res.forecast...), nil
}

func (r *memoryResultRepository) GetSkipped(_ context.Context, jobID, estimator string) ([]safetystock.SkippedGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return append([]safetystock.SkippedGroup(nil), res.skipped[estimator]...), nil
}

func (r *memoryResultRepository) DeleteJob(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, jobID)
	return nil
}
