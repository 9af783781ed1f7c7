package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	safetystock "github.com/andresuchdata/safety-stock/internal/pipeline/safety_stock"
)

type stubLoader struct {
	batch *Batch
	err   error
}

func (l *stubLoader) LoadBatch(_ context.Context, _ string, _ bool) (*Batch, error) {
	return l.batch, l.err
}

type recordingSink struct {
	mu       sync.Mutex
	history  []safetystock.HistoryResult
	forecast []safetystock.ForecastResult
	skipped  []safetystock.SkippedGroup
}

func (s *recordingSink) SaveHistory(_ context.Context, _ string, rows []safetystock.HistoryResult, skipped []safetystock.SkippedGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = rows
	s.skipped = append(s.skipped, skipped...)
	return nil
}

func (s *recordingSink) SaveForecast(_ context.Context, _ string, rows []safetystock.ForecastResult, skipped []safetystock.SkippedGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecast = rows
	s.skipped = append(s.skipped, skipped...)
	return nil
}

func testBatch(serviceLevel float64) *Batch {
	batch := &Batch{
		Master: []safetystock.ItemMasterRecord{
			{ItemName: "WIDGET", OrgCode: "US01", LeadTimeDays: 9, SupplyLeadTimeVarDays: 2, ServiceLevel: serviceLevel},
		},
		Forecast: []safetystock.ForecastRecord{
			{DemandRecord: safetystock.DemandRecord{ItemName: "WIDGET", OrgCode: "US01", RefDate: "01/01/2025", Quantity: 300}, ForecastErrorPercent: 12},
			{DemandRecord: safetystock.DemandRecord{ItemName: "WIDGET", OrgCode: "US01", RefDate: "01/16/2025", Quantity: 150}, ForecastErrorPercent: 8},
		},
	}
	for d := 1; d <= 30; d++ {
		batch.History = append(batch.History, safetystock.DemandRecord{
			ItemName: "WIDGET", OrgCode: "US01", RefDate: fmt.Sprintf("01/%02d/2025", d), Quantity: 10,
		})
	}
	batch.History = append(batch.History, safetystock.DemandRecord{ItemName: "ORPHAN", OrgCode: "US01", RefDate: "01/01/2025", Quantity: 1})
	return batch
}

// createQueued stores a job that has already been submitted to a worker.
func createQueued(t *testing.T, store JobStore, id string, hasForecast bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, NewJob(id, hasForecast)))
	_, err := store.Transition(ctx, id, StatusPending, StatusQueued)
	require.NoError(t, err)
}

// flakyStore fails the failOn-th Update.
type flakyStore struct {
	*MemoryStore
	failOn int
	calls  int
}

func (s *flakyStore) Update(ctx context.Context, job *Job) error {
	s.calls++
	if s.calls == s.failOn {
		return errors.New("connection reset by peer")
	}
	return s.MemoryStore.Update(ctx, job)
}

func TestOrchestratorRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sink := &recordingSink{}
	orch := NewOrchestrator(store, &stubLoader{batch: testBatch(95)}, sink, zerolog.Nop())

	var messages []string
	orch.Observe(func(job *Job) { messages = append(messages, job.Message) })

	createQueued(t, store, "job-1", true)
	require.NoError(t, orch.Run(ctx, "job-1"))

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, StageComplete, job.Stage)
	assert.Equal(t, 1, job.HistoryRows)
	assert.Equal(t, 1, job.ForecastRows)
	assert.Equal(t, 1, job.SkippedRows)

	assert.Equal(t, []string{
		MessageValidating,
		MessageHistory,
		MessageExporting,
		MessageForecast,
		MessageExporting,
		MessageComplete,
	}, messages)

	require.Len(t, sink.history, 1)
	assert.Equal(t, 29.0, sink.history[0].TotalSS)
	require.Len(t, sink.forecast, 1)
	assert.Equal(t, 27, sink.forecast[0].SafetyStock)
	assert.Equal(t, safetystock.SkipMissingItemMaster, sink.skipped[0].Reason)
}

func TestOrchestratorRunWithoutForecast(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sink := &recordingSink{}
	orch := NewOrchestrator(store, &stubLoader{batch: testBatch(95)}, sink, zerolog.Nop())

	createQueued(t, store, "job-1", false)
	require.NoError(t, orch.Run(ctx, "job-1"))

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Nil(t, sink.forecast)
}

func TestOrchestratorRunLoaderFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	loadErr := fmt.Errorf("history data: %w", safetystock.ErrMissingColumn)
	orch := NewOrchestrator(store, &stubLoader{err: loadErr}, &recordingSink{}, zerolog.Nop())

	createQueued(t, store, "job-1", false)
	err := orch.Run(ctx, "job-1")
	assert.ErrorIs(t, err, safetystock.ErrMissingColumn)

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, StageValidating, job.Stage)
	assert.Contains(t, job.ErrorMessage, "missing required column")
}

func TestOrchestratorRunDomainErrorFailsJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orch := NewOrchestrator(store, &stubLoader{batch: testBatch(150)}, &recordingSink{}, zerolog.Nop())

	createQueued(t, store, "job-1", true)
	err := orch.Run(ctx, "job-1")
	assert.ErrorIs(t, err, safetystock.ErrDomain)

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, StageHistory, job.Stage)
}

func TestOrchestratorRunCancelled(t *testing.T) {
	store := NewMemoryStore()
	orch := NewOrchestrator(store, &stubLoader{batch: testBatch(95)}, &recordingSink{}, zerolog.Nop())
	createQueued(t, store, "job-1", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := orch.Run(ctx, "job-1")
	assert.True(t, errors.Is(err, context.Canceled))

	job, err := store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
}

func TestOrchestratorRejectsFinishedJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orch := NewOrchestrator(store, &stubLoader{batch: testBatch(95)}, &recordingSink{}, zerolog.Nop())

	createQueued(t, store, "job-1", false)
	require.NoError(t, orch.Run(ctx, "job-1"))
	assert.ErrorIs(t, orch.Run(ctx, "job-1"), ErrInvalidTransition)
	assert.ErrorIs(t, orch.Run(ctx, "missing"), ErrJobNotFound)
}

func TestOrchestratorRunRequiresQueuedJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orch := NewOrchestrator(store, &stubLoader{batch: testBatch(95)}, &recordingSink{}, zerolog.Nop())

	require.NoError(t, store.Create(ctx, NewJob("job-1", false)))
	assert.ErrorIs(t, orch.Run(ctx, "job-1"), ErrInvalidTransition)

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
}

func TestOrchestratorRunClaimsJobOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sink := &recordingSink{}
	orch := NewOrchestrator(store, &stubLoader{batch: testBatch(95)}, sink, zerolog.Nop())
	createQueued(t, store, "job-1", false)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- orch.Run(ctx, "job-1") }()
	}

	var ok, rejected int
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			ok++
		} else if errors.Is(err, ErrInvalidTransition) {
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
}

func TestOrchestratorRunStoreFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore(), failOn: 2}
	orch := NewOrchestrator(store, &stubLoader{batch: testBatch(95)}, &recordingSink{}, zerolog.Nop())
	createQueued(t, store, "job-1", false)

	err := orch.Run(ctx, "job-1")
	assert.ErrorContains(t, err, "connection reset by peer")

	job, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, StageHistory, job.Stage)
	assert.Contains(t, job.ErrorMessage, "connection reset by peer")
}
