package pipeline

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrQueueFull         = errors.New("job queue is full")
	ErrWorkerStopped     = errors.New("worker is stopped")
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// Stage is one step of a calculation job.
type Stage string

const (
	StageValidating Stage = "validating"
	StageHistory    Stage = "history"
	StageForecast   Stage = "forecast"
	StageComplete   Stage = "complete"
)

// Progress messages shown to polling clients.
const (
	MessageQueued     = "Queued"
	MessageValidating = "Validating Data ..."
	MessageHistory    = "Calculating - History Based SS"
	MessageForecast   = "Calculating - Forecast Based SS"
	MessageExporting  = "Exporting Data ..."
	MessageComplete   = "Done"
)

// Message returns the progress label for the stage.
func (s Stage) Message() string {
	switch s {
	case StageValidating:
		return MessageValidating
	case StageHistory:
		return MessageHistory
	case StageForecast:
		return MessageForecast
	case StageComplete:
		return MessageComplete
	default:
		return string(s)
	}
}

// PlanFor returns the ordered stages of a job. The forecast stage is only
// planned when a forecast file was uploaded.
func PlanFor(hasForecast bool) []Stage {
	plan := []Stage{StageValidating, StageHistory}
	if hasForecast {
		plan = append(plan, StageForecast)
	}
	return append(plan, StageComplete)
}

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one calculation over an uploaded batch.
type Job struct {
	ID           string     `json:"id"`
	Status       JobStatus  `json:"status"`
	Plan         []Stage    `json:"plan"`
	Stage        Stage      `json:"stage,omitempty"`
	StageIndex   int        `json:"stage_index"`
	Message      string     `json:"message"`
	HasForecast  bool       `json:"has_forecast"`
	HistoryRows  int        `json:"history_rows"`
	ForecastRows int        `json:"forecast_rows"`
	SkippedRows  int        `json:"skipped_groups"`
	ErrorMessage string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job with its stage plan fixed.
func NewJob(id string, hasForecast bool) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          id,
		Status:      StatusPending,
		Plan:        PlanFor(hasForecast),
		StageIndex:  -1,
		Message:     MessageQueued,
		HasForecast: hasForecast,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Advance moves the job to stage, which must be the next planned stage.
func (j *Job) Advance(stage Stage) error {
	next := j.StageIndex + 1
	if next >= len(j.Plan) || j.Plan[next] != stage {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	if j.StartedAt == nil {
		j.StartedAt = &now
	}

	j.StageIndex = next
	j.Stage = stage
	j.Message = stage.Message()
	j.UpdatedAt = now

	if stage == StageComplete {
		j.Status = StatusCompleted
		j.CompletedAt = &now
	} else {
		j.Status = StatusProcessing
	}
	return nil
}

// Fail marks the job as failed at its current stage.
func (j *Job) Fail(err error) {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.ErrorMessage = err.Error()
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Progress is the completed fraction of the plan, in [0, 1].
func (j *Job) Progress() float64 {
	if len(j.Plan) <= 1 || j.StageIndex < 0 {
		return 0
	}
	return float64(j.StageIndex) / float64(len(j.Plan)-1)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (j *Job) Clone() *Job {
	c := *j
	c.Plan = append([]Stage(nil), j.Plan...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// PipelineConfig holds configuration for the job worker pool
type PipelineConfig struct {
	WorkerCount int           // Number of concurrent jobs
	QueueSize   int           // Jobs buffered before Submit rejects
	JobTimeout  time.Duration // Zero disables the per-job deadline
}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		WorkerCount: 4,
		QueueSize:   64,
		JobTimeout:  10 * time.Minute,
	}
}
