package drive

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/safety-stock/internal/domain"
	"github.com/andresuchdata/safety-stock/internal/pipeline"
)

// JobCreator is the part of the calculation service an import needs.
type JobCreator interface {
	CreateJob(ctx context.Context, files []*domain.UploadedFile) (*pipeline.Job, error)
	StartJob(ctx context.Context, id string) (*pipeline.Job, error)
}

// ImportService turns a Drive folder into a calculation job.
type ImportService struct {
	downloader *Downloader
	jobs       JobCreator
}

func NewImportService(downloader *Downloader, jobs JobCreator) *ImportService {
	return &ImportService{
		downloader: downloader,
		jobs:       jobs,
	}
}

// ImportFolder downloads the inputs found in folderID, creates a job from
// them and, when start is set, queues it.
func (s *ImportService) ImportFolder(ctx context.Context, folderID string, start bool) (*pipeline.Job, error) {
	files, err := s.downloader.DownloadFolder(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to download folder %s: %w", folderID, err)
	}

	job, err := s.jobs.CreateJob(ctx, files)
	if err != nil {
		return nil, err
	}

	log.Info().Str("folder_id", folderID).Str("job_id", job.ID).Int("files", len(files)).Msg("drive: folder imported")

	if !start {
		return job, nil
	}
	return s.jobs.StartJob(ctx, job.ID)
}
