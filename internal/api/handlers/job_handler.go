package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/safety-stock/internal/domain"
	"github.com/andresuchdata/safety-stock/internal/pipeline"
	"github.com/andresuchdata/safety-stock/internal/service"
)

type JobHandler struct {
	service        *service.CalculationService
	maxUploadBytes int64
}

// NewJobHandler creates the job endpoints. Upload bodies larger than
// maxUploadBytes are rejected; zero means no limit.
func NewJobHandler(service *service.CalculationService, maxUploadBytes int64) *JobHandler {
	return &JobHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// CreateJob accepts the input files as multipart fields named after their
// kind (history, item_master, forecast) or as a "files" list classified by
// file name. With autostart=true the job is queued right away.
func (h *JobHandler) CreateJob(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
		return
	}

	uploads := make([]*domain.UploadedFile, 0, len(form.File))
	for field, headers := range form.File {
		kind, ok := domain.ParseFileKind(field)
		if !ok && field != "files" {
			continue
		}
		for _, header := range headers {
			upload, err := readUpload(header)
			if err != nil {
				log.Error().Err(err).Str("filename", header.Filename).Msg("failed to read uploaded file")
				c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read " + header.Filename})
				return
			}
			if ok {
				upload.Kind = kind
			}
			uploads = append(uploads, upload)
		}
	}

	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	ctx := c.Request.Context()
	job, err := h.service.CreateJob(ctx, uploads)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if autostart, _ := strconv.ParseBool(c.DefaultQuery("autostart", c.PostForm("autostart"))); autostart {
		if job, err = h.service.StartJob(ctx, job.ID); err != nil {
			respondError(c, err)
			return
		}
		status = http.StatusAccepted
	}

	c.JSON(status, domain.NewJobView(job))
}

func readUpload(header *multipart.FileHeader) (*domain.UploadedFile, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &domain.UploadedFile{
		Filename: header.Filename,
		Data:     data,
		Size:     header.Size,
	}, nil
}

// StartJob queues a pending job for calculation
func (h *JobHandler) StartJob(c *gin.Context) {
	job, err := h.service.StartJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, domain.NewJobView(job))
}

// GetJob returns the job status and stage progress
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.NewJobView(job))
}

func (h *JobHandler) GetHistoryResults(c *gin.Context) {
	results, err := h.service.GetHistoryResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *JobHandler) GetForecastResults(c *gin.Context) {
	results, err := h.service.GetForecastResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// Download streams the result CSVs as a zip archive
func (h *JobHandler) Download(c *gin.Context) {
	id := c.Param("id")

	var buf bytes.Buffer
	if err := h.service.WriteArchive(c.Request.Context(), id, &buf); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ArchiveName(id)))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func (h *JobHandler) DeleteJob(c *gin.Context) {
	if err := h.service.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrJobNotFound), errors.Is(err, service.ErrNoForecast):
		return http.StatusNotFound
	case errors.Is(err, service.ErrResultsNotReady),
		errors.Is(err, service.ErrJobRunning),
		errors.Is(err, pipeline.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrWorkerStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrMissingUpload),
		errors.Is(err, service.ErrUnknownUpload),
		errors.Is(err, service.ErrInvalidWorkbook):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
