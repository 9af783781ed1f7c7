package domain

import (
	"path/filepath"
	"strings"

	"github.com/andresuchdata/safety-stock/internal/pipeline"
	safetystock "github.com/andresuchdata/safety-stock/internal/pipeline/safety_stock"
)

// FileKind identifies which of the three inputs an upload is.
type FileKind string

const (
	FileHistory    FileKind = "history"
	FileItemMaster FileKind = "item_master"
	FileForecast   FileKind = "forecast"
)

// FileKinds lists the kinds in upload order.
var FileKinds = []FileKind{FileHistory, FileItemMaster, FileForecast}

// ObjectName is the canonical CSV name the kind is stored under.
func (k FileKind) ObjectName() string {
	switch k {
	case FileHistory:
		return safetystock.HistoryDataFile
	case FileItemMaster:
		return safetystock.ItemMasterFile
	case FileForecast:
		return safetystock.ForecastDataFile
	default:
		return ""
	}
}

var fileNameSanitizer = strings.NewReplacer(" ", "", "_", "", "-", "", ".", "")

// ClassifyUpload guesses the kind of an upload from its file name,
// e.g. "HISTORY_DATA.csv" or "item-master 2025.xlsx".
func ClassifyUpload(filename string) (FileKind, bool) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := fileNameSanitizer.Replace(strings.ToLower(base))

	switch {
	case strings.Contains(name, "itemmaster") || strings.Contains(name, "master"):
		return FileItemMaster, true
	case strings.Contains(name, "forecast") || strings.Contains(name, "fcst"):
		return FileForecast, true
	case strings.Contains(name, "history"):
		return FileHistory, true
	default:
		return "", false
	}
}

// ParseFileKind accepts a multipart field name such as "item_master".
func ParseFileKind(value string) (FileKind, bool) {
	for _, k := range FileKinds {
		if strings.EqualFold(strings.TrimSpace(value), string(k)) {
			return k, true
		}
	}
	return "", false
}

// UploadedFile represents an uploaded file for processing
type UploadedFile struct {
	Kind     FileKind
	Filename string
	Data     []byte
	Size     int64
}

// IsXLSX reports whether the upload is a workbook that needs conversion.
func (f *UploadedFile) IsXLSX() bool {
	return strings.EqualFold(filepath.Ext(f.Filename), ".xlsx")
}

// JobView is the polling representation of a job.
type JobView struct {
	*pipeline.Job
	Progress float64 `json:"progress"`
}

func NewJobView(job *pipeline.Job) JobView {
	return JobView{Job: job, Progress: job.Progress()}
}

// HistoryResults is the history-based output of a job.
type HistoryResults struct {
	JobID   string                      `json:"job_id"`
	Rows    []safetystock.HistoryResult `json:"rows"`
	Skipped []safetystock.SkippedGroup  `json:"skipped"`
	Total   int                         `json:"total"`
}

// ForecastResults is the forecast-based output of a job.
type ForecastResults struct {
	JobID   string                       `json:"job_id"`
	Rows    []safetystock.ForecastResult `json:"rows"`
	Skipped []safetystock.SkippedGroup   `json:"skipped"`
	Total   int                          `json:"total"`
}
