package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/safety-stock/internal/domain"
	"github.com/andresuchdata/safety-stock/internal/pipeline"
	"github.com/andresuchdata/safety-stock/internal/service"
)

type fakeSource struct {
	files   []*File
	content map[string]string
	listErr error
	fetched []string
}

func (s *fakeSource) ListFiles(_ context.Context, _ string) ([]*File, error) {
	return s.files, s.listErr
}

func (s *fakeSource) DownloadFile(_ context.Context, fileID string, w io.Writer) error {
	s.fetched = append(s.fetched, fileID)
	data, ok := s.content[fileID]
	if !ok {
		return fmt.Errorf("file %s not found", fileID)
	}
	_, err := io.WriteString(w, data)
	return err
}

type fakeJobs struct {
	files   []*domain.UploadedFile
	started []string
	err     error
}

func (j *fakeJobs) CreateJob(_ context.Context, files []*domain.UploadedFile) (*pipeline.Job, error) {
	if j.err != nil {
		return nil, j.err
	}
	j.files = files
	_, hasForecast := kinds(files)[domain.FileForecast]
	return pipeline.NewJob("job-1", hasForecast), nil
}

func (j *fakeJobs) StartJob(_ context.Context, id string) (*pipeline.Job, error) {
	j.started = append(j.started, id)
	return pipeline.NewJob(id, false), nil
}

func kinds(files []*domain.UploadedFile) map[domain.FileKind]string {
	out := make(map[domain.FileKind]string, len(files))
	for _, f := range files {
		out[f.Kind] = f.Filename
	}
	return out
}

func folderSource() *fakeSource {
	return &fakeSource{
		files: []*File{
			{ID: "1", Name: "HISTORY_DATA.csv"},
			{ID: "2", Name: "ITEM_MASTER.xlsx"},
			{ID: "3", Name: "history_data_old.csv"},
			{ID: "4", Name: "notes.txt"},
			{ID: "5", Name: "summary.csv"},
		},
		content: map[string]string{
			"1": "ITEM_NAME,ORG_CODE,REF_DATE,REF_QTY\n",
			"2": "xlsx-bytes",
			"3": "old",
		},
	}
}

func TestDownloadFolder(t *testing.T) {
	source := folderSource()

	files, err := NewDownloader(source).DownloadFolder(context.Background(), "folder")
	require.NoError(t, err)

	assert.Equal(t, map[domain.FileKind]string{
		domain.FileHistory:    "HISTORY_DATA.csv",
		domain.FileItemMaster: "ITEM_MASTER.xlsx",
	}, kinds(files))
	assert.Equal(t, []string{"1", "2"}, source.fetched)
	assert.Equal(t, int64(len("xlsx-bytes")), files[1].Size)
	assert.True(t, files[1].IsXLSX())
}

func TestDownloadFolderErrors(t *testing.T) {
	_, err := NewDownloader(&fakeSource{listErr: errors.New("boom")}).DownloadFolder(context.Background(), "f")
	assert.EqualError(t, err, "boom")

	source := &fakeSource{files: []*File{{ID: "9", Name: "FORECAST_DATA.csv"}}}
	_, err = NewDownloader(source).DownloadFolder(context.Background(), "f")
	assert.ErrorContains(t, err, "FORECAST_DATA.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewDownloader(folderSource()).DownloadFolder(ctx, "f")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportFolder(t *testing.T) {
	jobs := &fakeJobs{}
	importer := NewImportService(NewDownloader(folderSource()), jobs)

	job, err := importer.ImportFolder(context.Background(), "folder", false)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusPending, job.Status)
	assert.Len(t, jobs.files, 2)
	assert.Empty(t, jobs.started)

	_, err = importer.ImportFolder(context.Background(), "folder", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, jobs.started)
}

func newDriveRouter(jobs *fakeJobs) *mux.Router {
	source := folderSource()
	router := mux.NewRouter()
	NewHandler(source, nil, NewImportService(NewDownloader(source), jobs)).RegisterRoutes(router)
	return router
}

func TestHandlerListFiles(t *testing.T) {
	rec := httptest.NewRecorder()
	newDriveRouter(&fakeJobs{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?folderId=f", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var files []*File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 5)
}

func TestHandlerImportFolder(t *testing.T) {
	jobs := &fakeJobs{}
	router := newDriveRouter(jobs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/import?folderId=f", nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"job-1"}, jobs.started)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/import?folderId=f&start=false", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/import", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/import?folderId=f&start=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	jobs.err = fmt.Errorf("%w: ITEM_MASTER.csv", service.ErrMissingUpload)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/import?folderId=f", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
