package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.UploadObject(ctx, JobKey("job-1", "HISTORY_DATA.csv"), []byte("a,b\n")))
	require.NoError(t, s.UploadObject(ctx, JobKey("job-1", "ITEM_MASTER.csv"), []byte("c\n")))
	require.NoError(t, s.UploadObject(ctx, JobKey("job-2", "HISTORY_DATA.csv"), []byte("x\n")))

	data, err := s.ReadObject(ctx, "jobs/job-1/HISTORY_DATA.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	objects, err := s.ListObjects(ctx, JobPrefix("job-1"))
	require.NoError(t, err)
	assert.Equal(t, []ObjectInfo{
		{Key: "jobs/job-1/HISTORY_DATA.csv", Size: 4},
		{Key: "jobs/job-1/ITEM_MASTER.csv", Size: 2},
	}, objects)

	dest := filepath.Join(t.TempDir(), "out", "h.csv")
	require.NoError(t, s.DownloadObject(ctx, "jobs/job-1/HISTORY_DATA.csv", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(got))

	require.NoError(t, DeletePrefix(ctx, s, JobPrefix("job-1")))
	_, err = s.ReadObject(ctx, "jobs/job-1/HISTORY_DATA.csv")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	remaining, err := s.ListObjects(ctx, "jobs/")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.UploadObject(context.Background(), "../escape.csv", []byte("x")))
	assert.ErrorIs(t, s.DeleteObject(context.Background(), "jobs/none.csv"), ErrObjectNotFound)
}

func TestNewSelectsDriver(t *testing.T) {
	s, err := New(Config{Driver: "local", LocalRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(Config{Driver: "s3"})
	assert.Error(t, err)

	_, err = New(Config{Driver: "ftp"})
	assert.Error(t, err)
}

func TestResolveObjectKey(t *testing.T) {
	assert.Equal(t, "uploads/2025/HISTORY_DATA.csv", ResolveObjectKey("uploads/2025/", "HISTORY_DATA.csv"))
	assert.Equal(t, "uploads/2025/HISTORY_DATA.csv", ResolveObjectKey("uploads/2025", "/uploads/2025/HISTORY_DATA.csv"))
	assert.Equal(t, "HISTORY_DATA.csv", ResolveObjectKey("", "/HISTORY_DATA.csv"))
	assert.Equal(t, "uploads", ResolveObjectKey(" uploads ", ""))
}

func TestObjectRelativePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b.csv"), ObjectRelativePath("uploads/", "uploads/a/b.csv"))
	assert.Equal(t, "b.csv", ObjectRelativePath("", "b.csv"))
	assert.Equal(t, "uploads", ObjectRelativePath("uploads", "uploads/"))
}
