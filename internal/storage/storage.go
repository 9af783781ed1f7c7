package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is returned when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the S3-compatible operations used for uploads and results.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
	ReadObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

// Config selects and configures a backend.
type Config struct {
	Driver    string // "local" or "s3"
	LocalRoot string
	S3        S3Config
}

// New builds the ObjectStorage named by cfg.Driver.
func New(cfg Config) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "local":
		return NewLocalStorage(cfg.LocalRoot)
	case "s3", "minio", "sevalla":
		return NewS3Client(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// JobKey returns the object key of a file belonging to a job.
func JobKey(jobID, name string) string {
	return path.Join("jobs", jobID, name)
}

// JobPrefix returns the prefix under which all files of a job are stored.
func JobPrefix(jobID string) string {
	return path.Join("jobs", jobID) + "/"
}

// DeletePrefix removes every object under prefix.
func DeletePrefix(ctx context.Context, s ObjectStorage, prefix string) error {
	objects, err := s.ListObjects(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	for _, obj := range objects {
		if err := s.DeleteObject(ctx, obj.Key); err != nil && !errors.Is(err, ErrObjectNotFound) {
			return fmt.Errorf("failed to delete %s: %w", obj.Key, err)
		}
	}
	return nil
}

// ResolveObjectKey joins an explicit key onto prefix unless it already
// starts with it.
func ResolveObjectKey(prefix, override string) string {
	if override == "" {
		return strings.TrimSpace(prefix)
	}
	if prefix == "" {
		return strings.TrimPrefix(override, "/")
	}

	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	overrideTrimmed := strings.TrimPrefix(strings.TrimSpace(override), "/")

	if strings.HasPrefix(overrideTrimmed, prefixTrimmed) {
		return overrideTrimmed
	}
	return fmt.Sprintf("%s/%s", prefixTrimmed, overrideTrimmed)
}

// ObjectRelativePath is key with prefix stripped, as a local relative path.
func ObjectRelativePath(prefix, key string) string {
	if prefix == "" {
		return filepath.FromSlash(key)
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return path.Base(key)
	}
	return filepath.FromSlash(rel)
}
