package drive

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/safety-stock/internal/domain"
)

// Downloader pulls the input files of a calculation out of a Drive folder.
type Downloader struct {
	source Source
}

// NewDownloader creates a new Downloader.
func NewDownloader(source Source) *Downloader {
	return &Downloader{source: source}
}

// DownloadFolder fetches every CSV and XLSX file in folderID whose name
// identifies one of the inputs. Other files are ignored. When a kind
// appears more than once the first file by name wins.
func (d *Downloader) DownloadFolder(ctx context.Context, folderID string) ([]*domain.UploadedFile, error) {
	files, err := d.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.FileKind]string, len(domain.FileKinds))
	var uploads []*domain.UploadedFile
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}

		kind, ok := domain.ClassifyUpload(f.Name)
		if !ok {
			log.Debug().Str("file", f.Name).Msg("drive: skipping unrecognized file")
			continue
		}
		if prev, dup := seen[kind]; dup {
			log.Warn().Str("file", f.Name).Str("kept", prev).Str("kind", string(kind)).Msg("drive: duplicate input file")
			continue
		}

		var buf bytes.Buffer
		if err := d.source.DownloadFile(ctx, f.ID, &buf); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}

		seen[kind] = f.Name
		uploads = append(uploads, &domain.UploadedFile{
			Kind:     kind,
			Filename: f.Name,
			Data:     buf.Bytes(),
			Size:     int64(buf.Len()),
		})
	}

	return uploads, nil
}
