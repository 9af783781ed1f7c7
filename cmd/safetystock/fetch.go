package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/safety-stock/internal/storage"
	"github.com/andresuchdata/safety-stock/pkg/logger"
)

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download input or result files from S3 compatible storage",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "s3-endpoint", EnvVars: []string{"S3_ENDPOINT"}, Required: true},
			&cli.StringFlag{Name: "s3-access-key", EnvVars: []string{"S3_ACCESS_KEY"}},
			&cli.StringFlag{Name: "s3-secret-key", EnvVars: []string{"S3_SECRET_KEY"}},
			&cli.StringFlag{Name: "s3-bucket", EnvVars: []string{"S3_BUCKET"}, Required: true},
			&cli.StringFlag{Name: "s3-region", EnvVars: []string{"S3_REGION"}, Value: "us-east-1"},
			&cli.BoolFlag{Name: "s3-use-ssl", EnvVars: []string{"S3_USE_SSL"}, Value: true},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Object prefix to download, e.g. jobs/<id>",
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "Single object key, relative to prefix",
			},
			&cli.StringFlag{
				Name:  "dest-dir",
				Usage: "Local directory to download into",
				Value: "./data",
			},
		},
		Action: func(c *cli.Context) error {
			client, err := storage.NewS3Client(storage.S3Config{
				Endpoint:  c.String("s3-endpoint"),
				AccessKey: c.String("s3-access-key"),
				SecretKey: c.String("s3-secret-key"),
				Bucket:    c.String("s3-bucket"),
				Region:    c.String("s3-region"),
				UseSSL:    c.Bool("s3-use-ssl"),
			})
			if err != nil {
				return err
			}

			paths, err := downloadObjects(c.Context, client, c.String("prefix"), c.String("key"), c.String("dest-dir"))
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(c.App.Writer, p)
			}
			return nil
		},
	}
}

// downloadObjects fetches one key, or every CSV under prefix, into destDir
// keeping the layout below prefix.
func downloadObjects(ctx context.Context, client storage.ObjectStorage, prefix, override, destDir string) ([]string, error) {
	var keys []string

	if override != "" {
		keys = []string{storage.ResolveObjectKey(prefix, override)}
	} else {
		listPrefix := strings.TrimSpace(prefix)
		objects, err := client.ListObjects(ctx, listPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects for prefix %s: %w", listPrefix, err)
		}
		for _, obj := range objects {
			if strings.HasSuffix(strings.ToLower(obj.Key), ".csv") {
				keys = append(keys, obj.Key)
			}
		}
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no CSV files found for prefix %s", prefix)
	}

	localPaths := make([]string, 0, len(keys))
	for _, key := range keys {
		localPath := filepath.Join(destDir, storage.ObjectRelativePath(prefix, key))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to prepare directory for %s: %w", localPath, err)
		}
		if err := client.DownloadObject(ctx, key, localPath); err != nil {
			return nil, err
		}
		logger.Log.Debug().Str("key", key).Str("path", localPath).Msg("downloaded")
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	return localPaths, nil
}
