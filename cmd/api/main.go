// cmd/api/main.go serves the Google Drive import endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/andresuchdata/safety-stock/internal/app"
	"github.com/andresuchdata/safety-stock/internal/config"
	"github.com/andresuchdata/safety-stock/internal/drive"
	"github.com/andresuchdata/safety-stock/pkg/logger"
)

func main() {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	log := logger.Component("drive-import")

	ctx := context.Background()

	// Initialize Google Drive service
	driveService, err := newDriveService(ctx, cfg.Drive)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
	}

	stack, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer stack.Close()

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	stack.Worker.Start(workerCtx)

	importer := drive.NewImportService(drive.NewDownloader(driveService), stack.Calculation)

	// Create router
	r := mux.NewRouter()
	drive.NewHandler(driveService, driveService, importer).RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "folder_id": cfg.Drive.FolderID})
	}).Methods("GET")

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Drive.ImportPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stack.Worker.Stop(shutdownCtx)
}

// newDriveService prefers the credentials file and falls back to the raw
// JSON in GOOGLE_DRIVE_CREDENTIALS_JSON.
func newDriveService(ctx context.Context, cfg config.DriveConfig) (*drive.Service, error) {
	if cfg.CredentialsFile != "" {
		return drive.NewServiceFromFile(ctx, cfg.CredentialsFile)
	}
	raw := os.Getenv("GOOGLE_DRIVE_CREDENTIALS_JSON")
	if raw == "" {
		return nil, errors.New("no drive credentials: set DRIVE_CREDENTIALS_FILE or GOOGLE_DRIVE_CREDENTIALS_JSON")
	}
	return drive.NewService(ctx, []byte(raw))
}
