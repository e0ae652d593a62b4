package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/horizon/backend/internal/api"
	"github.com/wonny/horizon/backend/internal/api/handlers"
	"github.com/wonny/horizon/backend/internal/scheduler"
	"github.com/wonny/horizon/backend/internal/scheduler/jobs"
	"github.com/wonny/horizon/backend/pkg/config"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// apiCmd represents the api command.
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the forecasting API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                         - Health check
  POST /api/train                      - Upload data and start a training session
  GET  /api/train/status/{session_id}  - Poll session status
  POST /api/predict/{session_id}       - Forecast with a trained session
  GET  /api/leaderboard/{session_id}   - Combined leaderboard
  GET  /api/sessions                   - Recent sessions
  GET  /ws/train/{session_id}          - Live status stream

Example:
  go run ./cmd/horizon api
  go run ./cmd/horizon api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Wire services
	svc, err := buildServices(cfg, log)
	if err != nil {
		return err
	}
	defer svc.close()

	// 4. Startup cleanup sweep, then the periodic one
	if removed, err := svc.store.CleanupOldSessions(); err != nil {
		log.WithError(err).Warn("Startup session cleanup failed")
	} else if removed > 0 {
		log.WithField("removed", removed).Info("Startup session cleanup done")
	}

	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewSessionCleanupJob(svc.store, log)); err != nil {
		return fmt.Errorf("schedule cleanup job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// 5. HTTP server
	trainingHandler := handlers.NewTrainingHandler(svc.orchestrator, svc.store, svc.index, log)
	router := api.NewRouter(cfg, trainingHandler, log)
	server := api.New(cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 6. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
