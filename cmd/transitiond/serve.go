package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/heimdex/transitiond/internal/api"
	"github.com/heimdex/transitiond/internal/config"
	"github.com/heimdex/transitiond/internal/db"
	"github.com/heimdex/transitiond/internal/export"
	"github.com/heimdex/transitiond/internal/logging"
	"github.com/heimdex/transitiond/internal/metrics"
	"github.com/heimdex/transitiond/internal/timeline"
	"github.com/heimdex/transitiond/internal/ui"
)

var errAlreadyRunning = errors.New("another transitiond instance is using this data directory")

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the transition service and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx)
		},
	}
}

func runServe(cmd *cobra.Command, ctx *commandContext) error {
	startTime := time.Now()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	lock, err := acquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer lock.Unlock()

	logger := logging.NewLogger(cfg.LogLevel(), os.Stdout)
	logger.Info("starting transitiond", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := timeline.NewRepository(database.Conn())
	m := metrics.New()

	svc := timeline.NewService(repo, logger, m)
	if err := svc.Load(cmd.Context()); err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}
	clips, transitions := svc.Counts()
	logger.Info("timeline loaded", "clips", clips, "transitions", transitions)

	authToken, err := ensureAuthToken(cmd.Context(), repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(out, "║                    TRANSITIOND v%-26s║\n", config.Version)
	fmt.Fprintln(out, "╠═══════════════════════════════════════════════════════════╣")
	fmt.Fprintf(out, "║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Fprintf(out, "║  Auth Token: %-45s ║\n", authToken)
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Timeline:   svc,
		Repository: repo,
		Metrics:    m,
		Logger:     logger,
		StartTime:  startTime,
		FrameRate:  cfg.FrameRate(),
		Version:    config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	quitCh := make(chan struct{})
	quit := func() {
		select {
		case <-quitCh:
		default:
			close(quitCh)
		}
	}

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Counter: svc,
			Addr:    apiServer.Addr(),
			Logger:  logger,
			OnExport: func() (string, error) {
				return exportTimeline(svc, export.ExportRequest{
					ProjectName: "timeline",
					FrameRate:   cfg.FrameRate(),
					OutputDir:   cfg.DataDir(),
					Track:       1,
				})
			},
			OnQuit: quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// acquireLock takes an exclusive lock on path without blocking.
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", errAlreadyRunning, path)
	}
	return lock, nil
}

func ensureAuthToken(ctx context.Context, repo timeline.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}

func exportTimeline(svc *timeline.Service, req export.ExportRequest) (string, error) {
	resp, err := export.Write(export.Sequence{
		Clips:       svc.ListClips(),
		Transitions: svc.ListTransitions(),
	}, req)
	if err != nil {
		return "", err
	}
	return resp.OutputPath, nil
}
