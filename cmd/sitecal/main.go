package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/sitecal/internal/config"
	"github.com/dukerupert/sitecal/internal/database"
	"github.com/dukerupert/sitecal/internal/logging"
	"github.com/dukerupert/sitecal/internal/server"
)

const usage = `usage:
  sitecal [serve]     run the HTTP server
  sitecal expand ...  print the occurrences of a recurrence rule (see sitecal expand -h)
`

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		if err := serve(); err != nil {
			slog.Error("sitecal", "error", err)
			os.Exit(1)
		}
	case "expand":
		if err := runExpand(args, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "expand:", err)
			os.Exit(2)
		}
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", cmd, usage)
		os.Exit(2)
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.ConfigFile != "" {
		logger.Info("config file", "path", cfg.ConfigFile)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	maintLogger := logger.With("component", "maintenance")
	maint := cron.New()
	if _, err := maint.AddFunc(cfg.MaintenanceCron, func() {
		srv.RateLimiter().Cleanup()
		if err := database.Optimize(db); err != nil {
			maintLogger.Warn("optimize database", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}
	maint.Start()
	defer maint.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sitecal running", "addr", "http://localhost:"+cfg.Port,
			"db", cfg.DBPath, "timezone", cfg.Location.String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
