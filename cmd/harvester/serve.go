package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"harvester/internal/harvest"
	appLog "harvester/internal/log"
	"harvester/internal/web"
)

var (
	listenAddr string
	runOnStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run harvests on the configured schedule",
	Long: `Start the HTTP API and a cron scheduler that runs a harvest pass on
the "refresh" schedule from the config file.

Endpoints:
  GET  /health       liveness, never behind basic auth
  POST /api/run      run one pass now
  GET  /api/status   outcome of the last pass
  GET  /api/test     dry-run extraction of the first feed item
  GET  /api/events   published events around today`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config if set)")
	serveCmd.Flags().BoolVar(&runOnStart, "run-on-start", true, "Run one pass immediately after startup")
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if listenAddr != "" {
		a.cfg.Listen = listenAddr
	}

	srv := web.NewServer(a.cfg, a.harvester, a.calendar)
	scheduled := func() {
		started := time.Now()
		stats, err := a.harvester.Run(ctx)
		if errors.Is(err, harvest.ErrRunInProgress) {
			appLog.Warn("scheduled run skipped; previous run still active")
			return
		}
		if err != nil {
			appLog.Error("scheduled run failed", err)
		}
		srv.RecordRun(stats, err, started, time.Now())
	}

	loc, err := time.LoadLocation(a.cfg.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; scheduling in local time", err, "name", a.cfg.Timezone)
		loc = time.Local
	}
	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(a.cfg.RefreshCron, scheduled); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", a.cfg.RefreshCron, err)
	}
	sched.Start()
	appLog.Info("scheduler started", "refresh", a.cfg.RefreshCron, "timezone", loc.String())

	if runOnStart {
		go scheduled()
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+a.cfg.Listen, "debug", debug)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			stopScheduler(sched)
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	stopScheduler(sched)
	appLog.Info("harvester exiting")
	return nil
}

// stopScheduler waits for a running job to observe cancellation.
func stopScheduler(c *cron.Cron) {
	select {
	case <-c.Stop().Done():
	case <-time.After(30 * time.Second):
		appLog.Warn("scheduled run did not finish before shutdown")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
