// Command harvester turns university notice feeds into calendar events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"harvester/internal/ai"
	"harvester/internal/calendar"
	"harvester/internal/config"
	"harvester/internal/feed"
	"harvester/internal/harvest"
	appLog "harvester/internal/log"
	"harvester/internal/notify"
	"harvester/internal/preview"
	"harvester/internal/state"
)

var version = "0.1.0-dev"

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:           "harvester",
	Short:         "Extract events from notice feeds and publish them to a calendar",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/harvester/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd, testCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one harvest pass and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		app, err := setup()
		if err != nil {
			return err
		}
		defer app.close()

		stats, err := app.harvester.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "items=%d processed=%d created=%d duplicates=%d skipped=%d failed=%d\n",
			stats.Items, stats.Processed, stats.Created, stats.Duplicates, stats.Skipped, stats.Failed)
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Extract events from the first feed item without publishing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		app, err := setup()
		if err != nil {
			return err
		}
		defer app.close()

		res, err := app.harvester.TestFirst(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// app holds the wired pipeline and the resources to release on exit.
type app struct {
	cfg       *config.Config
	harvester *harvest.Harvester
	calendar  calendar.Calendar
	store     state.Store
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		appLog.Error("failed to close store", err)
	}
}

// setup loads configuration and wires every collaborator.
func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	cfg.ApplyEnv()

	level := appLog.ParseLevel(cfg.LogLevel)
	if debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"feed", cfg.Feed.URL,
		"calendar", cfg.Calendar.Backend,
		"store", cfg.Store.Backend,
		"group_policy", cfg.Dedupe.GroupPolicy,
		"preview", cfg.Preview.Enabled,
	)

	cal, err := calendar.Open(cfg.Calendar)
	if err != nil {
		return nil, fmt.Errorf("open calendar: %w", err)
	}
	store, err := state.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := ai.New(cfg.OpenAI)
	appLog.Debug("llm endpoint", "endpoint", client.Endpoint())

	h := harvest.New(harvest.OptionsFromConfig(cfg),
		feed.NewFetcher(cfg.Feed), client, cal, store, notify.New(cfg.Telegram))
	if cfg.Preview.Enabled {
		timeout := time.Duration(cfg.Preview.TimeoutSeconds) * time.Second
		h.Renderer = preview.NewRenderer(timeout)
		h.Previews = preview.NewFetcher(timeout, cfg.Feed.UserAgent)
	}

	return &app{cfg: cfg, harvester: h, calendar: cal, store: store}, nil
}

// signalContext is canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
