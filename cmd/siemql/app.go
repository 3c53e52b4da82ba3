package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/siemql/siemql/internal/bus"
	"github.com/siemql/siemql/internal/config"
	"github.com/siemql/siemql/internal/logstore"
	"github.com/siemql/siemql/internal/metrics"
	"github.com/siemql/siemql/internal/pipeline"
	"github.com/siemql/siemql/internal/pkg/logger"
	"github.com/siemql/siemql/internal/planner"
	"github.com/siemql/siemql/internal/query"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	closeLog func() error
	store    *logstore.Client
	bus      bus.Bus
	metrics  *metrics.Metrics
	orch     *pipeline.Orchestrator
}

// loadConfig reads the --config file and applies --verbose.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newApp wires config, logging, the log store, the tagger, the planner and
// the audit bus. Logs go to logOut so they stay clear of command output.
// It fails when the configured index cannot be provisioned.
func newApp(ctx context.Context, cmd *cobra.Command, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logger.NewWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		Output:     logOut,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		closeLog: closeLog,
		metrics:  metrics.New(),
	}

	a.store = logstore.New(logstore.ConfigFrom(cfg.LogStore), log)
	// Connect logs the probe outcome and falls back on failure.
	_, _ = a.store.Connect(ctx)
	if err := a.store.EnsureIndex(ctx, cfg.LogStore.Index); err != nil {
		log.Error("Could not ensure index", "index", cfg.LogStore.Index, "error", err)
		a.Close()
		return nil, err
	}

	var tagger query.EntityTagger
	if t, err := query.NewTagger(ctx, cfg.Tagger, log); err != nil {
		log.Warn("Entity tagger unavailable, using patterns only", "type", cfg.Tagger.Type, "error", err)
	} else {
		tagger = t
	}
	extractor := query.NewExtractor(tagger, log)
	extractor.SetMetrics(a.metrics)

	b, err := bus.NewBus(cfg.Bus, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.bus = bus.NewInstrumentedBus(b, a.metrics)

	a.orch = pipeline.New(extractor, planner.New(planner.ConfigFrom(cfg.Query)), a.store, cfg.LogStore.Index, log)
	a.orch.SetBus(a.bus)
	a.orch.SetMetrics(a.metrics)

	log.Debug("siemql ready",
		"index", cfg.LogStore.Index,
		"bus", cfg.Bus.Type,
		"tagger", cfg.Tagger.Type,
	)
	return a, nil
}

// Close releases the bus and the log file.
func (a *app) Close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.log.Warn("Closing bus", "error", err)
		}
	}
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

// stderr is where interactive commands send logs.
var stderr io.Writer = os.Stderr
