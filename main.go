package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/tetrevo/config"
	"github.com/pthm-cable/tetrevo/evolution"
	"github.com/pthm-cable/tetrevo/sim"
	"github.com/pthm-cable/tetrevo/storage"
	"github.com/pthm-cable/tetrevo/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Log generation stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxGenerations := flag.Int("max-generations", 0, "Stop after N generations (0 = unlimited)")
	importPath := flag.String("import", "", "Import a state JSON file instead of the stored state")
	storeKind := flag.String("store", "", "Storage backend override: memory, sqlite or http")
	workers := flag.Int("workers", -1, "Runner tick workers (-1 = use config, 0 = GOMAXPROCS)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *storeKind != "" {
		cfg.Storage.Kind = *storeKind
	}
	if *workers >= 0 {
		cfg.Sim.Workers = *workers
		if err := cfg.Finalize(); err != nil {
			slog.Error("invalid config", "error", err)
			os.Exit(1)
		}
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		slog.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	if err := store.Init(ctx); err != nil {
		slog.Error("failed to init store", "kind", cfg.Storage.Kind, "error", err)
		os.Exit(1)
	}
	defer storage.CloseIfSupported(store)

	om, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output manager", "error", err)
		os.Exit(1)
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config snapshot", "error", err)
	}

	engine := evolution.NewEngine(cfg, rngSeed)
	defer engine.Close()

	in := make(chan sim.Command, max(1, cfg.Sim.CommandBuffer))
	out := make(chan sim.Update, 4)
	if data := initialState(ctx, cfg, store, *importPath); data != nil {
		in <- sim.ImportState{Data: data}
	}

	slog.Info("starting simulation",
		"seed", rngSeed,
		"population", cfg.Evolution.PopulationSize,
		"workers", cfg.Derived.Workers,
		"store", cfg.Storage.Kind,
		"max_generations", *maxGenerations,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	simulator := sim.New(cfg, engine, sim.WithSaver(store))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := simulator.Run(runCtx, in, out); err != nil && runCtx.Err() == nil {
			slog.Error("simulator stopped", "error", err)
		}
	}()

	rec := newRecorder(om, cfg.Telemetry.LeaderboardSize, *logStats)
	for {
		select {
		case <-done:
			saveFinal(cfg, store, engine)
			return
		case u := <-out:
			rep := u.EndOfGeneration
			if rep == nil {
				continue
			}
			rec.record(u)
			if *maxGenerations > 0 && rep.Stats.Generation >= *maxGenerations {
				slog.Info("max generations reached", "generation", rep.Stats.Generation)
				cancel()
			}
		}
	}
}

// initialState returns the state to import at startup, if any.
func initialState(ctx context.Context, cfg *config.Config, store storage.Store, importPath string) []byte {
	if importPath != "" {
		data, err := os.ReadFile(importPath)
		if err != nil {
			slog.Warn("failed to read import file", "path", importPath, "error", err)
			return nil
		}
		return data
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Storage.Timeout)
	defer cancel()
	data, ok, err := store.Load(ctx, cfg.Storage.Key)
	if err != nil {
		slog.Warn("failed to load stored state", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	slog.Info("resuming stored state", "key", cfg.Storage.Key, "bytes", len(data))
	return data
}

// saveFinal stores the engine state once the simulator has stopped.
func saveFinal(cfg *config.Config, store storage.Store, engine *evolution.Engine) {
	if cfg.Storage.SaveEvery <= 0 {
		return
	}
	data, err := evolution.EncodeState(engine.Export())
	if err != nil {
		slog.Error("encode final state", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.Timeout)
	defer cancel()
	if err := store.Save(ctx, cfg.Storage.Key, data); err != nil {
		slog.Warn("failed to save final state", "error", err)
		return
	}
	slog.Info("final state saved", "generation", engine.Generation(), "bytes", len(data))
}
