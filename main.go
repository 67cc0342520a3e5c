package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	journalPath := flag.String("journal", "", "Write a per-tick action journal to this file")
	indexDB := flag.String("index-db", "", "Record the run in this SQLite index")
	label := flag.String("label", "", "Run label stored in the index")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	realtime := flag.Bool("realtime", false, "Tick at the configured base rate instead of as fast as possible")
	speed := flag.Int("speed", 1, "Speed multiplier in realtime mode (1, 2 or 4)")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	g, err := game.New(cfg, game.Options{
		Seed:        rngSeed,
		LogStats:    *logStats,
		SnapshotDir: *snapshotDir,
		OutputDir:   *outputDir,
		JournalPath: *journalPath,
		IndexPath:   *indexDB,
		RunLabel:    *label,
	})
	if err != nil {
		slog.Error("failed to create game", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting simulation",
		"seed", rngSeed,
		"max_ticks", *maxTicks,
		"realtime", *realtime,
	)

	if *realtime {
		err = runRealtime(ctx, g, *speed, *maxTicks)
	} else {
		runHeadless(ctx, g, *maxTicks)
	}

	slog.Info("simulation stopped", "tick", g.Tick(), "population", g.Population(), "digest", g.Digest())
	if cerr := g.Close(); cerr != nil {
		slog.Error("failed to close outputs", "error", cerr)
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

// runHeadless steps as fast as possible.
func runHeadless(ctx context.Context, g *game.Game, maxTicks int) {
	for ctx.Err() == nil {
		g.Step()

		if maxTicks > 0 && int(g.Tick()) >= maxTicks {
			slog.Info("max ticks reached", "tick", g.Tick())
			return
		}
	}
}

// runRealtime drives the scheduler from a wall-clock ticker.
func runRealtime(ctx context.Context, g *game.Game, speed, maxTicks int) error {
	if err := g.Submit(game.SetSpeed(speed)); err != nil {
		return err
	}
	if err := g.Submit(game.Resume()); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if maxTicks > 0 {
		go func() {
			t := time.NewTicker(50 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if int(g.Tick()) >= maxTicks {
						slog.Info("max ticks reached", "tick", g.Tick())
						cancel()
						return
					}
				}
			}
		}()
	}
	return g.Run(ctx)
}
