// Package game runs the colony: it owns the ECS world, the grid and the
// pheromone field, and advances them one tick at a time.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/journal"
	"github.com/pthm-cable/acre/mutation"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/runindex"
	"github.com/pthm-cable/acre/systems"
	"github.com/pthm-cable/acre/telemetry"
	"github.com/pthm-cable/acre/world"
	"github.com/pthm-cable/acre/worldgen"
)

// Options configures a new game.
type Options struct {
	Seed        int64
	LogStats    bool   // log window stats and bookmarks via slog
	SnapshotDir string // save snapshots on bookmarks (empty = disabled)
	OutputDir   string // CSV telemetry, config and summary (empty = disabled)
	JournalPath string // per-tick action journal (empty = disabled)
	IndexPath   string // SQLite run index (empty = disabled)
	RunLabel    string // label stored in the run index

	// OnStats is called with every flushed stats window.
	OnStats func(telemetry.WindowStats)
}

// Game holds the complete simulation state.
type Game struct {
	cfg  *config.Config
	seed int64
	rng  *rand.Rand // colony-level draws (egg castes); ants use systems.AntRNG

	world *ecs.World

	antMapper *ecs.Map5[
		components.Position,
		components.Ant,
		components.Needs,
		components.Cargo,
		components.Task,
	]
	antFilter *ecs.Filter5[
		components.Position,
		components.Ant,
		components.Needs,
		components.Cargo,
		components.Task,
	]
	plantMapper *ecs.Map2[components.Position, components.Resource]
	plantFilter *ecs.Filter2[components.Position, components.Resource]

	posMap   *ecs.Map1[components.Position]
	antMap   *ecs.Map1[components.Ant]
	needsMap *ecs.Map1[components.Needs]
	cargoMap *ecs.Map1[components.Cargo]
	taskMap  *ecs.Map1[components.Task]
	resMap   *ecs.Map1[components.Resource]

	ants   map[uint32]ecs.Entity
	plants map[world.EntityID]ecs.Entity
	garden [components.ResourceFood + 1]int32

	grid    *world.Grid
	field   *pheromone.Field
	log     *mutation.Log
	decider *systems.Decider
	traits  []components.CasteTraits
	nest    world.Coord
	cells   []world.Coord // fungus garden cells

	parallel *parallelState

	// mu guards all simulation state. A tick holds the write lock.
	mu sync.RWMutex

	cmdMu    sync.Mutex
	commands []Command

	state    State
	speed    int
	tick     int32
	nextID   uint32
	worldSeq uint16

	events  []telemetry.Event // colony events of the tick in progress
	hazards []world.Coord     // danger deposits owed from hazard deaths

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	outputManager    *telemetry.OutputManager
	bookmarkDetector *telemetry.BookmarkDetector
	lifetimeTracker  *telemetry.LifetimeTracker
	journal          *journal.Writer
	index            *runindex.Index
	runID            int64
	journalPath      string
	indexPath        string
	statsCallback    func(telemetry.WindowStats)
	logStats         bool
	snapshotDir      string
	peakPopulation   int
	bookmarkCount    int
	tunnelsDug       int
}

// New creates a game from cfg. The world is generated from opts.Seed and
// the founding colony is placed at the nest. The game starts paused.
func New(cfg *config.Config, opts Options) (*Game, error) {
	gen, err := worldgen.Generate(cfg, opts.Seed)
	if err != nil {
		return nil, err
	}

	w := ecs.NewWorld()
	field := pheromone.NewFromConfig(cfg)

	g := &Game{
		cfg:   cfg,
		seed:  opts.Seed,
		rng:   rand.New(rand.NewPCG(uint64(opts.Seed), 0x9e3779b97f4a7c15)),
		world: w,
		antMapper: ecs.NewMap5[
			components.Position,
			components.Ant,
			components.Needs,
			components.Cargo,
			components.Task,
		](w),
		antFilter: ecs.NewFilter5[
			components.Position,
			components.Ant,
			components.Needs,
			components.Cargo,
			components.Task,
		](w),
		plantMapper: ecs.NewMap2[components.Position, components.Resource](w),
		plantFilter: ecs.NewFilter2[components.Position, components.Resource](w),
		posMap:      ecs.NewMap1[components.Position](w),
		antMap:      ecs.NewMap1[components.Ant](w),
		needsMap:    ecs.NewMap1[components.Needs](w),
		cargoMap:    ecs.NewMap1[components.Cargo](w),
		taskMap:     ecs.NewMap1[components.Task](w),
		resMap:      ecs.NewMap1[components.Resource](w),

		ants:   make(map[uint32]ecs.Entity),
		plants: make(map[world.EntityID]ecs.Entity),

		grid:  gen.Grid,
		field: field,
		log: mutation.NewLog(mutation.Rules{
			FoodPerMeal:  int32(cfg.Needs.FoodPerMeal),
			MealRelief:   float32(cfg.Needs.MealRelief),
			MulchPerLeaf: int32(cfg.Colony.MulchPerLeaf),
		}),
		decider: systems.NewDecider(cfg, field.Kinds()),
		nest:    gen.Nest,
		cells:   gen.Garden,
		nextID:  1,

		state: Paused,
		speed: 1,

		collector:        telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Derived.TickInterval, casteNames(cfg)),
		perfCollector:    telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		bookmarkDetector: telemetry.NewBookmarkDetector(10),
		lifetimeTracker:  telemetry.NewLifetimeTracker(),
		statsCallback:    opts.OnStats,
		logStats:         opts.LogStats,
		snapshotDir:      opts.SnapshotDir,
	}
	g.traits = g.decider.Traits()
	g.parallel = newParallelState(cfg, len(field.Kinds()))

	g.garden[components.ResourceFood] = int32(cfg.Colony.InitialFood)
	g.spawnPlants(gen.Plants)
	g.seedDigging()
	if err := g.spawnInitialColony(); err != nil {
		return nil, err
	}

	if err := g.openOutputs(opts); err != nil {
		g.Close()
		return nil, err
	}

	slog.Debug("game created",
		"seed", opts.Seed,
		"nest", g.nest.String(),
		"ants", len(g.ants),
		"plants", len(g.plants),
	)
	return g, nil
}

// openOutputs creates the optional output sinks.
func (g *Game) openOutputs(opts Options) error {
	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	g.outputManager = om
	if err := om.WriteConfig(g.cfg); err != nil {
		return err
	}

	if opts.JournalPath != "" {
		j, err := journal.Create(opts.JournalPath)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		g.journal = j
		g.journalPath = opts.JournalPath
	}

	if opts.IndexPath != "" {
		idx, err := runindex.Open(opts.IndexPath)
		if err != nil {
			return fmt.Errorf("run index: %w", err)
		}
		g.index = idx
		g.indexPath = opts.IndexPath
		id, err := idx.BeginRun(context.Background(), g.seed, opts.RunLabel, time.Now())
		if err != nil {
			return err
		}
		g.runID = id
	}
	return nil
}

func casteNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.Castes))
	for i, c := range cfg.Castes {
		names[i] = c.Name
	}
	return names
}

// Close stops the worker pool, writes the run summary and closes outputs.
func (g *Game) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopParallelWorkers()

	sum := g.runSummary()
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if g.outputManager != nil {
		keep(g.outputManager.WriteSummary(sum))
		keep(g.outputManager.Close())
		g.outputManager = nil
	}
	if g.index != nil {
		keep(g.index.FinishRun(context.Background(), g.runID, sum))
		keep(g.index.Close())
		g.index = nil
	}
	keep(g.journal.Close())
	g.journal = nil
	return firstErr
}

// Summary returns the end-of-run record for the current state.
func (g *Game) Summary() telemetry.RunSummary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.runSummary()
}

func (g *Game) runSummary() telemetry.RunSummary {
	return telemetry.RunSummary{
		Seed:            g.seed,
		Ticks:           g.tick,
		FinalPopulation: len(g.ants),
		PeakPopulation:  g.peakPopulation,
		TunnelsDug:      g.tunnelsDug,
		Bookmarks:       g.bookmarkCount,
		Digest:          g.createSnapshot(nil).Digest(),
		Journal:         g.journalPath,
		Index:           g.indexPath,
		RunID:           g.runID,
	}
}

// Tick returns the number of completed ticks.
func (g *Game) Tick() int32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tick
}

// Population returns the number of living ants.
func (g *Game) Population() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.ants)
}

// Seed returns the world seed.
func (g *Game) Seed() int64 { return g.seed }

// Config returns the configuration the game was built with.
func (g *Game) Config() *config.Config { return g.cfg }

// Snapshot returns a full copy of the current state.
func (g *Game) Snapshot() *telemetry.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.createSnapshot(nil)
}

// Digest returns the state digest at the current tick.
func (g *Game) Digest() string {
	return g.Snapshot().Digest()
}
