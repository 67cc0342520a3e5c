package game

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/journal"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/runindex"
	"github.com/pthm-cable/acre/telemetry"
	"github.com/pthm-cable/acre/world"
)

func init() {
	config.MustInit("")
}

func newTestGame(t *testing.T, cfg *config.Config, opts Options) *Game {
	t.Helper()
	if cfg == nil {
		cfg = config.Cfg()
	}
	g, err := New(cfg, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func initialPopulation(cfg *config.Config) int {
	n := 0
	for _, ic := range cfg.Colony.Initial {
		n += ic.Count
	}
	return n
}

func TestNewPlacesColony(t *testing.T) {
	cfg := config.Cfg()
	g := newTestGame(t, nil, Options{Seed: 1})

	if got, want := g.Population(), initialPopulation(cfg); got != want {
		t.Errorf("population = %d, want %d", got, want)
	}
	if g.State() != Paused || g.Speed() != 1 {
		t.Errorf("state = %v speed %d, want paused speed 1", g.State(), g.Speed())
	}

	g.View(func(v ReadView) {
		for _, a := range v.Ants() {
			if a.Pos != v.Nest() {
				t.Errorf("ant %d at %v, want nest %v", a.ID, a.Pos, v.Nest())
			}
		}
		if got := v.Garden(components.ResourceFood); got != int32(cfg.Colony.InitialFood) {
			t.Errorf("garden food = %d, want %d", got, cfg.Colony.InitialFood)
		}
		plants := v.Plants()
		if len(plants) == 0 {
			t.Fatal("no plants")
		}
		for _, p := range plants {
			cell := v.Grid().MustCellAt(p.Pos)
			if cell.Occupant != p.ID || cell.Tile != world.TreeTrunk {
				t.Errorf("plant %d cell = %+v", p.ID, cell)
			}
		}
	})
}

func TestDeterministicDigest(t *testing.T) {
	serial := *config.Cfg()
	serial.Schedule.Workers = 1

	parallel := *config.Cfg()
	parallel.Schedule.Workers = 4
	parallel.Schedule.ParallelThreshold = 1

	a := newTestGame(t, &serial, Options{Seed: 7})
	b := newTestGame(t, &parallel, Options{Seed: 7})

	for i := 0; i < 120; i++ {
		a.Step()
		b.Step()
		if i%40 == 39 {
			if da, db := a.Digest(), b.Digest(); da != db {
				t.Fatalf("tick %d: digests differ\n%s\n%s", a.Tick(), da, db)
			}
		}
	}
	if a.Tick() != 120 {
		t.Errorf("tick = %d, want 120", a.Tick())
	}
}

func TestSeedsDiverge(t *testing.T) {
	a := newTestGame(t, nil, Options{Seed: 1})
	b := newTestGame(t, nil, Options{Seed: 2})
	if a.Digest() == b.Digest() {
		t.Error("different seeds produced identical worlds")
	}
}

func TestSchedulerStates(t *testing.T) {
	g := newTestGame(t, nil, Options{Seed: 3})

	g.Update()
	if g.Tick() != 0 {
		t.Fatalf("paused update advanced to tick %d", g.Tick())
	}

	steps := []struct {
		cmd       Command
		wantState State
		wantTick  int32
	}{
		{Resume(), Running, 1},
		{SetSpeed(4), Running, 5},
		{SetSpeed(2), Running, 7},
		{Pause(), Paused, 7},
		{TogglePause(), Running, 9},
		{TogglePause(), Paused, 9},
	}
	for _, s := range steps {
		if err := g.Submit(s.cmd); err != nil {
			t.Fatalf("submit %v: %v", s.cmd, err)
		}
		g.Update()
		if g.State() != s.wantState || g.Tick() != s.wantTick {
			t.Errorf("after %v: state %v tick %d, want %v tick %d",
				s.cmd, g.State(), g.Tick(), s.wantState, s.wantTick)
		}
	}

	g.Step()
	if g.Tick() != 10 || g.State() != Paused {
		t.Errorf("step while paused: tick %d state %v", g.Tick(), g.State())
	}
}

func TestSubmitValidation(t *testing.T) {
	g := newTestGame(t, nil, Options{Seed: 4})

	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"speed 0", SetSpeed(0), ErrInvalidSpeed},
		{"speed 3", SetSpeed(3), ErrInvalidSpeed},
		{"speed 8", SetSpeed(8), ErrInvalidSpeed},
		{"unknown caste", SpawnAnt("drone", world.Coord{X: 1, Y: 1, Z: 16}), ErrUnknownCaste},
		{"spawn out of bounds", SpawnAnt("worker", world.Coord{X: 64, Y: 1, Z: 16}), world.ErrOutOfBounds},
		{"unknown pheromone", PlacePheromone("alarm", world.Coord{X: 1, Y: 1, Z: 16}, 0.5), pheromone.ErrUnknownKind},
		{"tile out of bounds", SetTile(world.Coord{X: -1}, world.Stone), world.ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.Submit(tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("Submit(%v) = %v, want %v", tt.cmd, err, tt.want)
			}
		})
	}

	for _, n := range []int{1, 2, 4} {
		if err := g.Submit(SetSpeed(n)); err != nil {
			t.Errorf("SetSpeed(%d): %v", n, err)
		}
	}
}

func TestSpawnAntCommand(t *testing.T) {
	g := newTestGame(t, nil, Options{Seed: 5})
	before := g.Population()

	at := world.Coord{X: 10, Y: 10, Z: 16}
	if err := g.Submit(SpawnAnt("forager", at)); err != nil {
		t.Fatal(err)
	}
	if g.Population() != before {
		t.Fatal("spawn applied before the tick boundary")
	}
	g.Update()
	if g.Population() != before+1 {
		t.Fatalf("population = %d, want %d", g.Population(), before+1)
	}

	found := false
	g.View(func(v ReadView) {
		for _, a := range v.Ants() {
			if a.Pos == at && a.Caste == "forager" {
				found = true
			}
		}
	})
	if !found {
		t.Error("spawned forager not found")
	}
}

func TestPlacePheromoneCommand(t *testing.T) {
	g := newTestGame(t, nil, Options{Seed: 6})
	at := world.Coord{X: 4, Y: 4, Z: 16}

	if err := g.Submit(PlacePheromone(pheromone.Food, at, 0.8)); err != nil {
		t.Fatal(err)
	}
	g.Step()

	g.View(func(v ReadView) {
		if got := v.Field().Sample(pheromone.Food, at); got <= 0 {
			t.Errorf("food at %v = %v, want > 0", at, got)
		}
	})
}

func TestSetTileHazardKillsAnt(t *testing.T) {
	g := newTestGame(t, nil, Options{Seed: 8})
	before := g.Population()

	// Queens hold still, so the spawned one is still on the cell when it turns to stone.
	at := world.Coord{X: 8, Y: 8, Z: 16}
	if err := g.Submit(SpawnAnt("queen", at)); err != nil {
		t.Fatal(err)
	}
	if err := g.Submit(SetTile(at, world.Stone)); err != nil {
		t.Fatal(err)
	}
	g.Step()

	if g.Population() != before {
		t.Fatalf("population = %d, want %d after hazard death", g.Population(), before)
	}

	g.Step()
	g.View(func(v ReadView) {
		if v.Grid().TileAt(at) != world.Stone {
			t.Errorf("tile = %v, want stone", v.Grid().TileAt(at))
		}
		if v.Field().Sample(pheromone.Danger, at) <= 0 {
			t.Error("no danger left where the ant died")
		}
	})
}

func TestStarvation(t *testing.T) {
	cfg := *config.Cfg()
	cfg.Needs.HungerRate = 60
	cfg.Colony.InitialFood = 0
	cfg.Telemetry.StatsWindow = 5

	var windows []telemetry.WindowStats
	g := newTestGame(t, &cfg, Options{
		Seed:    9,
		OnStats: func(s telemetry.WindowStats) { windows = append(windows, s) },
	})
	for i := 0; i < 5; i++ {
		g.Step()
	}

	if g.Population() != 0 {
		t.Fatalf("population = %d, want 0", g.Population())
	}
	if len(windows) != 1 {
		t.Fatalf("windows = %d, want 1", len(windows))
	}
	want := initialPopulation(&cfg)
	if windows[0].DeathsStarvation != want || windows[0].Deaths != want {
		t.Errorf("deaths = %d (starvation %d), want %d", windows[0].Deaths, windows[0].DeathsStarvation, want)
	}
}

func TestGrowGarden(t *testing.T) {
	cfg := config.Cfg()
	g := newTestGame(t, nil, Options{Seed: 10})
	g.garden = [components.ResourceFood + 1]int32{}
	g.garden[components.ResourceMulch] = 3

	g.growGarden()
	if g.garden[components.ResourceMulch] != 0 || g.garden[components.ResourceFungus] != 3 || g.garden[components.ResourceFood] != 0 {
		t.Errorf("after first growth: %v", g.garden)
	}

	g.growGarden()
	want := int32(3 * cfg.Colony.FoodPerFungus)
	if g.garden[components.ResourceFungus] != 0 || g.garden[components.ResourceFood] != want {
		t.Errorf("after second growth: %v, want food %d", g.garden, want)
	}
}

func TestRemoveDepletedPlantsLeavesGrid(t *testing.T) {
	g := newTestGame(t, nil, Options{Seed: 15})
	if len(g.plants) == 0 {
		t.Skip("seed produced no plants")
	}
	var id world.EntityID
	for pid := range g.plants {
		if id == 0 || pid < id {
			id = pid
		}
	}
	if taken, remaining := (colony{g}).TakeFromPlant(id, 1<<20); taken == 0 || remaining != 0 {
		t.Fatalf("take = %d, remaining %d", taken, remaining)
	}

	before := slices.Clone(g.grid.Cells())
	g.removeDepletedPlants()

	if _, ok := g.plants[id]; ok {
		t.Errorf("plant %d still tracked", id)
	}
	if !slices.Equal(before, g.grid.Cells()) {
		t.Error("lifecycle changed the grid")
	}
}

func TestLayEggs(t *testing.T) {
	cfg := *config.Cfg()
	g := newTestGame(t, &cfg, Options{Seed: 11})
	before := g.Population()

	g.garden[components.ResourceFood] = int32(cfg.Colony.EggCost)
	g.layEggs()
	if g.Population() != before+1 {
		t.Fatalf("population = %d, want %d", g.Population(), before+1)
	}
	if g.garden[components.ResourceFood] != 0 {
		t.Errorf("food = %d, want 0", g.garden[components.ResourceFood])
	}

	// Not enough food
	g.layEggs()
	if g.Population() != before+1 {
		t.Errorf("egg laid without food")
	}

	// Population cap
	g.garden[components.ResourceFood] = 100
	cfg.Colony.MaxPopulation = g.Population()
	g.layEggs()
	if g.Population() != before+1 {
		t.Errorf("egg laid at population cap")
	}
}

func TestDrawCasteSkipsZeroWeight(t *testing.T) {
	g := newTestGame(t, nil, Options{Seed: 12})
	counts := make(map[string]int)
	for i := 0; i < 2000; i++ {
		c, ok := g.drawCaste()
		if !ok {
			t.Fatal("no caste drawn")
		}
		counts[g.casteName(c)]++
	}
	if counts["queen"] != 0 {
		t.Errorf("drew %d queens", counts["queen"])
	}
	if counts["forager"] <= counts["soldier"] {
		t.Errorf("forager %d <= soldier %d despite higher weight", counts["forager"], counts["soldier"])
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	g := newTestGame(t, nil, Options{Seed: 13})
	if err := g.Submit(Resume()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 350*time.Millisecond)
	defer cancel()
	if err := g.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}
	if g.Tick() < 1 {
		t.Errorf("tick = %d, want at least 1", g.Tick())
	}
}

func TestViewDigestWithConcurrentSteps(t *testing.T) {
	g := newTestGame(t, nil, Options{Seed: 16})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			g.Step()
		}
	}()

	for i := 0; i < 20; i++ {
		var tick int32
		var viewed string
		g.View(func(v ReadView) {
			tick = v.Tick()
			viewed = v.Digest()
		})
		if viewed == "" {
			t.Fatalf("empty digest at tick %d", tick)
		}
	}
	<-done

	var viewed string
	g.View(func(v ReadView) { viewed = v.Digest() })
	if viewed != g.Digest() {
		t.Errorf("view digest %s, game digest %s", viewed, g.Digest())
	}
}

func TestOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := *config.Cfg()
	cfg.Telemetry.StatsWindow = 20

	opts := Options{
		Seed:        14,
		OutputDir:   filepath.Join(dir, "out"),
		JournalPath: filepath.Join(dir, "out", "journal.jsonl.zst"),
		IndexPath:   filepath.Join(dir, "runs.db"),
		RunLabel:    "test",
	}
	g, err := New(&cfg, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 40; i++ {
		g.Step()
	}
	digest := g.Digest()
	if err := g.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"telemetry.csv", "perf.csv", "bookmarks.csv", "config.yaml", "summary.json"} {
		if _, err := os.Stat(filepath.Join(opts.OutputDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	sum, err := telemetry.ReadSummary(opts.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Journal != "journal.jsonl.zst" || sum.Index != opts.IndexPath || sum.RunID == 0 {
		t.Errorf("summary cross-references = %q %q %d", sum.Journal, sum.Index, sum.RunID)
	}

	ticks := 0
	births := 0
	if err := journal.Read(opts.JournalPath, func(e journal.TickEntry) error {
		if e.Tick != int32(ticks) {
			t.Errorf("journal tick %d at line %d", e.Tick, ticks)
		}
		ticks++
		for _, ev := range e.Events {
			if ev.Type == telemetry.EventBirth {
				births++
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if ticks != 40 {
		t.Errorf("journal has %d ticks, want 40", ticks)
	}
	// Founding ants are born before the first tick and logged with it.
	if births < initialPopulation(&cfg) {
		t.Errorf("journal births = %d, want at least %d", births, initialPopulation(&cfg))
	}

	idx, err := runindex.Open(opts.IndexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	runs, err := idx.Runs(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != sum.RunID || runs[0].Ticks != 40 || runs[0].Digest != digest || runs[0].Label != "test" {
		t.Errorf("runs = %+v", runs)
	}
	windows, err := idx.Windows(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(windows) != 2 {
		t.Errorf("windows = %d, want 2", len(windows))
	}
}
