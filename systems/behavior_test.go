package systems

import (
	"testing"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/mutation"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/world"
)

func init() {
	config.MustInit("")
}

// soilWorld builds a 64^3 grid of soil with a tunnel box carved around
// center and an empty field.
func soilWorld(t *testing.T, center world.Coord, half int) (*world.Grid, *pheromone.Field) {
	t.Helper()
	cfg := config.Cfg()
	g := world.NewGrid(cfg.World.Size, cfg.World.SurfaceLevel)
	for i := range g.Cells() {
		g.Cells()[i] = world.Cell{Tile: world.Soil}
	}
	for dz := -half; dz <= half; dz++ {
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				c := center.Add(world.Coord{X: dx, Y: dy, Z: dz})
				if err := g.SetCell(c, world.Cell{Tile: world.Tunnel}); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	return g, pheromone.NewFromConfig(cfg)
}

func casteIndex(t *testing.T, name string) uint8 {
	t.Helper()
	idx, ok := config.Cfg().Derived.CasteIndex[name]
	if !ok {
		t.Fatalf("caste %q not configured", name)
	}
	return idx
}

func farNest() *ColonyView {
	var garden [components.ResourceFood + 1]int32
	return NewColonyView(world.Coord{X: 2, Y: 2, Z: 16}, 1, garden, nil)
}

// antPositions is a minimal mutation.Colony for applying moves.
type antPositions map[uint32]world.Coord

func (p antPositions) AntPos(id uint32) (world.Coord, bool) { c, ok := p[id]; return c, ok }
func (p antPositions) SetAntPos(id uint32, c world.Coord) { p[id] = c }
func (p antPositions) AntCargo(uint32) components.Cargo { return components.Cargo{} }
func (p antPositions) SetAntCargo(uint32, components.Cargo) {}
func (p antPositions) Feed(uint32, float32) {}
func (p antPositions) TakeFromPlant(world.EntityID, int32) (int32, int32) { return 0, 0 }
func (p antPositions) GardenStock(components.ResourceKind) int32 { return 0 }
func (p antPositions) AddGardenStock(components.ResourceKind, int32) {}
func (p antPositions) IsNest(world.Coord) bool { return false }

func TestHungryAntFollowsFoodScenario(t *testing.T) {
	cfg := config.Cfg()
	start := world.Coord{X: 32, Y: 16, Z: 32}
	food := world.Coord{X: 34, Y: 16, Z: 32}
	g, f := soilWorld(t, start, 3)
	if _, err := f.Deposit(pheromone.Food, food, 1.0); err != nil {
		t.Fatal(err)
	}

	d := NewDecider(cfg, f.Kinds())
	ant := AntView{
		ID:     1,
		Caste:  casteIndex(t, "worker"),
		Pos:    start,
		Hunger: float32(cfg.Needs.HungerCritical),
	}
	dec := d.Decide(ant, g, f, farNest(), AntRNG(1, 0, 1), NewScratch(len(f.Kinds())))

	log := mutation.NewLog(mutation.Rules{})
	log.RecordBatch(dec.Actions)
	ants := antPositions{1: start}
	report := log.ApplyAll(g, f, ants)
	if len(report.Rejected) != 0 {
		t.Fatalf("rejections: %+v", report.Rejected)
	}

	want := world.Coord{X: 33, Y: 16, Z: 32}
	if ants[1] != want {
		t.Errorf("ant at %v, want %v", ants[1], want)
	}
	if dec.Task.State != components.TaskSeekingFood {
		t.Errorf("task = %v, want seeking_food", dec.Task.State)
	}
}

func TestHungryAntNeverMovesAway(t *testing.T) {
	cfg := config.Cfg()
	center := world.Coord{X: 30, Y: 30, Z: 40}
	sources := []world.Coord{
		{X: 33, Y: 30, Z: 40},
		{X: 27, Y: 28, Z: 41},
		{X: 30, Y: 33, Z: 37},
		{X: 32, Y: 32, Z: 42},
	}
	for _, src := range sources {
		t.Run(src.String(), func(t *testing.T) {
			g, f := soilWorld(t, center, 4)
			if _, err := f.Deposit(pheromone.Food, src, 1.0); err != nil {
				t.Fatal(err)
			}
			d := NewDecider(cfg, f.Kinds())
			s := NewScratch(len(f.Kinds()))
			pos := center
			for step := 0; step < 8 && pos != src; step++ {
				ant := AntView{ID: 7, Caste: casteIndex(t, "forager"), Pos: pos, Hunger: float32(cfg.Needs.HungerMax)}
				dec := d.Decide(ant, g, f, farNest(), AntRNG(3, int32(step), 7), s)
				var moved bool
				for _, a := range dec.Actions {
					if a.Kind != mutation.Move {
						continue
					}
					if a.Target.DistSq(src) >= pos.DistSq(src) {
						t.Fatalf("step %d: moved from %v to %v, away from %v", step, pos, a.Target, src)
					}
					pos, moved = a.Target, true
				}
				if !moved {
					break
				}
			}
			if pos.Chebyshev(src) > 1 {
				t.Errorf("ant stopped at %v, source %v", pos, src)
			}
		})
	}
}

func TestWorkerDigsSignaledSoil(t *testing.T) {
	cfg := config.Cfg()
	pos := world.Coord{X: 20, Y: 20, Z: 30}
	g, f := soilWorld(t, pos, 0)
	below := pos.Add(world.Coord{Z: 1})
	if _, err := f.Deposit(pheromone.Dig, below, 0.5); err != nil {
		t.Fatal(err)
	}

	d := NewDecider(cfg, f.Kinds())
	ant := AntView{ID: 2, Caste: casteIndex(t, "worker"), Pos: pos}
	dec := d.Decide(ant, g, f, farNest(), AntRNG(1, 0, 2), NewScratch(len(f.Kinds())))

	if len(dec.Actions) == 0 || dec.Actions[0].Kind != mutation.Dig || dec.Actions[0].Target != below {
		t.Fatalf("actions = %+v, want dig at %v", dec.Actions, below)
	}
	if dec.Task.State != components.TaskDigging {
		t.Errorf("task = %v", dec.Task.State)
	}
}

func TestWorkerIgnoresFaintDigSignal(t *testing.T) {
	cfg := config.Cfg()
	pos := world.Coord{X: 20, Y: 20, Z: 30}
	g, f := soilWorld(t, pos, 0)
	f.Deposit(pheromone.Dig, pos.Add(world.Coord{X: 1}), cfg.Behavior.DigThreshold/2)

	d := NewDecider(cfg, f.Kinds())
	ant := AntView{ID: 2, Caste: casteIndex(t, "worker"), Pos: pos}
	dec := d.Decide(ant, g, f, farNest(), AntRNG(1, 0, 2), NewScratch(len(f.Kinds())))
	for _, a := range dec.Actions {
		if a.Kind == mutation.Dig {
			t.Fatalf("dug below threshold: %+v", a)
		}
	}
}

func TestForagerCutsAdjacentPlant(t *testing.T) {
	cfg := config.Cfg()
	pos := world.Coord{X: 10, Y: 10, Z: 16}
	g, f := soilWorld(t, pos, 1)
	trunk := pos.Add(world.Coord{X: 1})
	g.SetCell(trunk, world.Cell{Tile: world.TreeTrunk, Occupant: 500})

	var garden [components.ResourceFood + 1]int32
	colony := NewColonyView(world.Coord{X: 40, Y: 40, Z: 16}, 1, garden, []PlantView{{ID: 500, Pos: trunk, Leaves: 3}})

	d := NewDecider(cfg, f.Kinds())
	ant := AntView{ID: 4, Caste: casteIndex(t, "forager"), Pos: pos}
	dec := d.Decide(ant, g, f, colony, AntRNG(1, 0, 4), NewScratch(len(f.Kinds())))

	if len(dec.Actions) < 2 {
		t.Fatalf("actions = %+v", dec.Actions)
	}
	if dec.Actions[0].Kind != mutation.CutLeaf || dec.Actions[0].Target != trunk {
		t.Errorf("first action = %+v, want cut leaf at %v", dec.Actions[0], trunk)
	}
	if dec.Actions[1].Kind != mutation.Deposit || dec.Actions[1].Pheromone != pheromone.Forage {
		t.Errorf("second action = %+v, want forage deposit", dec.Actions[1])
	}
	if dec.Actions[1].Seq != 1 {
		t.Errorf("deposit seq = %d, want 1", dec.Actions[1].Seq)
	}
}

func TestCarrierDeliversAtNest(t *testing.T) {
	cfg := config.Cfg()
	nest := world.Coord{X: 32, Y: 32, Z: 16}
	g, f := soilWorld(t, nest, 1)
	var garden [components.ResourceFood + 1]int32
	colony := NewColonyView(nest, 1, garden, nil)

	d := NewDecider(cfg, f.Kinds())
	s := NewScratch(len(f.Kinds()))
	cargo := components.Cargo{Kind: components.ResourceLeaf, Quantity: 1}

	atNest := AntView{ID: 5, Caste: casteIndex(t, "forager"), Pos: nest.Add(world.Coord{X: 1}), Cargo: cargo}
	dec := d.Decide(atNest, g, f, colony, AntRNG(1, 0, 5), s)
	if len(dec.Actions) != 1 || dec.Actions[0].Kind != mutation.Deliver {
		t.Fatalf("actions at nest = %+v, want deliver", dec.Actions)
	}

	g2, f2 := soilWorld(t, world.Coord{X: 36, Y: 32, Z: 16}, 2)
	away := AntView{ID: 5, Caste: casteIndex(t, "forager"), Pos: world.Coord{X: 37, Y: 32, Z: 16}, Cargo: cargo}
	dec = d.Decide(away, g2, f2, colony, AntRNG(1, 0, 5), s)
	var moved, trail bool
	for _, a := range dec.Actions {
		switch a.Kind {
		case mutation.Move:
			moved = true
			if a.Target.DistSq(nest) >= away.Pos.DistSq(nest) {
				t.Errorf("carrier moved to %v, not toward nest", a.Target)
			}
		case mutation.Deposit:
			trail = a.Pheromone == pheromone.Home
		}
	}
	if !moved || !trail {
		t.Errorf("carrier actions = %+v, want home trail and move", dec.Actions)
	}
}

func TestGardenerTendsAndQueenHolds(t *testing.T) {
	cfg := config.Cfg()
	nest := world.Coord{X: 32, Y: 32, Z: 16}
	g, f := soilWorld(t, nest, 1)
	var garden [components.ResourceFood + 1]int32
	garden[components.ResourceLeaf] = 2
	colony := NewColonyView(nest, 1, garden, nil)
	d := NewDecider(cfg, f.Kinds())
	s := NewScratch(len(f.Kinds()))

	dec := d.Decide(AntView{ID: 1, Caste: casteIndex(t, "gardener"), Pos: nest}, g, f, colony, AntRNG(1, 0, 1), s)
	if len(dec.Actions) != 1 || dec.Actions[0].Kind != mutation.Tend {
		t.Errorf("gardener actions = %+v, want tend", dec.Actions)
	}

	dec = d.Decide(AntView{ID: 2, Caste: casteIndex(t, "queen"), Pos: nest}, g, f, colony, AntRNG(1, 0, 2), s)
	if len(dec.Actions) != 0 {
		t.Errorf("queen actions = %+v, want none", dec.Actions)
	}
}

func TestHungryAtNestEats(t *testing.T) {
	cfg := config.Cfg()
	nest := world.Coord{X: 32, Y: 32, Z: 16}
	g, f := soilWorld(t, nest, 1)
	var garden [components.ResourceFood + 1]int32
	garden[components.ResourceFood] = 1
	colony := NewColonyView(nest, 1, garden, nil)
	d := NewDecider(cfg, f.Kinds())

	ant := AntView{ID: 9, Caste: casteIndex(t, "queen"), Pos: nest, Hunger: float32(cfg.Needs.HungerMax)}
	dec := d.Decide(ant, g, f, colony, AntRNG(1, 0, 9), NewScratch(len(f.Kinds())))
	if len(dec.Actions) != 1 || dec.Actions[0].Kind != mutation.Eat {
		t.Errorf("actions = %+v, want eat", dec.Actions)
	}
}

func TestRandomWalkWithoutSignal(t *testing.T) {
	cfg := config.Cfg()
	pos := world.Coord{X: 12, Y: 12, Z: 30}
	g, f := soilWorld(t, pos, 1)
	d := NewDecider(cfg, f.Kinds())
	s := NewScratch(len(f.Kinds()))
	ant := AntView{ID: 3, Caste: casteIndex(t, "soldier"), Pos: pos}

	first := d.Decide(ant, g, f, farNest(), AntRNG(42, 5, 3), s)
	if first.Task.State != components.TaskWandering {
		t.Fatalf("task = %v, want wandering", first.Task.State)
	}
	if len(first.Actions) != 1 || first.Actions[0].Kind != mutation.Move {
		t.Fatalf("actions = %+v, want one move", first.Actions)
	}
	target := first.Actions[0].Target
	if !g.Passable(target) || target.Chebyshev(pos) != 1 {
		t.Errorf("random step to %v is not a passable neighbor", target)
	}

	again := d.Decide(ant, g, f, farNest(), AntRNG(42, 5, 3), s)
	if again.Actions[0].Target != target {
		t.Errorf("same seed chose %v then %v", target, again.Actions[0].Target)
	}
}

func TestDangerRepelsWorkers(t *testing.T) {
	cfg := config.Cfg()
	pos := world.Coord{X: 20, Y: 20, Z: 30}
	g, f := soilWorld(t, pos, 1)
	danger := pos.Add(world.Coord{X: 1})
	f.Deposit(pheromone.Danger, danger, 1.0)
	f.Deposit(pheromone.Dig, pos.Add(world.Coord{X: 3}), 1.0)

	d := NewDecider(cfg, f.Kinds())
	s := NewScratch(len(f.Kinds()))
	for tick := int32(0); tick < 20; tick++ {
		dec := d.Decide(AntView{ID: 8, Caste: casteIndex(t, "worker"), Pos: pos}, g, f, farNest(), AntRNG(9, tick, 8), s)
		for _, a := range dec.Actions {
			if a.Kind == mutation.Move && a.Target == danger {
				t.Fatalf("worker stepped into danger at tick %d", tick)
			}
		}
	}

	dec := d.Decide(AntView{ID: 8, Caste: casteIndex(t, "soldier"), Pos: pos}, g, f, farNest(), AntRNG(9, 0, 8), s)
	if dec.Task.State != components.TaskGuarding {
		t.Errorf("soldier task = %v, want guarding", dec.Task.State)
	}
}

func TestEmissions(t *testing.T) {
	var garden [components.ResourceFood + 1]int32
	garden[components.ResourceFood] = 3
	nest := world.Coord{X: 1, Y: 1, Z: 16}
	v := NewColonyView(nest, 1, garden, []PlantView{
		{ID: 1, Pos: world.Coord{X: 5, Y: 5, Z: 16}, Leaves: 2},
		{ID: 2, Pos: world.Coord{X: 9, Y: 9, Z: 16}, Leaves: 0},
	})
	acts := Emissions(v, 0.05, 0.2, 0.1)
	if len(acts) != 3 {
		t.Fatalf("got %d emissions, want 3: %+v", len(acts), acts)
	}
	for i, a := range acts {
		if a.Ant != mutation.WorldSource || a.Kind != mutation.Deposit {
			t.Errorf("emission %d = %+v", i, a)
		}
		if int(a.Seq) != i {
			t.Errorf("emission %d seq = %d", i, a.Seq)
		}
	}
	if v.Leaves(1) != 2 || v.Leaves(3) != 0 {
		t.Error("leaf lookup wrong")
	}
}
