package systems

import (
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/mutation"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/world"
)

// AntView is the snapshot of one ant handed to Decide.
type AntView struct {
	ID     uint32
	Caste  uint8
	Pos    world.Coord
	Hunger float32
	Cargo  components.Cargo
	Task   components.Task
}

// Decision is the outcome of one ant's decide step.
type Decision struct {
	Actions []mutation.Action // owned by the scratch; copy before reuse
	Task    components.Task
}

// sensedCell is a cell whose intensity cleared the noise threshold.
type sensedCell struct {
	c world.Coord
	v float32
}

// Scratch holds per-worker reusable buffers.
type Scratch struct {
	sensed  [][]sensedCell // per pheromone layer
	peak    []float32      // max sensed intensity per layer
	cands   []world.Coord
	actions []mutation.Action
}

// NewScratch allocates buffers for a field with the given number of layers.
func NewScratch(layers int) *Scratch {
	s := &Scratch{
		sensed:  make([][]sensedCell, layers),
		peak:    make([]float32, layers),
		cands:   make([]world.Coord, 0, 26),
		actions: make([]mutation.Action, 0, 4),
	}
	for i := range s.sensed {
		s.sensed[i] = make([]sensedCell, 0, 32)
	}
	return s
}

func (s *Scratch) emit(a mutation.Action) {
	a.Seq = uint16(len(s.actions))
	s.actions = append(s.actions, a)
}

// Decider evaluates the priority policy. It holds only immutable
// parameters and is shared by all workers.
type Decider struct {
	traits []components.CasteTraits

	radius         int
	falloff        float32
	noise          uint32
	digThreshold   uint32
	avoidThreshold uint32
	hungerCritical float32

	trailDeposit  float64
	homeDeposit   float64
	forageDeposit float64
	digDeposit    float64

	kinds                                []pheromone.Kind
	kDig, kForage, kHome, kFood, kDanger int // layer indexes, -1 if absent
}

// NewDecider resolves config against the field's layer order.
func NewDecider(cfg *config.Config, kinds []pheromone.Kind) *Decider {
	d := &Decider{
		traits:         components.BuildCasteTraits(cfg),
		radius:         max(cfg.Behavior.SenseRadius, 1),
		falloff:        float32(cfg.Behavior.DistanceFalloff),
		noise:          cfg.Derived.NoiseFixed,
		digThreshold:   uint32(cfg.Behavior.DigThreshold * pheromone.One),
		avoidThreshold: uint32(cfg.Behavior.AvoidThreshold * pheromone.One),
		hungerCritical: float32(cfg.Needs.HungerCritical),
		trailDeposit:   cfg.Behavior.TrailDeposit,
		homeDeposit:    cfg.Behavior.HomeDeposit,
		forageDeposit:  cfg.Behavior.ForageDeposit,
		digDeposit:     cfg.Behavior.DigDeposit,
		kinds:          kinds,
		kDig:           -1,
		kForage:        -1,
		kHome:          -1,
		kFood:          -1,
		kDanger:        -1,
	}
	for i, k := range kinds {
		switch k {
		case pheromone.Dig:
			d.kDig = i
		case pheromone.Forage:
			d.kForage = i
		case pheromone.Home:
			d.kHome = i
		case pheromone.Food:
			d.kFood = i
		case pheromone.Danger:
			d.kDanger = i
		}
	}
	// Trait weights are indexed by config kind order; remap to field order.
	for ti := range d.traits {
		w := make([]float32, len(kinds))
		for i, k := range kinds {
			if ci, ok := cfg.Derived.KindIndex[string(k)]; ok && ci < len(d.traits[ti].Weights) {
				w[i] = d.traits[ti].Weights[ci]
			}
		}
		d.traits[ti].Weights = w
	}
	return d
}

// Traits returns the resolved caste traits.
func (d *Decider) Traits() []components.CasteTraits { return d.traits }

// AntRNG returns the deterministic random stream for one ant on one tick.
func AntRNG(seed int64, tick int32, antID uint32) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(uint32(tick))<<32|uint64(antID)))
}

// Decide chooses this tick's actions for one ant. It only reads grid,
// field and colony; every effect is returned as actions.
//
// Policy, first match wins:
//  1. hunger at or above critical: eat at the nest, else follow food scent
//     home, else head for the nest
//  2. carrying: deliver at the nest, else lay a home trail and head back
//  3. caste work: cut leaves, dig, tend the garden, or follow the
//     caste-weighted dominant signal
//  4. random walk
func (d *Decider) Decide(ant AntView, grid GridView, field FieldView, colony *ColonyView, rng *rand.Rand, s *Scratch) Decision {
	s.actions = s.actions[:0]
	var traits components.CasteTraits
	if int(ant.Caste) < len(d.traits) {
		traits = d.traits[ant.Caste]
	}

	d.sense(ant.Pos, field, s)
	d.candidates(ant.Pos, grid, field, traits, s)
	atNest := colony.IsNest(ant.Pos)

	// 1. Hunger
	if ant.Hunger >= d.hungerCritical {
		if atNest {
			if colony.Stock(components.ResourceFood) > 0 {
				s.emit(mutation.Action{Ant: ant.ID, Kind: mutation.Eat, Target: ant.Pos})
				return d.done(s, components.TaskEating, ant.Pos)
			}
			return d.done(s, components.TaskSeekingFood, ant.Pos)
		}
		if next, ok := d.gradient(d.kFood, ant.Pos, s); ok {
			d.move(ant, next, s)
			return d.done(s, components.TaskSeekingFood, next)
		}
		if next, ok := d.homeward(ant.Pos, colony, s); ok {
			d.move(ant, next, s)
			return d.done(s, components.TaskSeekingFood, next)
		}
		return d.wander(ant, rng, s, components.TaskSeekingFood)
	}

	// 2. Carrying
	if !ant.Cargo.Empty() {
		if atNest {
			s.emit(mutation.Action{Ant: ant.ID, Kind: mutation.Deliver, Target: ant.Pos})
			return d.done(s, components.TaskCarryingHome, ant.Pos)
		}
		d.deposit(ant, d.kHome, ant.Pos, d.homeDeposit, s)
		if next, ok := d.homeward(ant.Pos, colony, s); ok {
			d.move(ant, next, s)
			return d.done(s, components.TaskCarryingHome, next)
		}
		return d.wander(ant, rng, s, components.TaskCarryingHome)
	}

	// 3. Caste work
	switch {
	case traits.Caps.Has(components.CanReproduce):
		// Egg laying happens in the lifecycle phase; the queen holds still.
		return d.done(s, components.TaskIdle, ant.Pos)

	case traits.Caps.Has(components.CanGarden):
		if atNest {
			if colony.Stock(components.ResourceLeaf) > 0 {
				s.emit(mutation.Action{Ant: ant.ID, Kind: mutation.Tend, Target: ant.Pos})
				return d.done(s, components.TaskGardening, ant.Pos)
			}
			return d.done(s, components.TaskIdle, ant.Pos)
		}
		if next, ok := d.homeward(ant.Pos, colony, s); ok {
			d.move(ant, next, s)
			return d.done(s, components.TaskGardening, next)
		}

	case traits.Caps.Has(components.CanForage):
		if plant, ok := d.adjacentPlant(ant.Pos, grid, colony); ok {
			s.emit(mutation.Action{Ant: ant.ID, Kind: mutation.CutLeaf, Target: plant})
			d.deposit(ant, d.kForage, ant.Pos, d.forageDeposit, s)
			return d.done(s, components.TaskForaging, plant)
		}

	case traits.Caps.Has(components.CanDig):
		if target, ok := d.digTarget(ant.Pos, grid, field); ok {
			s.emit(mutation.Action{Ant: ant.ID, Kind: mutation.Dig, Target: target})
			d.deposit(ant, d.kDig, target, d.digDeposit, s)
			return d.done(s, components.TaskDigging, target)
		}
	}

	if k, ok := d.dominant(traits, s); ok {
		if next, ok := d.gradient(k, ant.Pos, s); ok {
			d.deposit(ant, k, ant.Pos, d.trailDeposit, s)
			d.move(ant, next, s)
			state := components.TaskFollowing
			if k == d.kDanger {
				state = components.TaskGuarding
			}
			return d.done(s, state, next)
		}
	}

	// 4. Random walk
	return d.wander(ant, rng, s, components.TaskWandering)
}

func (d *Decider) done(s *Scratch, state components.TaskState, target world.Coord) Decision {
	return Decision{Actions: s.actions, Task: components.Task{State: state, Target: target}}
}

func (d *Decider) move(ant AntView, to world.Coord, s *Scratch) {
	s.emit(mutation.Action{Ant: ant.ID, Kind: mutation.Move, From: ant.Pos, Target: to})
}

func (d *Decider) deposit(ant AntView, k int, at world.Coord, amount float64, s *Scratch) {
	if k < 0 || amount <= 0 {
		return
	}
	s.emit(mutation.Action{
		Ant:       ant.ID,
		Kind:      mutation.Deposit,
		Target:    at,
		Pheromone: d.kinds[k],
		Amount:    amount,
	})
}

// sense collects, per layer, the cells in the sensing box above the noise
// threshold.
func (d *Decider) sense(pos world.Coord, field FieldView, s *Scratch) {
	for k := range s.sensed {
		s.sensed[k] = s.sensed[k][:0]
		s.peak[k] = 0
	}
	r := d.radius
	for dz := -r; dz <= r; dz++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				c := world.Coord{X: pos.X + dx, Y: pos.Y + dy, Z: pos.Z + dz}
				for k := range s.sensed {
					v := field.SampleFixed(k, c)
					if v <= d.noise {
						continue
					}
					f := float32(v) / pheromone.One
					s.sensed[k] = append(s.sensed[k], sensedCell{c: c, v: f})
					if f > s.peak[k] {
						s.peak[k] = f
					}
				}
			}
		}
	}
}

// candidates lists passable neighbors in lexicographic order, dropping
// cells that reek of danger for castes that avoid it.
func (d *Decider) candidates(pos world.Coord, grid GridView, field FieldView, traits components.CasteTraits, s *Scratch) {
	s.cands = s.cands[:0]
	avoid := d.kDanger >= 0 && d.kDanger < len(traits.Weights) && traits.Weights[d.kDanger] < 0
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				n := world.Coord{X: pos.X + dx, Y: pos.Y + dy, Z: pos.Z + dz}
				if !grid.Passable(n) {
					continue
				}
				if avoid && field.SampleFixed(d.kDanger, n) > d.avoidThreshold {
					continue
				}
				s.cands = append(s.cands, n)
			}
		}
	}
}

// score is the strongest sensed intensity of a layer as perceived from c,
// attenuated by distance.
func (d *Decider) score(cells []sensedCell, c world.Coord) float32 {
	var best float32
	for _, sc := range cells {
		dist := float32(math.Sqrt(float64(sc.c.DistSq(c))))
		v := sc.v / (1 + d.falloff*dist)
		if v > best {
			best = v
		}
	}
	return best
}

// gradient returns the candidate with strictly the greatest score for layer
// k, provided it beats staying put. Ties keep the lexicographically first
// candidate.
func (d *Decider) gradient(k int, pos world.Coord, s *Scratch) (world.Coord, bool) {
	if k < 0 || k >= len(s.sensed) || len(s.sensed[k]) == 0 {
		return pos, false
	}
	cells := s.sensed[k]
	best := d.score(cells, pos)
	next, found := pos, false
	for _, n := range s.cands {
		if v := d.score(cells, n); v > best {
			best, next, found = v, n, true
		}
	}
	return next, found
}

// homeward follows the home gradient when it does not lead away from the
// nest, otherwise takes the passable step that most reduces distance to it.
func (d *Decider) homeward(pos world.Coord, colony *ColonyView, s *Scratch) (world.Coord, bool) {
	cur := pos.DistSq(colony.Nest)
	if next, ok := d.gradient(d.kHome, pos, s); ok && next.DistSq(colony.Nest) < cur {
		return next, true
	}
	best, next, found := cur, pos, false
	for _, n := range s.cands {
		if dsq := n.DistSq(colony.Nest); dsq < best {
			best, next, found = dsq, n, true
		}
	}
	return next, found
}

// dominant picks the layer with the greatest positive weight times peak
// sensed intensity.
func (d *Decider) dominant(traits components.CasteTraits, s *Scratch) (int, bool) {
	best, bestK := float32(0), -1
	for k, w := range traits.Weights {
		if w <= 0 || k >= len(s.peak) {
			continue
		}
		if v := w * s.peak[k]; v > best {
			best, bestK = v, k
		}
	}
	return bestK, bestK >= 0
}

// adjacentPlant finds a neighboring plant that still has leaves.
func (d *Decider) adjacentPlant(pos world.Coord, grid GridView, colony *ColonyView) (world.Coord, bool) {
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				n := world.Coord{X: pos.X + dx, Y: pos.Y + dy, Z: pos.Z + dz}
				if n == pos || !grid.InBounds(n) {
					continue
				}
				cell, err := grid.CellAt(n)
				if err != nil || cell.Occupant == 0 {
					continue
				}
				if colony.Leaves(cell.Occupant) > 0 {
					return n, true
				}
			}
		}
	}
	return pos, false
}

// digTarget returns the adjacent diggable cell with the strongest dig
// signal at or above the threshold.
func (d *Decider) digTarget(pos world.Coord, grid GridView, field FieldView) (world.Coord, bool) {
	if d.kDig < 0 {
		return pos, false
	}
	var best uint32
	target, found := pos, false
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				n := world.Coord{X: pos.X + dx, Y: pos.Y + dy, Z: pos.Z + dz}
				if n == pos || !grid.InBounds(n) || !grid.TileAt(n).Diggable() {
					continue
				}
				v := field.SampleFixed(d.kDig, n)
				if v >= d.digThreshold && v > best {
					best, target, found = v, n, true
				}
			}
		}
	}
	return target, found
}

func (d *Decider) wander(ant AntView, rng *rand.Rand, s *Scratch, state components.TaskState) Decision {
	if len(s.cands) == 0 {
		return d.done(s, state, ant.Pos)
	}
	next := s.cands[rng.IntN(len(s.cands))]
	d.move(ant, next, s)
	return d.done(s, state, next)
}
