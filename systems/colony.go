package systems

import (
	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/mutation"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/world"
)

// GridView is the read-only grid surface the decide phase uses.
type GridView interface {
	InBounds(c world.Coord) bool
	TileAt(c world.Coord) world.Tile
	CellAt(c world.Coord) (world.Cell, error)
	Passable(c world.Coord) bool
}

// FieldView is the read-only pheromone surface the decide phase uses.
type FieldView interface {
	SampleFixed(k int, c world.Coord) uint32
}

// PlantView is a plant as seen during decide.
type PlantView struct {
	ID     world.EntityID
	Pos    world.Coord
	Leaves int32
}

// ColonyView is an immutable per-tick snapshot of colony-level state.
// It is built before decide and shared by all workers.
type ColonyView struct {
	Nest       world.Coord
	NestRadius int
	Garden     [components.ResourceFood + 1]int32 // stock by resource kind
	Plants     []PlantView
	plantIndex map[world.EntityID]int
}

// NewColonyView creates a view. Plants are indexed by ID.
func NewColonyView(nest world.Coord, radius int, garden [components.ResourceFood + 1]int32, plants []PlantView) *ColonyView {
	v := &ColonyView{
		Nest:       nest,
		NestRadius: radius,
		Garden:     garden,
		Plants:     plants,
		plantIndex: make(map[world.EntityID]int, len(plants)),
	}
	for i, p := range plants {
		v.plantIndex[p.ID] = i
	}
	return v
}

// IsNest reports whether c lies in the nest region.
func (v *ColonyView) IsNest(c world.Coord) bool {
	return c.Chebyshev(v.Nest) <= v.NestRadius
}

// Leaves returns the leaf count of a plant, 0 if unknown.
func (v *ColonyView) Leaves(id world.EntityID) int32 {
	if i, ok := v.plantIndex[id]; ok {
		return v.Plants[i].Leaves
	}
	return 0
}

// Stock returns the garden quantity of kind.
func (v *ColonyView) Stock(kind components.ResourceKind) int32 {
	if int(kind) >= len(v.Garden) {
		return 0
	}
	return v.Garden[kind]
}

// Emissions returns the world-sourced deposits for this tick: plants with
// leaves give off forage scent, a stocked garden gives off food scent, and
// the nest entrance gives off home scent.
func Emissions(v *ColonyView, plantAmount, gardenAmount, nestAmount float64) []mutation.Action {
	var out []mutation.Action
	seq := uint16(0)
	emit := func(kind pheromone.Kind, c world.Coord, amount float64) {
		if amount <= 0 {
			return
		}
		out = append(out, mutation.Action{
			Ant:       mutation.WorldSource,
			Seq:       seq,
			Kind:      mutation.Deposit,
			Target:    c,
			Pheromone: kind,
			Amount:    amount,
		})
		seq++
	}

	emit(pheromone.Home, v.Nest, nestAmount)
	if v.Stock(components.ResourceFood) > 0 {
		emit(pheromone.Food, v.Nest, gardenAmount)
	}
	for _, p := range v.Plants {
		if p.Leaves > 0 {
			emit(pheromone.Forage, p.Pos, plantAmount)
		}
	}
	return out
}
