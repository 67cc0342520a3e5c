// Package mutation defines the per-tick action log. Ants record actions
// during the parallel decide phase; the scheduler applies them to the world
// in a fixed order on the simulation goroutine.
package mutation

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/world"
)

// WorldSource is the ant ID used for actions not issued by an ant:
// plant and garden emissions, player commands.
const WorldSource uint32 = 0

// Kind is the type of an action.
type Kind uint8

const (
	Move     Kind = iota // ant steps From -> Target
	Dig                  // ant excavates adjacent soil at Target
	Deposit              // Amount of Pheromone is laid at Target
	CutLeaf              // ant takes a leaf from the plant at Target
	Deliver              // ant drops its cargo into the garden
	Tend                 // ant turns a garden leaf into mulch
	Eat                  // ant eats garden food
	SetTile              // Target becomes Tile (world source only)
)

var kindNames = [...]string{
	Move:    "move",
	Dig:     "dig",
	Deposit: "deposit",
	CutLeaf: "cut_leaf",
	Deliver: "deliver",
	Tend:    "tend",
	Eat:     "eat",
	SetTile: "set_tile",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("action(%d)", k)
}

// Action is a single pending world mutation.
type Action struct {
	Ant       uint32 // issuing ant, WorldSource for emissions and commands
	Seq       uint16 // order within the issuer's actions this tick
	Kind      Kind
	From      world.Coord
	Target    world.Coord
	Pheromone pheromone.Kind
	Amount    float64
	Tile      world.Tile
}

// LogValue implements slog.LogValuer for structured logging.
func (a Action) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("ant", int(a.Ant)),
		slog.Int("seq", int(a.Seq)),
		slog.String("kind", a.Kind.String()),
		slog.String("target", a.Target.String()),
	}
	switch a.Kind {
	case Move:
		attrs = append(attrs, slog.String("from", a.From.String()))
	case Deposit:
		attrs = append(attrs, slog.String("pheromone", string(a.Pheromone)), slog.Float64("amount", a.Amount))
	case SetTile:
		attrs = append(attrs, slog.String("tile", a.Tile.String()))
	}
	return slog.GroupValue(attrs...)
}

// Colony is the ant and resource state the log mutates besides the grid
// and field. The game implements it over its ECS world.
type Colony interface {
	AntPos(id uint32) (world.Coord, bool)
	SetAntPos(id uint32, c world.Coord)
	AntCargo(id uint32) components.Cargo
	SetAntCargo(id uint32, c components.Cargo)
	Feed(id uint32, relief float32)
	// TakeFromPlant removes up to n units from a plant and reports how many
	// were taken and how many remain.
	TakeFromPlant(plant world.EntityID, n int32) (taken, remaining int32)
	GardenStock(kind components.ResourceKind) int32
	AddGardenStock(kind components.ResourceKind, n int32)
	IsNest(c world.Coord) bool
}

// Rules holds the quantities used when applying economy actions.
type Rules struct {
	FoodPerMeal  int32
	MealRelief   float32
	MulchPerLeaf int32
}
