package mutation

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/world"
)

var (
	// ErrInvalidAction marks an action that cannot be performed in the
	// current world state. The ant stays put for the tick.
	ErrInvalidAction = errors.New("invalid action")
	// ErrResourceDepletion marks consumption from an empty source.
	ErrResourceDepletion = errors.New("resource depleted")
	// ErrConflict marks an action that lost to an earlier one on the same target.
	ErrConflict = fmt.Errorf("%w: target already claimed this tick", ErrInvalidAction)
)

// Rejection pairs a rejected action with the reason.
type Rejection struct {
	Action Action
	Err    error
}

// Report summarizes one ApplyAll.
type Report struct {
	Applied  []Action
	Rejected []Rejection
}

// AppliedCount returns the number of applied actions of kind k.
func (r Report) AppliedCount(k Kind) int {
	n := 0
	for _, a := range r.Applied {
		if a.Kind == k {
			n++
		}
	}
	return n
}

// RejectedCount returns the number of rejections matching target via errors.Is.
func (r Report) RejectedCount(target error) int {
	n := 0
	for _, rj := range r.Rejected {
		if errors.Is(rj.Err, target) {
			n++
		}
	}
	return n
}

// Log collects actions for the current tick. Record is safe for concurrent
// use; ApplyAll and Clear must only be called by the scheduler.
type Log struct {
	mu      sync.Mutex
	actions []Action
	rules   Rules

	// claims holds cells and plants already acted on during the current apply.
	dug    map[world.Coord]bool
	plants map[world.EntityID]bool
}

// NewLog creates an empty log.
func NewLog(rules Rules) *Log {
	return &Log{
		actions: make([]Action, 0, 256),
		rules:   rules,
		dug:     make(map[world.Coord]bool),
		plants:  make(map[world.EntityID]bool),
	}
}

// Record appends one action.
func (l *Log) Record(a Action) {
	l.mu.Lock()
	l.actions = append(l.actions, a)
	l.mu.Unlock()
}

// RecordBatch appends actions under a single lock acquisition.
func (l *Log) RecordBatch(as []Action) {
	if len(as) == 0 {
		return
	}
	l.mu.Lock()
	l.actions = append(l.actions, as...)
	l.mu.Unlock()
}

// Len returns the number of pending actions.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actions)
}

// Pending returns a copy of the pending actions in apply order.
func (l *Log) Pending() []Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := slices.Clone(l.actions)
	sortActions(out)
	return out
}

// Clear drops all pending actions. Clearing an empty log is a no-op.
func (l *Log) Clear() {
	l.mu.Lock()
	l.actions = l.actions[:0]
	l.mu.Unlock()
}

func sortActions(as []Action) {
	slices.SortStableFunc(as, func(a, b Action) int {
		if c := cmp.Compare(a.Ant, b.Ant); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}

// ApplyAll applies every pending action in (ant, seq) order, world-source
// actions first, then clears the log. For digs and leaf cuts the first
// action on a cell or plant wins and later ones are rejected. Rejected
// actions leave the world untouched.
func (l *Log) ApplyAll(grid *world.Grid, field *pheromone.Field, colony Colony) Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	var report Report
	if len(l.actions) == 0 {
		return report
	}

	sortActions(l.actions)
	clear(l.dug)
	clear(l.plants)

	for _, a := range l.actions {
		if err := l.apply(a, grid, field, colony); err != nil {
			report.Rejected = append(report.Rejected, Rejection{Action: a, Err: err})
			slog.Debug("action rejected", "action", a, "error", err)
			continue
		}
		report.Applied = append(report.Applied, a)
	}

	l.actions = l.actions[:0]
	return report
}

func (l *Log) apply(a Action, grid *world.Grid, field *pheromone.Field, colony Colony) error {
	if a.Kind == Deposit {
		return applyDeposit(a, field)
	}
	if a.Kind == SetTile {
		return applySetTile(a, grid)
	}

	if a.Ant == WorldSource {
		return fmt.Errorf("%w: %s requires an ant", ErrInvalidAction, a.Kind)
	}
	pos, ok := colony.AntPos(a.Ant)
	if !ok {
		return fmt.Errorf("%w: ant %d not found", ErrInvalidAction, a.Ant)
	}

	switch a.Kind {
	case Move:
		return applyMove(a, pos, grid, colony)
	case Dig:
		return l.applyDig(a, pos, grid)
	case CutLeaf:
		return l.applyCutLeaf(a, pos, grid, colony)
	case Deliver:
		return applyDeliver(a, pos, colony)
	case Tend:
		return l.applyTend(pos, colony)
	case Eat:
		return l.applyEat(a, pos, colony)
	}
	return fmt.Errorf("%w: unknown kind %d", ErrInvalidAction, a.Kind)
}

func applyDeposit(a Action, field *pheromone.Field) error {
	if a.Amount <= 0 {
		return fmt.Errorf("%w: non-positive deposit %v", ErrInvalidAction, a.Amount)
	}
	if _, err := field.Deposit(a.Pheromone, a.Target, a.Amount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	return nil
}

func applySetTile(a Action, grid *world.Grid) error {
	if a.Ant != WorldSource {
		return fmt.Errorf("%w: ants cannot set tiles", ErrInvalidAction)
	}
	cell, err := grid.CellAt(a.Target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	cell.Tile = a.Tile
	cell.Dug = false
	if !a.Tile.Passable() && a.Tile != world.TreeTrunk {
		cell.Occupant = 0
	}
	return grid.SetCell(a.Target, cell)
}

func applyMove(a Action, pos world.Coord, grid *world.Grid, colony Colony) error {
	if a.From != pos {
		return fmt.Errorf("%w: ant %d moved from %v but is at %v", ErrInvalidAction, a.Ant, a.From, pos)
	}
	if pos.Chebyshev(a.Target) != 1 {
		return fmt.Errorf("%w: move %v -> %v is not a single step", ErrInvalidAction, pos, a.Target)
	}
	if !grid.Passable(a.Target) {
		return fmt.Errorf("%w: %v is %v", ErrInvalidAction, a.Target, grid.TileAt(a.Target))
	}
	colony.SetAntPos(a.Ant, a.Target)
	return nil
}

func (l *Log) applyDig(a Action, pos world.Coord, grid *world.Grid) error {
	if l.dug[a.Target] {
		return fmt.Errorf("dig %v: %w", a.Target, ErrConflict)
	}
	if pos.Chebyshev(a.Target) != 1 {
		return fmt.Errorf("%w: dig target %v not adjacent to %v", ErrInvalidAction, a.Target, pos)
	}
	cell, err := grid.CellAt(a.Target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	if !cell.Tile.Diggable() {
		return fmt.Errorf("%w: cannot dig %v", ErrInvalidAction, cell.Tile)
	}
	cell.Tile = world.Tunnel
	cell.Dug = true
	cell.Stability = 0
	l.dug[a.Target] = true
	return grid.SetCell(a.Target, cell)
}

func (l *Log) applyCutLeaf(a Action, pos world.Coord, grid *world.Grid, colony Colony) error {
	if pos.Chebyshev(a.Target) > 1 {
		return fmt.Errorf("%w: plant %v not adjacent to %v", ErrInvalidAction, a.Target, pos)
	}
	if !colony.AntCargo(a.Ant).Empty() {
		return fmt.Errorf("%w: ant %d hands full", ErrInvalidAction, a.Ant)
	}
	cell, err := grid.CellAt(a.Target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	if cell.Occupant == 0 {
		return fmt.Errorf("cut leaf at %v: %w", a.Target, ErrResourceDepletion)
	}
	if l.plants[cell.Occupant] {
		return fmt.Errorf("cut leaf plant %d: %w", cell.Occupant, ErrConflict)
	}
	taken, remaining := colony.TakeFromPlant(cell.Occupant, 1)
	if taken == 0 {
		return fmt.Errorf("cut leaf plant %d: %w", cell.Occupant, ErrResourceDepletion)
	}
	l.plants[cell.Occupant] = true
	if remaining == 0 {
		cell.Occupant = 0
		if err := grid.SetCell(a.Target, cell); err != nil {
			return err
		}
	}
	colony.SetAntCargo(a.Ant, components.Cargo{Kind: components.ResourceLeaf, Quantity: taken})
	return nil
}

func applyDeliver(a Action, pos world.Coord, colony Colony) error {
	if !colony.IsNest(pos) {
		return fmt.Errorf("%w: deliver away from nest at %v", ErrInvalidAction, pos)
	}
	cargo := colony.AntCargo(a.Ant)
	if cargo.Empty() {
		return fmt.Errorf("%w: ant %d has nothing to deliver", ErrInvalidAction, a.Ant)
	}
	colony.AddGardenStock(cargo.Kind, cargo.Quantity)
	colony.SetAntCargo(a.Ant, components.Cargo{})
	return nil
}

func (l *Log) applyTend(pos world.Coord, colony Colony) error {
	if !colony.IsNest(pos) {
		return fmt.Errorf("%w: tend away from nest at %v", ErrInvalidAction, pos)
	}
	if colony.GardenStock(components.ResourceLeaf) < 1 {
		return fmt.Errorf("tend: %w", ErrResourceDepletion)
	}
	colony.AddGardenStock(components.ResourceLeaf, -1)
	colony.AddGardenStock(components.ResourceMulch, max(l.rules.MulchPerLeaf, 1))
	return nil
}

func (l *Log) applyEat(a Action, pos world.Coord, colony Colony) error {
	if !colony.IsNest(pos) {
		return fmt.Errorf("%w: eat away from nest at %v", ErrInvalidAction, pos)
	}
	need := max(l.rules.FoodPerMeal, 1)
	if colony.GardenStock(components.ResourceFood) < need {
		return fmt.Errorf("eat: %w", ErrResourceDepletion)
	}
	colony.AddGardenStock(components.ResourceFood, -need)
	colony.Feed(a.Ant, l.rules.MealRelief)
	return nil
}
