package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/mutation"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/telemetry"
	"github.com/pthm-cable/acre/world"
)

var (
	// ErrInvalidSpeed is returned for a speed other than 1, 2 or 4.
	ErrInvalidSpeed = errors.New("invalid speed")
	// ErrUnknownCaste is returned when a caste name is not configured.
	ErrUnknownCaste = errors.New("unknown caste")
)

// State is the scheduler state.
type State uint8

const (
	Paused State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "paused"
}

// ValidSpeed reports whether n is a supported speed multiplier.
func ValidSpeed(n int) bool {
	return n == 1 || n == 2 || n == 4
}

// CommandKind identifies a player command.
type CommandKind uint8

const (
	CmdPause CommandKind = iota
	CmdResume
	CmdTogglePause
	CmdSetSpeed
	CmdPlacePheromone
	CmdSpawnAnt
	CmdSetTile
)

var commandNames = [...]string{
	CmdPause:          "pause",
	CmdResume:         "resume",
	CmdTogglePause:    "toggle_pause",
	CmdSetSpeed:       "set_speed",
	CmdPlacePheromone: "place_pheromone",
	CmdSpawnAnt:       "spawn_ant",
	CmdSetTile:        "set_tile",
}

func (k CommandKind) String() string {
	if int(k) < len(commandNames) {
		return commandNames[k]
	}
	return fmt.Sprintf("command(%d)", k)
}

// Command is a request queued for the next tick boundary.
type Command struct {
	Kind      CommandKind
	Speed     int
	Pheromone pheromone.Kind
	At        world.Coord
	Amount    float64
	Caste     string
	Tile      world.Tile
}

func (c Command) String() string {
	switch c.Kind {
	case CmdSetSpeed:
		return fmt.Sprintf("%s %d", c.Kind, c.Speed)
	case CmdPlacePheromone:
		return fmt.Sprintf("%s %s %v %g", c.Kind, c.Pheromone, c.At, c.Amount)
	case CmdSpawnAnt:
		return fmt.Sprintf("%s %s %v", c.Kind, c.Caste, c.At)
	case CmdSetTile:
		return fmt.Sprintf("%s %v %s", c.Kind, c.At, c.Tile)
	}
	return c.Kind.String()
}

// Pause stops ticking at the next boundary.
func Pause() Command { return Command{Kind: CmdPause} }

// Resume starts ticking at the current speed.
func Resume() Command { return Command{Kind: CmdResume} }

// TogglePause flips between paused and running.
func TogglePause() Command { return Command{Kind: CmdTogglePause} }

// SetSpeed sets the ticks run per update.
func SetSpeed(n int) Command { return Command{Kind: CmdSetSpeed, Speed: n} }

// PlacePheromone deposits amount of kind at a cell.
func PlacePheromone(kind pheromone.Kind, at world.Coord, amount float64) Command {
	return Command{Kind: CmdPlacePheromone, Pheromone: kind, At: at, Amount: amount}
}

// SpawnAnt adds an ant of the named caste at a cell.
func SpawnAnt(caste string, at world.Coord) Command {
	return Command{Kind: CmdSpawnAnt, Caste: caste, At: at}
}

// SetTile replaces the tile at a cell.
func SetTile(at world.Coord, tile world.Tile) Command {
	return Command{Kind: CmdSetTile, At: at, Tile: tile}
}

// Submit validates c and queues it. It is safe to call from any goroutine.
func (g *Game) Submit(c Command) error {
	if err := g.validate(c); err != nil {
		return err
	}
	g.cmdMu.Lock()
	g.commands = append(g.commands, c)
	g.cmdMu.Unlock()
	return nil
}

// validate only reads immutable configuration, so it needs no state lock.
func (g *Game) validate(c Command) error {
	inBounds := func() error {
		size := g.cfg.World.Size
		if c.At.X < 0 || c.At.Y < 0 || c.At.Z < 0 || c.At.X >= size || c.At.Y >= size || c.At.Z >= size {
			return fmt.Errorf("%s at %v: %w", c.Kind, c.At, world.ErrOutOfBounds)
		}
		return nil
	}

	switch c.Kind {
	case CmdPause, CmdResume, CmdTogglePause:
		return nil
	case CmdSetSpeed:
		if !ValidSpeed(c.Speed) {
			return fmt.Errorf("%w: %d (want 1, 2 or 4)", ErrInvalidSpeed, c.Speed)
		}
		return nil
	case CmdPlacePheromone:
		if _, ok := g.field.KindIndex(c.Pheromone); !ok {
			return fmt.Errorf("%w: %q", pheromone.ErrUnknownKind, c.Pheromone)
		}
		if c.Amount <= 0 {
			return fmt.Errorf("%w: non-positive amount %v", mutation.ErrInvalidAction, c.Amount)
		}
		return inBounds()
	case CmdSpawnAnt:
		if _, ok := g.cfg.Derived.CasteIndex[c.Caste]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownCaste, c.Caste)
		}
		return inBounds()
	case CmdSetTile:
		return inBounds()
	}
	return fmt.Errorf("unknown command %d", c.Kind)
}

// drainCommands applies queued commands. The caller holds the write lock.
// World edits become world-source actions applied with the next tick.
func (g *Game) drainCommands() {
	g.cmdMu.Lock()
	cmds := g.commands
	g.commands = nil
	g.cmdMu.Unlock()

	for _, c := range cmds {
		switch c.Kind {
		case CmdPause:
			g.state = Paused
		case CmdResume:
			g.state = Running
		case CmdTogglePause:
			if g.state == Running {
				g.state = Paused
			} else {
				g.state = Running
			}
		case CmdSetSpeed:
			g.speed = c.Speed
		case CmdPlacePheromone:
			g.recordWorld(mutation.Action{
				Kind:      mutation.Deposit,
				Target:    c.At,
				Pheromone: c.Pheromone,
				Amount:    c.Amount,
			})
		case CmdSpawnAnt:
			g.spawnAnt(g.cfg.Derived.CasteIndex[c.Caste], c.At)
		case CmdSetTile:
			g.recordWorld(mutation.Action{Kind: mutation.SetTile, Target: c.At, Tile: c.Tile})
		}
		g.events = append(g.events, telemetry.NewCommandEvent(g.tick, c.String()))
		slog.Debug("command", "tick", g.tick, "command", c.String())
	}
}

// recordWorld records a world-source action after those already recorded
// this tick.
func (g *Game) recordWorld(a mutation.Action) {
	a.Ant = mutation.WorldSource
	a.Seq = g.worldSeq
	g.worldSeq++
	g.log.Record(a)
}

// Update drains commands and, when running, advances speed ticks.
func (g *Game) Update() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.drainCommands()
	if g.state != Running {
		return
	}
	for i := 0; i < g.speed; i++ {
		g.step()
	}
}

// Step drains commands and advances exactly one tick, whatever the state.
func (g *Game) Step() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.drainCommands()
	g.step()
}

// Run calls Update at the base tick rate until ctx is cancelled.
func (g *Game) Run(ctx context.Context) error {
	interval := time.Duration(g.cfg.Derived.TickInterval * float64(time.Second))
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.Update()
		}
	}
}

// State returns the scheduler state.
func (g *Game) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Speed returns the ticks run per update while running.
func (g *Game) Speed() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.speed
}

// View calls fn with a consistent read-only view between ticks. The view
// and everything reached through it must not be retained or modified.
//
// fn runs under the state read lock. It must not call Game methods that
// lock (Tick, Population, Snapshot, Digest, Summary, State, Speed, Step,
// Update): a second RLock deadlocks once a writer is waiting. Use the
// ReadView methods instead; they read without locking.
func (g *Game) View(fn func(ReadView)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(ReadView{g: g})
}

// ReadView is the renderer-facing surface of the simulation.
type ReadView struct {
	g *Game
}

// AntInfo is an ant as shown to a renderer.
type AntInfo struct {
	ID     uint32
	Caste  string
	Pos    world.Coord
	Hunger float32
	Age    int32
	Cargo  components.Cargo
	Task   components.Task
}

func (v ReadView) Tick() int32 { return v.g.tick }
func (v ReadView) State() State { return v.g.state }
func (v ReadView) Speed() int { return v.g.speed }
func (v ReadView) Grid() *world.Grid { return v.g.grid }
func (v ReadView) Field() *pheromone.Field { return v.g.field }
func (v ReadView) Nest() world.Coord { return v.g.nest }
func (v ReadView) Population() int { return len(v.g.ants) }
func (v ReadView) Garden(k components.ResourceKind) int32 { return colony{v.g}.GardenStock(k) }

// Ants lists living ants in ID order.
func (v ReadView) Ants() []AntInfo {
	return v.g.antInfos()
}

// Snapshot copies the state the view shows.
func (v ReadView) Snapshot() *telemetry.Snapshot { return v.g.createSnapshot(nil) }

// Digest is the state digest at the viewed tick.
func (v ReadView) Digest() string { return v.Snapshot().Digest() }

// Plants lists plants in ID order.
func (v ReadView) Plants() []telemetry.PlantState {
	return v.g.plantStates()
}
