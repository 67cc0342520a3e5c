package game

import (
	"fmt"
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/telemetry"
	"github.com/pthm-cable/acre/world"
	"github.com/pthm-cable/acre/worldgen"
)

// spawnPlants creates a resource entity per tree and marks its trunk cell.
func (g *Game) spawnPlants(plants []worldgen.Plant) {
	for _, p := range plants {
		id := g.nextID
		g.nextID++

		pos := components.Position{Coord: p.Pos}
		res := components.Resource{ID: id, Kind: components.ResourcePlant, Quantity: p.Leaves}
		g.plants[world.EntityID(id)] = g.plantMapper.NewEntity(&pos, &res)

		cell := g.grid.MustCellAt(p.Pos)
		cell.Occupant = world.EntityID(id)
		if err := g.grid.SetCell(p.Pos, cell); err != nil {
			panic(err)
		}
	}
}

// seedDigging places the initial dig signal in the soil below the garden so
// the first workers have somewhere to start.
func (g *Game) seedDigging() {
	amount := g.cfg.Colony.InitialDigSeed
	if amount <= 0 {
		return
	}
	below := world.Coord{X: g.nest.X, Y: g.nest.Y, Z: g.cfg.Derived.NestDepthLast + 1}
	for n := range g.grid.Neighbors(below, 1) {
		if n.Z == below.Z && g.grid.TileAt(n).Diggable() {
			_, _ = g.field.Deposit(pheromone.Dig, n, amount)
		}
	}
	if g.grid.TileAt(below).Diggable() {
		_, _ = g.field.Deposit(pheromone.Dig, below, amount)
	}
}

// spawnInitialColony places the founding ants on the nest chamber.
func (g *Game) spawnInitialColony() error {
	for _, ic := range g.cfg.Colony.Initial {
		caste, ok := g.cfg.Derived.CasteIndex[ic.Caste]
		if !ok {
			return fmt.Errorf("initial colony: %w: %q", ErrUnknownCaste, ic.Caste)
		}
		for i := 0; i < ic.Count; i++ {
			g.spawnAnt(caste, g.nest)
		}
	}
	return nil
}

// spawnAnt creates a new ant with empty needs and hands.
func (g *Game) spawnAnt(caste uint8, at world.Coord) ecs.Entity {
	id := g.nextID
	g.nextID++

	pos := components.Position{Coord: at}
	ant := components.Ant{ID: id, Caste: caste}
	needs := components.Needs{}
	cargo := components.Cargo{}
	task := components.Task{State: components.TaskIdle, Target: at}

	entity := g.antMapper.NewEntity(&pos, &ant, &needs, &cargo, &task)
	g.ants[id] = entity

	g.lifetimeTracker.Register(id, g.tick, caste)
	g.collector.RecordBirth()
	g.events = append(g.events, telemetry.NewBirthEvent(g.tick, id, g.casteName(caste), at))
	if len(g.ants) > g.peakPopulation {
		g.peakPopulation = len(g.ants)
	}

	slog.Debug("ant born", "id", id, "caste", g.casteName(caste), "at", at.String())
	return entity
}

// removeAnt deletes an ant. Must not be called while an ant query is open.
func (g *Game) removeAnt(id uint32, cause components.DeathCause) {
	entity, ok := g.ants[id]
	if !ok {
		return
	}
	pos := g.posMap.Get(entity).Coord
	caste := g.antMap.Get(entity).Caste

	g.world.RemoveEntity(entity)
	delete(g.ants, id)

	g.lifetimeTracker.Remove(id, g.tick)
	g.collector.RecordDeath(cause)
	g.events = append(g.events, telemetry.NewDeathEvent(g.tick, id, g.casteName(caste), cause, pos))

	if cause == components.DeathHazard {
		g.hazards = append(g.hazards, pos)
	}

	slog.Debug("ant died", "id", id, "caste", g.casteName(caste), "cause", cause.String(), "at", pos.String())
}

func (g *Game) casteName(caste uint8) string {
	if int(caste) < len(g.traits) {
		return g.traits[caste].Name
	}
	return fmt.Sprintf("caste(%d)", caste)
}
