package game

import (
	"context"
	"log/slog"

	"github.com/pthm-cable/acre/journal"
	"github.com/pthm-cable/acre/mutation"
	"github.com/pthm-cable/acre/pheromone"
	"github.com/pthm-cable/acre/systems"
	"github.com/pthm-cable/acre/telemetry"
	"github.com/pthm-cable/acre/world"
)

// step runs one full tick. The caller holds the write lock.
func (g *Game) step() {
	g.perfCollector.StartTick()

	// Danger owed from last tick's hazard deaths goes in ahead of emissions.
	g.perfCollector.StartPhase(telemetry.PhaseCommands)
	for _, at := range g.hazards {
		g.recordWorld(mutation.Action{
			Kind:      mutation.Deposit,
			Target:    at,
			Pheromone: pheromone.Danger,
			Amount:    g.cfg.Behavior.DangerDeposit,
		})
	}
	g.hazards = g.hazards[:0]

	g.perfCollector.StartPhase(telemetry.PhaseEmissions)
	g.recordEmissions()

	g.perfCollector.StartPhase(telemetry.PhaseDecide)
	g.decideAll()

	g.perfCollector.StartPhase(telemetry.PhaseApply)
	report := g.log.ApplyAll(g.grid, g.field, colony{g})
	g.applyTasks()
	g.collector.RecordReport(report)
	g.lifetimeTracker.RecordReport(report)
	g.tunnelsDug += report.AppliedCount(mutation.Dig)
	g.perfCollector.RecordLoad(telemetry.TickLoad{
		Ants:     len(g.ants),
		Applied:  len(report.Applied),
		Rejected: len(report.Rejected),
	})
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		for _, rj := range report.Rejected {
			slog.Debug("action rejected", "tick", g.tick, "ant", rj.Action.Ant, "kind", rj.Action.Kind.String(), "error", rj.Err)
		}
	}

	g.perfCollector.StartPhase(telemetry.PhaseDiffuse)
	g.field.DiffuseAndDecay(1)

	g.perfCollector.StartPhase(telemetry.PhaseLifecycle)
	g.updateLifecycle()

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	if err := g.journal.WriteTick(journal.NewTickEntry(g.tick, report, g.events)); err != nil {
		slog.Error("failed to write journal", "tick", g.tick, "error", err)
	}
	g.events = g.events[:0]
	g.worldSeq = 0

	g.tick++
	g.flushTelemetry()
	g.perfCollector.EndTick()
}

// recordEmissions records this tick's plant, garden and nest scent.
func (g *Game) recordEmissions() {
	b := g.cfg.Behavior
	view := g.colonyView()
	for _, a := range systems.Emissions(view, b.PlantEmission, b.GardenEmission, b.NestEmission) {
		g.recordWorld(a)
	}
}

// tunnelCount returns the number of dug cells.
func (g *Game) tunnelCount() int {
	n := 0
	for _, c := range g.grid.Cells() {
		if c.Tile == world.Tunnel {
			n++
		}
	}
	return n
}
