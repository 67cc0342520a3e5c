package game

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/telemetry"
	"github.com/pthm-cable/acre/world"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	stats := g.collector.Flush(g.tick, g.sampleColony())
	perfStats := g.perfCollector.Stats()

	// Call stats callback if provided
	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	// Write to CSV if output manager is enabled
	if g.outputManager != nil {
		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
	if g.index != nil {
		if err := g.index.RecordWindow(context.Background(), g.runID, stats); err != nil {
			slog.Error("failed to index window", "error", err)
		}
	}

	// Check for bookmarks
	bookmarks := g.bookmarkDetector.Check(stats)
	for _, bm := range bookmarks {
		g.bookmarkCount++
		if g.logStats {
			bm.LogBookmark()
		}

		if g.outputManager != nil {
			if err := g.outputManager.WriteBookmark(bm); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}
		if g.index != nil {
			if err := g.index.RecordBookmark(context.Background(), g.runID, bm); err != nil {
				slog.Error("failed to index bookmark", "error", err)
			}
		}

		// Save snapshot on bookmark
		if g.snapshotDir != "" {
			g.saveSnapshot(&bm)
		}
	}
}

// sampleColony collects the colony state reported in a stats window.
func (g *Game) sampleColony() telemetry.ColonySample {
	sample := telemetry.ColonySample{
		ByCaste: make([]int, len(g.traits)),
		Hunger:  make([]float64, 0, len(g.ants)),
		Mass:    make(map[string]float64, len(g.field.Kinds())),
		Garden:  make(map[components.ResourceKind]int32, len(g.garden)),
		Tunnels: g.tunnelCount(),
		Plants:  len(g.plants),
	}

	query := g.antFilter.Query()
	for query.Next() {
		_, ant, needs, _, _ := query.Get()
		if int(ant.Caste) < len(sample.ByCaste) {
			sample.ByCaste[ant.Caste]++
		}
		sample.Hunger = append(sample.Hunger, float64(needs.Hunger))
	}

	for _, k := range g.field.Kinds() {
		sample.Mass[string(k)] = g.field.Mass(k)
	}
	for k, n := range g.garden {
		sample.Garden[components.ResourceKind(k)] = n
	}

	plants := g.plantFilter.Query()
	for plants.Next() {
		_, res := plants.Get()
		sample.TreeLeaves += int(res.Quantity)
	}
	return sample
}

// saveSnapshot creates and saves a snapshot to disk.
func (g *Game) saveSnapshot(bookmark *telemetry.Bookmark) {
	snapshot := g.createSnapshot(bookmark)

	path, err := telemetry.SaveSnapshot(snapshot, g.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "tick", g.tick, "digest", snapshot.Digest())
}

// createSnapshot builds a snapshot from the current state.
func (g *Game) createSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	snapshot := &telemetry.Snapshot{
		Version:      telemetry.SnapshotVersion,
		Seed:         g.seed,
		Tick:         g.tick,
		Size:         g.grid.Size(),
		SurfaceLevel: g.grid.SurfaceLevel(),
		Garden:       make(map[string]int32, len(g.garden)),
		Bookmark:     bookmark,
	}

	cells := g.grid.Cells()
	snapshot.Tiles = make([]byte, len(cells))
	for i, c := range cells {
		snapshot.Tiles[i] = byte(c.Tile)
		if c.Occupant != 0 {
			snapshot.Occupied = append(snapshot.Occupied, telemetry.OccupiedCell{Index: i, Occupant: c.Occupant})
		}
	}

	for _, k := range g.field.Kinds() {
		values := g.field.Values(k)
		layer := telemetry.PheromoneLayer{Kind: string(k), Values: make([]uint32, len(values))}
		copy(layer.Values, values)
		snapshot.Pheromones = append(snapshot.Pheromones, layer)
	}

	for _, a := range g.antInfos() {
		state := telemetry.AntState{
			ID:     a.ID,
			Caste:  a.Caste,
			Pos:    a.Pos,
			Hunger: a.Hunger,
			Age:    a.Age,
			Cargo:  a.Cargo,
			Task:   a.Task.State.String(),
			Target: a.Task.Target,
		}
		if ls := g.lifetimeTracker.Get(a.ID); ls != nil {
			cp := *ls
			state.Lifetime = &cp
		}
		snapshot.Ants = append(snapshot.Ants, state)
	}

	snapshot.Plants = g.plantStates()

	for k, n := range g.garden {
		kind := components.ResourceKind(k)
		if kind == components.ResourceNone {
			continue
		}
		snapshot.Garden[kind.String()] = n
	}

	return snapshot
}

// antInfos lists living ants in ID order.
func (g *Game) antInfos() []AntInfo {
	out := make([]AntInfo, 0, len(g.ants))
	query := g.antFilter.Query()
	for query.Next() {
		pos, ant, needs, cargo, task := query.Get()
		out = append(out, AntInfo{
			ID:     ant.ID,
			Caste:  g.casteName(ant.Caste),
			Pos:    pos.Coord,
			Hunger: needs.Hunger,
			Age:    needs.Age,
			Cargo:  *cargo,
			Task:   *task,
		})
	}
	slices.SortFunc(out, func(a, b AntInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// plantStates lists plants in ID order.
func (g *Game) plantStates() []telemetry.PlantState {
	out := make([]telemetry.PlantState, 0, len(g.plants))
	query := g.plantFilter.Query()
	for query.Next() {
		pos, res := query.Get()
		out = append(out, telemetry.PlantState{
			ID:     world.EntityID(res.ID),
			Pos:    pos.Coord,
			Leaves: res.Quantity,
		})
	}
	slices.SortFunc(out, func(a, b telemetry.PlantState) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
