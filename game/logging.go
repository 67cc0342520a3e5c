package game

import (
	"fmt"
	"io"

	"github.com/pthm-cable/acre/components"
)

// logWriter is the destination for log output.
var logWriter io.Writer

// SetLogWriter sets the log output destination.
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// Logf writes a formatted log message.
func Logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if logWriter != nil {
		fmt.Fprintln(logWriter, msg)
	} else {
		fmt.Println(msg)
	}
}

// LogWorldState logs a human-readable summary of the colony.
func (g *Game) LogWorldState() {
	g.mu.RLock()
	defer g.mu.RUnlock()

	byCaste := make([]int, len(g.traits))
	byTask := make(map[components.TaskState]int)
	var hungerSum float32
	var carrying int

	query := g.antFilter.Query()
	for query.Next() {
		_, ant, needs, cargo, task := query.Get()
		if int(ant.Caste) < len(byCaste) {
			byCaste[ant.Caste]++
		}
		byTask[task.State]++
		hungerSum += needs.Hunger
		if !cargo.Empty() {
			carrying++
		}
	}

	avgHunger := float32(0)
	if n := len(g.ants); n > 0 {
		avgHunger = hungerSum / float32(n)
	}

	Logf("=== Tick %d (%s, speed %dx) ===", g.tick, g.state, g.speed)
	Logf("Ants: %d (hunger %.1f avg, %d carrying)", len(g.ants), avgHunger, carrying)
	for i, n := range byCaste {
		if n > 0 {
			Logf("  %-10s %d", g.casteName(uint8(i)), n)
		}
	}
	for s := components.TaskIdle; s <= components.TaskGuarding; s++ {
		if n := byTask[s]; n > 0 {
			Logf("  %-14s %d", s, n)
		}
	}
	Logf("Garden: %d leaf | %d mulch | %d fungus | %d food",
		g.garden[components.ResourceLeaf], g.garden[components.ResourceMulch],
		g.garden[components.ResourceFungus], g.garden[components.ResourceFood])
	Logf("Plants: %d | Tunnels dug: %d", len(g.plants), g.tunnelsDug)

	for _, k := range g.field.Kinds() {
		at, peak := g.field.Peak(k)
		Logf("  %-8s mass %8.3f  peak %.3f at %v", k, g.field.Mass(k), peak, at)
	}
	Logf("")
}
