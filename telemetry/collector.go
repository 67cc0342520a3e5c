package telemetry

import (
	"errors"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/mutation"
)

// ColonySample is the colony state sampled by the caller at flush time.
type ColonySample struct {
	ByCaste    []int              // live ants per caste index
	Hunger     []float64          // hunger of every live ant
	Mass       map[string]float64 // pheromone mass per kind name
	Garden     map[components.ResourceKind]int32
	Tunnels    int
	Plants     int
	TreeLeaves int
}

// Collector accumulates events within stats windows and produces WindowStats.
type Collector struct {
	windowDurationTicks int32
	tickInterval        float64
	casteNames          []string

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	births         int
	deaths         int
	deathsByCause  [components.DeathHazard + 1]int
	applied        int
	rejected       int
	conflicts      int
	depletions     int
	appliedPerKind [mutation.SetTile + 1]int
}

// NewCollector creates a new stats collector.
// windowTicks: ticks per stats window
// tickInterval: seconds per tick at speed 1 (used for tick-to-time conversion)
// casteNames: caste names by index, used to bucket population columns
func NewCollector(windowTicks int, tickInterval float64, casteNames []string) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowDurationTicks: int32(windowTicks),
		tickInterval:        tickInterval,
		casteNames:          casteNames,
	}
}

// RecordBirth records a birth event.
func (c *Collector) RecordBirth() {
	c.births++
}

// RecordDeath records a death event.
func (c *Collector) RecordDeath(cause components.DeathCause) {
	c.deaths++
	if int(cause) < len(c.deathsByCause) {
		c.deathsByCause[cause]++
	}
}

// RecordReport counts the outcome of one apply phase.
func (c *Collector) RecordReport(r mutation.Report) {
	c.applied += len(r.Applied)
	c.rejected += len(r.Rejected)
	for _, a := range r.Applied {
		if int(a.Kind) < len(c.appliedPerKind) {
			c.appliedPerKind[a.Kind]++
		}
	}
	for _, rj := range r.Rejected {
		switch {
		case errors.Is(rj.Err, mutation.ErrConflict):
			c.conflicts++
		case errors.Is(rj.Err, mutation.ErrResourceDepletion):
			c.depletions++
		}
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, sample ColonySample) WindowStats {
	hMean, hStd, hP10, hP50, hP90 := ComputeDistribution(sample.Hunger)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.tickInterval,

		Births:           c.births,
		Deaths:           c.deaths,
		DeathsStarvation: c.deathsByCause[components.DeathStarvation],
		DeathsOldAge:     c.deathsByCause[components.DeathOldAge],
		DeathsHazard:     c.deathsByCause[components.DeathHazard],

		Applied:    c.applied,
		Rejected:   c.rejected,
		Conflicts:  c.conflicts,
		Depletions: c.depletions,
		Digs:       c.appliedPerKind[mutation.Dig],
		LeavesCut:  c.appliedPerKind[mutation.CutLeaf],
		Deliveries: c.appliedPerKind[mutation.Deliver],
		Tends:      c.appliedPerKind[mutation.Tend],
		Meals:      c.appliedPerKind[mutation.Eat],

		HungerMean: hMean,
		HungerStd:  hStd,
		HungerP10:  hP10,
		HungerP50:  hP50,
		HungerP90:  hP90,

		MassDig:    sample.Mass["dig"],
		MassForage: sample.Mass["forage"],
		MassHome:   sample.Mass["home"],
		MassFood:   sample.Mass["food"],
		MassDanger: sample.Mass["danger"],
		MassTotal:  totalMass(sample.Mass),

		GardenLeaf:   int(sample.Garden[components.ResourceLeaf]),
		GardenMulch:  int(sample.Garden[components.ResourceMulch]),
		GardenFungus: int(sample.Garden[components.ResourceFungus]),
		GardenFood:   int(sample.Garden[components.ResourceFood]),

		Tunnels:      sample.Tunnels,
		PlantsLeft:   sample.Plants,
		LeavesOnTree: sample.TreeLeaves,
	}

	for i, n := range sample.ByCaste {
		stats.Population += n
		name := ""
		if i < len(c.casteNames) {
			name = c.casteNames[i]
		}
		switch name {
		case "queen":
			stats.Queens += n
		case "worker":
			stats.Workers += n
		case "forager":
			stats.Foragers += n
		case "gardener":
			stats.Gardeners += n
		case "soldier":
			stats.Soldiers += n
		default:
			stats.OtherCaste += n
		}
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.births = 0
	c.deaths = 0
	c.deathsByCause = [components.DeathHazard + 1]int{}
	c.applied = 0
	c.rejected = 0
	c.conflicts = 0
	c.depletions = 0
	c.appliedPerKind = [mutation.SetTile + 1]int{}

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}

// totalMass sums every sampled layer, including configured extra kinds,
// in name order so the float sum is reproducible.
func totalMass(mass map[string]float64) float64 {
	names := make([]string, 0, len(mass))
	for k := range mass {
		names = append(names, k)
	}
	slices.Sort(names)
	values := make([]float64, len(names))
	for i, k := range names {
		values[i] = mass[k]
	}
	return floats.Sum(values)
}
