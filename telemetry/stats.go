package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a stats window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Population int `csv:"population"`
	Queens     int `csv:"queens"`
	Workers    int `csv:"workers"`
	Foragers   int `csv:"foragers"`
	Gardeners  int `csv:"gardeners"`
	Soldiers   int `csv:"soldiers"`
	OtherCaste int `csv:"other_castes"`

	// Lifecycle events during window
	Births           int `csv:"births"`
	Deaths           int `csv:"deaths"`
	DeathsStarvation int `csv:"deaths_starvation"`
	DeathsOldAge     int `csv:"deaths_old_age"`
	DeathsHazard     int `csv:"deaths_hazard"`

	// Action log outcomes during window
	Applied    int `csv:"actions_applied"`
	Rejected   int `csv:"actions_rejected"`
	Conflicts  int `csv:"conflicts"`
	Depletions int `csv:"depletions"`
	Digs       int `csv:"digs"`
	LeavesCut  int `csv:"leaves_cut"`
	Deliveries int `csv:"deliveries"`
	Tends      int `csv:"tends"`
	Meals      int `csv:"meals"`

	// Hunger distribution (sampled at window end)
	HungerMean float64 `csv:"hunger_mean"`
	HungerStd  float64 `csv:"hunger_std"`
	HungerP10  float64 `csv:"hunger_p10"`
	HungerP50  float64 `csv:"hunger_p50"`
	HungerP90  float64 `csv:"hunger_p90"`

	// Pheromone mass per layer (sampled at window end)
	MassDig    float64 `csv:"mass_dig"`
	MassForage float64 `csv:"mass_forage"`
	MassHome   float64 `csv:"mass_home"`
	MassFood   float64 `csv:"mass_food"`
	MassDanger float64 `csv:"mass_danger"`
	MassTotal  float64 `csv:"mass_total"`

	// Garden stock
	GardenLeaf   int `csv:"garden_leaf"`
	GardenMulch  int `csv:"garden_mulch"`
	GardenFungus int `csv:"garden_fungus"`
	GardenFood   int `csv:"garden_food"`

	// Excavation
	Tunnels      int `csv:"tunnels"`
	PlantsLeft   int `csv:"plants"`
	LeavesOnTree int `csv:"leaves_on_trees"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean, std, and percentiles of values.
func ComputeDistribution(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}
	if n == 1 {
		return values[0], 0, values[0], values[0], values[0]
	}

	mean, std = stat.MeanStdDev(values, nil)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("population", s.Population),
		slog.Int("queens", s.Queens),
		slog.Int("workers", s.Workers),
		slog.Int("foragers", s.Foragers),
		slog.Int("gardeners", s.Gardeners),
		slog.Int("soldiers", s.Soldiers),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("actions_applied", s.Applied),
		slog.Int("actions_rejected", s.Rejected),
		slog.Int("conflicts", s.Conflicts),
		slog.Int("digs", s.Digs),
		slog.Int("leaves_cut", s.LeavesCut),
		slog.Int("meals", s.Meals),
		slog.Float64("hunger_mean", s.HungerMean),
		slog.Float64("hunger_p90", s.HungerP90),
		slog.Float64("mass_dig", s.MassDig),
		slog.Float64("mass_forage", s.MassForage),
		slog.Float64("mass_home", s.MassHome),
		slog.Float64("mass_food", s.MassFood),
		slog.Float64("mass_danger", s.MassDanger),
		slog.Float64("mass_total", s.MassTotal),
		slog.Int("garden_food", s.GardenFood),
		slog.Int("tunnels", s.Tunnels),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"population", s.Population,
		"queens", s.Queens,
		"workers", s.Workers,
		"foragers", s.Foragers,
		"gardeners", s.Gardeners,
		"soldiers", s.Soldiers,
		"births", s.Births,
		"deaths", s.Deaths,
		"deaths_starvation", s.DeathsStarvation,
		"deaths_old_age", s.DeathsOldAge,
		"deaths_hazard", s.DeathsHazard,
		"actions_applied", s.Applied,
		"actions_rejected", s.Rejected,
		"conflicts", s.Conflicts,
		"depletions", s.Depletions,
		"digs", s.Digs,
		"leaves_cut", s.LeavesCut,
		"deliveries", s.Deliveries,
		"tends", s.Tends,
		"meals", s.Meals,
		"hunger_mean", s.HungerMean,
		"hunger_std", s.HungerStd,
		"hunger_p50", s.HungerP50,
		"hunger_p90", s.HungerP90,
		"mass_dig", s.MassDig,
		"mass_forage", s.MassForage,
		"mass_home", s.MassHome,
		"mass_food", s.MassFood,
		"mass_danger", s.MassDanger,
		"mass_total", s.MassTotal,
		"garden_leaf", s.GardenLeaf,
		"garden_mulch", s.GardenMulch,
		"garden_fungus", s.GardenFungus,
		"garden_food", s.GardenFood,
		"tunnels", s.Tunnels,
		"plants", s.PlantsLeft,
	)
}
