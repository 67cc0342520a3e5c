package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the simulation tick.
const (
	PhaseCommands  = "commands"
	PhaseEmissions = "emissions"
	PhaseDecide    = "decide"
	PhaseApply     = "apply"
	PhaseDiffuse   = "diffuse"
	PhaseLifecycle = "lifecycle"
	PhaseTelemetry = "telemetry"
)

var phaseOrder = []string{
	PhaseCommands, PhaseEmissions, PhaseDecide, PhaseApply,
	PhaseDiffuse, PhaseLifecycle, PhaseTelemetry,
}

// PerfSample holds timing and load data for a single tick.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
	Load         TickLoad
}

// TickLoad is the colony work done in one tick.
type TickLoad struct {
	Ants     int // ants that ran decide
	Applied  int // actions applied
	Rejected int // actions rejected at apply
}

// PerfCollector tracks performance metrics over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	currentLoad   TickLoad
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of ticks to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.currentPhases = make(map[string]time.Duration, len(phaseOrder))
	p.currentLoad = TickLoad{}
	p.lastPhase = ""
}

// RecordLoad sets the colony load of the tick in progress.
func (p *PerfCollector) RecordLoad(load TickLoad) {
	p.currentLoad = load
}

// StartPhase begins timing a specific phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	// End previous phase if any
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	// End final phase
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		TickDuration: now.Sub(p.tickStart),
		Phases:       p.currentPhases,
		Load:         p.currentLoad,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	// Tick timing
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total tick time
	PhasePct map[string]float64

	// Throughput
	TicksPerSecond float64

	// Colony load (per-tick averages)
	AntsAvg        float64
	ActionsPerTick float64
	RejectPct      float64 // rejected share of submitted actions
	DecidePerAnt   time.Duration
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var totalTick time.Duration
	var minTick, maxTick time.Duration
	phaseSum := make(map[string]time.Duration)
	var ants, applied, rejected int

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		totalTick += s.TickDuration

		if i == 0 || s.TickDuration < minTick {
			minTick = s.TickDuration
		}
		if s.TickDuration > maxTick {
			maxTick = s.TickDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
		ants += s.Load.Ants
		applied += s.Load.Applied
		rejected += s.Load.Rejected
	}

	avgTick := totalTick / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avgTick > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avgTick) * 100
		}
	}

	var ticksPerSec float64
	if avgTick > 0 {
		ticksPerSec = float64(time.Second) / float64(avgTick)
	}

	n := float64(p.sampleCount)
	stats := PerfStats{
		AvgTickDuration: avgTick,
		MinTickDuration: minTick,
		MaxTickDuration: maxTick,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		TicksPerSecond:  ticksPerSec,
		AntsAvg:         float64(ants) / n,
		ActionsPerTick:  float64(applied) / n,
	}
	if submitted := applied + rejected; submitted > 0 {
		stats.RejectPct = float64(rejected) / float64(submitted) * 100
	}
	if ants > 0 {
		stats.DecidePerAnt = phaseSum[PhaseDecide] / time.Duration(ants)
	}
	return stats
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
		"ants", int(s.AntsAvg),
		"decide_ns_per_ant", s.DecidePerAnt.Nanoseconds(),
		"reject_pct", float64(int(s.RejectPct*10))/10.0,
	}

	for _, phase := range phaseOrder {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10.0)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
		slog.Float64("ants_avg", s.AntsAvg),
		slog.Float64("actions_per_tick", s.ActionsPerTick),
		slog.Float64("reject_pct", s.RejectPct),
		slog.Int64("decide_ns_per_ant", s.DecidePerAnt.Nanoseconds()),
	}

	for _, phase := range phaseOrder {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd    int32   `csv:"window_end"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	MinTickUS    int64   `csv:"min_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	AntsAvg      float64 `csv:"ants_avg"`
	ActionsTick  float64 `csv:"actions_per_tick"`
	RejectPct    float64 `csv:"reject_pct"`
	DecideNSAnt  int64   `csv:"decide_ns_per_ant"`
	CommandsPct  float64 `csv:"commands_pct"`
	EmissionsPct float64 `csv:"emissions_pct"`
	DecidePct    float64 `csv:"decide_pct"`
	ApplyPct     float64 `csv:"apply_pct"`
	DiffusePct   float64 `csv:"diffuse_pct"`
	LifecyclePct float64 `csv:"lifecycle_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgTickUS:    s.AvgTickDuration.Microseconds(),
		MinTickUS:    s.MinTickDuration.Microseconds(),
		MaxTickUS:    s.MaxTickDuration.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		AntsAvg:      s.AntsAvg,
		ActionsTick:  s.ActionsPerTick,
		RejectPct:    s.RejectPct,
		DecideNSAnt:  s.DecidePerAnt.Nanoseconds(),
		CommandsPct:  s.PhasePct[PhaseCommands],
		EmissionsPct: s.PhasePct[PhaseEmissions],
		DecidePct:    s.PhasePct[PhaseDecide],
		ApplyPct:     s.PhasePct[PhaseApply],
		DiffusePct:   s.PhasePct[PhaseDiffuse],
		LifecyclePct: s.PhasePct[PhaseLifecycle],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
