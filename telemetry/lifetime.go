package telemetry

import "github.com/pthm-cable/acre/mutation"

// LifetimeStats tracks per-ant statistics over its lifetime.
type LifetimeStats struct {
	BirthTick int32 `json:"birth_tick"`
	Caste     uint8 `json:"caste"`
	Ticks     int32 `json:"ticks"`
	Steps     int   `json:"steps"`
	Digs      int   `json:"digs"`
	LeavesCut int   `json:"leaves_cut"`
	Delivered int   `json:"delivered"`
	Tended    int   `json:"tended"`
	Meals     int   `json:"meals"`
	Rejected  int   `json:"rejected"`
}

// LifetimeTracker manages per-ant lifetime statistics.
type LifetimeTracker struct {
	stats map[uint32]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint32]*LifetimeStats),
	}
}

// Register creates lifetime stats for a new ant.
func (lt *LifetimeTracker) Register(antID uint32, birthTick int32, caste uint8) {
	lt.stats[antID] = &LifetimeStats{BirthTick: birthTick, Caste: caste}
}

// Get returns the lifetime stats for an ant, or nil if not found.
func (lt *LifetimeTracker) Get(antID uint32) *LifetimeStats {
	return lt.stats[antID]
}

// Remove removes an ant's stats and returns them (for logging).
func (lt *LifetimeTracker) Remove(antID uint32, currentTick int32) *LifetimeStats {
	stats := lt.stats[antID]
	if stats != nil {
		stats.Ticks = currentTick - stats.BirthTick
	}
	delete(lt.stats, antID)
	return stats
}

// RecordReport credits applied and rejected actions to the issuing ants.
func (lt *LifetimeTracker) RecordReport(r mutation.Report) {
	for _, a := range r.Applied {
		s := lt.stats[a.Ant]
		if s == nil {
			continue
		}
		switch a.Kind {
		case mutation.Move:
			s.Steps++
		case mutation.Dig:
			s.Digs++
		case mutation.CutLeaf:
			s.LeavesCut++
		case mutation.Deliver:
			s.Delivered++
		case mutation.Tend:
			s.Tended++
		case mutation.Eat:
			s.Meals++
		}
	}
	for _, rj := range r.Rejected {
		if s := lt.stats[rj.Action.Ant]; s != nil {
			s.Rejected++
		}
	}
}

// Count returns the number of tracked ants.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
