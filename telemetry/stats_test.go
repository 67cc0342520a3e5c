package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/mutation"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeDistribution(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	mean, std, p10, p50, p90 := ComputeDistribution(values)

	if math.Abs(mean-55) > 0.001 {
		t.Errorf("mean = %v, want 55", mean)
	}
	// Sample standard deviation of 10..100 step 10
	if math.Abs(std-30.2765) > 0.01 {
		t.Errorf("std = %v, want ~30.28", std)
	}
	if math.Abs(p10-19) > 0.01 {
		t.Errorf("p10 = %v, want 19", p10)
	}
	if math.Abs(p50-55) > 0.01 {
		t.Errorf("p50 = %v, want 55", p50)
	}
	if math.Abs(p90-91) > 0.01 {
		t.Errorf("p90 = %v, want 91", p90)
	}
}

func TestComputeDistributionSmall(t *testing.T) {
	mean, std, p10, p50, p90 := ComputeDistribution(nil)
	if mean != 0 || std != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}

	mean, std, _, p50, _ = ComputeDistribution([]float64{7})
	if mean != 7 || std != 0 || p50 != 7 {
		t.Errorf("single value: mean=%v std=%v p50=%v", mean, std, p50)
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(10, 0.1, []string{"queen", "worker", "scout"})

	if c.ShouldFlush(5) {
		t.Error("flush before window end")
	}
	if !c.ShouldFlush(10) {
		t.Error("no flush at window end")
	}

	c.RecordBirth()
	c.RecordDeath(components.DeathStarvation)
	c.RecordDeath(components.DeathHazard)
	c.RecordReport(mutation.Report{
		Applied: []mutation.Action{
			{Ant: 1, Kind: mutation.Dig},
			{Ant: 2, Kind: mutation.Move},
			{Ant: 3, Kind: mutation.Eat},
		},
		Rejected: []mutation.Rejection{
			{Action: mutation.Action{Ant: 4, Kind: mutation.Dig}, Err: mutation.ErrConflict},
			{Action: mutation.Action{Ant: 5, Kind: mutation.Eat}, Err: mutation.ErrResourceDepletion},
		},
	})

	stats := c.Flush(10, ColonySample{
		ByCaste: []int{1, 4, 2},
		Hunger:  []float64{10, 20},
		Mass:    map[string]float64{"dig": 1.5, "food": 0.25, "alarm": 0.25},
		Garden:  map[components.ResourceKind]int32{components.ResourceFood: 3},
		Tunnels: 7,
	})

	if stats.Population != 7 || stats.Queens != 1 || stats.Workers != 4 || stats.OtherCaste != 2 {
		t.Errorf("population columns = %+v", stats)
	}
	if stats.Births != 1 || stats.Deaths != 2 || stats.DeathsStarvation != 1 || stats.DeathsHazard != 1 {
		t.Errorf("lifecycle counts wrong: %+v", stats)
	}
	if stats.Applied != 3 || stats.Rejected != 2 || stats.Conflicts != 1 || stats.Depletions != 1 {
		t.Errorf("action counts wrong: %+v", stats)
	}
	if stats.Digs != 1 || stats.Meals != 1 {
		t.Errorf("digs=%d meals=%d", stats.Digs, stats.Meals)
	}
	if stats.MassDig != 1.5 || stats.GardenFood != 3 || stats.Tunnels != 7 {
		t.Errorf("sampled values wrong: %+v", stats)
	}
	if stats.MassTotal != 2 {
		t.Errorf("mass_total = %v, want 2 (extra kinds included)", stats.MassTotal)
	}
	if math.Abs(stats.SimTimeSec-1.0) > 1e-9 {
		t.Errorf("sim_time = %v, want 1", stats.SimTimeSec)
	}

	// Counters reset for the next window
	next := c.Flush(20, ColonySample{})
	if next.Births != 0 || next.Applied != 0 || next.WindowStartTick != 10 {
		t.Errorf("window not reset: %+v", next)
	}
}
