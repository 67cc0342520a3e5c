package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/game"
	"github.com/pthm-cable/acre/telemetry"
)

// FitnessEvaluator runs headless colonies and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int32
	seeds      []int64
	configPath string

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestSummary *telemetry.RunSummary
	lastQuality float64 // quality from most recent Evaluate call

	// Survival is the shortest run across seeds of one evaluation.
	lastSurvival int32
	bestSurvival int32
}

// NewFitnessEvaluator creates a new evaluator. Each run loads a fresh copy of
// the config at configPath so concurrent seeds never share slices or maps.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, configPath string) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		configPath:  configPath,
		bestFitness: math.Inf(1),
	}
}

// BestSummary returns the run summary from the best evaluation.
func (fe *FitnessEvaluator) BestSummary() *telemetry.RunSummary {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestSummary
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// LastSurvival returns the shortest seed survival of the most recent
// evaluation, in ticks.
func (fe *FitnessEvaluator) LastSurvival() int32 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSurvival
}

// SurvivedAll reports whether some evaluation kept the colony alive to
// maxTicks on every seed.
func (fe *FitnessEvaluator) SurvivedAll() bool {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestSurvival >= fe.maxTicks
}

// A colony without a queen cannot grow. Once the queen is gone and the
// population stays below minViablePop for extinctionGraceTicks, the run ends.
const (
	minViablePop         = 3
	extinctionGraceTicks = 500
)

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalTicks int32                   // ticks before functional extinction (or maxTicks if survived)
	windowStats   []telemetry.WindowStats // collected via OnStats each window
	summary       telemetry.RunSummary
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness  float64
	quality  float64
	survival int32
	summary  telemetry.RunSummary
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result, err := fe.runSimulation(x, s)
			if err != nil {
				return
			}
			results[idx] = seedResult{
				fitness:  fe.computeFitness(result),
				quality:  fe.computeQuality(result.windowStats),
				survival: result.survivalTicks,
				summary:  result.summary,
			}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	bestSeedFitness := math.Inf(1)
	var bestSeedSummary telemetry.RunSummary
	shortest := fe.maxTicks

	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
		shortest = min(shortest, r.survival)
		if r.fitness < bestSeedFitness {
			bestSeedFitness = r.fitness
			bestSeedSummary = r.summary
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestSummary = &bestSeedSummary
	}
	fe.lastQuality = totalQuality / n
	fe.lastSurvival = shortest
	fe.bestSurvival = max(fe.bestSurvival, shortest)
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless colony run until functional
// extinction or maxTicks, whichever comes first.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) (*runResult, error) {
	cfg, err := config.Load(fe.configPath)
	if err != nil {
		return nil, err
	}
	fe.params.ApplyToConfig(cfg, x)
	// Decide runs inline; seeds already run in parallel.
	cfg.Schedule.Workers = 1

	result := &runResult{}
	g, err := game.New(cfg, game.Options{
		Seed: seed,
		OnStats: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer g.Close()

	var below int32
	for g.Tick() < fe.maxTicks {
		g.Step()

		pop := g.Population()
		if pop == 0 {
			break
		}
		if pop < minViablePop && !hasQueen(result.windowStats) {
			below++
			if below >= extinctionGraceTicks {
				break
			}
		} else {
			below = 0
		}
	}

	result.survivalTicks = g.Tick()
	result.summary = g.Summary()
	return result, nil
}

// hasQueen reports whether the latest stats window still counted a queen.
// Before the first window closes the founding queen is assumed alive.
func hasQueen(windows []telemetry.WindowStats) bool {
	if len(windows) == 0 {
		return true
	}
	return windows[len(windows)-1].Queens > 0
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survivalTicks × (1.0 + 0.2 × quality))
// Survival dominates; quality adds up to 20% bonus to separate configs
// with similar survival.
func (fe *FitnessEvaluator) computeFitness(r *runResult) float64 {
	survival := float64(r.survivalTicks)
	quality := fe.computeQuality(r.windowStats)
	return -(survival * (1.0 + 0.2*quality))
}

// Quality component weights.
const (
	qualityWeightGrowth    = 0.30
	qualityWeightStability = 0.20
	qualityWeightHunger    = 0.25
	qualityWeightEconomy   = 0.25

	qualityWarmupWindows = 2 // skip first N windows (warmup)
	qualityTargetPop     = 60
)

// computeQuality computes colony quality ∈ [0, 1] from window stats.
func (fe *FitnessEvaluator) computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var growthSum, hungerSum, economySum float64
	var count int
	pops := make([]float64, 0, len(valid))

	for _, w := range valid {
		if w.Population == 0 {
			continue
		}
		pops = append(pops, float64(w.Population))

		// 1. Population near the target size
		logErr := math.Log(float64(w.Population) / qualityTargetPop)
		growthSum += math.Exp(-logErr * logErr)

		// 2. Median hunger comfortably below critical
		hungerSum += math.Exp(-math.Pow((w.HungerP50-25)/25, 2))

		// 3. Leaves reaching the garden and food in stock
		delivered := 1.0 - math.Exp(-float64(w.Deliveries)/5.0)
		stocked := 1.0 - math.Exp(-float64(w.GardenFood)/10.0)
		economySum += 0.5*delivered + 0.5*stocked

		count++
	}

	if count == 0 {
		return 0
	}

	stabilityScore := 0.0
	if len(pops) >= 2 {
		c := cv(pops)
		stabilityScore = math.Exp(-c * c)
	}

	n := float64(count)
	quality := qualityWeightGrowth*growthSum/n +
		qualityWeightStability*stabilityScore +
		qualityWeightHunger*hungerSum/n +
		qualityWeightEconomy*economySum/n

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	if mean == 0 {
		return 0
	}
	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	return math.Sqrt(sqDiff/n) / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
