// Command optimize searches colony economy parameters with CMA-ES for
// colonies that survive and grow.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pthm-cable/acre/config"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// evalSeeds returns n world seeds spread apart so the runs share no terrain.
func evalSeeds(n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = int64(i*1000 + 42)
	}
	return seeds
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 20000, "Ticks a colony must survive to score full survival")
	seeds := flag.Int("seeds", 3, "World seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	patience := flag.Int("patience", 0, "Stop after this many generations without a survival gain (0 = never)")
	stopOnSurvival := flag.Bool("stop-on-survival", false, "Stop once a candidate survives max-ticks on every seed")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}
	// Validate the base config once; each run reloads its own copy
	if _, err := config.Load(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	params := NewParamVector()
	evaluator := NewFitnessEvaluator(params, int32(*maxTicks), evalSeeds(*seeds), *configPath)
	opts := searchOptions{
		maxEvals:       *maxEvals,
		population:     *population,
		patience:       *patience,
		stopOnSurvival: *stopOnSurvival,
	}

	logFile, err := os.Create(filepath.Join(*outputDir, "optimize_log.csv"))
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	elog, err := newEvalLog(logFile, params)
	if err != nil {
		log.Fatalf("failed to write log header: %v", err)
	}

	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		params.Dim(), params.PopulationSize(*population), *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, ticks per run: %d\n", *seeds, *maxTicks)

	s := newSearch(params, evaluator, opts, elog, os.Stdout)
	bestParams, status, err := s.run()
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	fmt.Printf("\nOptimization stopped (%v) after %d evaluations in %s\n", status, s.evals, formatDuration(time.Since(s.start)))
	fmt.Printf("Best fitness: %.0f, every seed survived: %v\n", s.best, evaluator.SurvivedAll())

	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Name, bestParams[i])
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}

	if sum := evaluator.BestSummary(); sum != nil {
		sumPath := filepath.Join(*outputDir, "best_run.json")
		data, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			log.Printf("failed to marshal run summary: %v", err)
		} else if err := os.WriteFile(sumPath, data, 0644); err != nil {
			log.Printf("failed to write run summary: %v", err)
		} else {
			fmt.Printf("Best run summary saved to: %s\n", sumPath)
		}
	}
}
