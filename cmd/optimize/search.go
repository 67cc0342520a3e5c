package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"
)

// searchOptions bound a parameter search.
type searchOptions struct {
	maxEvals       int
	population     int  // 0 = sized from the parameter count
	patience       int  // generations without a survival gain before stopping (0 = never)
	stopOnSurvival bool // stop once one candidate outlives maxTicks on every seed
}

// survivalTolerance is the fitness gain, in ticks, that counts as progress
// for the patience stop.
const survivalTolerance = 50

// settings returns the gonum settings for opts. Patience maps to a
// FunctionConverge on the best fitness so far.
func (opts searchOptions) settings() *optimize.Settings {
	s := &optimize.Settings{
		FuncEvaluations: opts.maxEvals,
		Concurrent:      0, // seeds already run in parallel
	}
	if opts.patience > 0 {
		s.Converger = &optimize.FunctionConverge{
			Absolute:   survivalTolerance,
			Iterations: opts.patience,
		}
	} else {
		s.Converger = optimize.NeverTerminate{}
	}
	return s
}

// search runs CMA-ES over a ParamVector, keeping the best clamped vector seen
// and logging every evaluation.
type search struct {
	params *ParamVector
	eval   *FitnessEvaluator
	opts   searchOptions
	log    *evalLog
	out    io.Writer

	evals   int
	best    float64
	bestRaw []float64
	start   time.Time
}

func newSearch(params *ParamVector, eval *FitnessEvaluator, opts searchOptions, log *evalLog, out io.Writer) *search {
	return &search{
		params: params,
		eval:   eval,
		opts:   opts,
		log:    log,
		out:    out,
		best:   1e18,
	}
}

// problem builds the optimization problem. Status ends the search early
// once every seed survived, if requested.
func (s *search) problem() optimize.Problem {
	p := s.params.Problem(s.evaluate)
	if s.opts.stopOnSurvival {
		p.Status = func() (optimize.Status, error) {
			if s.eval.SurvivedAll() {
				return optimize.Success, nil
			}
			return optimize.NotTerminated, nil
		}
	}
	return p
}

func (s *search) evaluate(raw []float64) float64 {
	fitness := s.eval.Evaluate(raw)
	s.evals++
	if fitness < s.best {
		s.best = fitness
		s.bestRaw = append(s.bestRaw[:0], raw...)
	}

	survival := s.eval.LastSurvival()
	quality := s.eval.LastQuality()
	if err := s.log.write(s.evals, fitness, survival, quality, raw); err != nil {
		fmt.Fprintf(s.out, "eval log: %v\n", err)
	}

	elapsed := time.Since(s.start)
	remaining := time.Duration(s.opts.maxEvals-s.evals) * (elapsed / time.Duration(s.evals))
	fmt.Fprintf(s.out, "Eval %d/%d: survived=%d ticks quality=%.2f (best=%.0f) | elapsed: %s, ETA: %s\n",
		s.evals, s.opts.maxEvals, survival, quality, s.best,
		formatDuration(elapsed), formatDuration(remaining))
	return fitness
}

// run minimizes from the default parameters and returns the best raw vector
// with the gonum termination status.
func (s *search) run() ([]float64, optimize.Status, error) {
	s.start = time.Now()
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   s.params.PopulationSize(s.opts.population),
	}
	initX := s.params.Normalize(s.params.DefaultVector())

	result, err := optimize.Minimize(s.problem(), initX, s.opts.settings(), method)
	var status optimize.Status
	if result != nil {
		status = result.Status
	}
	if s.bestRaw == nil && result != nil {
		s.bestRaw = s.params.Clamp(s.params.Denormalize(result.X))
	}
	return s.bestRaw, status, err
}

// evalLog writes one CSV row per evaluation: the score, the shortest seed
// survival and the clamped parameter values.
type evalLog struct {
	w *csv.Writer
}

func newEvalLog(w io.Writer, params *ParamVector) (*evalLog, error) {
	l := &evalLog{w: csv.NewWriter(w)}
	header := []string{"eval", "fitness", "survival", "quality"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	if err := l.w.Write(header); err != nil {
		return nil, err
	}
	l.w.Flush()
	return l, l.w.Error()
}

func (l *evalLog) write(eval int, fitness float64, survival int32, quality float64, raw []float64) error {
	row := []string{
		strconv.Itoa(eval),
		strconv.FormatFloat(fitness, 'f', 6, 64),
		strconv.Itoa(int(survival)),
		strconv.FormatFloat(quality, 'f', 4, 64),
	}
	for _, v := range raw {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}
