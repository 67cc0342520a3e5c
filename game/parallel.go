package game

import (
	"cmp"
	"runtime"
	"slices"
	"sync"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/systems"
)

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	decide *systems.Scratch
}

// workChunk represents a range of ants for a worker to process.
type workChunk struct {
	start, end int
}

// parallelState holds resources for the parallel decide phase.
type parallelState struct {
	snapshots  []systems.AntView
	tasks      []components.Task
	view       *systems.ColonyView
	scratches  []workerScratch
	numWorkers int
	threshold  int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(cfg *config.Config, layers int) *parallelState {
	numWorkers := cfg.Schedule.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	threshold := cfg.Schedule.ParallelThreshold
	if threshold <= 0 {
		threshold = 64
	}
	scratches := make([]workerScratch, numWorkers)
	for i := range scratches {
		scratches[i].decide = systems.NewScratch(layers)
	}
	return &parallelState{
		numWorkers: numWorkers,
		threshold:  threshold,
		scratches:  scratches,
		snapshots:  make([]systems.AntView, 0, 256),
		tasks:      make([]components.Task, 0, 256),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(g *Game) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(g, i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(g *Game, workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			g.decideChunk(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// decideAll snapshots every ant, runs the policy and records the resulting
// actions. Tasks are held until the apply phase.
func (g *Game) decideAll() {
	p := g.parallel

	// Phase A: Build snapshots (single-threaded)
	p.snapshots = p.snapshots[:0]
	query := g.antFilter.Query()
	for query.Next() {
		pos, ant, needs, cargo, task := query.Get()
		p.snapshots = append(p.snapshots, systems.AntView{
			ID:     ant.ID,
			Caste:  ant.Caste,
			Pos:    pos.Coord,
			Hunger: needs.Hunger,
			Cargo:  *cargo,
			Task:   *task,
		})
	}
	slices.SortFunc(p.snapshots, func(a, b systems.AntView) int {
		return cmp.Compare(a.ID, b.ID)
	})

	n := len(p.snapshots)
	if n == 0 {
		return
	}
	if cap(p.tasks) < n {
		p.tasks = make([]components.Task, n)
	}
	p.tasks = p.tasks[:n]
	p.view = g.colonyView()

	// Phase B: Decide - single or parallel based on population
	if n < p.threshold {
		g.decideChunk(0, n, &p.scratches[0])
	} else {
		g.decideParallel(n)
	}
}

// decideParallel dispatches work to the worker pool.
func (g *Game) decideParallel(n int) {
	p := g.parallel
	if !p.running {
		p.startWorkers(g)
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// decideChunk runs the policy for a range of snapshots. It only reads the
// grid, field and colony view; the log is the only shared write.
func (g *Game) decideChunk(i0, i1 int, scratch *workerScratch) {
	p := g.parallel
	for i := i0; i < i1; i++ {
		snap := p.snapshots[i]
		rng := systems.AntRNG(g.seed, g.tick, snap.ID)
		dec := g.decider.Decide(snap, g.grid, g.field, p.view, rng, scratch.decide)
		g.log.RecordBatch(dec.Actions)
		p.tasks[i] = dec.Task
	}
}

// applyTasks writes the decided tasks back to surviving ants.
func (g *Game) applyTasks() {
	p := g.parallel
	for i := range p.tasks {
		e, ok := g.ants[p.snapshots[i].ID]
		if !ok {
			continue
		}
		*g.taskMap.Get(e) = p.tasks[i]
	}
	p.tasks = p.tasks[:0]
	p.view = nil
}

// stopParallelWorkers should be called when shutting down the game.
func (g *Game) stopParallelWorkers() {
	if g.parallel != nil {
		g.parallel.stopWorkers()
	}
}
