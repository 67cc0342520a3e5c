// Package pheromone implements the chemical signal layers ants sense and lay.
//
// Intensities are stored as 16.16 fixed point so diffusion and decay are
// exact integer operations. Diffusion moves intensity along grid edges in
// whole units, so a pass without decay conserves mass exactly and results
// do not depend on goroutine scheduling.
package pheromone

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/world"
)

// ErrUnknownKind is returned for a pheromone kind the field does not carry.
var ErrUnknownKind = errors.New("unknown pheromone kind")

// One is the fixed-point value of intensity 1.0.
const One = config.FixedOne

// Kind names a pheromone layer.
type Kind string

// Built-in kinds. Additional kinds may be declared in config.
const (
	Dig    Kind = "dig"
	Forage Kind = "forage"
	Home   Kind = "home"
	Food   Kind = "food"
	Danger Kind = "danger"
)

// KindSpec describes one layer's dynamics.
type KindSpec struct {
	Kind      Kind
	Diffusion float64 // [0,1]
	Decay     float64 // [0,1], 1 = no decay
}

// Options configures a Field.
type Options struct {
	Size         int
	Connectivity int     // 6 or 26
	Max          float64 // upper intensity bound
	Kinds        []KindSpec
}

// layer holds one kind's intensities.
type layer struct {
	spec KindSpec
	cur  []uint32
	next []uint32
	mass uint64 // sum of cur, kept current by Deposit and step
}

// Field is a set of named scalar grids over the world.
type Field struct {
	size    int
	conn    int
	max     uint32
	kinds   []Kind
	index   map[Kind]int
	layers  []*layer
	offsets []world.Coord // forward half of the neighborhood
}

// NewFromConfig builds a field from the pheromone section of cfg.
func NewFromConfig(cfg *config.Config) *Field {
	specs := make([]KindSpec, len(cfg.Pheromone.Kinds))
	for i, k := range cfg.Pheromone.Kinds {
		specs[i] = KindSpec{Kind: Kind(k.Name), Diffusion: k.Diffusion, Decay: k.Decay}
	}
	return New(Options{
		Size:         cfg.World.Size,
		Connectivity: cfg.Pheromone.Connectivity,
		Max:          cfg.Pheromone.Max,
		Kinds:        specs,
	})
}

// New creates an empty field.
func New(opts Options) *Field {
	conn := opts.Connectivity
	if conn != 26 {
		conn = 6
	}
	n := opts.Size * opts.Size * opts.Size
	f := &Field{
		size:    opts.Size,
		conn:    conn,
		max:     uint32(opts.Max * One),
		index:   make(map[Kind]int, len(opts.Kinds)),
		offsets: forwardOffsets(conn),
	}
	for _, spec := range opts.Kinds {
		spec.Diffusion = clamp01(spec.Diffusion)
		spec.Decay = clamp01(spec.Decay)
		f.index[spec.Kind] = len(f.layers)
		f.kinds = append(f.kinds, spec.Kind)
		f.layers = append(f.layers, &layer{
			spec: spec,
			cur:  make([]uint32, n),
			next: make([]uint32, n),
		})
	}
	return f
}

// forwardOffsets returns the neighbor offsets that are lexicographically
// after the origin, so every undirected edge is visited once.
func forwardOffsets(conn int) []world.Coord {
	if conn == 6 {
		return []world.Coord{{X: 1}, {Y: 1}, {Z: 1}}
	}
	var out []world.Coord
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				d := world.Coord{X: dx, Y: dy, Z: dz}
				if (world.Coord{}).Less(d) {
					out = append(out, d)
				}
			}
		}
	}
	return out
}

// Kinds returns the layer kinds in declaration order.
func (f *Field) Kinds() []Kind { return f.kinds }

// Size returns the edge length.
func (f *Field) Size() int { return f.size }

// Max returns the intensity upper bound.
func (f *Field) Max() float32 { return float32(f.max) / One }

// MaxFixed returns the intensity upper bound in fixed point.
func (f *Field) MaxFixed() uint32 { return f.max }

// Connectivity returns 6 or 26.
func (f *Field) Connectivity() int { return f.conn }

// KindIndex returns the layer index for kind.
func (f *Field) KindIndex(kind Kind) (int, bool) {
	i, ok := f.index[kind]
	return i, ok
}

func (f *Field) inBounds(c world.Coord) bool {
	return c.X >= 0 && c.X < f.size && c.Y >= 0 && c.Y < f.size && c.Z >= 0 && c.Z < f.size
}

func (f *Field) idx(c world.Coord) int {
	return (c.Z*f.size+c.Y)*f.size + c.X
}

// Sample returns the intensity of kind at c. Unknown kinds and
// out-of-bounds coordinates read as zero.
func (f *Field) Sample(kind Kind, c world.Coord) float32 {
	k, ok := f.index[kind]
	if !ok || !f.inBounds(c) {
		return 0
	}
	return float32(f.layers[k].cur[f.idx(c)]) / One
}

// SampleFixed returns the fixed-point intensity of layer k at c.
func (f *Field) SampleFixed(k int, c world.Coord) uint32 {
	if k < 0 || k >= len(f.layers) || !f.inBounds(c) {
		return 0
	}
	return f.layers[k].cur[f.idx(c)]
}

// Deposit adds amount of kind at c, saturating at the field maximum, and
// returns the amount actually added. Only the apply phase may call this.
func (f *Field) Deposit(kind Kind, c world.Coord, amount float64) (float64, error) {
	k, ok := f.index[kind]
	if !ok {
		return 0, fmt.Errorf("deposit %q: %w", kind, ErrUnknownKind)
	}
	if !f.inBounds(c) {
		return 0, fmt.Errorf("deposit %q at %v: %w", kind, c, world.ErrOutOfBounds)
	}
	if amount <= 0 || math.IsNaN(amount) {
		return 0, nil
	}
	l := f.layers[k]
	i := f.idx(c)
	add := uint64(math.Round(amount * One))
	room := uint64(f.max - min(l.cur[i], f.max))
	if add > room {
		add = room
	}
	l.cur[i] += uint32(add)
	l.mass += add
	return float64(add) / One, nil
}

// DiffuseAndDecay advances every layer by dt ticks: edge diffusion, then
// multiplicative decay, then clamping to [0, Max]. Layers run concurrently.
func (f *Field) DiffuseAndDecay(dt float64) {
	if dt <= 0 {
		return
	}
	var wg sync.WaitGroup
	for _, l := range f.layers {
		if l.mass == 0 {
			continue
		}
		wg.Add(1)
		go func(l *layer) {
			defer wg.Done()
			f.step(l, dt)
		}(l)
	}
	wg.Wait()
}

// step runs one diffusion and decay pass on a layer.
func (f *Field) step(l *layer, dt float64) {
	d := min(l.spec.Diffusion*dt, 1)
	alpha := uint64(d / float64(f.conn) * One)
	decay := uint64(math.Pow(l.spec.Decay, dt) * One)
	if decay > One {
		decay = One
	}

	cur, next := l.cur, l.next
	copy(next, cur)

	if alpha > 0 {
		n := f.size
		for z := 0; z < n; z++ {
			for y := 0; y < n; y++ {
				row := (z*n + y) * n
				for x := 0; x < n; x++ {
					i := row + x
					a := cur[i]
					for _, o := range f.offsets {
						nx, ny, nz := x+o.X, y+o.Y, z+o.Z
						if nx < 0 || nx >= n || ny < 0 || ny >= n || nz >= n {
							continue
						}
						j := (nz*n+ny)*n + nx
						b := cur[j]
						switch {
						case a > b:
							flux := uint32(alpha * uint64(a-b) >> 16)
							next[i] -= flux
							next[j] += flux
						case b > a:
							flux := uint32(alpha * uint64(b-a) >> 16)
							next[j] -= flux
							next[i] += flux
						}
					}
				}
			}
		}
	}

	var mass uint64
	for i, v := range next {
		if decay < One {
			v = uint32(uint64(v) * decay >> 16)
		}
		if v > f.max {
			v = f.max
		}
		cur[i] = v
		mass += uint64(v)
	}
	l.mass = mass
}

// Mass returns the summed intensity of kind.
func (f *Field) Mass(kind Kind) float64 {
	k, ok := f.index[kind]
	if !ok {
		return 0
	}
	return float64(f.layers[k].mass) / One
}

// MassFixed returns the exact fixed-point sum of kind.
func (f *Field) MassFixed(kind Kind) uint64 {
	k, ok := f.index[kind]
	if !ok {
		return 0
	}
	return f.layers[k].mass
}

// TotalMass returns the summed intensity over all kinds.
func (f *Field) TotalMass() float64 {
	var sum uint64
	for _, l := range f.layers {
		sum += l.mass
	}
	return float64(sum) / One
}

// Values exposes the raw fixed-point cells of kind for read-only bulk
// access such as digests and dumps.
func (f *Field) Values(kind Kind) []uint32 {
	k, ok := f.index[kind]
	if !ok {
		return nil
	}
	return f.layers[k].cur
}

// Peak returns the coordinate and intensity of the strongest cell of kind.
func (f *Field) Peak(kind Kind) (world.Coord, float32) {
	vals := f.Values(kind)
	best, bi := uint32(0), -1
	for i, v := range vals {
		if v > best {
			best, bi = v, i
		}
	}
	if bi < 0 {
		return world.Coord{}, 0
	}
	n := f.size
	return world.Coord{X: bi % n, Y: (bi / n) % n, Z: bi / (n * n)}, float32(best) / One
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	out := &Field{
		size:    f.size,
		conn:    f.conn,
		max:     f.max,
		kinds:   append([]Kind(nil), f.kinds...),
		index:   make(map[Kind]int, len(f.index)),
		offsets: f.offsets,
	}
	for k, v := range f.index {
		out.index[k] = v
	}
	for _, l := range f.layers {
		nl := &layer{
			spec: l.spec,
			cur:  append([]uint32(nil), l.cur...),
			next: make([]uint32, len(l.next)),
			mass: l.mass,
		}
		out.layers = append(out.layers, nl)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
