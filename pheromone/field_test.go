package pheromone

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/world"
)

func testField(conn int, diffusion, decay float64) *Field {
	return New(Options{
		Size:         16,
		Connectivity: conn,
		Max:          1.0,
		Kinds: []KindSpec{
			{Kind: Food, Diffusion: diffusion, Decay: decay},
			{Kind: Dig, Diffusion: diffusion, Decay: decay},
		},
	})
}

// scatter deposits random amounts, including saturating ones and cells on
// the boundary.
func scatter(t *testing.T, f *Field, seed uint64, n int) {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 0))
	for i := 0; i < n; i++ {
		c := world.Coord{X: rng.IntN(f.Size()), Y: rng.IntN(f.Size()), Z: rng.IntN(f.Size())}
		for _, k := range f.Kinds() {
			if _, err := f.Deposit(k, c, rng.Float64()*1.5); err != nil {
				t.Fatal(err)
			}
		}
	}
	corner := world.Coord{}
	if _, err := f.Deposit(Food, corner, 1); err != nil {
		t.Fatal(err)
	}
}

func TestIntensityBounded(t *testing.T) {
	tests := []struct {
		name      string
		conn      int
		diffusion float64
		decay     float64
	}{
		{"6-conn full diffusion", 6, 1.0, 1.0},
		{"26-conn full diffusion", 26, 1.0, 1.0},
		{"6-conn decaying", 6, 0.3, 0.9},
		{"26-conn decaying", 26, 0.5, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testField(tt.conn, tt.diffusion, tt.decay)
			scatter(t, f, 7, 200)
			maxV := f.MaxFixed()
			for step := 0; step < 50; step++ {
				f.DiffuseAndDecay(1)
				for _, k := range f.Kinds() {
					for i, v := range f.Values(k) {
						if v > maxV {
							t.Fatalf("step %d: %s cell %d = %d exceeds max %d", step, k, i, v, maxV)
						}
					}
				}
			}
		})
	}
}

func TestMassNonIncreasing(t *testing.T) {
	for _, conn := range []int{6, 26} {
		f := testField(conn, 0.4, 0.98)
		scatter(t, f, 11, 300)
		prev := f.MassFixed(Food)
		for step := 0; step < 40; step++ {
			f.DiffuseAndDecay(1)
			m := f.MassFixed(Food)
			if m > prev {
				t.Fatalf("conn %d step %d: mass grew from %d to %d", conn, step, prev, m)
			}
			prev = m
		}
	}
}

func TestDiffusionConservesWithoutDecay(t *testing.T) {
	f := testField(26, 0.8, 1.0)
	scatter(t, f, 3, 100)
	before := f.MassFixed(Dig)
	for i := 0; i < 20; i++ {
		f.DiffuseAndDecay(1)
	}
	if got := f.MassFixed(Dig); got != before {
		t.Errorf("mass changed from %d to %d with decay 1.0", before, got)
	}
}

func TestNoOpBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		diffusion float64
		decay     float64
	}{
		{"zero diffusion, unit decay", 0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testField(6, tt.diffusion, tt.decay)
			scatter(t, f, 5, 150)
			before := append([]uint32(nil), f.Values(Food)...)
			f.DiffuseAndDecay(1)
			after := f.Values(Food)
			for i := range before {
				if before[i] != after[i] {
					t.Fatalf("cell %d changed from %d to %d", i, before[i], after[i])
				}
			}
		})
	}
}

func TestZeroDiffusionOnlyDecays(t *testing.T) {
	f := testField(6, 0, 0.5)
	c := world.Coord{X: 4, Y: 4, Z: 4}
	if _, err := f.Deposit(Food, c, 1); err != nil {
		t.Fatal(err)
	}
	f.DiffuseAndDecay(1)
	if got := f.Sample(Food, c); got != 0.5 {
		t.Errorf("Sample = %v, want 0.5", got)
	}
	if got := f.Sample(Food, c.Add(world.Coord{X: 1})); got != 0 {
		t.Errorf("neighbor = %v, want 0", got)
	}
}

func TestUnitDecayOnlyDiffuses(t *testing.T) {
	f := testField(6, 0.6, 1.0)
	c := world.Coord{X: 8, Y: 8, Z: 8}
	if _, err := f.Deposit(Food, c, 1); err != nil {
		t.Fatal(err)
	}
	f.DiffuseAndDecay(1)

	center := f.Sample(Food, c)
	side := f.Sample(Food, c.Add(world.Coord{Z: 1}))
	if center >= 1 || side <= 0 {
		t.Errorf("center %v side %v, expected spreading", center, side)
	}
	if diag := f.Sample(Food, c.Add(world.Coord{X: 1, Y: 1})); diag != 0 {
		t.Errorf("6-conn diagonal received %v", diag)
	}
	if got := f.MassFixed(Food); got != One {
		t.Errorf("mass = %d, want %d", got, One)
	}
}

func TestClosedBoundary(t *testing.T) {
	f := testField(26, 1.0, 1.0)
	corner := world.Coord{X: 15, Y: 15, Z: 15}
	if _, err := f.Deposit(Dig, corner, 1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		f.DiffuseAndDecay(1)
	}
	if got := f.MassFixed(Dig); got != One {
		t.Errorf("mass leaked through boundary: %d, want %d", got, One)
	}
}

func TestDepositSaturatesAndErrors(t *testing.T) {
	f := testField(6, 0.1, 0.9)
	c := world.Coord{X: 1, Y: 1, Z: 1}

	added, err := f.Deposit(Food, c, 0.75)
	if err != nil || added != 0.75 {
		t.Fatalf("first deposit = %v, %v", added, err)
	}
	added, err = f.Deposit(Food, c, 0.75)
	if err != nil || added != 0.25 {
		t.Fatalf("saturating deposit = %v, %v", added, err)
	}
	if got := f.Sample(Food, c); got != 1 {
		t.Errorf("Sample = %v, want 1", got)
	}

	if _, err := f.Deposit("smoke", c, 1); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind error = %v", err)
	}
	if _, err := f.Deposit(Food, world.Coord{X: -1}, 1); !errors.Is(err, world.ErrOutOfBounds) {
		t.Errorf("out of bounds error = %v", err)
	}
	if got := f.Sample(Food, world.Coord{X: 99}); got != 0 {
		t.Errorf("out of bounds sample = %v", got)
	}
}

func TestDeterministicAcrossRuns(t *testing.T) {
	run := func() []uint32 {
		f := testField(26, 0.35, 0.97)
		scatter(t, f, 99, 120)
		for i := 0; i < 15; i++ {
			f.DiffuseAndDecay(1)
		}
		out := append([]uint32(nil), f.Values(Food)...)
		return append(out, f.Values(Dig)...)
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cell %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	f := NewFromConfig(cfg)
	if len(f.Kinds()) != len(cfg.Pheromone.Kinds) {
		t.Errorf("kinds = %v", f.Kinds())
	}
	if f.Size() != cfg.World.Size {
		t.Errorf("size = %d", f.Size())
	}
	if math.Abs(float64(f.Max())-cfg.Pheromone.Max) > 1e-6 {
		t.Errorf("max = %v", f.Max())
	}
}

func TestPeak(t *testing.T) {
	f := testField(6, 0, 1)
	want := world.Coord{X: 3, Y: 5, Z: 7}
	f.Deposit(Dig, world.Coord{X: 1}, 0.2)
	f.Deposit(Dig, want, 0.9)
	got, v := f.Peak(Dig)
	if got != want {
		t.Errorf("Peak = %v, want %v", got, want)
	}
	if math.Abs(float64(v)-0.9) > 1e-4 {
		t.Errorf("peak intensity = %v", v)
	}
}
