// Package worldgen builds the initial world: layered terrain with stone
// pockets, a nest with its fungus garden, and trees on the surface.
package worldgen

import (
	"fmt"
	"math/rand/v2"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/world"
)

// Plant is a tree placed on the surface.
type Plant struct {
	Pos    world.Coord // trunk cell on the surface layer
	Leaves int32
}

// Result is a generated world.
type Result struct {
	Grid   *world.Grid
	Nest   world.Coord
	Garden []world.Coord // fungus garden cells below the nest
	Plants []Plant
}

// Generate builds a world from cfg. The same seed always yields the same world.
func Generate(cfg *config.Config, seed int64) (*Result, error) {
	size := cfg.World.Size
	surface := cfg.World.SurfaceLevel
	wg := cfg.Worldgen
	if wg.TreeHeight+2 > surface {
		return nil, fmt.Errorf("worldgen: tree height %d does not fit above surface %d", wg.TreeHeight, surface)
	}

	g := world.NewGrid(size, surface)
	noise := opensimplex.NewNormalized(seed)
	scale := wg.NoiseScale
	if scale <= 0 {
		scale = 0.08
	}

	cells := g.Cells()
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				c := world.Coord{X: x, Y: y, Z: z}
				i := g.Index(c)
				switch {
				case z < surface:
					cells[i] = world.Cell{Tile: world.Air}
				case z == surface:
					cells[i] = world.Cell{Tile: world.Surface, Stability: 255}
				case z == size-1:
					cells[i] = world.Cell{Tile: world.Stone, Stability: 255}
				default:
					n := noise.Eval3(float64(x)*scale, float64(y)*scale, float64(z)*scale)
					if z-surface > wg.StoneMinDepth && n > wg.StoneThreshold {
						cells[i] = world.Cell{Tile: world.Stone, Stability: 255}
					} else {
						cells[i] = world.Cell{Tile: world.Soil, Stability: uint8(n * 255)}
					}
				}
			}
		}
	}

	res := &Result{
		Grid: g,
		Nest: world.Coord{X: size / 2, Y: size / 2, Z: surface},
	}
	if err := carveNest(cfg, res); err != nil {
		return nil, fmt.Errorf("worldgen: nest: %w", err)
	}
	if err := placeTrees(cfg, res, noise, seed); err != nil {
		return nil, fmt.Errorf("worldgen: trees: %w", err)
	}
	return res, nil
}

// carveNest opens a chamber at the nest entrance and the garden below it.
func carveNest(cfg *config.Config, res *Result) error {
	r := max(cfg.Behavior.NestRadius, 0)
	g := res.Grid
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c := res.Nest.Add(world.Coord{X: dx, Y: dy})
			if err := g.SetCell(c, world.Cell{Tile: world.Chamber, Dug: true}); err != nil {
				return err
			}
			for z := res.Nest.Z + 1; z <= cfg.Derived.NestDepthLast && z < g.Size()-1; z++ {
				gc := world.Coord{X: c.X, Y: c.Y, Z: z}
				if err := g.SetCell(gc, world.Cell{Tile: world.FungusGarden, Dug: true}); err != nil {
					return err
				}
				res.Garden = append(res.Garden, gc)
			}
		}
	}
	return nil
}

// placeTrees scatters trees on the surface away from the nest, preferring
// spots where the surface noise is high.
func placeTrees(cfg *config.Config, res *Result, noise opensimplex.Noise, seed int64) error {
	wg := cfg.Worldgen
	g := res.Grid
	size := g.Size()
	surface := g.SurfaceLevel()
	rng := rand.New(rand.NewPCG(uint64(seed), 0x7265657321))

	attempts := wg.Trees * 50
	for a := 0; a < attempts && len(res.Plants) < wg.Trees; a++ {
		x := 2 + rng.IntN(size-4)
		y := 2 + rng.IntN(size-4)
		trunk := world.Coord{X: x, Y: y, Z: surface}

		if trunk.Chebyshev(res.Nest) < wg.NestClearance {
			continue
		}
		if noise.Eval2(float64(x)*0.15, float64(y)*0.15) < 0.35 {
			continue
		}
		crowded := false
		for _, p := range res.Plants {
			if p.Pos.Chebyshev(trunk) < 3 {
				crowded = true
				break
			}
		}
		if crowded {
			continue
		}

		for h := 0; h <= wg.TreeHeight; h++ {
			if err := g.SetCell(world.Coord{X: x, Y: y, Z: surface - h}, world.Cell{Tile: world.TreeTrunk, Stability: 255}); err != nil {
				return err
			}
		}
		top := surface - wg.TreeHeight - 1
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if err := g.SetCell(world.Coord{X: x + dx, Y: y + dy, Z: top}, world.Cell{Tile: world.TreeCanopy}); err != nil {
					return err
				}
			}
		}
		res.Plants = append(res.Plants, Plant{Pos: trunk, Leaves: int32(wg.TreeLeaves)})
	}
	return nil
}
