package worldgen

import (
	"errors"
	"testing"

	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/world"
)

func init() {
	config.MustInit("")
}

func TestGenerateLayout(t *testing.T) {
	cfg := config.Cfg()
	res, err := Generate(cfg, 42)
	if err != nil {
		t.Fatal(err)
	}
	g := res.Grid
	s := cfg.World.SurfaceLevel

	if g.Size() != cfg.World.Size {
		t.Fatalf("size = %d", g.Size())
	}
	if tile := g.TileAt(world.Coord{X: 0, Y: 0, Z: s - 1}); tile != world.Air {
		t.Errorf("above surface = %v, want air", tile)
	}
	if tile := g.TileAt(world.Coord{X: 0, Y: 0, Z: s}); tile != world.Surface {
		t.Errorf("surface = %v", tile)
	}
	if tile := g.TileAt(world.Coord{X: 5, Y: 5, Z: g.Size() - 1}); tile != world.Stone {
		t.Errorf("bedrock = %v", tile)
	}
	if tile := g.TileAt(res.Nest); tile != world.Chamber {
		t.Errorf("nest = %v, want chamber", tile)
	}
	if len(res.Garden) == 0 {
		t.Fatal("no garden cells")
	}
	for _, c := range res.Garden {
		if g.TileAt(c) != world.FungusGarden {
			t.Errorf("garden cell %v = %v", c, g.TileAt(c))
		}
	}

	// Nothing hard right under the surface
	for z := s + 1; z <= s+cfg.Worldgen.StoneMinDepth; z++ {
		if g.TileAt(world.Coord{X: 3, Y: 3, Z: z}) == world.Stone {
			t.Errorf("stone at shallow depth z=%d", z)
		}
	}
}

func TestGenerateTrees(t *testing.T) {
	cfg := config.Cfg()
	res, err := Generate(cfg, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Plants) == 0 {
		t.Fatal("no trees placed")
	}
	for _, p := range res.Plants {
		if res.Grid.TileAt(p.Pos) != world.TreeTrunk {
			t.Errorf("plant %v sits on %v", p.Pos, res.Grid.TileAt(p.Pos))
		}
		if p.Pos.Chebyshev(res.Nest) < cfg.Worldgen.NestClearance {
			t.Errorf("plant %v too close to nest", p.Pos)
		}
		if p.Leaves != int32(cfg.Worldgen.TreeLeaves) {
			t.Errorf("leaves = %d", p.Leaves)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := config.Cfg()
	a, err := Generate(cfg, 99)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(cfg, 99)
	if err != nil {
		t.Fatal(err)
	}
	ca, cb := a.Grid.Cells(), b.Grid.Cells()
	for i := range ca {
		if ca[i] != cb[i] {
			t.Fatalf("cell %d differs", i)
		}
	}
	if len(a.Plants) != len(b.Plants) {
		t.Fatalf("plants %d vs %d", len(a.Plants), len(b.Plants))
	}
}

func TestGenerateNestOutOfBounds(t *testing.T) {
	cfg := *config.Cfg()
	cfg.Behavior.NestRadius = cfg.World.Size

	_, err := Generate(&cfg, 1)
	if !errors.Is(err, world.ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
}
