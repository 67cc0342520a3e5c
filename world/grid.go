// Package world holds the voxel grid the colony lives in.
package world

import (
	"errors"
	"fmt"
	"iter"
)

// ErrOutOfBounds is returned when a coordinate falls outside the grid.
var ErrOutOfBounds = errors.New("coordinate out of bounds")

// Tile is the terrain type of a cell.
type Tile uint8

const (
	Air Tile = iota
	Surface
	Soil
	Stone
	Tunnel
	Chamber
	FungusGarden
	TreeTrunk
	TreeCanopy
)

var tileNames = [...]string{
	Air:          "air",
	Surface:      "surface",
	Soil:         "soil",
	Stone:        "stone",
	Tunnel:       "tunnel",
	Chamber:      "chamber",
	FungusGarden: "fungus_garden",
	TreeTrunk:    "tree_trunk",
	TreeCanopy:   "tree_canopy",
}

func (t Tile) String() string {
	if int(t) < len(tileNames) {
		return tileNames[t]
	}
	return fmt.Sprintf("tile(%d)", t)
}

// ParseTile returns the tile named s.
func ParseTile(s string) (Tile, error) {
	for i, name := range tileNames {
		if name == s {
			return Tile(i), nil
		}
	}
	return Air, fmt.Errorf("unknown tile %q", s)
}

// Passable reports whether an ant can stand in a cell of this tile.
func (t Tile) Passable() bool {
	switch t {
	case Surface, Tunnel, Chamber, FungusGarden:
		return true
	}
	return false
}

// Diggable reports whether the tile can be excavated into a tunnel.
func (t Tile) Diggable() bool {
	return t == Soil
}

// EntityID references a static entity occupying a cell. Zero means empty.
type EntityID uint32

// Cell is a single voxel.
type Cell struct {
	Tile      Tile
	Occupant  EntityID
	Dug       bool  // excavated by ants
	Stability uint8 // 0 = loose, 255 = bedrock
}

// Coord is a grid coordinate. Z grows downward.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Add returns c offset by d.
func (c Coord) Add(d Coord) Coord {
	return Coord{c.X + d.X, c.Y + d.Y, c.Z + d.Z}
}

// Less orders coordinates lexicographically by (Z, Y, X).
func (c Coord) Less(o Coord) bool {
	if c.Z != o.Z {
		return c.Z < o.Z
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.X < o.X
}

// Chebyshev returns the king-move distance between c and o.
func (c Coord) Chebyshev(o Coord) int {
	return max(abs(c.X-o.X), abs(c.Y-o.Y), abs(c.Z-o.Z))
}

// DistSq returns the squared euclidean distance between c and o.
func (c Coord) DistSq(o Coord) int {
	dx, dy, dz := c.X-o.X, c.Y-o.Y, c.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Grid is a cubic voxel grid indexed as (z*size + y)*size + x.
type Grid struct {
	size    int
	surface int
	cells   []Cell
}

// NewGrid creates a grid of the given edge length filled with Air.
// surface is the first z at or below ground.
func NewGrid(size, surface int) *Grid {
	return &Grid{
		size:    size,
		surface: surface,
		cells:   make([]Cell, size*size*size),
	}
}

// Size returns the edge length.
func (g *Grid) Size() int { return g.size }

// SurfaceLevel returns the walkable ground layer.
func (g *Grid) SurfaceLevel() int { return g.surface }

// InBounds reports whether c lies inside the grid.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.size &&
		c.Y >= 0 && c.Y < g.size &&
		c.Z >= 0 && c.Z < g.size
}

// Index returns the flat index of c. The caller must check bounds.
func (g *Grid) Index(c Coord) int {
	return (c.Z*g.size+c.Y)*g.size + c.X
}

// CellAt returns the cell at c.
func (g *Grid) CellAt(c Coord) (Cell, error) {
	if !g.InBounds(c) {
		return Cell{}, fmt.Errorf("cell at %v: %w", c, ErrOutOfBounds)
	}
	return g.cells[g.Index(c)], nil
}

// MustCellAt returns the cell at c and panics if c is out of bounds.
func (g *Grid) MustCellAt(c Coord) Cell {
	cell, err := g.CellAt(c)
	if err != nil {
		panic(err)
	}
	return cell
}

// TileAt returns the tile at c, or Stone when c is outside the grid.
func (g *Grid) TileAt(c Coord) Tile {
	if !g.InBounds(c) {
		return Stone
	}
	return g.cells[g.Index(c)].Tile
}

// Passable reports whether c is in bounds and can be stood on.
func (g *Grid) Passable(c Coord) bool {
	return g.InBounds(c) && g.cells[g.Index(c)].Tile.Passable()
}

// SetCell replaces the cell at c. Only the apply phase may call this.
func (g *Grid) SetCell(c Coord, cell Cell) error {
	if !g.InBounds(c) {
		return fmt.Errorf("set cell at %v: %w", c, ErrOutOfBounds)
	}
	g.cells[g.Index(c)] = cell
	return nil
}

// Neighbors yields every in-bounds coordinate within Chebyshev distance
// radius of c, excluding c, in (Z, Y, X) lexicographic order.
// The sequence is lazy and may be ranged over any number of times.
func (g *Grid) Neighbors(c Coord, radius int) iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		if radius <= 0 {
			return
		}
		z0, z1 := max(c.Z-radius, 0), min(c.Z+radius, g.size-1)
		y0, y1 := max(c.Y-radius, 0), min(c.Y+radius, g.size-1)
		x0, x1 := max(c.X-radius, 0), min(c.X+radius, g.size-1)
		for z := z0; z <= z1; z++ {
			for y := y0; y <= y1; y++ {
				for x := x0; x <= x1; x++ {
					n := Coord{x, y, z}
					if n == c {
						continue
					}
					if !yield(n) {
						return
					}
				}
			}
		}
	}
}

// Adjacent yields the 26-neighborhood of c.
func (g *Grid) Adjacent(c Coord) iter.Seq[Coord] {
	return g.Neighbors(c, 1)
}

// Cells exposes the backing slice for read-only bulk access such as digests.
func (g *Grid) Cells() []Cell {
	return g.cells
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{size: g.size, surface: g.surface, cells: make([]Cell, len(g.cells))}
	copy(out.cells, g.cells)
	return out
}

// CountTiles returns how many cells hold each tile.
func (g *Grid) CountTiles() map[Tile]int {
	counts := make(map[Tile]int)
	for i := range g.cells {
		counts[g.cells[i].Tile]++
	}
	return counts
}
