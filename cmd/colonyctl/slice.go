package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/pthm-cable/acre/world"
)

var tileGlyphs = map[world.Tile]rune{
	world.Air:          ' ',
	world.Surface:      '.',
	world.Soil:         ':',
	world.Stone:        '#',
	world.Tunnel:       '_',
	world.Chamber:      'o',
	world.FungusGarden: '%',
	world.TreeTrunk:    'T',
	world.TreeCanopy:   '*',
}

var antColor = color.New(color.FgRed, color.Bold)

// printSlice draws one z-level. Cells holding ants show the ant count
// (9 for nine or more).
func printSlice(g *world.Grid, z int, ants map[world.Coord]int) {
	if z < 0 || z >= g.Size() {
		fmt.Printf("z=%d outside grid of size %d\n", z, g.Size())
		return
	}
	var line strings.Builder
	for y := 0; y < g.Size(); y++ {
		line.Reset()
		for x := 0; x < g.Size(); x++ {
			c := world.Coord{X: x, Y: y, Z: z}
			if n := ants[c]; n > 0 {
				fmt.Print(line.String())
				line.Reset()
				antColor.Print(string(rune('0' + min(n, 9))))
				continue
			}
			glyph, ok := tileGlyphs[g.TileAt(c)]
			if !ok {
				glyph = '?'
			}
			line.WriteRune(glyph)
		}
		fmt.Println(line.String())
	}
}
