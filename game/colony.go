package game

import (
	"cmp"
	"slices"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/systems"
	"github.com/pthm-cable/acre/world"
)

// colony exposes the game's ECS state to the mutation log.
type colony struct {
	g *Game
}

func (c colony) AntPos(id uint32) (world.Coord, bool) {
	e, ok := c.g.ants[id]
	if !ok {
		return world.Coord{}, false
	}
	return c.g.posMap.Get(e).Coord, true
}

func (c colony) SetAntPos(id uint32, at world.Coord) {
	if e, ok := c.g.ants[id]; ok {
		c.g.posMap.Get(e).Coord = at
	}
}

func (c colony) AntCargo(id uint32) components.Cargo {
	if e, ok := c.g.ants[id]; ok {
		return *c.g.cargoMap.Get(e)
	}
	return components.Cargo{}
}

func (c colony) SetAntCargo(id uint32, cargo components.Cargo) {
	if e, ok := c.g.ants[id]; ok {
		*c.g.cargoMap.Get(e) = cargo
	}
}

func (c colony) Feed(id uint32, relief float32) {
	if e, ok := c.g.ants[id]; ok {
		needs := c.g.needsMap.Get(e)
		needs.Hunger = max(needs.Hunger-relief, 0)
	}
}

func (c colony) TakeFromPlant(plant world.EntityID, n int32) (taken, remaining int32) {
	e, ok := c.g.plants[plant]
	if !ok {
		return 0, 0
	}
	res := c.g.resMap.Get(e)
	taken = min(n, res.Quantity)
	if taken < 0 {
		taken = 0
	}
	res.Quantity -= taken
	return taken, res.Quantity
}

func (c colony) GardenStock(kind components.ResourceKind) int32 {
	if int(kind) >= len(c.g.garden) {
		return 0
	}
	return c.g.garden[kind]
}

func (c colony) AddGardenStock(kind components.ResourceKind, n int32) {
	if int(kind) >= len(c.g.garden) {
		return
	}
	c.g.garden[kind] = max(c.g.garden[kind]+n, 0)
}

func (c colony) IsNest(at world.Coord) bool {
	return c.g.isNest(at)
}

func (g *Game) isNest(at world.Coord) bool {
	return at.Chebyshev(g.nest) <= g.cfg.Behavior.NestRadius
}

// colonyView builds the read-only colony state shared by decide workers.
func (g *Game) colonyView() *systems.ColonyView {
	plants := make([]systems.PlantView, 0, len(g.plants))
	query := g.plantFilter.Query()
	for query.Next() {
		pos, res := query.Get()
		plants = append(plants, systems.PlantView{
			ID:     world.EntityID(res.ID),
			Pos:    pos.Coord,
			Leaves: res.Quantity,
		})
	}
	slices.SortFunc(plants, func(a, b systems.PlantView) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return systems.NewColonyView(g.nest, g.cfg.Behavior.NestRadius, g.garden, plants)
}
