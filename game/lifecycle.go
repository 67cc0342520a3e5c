package game

import (
	"cmp"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/world"
)

// updateLifecycle ages ants, removes the dead, grows the garden, lets the
// queen lay and clears exhausted plants.
func (g *Game) updateLifecycle() {
	g.updateNeeds()
	if n := g.cfg.Colony.FungusInterval; n > 0 && (g.tick+1)%int32(n) == 0 {
		g.growGarden()
	}
	if n := g.cfg.Colony.EggInterval; n > 0 && (g.tick+1)%int32(n) == 0 {
		g.layEggs()
	}
	g.removeDepletedPlants()
}

// updateNeeds advances hunger and age and removes ants that died this tick.
func (g *Game) updateNeeds() {
	hungerMax := float32(g.cfg.Needs.HungerMax)

	// First pass: collect dead ants (must complete before removing)
	type deadInfo struct {
		id    uint32
		cause components.DeathCause
	}
	var toRemove []deadInfo

	query := g.antFilter.Query()
	for query.Next() {
		pos, ant, needs, _, _ := query.Get()

		var traits components.CasteTraits
		if int(ant.Caste) < len(g.traits) {
			traits = g.traits[ant.Caste]
		}
		needs.Hunger += traits.HungerRate
		needs.Age++

		switch {
		case needs.Hunger >= hungerMax:
			toRemove = append(toRemove, deadInfo{ant.ID, components.DeathStarvation})
		case traits.Lifespan > 0 && needs.Age >= traits.Lifespan:
			toRemove = append(toRemove, deadInfo{ant.ID, components.DeathOldAge})
		case !g.grid.Passable(pos.Coord):
			toRemove = append(toRemove, deadInfo{ant.ID, components.DeathHazard})
		}
	}

	// Second pass: remove in ID order
	slices.SortFunc(toRemove, func(a, b deadInfo) int { return cmp.Compare(a.id, b.id) })
	for _, d := range toRemove {
		g.removeAnt(d.id, d.cause)
	}
}

// growGarden advances the garden one step: fungus fruits into food, then
// mulch is colonised by fungus. Mulch laid this step fruits next step.
func (g *Game) growGarden() {
	c := colony{g}
	if fungus := c.GardenStock(components.ResourceFungus); fungus > 0 {
		c.AddGardenStock(components.ResourceFungus, -fungus)
		c.AddGardenStock(components.ResourceFood, fungus*int32(max(g.cfg.Colony.FoodPerFungus, 1)))
	}
	if mulch := c.GardenStock(components.ResourceMulch); mulch > 0 {
		c.AddGardenStock(components.ResourceMulch, -mulch)
		c.AddGardenStock(components.ResourceFungus, mulch)
	}
}

// layEggs lets every queen lay one egg if the colony can afford it. The
// caste is drawn from configured spawn weights.
func (g *Game) layEggs() {
	cost := int32(g.cfg.Colony.EggCost)

	var queens []uint32
	query := g.antFilter.Query()
	for query.Next() {
		_, ant, _, _, _ := query.Get()
		if int(ant.Caste) < len(g.traits) && g.traits[ant.Caste].Caps.Has(components.CanReproduce) {
			queens = append(queens, ant.ID)
		}
	}
	slices.Sort(queens)

	for _, id := range queens {
		if len(g.ants) >= g.cfg.Colony.MaxPopulation {
			return
		}
		if g.garden[components.ResourceFood] < cost {
			return
		}
		caste, ok := g.drawCaste()
		if !ok {
			return
		}
		g.garden[components.ResourceFood] -= cost
		at := g.posMap.Get(g.ants[id]).Coord
		g.spawnAnt(caste, at)
	}
}

// drawCaste picks a caste index with probability proportional to its spawn
// weight.
func (g *Game) drawCaste() (uint8, bool) {
	var total float64
	for _, t := range g.traits {
		if t.SpawnWeight > 0 {
			total += t.SpawnWeight
		}
	}
	if total <= 0 {
		return 0, false
	}
	r := g.rng.Float64() * total
	last := -1
	for i, t := range g.traits {
		if t.SpawnWeight <= 0 {
			continue
		}
		last = i
		r -= t.SpawnWeight
		if r < 0 {
			return uint8(i), true
		}
	}
	return uint8(last), last >= 0
}

// removeDepletedPlants deletes plant entities with no leaves left or whose
// trunk cell no longer refers to them. The grid is left alone: the apply
// phase already cleared the occupant when the last leaf was cut.
func (g *Game) removeDepletedPlants() {
	var toRemove []world.EntityID
	query := g.plantFilter.Query()
	for query.Next() {
		pos, res := query.Get()
		id := world.EntityID(res.ID)
		cell, err := g.grid.CellAt(pos.Coord)
		if res.Quantity <= 0 || err != nil || cell.Occupant != id {
			toRemove = append(toRemove, id)
		}
	}

	slices.Sort(toRemove)
	for _, id := range toRemove {
		g.removeEntity(g.plants[id])
		delete(g.plants, id)
	}
}

func (g *Game) removeEntity(e ecs.Entity) {
	if g.world.Alive(e) {
		g.world.RemoveEntity(e)
	}
}
