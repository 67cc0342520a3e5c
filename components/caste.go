package components

import (
	"github.com/pthm-cable/acre/config"
)

// Capability is a caste capability flag.
type Capability uint8

const (
	CanDig Capability = 1 << iota
	CanForage
	CanFight
	CanReproduce
	CanGarden
)

// Has reports whether all flags in f are set.
func (c Capability) Has(f Capability) bool {
	return c&f == f
}

// CasteTraits is the resolved, hot-path form of a caste config.
type CasteTraits struct {
	Name        string
	Caps        Capability
	HungerRate  float32 // per tick
	Lifespan    int32   // 0 = unlimited
	SpawnWeight float64
	Weights     []float32 // indexed by pheromone layer
}

// BuildCasteTraits resolves every configured caste against the pheromone
// layer order. Weights for unknown kinds are ignored.
func BuildCasteTraits(cfg *config.Config) []CasteTraits {
	out := make([]CasteTraits, len(cfg.Castes))
	for i, cc := range cfg.Castes {
		t := CasteTraits{
			Name:        cc.Name,
			HungerRate:  float32(cfg.Needs.HungerRate * cc.HungerScale),
			Lifespan:    int32(cc.Lifespan),
			SpawnWeight: cc.SpawnWeight,
			Weights:     make([]float32, len(cfg.Pheromone.Kinds)),
		}
		if cc.CanDig {
			t.Caps |= CanDig
		}
		if cc.CanForage {
			t.Caps |= CanForage
		}
		if cc.CanFight {
			t.Caps |= CanFight
		}
		if cc.CanReproduce {
			t.Caps |= CanReproduce
		}
		if cc.CanGarden {
			t.Caps |= CanGarden
		}
		for name, w := range cc.Weights {
			if k, ok := cfg.Derived.KindIndex[name]; ok {
				t.Weights[k] = float32(w)
			}
		}
		out[i] = t
	}
	return out
}
