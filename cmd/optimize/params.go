// Package main provides CMA-ES optimization for colony economy parameters.
package main

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/acre/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Needs
			{Name: "hunger_rate", Path: "needs.hunger_rate", Min: 0.05, Max: 0.4, Default: 0.15},
			{Name: "meal_relief", Path: "needs.meal_relief", Min: 20, Max: 100, Default: 60},
			// Colony economy
			{Name: "egg_interval", Path: "colony.egg_interval", Min: 50, Max: 1000, Default: 300},
			{Name: "egg_cost", Path: "colony.egg_cost", Min: 1, Max: 20, Default: 5},
			{Name: "fungus_interval", Path: "colony.fungus_interval", Min: 10, Max: 200, Default: 50},
			{Name: "food_per_fungus", Path: "colony.food_per_fungus", Min: 1, Max: 6, Default: 2},
			// Behavior deposits and emissions
			{Name: "home_deposit", Path: "behavior.home_deposit", Min: 0.01, Max: 0.2, Default: 0.05},
			{Name: "forage_deposit", Path: "behavior.forage_deposit", Min: 0.05, Max: 0.8, Default: 0.3},
			{Name: "plant_emission", Path: "behavior.plant_emission", Min: 0.01, Max: 0.2, Default: 0.05},
			{Name: "nest_emission", Path: "behavior.nest_emission", Min: 0.02, Max: 0.4, Default: 0.1},
			{Name: "garden_emission", Path: "behavior.garden_emission", Min: 0.05, Max: 0.6, Default: 0.2},
			// Pheromone decay (dig and danger locked)
			{Name: "forage_decay", Path: "pheromone.kinds.forage.decay", Min: 0.9, Max: 0.999, Default: 0.99},
			{Name: "home_decay", Path: "pheromone.kinds.home.decay", Min: 0.9, Max: 0.999, Default: 0.995},
			{Name: "food_decay", Path: "pheromone.kinds.food.decay", Min: 0.85, Max: 0.999, Default: 0.97},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// PopulationSize returns the CMA-ES population for this vector: override if
// positive, else 4 + floor(3 ln n).
func (pv *ParamVector) PopulationSize(override int) int {
	if override > 0 {
		return override
	}
	return 4 + int(math.Floor(3*math.Log(float64(pv.Dim()))))
}

// Problem wraps evaluate, which takes clamped raw parameter values, as an
// optimization problem over the normalized [0,1] search space.
func (pv *ParamVector) Problem(evaluate func(raw []float64) float64) optimize.Problem {
	return optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluate(pv.Clamp(pv.Denormalize(x)))
		},
	}
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	i := 0
	next := func() float64 {
		v := clamped[i]
		i++
		return v
	}

	cfg.Needs.HungerRate = next()
	cfg.Needs.MealRelief = next()

	cfg.Colony.EggInterval = int(next())
	cfg.Colony.EggCost = int(next())
	cfg.Colony.FungusInterval = int(next())
	cfg.Colony.FoodPerFungus = int(next())

	cfg.Behavior.HomeDeposit = next()
	cfg.Behavior.ForageDeposit = next()
	cfg.Behavior.PlantEmission = next()
	cfg.Behavior.NestEmission = next()
	cfg.Behavior.GardenEmission = next()

	setDecay(cfg, "forage", next())
	setDecay(cfg, "home", next())
	setDecay(cfg, "food", next())
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Needs.HungerRate,
		cfg.Needs.MealRelief,
		float64(cfg.Colony.EggInterval),
		float64(cfg.Colony.EggCost),
		float64(cfg.Colony.FungusInterval),
		float64(cfg.Colony.FoodPerFungus),
		cfg.Behavior.HomeDeposit,
		cfg.Behavior.ForageDeposit,
		cfg.Behavior.PlantEmission,
		cfg.Behavior.NestEmission,
		cfg.Behavior.GardenEmission,
		decayOf(cfg, "forage"),
		decayOf(cfg, "home"),
		decayOf(cfg, "food"),
	}
}

func setDecay(cfg *config.Config, kind string, decay float64) {
	for i := range cfg.Pheromone.Kinds {
		if cfg.Pheromone.Kinds[i].Name == kind {
			cfg.Pheromone.Kinds[i].Decay = decay
			return
		}
	}
}

func decayOf(cfg *config.Config, kind string) float64 {
	for _, k := range cfg.Pheromone.Kinds {
		if k.Name == kind {
			return k.Decay
		}
	}
	return 0
}
