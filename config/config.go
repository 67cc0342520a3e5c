// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// FixedOne is the fixed-point representation of 1.0 used by the pheromone field.
const FixedOne = 1 << 16

// Config holds all simulation configuration parameters.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Worldgen  WorldgenConfig  `yaml:"worldgen"`
	Pheromone PheromoneConfig `yaml:"pheromone"`
	Behavior  BehaviorConfig  `yaml:"behavior"`
	Needs     NeedsConfig     `yaml:"needs"`
	Castes    []CasteConfig   `yaml:"castes"`
	Colony    ColonyConfig    `yaml:"colony"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds voxel grid dimensions.
type WorldConfig struct {
	Size         int `yaml:"size"`          // Edge length of the cubic grid
	SurfaceLevel int `yaml:"surface_level"` // First z at or below ground; z grows downward
}

// WorldgenConfig holds reference world generator parameters.
type WorldgenConfig struct {
	NoiseScale     float64 `yaml:"noise_scale"`     // Opensimplex frequency for soil stability
	StoneThreshold float64 `yaml:"stone_threshold"` // Normalized noise above this becomes Stone
	StoneMinDepth  int     `yaml:"stone_min_depth"` // No stone within this many layers below the surface
	Trees          int     `yaml:"trees"`           // Number of trees on the surface
	TreeHeight     int     `yaml:"tree_height"`     // Trunk height above the surface
	TreeLeaves     int     `yaml:"tree_leaves"`     // Leaves per tree
	NestClearance  int     `yaml:"nest_clearance"`  // Trees are never placed closer than this to the nest
	GardenDepth    int     `yaml:"garden_depth"`    // Depth of the fungus garden below the nest entrance
}

// PheromoneKindConfig declares one pheromone layer.
type PheromoneKindConfig struct {
	Name      string  `yaml:"name"`
	Diffusion float64 `yaml:"diffusion"` // Fraction of the local gradient exchanged per tick, in [0,1]
	Decay     float64 `yaml:"decay"`     // Multiplicative factor applied per tick, in [0,1]
}

// PheromoneConfig holds pheromone field parameters.
type PheromoneConfig struct {
	Max            float64               `yaml:"max"`             // Upper intensity bound
	Connectivity   int                   `yaml:"connectivity"`    // 6 or 26
	NoiseThreshold float64               `yaml:"noise_threshold"` // Intensities at or below this are not sensed
	PlayerDeposit  float64               `yaml:"player_deposit"`  // Default amount for player-placed pheromone
	Kinds          []PheromoneKindConfig `yaml:"kinds"`
}

// BehaviorConfig holds decision policy parameters.
type BehaviorConfig struct {
	SenseRadius     int     `yaml:"sense_radius"`     // Half-width of the sensing box
	DistanceFalloff float64 `yaml:"distance_falloff"` // Score attenuation per cell of distance
	DigThreshold    float64 `yaml:"dig_threshold"`    // Minimum dig intensity to excavate
	AvoidThreshold  float64 `yaml:"avoid_threshold"`  // Danger intensity that blocks a neighbor
	TrailDeposit    float64 `yaml:"trail_deposit"`    // Reinforcement when following a trail
	HomeDeposit     float64 `yaml:"home_deposit"`     // Home trail laid while carrying
	ForageDeposit   float64 `yaml:"forage_deposit"`   // Laid at a cut site
	DigDeposit      float64 `yaml:"dig_deposit"`      // Laid on freshly dug cells
	DangerDeposit   float64 `yaml:"danger_deposit"`   // Laid where an ant dies from a hazard
	PlantEmission   float64 `yaml:"plant_emission"`   // Forage scent emitted by each plant per tick
	GardenEmission  float64 `yaml:"garden_emission"`  // Food scent emitted by a stocked garden per tick
	NestEmission    float64 `yaml:"nest_emission"`    // Home scent emitted at the nest entrance per tick
	NestRadius      int     `yaml:"nest_radius"`      // Chebyshev radius around the nest that counts as home
}

// NeedsConfig holds hunger parameters shared by all castes.
type NeedsConfig struct {
	HungerMax      float64 `yaml:"hunger_max"`      // Starvation at this value
	HungerCritical float64 `yaml:"hunger_critical"` // Seek food at or above this value
	HungerRate     float64 `yaml:"hunger_rate"`     // Base hunger per tick, scaled per caste
	FoodPerMeal    int     `yaml:"food_per_meal"`   // Garden food consumed by one Eat
	MealRelief     float64 `yaml:"meal_relief"`     // Hunger removed by one Eat
}

// CasteConfig defines one caste's capabilities and preferences.
type CasteConfig struct {
	Name         string             `yaml:"name"`
	HungerScale  float64            `yaml:"hunger_scale"` // Multiplier on needs.hunger_rate
	Lifespan     int                `yaml:"lifespan"`     // Ticks until death from old age (0 = unlimited)
	SpawnWeight  float64            `yaml:"spawn_weight"` // Relative odds when the queen lays an egg
	CanDig       bool               `yaml:"can_dig"`
	CanForage    bool               `yaml:"can_forage"`
	CanFight     bool               `yaml:"can_fight"`
	CanReproduce bool               `yaml:"can_reproduce"`
	CanGarden    bool               `yaml:"can_garden"`
	Weights      map[string]float64 `yaml:"weights"` // Pheromone kind -> preference (negative repels)
}

// InitialAntsConfig is a caste count in the founding colony.
type InitialAntsConfig struct {
	Caste string `yaml:"caste"`
	Count int    `yaml:"count"`
}

// ColonyConfig holds colony economy and reproduction parameters.
type ColonyConfig struct {
	Initial        []InitialAntsConfig `yaml:"initial"`
	InitialFood    int                 `yaml:"initial_food"`
	InitialDigSeed float64             `yaml:"initial_dig_seed"` // Dig pheromone placed below the nest at start
	MaxPopulation  int                 `yaml:"max_population"`
	EggInterval    int                 `yaml:"egg_interval"` // Ticks between egg attempts
	EggCost        int                 `yaml:"egg_cost"`     // Food consumed per egg
	MulchPerLeaf   int                 `yaml:"mulch_per_leaf"`
	FungusInterval int                 `yaml:"fungus_interval"` // Ticks between garden growth steps
	FoodPerFungus  int                 `yaml:"food_per_fungus"`
}

// ScheduleConfig holds tick scheduler parameters.
type ScheduleConfig struct {
	BaseTPS           float64 `yaml:"base_tps"`           // Ticks per second at speed 1
	Workers           int     `yaml:"workers"`            // Decide workers (0 = GOMAXPROCS)
	ParallelThreshold int     `yaml:"parallel_threshold"` // Below this many ants decide runs inline
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         int `yaml:"stats_window"`          // Ticks per stats window
	PerfCollectorWindow int `yaml:"perf_collector_window"` // Ticks averaged by the perf collector
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	KindIndex     map[string]int   // pheromone kind name -> layer index
	CasteIndex    map[string]uint8 // caste name -> index into Castes
	MaxFixed      uint32           // Pheromone.Max in fixed point
	NoiseFixed    uint32           // Pheromone.NoiseThreshold in fixed point
	TickInterval  float64          // Seconds per tick at speed 1
	Cells         int              // World.Size cubed
	NestDepthLast int              // Deepest z occupied by the garden
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks ranges that the simulation relies on.
func (c *Config) Validate() error {
	if c.World.Size < 4 {
		return fmt.Errorf("world.size must be at least 4, got %d", c.World.Size)
	}
	if c.World.SurfaceLevel < 1 || c.World.SurfaceLevel >= c.World.Size-1 {
		return fmt.Errorf("world.surface_level %d out of range for size %d", c.World.SurfaceLevel, c.World.Size)
	}
	if c.Pheromone.Connectivity != 6 && c.Pheromone.Connectivity != 26 {
		return fmt.Errorf("pheromone.connectivity must be 6 or 26, got %d", c.Pheromone.Connectivity)
	}
	if c.Pheromone.Max <= 0 || c.Pheromone.Max > 1024 {
		return fmt.Errorf("pheromone.max must be in (0, 1024], got %v", c.Pheromone.Max)
	}
	if len(c.Pheromone.Kinds) == 0 {
		return fmt.Errorf("pheromone.kinds must not be empty")
	}
	seen := make(map[string]bool, len(c.Pheromone.Kinds))
	for _, k := range c.Pheromone.Kinds {
		if k.Name == "" {
			return fmt.Errorf("pheromone kind with empty name")
		}
		if seen[k.Name] {
			return fmt.Errorf("duplicate pheromone kind %q", k.Name)
		}
		seen[k.Name] = true
		if k.Diffusion < 0 || k.Diffusion > 1 {
			return fmt.Errorf("pheromone kind %q: diffusion %v not in [0,1]", k.Name, k.Diffusion)
		}
		if k.Decay < 0 || k.Decay > 1 {
			return fmt.Errorf("pheromone kind %q: decay %v not in [0,1]", k.Name, k.Decay)
		}
	}
	if len(c.Castes) == 0 {
		return fmt.Errorf("castes must not be empty")
	}
	for _, ic := range c.Colony.Initial {
		found := false
		for _, cc := range c.Castes {
			if cc.Name == ic.Caste {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("colony.initial references unknown caste %q", ic.Caste)
		}
	}
	if c.Needs.HungerCritical > c.Needs.HungerMax {
		return fmt.Errorf("needs.hunger_critical %v exceeds hunger_max %v", c.Needs.HungerCritical, c.Needs.HungerMax)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.KindIndex = make(map[string]int, len(c.Pheromone.Kinds))
	for i, k := range c.Pheromone.Kinds {
		c.Derived.KindIndex[k.Name] = i
	}

	c.Derived.CasteIndex = make(map[string]uint8, len(c.Castes))
	for i, cc := range c.Castes {
		c.Derived.CasteIndex[cc.Name] = uint8(i)
	}

	c.Derived.MaxFixed = uint32(c.Pheromone.Max * FixedOne)
	c.Derived.NoiseFixed = uint32(c.Pheromone.NoiseThreshold * FixedOne)

	if c.Schedule.BaseTPS <= 0 {
		c.Schedule.BaseTPS = 10
	}
	c.Derived.TickInterval = 1.0 / c.Schedule.BaseTPS
	c.Derived.Cells = c.World.Size * c.World.Size * c.World.Size

	depth := c.World.SurfaceLevel + c.Worldgen.GardenDepth
	if depth >= c.World.Size {
		depth = c.World.Size - 1
	}
	c.Derived.NestDepthLast = depth
}

// Caste returns the caste config for an index, or nil if out of range.
func (c *Config) Caste(idx uint8) *CasteConfig {
	if int(idx) >= len(c.Castes) {
		return nil
	}
	return &c.Castes[idx]
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
