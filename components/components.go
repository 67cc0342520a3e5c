// Package components defines ECS components for the simulation.
package components

import (
	"fmt"

	"github.com/pthm-cable/acre/world"
)

// Position is an entity's grid cell.
type Position struct {
	world.Coord
}

// Ant holds identity and caste.
type Ant struct {
	ID    uint32
	Caste uint8 // index into config castes
}

// Needs tracks an ant's internal state.
type Needs struct {
	Hunger float32 // 0 = sated, starvation at the configured max
	Age    int32   // ticks alive
}

// ResourceKind is the type of a resource entity or carried load.
type ResourceKind uint8

const (
	ResourceNone ResourceKind = iota
	ResourcePlant
	ResourceLeaf
	ResourceMulch
	ResourceFungus
	ResourceFood
)

var resourceNames = [...]string{
	ResourceNone:   "none",
	ResourcePlant:  "plant",
	ResourceLeaf:   "leaf",
	ResourceMulch:  "mulch",
	ResourceFungus: "fungus",
	ResourceFood:   "food",
}

func (k ResourceKind) String() string {
	if int(k) < len(resourceNames) {
		return resourceNames[k]
	}
	return fmt.Sprintf("resource(%d)", k)
}

// Cargo is the load an ant carries. Quantity 0 means empty hands.
type Cargo struct {
	Kind     ResourceKind `json:"kind"`
	Quantity int32        `json:"quantity"`
}

// Empty reports whether nothing is carried.
func (c Cargo) Empty() bool {
	return c.Kind == ResourceNone || c.Quantity <= 0
}

// TaskState is the ant's current goal.
type TaskState uint8

const (
	TaskIdle TaskState = iota
	TaskWandering
	TaskFollowing
	TaskDigging
	TaskForaging
	TaskCarryingHome
	TaskGardening
	TaskSeekingFood
	TaskEating
	TaskGuarding
)

var taskNames = [...]string{
	TaskIdle:         "idle",
	TaskWandering:    "wandering",
	TaskFollowing:    "following",
	TaskDigging:      "digging",
	TaskForaging:     "foraging",
	TaskCarryingHome: "carrying_home",
	TaskGardening:    "gardening",
	TaskSeekingFood:  "seeking_food",
	TaskEating:       "eating",
	TaskGuarding:     "guarding",
}

func (t TaskState) String() string {
	if int(t) < len(taskNames) {
		return taskNames[t]
	}
	return fmt.Sprintf("task(%d)", t)
}

// Task is the state machine position of an ant.
type Task struct {
	State  TaskState
	Target world.Coord // last cell acted on or steered toward
}

// Resource is a world resource: a plant on the surface or a garden stock.
type Resource struct {
	ID       uint32
	Kind     ResourceKind
	Quantity int32
}

// DeathCause records why an ant was removed.
type DeathCause uint8

const (
	DeathStarvation DeathCause = iota
	DeathOldAge
	DeathHazard
)

func (d DeathCause) String() string {
	switch d {
	case DeathStarvation:
		return "starvation"
	case DeathOldAge:
		return "old_age"
	case DeathHazard:
		return "hazard"
	}
	return fmt.Sprintf("death(%d)", d)
}
