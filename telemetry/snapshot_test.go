package telemetry

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/world"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Version:      SnapshotVersion,
		Seed:         42,
		Tick:         120,
		Size:         4,
		SurfaceLevel: 1,
		Tiles:        make([]byte, 64),
		Occupied:     []OccupiedCell{{Index: 5, Occupant: 9}},
		Pheromones: []PheromoneLayer{
			{Kind: "dig", Values: make([]uint32, 64)},
		},
		Ants: []AntState{
			{ID: 1, Caste: "queen", Pos: world.Coord{X: 2, Y: 2, Z: 1}, Hunger: 12.5, Task: "idle"},
			{ID: 2, Caste: "worker", Pos: world.Coord{X: 1, Y: 2, Z: 2}, Cargo: components.Cargo{Kind: components.ResourceLeaf, Quantity: 1}, Task: "digging"},
		},
		Plants: []PlantState{{ID: 9, Pos: world.Coord{X: 1, Y: 1, Z: 1}, Leaves: 3}},
		Garden: map[string]int32{"food": 4},
	}
}

func TestSnapshotDigestStable(t *testing.T) {
	a, b := testSnapshot(), testSnapshot()
	if a.Digest() != b.Digest() {
		t.Fatal("equal snapshots have different digests")
	}
	if len(a.Digest()) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a.Digest()))
	}
}

func TestSnapshotDigestSensitive(t *testing.T) {
	base := testSnapshot().Digest()

	mutations := map[string]func(s *Snapshot){
		"tile":      func(s *Snapshot) { s.Tiles[10] = byte(world.Tunnel) },
		"pheromone": func(s *Snapshot) { s.Pheromones[0].Values[3] = 1 },
		"ant moved": func(s *Snapshot) { s.Ants[1].Pos.X++ },
		"hunger":    func(s *Snapshot) { s.Ants[0].Hunger += 0.001 },
		"leaves":    func(s *Snapshot) { s.Plants[0].Leaves-- },
		"garden":    func(s *Snapshot) { s.Garden["food"] = 3 },
		"tick":      func(s *Snapshot) { s.Tick++ },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := testSnapshot()
			mutate(s)
			if s.Digest() == base {
				t.Errorf("digest unchanged after %s", name)
			}
		})
	}
}

func TestSaveLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	snap := testSnapshot()
	snap.Bookmark = &Bookmark{Type: BookmarkFamine, Tick: 120, Description: "test"}

	path, err := SaveSnapshot(snap, dir)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, "_famine.json.zst") {
		t.Errorf("unexpected path %q", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Digest() != snap.Digest() {
		t.Error("loaded snapshot digest differs")
	}
	if loaded.Bookmark == nil || loaded.Bookmark.Type != BookmarkFamine {
		t.Errorf("bookmark = %+v", loaded.Bookmark)
	}
}
