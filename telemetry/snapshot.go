package telemetry

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/acre/components"
	"github.com/pthm-cable/acre/world"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is a diagnostic dump of the full simulation state. It can be
// inspected and compared by digest; runs are not resumed from it.
type Snapshot struct {
	Version      int    `json:"version"`
	Seed         int64  `json:"seed"`
	Tick         int32  `json:"tick"`
	Size         int    `json:"size"`
	SurfaceLevel int    `json:"surface_level"`
	Tiles        []byte `json:"tiles"` // world.Tile per cell in grid index order

	Occupied []OccupiedCell `json:"occupied"`

	Pheromones []PheromoneLayer `json:"pheromones"`
	Ants       []AntState       `json:"ants"`
	Plants     []PlantState     `json:"plants"`
	Garden     map[string]int32 `json:"garden"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// OccupiedCell is a cell holding an entity reference.
type OccupiedCell struct {
	Index    int            `json:"i"`
	Occupant world.EntityID `json:"id"`
}

// PheromoneLayer holds one layer's fixed-point values in grid index order.
type PheromoneLayer struct {
	Kind   string   `json:"kind"`
	Values []uint32 `json:"values"`
}

// AntState holds one ant's complete state.
type AntState struct {
	ID       uint32           `json:"id"`
	Caste    string           `json:"caste"`
	Pos      world.Coord      `json:"pos"`
	Hunger   float32          `json:"hunger"`
	Age      int32            `json:"age"`
	Cargo    components.Cargo `json:"cargo"`
	Task     string           `json:"task"`
	Target   world.Coord      `json:"target"`
	Lifetime *LifetimeStats   `json:"lifetime,omitempty"`
}

// PlantState holds one plant.
type PlantState struct {
	ID     world.EntityID `json:"id"`
	Pos    world.Coord    `json:"pos"`
	Leaves int32          `json:"leaves"`
}

// Digest returns a hex sha256 over the simulation state. Two runs with the
// same seed, config and commands produce equal digests at equal ticks.
// Ants and plants must be sorted by ID.
func (s *Snapshot) Digest() string {
	h := sha256.New()
	var buf [8]byte
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	putCoord := func(c world.Coord) {
		putU64(uint64(int64(c.X)))
		putU64(uint64(int64(c.Y)))
		putU64(uint64(int64(c.Z)))
	}

	putU64(uint64(s.Tick))
	putU64(uint64(s.Size))
	h.Write(s.Tiles)
	for _, oc := range s.Occupied {
		putU64(uint64(oc.Index))
		putU64(uint64(oc.Occupant))
	}
	for _, layer := range s.Pheromones {
		h.Write([]byte(layer.Kind))
		for _, v := range layer.Values {
			binary.LittleEndian.PutUint32(buf[:4], v)
			h.Write(buf[:4])
		}
	}
	for _, a := range s.Ants {
		putU64(uint64(a.ID))
		h.Write([]byte(a.Caste))
		putCoord(a.Pos)
		putU64(uint64(math.Float32bits(a.Hunger)))
		putU64(uint64(a.Age))
		putU64(uint64(a.Cargo.Kind))
		putU64(uint64(a.Cargo.Quantity))
		h.Write([]byte(a.Task))
	}
	for _, p := range s.Plants {
		putU64(uint64(p.ID))
		putCoord(p.Pos)
		putU64(uint64(p.Leaves))
	}
	for _, k := range []components.ResourceKind{
		components.ResourceLeaf, components.ResourceMulch,
		components.ResourceFungus, components.ResourceFood,
	} {
		putU64(uint64(s.Garden[k.String()]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SaveSnapshot writes a zstd-compressed JSON snapshot to dir.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	path := filepath.Join(dir, name+".json.zst")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	if err := json.NewEncoder(bw).Encode(snapshot); err != nil {
		enc.Close()
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(bufio.NewReaderSize(dec, 256*1024)).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
