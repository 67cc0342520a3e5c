// Package journal writes a compressed JSONL record of every tick: the
// actions applied and rejected and the colony events that occurred.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/acre/mutation"
	"github.com/pthm-cable/acre/telemetry"
	"github.com/pthm-cable/acre/world"
)

// ActionEntry is the journal form of a mutation.Action.
type ActionEntry struct {
	Ant       uint32       `json:"ant"`
	Seq       uint16       `json:"seq"`
	Kind      string       `json:"kind"`
	From      *world.Coord `json:"from,omitempty"`
	Target    world.Coord  `json:"target"`
	Pheromone string       `json:"pheromone,omitempty"`
	Amount    float64      `json:"amount,omitempty"`
	Tile      string       `json:"tile,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// TickEntry is one line of the journal.
type TickEntry struct {
	Tick     int32             `json:"tick"`
	Applied  []ActionEntry     `json:"applied,omitempty"`
	Rejected []ActionEntry     `json:"rejected,omitempty"`
	Events   []telemetry.Event `json:"events,omitempty"`
}

// NewActionEntry converts an action.
func NewActionEntry(a mutation.Action) ActionEntry {
	e := ActionEntry{
		Ant:    a.Ant,
		Seq:    a.Seq,
		Kind:   a.Kind.String(),
		Target: a.Target,
	}
	switch a.Kind {
	case mutation.Move:
		from := a.From
		e.From = &from
	case mutation.Deposit:
		e.Pheromone = string(a.Pheromone)
		e.Amount = a.Amount
	case mutation.SetTile:
		e.Tile = a.Tile.String()
	}
	return e
}

// NewTickEntry builds a journal line from an apply report.
func NewTickEntry(tick int32, r mutation.Report, events []telemetry.Event) TickEntry {
	e := TickEntry{Tick: tick, Events: events}
	if len(r.Applied) > 0 {
		e.Applied = make([]ActionEntry, len(r.Applied))
		for i, a := range r.Applied {
			e.Applied[i] = NewActionEntry(a)
		}
	}
	if len(r.Rejected) > 0 {
		e.Rejected = make([]ActionEntry, len(r.Rejected))
		for i, rj := range r.Rejected {
			e.Rejected[i] = NewActionEntry(rj.Action)
			e.Rejected[i].Error = rj.Err.Error()
		}
	}
	return e
}

// Writer appends zstd-compressed JSON lines to a file.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// Create opens path for writing, truncating any existing journal.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{
		f:   f,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// WriteTick appends one tick entry. A nil writer discards.
func (w *Writer) WriteTick(e TickEntry) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return errors.New("journal closed")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes and closes the journal.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.w != nil {
		firstErr = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.f = nil
	}
	return firstErr
}

// Read calls fn for every entry in the journal at path, in order.
func Read(path string, fn func(TickEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	jd := json.NewDecoder(bufio.NewReaderSize(dec, 128*1024))
	for line := 1; ; line++ {
		var e TickEntry
		if err := jd.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("journal entry %d: %w", line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}
