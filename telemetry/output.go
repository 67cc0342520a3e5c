package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/acre/config"
)

// csvSink appends records of one type to a CSV file. The header is written
// with the first record.
type csvSink[T any] struct {
	name   string
	file   *os.File
	header bool
}

func openSink[T any](dir, name string) (*csvSink[T], error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvSink[T]{name: name, file: f}, nil
}

func (s *csvSink[T]) write(rec T) error {
	records := []T{rec}
	var err error
	if s.header {
		err = gocsv.MarshalWithoutHeaders(records, s.file)
	} else {
		err = gocsv.Marshal(records, s.file)
		s.header = err == nil
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", s.name, err)
	}
	return nil
}

func (s *csvSink[T]) close() error {
	if s == nil {
		return nil
	}
	return s.file.Close()
}

// OutputManager writes a run's CSV telemetry, its config and its summary
// into one directory. A nil manager discards everything.
type OutputManager struct {
	dir       string
	windows   *csvSink[WindowStats]
	perf      *csvSink[PerfStatsCSV]
	bookmarks *csvSink[Bookmark]
}

// NewOutputManager creates dir and opens telemetry.csv, perf.csv and
// bookmarks.csv. Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	var err error
	if om.windows, err = openSink[WindowStats](dir, "telemetry.csv"); err != nil {
		return nil, err
	}
	if om.perf, err = openSink[PerfStatsCSV](dir, "perf.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.bookmarks, err = openSink[Bookmark](dir, "bookmarks.csv"); err != nil {
		om.Close()
		return nil, err
	}
	return om, nil
}

// WriteConfig saves the effective configuration as config.yaml.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry appends a stats window to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	return om.windows.write(stats)
}

// WritePerf appends the phase timings of a window to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	return om.perf.write(stats.ToCSV(windowEnd))
}

// WriteBookmark appends a bookmark to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	return om.bookmarks.write(b)
}

// RunSummary is the end-of-run record. It points at the run's other
// artifacts so a summary found on disk leads to its journal and index row.
type RunSummary struct {
	Seed            int64  `json:"seed"`
	Ticks           int32  `json:"ticks"`
	FinalPopulation int    `json:"final_population"`
	PeakPopulation  int    `json:"peak_population"`
	TunnelsDug      int    `json:"tunnels_dug"`
	Bookmarks       int    `json:"bookmarks"`
	Digest          string `json:"digest"`

	Journal string `json:"journal,omitempty"` // action journal path
	Index   string `json:"index,omitempty"`   // SQLite run index path
	RunID   int64  `json:"run_id,omitempty"`  // row in Index
}

// WriteSummary saves sum as summary.json. Artifact paths inside the output
// directory are stored relative to it so the directory can be moved.
func (om *OutputManager) WriteSummary(sum RunSummary) error {
	if om == nil {
		return nil
	}
	sum.Journal = om.relative(sum.Journal)
	sum.Index = om.relative(sum.Index)

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "summary.json"), data, 0644); err != nil {
		return fmt.Errorf("writing summary.json: %w", err)
	}
	return nil
}

func (om *OutputManager) relative(path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(om.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// ReadSummary loads summary.json from an output directory.
func ReadSummary(dir string) (RunSummary, error) {
	var sum RunSummary
	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		return sum, err
	}
	if err := json.Unmarshal(data, &sum); err != nil {
		return sum, fmt.Errorf("parsing summary.json: %w", err)
	}
	return sum, nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	return errors.Join(om.windows.close(), om.perf.close(), om.bookmarks.close())
}
