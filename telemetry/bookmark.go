package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkDigSurge           BookmarkType = "dig_surge"
	BookmarkFirstHarvest       BookmarkType = "first_harvest"
	BookmarkPopulationRecovery BookmarkType = "population_recovery"
	BookmarkPopulationCrash    BookmarkType = "population_crash"
	BookmarkFamine             BookmarkType = "famine"
	BookmarkStableColony       BookmarkType = "stable_colony"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int32        `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the colony's history.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	recentPopMin       int  // minimum population in recent history
	recentPopPeak      int  // peak population in recent history
	stableWindowsCount int  // consecutive windows with stable population
	harvested          bool // first harvest already reported
	famine             bool // famine currently reported
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable colony detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkFirstHarvest(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkFamine(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Dig surge: digs > 2x rolling average
		if b := bd.checkDigSurge(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Recovery: population was <=3, now >=3x that
		if b := bd.checkPopulationRecovery(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Crash: dropped >30% from recent peak
		if b := bd.checkPopulationCrash(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Stable colony: low variance over 5+ windows
		if b := bd.checkStableColony(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)

	if stats.Population < bd.recentPopMin || bd.recentPopMin == 0 {
		bd.recentPopMin = stats.Population
	}
	if stats.Population > bd.recentPopPeak {
		bd.recentPopPeak = stats.Population
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkDigSurge(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Digs
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	if float64(stats.Digs) > avg*2.0 && stats.Digs >= 5 {
		return &Bookmark{
			Type:        BookmarkDigSurge,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d cells dug, %.1fx average (%.1f)", stats.Digs, float64(stats.Digs)/avg, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkFirstHarvest(stats WindowStats) *Bookmark {
	if bd.harvested || stats.Tends == 0 {
		return nil
	}
	bd.harvested = true
	return &Bookmark{
		Type:        BookmarkFirstHarvest,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("First leaves tended into the garden (%d deliveries, %d tends)", stats.Deliveries, stats.Tends),
	}
}

func (bd *BookmarkDetector) checkFamine(stats WindowStats) *Bookmark {
	starving := stats.GardenFood == 0 && stats.DeathsStarvation > 0
	if !starving {
		bd.famine = false
		return nil
	}
	if bd.famine {
		return nil
	}
	bd.famine = true
	return &Bookmark{
		Type:        BookmarkFamine,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Garden empty, %d ants starved", stats.DeathsStarvation),
	}
}

func (bd *BookmarkDetector) checkPopulationRecovery(stats WindowStats) *Bookmark {
	if bd.recentPopMin == 0 || bd.recentPopMin > 3 {
		return nil
	}

	threshold := bd.recentPopMin * 3
	if stats.Population >= threshold && stats.Population >= 6 {
		oldMin := bd.recentPopMin
		bd.recentPopMin = stats.Population

		return &Bookmark{
			Type:        BookmarkPopulationRecovery,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Colony recovered from %d to %d ants", oldMin, stats.Population),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkPopulationCrash(stats WindowStats) *Bookmark {
	if bd.recentPopPeak == 0 {
		return nil
	}

	dropPercent := 1.0 - float64(stats.Population)/float64(bd.recentPopPeak)
	if dropPercent > 0.30 && stats.Population < bd.recentPopPeak-3 {
		oldPeak := bd.recentPopPeak
		bd.recentPopPeak = stats.Population

		return &Bookmark{
			Type:        BookmarkPopulationCrash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Population crashed %.0f%% from peak %d to %d", dropPercent*100, oldPeak, stats.Population),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkStableColony(stats WindowStats) *Bookmark {
	if stats.Population < 5 {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	var sum float64
	for _, h := range history[len(history)-4:] {
		sum += float64(h.Population)
	}
	mean := sum / 4

	var variance float64
	for _, h := range history[len(history)-4:] {
		d := float64(h.Population) - mean
		variance += d * d
	}
	variance /= 4

	cv2 := 0.0
	if mean > 0 {
		cv2 = variance / (mean * mean)
	}

	if cv2 < 0.04 { // CV < 20%
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkStableColony,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Stable colony of %d ants over 5+ windows", stats.Population),
		}
	}

	return nil
}
