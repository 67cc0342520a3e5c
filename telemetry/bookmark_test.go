package telemetry

import (
	"testing"

	"github.com/pthm-cable/acre/config"
)

func init() {
	config.MustInit("")
}

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_DigSurge(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 100), Population: 10, Digs: 4})
	}

	bookmarks := bd.Check(WindowStats{WindowEndTick: 500, Population: 10, Digs: 20})
	if !hasBookmark(bookmarks, BookmarkDigSurge) {
		t.Error("expected dig_surge bookmark")
	}
}

func TestBookmarkDetector_PopulationCrash(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 100), Population: 20})
	}

	bookmarks := bd.Check(WindowStats{WindowEndTick: 500, Population: 10})
	if !hasBookmark(bookmarks, BookmarkPopulationCrash) {
		t.Error("expected population_crash bookmark")
	}
}

func TestBookmarkDetector_PopulationRecovery(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 3; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 100), Population: 2})
	}

	bookmarks := bd.Check(WindowStats{WindowEndTick: 300, Population: 10})
	if !hasBookmark(bookmarks, BookmarkPopulationRecovery) {
		t.Error("expected population_recovery bookmark")
	}
}

func TestBookmarkDetector_StableColony(t *testing.T) {
	bd := NewBookmarkDetector(10)

	found := false
	for i := 0; i < 10; i++ {
		bookmarks := bd.Check(WindowStats{WindowEndTick: int32(i * 100), Population: 20})
		if hasBookmark(bookmarks, BookmarkStableColony) {
			found = true
		}
	}
	if !found {
		t.Error("expected stable_colony bookmark")
	}
}

func TestBookmarkDetector_FirstHarvestOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if hasBookmark(bd.Check(WindowStats{WindowEndTick: 100}), BookmarkFirstHarvest) {
		t.Error("harvest reported before any tending")
	}
	if !hasBookmark(bd.Check(WindowStats{WindowEndTick: 200, Tends: 2}), BookmarkFirstHarvest) {
		t.Error("expected first_harvest bookmark")
	}
	if hasBookmark(bd.Check(WindowStats{WindowEndTick: 300, Tends: 5}), BookmarkFirstHarvest) {
		t.Error("first_harvest reported twice")
	}
}

func TestBookmarkDetector_FamineEdgeTriggered(t *testing.T) {
	bd := NewBookmarkDetector(10)

	starving := WindowStats{WindowEndTick: 100, Population: 5, DeathsStarvation: 2}
	if !hasBookmark(bd.Check(starving), BookmarkFamine) {
		t.Fatal("expected famine bookmark")
	}
	starving.WindowEndTick = 200
	if hasBookmark(bd.Check(starving), BookmarkFamine) {
		t.Error("famine reported again while ongoing")
	}

	bd.Check(WindowStats{WindowEndTick: 300, Population: 5, GardenFood: 4})
	starving.WindowEndTick = 400
	if !hasBookmark(bd.Check(starving), BookmarkFamine) {
		t.Error("expected famine bookmark after recovery")
	}
}
