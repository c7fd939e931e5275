package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkEnergyCrash  BookmarkType = "energy_crash"
	BookmarkArrestWave   BookmarkType = "arrest_wave"
	BookmarkDieOff       BookmarkType = "die_off"
	BookmarkFailureSpike BookmarkType = "failure_spike"
	BookmarkSteadyState  BookmarkType = "steady_state"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable windows in a run.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	recentEnergyPeak  float64 // peak mean energy in recent history
	recentProlifPeak  float64 // peak proliferative fraction in recent history
	steadyWindowCount int     // consecutive windows with flat mean energy
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for steady-state detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		// Energy crash: mean energy dropped >30% from recent peak
		if b := bd.checkEnergyCrash(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Arrest wave: proliferative fraction fell below half its recent peak
		if b := bd.checkArrestWave(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Die-off: more than 10% of the population died in one window
		if b := bd.checkDieOff(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Failure spike: failures after a clean history
		if b := bd.checkFailureSpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Steady state: low variance of mean energy over 5+ windows
		if b := bd.checkSteadyState(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	// Update history
	bd.addToHistory(stats)

	if stats.EnergyMean > bd.recentEnergyPeak {
		bd.recentEnergyPeak = stats.EnergyMean
	}
	if f := prolifFraction(stats); f > bd.recentProlifPeak {
		bd.recentProlifPeak = f
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

func prolifFraction(stats WindowStats) float64 {
	if stats.Live == 0 {
		return 0
	}
	return float64(stats.Proliferative) / float64(stats.Live)
}

func (bd *BookmarkDetector) checkEnergyCrash(stats WindowStats) *Bookmark {
	if bd.recentEnergyPeak <= 0 {
		return nil
	}

	drop := 1.0 - stats.EnergyMean/bd.recentEnergyPeak
	if drop > 0.30 {
		// Reset peak after crash
		oldPeak := bd.recentEnergyPeak
		bd.recentEnergyPeak = stats.EnergyMean

		return &Bookmark{
			Type:        BookmarkEnergyCrash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Mean energy fell %.0f%% from peak %.1f to %.1f", drop*100, oldPeak, stats.EnergyMean),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkArrestWave(stats WindowStats) *Bookmark {
	if bd.recentProlifPeak < 0.2 {
		return nil
	}

	f := prolifFraction(stats)
	if f < bd.recentProlifPeak*0.5 {
		oldPeak := bd.recentProlifPeak
		bd.recentProlifPeak = f

		return &Bookmark{
			Type:        BookmarkArrestWave,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Proliferative fraction fell from %.2f to %.2f", oldPeak, f),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkDieOff(stats WindowStats) *Bookmark {
	population := stats.Live + stats.Deaths
	if population == 0 || stats.Deaths < 3 {
		return nil
	}

	frac := float64(stats.Deaths) / float64(population)
	if frac > 0.10 {
		return &Bookmark{
			Type:        BookmarkDieOff,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d cells (%.0f%%) died in one window", stats.Deaths, frac*100),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkFailureSpike(stats WindowStats) *Bookmark {
	if stats.Failures == 0 {
		return nil
	}
	for _, h := range bd.getHistory() {
		if h.Failures > 0 {
			return nil
		}
	}

	return &Bookmark{
		Type:        BookmarkFailureSpike,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d coupling failures (%d config, %d numerical) after a clean history", stats.Failures, stats.ConfigErrors, stats.NumericalErrors),
	}
}

func (bd *BookmarkDetector) checkSteadyState(stats WindowStats) *Bookmark {
	if stats.Live == 0 {
		bd.steadyWindowCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	recent := make([]float64, 0, 5)
	for _, h := range history[len(history)-4:] {
		recent = append(recent, h.EnergyMean)
	}
	recent = append(recent, stats.EnergyMean)

	mean, std, _, _, _ := ComputeEnergyStats(recent)
	if mean > 0 && std/mean < 0.01 {
		bd.steadyWindowCount++
	} else {
		bd.steadyWindowCount = 0
	}

	if bd.steadyWindowCount == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkSteadyState,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Mean energy steady at %.1f with %d live cells over 5+ windows", stats.EnergyMean, stats.Live),
		}
	}

	return nil
}
