package tui

import (
	"fmt"

	"github.com/pders01/fwtl/internal/timeline"
)

// Canonical short status messages used across the app.
const (
	MsgLoadingFuture   = "Loading newer notes…"
	MsgLoadingPrevious = "Loading older notes…"
	MsgLoadingNote     = "Loading note…"
	MsgNoResults       = "No results"
	MsgUpToDate        = "Up to date"
	MsgEndOfTimeline   = "End of timeline"
	MsgNothingToOpen   = "Nothing to open"
)

func MsgLoaded(n int, previous bool) string {
	switch {
	case n == 0 && previous:
		return MsgEndOfTimeline
	case n == 0:
		return MsgUpToDate
	case n == 1:
		return "1 new note"
	default:
		return fmt.Sprintf("%d new notes", n)
	}
}

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", n)
}

// MsgStreamSummary reports what the stream queue did with delivered notes.
func MsgStreamSummary(stats timeline.QueueStats) string {
	if stats.Enqueued == 0 {
		return ""
	}
	base := fmt.Sprintf("stream: %d merged", stats.Merged)
	if stats.Duplicates > 0 {
		base += fmt.Sprintf(" • %d dup", stats.Duplicates)
	}
	if stats.Dropped > 0 {
		base += fmt.Sprintf(" • %d dropped", stats.Dropped)
	}
	return base
}
