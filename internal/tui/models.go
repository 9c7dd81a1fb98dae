package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/fwtl/internal/search"
	"github.com/pders01/fwtl/internal/storage"
	"github.com/pders01/fwtl/internal/timeline"
)

type View int

const (
	ViewTimeline View = iota
	ViewNote
	ViewSearch
)

type noteItem struct {
	note       *storage.Note
	previewLen int
}

func (i noteItem) Title() string {
	name := i.note.DisplayName
	if name == "" {
		name = i.note.Username
	}
	title := AuthorStyle.Render(name)
	if i.note.Username != "" && i.note.Username != name {
		title += " " + renderMuted("@"+i.note.Username)
	}
	if i.note.RenoteID != "" && strings.TrimSpace(i.note.Text) == "" {
		title = RenoteStyle.Render("♻ ") + title
	}
	return title
}

func (i noteItem) Description() string {
	body := i.note.Text
	if i.note.CW != "" {
		body = "⚠ " + i.note.CW
	}
	body = truncateEnd(oneLine(body), i.previewLen)

	timeStr := ""
	if !i.note.CreatedAt.IsZero() {
		timeStr = TimeStyle.Render(" • " + i.note.CreatedAt.Local().Format("Jan 2, 15:04"))
	}
	return lipgloss.NewStyle().Foreground(MutedColor).Render(body) + timeStr
}

func (i noteItem) FilterValue() string {
	return i.note.Username + " " + i.note.DisplayName + " " + i.note.CW + " " + i.note.Text
}

type searchResultItem struct {
	result *search.Result
}

func (i searchResultItem) Title() string {
	return noteItem{note: i.result.Note}.Title()
}

func (i searchResultItem) Description() string {
	snippet := i.result.Note.Text
	if len(i.result.Matches) > 0 {
		snippet = i.result.Matches[0].Text
	}
	return lipgloss.NewStyle().
		Foreground(MutedColor).
		Render(truncateEnd(oneLine(snippet), 80))
}

func (i searchResultItem) FilterValue() string { return i.result.Note.Text }

// stateMsg carries a snapshot from the subscription with sequence seq.
type stateMsg struct {
	seq   int
	state timeline.NoteState
}

// subscriptionClosedMsg is sent when a store stops publishing.
type subscriptionClosedMsg struct {
	seq int
}

type loadDoneMsg struct {
	previous bool
	added    int
	err      error
}

type noteRenderedMsg struct {
	id      storage.NoteID
	content string
}

type searchResultsMsg struct {
	query   string
	results []*search.Result
}

type errorMsg struct {
	err error
}
