package tui

import (
	"fmt"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/storage"
	"github.com/pders01/fwtl/internal/timeline"
)

// subscribe ends the current subscription and follows the active tab's
// store.
func (a *App) subscribe() tea.Cmd {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.subSeq++
	a.states = nil

	store := a.activeStore()
	if store == nil {
		return nil
	}
	ch, unsubscribe := store.Subscribe()
	a.states = ch
	a.unsubscribe = unsubscribe
	return waitForState(ch, a.subSeq)
}

func waitForState(ch <-chan timeline.NoteState, seq int) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{seq: seq}
		}
		return stateMsg{seq: seq, state: s}
	}
}

func (a *App) loadFuture() tea.Cmd {
	store := a.activeStore()
	if store == nil {
		return nil
	}
	ctx := a.ctx
	a.status = MsgLoadingFuture
	return func() tea.Msg {
		n, err := store.LoadFuture(ctx)
		return loadDoneMsg{added: n, err: err}
	}
}

func (a *App) loadPrevious() tea.Cmd {
	store := a.activeStore()
	if store == nil || store.PreviousEdgeReached() || a.state.IsLoading() {
		return nil
	}
	ctx := a.ctx
	a.status = MsgLoadingPrevious
	return func() tea.Msg {
		n, err := store.LoadPrevious(ctx)
		return loadDoneMsg{previous: true, added: n, err: err}
	}
}

// openNote switches to the reader and renders note in the background.
func (a *App) openNote(note *storage.Note, fromSearch bool) tea.Cmd {
	a.currentNote = note
	a.cameFromSearch = fromSearch
	a.loadingNote = true
	a.status = MsgLoadingNote
	a.view = ViewNote
	return a.renderNote(note)
}

// openMedia opens the first attachment of the current note, or the note
// itself when it has none.
func (a *App) openMedia() {
	if a.opener == nil || a.currentNote == nil {
		return
	}
	target := a.currentNote.URL
	if len(a.currentNote.FileURLs) > 0 {
		target = a.currentNote.FileURLs[0]
	}
	if target == "" {
		a.status = MsgNothingToOpen
		return
	}
	if err := a.opener.Open(target); err != nil {
		a.status = "Open failed: " + err.Error()
		return
	}
	a.status = "Opened " + truncateMiddle(target, 60)
}

func (a *App) renderNote(note *storage.Note) tea.Cmd {
	return func() tea.Msg {
		r, err := a.getRenderer()
		if err != nil {
			return noteRenderedMsg{id: note.ID, content: "Error initializing renderer: " + err.Error()}
		}

		rendered, err := r.Render(noteMarkdown(note))
		if err != nil {
			return noteRenderedMsg{
				id:      note.ID,
				content: fmt.Sprintf("Failed to render note: %s\n\nPress Escape to go back.", err),
			}
		}
		return noteRenderedMsg{id: note.ID, content: rendered}
	}
}

// noteMarkdown lays a note out as markdown for the reader. Feed entries
// carry HTML, which is converted first.
func noteMarkdown(note *storage.Note) string {
	var b strings.Builder

	name := note.DisplayName
	if name == "" {
		name = note.Username
	}
	fmt.Fprintf(&b, "**%s**", name)
	if note.Username != "" && note.Username != name {
		fmt.Fprintf(&b, " @%s", note.Username)
	}
	b.WriteString("\n\n")

	meta := []string{}
	if !note.CreatedAt.IsZero() {
		meta = append(meta, note.CreatedAt.Local().Format(time.RFC1123))
	}
	if note.Visibility != "" && note.Visibility != "public" {
		meta = append(meta, note.Visibility)
	}
	if note.RenoteID != "" {
		meta = append(meta, "renote of "+note.RenoteID)
	}
	if note.ReplyID != "" {
		meta = append(meta, "reply to "+note.ReplyID)
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " • "))
	}

	if note.CW != "" {
		fmt.Fprintf(&b, "> ⚠ %s\n\n", note.CW)
	}

	b.WriteString("---\n\n")
	b.WriteString(noteBody(note))
	b.WriteString("\n\n")

	if len(note.FileURLs) > 0 {
		b.WriteString("**Files:**\n")
		for _, u := range note.FileURLs {
			fmt.Fprintf(&b, "- %s\n", u)
		}
		b.WriteString("\n")
	}

	if note.URL != "" {
		fmt.Fprintf(&b, "[Open on the web](%s)\n", note.URL)
	}
	return b.String()
}

func noteBody(note *storage.Note) string {
	if note.Source != notes.SourceFeed || !strings.Contains(note.Text, "<") {
		return note.Text
	}
	md, err := htmltomarkdown.ConvertString(note.Text)
	if err != nil {
		return note.Text
	}
	return md
}

func (a *App) performSearch(query string) tea.Cmd {
	searcher := a.searcher
	return func() tea.Msg {
		results, err := searcher.Search(query, 50)
		if err != nil {
			return errorMsg{err: err}
		}
		return searchResultsMsg{query: query, results: results}
	}
}

// sanitizeSearchInput trims, limits and collapses whitespace in a query.
func sanitizeSearchInput(input string) string {
	input = oneLine(input)
	if r := []rune(input); len(r) > 256 {
		input = strings.TrimSpace(string(r[:256]))
	}
	return input
}
