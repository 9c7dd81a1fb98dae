// Package tui is the terminal timeline viewer: one tab per open timeline,
// a note reader and a search view over the note cache.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/fwtl/internal/config"
	"github.com/pders01/fwtl/internal/pageable"
	"github.com/pders01/fwtl/internal/search"
	"github.com/pders01/fwtl/internal/storage"
	"github.com/pders01/fwtl/internal/timeline"
)

// chromeHeight is the tab row plus the separator and status bar.
const chromeHeight = 4

// Tab is one open timeline.
type Tab struct {
	Title string
	Store *timeline.Store
}

// Opener hands a URL to an external program; *media.Launcher satisfies it.
type Opener interface {
	Open(url string) error
}

type Options struct {
	Config   *config.Config
	Tabs     []Tab
	Notes    timeline.NoteGetter
	Searcher search.Searcher
	Media    Opener
}

type App struct {
	config     *config.Config
	notes      timeline.NoteGetter
	searcher   search.Searcher
	opener     Opener
	keyHandler *KeyHandler
	tabs       []Tab
	active     int

	noteList    list.Model
	searchList  list.Model
	searchInput textinput.Model
	viewport    viewport.Model

	view           View
	previousView   View
	cameFromSearch bool
	showHelp       bool
	state          timeline.NoteState
	currentNote    *storage.Note
	loadingNote    bool

	// subSeq identifies the live subscription; messages from older ones
	// are dropped.
	subSeq      int
	states      <-chan timeline.NoteState
	unsubscribe func()

	status string
	err    error
	width  int
	height int

	glamourRenderer *glamour.TermRenderer
	rendererWidth   int

	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.TestConfig()
	}
	ApplyColors(cfg.UI.Colors)

	noteList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	noteList.SetShowTitle(false)
	noteList.SetShowStatusBar(false)
	noteList.SetFilteringEnabled(true)
	noteList.SetShowHelp(false)

	searchList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	searchList.Title = "› search results"
	searchList.SetShowStatusBar(false)
	searchList.SetShowHelp(false)
	searchList.SetFilteringEnabled(false)

	si := textinput.New()
	si.Placeholder = "Search cached notes..."
	si.CharLimit = 256

	searcher := opts.Searcher
	if searcher == nil {
		searcher = search.NewEngine(emptyLister{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config:      cfg,
		notes:       opts.Notes,
		searcher:    searcher,
		opener:      opts.Media,
		tabs:        opts.Tabs,
		noteList:    noteList,
		searchList:  searchList,
		searchInput: si,
		viewport:    viewport.New(0, 0),
		view:        ViewTimeline,
		state:       pageable.Init[storage.NoteID](),
		ctx:         ctx,
		cancel:      cancel,
	}
	app.keyHandler = NewKeyHandler(app, cfg)
	return app
}

func (a *App) activeStore() *timeline.Store {
	if a.active < 0 || a.active >= len(a.tabs) {
		return nil
	}
	return a.tabs[a.active].Store
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.subscribe(), a.loadFuture())
}

// Close cancels in-flight loads and ends the subscription.
func (a *App) Close() {
	a.cancel()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	note := a.config.UI.Note
	wordWrapWidth := (a.width * 9) / 10
	if note.WordWrapMaxWidth > 0 && wordWrapWidth > note.WordWrapMaxWidth {
		wordWrapWidth = note.WordWrapMaxWidth
	}
	if wordWrapWidth < note.WordWrapMinWidth {
		wordWrapWidth = note.WordWrapMinWidth
	}
	if a.width > 0 && a.width < 50 {
		wordWrapWidth = max(a.width-4, 20)
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wordWrapWidth) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrapWidth),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}

	return a.glamourRenderer, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.noteList.SetSize(msg.Width, max(msg.Height-chromeHeight, 1))
		a.searchList.SetSize(msg.Width, max(msg.Height-chromeHeight-6, 5))
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-chromeHeight, 1)
		return a, nil

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case stateMsg:
		if msg.seq != a.subSeq {
			return a, nil
		}
		a.applyState(msg.state)
		return a, waitForState(a.states, msg.seq)

	case subscriptionClosedMsg:
		if msg.seq == a.subSeq {
			a.states = nil
		}
		return a, nil

	case loadDoneMsg:
		switch {
		case errors.Is(msg.err, context.Canceled):
		case msg.err != nil:
			a.err = msg.err
		default:
			a.err = nil
			a.status = MsgLoaded(msg.added, msg.previous)
		}
		return a, nil

	case noteRenderedMsg:
		if a.view == ViewNote && a.currentNote != nil && a.currentNote.ID == msg.id {
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
			a.loadingNote = false
			a.status = ""
		}
		return a, nil

	case searchResultsMsg:
		if a.view == ViewSearch && msg.query == sanitizeSearchInput(a.searchInput.Value()) {
			items := make([]list.Item, len(msg.results))
			for i, r := range msg.results {
				items[i] = searchResultItem{result: r}
			}
			a.searchList.SetItems(items)
			a.status = MsgResultsCount(len(msg.results))
			if len(msg.results) == 0 {
				a.status = MsgNoResults
			}
		}
		return a, nil

	case errorMsg:
		a.err = msg.err
		return a, nil
	}

	switch a.view {
	case ViewTimeline:
		var cmd tea.Cmd
		a.noteList, cmd = a.noteList.Update(msg)
		cmds = append(cmds, cmd)
	case ViewNote:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		cmds = append(cmds, cmd)
	case ViewSearch:
		var cmd tea.Cmd
		a.searchInput, cmd = a.searchInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// applyState rebuilds the note list from a snapshot. The cursor stays on
// the same note, except that a cursor resting on the head follows notes
// that just arrived from the stream.
func (a *App) applyState(s timeline.NoteState) {
	var selected storage.NoteID
	hadSelection := false
	if item, ok := a.noteList.SelectedItem().(noteItem); ok {
		selected = item.note.ID
		hadSelection = true
	}
	followHead := a.noteList.Index() == 0 && a.streamedHead()

	a.state = s
	var notes []*storage.Note
	if a.notes != nil {
		notes = timeline.ResolveNotes(a.ctx, s, a.notes).GetOrNil()
	}
	items := make([]list.Item, 0, len(notes))
	cursor := -1
	for i, n := range notes {
		items = append(items, noteItem{note: n, previewLen: a.config.UI.Note.MaxPreviewLength})
		if hadSelection && n.ID == selected {
			cursor = i
		}
	}
	a.noteList.SetItems(items)
	switch {
	case followHead && len(items) > 0:
		a.noteList.Select(0)
	case cursor >= 0:
		a.noteList.Select(cursor)
	}

	switch s.Status() {
	case pageable.StatusError:
		a.err = s.Err()
	case pageable.StatusLoadingFuture, pageable.StatusLoadingInit:
		a.status = MsgLoadingFuture
	case pageable.StatusLoadingPrevious:
		a.status = MsgLoadingPrevious
	}
}

// streamedHead reports whether the active store received a streamed note
// since its last load.
func (a *App) streamedHead() bool {
	store := a.activeStore()
	return store != nil && store.LatestReceiveNoteID() != nil
}

// switchTab moves delta tabs over, wrapping around.
func (a *App) switchTab(delta int) tea.Cmd {
	if len(a.tabs) < 2 {
		return nil
	}
	a.active = ((a.active+delta)%len(a.tabs) + len(a.tabs)) % len(a.tabs)
	a.noteList.ResetFilter()
	a.noteList.SetItems(nil)
	a.noteList.ResetSelected()
	a.err = nil
	a.status = ""

	cmds := []tea.Cmd{a.subscribe()}
	if store := a.activeStore(); store != nil && !store.State().Content().Exists() {
		cmds = append(cmds, a.loadFuture())
	}
	return tea.Batch(cmds...)
}

func (a *App) tabTitles() []string {
	titles := make([]string, len(a.tabs))
	for i, t := range a.tabs {
		titles[i] = t.Title
	}
	return titles
}

func (a *App) View() string {
	contentHeight := max(a.height-chromeHeight, 1)
	var content string

	switch a.view {
	case ViewTimeline:
		switch {
		case len(a.tabs) == 0:
			content = renderCentered(a.width, contentHeight, GetWelcomeMessage())
		case len(a.noteList.Items()) == 0 && a.state.IsLoading():
			content = renderCentered(a.width, contentHeight, renderMuted(MsgLoadingFuture))
		case len(a.noteList.Items()) == 0:
			content = renderCentered(a.width, contentHeight, renderMuted("Nothing here yet"))
		default:
			content = a.noteList.View()
		}
	case ViewNote:
		if a.loadingNote {
			content = renderCentered(a.width, contentHeight, renderMuted(MsgLoadingNote))
		} else {
			content = a.viewport.View()
		}
	case ViewSearch:
		content = a.searchView(contentHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Top,
		renderTabs(a.tabTitles(), a.active, a.width),
		content,
		renderSeparator(a.width-1),
		a.statusBar(),
	)
}

func (a *App) searchView(height int) string {
	inputWidth := a.width - 8
	if inputWidth < 10 {
		inputWidth = max(a.width-4, 1)
	}
	a.searchInput.Width = inputWidth

	var helpText string
	switch {
	case a.searchInput.Focused():
		helpText = "Type to search • Tab/↓: results • Esc: back"
	case len(a.searchList.Items()) > 0:
		helpText = "↑↓: navigate • Enter: open • Tab: search box • Esc: back"
	default:
		helpText = "No results found • Tab: search box • Esc: back"
	}

	subtitle := ""
	if ds, ok := a.searcher.(search.DebugStatser); ok {
		if n, err := ds.DocCount(); err == nil {
			subtitle = fmt.Sprintf("index: %d notes", n)
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Top,
		renderHeader("› search", subtitle, a.width),
		renderInputFrame(a.searchInput.View(), a.searchInput.Focused(), inputWidth),
		HelpStyle.Render(helpText),
		"",
		a.searchList.View(),
	)
	return lipgloss.NewStyle().
		Width(a.width).
		Height(height).
		MaxHeight(height).
		Render(body)
}

func (a *App) statusBar() string {
	style := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(MutedColor)

	if a.err != nil {
		return style.Render(ErrorMessageStyle.Render(fmt.Sprintf("✗ %v", a.err)))
	}

	parts := []string{}
	if a.status != "" {
		parts = append(parts, a.status)
	}
	if store := a.activeStore(); store != nil && a.view == ViewTimeline {
		if s := MsgStreamSummary(store.QueueStats()); s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, a.keyHandler.GetHelpForCurrentView()...)
	return style.Render(strings.Join(parts, " • "))
}

// emptyLister backs the fallback search engine when no cache is wired.
type emptyLister struct{}

func (emptyLister) GetAllAccounts() ([]*storage.Account, error) { return nil, nil }

func (emptyLister) GetNotes(int64, int) ([]*storage.Note, error) { return nil, nil }

func (emptyLister) GetNote(storage.NoteID) (*storage.Note, error) {
	return nil, storage.ErrNoteNotFound
}
