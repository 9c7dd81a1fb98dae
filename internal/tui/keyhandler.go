package tui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/fwtl/internal/config"
)

type KeyHandler struct {
	app         *App
	keys        config.KeyBindings
	modifierKey string
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	modifierKey := ""
	if cfg.Keys.Modifier != "" {
		modifierKey = cfg.Keys.Modifier + "+"
	}
	return &KeyHandler{app: app, keys: cfg.Keys.Bindings, modifierKey: modifierKey}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(key); handled {
		return model, cmd
	}

	return kh.delegateToCharm(msg)
}

// isInTextInputMode reports whether keys belong to an input, which
// includes the list's own filter prompt.
func (kh *KeyHandler) isInTextInputMode() bool {
	switch kh.app.view {
	case ViewSearch:
		return kh.app.searchInput.Focused()
	case ViewTimeline:
		return kh.app.noteList.FilterState() == list.Filtering
	default:
		return false
	}
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if kh.app.view == ViewTimeline {
		var cmd tea.Cmd
		kh.app.noteList, cmd = kh.app.noteList.Update(msg)
		return kh.app, cmd
	}

	switch msg.String() {
	case "ctrl+c":
		return kh.app, tea.Quit
	case "esc":
		return kh.navigateBack()
	case "enter":
		if items := kh.app.searchList.Items(); len(items) > 0 {
			if i, ok := items[0].(searchResultItem); ok {
				return kh.app, kh.app.openNote(i.result.Note, true)
			}
		}
		return kh.app, nil
	case "tab", "down":
		if len(kh.app.searchList.Items()) > 0 {
			kh.app.searchInput.Blur()
			kh.app.searchList.Select(0)
		}
		return kh.app, nil
	}

	prev := sanitizeSearchInput(kh.app.searchInput.Value())
	var cmd tea.Cmd
	kh.app.searchInput, cmd = kh.app.searchInput.Update(msg)
	query := sanitizeSearchInput(kh.app.searchInput.Value())
	if query == prev {
		return kh.app, cmd
	}
	if len([]rune(query)) < 2 {
		kh.app.searchList.SetItems(nil)
		return kh.app, cmd
	}
	return kh.app, tea.Batch(cmd, kh.app.performSearch(query))
}

// handleCustomKeys handles only our custom action keys
func (kh *KeyHandler) handleCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "ctrl+c", kh.keys.Quit:
		return kh.app, tea.Quit, true
	case kh.keys.Back:
		if kh.app.view == ViewTimeline && kh.app.noteList.FilterState() != list.Unfiltered {
			return kh.app, nil, false
		}
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case kh.modifierKey + kh.keys.Search:
		model, cmd := kh.enterSearchMode()
		return model, cmd, true
	case kh.keys.Help:
		kh.app.showHelp = !kh.app.showHelp
		return kh.app, nil, true
	}

	switch kh.app.view {
	case ViewTimeline:
		return kh.handleTimelineCustomKeys(key)
	case ViewNote:
		if key == kh.keys.OpenMedia {
			kh.app.openMedia()
			return kh.app, nil, true
		}
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handleTimelineCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case kh.modifierKey + kh.keys.Refresh:
		return kh.app, kh.app.loadFuture(), true
	case kh.modifierKey + kh.keys.LoadPrevious:
		return kh.app, kh.app.loadPrevious(), true
	case kh.keys.NextTimeline:
		return kh.app, kh.app.switchTab(1), true
	case "shift+tab":
		return kh.app, kh.app.switchTab(-1), true
	}
	return kh.app, nil, false
}

// delegateToCharm lets Charm handle all keys we don't intercept
func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch kh.app.view {
	case ViewTimeline:
		kh.app.noteList, cmd = kh.app.noteList.Update(msg)
		switch msg.String() {
		case "enter":
			if i, ok := kh.app.noteList.SelectedItem().(noteItem); ok {
				return kh.app, kh.app.openNote(i.note, false)
			}
		case "down", "j", "pgdown", "end", "G":
			// Reaching the bottom pages in older notes.
			if n := len(kh.app.noteList.Items()); n > 0 && kh.app.noteList.Index() == n-1 {
				return kh.app, tea.Batch(cmd, kh.app.loadPrevious())
			}
		}
		return kh.app, cmd

	case ViewSearch:
		switch msg.String() {
		case "tab", "shift+tab", "/", "i":
			kh.app.searchInput.Focus()
			return kh.app, nil
		case "up":
			if kh.app.searchList.Index() == 0 {
				kh.app.searchInput.Focus()
				return kh.app, nil
			}
		}
		kh.app.searchList, cmd = kh.app.searchList.Update(msg)
		if msg.String() == "enter" {
			if i, ok := kh.app.searchList.SelectedItem().(searchResultItem); ok {
				return kh.app, kh.app.openNote(i.result.Note, true)
			}
		}
		return kh.app, cmd

	case ViewNote:
		kh.app.viewport, cmd = kh.app.viewport.Update(msg)
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

// navigateBack implements smart back navigation
func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewSearch:
		kh.app.view = kh.app.previousView
		kh.app.searchInput.Reset()
		kh.app.searchInput.Blur()
		kh.app.searchList.SetItems(nil)
		kh.app.status = ""
		return kh.app, nil

	case ViewNote:
		kh.app.loadingNote = false
		kh.app.status = ""
		if kh.app.cameFromSearch {
			kh.app.view = ViewSearch
			kh.app.cameFromSearch = false
			kh.app.searchInput.Blur()
			return kh.app, nil
		}
		kh.app.view = ViewTimeline
		return kh.app, nil

	default:
		return kh.app, tea.Quit
	}
}

// enterSearchMode transitions to search view
func (kh *KeyHandler) enterSearchMode() (tea.Model, tea.Cmd) {
	if kh.app.view == ViewSearch {
		kh.app.searchInput.Focus()
		return kh.app, nil
	}
	kh.app.previousView = kh.app.view
	kh.app.view = ViewSearch
	kh.app.cameFromSearch = false
	kh.app.searchInput.Reset()
	kh.app.searchList.SetItems(nil)
	kh.app.err = nil
	return kh.app, kh.app.searchInput.Focus()
}

// GetHelpForCurrentView returns only our custom help text (Charm handles the rest)
func (kh *KeyHandler) GetHelpForCurrentView() []string {
	m := kh.modifierKey
	switch kh.app.view {
	case ViewTimeline:
		help := []string{m + kh.keys.Refresh + ": refresh", m + kh.keys.Search + ": search"}
		if kh.app.showHelp {
			help = append(help,
				m+kh.keys.LoadPrevious+": older",
				kh.keys.NextTimeline+": next timeline",
				"enter: open",
				kh.keys.Quit+": quit",
			)
		} else {
			help = append(help, kh.keys.Help+": more")
		}
		return help

	case ViewNote:
		help := []string{"↑↓: scroll", kh.keys.Back + ": back", m + kh.keys.Search + ": search"}
		if kh.app.opener != nil && kh.keys.OpenMedia != "" {
			help = append(help, kh.keys.OpenMedia+": open media")
		}
		return help

	case ViewSearch:
		return []string{kh.keys.Back + ": back"}

	default:
		return []string{}
	}
}
