// Package tui implements the Bubbletea terminal UI for Hindsight.
//
// Structure:
// - Screen constants as iota
// - Single Model struct holds ALL state
// - Update() with type switch
// - Per-screen key handlers returning (tea.Model, tea.Cmd)
// - Vim keys (j/k) for navigation
// - PrevScreen for back navigation
package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hindsightdb/hindsight/internal/store"
)

// ─── Screens ─────────────────────────────────────────────────────────────────

type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenSearch
	ScreenSearchResults
	ScreenDecisions
	ScreenDecisionDetail
	ScreenTimeline
	ScreenPinned
)

// ─── Custom Messages ─────────────────────────────────────────────────────────

type dashboardMsg struct {
	stats     *store.Stats
	iteration *store.Iteration
	err       error
}

type searchResultsMsg struct {
	results []store.SearchResult
	query   string
	err     error
}

type decisionsMsg struct {
	decisions []store.Decision
	err       error
}

type decisionDetailMsg struct {
	decision *store.Decision
	commits  []store.Commit
	outgoing []store.DecisionLink
	incoming []store.DecisionLink
	err      error
}

type timelineMsg struct {
	events []store.Event
	err    error
}

type pinnedMsg struct {
	pins []store.PinnedItem
	err  error
}

// ─── Model ───────────────────────────────────────────────────────────────────

type Model struct {
	store      *store.Store
	Version    string
	Screen     Screen
	PrevScreen Screen
	Width      int
	Height     int
	Cursor     int
	Scroll     int

	// Error display
	ErrorMsg string

	// Dashboard
	Stats           *store.Stats
	ActiveIteration *store.Iteration

	// Search
	SearchInput   textinput.Model
	SearchQuery   string
	SearchResults []store.SearchResult

	// Decisions
	Decisions []store.Decision

	// Decision detail
	SelectedDecision *store.Decision
	LinkedCommits    []store.Commit
	OutgoingLinks    []store.DecisionLink
	IncomingLinks    []store.DecisionLink
	DetailScroll     int

	// Timeline
	Events []store.Event

	// Pinned items
	Pins []store.PinnedItem
}

// New creates a new TUI model connected to the given store.
func New(s *store.Store, version string) Model {
	ti := textinput.New()
	ti.Placeholder = "Search decisions and commits..."
	ti.CharLimit = 256
	ti.Width = 60

	return Model{
		store:       s,
		Version:     version,
		Screen:      ScreenDashboard,
		SearchInput: ti,
	}
}

// Init loads initial data (stats for the dashboard).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadDashboard(m.store),
		tea.EnterAltScreen,
	)
}

// ─── Commands (data loading) ─────────────────────────────────────────────────

func loadDashboard(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		stats, err := s.GetStats()
		if err != nil {
			return dashboardMsg{err: err}
		}
		iteration, err := s.ActiveIteration()
		return dashboardMsg{stats: stats, iteration: iteration, err: err}
	}
}

func searchMemory(s *store.Store, query string) tea.Cmd {
	return func() tea.Msg {
		results, err := s.Search(query, store.SearchOptions{})
		return searchResultsMsg{results: results, query: query, err: err}
	}
}

func loadDecisions(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		decisions, err := s.Decisions(store.DecisionFilter{Limit: 100})
		return decisionsMsg{decisions: decisions, err: err}
	}
}

func loadDecisionDetail(s *store.Store, id int64) tea.Cmd {
	return func() tea.Msg {
		d, err := s.GetDecision(id)
		if err != nil {
			return decisionDetailMsg{err: err}
		}
		commits, err := s.CommitsForDecision(id)
		if err != nil {
			return decisionDetailMsg{err: err}
		}
		outgoing, incoming, err := s.DecisionLinks(id)
		return decisionDetailMsg{decision: d, commits: commits, outgoing: outgoing, incoming: incoming, err: err}
	}
}

func loadTimeline(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		events, err := s.Timeline(nil, "", 100)
		return timelineMsg{events: events, err: err}
	}
}

func loadPinned(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		pins, err := s.PinnedItems("")
		return pinnedMsg{pins: pins, err: err}
	}
}
