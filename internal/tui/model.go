// Package tui provides the interactive terminal client for regcat.
//
// The bubbletea Update loop is the only goroutine that touches the model.
// Network round trips run on bridge workers; a poll tick drains their results
// back onto the loop, and the model applies them through the
// bridge.Presenter methods.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/wesm/regcat/internal/bridge"
	"github.com/wesm/regcat/internal/query"
)

// defaultPollInterval is how often results are drained when Options leaves it unset.
const defaultPollInterval = 100 * time.Millisecond

// Options configuration for TUI.
type Options struct {
	Version      string
	Server       string // host:port shown in the title bar
	PollInterval time.Duration
}

// Requester issues background requests and drains their results.
// *bridge.Bridge satisfies it.
type Requester interface {
	Search(criteria query.SearchCriteria) uint64
	Detail(classID int64) uint64
	Poll(p bridge.Presenter) int
}

// field is a focus target: one of the four search inputs or the result list.
type field int

const (
	fieldDept field = iota
	fieldNumber
	fieldArea
	fieldTitle
	fieldList
)

const numInputs = int(fieldList)

var fieldLabels = [numInputs]string{"Dept", "Number", "Area", "Title"}

// modalType represents the type of modal dialog.
type modalType int

const (
	modalNone modalType = iota
	modalDetail
	modalError
	modalHelp
)

// Model is the main TUI model following the Elm architecture.
type Model struct {
	requests     Requester
	version      string
	server       string
	pollInterval time.Duration

	// Search inputs
	inputs   [numInputs]textinput.Model
	focus    field
	criteria query.SearchCriteria // criteria of the last issued search

	// Result list
	rows         []query.ClassSummary
	cursor       int
	scrollOffset int
	pageSize     int

	// Outstanding work, for the footer indicator
	searching     bool
	detailPending bool

	// Modal state
	modal       modalType
	modalTitle  string
	modalLines  []string
	modalScroll int

	// Terminal dimensions
	width  int
	height int

	quitting bool
}

// Compile-time check.
var _ bridge.Presenter = (*Model)(nil)

// New creates a model that sends its requests through r.
func New(r Requester, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	m := Model{
		requests:     r,
		version:      opts.Version,
		server:       opts.Server,
		pollInterval: opts.PollInterval,
		pageSize:     20,
		searching:    true,
	}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = fieldLabels[i]
		ti.CharLimit = 100
		ti.Width = 30
		m.inputs[i] = ti
	}
	m.inputs[fieldDept].Focus()
	return m
}

// Init implements tea.Model. It issues the initial unfiltered search and
// starts the poll timer.
func (m Model) Init() tea.Cmd {
	m.requests.Search(m.criteria)
	return tea.Batch(textinput.Blink, pollTick(m.pollInterval))
}

// pollTickMsg drives draining of background results.
type pollTickMsg struct{}

func pollTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 0)
		m.height = max(msg.Height, 0)
		m.pageSize = max(m.height-chromeLines, 1)
		for i := range m.inputs {
			m.inputs[i].Width = max(m.width-labelWidth-2, 10)
		}
		if m.modal == modalDetail {
			m.clampModalScroll()
		}
		m.ensureCursorVisible()
		return m, nil

	case pollTickMsg:
		m.requests.Poll(&m)
		return m, pollTick(m.pollInterval)
	}

	// Cursor blink and other input housekeeping.
	if m.focus < fieldList {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

// ShowSummaries implements bridge.Presenter.
func (m *Model) ShowSummaries(rows []query.ClassSummary) {
	m.searching = false
	m.rows = rows
	m.cursor = 0
	m.scrollOffset = 0
}

// ShowDetail implements bridge.Presenter.
func (m *Model) ShowDetail(d *query.ClassDetail) {
	m.detailPending = false
	if d == nil {
		return
	}
	m.openModal(modalDetail, "Class Details", d.String())
}

// ShowError implements bridge.Presenter.
func (m *Model) ShowError(title, message string) {
	m.searching = false
	m.detailPending = false
	m.openModal(modalError, title, message)
}

func (m *Model) openModal(kind modalType, title, body string) {
	m.modal = kind
	m.modalTitle = title
	m.modalLines = wrapText(body, m.modalTextWidth())
	m.modalScroll = 0
}

func (m *Model) closeModal() {
	m.modal = modalNone
	m.modalTitle = ""
	m.modalLines = nil
	m.modalScroll = 0
}

// currentCriteria reads the four inputs.
func (m Model) currentCriteria() query.SearchCriteria {
	return query.NewSearchCriteria(
		m.inputs[fieldDept].Value(),
		m.inputs[fieldNumber].Value(),
		m.inputs[fieldArea].Value(),
		m.inputs[fieldTitle].Value(),
	)
}

// searchIfChanged issues a search when the inputs no longer match the last
// issued criteria.
func (m *Model) searchIfChanged() {
	c := m.currentCriteria()
	if c == m.criteria {
		return
	}
	m.criteria = c
	m.searching = true
	m.requests.Search(c)
}

func (m *Model) setFocus(f field) {
	if m.focus < fieldList {
		m.inputs[m.focus].Blur()
	}
	m.focus = f
	if f < fieldList {
		m.inputs[f].Focus()
	}
}

func (m *Model) ensureCursorVisible() {
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+m.pageSize {
		m.scrollOffset = m.cursor - m.pageSize + 1
	}
}

func (m *Model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.rows)-1)
	m.ensureCursorVisible()
}

// modalVisibleLines is how many body lines fit in the detail modal.
func (m Model) modalVisibleLines() int {
	if m.height == 0 {
		return 20
	}
	// Border, padding, title, and hint take eight lines.
	return max(m.height-8, 3)
}

func (m Model) modalTextWidth() int {
	if m.width == 0 {
		return 72
	}
	return max(min(m.width-8, 100), 20)
}

func (m *Model) clampModalScroll() {
	maxScroll := max(len(m.modalLines)-m.modalVisibleLines(), 0)
	m.modalScroll = min(max(m.modalScroll, 0), maxScroll)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}
	return m.overlayModal(m.renderView())
}
