package tui

import (
	"regexp"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/wesm/regcat/internal/bridge"
	"github.com/wesm/regcat/internal/query"
)

// ansiStart is the escape sequence prefix found in styled terminal output.
const ansiStart = "\x1b["

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// fakeRequester records requests and applies queued results on Poll.
type fakeRequester struct {
	searches []query.SearchCriteria
	details  []int64
	pending  []func(bridge.Presenter)
	polls    int
}

func (f *fakeRequester) Search(c query.SearchCriteria) uint64 {
	f.searches = append(f.searches, c)
	return uint64(len(f.searches))
}

func (f *fakeRequester) Detail(id int64) uint64 {
	f.details = append(f.details, id)
	return uint64(len(f.details))
}

func (f *fakeRequester) Poll(p bridge.Presenter) int {
	f.polls++
	n := len(f.pending)
	for _, fn := range f.pending {
		fn(p)
	}
	f.pending = nil
	return n
}

func (f *fakeRequester) deliver(fn func(bridge.Presenter)) {
	f.pending = append(f.pending, fn)
}

func (f *fakeRequester) lastSearch(t *testing.T) query.SearchCriteria {
	t.Helper()
	if len(f.searches) == 0 {
		t.Fatal("no search issued")
	}
	return f.searches[len(f.searches)-1]
}

// =============================================================================
// Test Fixtures
// =============================================================================

// TestModelBuilder helps construct Model instances for testing
type TestModelBuilder struct {
	rows   []query.ClassSummary
	width  int
	height int
	focus  field
}

// NewBuilder returns a builder for a 100x30 model with no rows.
func NewBuilder() *TestModelBuilder {
	return &TestModelBuilder{width: 100, height: 30}
}

// WithRows delivers rows as the first search result. With no arguments the
// model shows an empty result.
func (b *TestModelBuilder) WithRows(rows ...query.ClassSummary) *TestModelBuilder {
	b.rows = append([]query.ClassSummary{}, rows...)
	return b
}

func (b *TestModelBuilder) WithSize(width, height int) *TestModelBuilder {
	b.width = width
	b.height = height
	return b
}

func (b *TestModelBuilder) WithFocus(f field) *TestModelBuilder {
	b.focus = f
	return b
}

// Build returns the model and the fake that records its requests.
func (b *TestModelBuilder) Build() (Model, *fakeRequester) {
	req := &fakeRequester{}
	m := New(req, Options{Version: "test", Server: "localhost:5500"})
	m = applyMsg(m, tea.WindowSizeMsg{Width: b.width, Height: b.height})
	if b.rows != nil {
		m.ShowSummaries(b.rows)
	}
	m.setFocus(b.focus)
	return m, req
}

// standardRows is a small catalog listing used across tests.
func standardRows() []query.ClassSummary {
	return []query.ClassSummary{
		{ClassID: 10, Department: "COS", CourseNumber: "126", Area: "QR", Title: "General Computer Science"},
		{ClassID: 20, Department: "COS", CourseNumber: "333", Area: "", Title: "Advanced Programming Techniques"},
		{ClassID: 20, Department: "ELE", CourseNumber: "206", Area: "", Title: "Advanced Programming Techniques"},
		{ClassID: 50, Department: "ECO", CourseNumber: "100", Area: "SA", Title: "100% Effort"},
	}
}

func applyMsg(m Model, msg tea.Msg) Model {
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func keyType(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// typeText sends s one rune at a time.
func typeText(m Model, s string) Model {
	for _, r := range s {
		m = applyMsg(m, keyRunes(string(r)))
	}
	return m
}
