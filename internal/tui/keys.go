package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	if m.modal != modalNone {
		return m.handleModalKeys(msg)
	}

	switch msg.String() {
	case "tab":
		m.setFocus((m.focus + 1) % (fieldList + 1))
		return m, nil
	case "shift+tab":
		m.setFocus((m.focus + fieldList) % (fieldList + 1))
		return m, nil
	case "up", "ctrl+p":
		m.moveCursor(-1)
		return m, nil
	case "down", "ctrl+n":
		m.moveCursor(1)
		return m, nil
	case "pgup":
		m.moveCursor(-m.pageSize)
		return m, nil
	case "pgdown":
		m.moveCursor(m.pageSize)
		return m, nil
	case "enter":
		m.requestDetail()
		return m, nil
	}

	if m.focus == fieldList {
		return m.handleListKeys(msg)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	m.searchIfChanged()
	return m, cmd
}

// handleListKeys handles keys while the result list has focus, where
// printable keys are commands rather than search text.
func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		m.setFocus(fieldDept)
	case "k":
		m.moveCursor(-1)
	case "j":
		m.moveCursor(1)
	case "home", "g":
		m.moveCursor(-len(m.rows))
	case "end", "G":
		m.moveCursor(len(m.rows))
	case "?":
		m.openModal(modalHelp, "Keys", helpText)
	}
	return m, nil
}

func (m *Model) requestDetail() {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return
	}
	m.detailPending = true
	m.requests.Detail(m.rows[m.cursor].ClassID)
}

func (m Model) handleModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter", "q", " ":
		m.closeModal()
	case "up", "k":
		m.modalScroll--
		m.clampModalScroll()
	case "down", "j":
		m.modalScroll++
		m.clampModalScroll()
	case "pgup":
		m.modalScroll -= m.modalVisibleLines()
		m.clampModalScroll()
	case "pgdown":
		m.modalScroll += m.modalVisibleLines()
		m.clampModalScroll()
	}
	return m, nil
}

const helpText = `Tab / Shift+Tab   move between search fields and the class list
Up / Down         move the selection
PgUp / PgDn       move the selection a page
Enter             show details for the selected class
Esc               return to the search fields (list) or close a dialog
q                 quit (list)
Ctrl+C            quit`
