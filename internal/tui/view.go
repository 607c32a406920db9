package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgAlt    = lipgloss.AdaptiveColor{Light: "#f0f0f0", Dark: "#181818"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"})

	focusedLabelStyle = lipgloss.NewStyle().
				Bold(true)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	// Cursor row: subtle lighter background, bold when the list has focus
	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	altRowStyle = lipgloss.NewStyle().
			Background(bgAlt)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	loadingStyle = lipgloss.NewStyle().
			Italic(true).
			Background(bgBase)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(bgBase)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)

	errorTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#aa0000", Dark: "#ff5555"})
)

// labelWidth is the width of the "Number: " style input labels.
const labelWidth = 8

// chromeLines is everything on screen besides the result rows: title bar,
// four inputs, blank line, table header, separator, and footer.
const chromeLines = 1 + numInputs + 1 + 1 + 1 + 1

func (m Model) renderView() string {
	var b strings.Builder
	b.WriteString(m.titleBarView())
	b.WriteString("\n")
	b.WriteString(m.inputsView())
	b.WriteString("\n")
	b.WriteString(m.tableView())
	b.WriteString(m.footerView())
	return b.String()
}

func (m Model) titleBarView() string {
	title := "regcat"
	if m.version != "" {
		title += " " + m.version
	}
	if m.server != "" {
		title += " | " + m.server
	}
	return titleBarStyle.Width(m.width).Render(clip(title, max(m.width-2, 1)))
}

func (m Model) inputsView() string {
	var b strings.Builder
	for i := range m.inputs {
		label := fitWidth(fieldLabels[i]+":", labelWidth)
		if field(i) == m.focus {
			label = focusedLabelStyle.Render(label)
		} else {
			label = labelStyle.Render(label)
		}
		b.WriteString(label)
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) tableView() string {
	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(fitWidth(rowHeader, m.width)))
	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	end := min(m.scrollOffset+m.pageSize, len(m.rows))
	used := 0
	for i := m.scrollOffset; i < end; i++ {
		line := fitWidth(clip(FormatRow(m.rows[i]), m.width), m.width)
		switch {
		case i == m.cursor:
			style := cursorRowStyle
			if m.focus == fieldList {
				style = style.Bold(true)
			}
			line = style.Render(line)
		case i%2 == 1:
			line = altRowStyle.Render(line)
		default:
			line = normalRowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
		used++
	}

	if len(m.rows) == 0 && !m.searching {
		b.WriteString(loadingStyle.Render(fitWidth("No classes match.", m.width)))
		b.WriteString("\n")
		used++
	}
	for ; used < m.pageSize; used++ {
		b.WriteString(normalRowStyle.Render(strings.Repeat(" ", m.width)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) footerView() string {
	status := fmt.Sprintf("%d classes", len(m.rows))
	if len(m.rows) == 1 {
		status = "1 class"
	}
	if len(m.rows) > 0 {
		status = fmt.Sprintf("%d/%s", m.cursor+1, status)
	}
	switch {
	case m.searching:
		status += " | searching..."
	case m.detailPending:
		status += " | loading details..."
	}
	hints := "tab: next field | enter: details | ?: help (list) | ctrl+c: quit"
	return footerStyle.Width(m.width).Render(clip(status+" | "+hints, max(m.width-2, 1)))
}

func (m Model) renderModal() string {
	if m.modal == modalNone {
		return ""
	}

	titleStyle := modalTitleStyle
	if m.modal == modalError {
		titleStyle = errorTitleStyle
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.modalTitle))
	b.WriteString("\n\n")

	lines := m.modalLines
	visible := m.modalVisibleLines()
	if len(lines) > visible {
		end := min(m.modalScroll+visible, len(lines))
		lines = lines[m.modalScroll:end]
	}
	b.WriteString(strings.Join(lines, "\n"))

	b.WriteString("\n\n")
	hint := "[Enter/Esc] close"
	if len(m.modalLines) > visible {
		hint = "[Up/Down] scroll  " + hint
	}
	b.WriteString(labelStyle.Render(hint))
	return b.String()
}

// overlayModal draws the active modal centered over background.
func (m Model) overlayModal(background string) string {
	content := m.renderModal()
	if content == "" {
		return background
	}

	modal := modalStyle.Render(content)
	bgLines := strings.Split(background, "\n")
	modalLines := strings.Split(modal, "\n")

	startLine := max((len(bgLines)-len(modalLines))/2, 0)
	modalWidth := lipgloss.Width(modal)
	leftPadding := max((m.width-modalWidth)/2, 0)

	for i, modalLine := range modalLines {
		lineIdx := startLine + i
		if lineIdx >= len(bgLines) {
			break
		}
		bgLine := bgLines[lineIdx]
		bgWidth := lipgloss.Width(bgLine)

		var composite strings.Builder
		if leftPadding > 0 {
			leftBg := ansi.Truncate(bgLine, leftPadding, "")
			composite.WriteString(leftBg)
			if w := lipgloss.Width(leftBg); w < leftPadding {
				composite.WriteString(strings.Repeat(" ", leftPadding-w))
			}
		}
		composite.WriteString(modalLine)
		if rightStart := leftPadding + modalWidth; rightStart < bgWidth {
			composite.WriteString(ansi.Cut(bgLine, rightStart, bgWidth))
		}
		bgLines[lineIdx] = composite.String()
	}

	return strings.Join(bgLines, "\n")
}
