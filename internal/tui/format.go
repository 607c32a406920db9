package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/wesm/regcat/internal/query"
)

// FormatRow renders a class summary as one fixed-layout list row: right
// aligned class id, department, course number, and area, then the title.
func FormatRow(s query.ClassSummary) string {
	return fmt.Sprintf("%5d %4s %6s %4s %s", s.ClassID, s.Department, s.CourseNumber, s.Area, s.Title)
}

// rowHeader labels the FormatRow columns.
var rowHeader = fmt.Sprintf("%5s %4s %6s %4s %s", "ID", "Dept", "Num", "Area", "Title")

// flatten keeps catalog text on one screen line.
var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", "", "\t", " ")

// fitWidth pads or cuts s to exactly width cells. s may already be styled.
func fitWidth(s string, width int) string {
	if w := ansi.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return ansi.Truncate(s, width, "")
}

// clip flattens s and shortens it to width cells, marking the cut with "...".
func clip(s string, width int) string {
	s = flatten.Replace(s)
	if width <= 3 {
		return ansi.Truncate(s, width, "")
	}
	return ansi.Truncate(s, width, "...")
}

// wrapText breaks text into lines of at most width cells for the modal body.
// Lines that already fit are kept verbatim so aligned help columns survive;
// longer ones are re-flowed on spaces, and a word wider than a whole line is
// split.
func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 80
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if runewidth.StringWidth(para) <= width {
			lines = append(lines, para)
			continue
		}

		var cur string
		for _, word := range strings.Fields(para) {
			for runewidth.StringWidth(word) > width {
				if cur != "" {
					lines = append(lines, cur)
					cur = ""
				}
				head := runewidth.Truncate(word, width, "")
				if head == "" {
					// A single rune wider than the line.
					_, size := utf8.DecodeRuneInString(word)
					head = word[:size]
				}
				lines = append(lines, head)
				word = word[len(head):]
			}
			switch {
			case word == "":
			case cur == "":
				cur = word
			case runewidth.StringWidth(cur)+1+runewidth.StringWidth(word) <= width:
				cur += " " + word
			default:
				lines = append(lines, cur)
				cur = word
			}
		}
		if cur != "" {
			lines = append(lines, cur)
		}
	}
	return lines
}
