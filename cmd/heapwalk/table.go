package main

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// table renders left-aligned text columns padded by display width, so
// names with wide runes keep the columns straight.
type table struct {
	header []string
	rows   [][]string
	// right marks numeric columns aligned to the right.
	right map[int]bool
}

func (t *table) add(cells ...string) { t.rows = append(t.rows, cells) }

func (t *table) widths() []int {
	w := make([]int, len(t.header))
	for i, h := range t.header {
		w[i] = runewidth.StringWidth(h)
	}
	for _, r := range t.rows {
		for i, c := range r {
			if i < len(w) {
				w[i] = max(w[i], runewidth.StringWidth(c))
			}
		}
	}
	return w
}

func (t *table) line(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		c := ""
		if i < len(cells) {
			c = cells[i]
		}
		if t.right[i] {
			parts[i] = runewidth.FillLeft(c, w)
		} else {
			parts[i] = runewidth.FillRight(c, w)
		}
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// write prints the header styled by hs, then every row.
func (t *table) write(w io.Writer, hs lipgloss.Style) error {
	widths := t.widths()
	if _, err := io.WriteString(w, hs.Render(t.line(t.header, widths))+"\n"); err != nil {
		return err
	}
	for _, r := range t.rows {
		if _, err := io.WriteString(w, t.line(r, widths)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// styles picks lipgloss styles; with colors off every style is plain.
type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
}

func newStyles(noColor bool) styles {
	if noColor {
		return styles{title: lipgloss.NewStyle(), header: lipgloss.NewStyle()}
	}
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")),
		header: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	}
}
