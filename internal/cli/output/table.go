package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column is one fixed-width table column
type Column struct {
	Header string
	// Width pads values to at least this many cells; 0 means no padding
	Width int
	// Truncate cuts values longer than Width
	Truncate bool
	// Right aligns values to the right
	Right bool
}

// Table formats rows into fixed-width lines
type Table struct {
	Columns []Column
}

// NewTable creates a table with the given columns
func NewTable(columns ...Column) *Table {
	return &Table{Columns: columns}
}

// Header returns the formatted header line
func (t *Table) Header() string {
	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c.Header
	}
	return t.Row(headers...)
}

// Row returns one formatted line. Missing values are blank.
func (t *Table) Row(values ...string) string {
	cells := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		var v string
		if i < len(values) {
			v = values[i]
		}
		cells[i] = c.format(v)
	}
	return strings.TrimRight(strings.Join(cells, " "), " ")
}

func (c Column) format(v string) string {
	if c.Width <= 0 {
		return v
	}
	if c.Truncate {
		v = truncate(v, c.Width)
	}
	gap := c.Width - lipgloss.Width(v)
	if gap <= 0 {
		return v
	}
	if c.Right {
		return strings.Repeat(" ", gap) + v
	}
	return v + strings.Repeat(" ", gap)
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	var b strings.Builder
	used := 0
	for _, r := range s {
		w := lipgloss.Width(string(r))
		if used+w > width {
			break
		}
		b.WriteRune(r)
		used += w
	}
	return b.String()
}

// Print writes the header followed by each row. An empty rows slice
// prints only the header.
func (p *Printer) Print(t *Table, rows [][]string) {
	p.Println(t.Header())
	for _, row := range rows {
		p.Println(t.Row(row...))
	}
}
