package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column with a header and fixed width.
type Column struct {
	Name  string
	Width int
	Right bool
}

// Table renders fixed-width columnar output for session listings.
type Table struct {
	columns []Column
	rows    [][]string
	indent  string
}

// NewTable creates a table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{columns: columns, indent: "  "}
}

// AddRow appends one row; short rows are padded with empty cells.
func (t *Table) AddRow(values ...string) *Table {
	for len(values) < len(t.columns) {
		values = append(values, "")
	}
	t.rows = append(t.rows, values)
	return t
}

// Render returns the formatted table.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}
	var sb strings.Builder

	sb.WriteString(t.indent)
	for i, col := range t.columns {
		sb.WriteString(t.pad(Bold.Render(col.Name), col))
		if i < len(t.columns)-1 {
			sb.WriteByte(' ')
		}
	}
	sb.WriteByte('\n')

	total := len(t.columns) - 1
	for _, col := range t.columns {
		total += col.Width
	}
	sb.WriteString(t.indent)
	sb.WriteString(Dim.Render(strings.Repeat("─", total)))
	sb.WriteByte('\n')

	for _, row := range t.rows {
		sb.WriteString(t.indent)
		for i, col := range t.columns {
			val := row[i]
			if lipgloss.Width(val) > col.Width && col.Width > 3 {
				val = truncate(val, col.Width-3) + "..."
			}
			sb.WriteString(t.pad(val, col))
			if i < len(t.columns)-1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// pad fills a cell to the column width, measuring display width so styled
// values line up with plain ones.
func (t *Table) pad(val string, col Column) string {
	gap := col.Width - lipgloss.Width(val)
	if gap <= 0 {
		return val
	}
	if col.Right {
		return strings.Repeat(" ", gap) + val
	}
	return val + strings.Repeat(" ", gap)
}

// truncate cuts a string to at most width display cells.
func truncate(s string, width int) string {
	var b strings.Builder
	for _, r := range s {
		if lipgloss.Width(b.String()+string(r)) > width {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
