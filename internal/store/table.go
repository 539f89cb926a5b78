package store

import (
	"fmt"
	"strings"

	"github.com/ppiankov/incidentlens/internal/model"
)

// Table is the in-memory dataset. It is immutable after construction and
// safe for concurrent readers without locking.
type Table struct {
	source  string
	columns []string
	lookup  map[string]int // model.ColumnKey(name) → column index
	rows    [][]any
}

// NewTable builds a table from a header row and data rows.
// Headers are sanitized (blank → "Unnamed: i", duplicates → "name.1"),
// short rows are padded with absent values and NaN/Inf become absent.
func NewTable(source string, header []string, rows [][]any) *Table {
	columns := sanitizeHeader(header)

	lookup := make(map[string]int, len(columns))
	for i, c := range columns {
		key := model.ColumnKey(c)
		if _, exists := lookup[key]; !exists {
			lookup[key] = i
		}
	}

	clean := make([][]any, 0, len(rows))
	for _, row := range rows {
		out := make([]any, len(columns))
		for i := range out {
			if i < len(row) {
				out[i] = cleanValue(row[i])
			}
		}
		clean = append(clean, out)
	}

	return &Table{
		source:  source,
		columns: columns,
		lookup:  lookup,
		rows:    clean,
	}
}

// Source returns where the table was loaded from
func (t *Table) Source() string {
	return t.source
}

// Columns returns a copy of the header names in file order
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Lookup resolves a column name case-insensitively
func (t *Table) Lookup(name string) (int, bool) {
	idx, ok := t.lookup[model.ColumnKey(name)]
	return idx, ok
}

// ColumnIndex resolves a column or returns a *model.ColumnNotFoundError
func (t *Table) ColumnIndex(name string) (int, error) {
	if idx, ok := t.Lookup(name); ok {
		return idx, nil
	}
	return -1, &model.ColumnNotFoundError{Column: name, Available: t.Columns()}
}

// ColumnName returns the header text for a column index
func (t *Table) ColumnName(idx int) string {
	return t.columns[idx]
}

// FindColumn returns the first candidate present in the table
func (t *Table) FindColumn(candidates []string) (int, bool) {
	for _, c := range candidates {
		if idx, ok := t.Lookup(c); ok {
			return idx, true
		}
	}
	return -1, false
}

// Value returns the cell at (row, col)
func (t *Table) Value(row, col int) any {
	return t.rows[row][col]
}

// UniqueValues returns the distinct present values of a column in
// first-seen order
func (t *Table) UniqueValues(column string) ([]any, error) {
	idx, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}

	seen := make(map[any]struct{})
	values := make([]any, 0)
	for _, row := range t.rows {
		v := row[idx]
		if v == nil {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values, nil
}

// All returns a view over every row
func (t *Table) All() View {
	rows := make([]int, len(t.rows))
	for i := range rows {
		rows[i] = i
	}
	return View{table: t, rows: rows}
}

func sanitizeHeader(header []string) []string {
	columns := make([]string, len(header))
	used := make(map[string]bool, len(header))
	next := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if used[name] {
			// suffixes skip names already present, so A, A.1, A gives A.2
			base := name
			n := next[base]
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if !used[name] {
					break
				}
			}
			next[base] = n
		}
		used[name] = true
		columns[i] = name
	}
	return columns
}

func cleanValue(v any) any {
	if model.IsAbsent(v) {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	return v
}
