package store

import "github.com/ppiankov/incidentlens/internal/model"

// View is a filtered selection of table rows. It holds row indexes into
// the parent table; the table itself is never copied or modified.
type View struct {
	table *Table
	rows  []int
}

// Table returns the underlying table
func (v View) Table() *Table {
	return v.table
}

// Len returns the number of selected rows
func (v View) Len() int {
	return len(v.rows)
}

// Value returns column col of the i-th selected row
func (v View) Value(i, col int) any {
	return v.table.rows[v.rows[i]][col]
}

// Where returns a narrower view with the rows for which keep returns true.
// keep receives positions within this view.
func (v View) Where(keep func(i int) bool) View {
	rows := make([]int, 0, len(v.rows))
	for i, r := range v.rows {
		if keep(i) {
			rows = append(rows, r)
		}
	}
	return View{table: v.table, rows: rows}
}

// Records materializes up to limit selected rows (limit < 0 = all)
func (v View) Records(limit int) []model.Record {
	n := len(v.rows)
	if limit >= 0 && limit < n {
		n = limit
	}

	columns := v.table.Columns()
	out := make([]model.Record, 0, n)
	for _, r := range v.rows[:n] {
		values := make([]any, len(columns))
		copy(values, v.table.rows[r])
		out = append(out, model.Record{Columns: columns, Values: values})
	}
	return out
}
