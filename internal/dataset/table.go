package dataset

import (
	"fmt"
)

// Table is one named rectangular dataset: ordered columns over subject-visit
// rows. Cells absent from a row read back as missing.
type Table struct {
	columns []string
	rows    []map[string]Cell
}

// NewTable creates an empty table with the given column order.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{columns: cols}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the table has a column named name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.columns {
		if c == name {
			return true
		}
	}
	return false
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// AppendRow adds a row. Values for columns the table does not declare are
// ignored; declared columns absent from values read back as missing.
func (t *Table) AppendRow(values map[string]Cell) {
	row := make(map[string]Cell, len(t.columns))
	for _, c := range t.columns {
		if v, ok := values[c]; ok {
			row[c] = v
		}
	}
	t.rows = append(t.rows, row)
}

// Cell returns the value at row i, column name. Out-of-range rows and
// unknown columns read as missing.
func (t *Table) Cell(i int, name string) Cell {
	if i < 0 || i >= len(t.rows) {
		return Missing()
	}
	return t.rows[i][name]
}

// SetCell writes the value at row i, column name.
func (t *Table) SetCell(i int, name string, v Cell) error {
	if i < 0 || i >= len(t.rows) {
		return fmt.Errorf("row index %d out of range (table has %d rows)", i, len(t.rows))
	}
	if !t.HasColumn(name) {
		return fmt.Errorf("table has no column %s", name)
	}
	t.rows[i][name] = v
	return nil
}

// Column returns the values of a column in row order.
func (t *Table) Column(name string) ([]Cell, error) {
	if !t.HasColumn(name) {
		return nil, fmt.Errorf("table has no column %s", name)
	}
	out := make([]Cell, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[name]
	}
	return out, nil
}

// SetColumn replaces an existing column's values. The slice length must
// match the row count.
func (t *Table) SetColumn(name string, values []Cell) error {
	if !t.HasColumn(name) {
		return fmt.Errorf("table has no column %s", name)
	}
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %s has %d values for %d rows", name, len(values), len(t.rows))
	}
	for i := range t.rows {
		t.rows[i][name] = values[i]
	}
	return nil
}

// AddColumnAfter adds a new column positioned directly after the named
// column (or at the end when after is blank), filled with values.
func (t *Table) AddColumnAfter(after, name string, values []Cell) error {
	if t.HasColumn(name) {
		return fmt.Errorf("table already has column %s", name)
	}
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %s has %d values for %d rows", name, len(values), len(t.rows))
	}

	pos := len(t.columns)
	if after != "" {
		found := false
		for i, c := range t.columns {
			if c == after {
				pos = i + 1
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("table has no column %s", after)
		}
	}

	cols := make([]string, 0, len(t.columns)+1)
	cols = append(cols, t.columns[:pos]...)
	cols = append(cols, name)
	cols = append(cols, t.columns[pos:]...)
	t.columns = cols

	for i := range t.rows {
		t.rows[i][name] = values[i]
	}
	return nil
}

// RemoveColumn drops a column and its values.
func (t *Table) RemoveColumn(name string) error {
	if !t.HasColumn(name) {
		return fmt.Errorf("table has no column %s", name)
	}
	cols := t.columns[:0]
	for _, c := range t.columns {
		if c != name {
			cols = append(cols, c)
		}
	}
	t.columns = cols
	for i := range t.rows {
		delete(t.rows[i], name)
	}
	return nil
}

// Select returns a new table holding only the named columns, in the given
// order, with all rows copied.
func (t *Table) Select(names []string) (*Table, error) {
	for _, n := range names {
		if !t.HasColumn(n) {
			return nil, fmt.Errorf("table has no column %s", n)
		}
	}
	out := NewTable(names...)
	for _, row := range t.rows {
		values := make(map[string]Cell, len(names))
		for _, n := range names {
			values[n] = row[n]
		}
		out.AppendRow(values)
	}
	return out, nil
}

// FilterRows returns a new table holding the rows for which keep is true.
// The mask length must match the row count.
func (t *Table) FilterRows(keep []bool) (*Table, error) {
	if len(keep) != len(t.rows) {
		return nil, fmt.Errorf("mask has %d entries for %d rows", len(keep), len(t.rows))
	}
	out := NewTable(t.columns...)
	for i, row := range t.rows {
		if keep[i] {
			out.AppendRow(row)
		}
	}
	return out, nil
}

// Copy returns an independent deep copy: mutating the copy never affects the
// source.
func (t *Table) Copy() *Table {
	out := NewTable(t.columns...)
	out.rows = make([]map[string]Cell, len(t.rows))
	for i, row := range t.rows {
		nr := make(map[string]Cell, len(row))
		for k, v := range row {
			nr[k] = v
		}
		out.rows[i] = nr
	}
	return out
}

// Equal reports whether two tables have identical columns, order and cell
// values.
func (t *Table) Equal(o *Table) bool {
	if t.NumColumns() != o.NumColumns() || t.NumRows() != o.NumRows() {
		return false
	}
	for i, c := range t.columns {
		if o.columns[i] != c {
			return false
		}
	}
	for i := range t.rows {
		for _, c := range t.columns {
			if !t.rows[i][c].Equal(o.rows[i][c]) {
				return false
			}
		}
	}
	return true
}
