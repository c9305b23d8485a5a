package models

// Table is an in-memory tabular dataset. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable builds a Table, padding or trimming rows to the header width.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: append([]string(nil), header...), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, fitRow(r, len(header)))
	}
	return t
}

// ColumnIndex returns the index of col or -1.
func (t *Table) ColumnIndex(col string) int {
	for i, h := range t.Header {
		if h == col {
			return i
		}
	}
	return -1
}

// EnsureColumn returns the index of col, appending an empty column if needed.
func (t *Table) EnsureColumn(col string) int {
	if i := t.ColumnIndex(col); i >= 0 {
		return i
	}
	t.Header = append(t.Header, col)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Header) - 1
}

// Column returns every value of col, or nil if the column does not exist.
func (t *Table) Column(col string) []string {
	idx := t.ColumnIndex(col)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return NewTable(t.Header, t.Rows)
}

func fitRow(r []string, width int) []string {
	out := make([]string, width)
	copy(out, r)
	return out
}
