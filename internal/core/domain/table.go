package domain

// Table is the in-memory, scope-restricted, type-coerced projection of a
// dataset snapshot. It is rebuilt per request and never persisted. Cell
// values are already coerced per the schema registry: float64 for numeric,
// time.Time for datetime, []string for list columns, nil for unparsable
// values.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) ColumnCount() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

func (t *Table) IsEmpty() bool {
	return t.RowCount() == 0
}

// Head returns up to n leading rows. The maps are shared, not copied; the
// table is request-scoped and treated as read-only by every consumer.
func (t *Table) Head(n int) []map[string]any {
	if t == nil || n <= 0 {
		return nil
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}
