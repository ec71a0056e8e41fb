package store

// Frame is a processed tabular dataset: named columns over numeric rows.
// Frames are kept in memory only and are never persisted with the run.
type Frame struct {
	Columns []string
	Rows    [][]float64
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Column returns the values of the named column, or false if it does not exist.
func (f *Frame) Column(name string) ([]float64, bool) {
	if f == nil {
		return nil, false
	}
	idx := -1
	for i, c := range f.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, 0, len(f.Rows))
	for _, row := range f.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		}
	}
	return out, true
}
