package aggregate

// Table is a model × job matrix. Cells that were never set are absent, which
// is distinct from holding a zero value.
type Table[T any] struct {
	Models []string
	Jobs   []string

	cells [][]T
	set   [][]bool
	model map[string]int
	job   map[string]int
}

// NewTable creates a table with every cell absent.
func NewTable[T any](models, jobs []string) *Table[T] {
	t := &Table[T]{
		Models: append([]string(nil), models...),
		Jobs:   append([]string(nil), jobs...),
		cells:  make([][]T, len(models)),
		set:    make([][]bool, len(models)),
		model:  make(map[string]int, len(models)),
		job:    make(map[string]int, len(jobs)),
	}
	for i, m := range models {
		t.cells[i] = make([]T, len(jobs))
		t.set[i] = make([]bool, len(jobs))
		t.model[m] = i
	}
	for j, name := range jobs {
		t.job[name] = j
	}
	return t
}

// Set stores v at (model, job). Unknown models or jobs are ignored.
func (t *Table[T]) Set(model, job string, v T) {
	i, ok := t.model[model]
	if !ok {
		return
	}
	j, ok := t.job[job]
	if !ok {
		return
	}
	t.cells[i][j] = v
	t.set[i][j] = true
}

// Get returns the cell at (model, job) and whether it is present.
func (t *Table[T]) Get(model, job string) (T, bool) {
	var zero T
	i, ok := t.model[model]
	if !ok {
		return zero, false
	}
	j, ok := t.job[job]
	if !ok {
		return zero, false
	}
	return t.cells[i][j], t.set[i][j]
}

// At returns the cell at row i and column j.
func (t *Table[T]) At(i, j int) (T, bool) {
	return t.cells[i][j], t.set[i][j]
}

// Len returns the number of present cells.
func (t *Table[T]) Len() int {
	n := 0
	for _, row := range t.set {
		for _, ok := range row {
			if ok {
				n++
			}
		}
	}
	return n
}

// Map applies fn to every present cell, producing a table of the same shape.
func Map[T, U any](t *Table[T], fn func(T) U) *Table[U] {
	out := NewTable[U](t.Models, t.Jobs)
	for i := range t.cells {
		for j := range t.cells[i] {
			if t.set[i][j] {
				out.cells[i][j] = fn(t.cells[i][j])
				out.set[i][j] = true
			}
		}
	}
	return out
}
