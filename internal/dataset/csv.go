// Package dataset reads and writes the flat CSV tables produced by a
// collection run.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Table is a CSV file with its header kept in order.
type Table struct {
	Header  []string
	Records [][]string
}

// NewTable creates an empty table with the given columns.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// ReadTable reads a CSV file. The first row is treated as the header.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}
	return &Table{Header: records[0], Records: records[1:]}, nil
}

// WriteTable writes t to path, creating parent directories.
func WriteTable(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csv: creating directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create %s: %w", path, err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("csv: write %s: %w", path, err)
	}
	return f.Close()
}

// WriteCSV encodes t, header first.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	return cw.WriteAll(t.Records)
}

// FormatFloat renders a value the way every table in a run renders numbers.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
