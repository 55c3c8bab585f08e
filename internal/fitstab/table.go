// Package fitstab reads FITS binary tables into column vectors for the
// plotting stage. Tables arrive from the external table tool with schemas
// the pipeline does not control, so columns are discovered from the table
// header rather than declared up front.
package fitstab

import (
	"fmt"
	"os"
	"strings"

	"github.com/astrogo/fitsio"
)

// Table holds one FITS binary table fully decoded into memory: column
// names in file order plus typed vectors per column. Pipeline tables are
// small (one row per monitored source), so eager decoding is fine.
type Table struct {
	names   []string
	numbers map[string][]float64
	strs    map[string][]string
	nrows   int
}

// Read loads the first binary table HDU found in the file.
func Read(path string) (*Table, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("fits open %s: %w", path, err)
	}
	defer f.Close()

	var tbl *fitsio.Table
	for _, hdu := range f.HDUs() {
		if t, ok := hdu.(*fitsio.Table); ok {
			tbl = t
			break
		}
	}
	if tbl == nil {
		return nil, fmt.Errorf("%s: no binary table HDU", path)
	}

	return decode(tbl, path)
}

// decode scans every row of the table into per-column vectors.
func decode(tbl *fitsio.Table, path string) (*Table, error) {
	cols := tbl.Cols()
	nrows := int(tbl.NumRows())

	out := &Table{
		names:   make([]string, len(cols)),
		numbers: make(map[string][]float64, len(cols)),
		strs:    make(map[string][]string),
		nrows:   nrows,
	}

	// One scan target per column, typed from its TFORM letter.
	targets := make([]interface{}, len(cols))
	kinds := make([]byte, len(cols))
	for i, col := range cols {
		out.names[i] = col.Name
		kind, err := formatKind(col.Format)
		if err != nil {
			return nil, fmt.Errorf("%s: column %s: %w", path, col.Name, err)
		}
		kinds[i] = kind
		switch kind {
		case 'E':
			targets[i] = new(float32)
		case 'D':
			targets[i] = new(float64)
		case 'I':
			targets[i] = new(int16)
		case 'J':
			targets[i] = new(int32)
		case 'K':
			targets[i] = new(int64)
		case 'A':
			targets[i] = new(string)
		case 'L':
			targets[i] = new(bool)
		}
	}

	rows, err := tbl.Read(0, int64(nrows))
	if err != nil {
		return nil, fmt.Errorf("%s: read rows: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", path, err)
		}
		for i, col := range cols {
			switch kinds[i] {
			case 'E':
				out.numbers[col.Name] = append(out.numbers[col.Name], float64(*targets[i].(*float32)))
			case 'D':
				out.numbers[col.Name] = append(out.numbers[col.Name], *targets[i].(*float64))
			case 'I':
				out.numbers[col.Name] = append(out.numbers[col.Name], float64(*targets[i].(*int16)))
			case 'J':
				out.numbers[col.Name] = append(out.numbers[col.Name], float64(*targets[i].(*int32)))
			case 'K':
				out.numbers[col.Name] = append(out.numbers[col.Name], float64(*targets[i].(*int64)))
			case 'A':
				out.strs[col.Name] = append(out.strs[col.Name], *targets[i].(*string))
			case 'L':
				v := 0.0
				if *targets[i].(*bool) {
					v = 1.0
				}
				out.numbers[col.Name] = append(out.numbers[col.Name], v)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", path, err)
	}
	return out, nil
}

// formatKind reduces a TFORM value ("E", "1D", "24A") to its type letter.
func formatKind(format string) (byte, error) {
	f := strings.TrimSpace(format)
	if f == "" {
		return 0, fmt.Errorf("empty format")
	}
	kind := f[len(f)-1]
	switch kind {
	case 'E', 'D', 'I', 'J', 'K', 'A', 'L':
		return kind, nil
	default:
		return 0, fmt.Errorf("unsupported format %q", format)
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.nrows }

// Columns returns the column names in file order.
func (t *Table) Columns() []string { return append([]string(nil), t.names...) }

// Has reports whether the table carries the named column.
func (t *Table) Has(name string) bool {
	_, num := t.numbers[name]
	_, str := t.strs[name]
	return num || str
}

// Floats returns a numeric column as float64.
func (t *Table) Floats(name string) ([]float64, error) {
	col, ok := t.numbers[name]
	if !ok {
		return nil, fmt.Errorf("no numeric column %q", name)
	}
	return col, nil
}

// Strings returns a string column.
func (t *Table) Strings(name string) ([]string, error) {
	col, ok := t.strs[name]
	if !ok {
		return nil, fmt.Errorf("no string column %q", name)
	}
	return col, nil
}

// ColumnsWithPrefix returns the numeric columns whose names start with
// prefix, in file order. Joined flux tables carry one such column per epoch
// (peak_flux_1, peak_flux_2, ...).
func (t *Table) ColumnsWithPrefix(prefix string) []string {
	var out []string
	for _, name := range t.names {
		if _, ok := t.numbers[name]; ok && strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}
