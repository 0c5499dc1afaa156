package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindDatetime    Kind = "datetime"
	// KindEmpty marks a column without a single present value.
	KindEmpty Kind = "empty"
)

var (
	// ErrColumnNotFound is returned when a named column is absent.
	ErrColumnNotFound = errors.New("column not found")
	// ErrNoHeader is returned when the source has no header row.
	ErrNoHeader = errors.New("no header row")
)

// missingTokens are cell texts treated as absent values. The set matches
// the default null markers of common dataframe readers.
var missingTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsMissing reports whether a cell value counts as absent.
func IsMissing(v string) bool {
	_, ok := missingTokens[strings.TrimSpace(v)]
	return ok
}

// Dataset is an ordered set of records sharing one header. Cell text is kept
// verbatim as read from the source.
type Dataset struct {
	Name    string
	Columns []string
	Rows    [][]string
	// Format controls numeric parsing during kind inference.
	Format NumberFormat
}

// New builds a dataset from a header and rows. Rows are padded to the header width.
func New(name string, columns []string, rows [][]string) *Dataset {
	ds := &Dataset{Name: name, Columns: append([]string(nil), columns...)}
	for _, r := range rows {
		ds.appendRow(r)
	}
	return ds
}

func (d *Dataset) appendRow(rec []string) {
	row := make([]string, len(d.Columns))
	copy(row, rec)
	d.Rows = append(d.Rows, row)
}

// NumRows returns the record count.
func (d *Dataset) NumRows() int { return len(d.Rows) }

// NumCols returns the column count.
func (d *Dataset) NumCols() int { return len(d.Columns) }

// Index returns the position of a column or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether every named column exists.
func (d *Dataset) Has(names ...string) bool {
	for _, n := range names {
		if d.Index(n) < 0 {
			return false
		}
	}
	return true
}

// Missing returns the subset of names that are not columns of d.
func (d *Dataset) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if d.Index(n) < 0 {
			out = append(out, n)
		}
	}
	return out
}

// Column returns a copy of the named column's cells.
func (d *Dataset) Column(name string) ([]string, error) {
	j := d.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	out := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row[j]
	}
	return out, nil
}

// Floats parses the named column as numbers. present[i] is false for
// missing or unparsable cells.
func (d *Dataset) Floats(name string) (vals []float64, present []bool, err error) {
	j := d.Index(name)
	if j < 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	vals = make([]float64, len(d.Rows))
	present = make([]bool, len(d.Rows))
	for i, row := range d.Rows {
		if IsMissing(row[j]) {
			continue
		}
		if x, ok := ParseNumeric(row[j], d.Format); ok {
			vals[i] = x
			present[i] = true
		}
	}
	return vals, present, nil
}

// Times parses the named column as dates. Unparsable or missing cells yield
// the zero time.
func (d *Dataset) Times(name string) ([]time.Time, error) {
	cells, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(cells))
	for i, c := range cells {
		if IsMissing(c) {
			continue
		}
		if t, ok := ParseTime(strings.TrimSpace(c)); ok {
			out[i] = t
		}
	}
	return out, nil
}

// AddColumn appends a column, replacing an existing one with the same name.
func (d *Dataset) AddColumn(name string, values []string) error {
	if len(values) != len(d.Rows) {
		return fmt.Errorf("add column %s: %d values for %d rows", name, len(values), len(d.Rows))
	}
	if j := d.Index(name); j >= 0 {
		for i := range d.Rows {
			d.Rows[i][j] = values[i]
		}
		return nil
	}
	d.Columns = append(d.Columns, name)
	for i := range d.Rows {
		d.Rows[i] = append(d.Rows[i], values[i])
	}
	return nil
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{Name: d.Name, Columns: append([]string(nil), d.Columns...), Format: d.Format}
	out.Rows = make([][]string, len(d.Rows))
	for i, r := range d.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// Filter returns a copy holding only the rows where keep[i] is true.
func (d *Dataset) Filter(keep []bool) *Dataset {
	out := &Dataset{Name: d.Name, Columns: append([]string(nil), d.Columns...), Format: d.Format}
	for i, r := range d.Rows {
		if i < len(keep) && keep[i] {
			out.Rows = append(out.Rows, append([]string(nil), r...))
		}
	}
	return out
}

// RowKey returns a string identifying the row's full content. Missing tokens
// compare equal to each other.
func RowKey(row []string) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if IsMissing(v) {
			b.WriteByte('\x00')
			continue
		}
		b.WriteString(v)
	}
	return b.String()
}

// DuplicateCount counts rows that exactly repeat an earlier row.
func (d *Dataset) DuplicateCount() int {
	seen := make(map[string]struct{}, len(d.Rows))
	n := 0
	for _, r := range d.Rows {
		k := RowKey(r)
		if _, ok := seen[k]; ok {
			n++
			continue
		}
		seen[k] = struct{}{}
	}
	return n
}

// MissingCount counts absent cells across all columns.
func (d *Dataset) MissingCount() int {
	n := 0
	for _, r := range d.Rows {
		for _, v := range r {
			if IsMissing(v) {
				n++
			}
		}
	}
	return n
}
