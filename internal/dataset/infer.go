package dataset

import (
	"strconv"
	"strings"
	"time"
)

// NumberFormat describes locale separators for numeric cells. The zero value
// accepts plain Go float syntax only, so "1,000" stays text.
type NumberFormat struct {
	Decimal   rune
	Thousands rune
}

// ParseNumeric parses a cell as a float honoring the given separators.
func ParseNumeric(s string, f NumberFormat) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "\u00A0", "")
	if raw == "" {
		return 0, false
	}
	if f.Thousands != 0 && f.Thousands != f.Decimal {
		raw = strings.ReplaceAll(raw, string(f.Thousands), "")
	}
	if f.Decimal != 0 && f.Decimal != '.' {
		raw = strings.ReplaceAll(raw, string(f.Decimal), ".")
	}
	x, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return x, true
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "01/02/2006", "02/01/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05", "1/2/2006",
	"02-Jan-2006", "2 Jan 2006", "Jan 2, 2006",
}

// ParseTime parses common date layouts. Month-first wins over day-first for
// ambiguous slash dates.
func ParseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Kinds infers the kind of every column. A column is numeric when every
// present cell parses as a number, datetime when every present cell parses as
// a date, and categorical otherwise.
func (d *Dataset) Kinds() []Kind {
	out := make([]Kind, len(d.Columns))
	for j := range d.Columns {
		out[j] = d.inferKind(j)
	}
	return out
}

// KindOf returns the inferred kind of the named column.
func (d *Dataset) KindOf(name string) (Kind, bool) {
	j := d.Index(name)
	if j < 0 {
		return "", false
	}
	return d.inferKind(j), true
}

func (d *Dataset) inferKind(j int) Kind {
	var nonNil, numCnt, dtCnt int
	for _, row := range d.Rows {
		v := row[j]
		if IsMissing(v) {
			continue
		}
		nonNil++
		v = strings.TrimSpace(v)
		if _, ok := ParseNumeric(v, d.Format); ok {
			numCnt++
			continue
		}
		if _, ok := ParseTime(v); ok {
			dtCnt++
		}
	}
	switch {
	case nonNil == 0:
		return KindEmpty
	case numCnt == nonNil:
		return KindNumeric
	case dtCnt == nonNil:
		return KindDatetime
	default:
		return KindCategorical
	}
}

// NumericColumns returns the names of numeric columns in header order.
func (d *Dataset) NumericColumns() []string {
	return d.columnsOfKind(KindNumeric)
}

// CategoricalColumns returns the names of categorical columns in header order.
func (d *Dataset) CategoricalColumns() []string {
	return d.columnsOfKind(KindCategorical)
}

func (d *Dataset) columnsOfKind(k Kind) []string {
	var out []string
	for j, kind := range d.Kinds() {
		if kind == k {
			out = append(out, d.Columns[j])
		}
	}
	return out
}
