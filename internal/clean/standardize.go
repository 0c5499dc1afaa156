package clean

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// DateLayout is the canonical output format for standardised dates.
const DateLayout = "2006-01-02"

// StandardizeText trims and lower-cases the given columns, or every
// categorical column when none are named. Absent cells are left as is.
func StandardizeText(d *dataset.Dataset, columns ...string) (*dataset.Dataset, error) {
	if len(columns) == 0 {
		columns = d.CategoricalColumns()
	}
	out := d.Clone()
	for _, c := range columns {
		j := out.Index(c)
		if j < 0 {
			return nil, fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, c)
		}
		for _, row := range out.Rows {
			if dataset.IsMissing(row[j]) {
				continue
			}
			row[j] = strings.ToLower(strings.TrimSpace(row[j]))
		}
	}
	return out, nil
}

// DateColumns returns the columns whose name mentions "date".
func DateColumns(d *dataset.Dataset) []string {
	var out []string
	for _, c := range d.Columns {
		if strings.Contains(strings.ToLower(c), "date") {
			out = append(out, c)
		}
	}
	return out
}

// StandardizeDates rewrites date cells as YYYY-MM-DD in the given columns,
// or in every DateColumns entry when none are named. Unparsable cells become
// empty.
func StandardizeDates(d *dataset.Dataset, columns ...string) (*dataset.Dataset, error) {
	if len(columns) == 0 {
		columns = DateColumns(d)
	}
	out := d.Clone()
	for _, c := range columns {
		j := out.Index(c)
		if j < 0 {
			return nil, fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, c)
		}
		for _, row := range out.Rows {
			if t, ok := dataset.ParseTime(strings.TrimSpace(row[j])); ok {
				row[j] = t.Format(DateLayout)
				continue
			}
			row[j] = ""
		}
	}
	return out, nil
}
