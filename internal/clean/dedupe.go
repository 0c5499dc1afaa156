// Package clean holds the row- and cell-level repairs applied to a dataset
// before analysis: duplicate removal, imputation, format standardisation and
// outlier filtering. Every function returns a new dataset and leaves its
// input untouched.
package clean

import (
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// DropDuplicates keeps the first occurrence of every exact duplicate row and
// reports how many rows were removed.
func DropDuplicates(d *dataset.Dataset) (*dataset.Dataset, int) {
	seen := make(map[string]struct{}, d.NumRows())
	keep := make([]bool, d.NumRows())
	removed := 0
	for i, row := range d.Rows {
		k := dataset.RowKey(row)
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		keep[i] = true
	}
	return d.Filter(keep), removed
}
