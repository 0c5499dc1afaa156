package analysis

import (
	"fmt"
	"sort"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// GroupMean is the mean of a numeric column for one category value.
type GroupMean struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// GroupMeans averages value per distinct non-missing key, highest mean first.
// Rows missing either cell are ignored.
func GroupMeans(d *dataset.Dataset, key, value string) ([]GroupMean, error) {
	keys, err := d.Column(key)
	if err != nil {
		return nil, err
	}
	if k, _ := d.KindOf(value); k != dataset.KindNumeric {
		return nil, fmt.Errorf("%w: %s", ErrNotNumeric, value)
	}
	vals, present, _ := d.Floats(value)
	type acc struct {
		sum float64
		n   int
	}
	groups := map[string]*acc{}
	for i, k := range keys {
		if dataset.IsMissing(k) || !present[i] {
			continue
		}
		a := groups[k]
		if a == nil {
			a = &acc{}
			groups[k] = a
		}
		a.sum += vals[i]
		a.n++
	}
	out := make([]GroupMean, 0, len(groups))
	for k, a := range groups {
		out = append(out, GroupMean{Key: k, Count: a.n, Mean: a.sum / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mean == out[j].Mean {
			return out[i].Key < out[j].Key
		}
		return out[i].Mean > out[j].Mean
	})
	return out, nil
}

// ValueCounts counts non-missing values of a column, most frequent first.
func ValueCounts(d *dataset.Dataset, col string) ([]CategoryCount, error) {
	cells, err := d.Column(col)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, c := range cells {
		if !dataset.IsMissing(c) {
			counts[c]++
		}
	}
	return topValues(counts, len(counts)), nil
}

// DefaultTopCategories is how many values CountByYear keeps when top <= 0.
const DefaultTopCategories = 10

// YearCounts is a crosstab of row counts: category value by calendar year.
type YearCounts struct {
	Category string `json:"category"`
	Date     string `json:"date"`
	// Values are the kept category values in name order.
	Values []string `json:"values"`
	Years  []int    `json:"years"`
	// Counts[i][j] counts rows with Values[i] that started in Years[j].
	Counts [][]int `json:"counts"`
}

// CountByYear counts rows per category value and year of dateCol, keeping
// only the top most frequent values (ties by name). Rows missing either
// cell, or with an unparsable date, are not counted.
func CountByYear(d *dataset.Dataset, category, dateCol string, top int) (*YearCounts, error) {
	cats, err := d.Column(category)
	if err != nil {
		return nil, err
	}
	times, err := d.Times(dateCol)
	if err != nil {
		return nil, err
	}
	if top <= 0 {
		top = DefaultTopCategories
	}
	vc, _ := ValueCounts(d, category)
	if len(vc) > top {
		vc = vc[:top]
	}
	keep := make(map[string]bool, len(vc))
	for _, c := range vc {
		keep[c.Value] = true
	}

	counts := map[string]map[int]int{}
	yearSet := map[int]bool{}
	for i, c := range cats {
		if !keep[c] || times[i].IsZero() {
			continue
		}
		y := times[i].Year()
		if counts[c] == nil {
			counts[c] = map[int]int{}
		}
		counts[c][y]++
		yearSet[y] = true
	}
	if len(yearSet) == 0 {
		return nil, fmt.Errorf("%w: no dated %s values", ErrTooFewRows, category)
	}

	yc := &YearCounts{Category: category, Date: dateCol}
	for v := range counts {
		yc.Values = append(yc.Values, v)
	}
	sort.Strings(yc.Values)
	for y := range yearSet {
		yc.Years = append(yc.Years, y)
	}
	sort.Ints(yc.Years)
	yc.Counts = make([][]int, len(yc.Values))
	for i, v := range yc.Values {
		yc.Counts[i] = make([]int, len(yc.Years))
		for j, y := range yc.Years {
			yc.Counts[i][j] = counts[v][y]
		}
	}
	return yc, nil
}

// Max returns the largest cell count.
func (yc *YearCounts) Max() int {
	m := 0
	for _, row := range yc.Counts {
		for _, n := range row {
			if n > m {
				m = n
			}
		}
	}
	return m
}
