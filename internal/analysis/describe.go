package analysis

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// NumericDescription mirrors the rows of a numeric describe table.
type NumericDescription struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// CategoricalDescription summarizes a text column.
type CategoricalDescription struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
	Unique int    `json:"unique"`
	Top    string `json:"top"`
	Freq   int    `json:"freq"`
}

// Description holds per-column summaries split by kind.
type Description struct {
	Numeric     []NumericDescription     `json:"numeric,omitempty"`
	Categorical []CategoricalDescription `json:"categorical,omitempty"`
}

// Describe computes descriptive statistics for every numeric and
// categorical column. Std is the sample standard deviation.
func Describe(d *dataset.Dataset) *Description {
	out := &Description{}
	for j, kind := range d.Kinds() {
		name := d.Columns[j]
		switch kind {
		case dataset.KindNumeric:
			vals := PresentFloats(d, name)
			out.Numeric = append(out.Numeric, describeNumeric(name, vals))
		case dataset.KindCategorical, dataset.KindDatetime:
			cells, _ := d.Column(name)
			out.Categorical = append(out.Categorical, describeCategorical(name, cells))
		}
	}
	return out
}

func describeNumeric(name string, vals []float64) NumericDescription {
	nd := NumericDescription{Column: name, Count: len(vals)}
	if len(vals) == 0 {
		nan := math.NaN()
		nd.Mean, nd.Std, nd.Min, nd.Q1, nd.Median, nd.Q3, nd.Max = nan, nan, nan, nan, nan, nan, nan
		return nd
	}
	data := stats.Float64Data(vals)
	nd.Mean, _ = stats.Mean(data)
	nd.Min, _ = stats.Min(data)
	nd.Max, _ = stats.Max(data)
	nd.Median, _ = stats.Median(data)
	if len(vals) > 1 {
		nd.Std, _ = stats.StandardDeviationSample(data)
	} else {
		nd.Std = math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	nd.Q1 = Quantile(sorted, 0.25)
	nd.Q3 = Quantile(sorted, 0.75)
	return nd
}

func describeCategorical(name string, cells []string) CategoricalDescription {
	cd := CategoricalDescription{Column: name}
	counts := map[string]int{}
	for _, c := range cells {
		if dataset.IsMissing(c) {
			continue
		}
		cd.Count++
		counts[c]++
	}
	cd.Unique = len(counts)
	cd.Top, cd.Freq = Mode(cells)
	return cd
}

// Mode returns the most frequent present value. Ties go to the value
// encountered first.
func Mode(cells []string) (string, int) {
	counts := map[string]int{}
	var order []string
	for _, c := range cells {
		if dataset.IsMissing(c) {
			continue
		}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}
	var top string
	best := 0
	for _, v := range order {
		if counts[v] > best {
			top, best = v, counts[v]
		}
	}
	return top, best
}

// PresentFloats returns the parsable values of a column in row order.
func PresentFloats(d *dataset.Dataset, name string) []float64 {
	vals, present, err := d.Floats(name)
	if err != nil {
		return nil
	}
	out := make([]float64, 0, len(vals))
	for i, ok := range present {
		if ok {
			out = append(out, vals[i])
		}
	}
	return out
}

// Quantile interpolates linearly between closest ranks of a sorted slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// WriteTable renders both describe tables to w.
func (ds *Description) WriteTable(w io.Writer) {
	if len(ds.Numeric) > 0 {
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max"})
		for _, n := range ds.Numeric {
			tw.Append([]string{
				n.Column, strconv.Itoa(n.Count), fmtFloat(n.Mean), fmtFloat(n.Std), fmtFloat(n.Min),
				fmtFloat(n.Q1), fmtFloat(n.Median), fmtFloat(n.Q3), fmtFloat(n.Max),
			})
		}
		tw.Render()
	}
	if len(ds.Categorical) > 0 {
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"column", "count", "unique", "top", "freq"})
		for _, c := range ds.Categorical {
			tw.Append([]string{c.Column, strconv.Itoa(c.Count), strconv.Itoa(c.Unique), c.Top, strconv.Itoa(c.Freq)})
		}
		tw.Render()
	}
}

func fmtFloat(x float64) string {
	if math.IsNaN(x) {
		return "NaN"
	}
	return fmt.Sprintf("%.4g", x)
}
