package clean

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// Default policy parameters.
const (
	DefaultZThreshold    = 3.0
	DefaultIQRMultiplier = 1.5
)

// Policy decides which values of one numeric column are outliers.
type Policy interface {
	Name() string
	// Flag returns one flag per value; absent values (present[i] false) are
	// never flagged.
	Flag(vals []float64, present []bool) []bool
}

// ZScore flags values whose population z-score exceeds Threshold in
// absolute value. A column with zero spread flags nothing.
type ZScore struct {
	Threshold float64
}

func (ZScore) Name() string { return "zscore" }

func (z ZScore) Flag(vals []float64, present []bool) []bool {
	thr := z.Threshold
	if thr <= 0 {
		thr = DefaultZThreshold
	}
	flags := make([]bool, len(vals))
	xs := collect(vals, present)
	if len(xs) == 0 {
		return flags
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	if std == 0 || math.IsNaN(std) {
		return flags
	}
	for i, v := range vals {
		if present[i] && math.Abs((v-mean)/std) > thr {
			flags[i] = true
		}
	}
	return flags
}

// IQR flags values outside [Q1-m*IQR, Q3+m*IQR] with linearly interpolated
// quartiles.
type IQR struct {
	Multiplier float64
}

func (IQR) Name() string { return "iqr" }

func (q IQR) Flag(vals []float64, present []bool) []bool {
	flags := make([]bool, len(vals))
	lo, hi, ok := q.Fences(collect(vals, present))
	if !ok {
		return flags
	}
	for i, v := range vals {
		if present[i] && (v < lo || v > hi) {
			flags[i] = true
		}
	}
	return flags
}

// Fences returns the lower and upper bounds of the non-outlier range.
func (q IQR) Fences(xs []float64) (lo, hi float64, ok bool) {
	if len(xs) == 0 {
		return 0, 0, false
	}
	m := q.Multiplier
	if m <= 0 {
		m = DefaultIQRMultiplier
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	q1 := analysis.Quantile(sorted, 0.25)
	q3 := analysis.Quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - m*iqr, q3 + m*iqr, true
}

func collect(vals []float64, present []bool) []float64 {
	xs := make([]float64, 0, len(vals))
	for i, v := range vals {
		if present[i] {
			xs = append(xs, v)
		}
	}
	return xs
}

// PolicyByName resolves "zscore" or "iqr" (case-insensitive).
func PolicyByName(name string, zThreshold, iqrMultiplier float64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "zscore", "z", "z-score":
		return ZScore{Threshold: zThreshold}, nil
	case "iqr":
		return IQR{Multiplier: iqrMultiplier}, nil
	default:
		return nil, fmt.Errorf("unknown outlier policy %q (want zscore or iqr)", name)
	}
}

// OutlierMask marks every row flagged by the policy in at least one of the
// given columns. With no columns, all numeric columns are checked.
func OutlierMask(d *dataset.Dataset, p Policy, columns ...string) ([]bool, error) {
	if len(columns) == 0 {
		columns = d.NumericColumns()
	}
	mask := make([]bool, d.NumRows())
	for _, c := range columns {
		vals, present, err := d.Floats(c)
		if err != nil {
			return nil, err
		}
		for i, f := range p.Flag(vals, present) {
			if f {
				mask[i] = true
			}
		}
	}
	return mask, nil
}

// RemoveOutliers keeps only rows that pass the policy in every checked
// column and reports how many rows were dropped.
func RemoveOutliers(d *dataset.Dataset, p Policy, columns ...string) (*dataset.Dataset, int, error) {
	mask, err := OutlierMask(d, p, columns...)
	if err != nil {
		return nil, 0, err
	}
	keep := make([]bool, len(mask))
	removed := 0
	for i, out := range mask {
		keep[i] = !out
		if out {
			removed++
		}
	}
	return d.Filter(keep), removed, nil
}

// ColumnOutliers lists the row indices flagged in one column by each policy.
type ColumnOutliers struct {
	Column string `json:"column"`
	ZScore []int  `json:"zscore"`
	IQR    []int  `json:"iqr"`
}

// OutlierReport runs both policies over every numeric column.
func OutlierReport(d *dataset.Dataset, z ZScore, q IQR) []ColumnOutliers {
	var out []ColumnOutliers
	for _, c := range d.NumericColumns() {
		vals, present, _ := d.Floats(c)
		out = append(out, ColumnOutliers{
			Column: c,
			ZScore: indices(z.Flag(vals, present)),
			IQR:    indices(q.Flag(vals, present)),
		})
	}
	return out
}

func indices(flags []bool) []int {
	out := []int{}
	for i, f := range flags {
		if f {
			out = append(out, i)
		}
	}
	return out
}
