package analysis

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
)

// DefaultCorrelationThreshold separates strong from weak relationships.
const DefaultCorrelationThreshold = 0.5

var (
	// ErrNotNumeric is returned when a numeric operation targets a text column.
	ErrNotNumeric = errors.New("column is not numeric")
	// ErrTooFewRows is returned when there are not enough records for the analysis.
	ErrTooFewRows = errors.New("too few rows")
)

// Relationship classes for a correlation coefficient.
const (
	StrongPositive = "strong positive"
	StrongNegative = "strong negative"
	Weak           = "weak"
)

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric
// columns. Values[i][j] is NaN when the pair has fewer than two complete
// observations or no spread.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
	// N[i][j] counts rows where both columns are present.
	N [][]int `json:"-"`
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"r"`
	N int     `json:"n"`
}

// Correlate computes pairwise Pearson correlations over the named columns, or
// over every numeric column when none are given. Each pair uses only rows
// where both values are present.
func Correlate(d *dataset.Dataset, columns ...string) (*CorrMatrix, error) {
	if len(columns) == 0 {
		columns = d.NumericColumns()
	}
	vals := make([][]float64, len(columns))
	pres := make([][]bool, len(columns))
	for i, c := range columns {
		k, ok := d.KindOf(c)
		if !ok {
			return nil, fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, c)
		}
		if k != dataset.KindNumeric {
			return nil, fmt.Errorf("%w: %s is %s", ErrNotNumeric, c, k)
		}
		vals[i], pres[i], _ = d.Floats(c)
	}
	n := len(columns)
	cm := &CorrMatrix{Columns: append([]string(nil), columns...), Values: make([][]float64, n), N: make([][]int, n)}
	for i := range cm.Values {
		cm.Values[i] = make([]float64, n)
		cm.N[i] = make([]int, n)
	}
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			x, y := completePairs(vals[a], pres[a], vals[b], pres[b])
			r := pearson(x, y)
			if a == b && !math.IsNaN(r) {
				r = 1
			}
			cm.Values[a][b], cm.Values[b][a] = r, r
			cm.N[a][b], cm.N[b][a] = len(x), len(x)
		}
	}
	return cm, nil
}

func completePairs(xv []float64, xp []bool, yv []float64, yp []bool) (x, y []float64) {
	for i := range xv {
		if xp[i] && yp[i] {
			x = append(x, xv[i])
			y = append(y, yv[i])
		}
	}
	return x, y
}

func pearson(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(x, y, nil)
	if math.IsInf(r, 0) {
		return math.NaN()
	}
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

// At returns r for two columns.
func (m *CorrMatrix) At(a, b string) (float64, bool) {
	ia, ib := m.index(a), m.index(b)
	if ia < 0 || ib < 0 {
		return math.NaN(), false
	}
	return m.Values[ia][ib], true
}

func (m *CorrMatrix) index(name string) int {
	for i, c := range m.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// TopPairs lists distinct column pairs ordered by |r|, strongest first.
// NaN pairs are omitted. limit <= 0 returns all.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	var pairs []PairCorr
	n := len(m.Columns)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := m.Values[i][j]
			if math.IsNaN(r) {
				continue
			}
			pc := PairCorr{A: m.Columns[i], B: m.Columns[j], R: r}
			if m.N != nil {
				pc.N = m.N[i][j]
			}
			pairs = append(pairs, pc)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// WriteCSV saves the matrix with a leading column of row labels.
func (m *CorrMatrix) WriteCSV(path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{""}, m.Columns...)); err != nil {
		return err
	}
	for i, row := range m.Values {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, m.Columns[i])
		for _, r := range row {
			rec = append(rec, formatR(r))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode matrix: %w", err)
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write correlation matrix: %w", err)
	}
	return nil
}

// WriteTable prints the matrix as a console table.
func (m *CorrMatrix) WriteTable(w io.Writer) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(append([]string{""}, m.Columns...))
	for i, row := range m.Values {
		rec := []string{m.Columns[i]}
		for _, r := range row {
			if math.IsNaN(r) {
				rec = append(rec, "NaN")
				continue
			}
			rec = append(rec, fmt.Sprintf("%.3f", r))
		}
		tw.Append(rec)
	}
	tw.Render()
}

func formatR(r float64) string {
	if math.IsNaN(r) {
		return ""
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Classify names the relationship implied by r. NaN counts as weak.
func Classify(r, threshold float64) string {
	if threshold <= 0 {
		threshold = DefaultCorrelationThreshold
	}
	switch {
	case r > threshold:
		return StrongPositive
	case r < -threshold:
		return StrongNegative
	default:
		return Weak
	}
}

// Relationship describes one column's correlation with a target.
type Relationship struct {
	Column string  `json:"column"`
	R      float64 `json:"r"`
	PValue float64 `json:"p_value"`
	N      int     `json:"n"`
	Class  string  `json:"class"`
}

// ClassifyTarget classifies every other column of the matrix against target.
// The p-value is informational and never changes the class.
func ClassifyTarget(m *CorrMatrix, target string, threshold float64) ([]Relationship, error) {
	ti := m.index(target)
	if ti < 0 {
		return nil, fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, target)
	}
	var out []Relationship
	for j, c := range m.Columns {
		if j == ti {
			continue
		}
		r := m.Values[ti][j]
		n := 0
		if m.N != nil {
			n = m.N[ti][j]
		}
		out = append(out, Relationship{
			Column: c,
			R:      r,
			PValue: PearsonPValue(r, n),
			N:      n,
			Class:  Classify(r, threshold),
		})
	}
	return out, nil
}

// PearsonPValue is the two-sided p-value of r over n paired observations
// under the Student t distribution with n-2 degrees of freedom.
func PearsonPValue(r float64, n int) float64 {
	if n < 3 || math.IsNaN(r) {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - dist.CDF(math.Abs(t)))
	if p < 0 {
		p = 0
	}
	return p
}
