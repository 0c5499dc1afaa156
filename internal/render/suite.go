package render

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// Chart kinds understood by Suite.
const (
	KindHistogram = "histogram"
	KindBoxPlot   = "boxplot"
	KindCountPlot = "countplot"
	KindHeatmap   = "heatmap"
	KindScatter   = "scatter"
	KindPairPlot  = "pairplot"
)

// AllKinds lists every chart kind in drawing order.
var AllKinds = []string{KindHistogram, KindBoxPlot, KindCountPlot, KindHeatmap, KindScatter, KindPairPlot}

// MaxPairColumns caps the pair plot grid.
const MaxPairColumns = 6

// SuiteOptions selects what Suite draws.
type SuiteOptions struct {
	Kinds []string
	// ScatterX and ScatterY default to the first two numeric columns.
	ScatterX string
	ScatterY string
	Hue      string
	// Corr is reused for the heatmap when set.
	Corr *analysis.CorrMatrix
}

// SuiteResult lists written files and charts that were skipped.
type SuiteResult struct {
	Files   []string `json:"files"`
	Skipped []string `json:"skipped,omitempty"`
}

// ParseKinds splits a comma separated kind list. "all" or empty selects
// every kind.
func ParseKinds(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return append([]string(nil), AllKinds...), nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		k := strings.ToLower(strings.TrimSpace(part))
		if k == "" {
			continue
		}
		known := false
		for _, a := range AllKinds {
			if a == k {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown chart kind %q (valid: %s)", k, strings.Join(AllKinds, ", "))
		}
		out = append(out, k)
	}
	return out, nil
}

// Suite draws the requested chart kinds for every suitable column. Columns a
// chart cannot show are recorded in Skipped; other errors abort.
func (r *Renderer) Suite(d *dataset.Dataset, opt SuiteOptions) (*SuiteResult, error) {
	kinds := opt.Kinds
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	res := &SuiteResult{}
	add := func(label, path string, err error) error {
		if err == nil {
			res.Files = append(res.Files, path)
			return nil
		}
		if errors.Is(err, ErrNotPlottable) {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %v", label, err))
			r.log.Debug("chart skipped", zap.String("chart", label), zap.Error(err))
			return nil
		}
		return err
	}

	nums := d.NumericColumns()
	for _, kind := range kinds {
		switch kind {
		case KindHistogram:
			for _, c := range nums {
				p, err := r.Histogram(d, c, 0)
				if err := add("histogram "+c, p, err); err != nil {
					return res, err
				}
			}
		case KindBoxPlot:
			for _, c := range nums {
				p, err := r.BoxPlot(d, c)
				if err := add("boxplot "+c, p, err); err != nil {
					return res, err
				}
			}
		case KindCountPlot:
			for _, c := range d.CategoricalColumns() {
				p, err := r.CountPlot(d, c)
				if err := add("countplot "+c, p, err); err != nil {
					return res, err
				}
			}
		case KindHeatmap:
			cm := opt.Corr
			if cm == nil && len(nums) >= 2 {
				var err error
				if cm, err = analysis.Correlate(d); err != nil {
					return res, err
				}
			}
			p, err := r.Heatmap(cm)
			if err := add("heatmap", p, err); err != nil {
				return res, err
			}
		case KindScatter:
			x, y := opt.ScatterX, opt.ScatterY
			if x == "" && len(nums) > 0 {
				x = nums[0]
			}
			if y == "" {
				for _, c := range nums {
					if c != x {
						y = c
						break
					}
				}
			}
			if x == "" || y == "" {
				res.Skipped = append(res.Skipped, "scatter: needs two numeric columns")
				continue
			}
			p, err := r.Scatter(d, x, y, opt.Hue)
			if err := add("scatter", p, err); err != nil {
				return res, err
			}
		case KindPairPlot:
			cols := nums
			if len(cols) > MaxPairColumns {
				cols = cols[:MaxPairColumns]
			}
			p, err := r.PairPlot(d, cols...)
			if err := add("pairplot", p, err); err != nil {
				return res, err
			}
		default:
			return res, fmt.Errorf("unknown chart kind %q", kind)
		}
	}
	return res, nil
}
