package clean

import (
	"strconv"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// Imputation strategies.
const (
	StrategyMean = "mean"
	StrategyMode = "mode"
)

// Imputation records what was filled into one column.
type Imputation struct {
	Column   string       `json:"column"`
	Kind     dataset.Kind `json:"kind"`
	Strategy string       `json:"strategy,omitempty"`
	Value    string       `json:"value,omitempty"`
	Filled   int          `json:"filled"`
	// Skipped is set when the column had absences but no present value to
	// derive a fill from.
	Skipped bool `json:"skipped,omitempty"`
}

// Impute fills absent cells per column: numeric columns get the mean of
// their present values, every other kind gets the most frequent present
// value. Fill values are derived from d before any cell is replaced. Columns
// without absences are not reported.
func Impute(d *dataset.Dataset, log *zap.Logger) (*dataset.Dataset, []Imputation) {
	if log == nil {
		log = zap.NewNop()
	}
	out := d.Clone()
	kinds := d.Kinds()
	var report []Imputation
	for j, name := range d.Columns {
		missing := 0
		for _, row := range d.Rows {
			if dataset.IsMissing(row[j]) {
				missing++
			}
		}
		if missing == 0 {
			continue
		}
		imp := Imputation{Column: name, Kind: kinds[j]}
		switch kinds[j] {
		case dataset.KindEmpty:
			imp.Skipped = true
		case dataset.KindNumeric:
			imp.Strategy = StrategyMean
			mean, err := stats.Mean(analysis.PresentFloats(d, name))
			if err != nil {
				imp.Skipped = true
				break
			}
			imp.Value = strconv.FormatFloat(mean, 'f', -1, 64)
		default:
			imp.Strategy = StrategyMode
			cells, _ := d.Column(name)
			imp.Value, _ = analysis.Mode(cells)
		}
		if !imp.Skipped {
			for _, row := range out.Rows {
				if dataset.IsMissing(row[j]) {
					row[j] = imp.Value
					imp.Filled++
				}
			}
		}
		log.Debug("imputed column",
			zap.String("column", name),
			zap.String("kind", string(imp.Kind)),
			zap.String("strategy", imp.Strategy),
			zap.String("value", imp.Value),
			zap.Int("filled", imp.Filled),
			zap.Bool("skipped", imp.Skipped))
		report = append(report, imp)
	}
	return out, report
}
