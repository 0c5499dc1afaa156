package cmd

import (
	"fmt"
	"math"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
)

var (
	corIngest    ingestFlags
	corTarget    string
	corThreshold float64
	corColumns   string
	corCSV       string
	corTop       int
	corHeatmap   bool
)

var correlateCmd = &cobra.Command{
	Use:   "correlate <file>",
	Short: "Pearson correlation matrix and target relationship classes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		d, err := corIngest.load(args[0])
		if err != nil {
			return err
		}
		m, err := analysis.Correlate(d, splitList(corColumns)...)
		if err != nil {
			return err
		}
		if len(m.Columns) < 2 {
			return fmt.Errorf("%w: need at least two numeric columns, found %d", analysis.ErrNotNumeric, len(m.Columns))
		}
		m.WriteTable(out)

		if corTop > 0 {
			fmt.Fprintln(out, "\nStrongest pairs:")
			for _, p := range m.TopPairs(corTop) {
				fmt.Fprintf(out, "  %s ~ %s: r=%.3f (n=%d)\n", p.A, p.B, p.R, p.N)
			}
		}

		if corTarget != "" {
			thr := corThreshold
			if thr <= 0 {
				thr = settings().CorrelationThreshold
			}
			rels, err := analysis.ClassifyTarget(m, corTarget, thr)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nRelationships with %s (|r| > %g):\n", corTarget, thr)
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Column", "r", "p-value", "n", "Relationship"})
			for _, r := range rels {
				table.Append([]string{r.Column, fmtStat(r.R, 3), fmtStat(r.PValue, 4), fmt.Sprint(r.N), r.Class})
			}
			table.Render()
		}

		if corCSV != "" {
			if err := m.WriteCSV(corCSV); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Wrote correlation matrix to %s\n", okMark, corCSV)
		}
		if corHeatmap {
			p, err := newRenderer("", "").Heatmap(m)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Wrote %s\n", okMark, p)
		}
		return nil
	},
}

func fmtStat(x float64, prec int) string {
	if math.IsNaN(x) {
		return "NaN"
	}
	return fmt.Sprintf("%.*f", prec, x)
}

func init() {
	rootCmd.AddCommand(correlateCmd)
	corIngest.bind(correlateCmd)
	correlateCmd.Flags().StringVarP(&corTarget, "target", "t", "", "classify every other column against this one")
	correlateCmd.Flags().Float64Var(&corThreshold, "threshold", 0, "strong relationship threshold (overrides config)")
	correlateCmd.Flags().StringVar(&corColumns, "columns", "", "comma-separated numeric columns (default all numeric)")
	correlateCmd.Flags().StringVar(&corCSV, "csv", "", "write the matrix to this CSV path")
	correlateCmd.Flags().IntVar(&corTop, "top", 0, "list the N strongest pairs")
	correlateCmd.Flags().BoolVar(&corHeatmap, "heatmap", false, "render a heatmap into the output directory")
}
