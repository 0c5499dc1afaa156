package cmd

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	cleanpkg "github.com/KaramelBytes/edaloom-cli/internal/clean"
)

var (
	outIngest     ingestFlags
	outZThreshold float64
	outMultiplier float64
	outRemove     string
	outOutput     string
	outShowRows   int
)

var outliersCmd = &cobra.Command{
	Use:   "outliers <file>",
	Short: "Report outlier rows per numeric column under both policies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		out := cmd.OutOrStdout()
		d, err := outIngest.load(path)
		if err != nil {
			return err
		}
		c := settings()
		z := cleanpkg.ZScore{Threshold: c.ZScoreThreshold}
		q := cleanpkg.IQR{Multiplier: c.IQRMultiplier}
		if outZThreshold > 0 {
			z.Threshold = outZThreshold
		}
		if outMultiplier > 0 {
			q.Multiplier = outMultiplier
		}

		var p cleanpkg.Policy
		if outRemove != "" {
			if p, err = cleanpkg.PolicyByName(outRemove, z.Threshold, q.Multiplier); err != nil {
				return err
			}
		}

		report := cleanpkg.OutlierReport(d, z, q)
		if len(report) == 0 {
			fmt.Fprintf(out, "%s No numeric columns\n", warnMark)
			return nil
		}
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Column", fmt.Sprintf("Z-score (|z|>%g)", z.Threshold), fmt.Sprintf("IQR (x%g)", q.Multiplier)})
		for _, r := range report {
			table.Append([]string{r.Column, rowList(r.ZScore, outShowRows), rowList(r.IQR, outShowRows)})
		}
		table.Render()

		if outRemove == "" {
			return nil
		}
		kept, n, err := cleanpkg.RemoveOutliers(d, p)
		if err != nil {
			return err
		}
		dest := outOutput
		if dest == "" {
			dest = derivedPath(path, "no_outliers", ".csv")
		}
		if err := writeDataset(kept, dest); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(out, "%s Removed %d rows (%s), wrote %d rows to %s\n", okMark, n, p.Name(), kept.NumRows(), dest)
		return nil
	},
}

// rowList prints up to limit row indices followed by the total.
func rowList(idx []int, limit int) string {
	if len(idx) == 0 {
		return "-"
	}
	parts := make([]string, 0, limit)
	for i, v := range idx {
		if limit > 0 && i >= limit {
			break
		}
		parts = append(parts, fmt.Sprint(v))
	}
	s := strings.Join(parts, ",")
	if limit > 0 && len(idx) > limit {
		s += ",..."
	}
	return fmt.Sprintf("%d [%s]", len(idx), s)
}

func init() {
	rootCmd.AddCommand(outliersCmd)
	outIngest.bind(outliersCmd)
	outliersCmd.Flags().Float64Var(&outZThreshold, "z", 0, "z-score threshold (overrides config)")
	outliersCmd.Flags().Float64Var(&outMultiplier, "iqr", 0, "IQR fence multiplier (overrides config)")
	outliersCmd.Flags().StringVar(&outRemove, "remove", "", "remove outlier rows with this policy: zscore | iqr")
	outliersCmd.Flags().StringVarP(&outOutput, "output", "o", "", "output path when removing (default no_outliers_<name>.csv)")
	outliersCmd.Flags().IntVar(&outShowRows, "show", 10, "row indices listed per column (0 lists all)")
}
