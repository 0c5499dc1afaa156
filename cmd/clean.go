package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	cleanpkg "github.com/KaramelBytes/edaloom-cli/internal/clean"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

var (
	clnIngest           ingestFlags
	clnOutput           string
	clnNoDedupe         bool
	clnNoImpute         bool
	clnStandardizeText  bool
	clnStandardizeDates bool
	clnOutliers         string
	clnOutlierColumns   string
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Drop duplicates, fill missing values and write a cleaned file",
	Long: `Clean a dataset: exact duplicate rows are dropped (first occurrence kept),
missing numeric cells get the column mean and other cells the most frequent
value. Optionally standardise text and date formats and remove outlier rows
with the zscore or iqr policy. The result is written as CSV, or XLSX when the
output ends in .xlsx.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		out := cmd.OutOrStdout()
		d, err := clnIngest.load(path)
		if err != nil {
			return err
		}
		before := analysis.ProfileDataset(d)

		if !clnNoDedupe {
			var n int
			d, n = cleanpkg.DropDuplicates(d)
			fmt.Fprintf(out, "%s Removed %d duplicate rows\n", okMark, n)
		}
		if clnStandardizeText {
			if d, err = cleanpkg.StandardizeText(d); err != nil {
				return err
			}
		}
		if clnStandardizeDates {
			if d, err = cleanpkg.StandardizeDates(d); err != nil {
				return err
			}
		}
		if !clnNoImpute {
			var imps []cleanpkg.Imputation
			d, imps = cleanpkg.Impute(d, zlog())
			printImputations(out, imps)
		}
		if clnOutliers != "" {
			c := settings()
			p, err := cleanpkg.PolicyByName(clnOutliers, c.ZScoreThreshold, c.IQRMultiplier)
			if err != nil {
				return err
			}
			var n int
			d, n, err = cleanpkg.RemoveOutliers(d, p, splitList(clnOutlierColumns)...)
			if err != nil {
				return err
			}
			zlog().Info("outliers removed", zap.String("policy", p.Name()), zap.Int("removed", n))
			fmt.Fprintf(out, "%s Removed %d outlier rows (%s)\n", okMark, n, p.Name())
		}

		after := analysis.ProfileDataset(d)
		fmt.Fprintf(out, "Rows: %d -> %d, missing cells: %d -> %d, duplicates: %d -> %d\n",
			before.Rows, after.Rows, before.MissingCells, after.MissingCells, before.DuplicateRows, after.DuplicateRows)

		dest := clnOutput
		if dest == "" {
			dest = derivedPath(path, "cleaned", ".csv")
		}
		if err := writeDataset(d, dest); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(out, "%s Wrote cleaned data to %s\n", okMark, dest)
		return nil
	},
}

func printImputations(w io.Writer, imps []cleanpkg.Imputation) {
	if len(imps) == 0 {
		fmt.Fprintf(w, "%s No missing values\n", okMark)
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Column", "Kind", "Strategy", "Value", "Filled"})
	for _, imp := range imps {
		if imp.Skipped {
			table.Append([]string{imp.Column, string(imp.Kind), "skipped", "", "0"})
			continue
		}
		table.Append([]string{imp.Column, string(imp.Kind), imp.Strategy, imp.Value, fmt.Sprint(imp.Filled)})
	}
	table.Render()
	for _, imp := range imps {
		if imp.Skipped && imp.Kind == dataset.KindEmpty {
			fmt.Fprintf(w, "%s Column %s has no values to impute from\n", warnMark, imp.Column)
		}
	}
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	clnIngest.bind(cleanCmd)
	cleanCmd.Flags().StringVarP(&clnOutput, "output", "o", "", "output path (default cleaned_<name>.csv next to the input)")
	cleanCmd.Flags().BoolVar(&clnNoDedupe, "no-dedupe", false, "keep duplicate rows")
	cleanCmd.Flags().BoolVar(&clnNoImpute, "no-impute", false, "leave missing values as they are")
	cleanCmd.Flags().BoolVar(&clnStandardizeText, "standardize-text", false, "trim and lower-case text columns")
	cleanCmd.Flags().BoolVar(&clnStandardizeDates, "standardize-dates", false, "rewrite columns named *date* as YYYY-MM-DD")
	cleanCmd.Flags().StringVar(&clnOutliers, "outliers", "", "remove outlier rows: zscore | iqr")
	cleanCmd.Flags().StringVar(&clnOutlierColumns, "outlier-columns", "", "comma-separated columns checked for outliers (default all numeric)")
}
