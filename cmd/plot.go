package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/render"
)

var (
	pltIngest ingestFlags
	pltKinds  string
	pltX      string
	pltY      string
	pltHue    string
	pltNaming string
	pltBy     string
	pltMean   string
	pltYearOf string
	pltDate   string
	pltTop    int
)

var plotCmd = &cobra.Command{
	Use:   "plot <file>",
	Short: "Render the chart suite as PNG files",
	Long: `Render histograms and box plots for numeric columns, count plots for
categorical columns with 2-29 distinct values, a correlation heatmap, a
scatter plot and a pair plot. Charts go to --out-dir (config output_dir).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		kinds, err := render.ParseKinds(pltKinds)
		if err != nil {
			return err
		}
		d, err := pltIngest.load(args[0])
		if err != nil {
			return err
		}
		r := newRenderer("", pltNaming)
		res, err := r.Suite(d, render.SuiteOptions{Kinds: kinds, ScatterX: pltX, ScatterY: pltY, Hue: pltHue})
		if err != nil {
			return err
		}
		if pltBy != "" && pltMean != "" {
			p, err := r.GroupMeans(d, pltBy, pltMean)
			if err != nil {
				return err
			}
			res.Files = append(res.Files, p)
			if p, err = r.BoxPlotByGroup(d, pltMean, pltBy); err == nil {
				res.Files = append(res.Files, p)
			} else {
				res.Skipped = append(res.Skipped, fmt.Sprintf("boxplot %s by %s: %v", pltMean, pltBy, err))
			}
		}
		if pltYearOf != "" {
			yc, err := analysis.CountByYear(d, pltYearOf, pltDate, pltTop)
			if err != nil {
				return err
			}
			p, err := r.CountHeatmap(yc)
			if err != nil {
				return err
			}
			res.Files = append(res.Files, p)
		}
		for _, f := range res.Files {
			fmt.Fprintf(out, "%s Wrote %s\n", okMark, f)
		}
		for _, s := range res.Skipped {
			fmt.Fprintf(out, "%s Skipped %s\n", warnMark, s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)
	pltIngest.bind(plotCmd)
	plotCmd.Flags().StringVar(&pltKinds, "kinds", "all", "comma-separated chart kinds: histogram,boxplot,countplot,heatmap,scatter,pairplot")
	plotCmd.Flags().StringVar(&pltX, "x", "", "scatter x column (default first numeric)")
	plotCmd.Flags().StringVar(&pltY, "y", "", "scatter y column (default second numeric)")
	plotCmd.Flags().StringVar(&pltHue, "hue", "", "colour scatter points by this column")
	plotCmd.Flags().StringVar(&pltNaming, "naming", "", "file naming: fixed | timestamp (overrides config)")
	plotCmd.Flags().StringVar(&pltBy, "by", "", "category column for average and box plots by group")
	plotCmd.Flags().StringVar(&pltMean, "mean", "", "numeric column averaged per --by category")
	plotCmd.Flags().StringVar(&pltYearOf, "year-counts", "", "category column counted per start year (heatmap of the top values)")
	plotCmd.Flags().StringVar(&pltDate, "date", "start_date", "date column whose year --year-counts uses")
	plotCmd.Flags().IntVar(&pltTop, "top", analysis.DefaultTopCategories, "how many --year-counts values to keep")
}
