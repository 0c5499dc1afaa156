package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
)

var (
	cluIngest   ingestFlags
	cluFeatures string
	cluK        int
	cluSeed     int64
	cluElbow    bool
	cluOutput   string
	cluLabel    string
	cluCharts   bool
)

var clusterCmd = &cobra.Command{
	Use:   "cluster <file>",
	Short: "K-means clustering on standardized numeric features",
	Long: `Cluster rows on the chosen numeric features. Features are standardized to
zero mean and unit variance first; rows missing any feature are left out.
--elbow also prints the inertia for k = 1..elbow_max_k as a diagnostic; k is
never chosen automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		c := settings()
		d, err := cluIngest.load(args[0])
		if err != nil {
			return err
		}
		features := splitList(cluFeatures)
		if len(features) == 0 {
			features = d.NumericColumns()
		}
		fm, err := analysis.Features(d, features...)
		if err != nil {
			return err
		}
		x := analysis.Standardize(fm.X)
		opt := analysis.KMeansOptions{K: c.Clusters, MaxIter: c.ClusterMaxIter, Seed: c.ClusterSeed}
		if cluK > 0 {
			opt.K = cluK
		}
		if cmd.Flags().Changed("seed") {
			opt.Seed = cluSeed
		}
		res, err := analysis.KMeans(x, opt)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s k=%d on %s: %d rows, inertia %.4f after %d iterations\n",
			okMark, res.K, strings.Join(fm.Columns, ", "), len(fm.Rows), res.Inertia, res.Iterations)

		table := tablewriter.NewWriter(out)
		header := append([]string{"Cluster", "Size"}, fm.Columns...)
		table.SetHeader(header)
		for _, cm := range analysis.ClusterMeans(fm, res) {
			row := []string{fmt.Sprint(cm.Cluster), fmt.Sprint(cm.Size)}
			for _, f := range fm.Columns {
				row = append(row, fmt.Sprintf("%.4g", cm.Means[f]))
			}
			table.Append(row)
		}
		table.Render()

		var curve []analysis.ElbowPoint
		if cluElbow {
			curve, err = analysis.ElbowCurve(x, c.ElbowMaxK, opt)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\nElbow (k: inertia):")
			for _, e := range curve {
				fmt.Fprintf(out, "  %2d: %.4f\n", e.K, e.Inertia)
			}
		}

		if cluOutput != "" || cluCharts {
			if err := d.AddColumn(cluLabel, fm.LabelColumn(d.NumRows(), res.Labels)); err != nil {
				return err
			}
		}
		if cluOutput != "" {
			if err := writeDataset(d, cluOutput); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(out, "%s Wrote labelled data to %s\n", okMark, cluOutput)
		}
		if cluCharts {
			r := newRenderer("", "")
			var written []string
			if len(fm.Columns) >= 2 {
				p, err := r.Scatter(d, fm.Columns[0], fm.Columns[1], cluLabel)
				if err != nil {
					return err
				}
				written = append(written, p)
			}
			if len(curve) > 0 {
				p, err := r.Elbow(curve)
				if err != nil {
					return err
				}
				written = append(written, p)
			}
			sort.Strings(written)
			for _, p := range written {
				fmt.Fprintf(out, "%s Wrote %s\n", okMark, p)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	cluIngest.bind(clusterCmd)
	clusterCmd.Flags().StringVarP(&cluFeatures, "features", "f", "", "comma-separated numeric feature columns (default all numeric)")
	clusterCmd.Flags().IntVar(&cluK, "k", 0, "number of clusters (overrides config)")
	clusterCmd.Flags().Int64Var(&cluSeed, "seed", 0, "initialization seed (0 = time based; overrides config)")
	clusterCmd.Flags().BoolVar(&cluElbow, "elbow", false, "print the elbow diagnostic")
	clusterCmd.Flags().StringVarP(&cluOutput, "output", "o", "", "write the data with a cluster label column")
	clusterCmd.Flags().StringVar(&cluLabel, "label", "cluster", "name of the cluster label column")
	clusterCmd.Flags().BoolVar(&cluCharts, "charts", false, "render a cluster scatter (and elbow curve) into the output directory")
}
