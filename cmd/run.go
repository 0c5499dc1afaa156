package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edaloom-cli/internal/pipeline"
)

var runQuiet bool

var runJobCmd = &cobra.Command{
	Use:   "run <job.yaml>",
	Short: "Run the whole pipeline from a job file",
	Long: `Run ingest, profile, clean, analyze and emit as described by a YAML job.
Relative paths in the job resolve against the job file. A missing required
column stops the run before anything is written; steps whose columns are
absent are skipped and reported as warnings. A run.json manifest is written
next to the cleaned output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		job, err := pipeline.LoadJob(args[0])
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := pipeline.Run(ctx, job, pipeline.Options{Config: settings(), Logger: zlog()})
		if err != nil {
			return err
		}
		if !runQuiet {
			fmt.Fprintf(out, "%s %s: %d -> %d rows (%d duplicates, %d outliers removed)\n",
				okMark, res.Name, res.Before.Rows, res.After.Rows, res.DuplicatesRemoved, res.OutliersRemoved)
			for _, r := range res.Relationships {
				fmt.Fprintf(out, "  %s: %s (r=%s)\n", r.Column, r.Class, fmtStat(r.R, 3))
			}
			if res.Clustering != nil {
				fmt.Fprintf(out, "  clusters: k=%d sizes=%v\n", res.Clustering.K, res.Clustering.Sizes)
			}
			for _, f := range res.Files {
				fmt.Fprintf(out, "%s Wrote %s\n", okMark, f)
			}
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "%s %s\n", warnMark, w)
		}
		fmt.Fprintf(out, "%s Run %s recorded in %s\n", okMark, res.RunID, res.Manifest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runJobCmd)
	runJobCmd.Flags().BoolVar(&runQuiet, "quiet", false, "only print warnings and the manifest path")
}
