package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
)

var (
	tlIngest ingestFlags
	tlStart  string
	tlEnd    string
	tlAsOf   string
	tlChart  bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <file>",
	Short: "Count records active in each calendar month",
	Long: `A record is active in a month when it started on or before the month's
last day and its end (or today, when the end is empty) is on or after the
month's first day. Unparsable dates count as empty.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		now := time.Now()
		if tlAsOf != "" {
			t, err := time.Parse("2006-01-02", tlAsOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of: %w", err)
			}
			now = t
		}
		d, err := tlIngest.load(args[0])
		if err != nil {
			return err
		}
		end := tlEnd
		if end != "" && !d.Has(end) {
			fmt.Fprintf(out, "%s End column %q not found, treating every interval as open\n", warnMark, end)
			end = ""
		}
		months, err := analysis.ActiveByMonth(d, tlStart, end, now)
		if err != nil {
			return err
		}
		if len(months) == 0 {
			fmt.Fprintf(out, "%s No parsable start dates in %s\n", warnMark, tlStart)
			return nil
		}
		for _, m := range months {
			fmt.Fprintf(out, "%s\t%d\n", m.Label(), m.Active)
		}
		if tlChart {
			p, err := newRenderer("", "").Timeline(months, "Active")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Wrote %s\n", okMark, p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	tlIngest.bind(timelineCmd)
	timelineCmd.Flags().StringVar(&tlStart, "start", "start_date", "interval start column")
	timelineCmd.Flags().StringVar(&tlEnd, "end", "end_date", "interval end column (empty = open intervals)")
	timelineCmd.Flags().StringVar(&tlAsOf, "as-of", "", "reference date for open intervals, YYYY-MM-DD (default today)")
	timelineCmd.Flags().BoolVar(&tlChart, "chart", false, "render a line chart into the output directory")
}
