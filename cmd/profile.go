package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
)

var (
	profIngest   ingestFlags
	profOutput   string
	profDescribe bool
	profJSON     bool
	profQuiet    bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <files...>",
	Short: "Summarize shape, missing cells, duplicates and column kinds",
	Long: `Profile one or more CSV/TSV/XLSX files. Glob patterns are expanded.
With --describe, pandas-style describe tables are printed for numeric and
categorical columns.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if profOutput != "" && len(files) > 1 {
			return fmt.Errorf("--output needs a single input, got %d files", len(files))
		}
		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if total > 1 && !profQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			d, err := profIngest.load(path)
			if err != nil {
				return err
			}
			p := analysis.ProfileDataset(d)
			zlog().Debug("profiled", zap.String("file", path), zap.Int("rows", p.Rows), zap.Int("duplicates", p.DuplicateRows))

			var body []byte
			if profJSON {
				if body, err = utils.PrettyJSON(p); err != nil {
					return err
				}
				body = append(body, '\n')
			} else {
				body = []byte(p.Markdown())
			}
			if profOutput != "" {
				if err := utils.SafeWriteFile(profOutput, body); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Fprintf(out, "%s Wrote profile to %s\n", okMark, profOutput)
			} else {
				fmt.Fprintln(out, string(body))
			}
			if profDescribe {
				analysis.Describe(d).WriteTable(out)
			}
			if p.DuplicateRows > 0 && !profQuiet {
				fmt.Fprintf(out, "%s %d duplicate rows (run 'edaloom clean' to drop them)\n", warnMark, p.DuplicateRows)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profIngest.bind(profileCmd)
	profileCmd.Flags().StringVarP(&profOutput, "output", "o", "", "optional path to write the profile")
	profileCmd.Flags().BoolVar(&profDescribe, "describe", false, "print describe tables for every column")
	profileCmd.Flags().BoolVar(&profJSON, "json", false, "emit the profile as JSON")
	profileCmd.Flags().BoolVar(&profQuiet, "quiet", false, "suppress progress and non-essential output")
}
