package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/render"
)

// ingestFlags are shared by every command that loads a dataset.
type ingestFlags struct {
	delimiter string
	decimal   string
	thousands string
	sheet     string
}

func (f *ingestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma'")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX: sheet name (first sheet if omitted)")
}

func (f *ingestFlags) options() (dataset.LoadOptions, error) {
	opt := dataset.LoadOptions{Limit: settings().RowLimit, Sheet: f.sheet}
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.Format.Decimal = ','
	case ".", "dot":
		opt.Format.Decimal = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.Format.Thousands = ','
	case ".":
		opt.Format.Thousands = '.'
	case "space", " ":
		opt.Format.Thousands = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	return opt, nil
}

func (f *ingestFlags) load(path string) (*dataset.Dataset, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	d, err := dataset.Load(path, opt)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return d, nil
}

// expandInputs resolves glob patterns, keeps literal paths that exist and
// drops duplicates. The result is sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path so the loader reports why it failed
			matches = []string{arg}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// splitList parses a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// derivedPath names an output next to the input: dir/<prefix>_<base>.<ext>.
func derivedPath(input, prefix, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), prefix+"_"+base+ext)
}

func newRenderer(dir, naming string) *render.Renderer {
	c := settings()
	if dir == "" {
		dir = c.OutputDir
	}
	if naming == "" {
		naming = c.ChartNaming
	}
	return render.New(dir, naming, c.ChartWidthIn, c.ChartHeightIn, zlog())
}

func writeDataset(d *dataset.Dataset, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return dataset.WriteXLSX(d, path, "")
	}
	return dataset.WriteCSV(d, path)
}
