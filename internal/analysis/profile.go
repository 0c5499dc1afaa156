package analysis

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// Profile is a read-only summary of a dataset.
type Profile struct {
	Name          string          `json:"name"`
	Rows          int             `json:"rows"`
	Columns       int             `json:"columns"`
	MissingCells  int             `json:"missing_cells"`
	DuplicateRows int             `json:"duplicate_rows"`
	Cols          []ColumnProfile `json:"cols"`
	Samples       [][]string      `json:"-"`
	Header        []string        `json:"-"`
}

// ColumnProfile captures inferred kind and statistics per column.
type ColumnProfile struct {
	Name    string       `json:"name"`
	Kind    dataset.Kind `json:"kind"`
	NonNull int          `json:"non_null"`
	Missing int          `json:"missing"`
	Unique  int          `json:"unique,omitempty"`
	// Numeric stats
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`
	// Categorical top values
	TopValues []CategoryCount `json:"top_values,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// SampleRows is how many leading rows a profile keeps for display.
const SampleRows = 5

// ProfileDataset summarizes shape, missingness, duplicates and per-column kinds.
func ProfileDataset(d *dataset.Dataset) *Profile {
	p := &Profile{
		Name:          d.Name,
		Rows:          d.NumRows(),
		Columns:       d.NumCols(),
		MissingCells:  d.MissingCount(),
		DuplicateRows: d.DuplicateCount(),
		Header:        append([]string(nil), d.Columns...),
	}
	for i := 0; i < len(d.Rows) && i < SampleRows; i++ {
		p.Samples = append(p.Samples, append([]string(nil), d.Rows[i]...))
	}
	for j, kind := range d.Kinds() {
		name := d.Columns[j]
		cp := ColumnProfile{Name: name, Kind: kind}
		counts := map[string]int{}
		for _, row := range d.Rows {
			if dataset.IsMissing(row[j]) {
				cp.Missing++
				continue
			}
			cp.NonNull++
			counts[row[j]]++
		}
		cp.Unique = len(counts)
		switch kind {
		case dataset.KindNumeric:
			vals := PresentFloats(d, name)
			sorted := append([]float64(nil), vals...)
			sort.Float64s(sorted)
			cp.Min, cp.Max = sorted[0], sorted[len(sorted)-1]
			cp.Mean = stat.Mean(vals, nil)
			if len(vals) > 1 {
				cp.Std = stat.StdDev(vals, nil)
			}
		case dataset.KindCategorical:
			cp.TopValues = topValues(counts, 8)
		}
		p.Cols = append(p.Cols, cp)
	}
	return p
}

func topValues(counts map[string]int, n int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

// Kinds returns column name to kind.
func (p *Profile) Kinds() map[string]dataset.Kind {
	out := make(map[string]dataset.Kind, len(p.Cols))
	for _, c := range p.Cols {
		out[c.Name] = c.Kind
	}
	return out
}

// Markdown renders a compact report for the console or a standalone doc.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n", p.Columns))
	b.WriteString(fmt.Sprintf("Missing cells: %d\n", p.MissingCells))
	b.WriteString(fmt.Sprintf("Duplicate rows: %d\n\n", p.DuplicateRows))

	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case dataset.KindNumeric:
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		case dataset.KindCategorical:
			if len(c.TopValues) > 0 {
				b.WriteString(": top ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(truncate(kv.Value, 80)), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	if len(p.Samples) > 0 {
		b.WriteString("\n[HEAD]\n")
		b.WriteString("| ")
		for i, c := range p.Header {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c))
		}
		b.WriteString(" |\n| ")
		for i := range p.Header {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range p.Samples {
			b.WriteString("| ")
			for i, val := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				b.WriteString(safeVal(truncate(val, 80)))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
