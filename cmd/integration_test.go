package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/pipeline"
)

// resetFlags puts every flag back to its default so Changed state does not
// leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(args ...string) (string, error) {
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const staffCSV = `id,age,salary,dept,start_date,end_date
1,25,30000,Sales,2020-01-01,2020-01-31
2,32,42000,IT,2020-01-15,2020-02-15
3,,51000,IT,2020-02-01,
4,41,,HR,2020-02-10,2020-03-01
2,32,42000,IT,2020-01-15,2020-02-15
5,29,36000,Sales,2020-03-01,2020-03-20
`

func TestCLI_ProfileAndClean(t *testing.T) {
	home := isolate(t)
	src := write(t, filepath.Join(home, "staff.csv"), staffCSV)

	out := runCmd(t, "profile", src)
	assert.Contains(t, out, "Rows: 6")
	assert.Contains(t, out, "Duplicate rows: 1")
	assert.Contains(t, out, "- salary: numeric")

	out = runCmd(t, "profile", src, "--describe", "--quiet")
	assert.Contains(t, strings.ToLower(out), "salary")

	dest := filepath.Join(home, "out", "cleaned.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	out = runCmd(t, "clean", src, "-o", dest)
	assert.Contains(t, out, "Removed 1 duplicate rows")
	assert.Contains(t, out, "Rows: 6 -> 5")

	d, err := dataset.Load(dest, dataset.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, d.NumRows())
	// end_date is imputed with its first most frequent value
	assert.Equal(t, 0, d.MissingCount())
	ages, err := d.Column("age")
	require.NoError(t, err)
	// mean of 25, 32, 41, 29
	assert.Equal(t, "31.75", ages[2])
}

func TestCLI_ProfileGlobAndErrors(t *testing.T) {
	home := isolate(t)
	write(t, filepath.Join(home, "d1", "metrics.csv"), "a,b\n1,2\n3,4\n")
	write(t, filepath.Join(home, "d2", "metrics.csv"), "a,b\n5,6\n")

	out := runCmd(t, "profile", filepath.Join(home, "d*", "metrics.csv"))
	assert.Contains(t, out, "[1/2] Processing metrics.csv")
	assert.Contains(t, out, "[2/2] Processing metrics.csv")

	_, err := execute("profile", filepath.Join(home, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = execute("profile", filepath.Join(home, "d1", "metrics.csv"), "--delimiter", "|")
	assert.Error(t, err)
}

func TestCLI_ConfigSetShow(t *testing.T) {
	isolate(t)
	runCmd(t, "config", "set", "clusters", "4")
	runCmd(t, "config", "set", "chart_naming", "fixed")
	out := runCmd(t, "config", "show")
	assert.Contains(t, out, "clusters: 4")
	assert.Contains(t, out, "chart_naming: fixed")

	_, err := execute("config", "set", "bogus", "1")
	assert.Error(t, err)
	_, err = execute("config", "set", "chart_naming", "random")
	assert.Error(t, err)
	_, err = execute("config", "set", "row_limit", "many")
	assert.Error(t, err)
}

func TestCLI_OutliersCorrelateCluster(t *testing.T) {
	home := isolate(t)
	var sb strings.Builder
	sb.WriteString("x,y,z\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "%d,%d,%d\n", i, 2*i+1, (i*7)%5)
	}
	sb.WriteString("1000,2001,3\n")
	src := write(t, filepath.Join(home, "nums.csv"), sb.String())

	out := runCmd(t, "outliers", src, "--remove", "iqr", "-o", filepath.Join(home, "kept.csv"))
	assert.Contains(t, out, "Removed 1 rows (iqr)")
	kept, err := dataset.Load(filepath.Join(home, "kept.csv"), dataset.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 20, kept.NumRows())

	out = runCmd(t, "outliers", src, "--remove", "Z-Score", "-o", filepath.Join(home, "kept_z.csv"))
	assert.Contains(t, out, "Removed 1 rows (zscore)")
	_, err = execute("outliers", src, "--remove", "mad")
	assert.ErrorContains(t, err, "unknown outlier policy")

	matrix := filepath.Join(home, "corr.csv")
	out = runCmd(t, "correlate", filepath.Join(home, "kept.csv"), "--target", "y", "--csv", matrix, "--top", "1")
	assert.Contains(t, out, "strong positive")
	assert.FileExists(t, matrix)

	labelled := filepath.Join(home, "labelled.csv")
	out = runCmd(t, "cluster", filepath.Join(home, "kept.csv"), "--features", "x,y", "--k", "2", "--seed", "7", "--elbow", "-o", labelled)
	assert.Contains(t, out, "k=2 on x, y")
	d, err := dataset.Load(labelled, dataset.LoadOptions{})
	require.NoError(t, err)
	assert.True(t, d.Has("cluster"))

	_, err = execute("cluster", src, "--features", "x,nope")
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)
}

func TestCLI_PlotAndTimeline(t *testing.T) {
	home := isolate(t)
	src := write(t, filepath.Join(home, "staff.csv"), staffCSV)
	charts := filepath.Join(home, "charts")

	out := runCmd(t, "plot", src, "--out-dir", charts, "--naming", "fixed", "--kinds", "histogram,countplot")
	assert.Contains(t, out, "histogram_salary.png")
	assert.FileExists(t, filepath.Join(charts, "histogram_age.png"))
	assert.FileExists(t, filepath.Join(charts, "countplot_dept.png"))

	out = runCmd(t, "plot", src, "--out-dir", charts, "--naming", "fixed", "--kinds", "histogram", "--year-counts", "dept", "--top", "2")
	assert.Contains(t, out, "top_dept_by_year_heatmap.png")
	assert.FileExists(t, filepath.Join(charts, "top_dept_by_year_heatmap.png"))

	_, err := execute("plot", src, "--kinds", "pie")
	assert.Error(t, err)

	out = runCmd(t, "timeline", src, "--as-of", "2020-03-31")
	// the duplicated row counts twice until cleaned
	assert.Contains(t, out, "2020-01\t3")
	assert.Contains(t, out, "2020-02\t4")
	assert.Contains(t, out, "2020-03\t3")
}

func TestCLI_RunJob(t *testing.T) {
	home := isolate(t)
	write(t, filepath.Join(home, "data", "staff.csv"), staffCSV)
	job := write(t, filepath.Join(home, "jobs", "staff.yaml"), `
name: staff
input: ../data/staff.csv
required: [salary]
optional: [employment_type]
clean:
  dedupe: true
  impute: true
output:
  csv: ../out/cleaned_staff.csv
analyze:
  correlation:
    target: salary
`)
	out := runCmd(t, "run", job)
	assert.Contains(t, out, "staff: 6 -> 5 rows")
	assert.Contains(t, out, `optional column "employment_type" not found`)

	m, err := pipeline.LoadManifest(filepath.Join(home, "out", pipeline.ManifestFileName))
	require.NoError(t, err)
	assert.Equal(t, 1, m.DuplicatesRemoved)
	assert.NotEmpty(t, m.Relationships)

	bad := write(t, filepath.Join(home, "jobs", "bad.yaml"), "input: ../data/staff.csv\nrequired: [bonus]\n")
	_, err = execute("run", bad)
	var mce *pipeline.MissingColumnsError
	assert.ErrorAs(t, err, &mce)
}
