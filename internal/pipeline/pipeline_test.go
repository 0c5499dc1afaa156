package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/config"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

var fixedNow = time.Date(2021, 1, 15, 9, 30, 0, 0, time.UTC)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func testOptions() Options {
	cfg := config.Default()
	cfg.ChartNaming = config.NamingFixed
	cfg.ChartWidthIn, cfg.ChartHeightIn = 4, 3
	return Options{Config: cfg, Now: func() time.Time { return fixedNow }}
}

func duplicatesCSV() string {
	var sb strings.Builder
	sb.WriteString("id,salary,dept\n")
	depts := []string{"sales", "it", "hr"}
	for i := 0; i < 490; i++ {
		salary := fmt.Sprint(30000 + 10*i)
		// five missing cells, none in a duplicated row
		switch {
		case i >= 100 && i < 105 && i%2 == 0:
			salary = ""
		case i >= 100 && i < 105:
			salary = "NA"
		}
		fmt.Fprintf(&sb, "%d,%s,%s\n", i, salary, depts[i%3])
	}
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "%d,%d,%s\n", i, 30000+10*i, depts[i%3])
	}
	return sb.String()
}

func employmentCSV() string {
	var sb strings.Builder
	sb.WriteString("id,start_date,end_date,final_salary,bonus,employment_type\n")
	types := []string{"full time", "part time", "casual"}
	for i := 0; i < 30; i++ {
		start := time.Date(2020, time.Month(1+i%12), 1+i%20, 0, 0, 0, 0, time.UTC)
		end := ""
		if i%4 != 0 {
			end = start.AddDate(0, 2+i%3, 0).Format("2006-01-02")
		}
		salary := 40000 + 1500*i
		if i%2 == 0 {
			salary += 20000
		}
		bonus := ""
		if i != 7 {
			bonus = fmt.Sprint(salary/10 + i%3)
		}
		fmt.Fprintf(&sb, "E%02d,%s,%s,%d,%s,%s\n", i, start.Format("2006-01-02"), end, salary, bonus, types[i%3])
	}
	return sb.String()
}

func TestParseJob(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "jobs/emp.yaml", `
name: employment_history
input: ../data/emp.csv
required: [final_salary]
clean:
  dedupe: true
  outliers: iqr
output:
  csv: out/cleaned.csv
analyze:
  clustering:
    features: [final_salary, bonus]
    k: 2
charts: [histogram, heatmap]
`)
	j, err := LoadJob(p)
	require.NoError(t, err)
	assert.Equal(t, "employment_history", j.DisplayName())
	assert.Equal(t, filepath.Join(dir, "data", "emp.csv"), j.Path(j.Input))
	assert.Equal(t, filepath.Join(dir, "jobs", "out", "cleaned.csv"), j.Path(j.Output.CSV))
	require.NotNil(t, j.Analyze.Clustering)
	assert.Equal(t, 2, j.Analyze.Clustering.K)

	_, err = ParseJob([]byte("input: a.csv\nbogus: 1\n"))
	assert.Error(t, err)
	_, err = ParseJob([]byte("input: a.csv\nclean:\n  outliers: median\n"))
	assert.Error(t, err)
	_, err = ParseJob([]byte("input: a.csv\ncharts: [pie]\n"))
	assert.Error(t, err)
	_, err = ParseJob([]byte("input: a.csv\nanalyze:\n  year_counts:\n    - category: position\n"))
	assert.Error(t, err)
	_, err = ParseJob([]byte("name: x\n"))
	assert.Error(t, err)

	_, err = LoadJob(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	j, err = ParseJob([]byte("input: data/Staff List.csv\n"))
	require.NoError(t, err)
	assert.Equal(t, "staff_list", j.DisplayName())
}

func TestRunRemovesDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", duplicatesCSV())
	j := &Job{
		Input:  "people.csv",
		Clean:  CleanSpec{Dedupe: true, Impute: true},
		Output: OutputSpec{CSV: "out/cleaned.csv"},
	}
	j.SetBase(dir)

	res, err := Run(context.Background(), j, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 500, res.Before.Rows)
	assert.Equal(t, 5, res.Before.MissingCells)
	assert.Equal(t, 10, res.Before.DuplicateRows)
	assert.Equal(t, 0, res.After.DuplicateRows)
	assert.Equal(t, 0, res.After.MissingCells)
	require.Len(t, res.Imputations, 1)
	assert.Equal(t, "salary", res.Imputations[0].Column)
	assert.Equal(t, 5, res.Imputations[0].Filled)
	assert.Equal(t, 10, res.DuplicatesRemoved)
	assert.Empty(t, res.Warnings)

	out, err := dataset.Load(filepath.Join(dir, "out", "cleaned.csv"), dataset.LoadOptions{Limit: -1})
	require.NoError(t, err)
	assert.Equal(t, 490, out.NumRows())
	assert.Equal(t, 0, out.DuplicateCount())
	assert.Equal(t, 0, out.MissingCount())

	assert.Equal(t, filepath.Join(dir, "out", ManifestFileName), res.Manifest)
	m, err := LoadManifest(res.Manifest)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, m.RunID)
	assert.Equal(t, 490, m.RowsAfter)
	assert.Equal(t, 10, m.DuplicatesBefore)
	assert.True(t, fixedNow.Equal(m.Started))
}

func TestRunDedupesBeforeImputing(t *testing.T) {
	dir := t.TempDir()
	// the last two "2,200" rows differ only by a missing dept, filled with "sales"
	writeFile(t, dir, "people.csv", "id,salary,dept\n1,100,sales\n1,100,sales\n2,200,sales\n3,300,it\n2,200,\n")
	j := &Job{
		Input:  "people.csv",
		Clean:  CleanSpec{Dedupe: true, Impute: true},
		Output: OutputSpec{CSV: "out/cleaned.csv"},
	}
	j.SetBase(dir)

	res, err := Run(context.Background(), j, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Before.MissingCells)
	assert.Equal(t, 1, res.DuplicatesRemoved)
	assert.Equal(t, 0, res.After.MissingCells)
	assert.Equal(t, 1, res.After.DuplicateRows)

	out, err := dataset.Load(filepath.Join(dir, "out", "cleaned.csv"), dataset.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, out.NumRows())
	dept, err := out.Column("dept")
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "sales", "it", "sales"}, dept)
}

func TestRunMissingRequiredColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", duplicatesCSV())
	j := &Job{
		Input:    "people.csv",
		Required: []string{"salary", "final_salary", "dob"},
		Output:   OutputSpec{CSV: "out/cleaned.csv"},
	}
	j.SetBase(dir)

	_, err := Run(context.Background(), j, testOptions())
	var mce *MissingColumnsError
	require.True(t, errors.As(err, &mce), "got %v", err)
	assert.Equal(t, []string{"final_salary", "dob"}, mce.Columns)
	assert.Contains(t, err.Error(), "final_salary, dob")
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestRunIngestError(t *testing.T) {
	j := &Job{Input: filepath.Join(t.TempDir(), "nope.csv")}
	_, err := Run(context.Background(), j, testOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunSkipsStepsWithMissingColumns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", duplicatesCSV())
	j := &Job{
		Input:    "people.csv",
		Optional: []string{"start_date"},
		Output:   OutputSpec{CSV: "cleaned.csv"},
		Analyze: AnalyzeSpec{
			Clustering: &ClusteringSpec{Features: []string{"salary", "tenure"}},
			Timeline:   &TimelineSpec{Start: "start_date"},
			Correlation: &CorrelationSpec{
				Target: "salary",
			},
		},
	}
	j.SetBase(dir)

	res, err := Run(context.Background(), j, testOptions())
	require.NoError(t, err)
	assert.Nil(t, res.Clustering)
	assert.Nil(t, res.Timeline)
	assert.NotNil(t, res.Correlation)
	joined := strings.Join(res.Warnings, "\n")
	assert.Contains(t, joined, `optional column "start_date" not found`)
	assert.Contains(t, joined, "clustering: missing columns tenure")
	assert.Contains(t, joined, "timeline: missing column start_date")
}

func TestRunFullJob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data/emp.csv", employmentCSV())
	j := &Job{
		Name:     "employment_history",
		Input:    "data/emp.csv",
		Required: []string{"final_salary"},
		Clean:    CleanSpec{Dedupe: true, Impute: true, StandardizeText: true, StandardizeDates: true, Outliers: "iqr"},
		Output: OutputSpec{
			CSV:       "cleaning_files/cleaned.csv",
			XLSX:      "cleaning_files/cleaned.xlsx",
			ChartsDir: "charts",
		},
		Analyze: AnalyzeSpec{
			Correlation: &CorrelationSpec{Target: "final_salary", MatrixCSV: "eda_files/corr.csv"},
			Clustering: &ClusteringSpec{
				Features: []string{"final_salary", "employment_duration_days"},
				K:        2,
				Elbow:    true,
				Label:    "cluster",
			},
			Timeline: &TimelineSpec{Start: "start_date", End: "end_date"},
			Derive: DeriveSpec{
				Duration: &DurationSpec{Start: "start_date", End: "end_date", Name: "employment_duration_days"},
			},
			GroupMeans: []GroupMeanSpec{{Key: "employment_type", Value: "final_salary"}},
			YearCounts: []YearCountSpec{{Category: "employment_type", Date: "start_date", Top: 2}},
		},
		Charts: []string{"histogram", "heatmap", "scatter"},
	}
	j.SetBase(dir)

	res, err := Run(context.Background(), j, testOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	require.Len(t, res.Imputations, 2)
	assert.Equal(t, "end_date", res.Imputations[0].Column)
	assert.Equal(t, "bonus", res.Imputations[1].Column)

	require.NotNil(t, res.Correlation)
	assert.Contains(t, res.Correlation.Columns, "employment_duration_days")
	require.NotEmpty(t, res.Relationships)
	for _, rel := range res.Relationships {
		assert.NotEqual(t, "final_salary", rel.Column)
	}

	require.NotNil(t, res.Clustering)
	assert.Equal(t, 2, res.Clustering.K)
	assert.Len(t, res.Elbow, 10)
	assert.True(t, res.Cleaned.Has("cluster"))

	require.NotEmpty(t, res.Timeline)
	assert.Equal(t, "2020-01", res.Timeline[0].Label())
	assert.Equal(t, "2021-01", res.Timeline[len(res.Timeline)-1].Label())

	require.Len(t, res.GroupMeans, 1)
	assert.Len(t, res.GroupMeans[0].Means, 3)

	require.Len(t, res.YearCounts, 1)
	assert.Equal(t, []int{2020}, res.YearCounts[0].Years)
	assert.Len(t, res.YearCounts[0].Values, 2)

	for _, want := range []string{
		"cleaning_files/cleaned.csv",
		"cleaning_files/cleaned.xlsx",
		"eda_files/corr.csv",
		"charts/histogram_final_salary.png",
		"charts/correlation_heatmap.png",
		"charts/scatter_employment_duration_days_vs_final_salary_by_cluster.png",
		"charts/elbow_method.png",
		"charts/active_over_time.png",
		"charts/avg_final_salary_by_employment_type.png",
		"charts/top_employment_type_by_year_heatmap.png",
	} {
		p := filepath.Join(dir, filepath.FromSlash(want))
		assert.Contains(t, res.Files, p)
		assert.FileExists(t, p)
	}

	m, err := LoadManifest(filepath.Join(dir, "cleaning_files", ManifestFileName))
	require.NoError(t, err)
	assert.Equal(t, "employment_history", m.Name)
	require.NotNil(t, m.Clusters)
	assert.Equal(t, 2, m.Clusters.K)
	assert.Len(t, m.Relationships, len(res.Relationships))
	assert.Len(t, m.GroupMeans["final_salary by employment_type"], 3)
	require.Len(t, m.YearCounts, 1)
	assert.Equal(t, res.YearCounts[0].Counts, m.YearCounts[0].Counts)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", duplicatesCSV())
	j := &Job{Input: "people.csv", Output: OutputSpec{CSV: "cleaned.csv"}}
	j.SetBase(dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, j, testOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "cleaned.csv"))
}

func TestManifestDropsNaN(t *testing.T) {
	res := &Result{
		RunID:         "r",
		Relationships: []analysis.Relationship{{Column: "flat", R: nan(), PValue: nan(), N: 5, Class: analysis.Weak}},
	}
	path := filepath.Join(t.TempDir(), ManifestFileName)
	require.NoError(t, SaveManifest(res.manifest(), path))
	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Relationships, 1)
	assert.Nil(t, m.Relationships[0].R)
	assert.Nil(t, m.Relationships[0].PValue)
}

func nan() float64 {
	var zero float64
	return zero / zero
}
