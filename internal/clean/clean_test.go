package clean

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

func column(ds *dataset.Dataset, name string) []string {
	c, _ := ds.Column(name)
	return c
}

func numericColumn(name string, vals ...float64) *dataset.Dataset {
	rows := make([][]string, len(vals))
	for i, v := range vals {
		rows[i] = []string{fmt.Sprint(v)}
	}
	return dataset.New("t", []string{name}, rows)
}

func TestDropDuplicatesKeepsFirst(t *testing.T) {
	ds := dataset.New("d", []string{"id", "v"}, [][]string{
		{"1", "a"}, {"2", "b"}, {"1", "a"}, {"3", ""}, {"3", "NA"}, {"1", "a"},
	})
	out, removed := DropDuplicates(ds)
	assert.Equal(t, 3, removed)
	want := [][]string{{"1", "a"}, {"2", "b"}, {"3", ""}}
	if diff := cmp.Diff(want, out.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, out.DuplicateCount())
	assert.Equal(t, 6, ds.NumRows(), "input must not change")
}

func TestDropDuplicatesIsExact(t *testing.T) {
	ds, err := dataset.ReadCSV(strings.NewReader("id,name\n1,Ann\n1, Ann\n1,Ann \n"), dataset.LoadOptions{})
	require.NoError(t, err)
	out, removed := DropDuplicates(ds)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 3, out.NumRows())
}

func TestImputeMeanAndMode(t *testing.T) {
	ds := dataset.New("d", []string{"salary", "type", "tie", "full", "blank"}, [][]string{
		{"1", "a", "x", "k", ""},
		{"NA", "b", "y", "k", ""},
		{"2", "b", "", "k", ""},
		{"", "", "y", "k", ""},
		{"3", "NA", "x", "k", ""},
	})
	out, report := Impute(ds, nil)

	assert.Equal(t, []string{"1", "2", "2", "2", "3"}, column(out, "salary"))
	assert.Equal(t, []string{"a", "b", "b", "b", "b"}, column(out, "type"))
	assert.Equal(t, []string{"x", "y", "x", "y", "x"}, column(out, "tie"))
	assert.Equal(t, 5, out.MissingCount(), "only the all-empty column keeps its gaps")

	require.Len(t, report, 4)
	byCol := map[string]Imputation{}
	for _, r := range report {
		byCol[r.Column] = r
	}
	assert.Equal(t, Imputation{Column: "salary", Kind: dataset.KindNumeric, Strategy: StrategyMean, Value: "2", Filled: 2}, byCol["salary"])
	assert.Equal(t, StrategyMode, byCol["type"].Strategy)
	assert.Equal(t, "x", byCol["tie"].Value)
	assert.True(t, byCol["blank"].Skipped)
	_, ok := byCol["full"]
	assert.False(t, ok)

	// input untouched
	assert.Equal(t, "NA", ds.Rows[1][0])
}

func TestImputeFractionalMean(t *testing.T) {
	ds := dataset.New("d", []string{"v"}, [][]string{{"1"}, {"2"}, {""}})
	out, _ := Impute(ds, nil)
	assert.Equal(t, "1.5", out.Rows[2][0])
}

func TestZScoreStrictThreshold(t *testing.T) {
	vals := make([]float64, 10)
	vals[9] = 10 // mean 1, population std 3, z = 3 exactly
	ds := numericColumn("v", vals...)
	mask, err := OutlierMask(ds, ZScore{Threshold: 3})
	require.NoError(t, err)
	for i, m := range mask {
		assert.False(t, m, "row %d flagged at |z| == 3", i)
	}

	vals = make([]float64, 21)
	vals[20] = 100
	ds = numericColumn("v", vals...)
	mask, err = OutlierMask(ds, ZScore{Threshold: 3})
	require.NoError(t, err)
	assert.True(t, mask[20])
	assert.False(t, mask[0])
}

func TestZScoreConstantColumn(t *testing.T) {
	ds := numericColumn("v", 5, 5, 5, 5)
	mask, err := OutlierMask(ds, ZScore{})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, false}, mask)
}

func TestIQRFences(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100}
	lo, hi, ok := IQR{Multiplier: 1.5}.Fences(xs)
	require.True(t, ok)
	assert.InDelta(t, -3.5, lo, 1e-9)
	assert.InDelta(t, 14.5, hi, 1e-9)

	ds := numericColumn("v", xs...)
	mask, err := OutlierMask(ds, IQR{})
	require.NoError(t, err)
	flagged := indices(mask)
	assert.Equal(t, []int{9}, flagged)
}

func TestRemoveOutliersRequiresAllColumnsToPass(t *testing.T) {
	rows := [][]string{}
	for i := 1; i <= 9; i++ {
		rows = append(rows, []string{fmt.Sprint(i), fmt.Sprint(i), "x"})
	}
	rows = append(rows, []string{"100", "5", "x"}) // only a flags
	rows = append(rows, []string{"5", "-200", "x"}) // only b flags
	ds := dataset.New("d", []string{"a", "b", "label"}, rows)

	out, removed, err := RemoveOutliers(ds, IQR{})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 9, out.NumRows())

	_, _, err = RemoveOutliers(ds, IQR{}, "nope")
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)
}

func TestSmallSampleZScoreVersusIQR(t *testing.T) {
	// z for 100 is about 1.99 with the population std, below the default 3
	ds := numericColumn("v", 1, 2, 3, 4, 100)
	mask, err := OutlierMask(ds, ZScore{})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, false, false}, mask)

	mask, err = OutlierMask(ds, IQR{})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, false, true}, mask)
}

func TestOutlierMaskIgnoresMissing(t *testing.T) {
	ds := dataset.New("d", []string{"v"}, [][]string{{"1"}, {"2"}, {""}, {"3"}, {"NA"}})
	mask, err := OutlierMask(ds, IQR{})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, false, false}, mask)
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("ZScore", 2.5, 0)
	require.NoError(t, err)
	assert.Equal(t, ZScore{Threshold: 2.5}, p)
	p, err = PolicyByName("iqr", 0, 3)
	require.NoError(t, err)
	assert.Equal(t, "iqr", p.Name())
	_, err = PolicyByName("mad", 0, 0)
	assert.Error(t, err)
}

func TestOutlierReport(t *testing.T) {
	ds := numericColumn("v", 1, 2, 3, 4, 5, 6, 7, 8, 9, 100)
	rep := OutlierReport(ds, ZScore{}, IQR{})
	require.Len(t, rep, 1)
	assert.Equal(t, "v", rep[0].Column)
	assert.Equal(t, []int{9}, rep[0].IQR)
	assert.Empty(t, rep[0].ZScore)
}

func TestStandardizeText(t *testing.T) {
	ds := dataset.New("d", []string{"name", "n"}, [][]string{{"  Acme LTD ", "1"}, {"NA", "2"}})
	out, err := StandardizeText(ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme ltd", "NA"}, column(out, "name"))
	assert.Equal(t, []string{"1", "2"}, column(out, "n"))

	_, err = StandardizeText(ds, "nope")
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)
}

func TestStandardizeDates(t *testing.T) {
	ds := dataset.New("d", []string{"Start_Date", "note"}, [][]string{
		{"01/31/2020", "a"}, {"2021/03/04", "b"}, {"soon", "c"},
	})
	assert.Equal(t, []string{"Start_Date"}, DateColumns(ds))
	out, err := StandardizeDates(ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-31", "2021-03-04", ""}, column(out, "Start_Date"))
}
