package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadCSVPreservesTextAndOrder(t *testing.T) {
	p := writeFile(t, "members.csv", strings.Join([]string{
		"id,name,salary,start_date",
		"1,Ann,050000.0,2020-01-15",
		"2, Bob ,NA,",
		"3,Cy,1e3,2021/03/01",
	}, "\n")+"\n")

	ds, err := Load(p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "members.csv", ds.Name)
	assert.Equal(t, []string{"id", "name", "salary", "start_date"}, ds.Columns)
	want := [][]string{
		{"1", "Ann", "050000.0", "2020-01-15"},
		{"2", " Bob ", "NA", ""},
		{"3", "Cy", "1e3", "2021/03/01"},
	}
	if diff := cmp.Diff(want, ds.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, ds.MissingCount())
}

func TestLoadCSVKeepsLeadingSpace(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("id,v\n1,a\n1, a\n1,a\n"), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, " a", ds.Rows[1][1])
	// only the third row repeats the first exactly
	assert.Equal(t, 1, ds.DuplicateCount())
}

func TestIsMissing(t *testing.T) {
	for _, v := range []string{"", " ", "NA", "None", "n/a", "#N/A", "<NA>", "-nan", "NULL", " nan "} {
		assert.True(t, IsMissing(v), "%q", v)
	}
	for _, v := range []string{"0", "none", "N.A.", "-", "nil"} {
		assert.False(t, IsMissing(v), "%q", v)
	}
}

func TestLoadCSVRowLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("a,b\n")
	for i := 0; i < 700; i++ {
		b.WriteString("1,2\n")
	}
	p := writeFile(t, "big.csv", b.String())

	ds, err := Load(p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultRowLimit, ds.NumRows())

	ds, err = Load(p, LoadOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, ds.NumRows())

	ds, err = Load(p, LoadOptions{Limit: -1})
	require.NoError(t, err)
	assert.Equal(t, 700, ds.NumRows())
}

func TestLoadCSVShortRowsArePadded(t *testing.T) {
	p := writeFile(t, "short.csv", "a,b,c\n1,2\n")
	ds, err := Load(p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2", ""}}, ds.Rows)
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	empty := writeFile(t, "empty.csv", "")
	_, err = Load(empty, LoadOptions{})
	assert.ErrorIs(t, err, ErrNoHeader)

	wide := writeFile(t, "wide.csv", "a,b\n1,2,3\n")
	_, err = Load(wide, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 fields")

	_, err = Load(writeFile(t, "doc.pdf", "x"), LoadOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadTSVSniffsDelimiter(t *testing.T) {
	p := writeFile(t, "t.tsv", "a\tb\nx,y\tz\n")
	ds, err := Load(p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x,y", "z"}}, ds.Rows)
}

func TestKinds(t *testing.T) {
	ds := New("k", []string{"num", "cat", "date", "empty", "mixed"}, [][]string{
		{"1.5", "a", "2020-01-01", "", "1"},
		{"NA", "b", "01/31/2020", "NA", "x"},
		{"-3", "a", "", "", "2"},
	})
	want := []Kind{KindNumeric, KindCategorical, KindDatetime, KindEmpty, KindCategorical}
	assert.Equal(t, want, ds.Kinds())
	assert.Equal(t, []string{"num"}, ds.NumericColumns())
	assert.Equal(t, []string{"cat", "mixed"}, ds.CategoricalColumns())

	k, ok := ds.KindOf("date")
	assert.True(t, ok)
	assert.Equal(t, KindDatetime, k)
	_, ok = ds.KindOf("zzz")
	assert.False(t, ok)
}

func TestParseNumericLocale(t *testing.T) {
	x, ok := ParseNumeric("1.234,5", NumberFormat{Decimal: ',', Thousands: '.'})
	require.True(t, ok)
	assert.InDelta(t, 1234.5, x, 1e-9)

	_, ok = ParseNumeric("1,000", NumberFormat{})
	assert.False(t, ok)

	x, ok = ParseNumeric(" 42 ", NumberFormat{})
	require.True(t, ok)
	assert.Equal(t, 42.0, x)
}

func TestParseTimeMonthFirst(t *testing.T) {
	ts, ok := ParseTime("03/04/2021")
	require.True(t, ok)
	assert.Equal(t, 3, int(ts.Month()))
	assert.Equal(t, 4, ts.Day())

	ts, ok = ParseTime("31/01/2021")
	require.True(t, ok)
	assert.Equal(t, 1, int(ts.Month()))

	_, ok = ParseTime("not a date")
	assert.False(t, ok)
}

func TestFloatsAndTimes(t *testing.T) {
	ds := New("f", []string{"v", "d"}, [][]string{{"1", "2020-02-01"}, {"x", "garbage"}, {"", ""}})
	vals, present, err := ds.Floats("v")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, present)
	assert.Equal(t, 1.0, vals[0])

	ts, err := ds.Times("d")
	require.NoError(t, err)
	assert.False(t, ts[0].IsZero())
	assert.True(t, ts[1].IsZero())
	assert.True(t, ts[2].IsZero())

	_, _, err = ds.Floats("missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestDuplicatesAndRowKey(t *testing.T) {
	ds := New("d", []string{"a", "b"}, [][]string{
		{"1", "x"}, {"1", "x"}, {"1", "NA"}, {"1", ""}, {"2", "x"},
	})
	assert.Equal(t, 2, ds.DuplicateCount())
	assert.Equal(t, RowKey([]string{"1", "NA"}), RowKey([]string{"1", "null"}))
	assert.NotEqual(t, RowKey([]string{"a,b", "c"}), RowKey([]string{"a", "b,c"}))
}

func TestAddColumnFilterClone(t *testing.T) {
	ds := New("d", []string{"a"}, [][]string{{"1"}, {"2"}, {"3"}})
	require.NoError(t, ds.AddColumn("cluster", []string{"0", "1", "0"}))
	require.NoError(t, ds.AddColumn("cluster", []string{"2", "2", "2"}))
	assert.Equal(t, []string{"a", "cluster"}, ds.Columns)
	assert.Equal(t, []string{"3", "2"}, ds.Rows[2])
	assert.Error(t, ds.AddColumn("bad", []string{"1"}))

	cp := ds.Clone()
	cp.Rows[0][0] = "changed"
	assert.Equal(t, "1", ds.Rows[0][0])

	f := ds.Filter([]bool{true, false, true})
	assert.Equal(t, 2, f.NumRows())
	assert.Equal(t, []string{"zzz"}, ds.Missing("a", "cluster", "zzz"))
	assert.True(t, ds.Has("a", "cluster"))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ds := New("w", []string{"a", "b"}, [][]string{{"1", "x,y"}, {"2", ""}})
	out := filepath.Join(t.TempDir(), "nested", "dir", "out.csv")
	require.NoError(t, WriteCSV(ds, out))
	require.NoError(t, WriteCSV(ds, out))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n2,\n", string(b))
}

func TestXLSXRoundTrip(t *testing.T) {
	ds := New("w", []string{"id", "name", "score"}, [][]string{{"1", "Ann", "3.5"}, {"2", "", "4"}})
	out := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSX(ds, out, "cleaned"))

	got, err := Load(out, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, ds.Columns, got.Columns)
	if diff := cmp.Diff(ds.Rows, got.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	got, err = Load(out, LoadOptions{Sheet: "CLEANED"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.NumRows())

	_, err = Load(out, LoadOptions{Sheet: "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available sheets: cleaned")
}
