package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/edaloom-cli/internal/utils"
)

func TestSafeWriteFileReplaces(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.txt")
	if err := utils.SafeWriteFile(p, []byte("first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := utils.SafeWriteFile(p, []byte("second")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "second" {
		t.Fatalf("got %q", b)
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	job := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(job, []byte("name: x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := utils.ResolvePath(job, "data.csv"); got != filepath.Join(dir, "data.csv") {
		t.Fatalf("file base: got %q", got)
	}
	if got := utils.ResolvePath(dir, "out/a.csv"); got != filepath.Join(dir, "out", "a.csv") {
		t.Fatalf("dir base: got %q", got)
	}
	abs := filepath.Join(dir, "abs.csv")
	if got := utils.ResolvePath(job, abs); got != abs {
		t.Fatalf("abs: got %q", got)
	}
	if got := utils.ResolvePath(job, ""); got != "" {
		t.Fatalf("empty: got %q", got)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Final Salary":        "final_salary",
		"age (years)":         "age_years",
		"__x__":               "x",
		"":                    "unnamed",
		"Employer/Type & Co.": "employer_type_co",
	}
	for in, want := range cases {
		if got := utils.Slug(in); got != want {
			t.Errorf("Slug(%q)=%q want %q", in, got, want)
		}
	}
}
