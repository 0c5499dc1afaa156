// Package pipeline runs ingest, profile, clean, analyze and emit as one job
// described by a YAML file.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/edaloom-cli/internal/render"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
)

// Job describes one pipeline run.
type Job struct {
	Name     string   `yaml:"name"`
	Input    string   `yaml:"input"`
	Sheet    string   `yaml:"sheet,omitempty"`
	Limit    int      `yaml:"limit,omitempty"`
	Required []string `yaml:"required,omitempty"`
	Optional []string `yaml:"optional,omitempty"`

	Clean   CleanSpec   `yaml:"clean"`
	Output  OutputSpec  `yaml:"output"`
	Analyze AnalyzeSpec `yaml:"analyze"`
	Charts  []string    `yaml:"charts,omitempty"`

	// dir resolves relative paths; set by LoadJob.
	dir string
}

type CleanSpec struct {
	Dedupe           bool   `yaml:"dedupe"`
	Impute           bool   `yaml:"impute"`
	StandardizeText  bool   `yaml:"standardize_text"`
	StandardizeDates bool   `yaml:"standardize_dates"`
	Outliers         string `yaml:"outliers,omitempty"`
	// OutlierColumns limits removal to these columns; empty means all numeric.
	OutlierColumns []string `yaml:"outlier_columns,omitempty"`
}

type OutputSpec struct {
	CSV         string `yaml:"csv,omitempty"`
	XLSX        string `yaml:"xlsx,omitempty"`
	ChartsDir   string `yaml:"charts_dir,omitempty"`
	ChartNaming string `yaml:"chart_naming,omitempty"`
	// Manifest overrides where run.json goes.
	Manifest string `yaml:"manifest,omitempty"`
}

type AnalyzeSpec struct {
	Correlation *CorrelationSpec `yaml:"correlation,omitempty"`
	Clustering  *ClusteringSpec  `yaml:"clustering,omitempty"`
	Timeline    *TimelineSpec    `yaml:"timeline,omitempty"`
	Derive      DeriveSpec       `yaml:"derive,omitempty"`
	GroupMeans  []GroupMeanSpec  `yaml:"group_means,omitempty"`
	YearCounts  []YearCountSpec  `yaml:"year_counts,omitempty"`
}

type CorrelationSpec struct {
	Target    string   `yaml:"target,omitempty"`
	Columns   []string `yaml:"columns,omitempty"`
	MatrixCSV string   `yaml:"matrix_csv,omitempty"`
	Threshold float64  `yaml:"threshold,omitempty"`
}

type ClusteringSpec struct {
	Features []string `yaml:"features"`
	K        int      `yaml:"k,omitempty"`
	Seed     int64    `yaml:"seed,omitempty"`
	Elbow    bool     `yaml:"elbow,omitempty"`
	// Label names a column receiving cluster ids in the emitted dataset.
	Label string `yaml:"label,omitempty"`
}

type TimelineSpec struct {
	Start string `yaml:"start"`
	End   string `yaml:"end,omitempty"`
}

type DeriveSpec struct {
	Duration *DurationSpec `yaml:"duration,omitempty"`
	Age      *AgeSpec      `yaml:"age,omitempty"`
}

type DurationSpec struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Name  string `yaml:"name,omitempty"`
}

type AgeSpec struct {
	Column string `yaml:"column"`
	Name   string `yaml:"name,omitempty"`
}

type GroupMeanSpec struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// YearCountSpec counts rows per top Category value and year of Date.
type YearCountSpec struct {
	Category string `yaml:"category"`
	Date     string `yaml:"date"`
	Top      int    `yaml:"top,omitempty"`
}

// LoadJob reads a job file. Relative paths inside it resolve against the
// file's directory.
func LoadJob(path string) (*Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("job not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read job: %w", err)
	}
	j, err := ParseJob(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	j.dir = path
	return j, nil
}

// ParseJob decodes a job from YAML. Unknown keys are rejected.
func ParseJob(b []byte) (*Job, error) {
	var j Job
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&j); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate checks fields that have no sensible fallback.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Input) == "" {
		return errors.New("job input is required")
	}
	switch strings.ToLower(j.Clean.Outliers) {
	case "", "none", "zscore", "z", "z-score", "iqr":
	default:
		return fmt.Errorf("invalid outlier policy: %s (use zscore or iqr)", j.Clean.Outliers)
	}
	for _, y := range j.Analyze.YearCounts {
		if y.Category == "" || y.Date == "" {
			return errors.New("year_counts entries need category and date")
		}
	}
	if c := j.Analyze.Clustering; c != nil {
		if len(c.Features) == 0 {
			return errors.New("clustering needs at least one feature")
		}
		if c.K < 0 {
			return fmt.Errorf("invalid clustering k: %d", c.K)
		}
	}
	if t := j.Analyze.Timeline; t != nil && t.Start == "" {
		return errors.New("timeline needs a start column")
	}
	if _, err := render.ParseKinds(strings.Join(j.Charts, ",")); err != nil {
		return err
	}
	return nil
}

// SetBase makes relative paths resolve against dir.
func (j *Job) SetBase(dir string) { j.dir = dir }

// Path resolves p against the job file location.
func (j *Job) Path(p string) string { return utils.ResolvePath(j.dir, p) }

// DisplayName falls back to the input file name.
func (j *Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return utils.Slug(strings.TrimSuffix(filepath.Base(j.Input), filepath.Ext(j.Input)))
}
