package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/clean"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
)

// ManifestFileName is written next to the cleaned output of every run.
const ManifestFileName = "run.json"

// Manifest is the persisted record of one run. Statistics that can be NaN
// are stored as nullable numbers.
type Manifest struct {
	RunID    string    `json:"run_id"`
	Name     string    `json:"name"`
	Input    string    `json:"input"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	RowsBefore        int `json:"rows_before"`
	RowsAfter         int `json:"rows_after"`
	DuplicatesBefore  int `json:"duplicates_before"`
	DuplicatesAfter   int `json:"duplicates_after"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	OutliersRemoved   int `json:"outliers_removed"`

	Imputations   []clean.Imputation     `json:"imputations,omitempty"`
	Relationships []RelationshipEntry    `json:"relationships,omitempty"`
	Clusters      *ClusterEntry          `json:"clusters,omitempty"`
	Timeline      []MonthEntry           `json:"timeline,omitempty"`
	GroupMeans    map[string][]MeanEntry `json:"group_means,omitempty"`
	YearCounts    []*analysis.YearCounts `json:"year_counts,omitempty"`
	Files         []string               `json:"files"`
	Warnings      []string               `json:"warnings,omitempty"`
}

type RelationshipEntry struct {
	Column string   `json:"column"`
	R      *float64 `json:"r"`
	PValue *float64 `json:"p_value"`
	N      int      `json:"n"`
	Class  string   `json:"class"`
}

type ClusterEntry struct {
	K          int     `json:"k"`
	Sizes      []int   `json:"sizes"`
	Inertia    float64 `json:"inertia"`
	Iterations int     `json:"iterations"`
}

type MonthEntry struct {
	Month  string `json:"month"`
	Active int    `json:"active"`
}

type MeanEntry struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

func finite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

// manifest summarizes the result for run.json.
func (r *Result) manifest() *Manifest {
	m := &Manifest{
		RunID:             r.RunID,
		Name:              r.Name,
		Input:             r.Input,
		Started:           r.Started,
		Finished:          r.Finished,
		DuplicatesRemoved: r.DuplicatesRemoved,
		OutliersRemoved:   r.OutliersRemoved,
		Imputations:       r.Imputations,
		YearCounts:        r.YearCounts,
		Files:             append([]string{}, r.Files...),
		Warnings:          r.Warnings,
	}
	if r.Before != nil {
		m.RowsBefore, m.DuplicatesBefore = r.Before.Rows, r.Before.DuplicateRows
	}
	if r.After != nil {
		m.RowsAfter, m.DuplicatesAfter = r.After.Rows, r.After.DuplicateRows
	}
	for _, rel := range r.Relationships {
		m.Relationships = append(m.Relationships, RelationshipEntry{
			Column: rel.Column, R: finite(rel.R), PValue: finite(rel.PValue), N: rel.N, Class: rel.Class,
		})
	}
	if c := r.Clustering; c != nil {
		m.Clusters = &ClusterEntry{K: c.K, Sizes: c.Sizes, Inertia: c.Inertia, Iterations: c.Iterations}
	}
	for _, mc := range r.Timeline {
		m.Timeline = append(m.Timeline, MonthEntry{Month: mc.Label(), Active: mc.Active})
	}
	for _, g := range r.GroupMeans {
		if m.GroupMeans == nil {
			m.GroupMeans = map[string][]MeanEntry{}
		}
		entries := make([]MeanEntry, len(g.Means))
		for i, gm := range g.Means {
			entries[i] = MeanEntry{Key: gm.Key, Count: gm.Count, Mean: gm.Mean}
		}
		m.GroupMeans[g.Value+" by "+g.Key] = entries
	}
	return m
}

// SaveManifest writes m to path using atomic write.
func SaveManifest(m *Manifest, path string) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	data, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, data)
}

// LoadManifest reads a run.json file.
func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("manifest not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
