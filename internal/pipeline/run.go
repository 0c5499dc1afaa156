package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/clean"
	"github.com/KaramelBytes/edaloom-cli/internal/config"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/logging"
	"github.com/KaramelBytes/edaloom-cli/internal/render"
)

// Default names for derived columns.
const (
	DefaultDurationColumn = "duration_days"
	DefaultAgeColumn      = "age"
)

// Options carries run-wide settings.
type Options struct {
	Config *config.Global
	Logger *zap.Logger
	// Now is the reference time for open intervals, ages and file stamps.
	Now func() time.Time
}

// GroupMeansResult holds one group-means analysis.
type GroupMeansResult struct {
	Key   string
	Value string
	Means []analysis.GroupMean
}

// Result is everything a run produced.
type Result struct {
	RunID    string
	Name     string
	Input    string
	Started  time.Time
	Finished time.Time

	Before            *analysis.Profile
	After             *analysis.Profile
	DuplicatesRemoved int
	Imputations       []clean.Imputation
	OutliersRemoved   int

	Correlation   *analysis.CorrMatrix
	Relationships []analysis.Relationship
	Clustering    *analysis.Clustering
	ClusterMeans  []analysis.ClusterMean
	Elbow         []analysis.ElbowPoint
	Timeline      []analysis.MonthCount
	GroupMeans    []GroupMeansResult
	YearCounts    []*analysis.YearCounts

	// Cleaned is the dataset as emitted.
	Cleaned *dataset.Dataset
	// Files lists every artifact written, manifest excluded.
	Files    []string
	Manifest string
	Warnings []string
}

type runner struct {
	job *Job
	cfg *config.Global
	log *zap.Logger
	now time.Time
	res *Result

	data *dataset.Dataset
	// raw is the deduplicated data before imputation; open intervals stay open.
	raw *dataset.Dataset
}

// Run executes job. Cancellation is checked between steps. A missing
// required column fails with *MissingColumnsError before anything is
// written; a step whose inputs are absent is skipped with a warning.
func Run(ctx context.Context, job *Job, opt Options) (*Result, error) {
	cfg := opt.Config
	if cfg == nil {
		cfg = config.Default()
	}
	clock := opt.Now
	if clock == nil {
		clock = time.Now
	}
	r := &runner{
		job: job,
		cfg: cfg,
		log: logging.OrNop(opt.Logger).With(zap.String("job", job.DisplayName())),
		now: clock(),
	}
	r.res = &Result{
		RunID:   uuid.NewString(),
		Name:    job.DisplayName(),
		Input:   job.Path(job.Input),
		Started: r.now,
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"ingest", r.ingest},
		{"clean", r.clean},
		{"correlate", r.correlate},
		{"cluster", r.cluster},
		{"timeline", r.timeline},
		{"group means", r.groupMeans},
		{"year counts", r.yearCounts},
		{"emit", r.emit},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return r.res, fmt.Errorf("%s: %w", s.name, err)
		}
		r.log.Debug("step", zap.String("step", s.name))
		if err := s.fn(); err != nil {
			return r.res, err
		}
	}

	r.res.Finished = clock()
	path := r.manifestPath()
	if err := SaveManifest(r.res.manifest(), path); err != nil {
		return r.res, fmt.Errorf("write manifest: %w", err)
	}
	r.res.Manifest = path
	r.log.Info("run complete",
		zap.String("run_id", r.res.RunID),
		zap.Int("files", len(r.res.Files)),
		zap.Int("warnings", len(r.res.Warnings)),
	)
	return r.res, nil
}

func (r *runner) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.res.Warnings = append(r.res.Warnings, msg)
	r.log.Warn("step skipped", zap.String("reason", msg))
}

func (r *runner) ingest() error {
	limit := r.job.Limit
	if limit == 0 {
		limit = r.cfg.RowLimit
	}
	d, err := dataset.Load(r.res.Input, dataset.LoadOptions{Limit: limit, Sheet: r.job.Sheet})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if missing := d.Missing(r.job.Required...); len(missing) > 0 {
		return &MissingColumnsError{Input: r.res.Input, Columns: missing}
	}
	for _, c := range d.Missing(r.job.Optional...) {
		r.warn("optional column %q not found", c)
	}
	r.res.Before = analysis.ProfileDataset(d)
	r.log.Info("loaded",
		zap.String("input", r.res.Input),
		zap.Int("rows", d.NumRows()),
		zap.Int("columns", d.NumCols()),
	)
	r.data = d
	return nil
}

func (r *runner) clean() error {
	d := r.data
	spec := r.job.Clean
	if spec.Dedupe {
		var n int
		d, n = clean.DropDuplicates(d)
		r.res.DuplicatesRemoved = n
		r.log.Info("duplicates removed", zap.Int("removed", n))
	}
	if spec.StandardizeText {
		out, err := clean.StandardizeText(d)
		if err != nil {
			return fmt.Errorf("standardize text: %w", err)
		}
		d = out
	}
	if spec.StandardizeDates {
		out, err := clean.StandardizeDates(d)
		if err != nil {
			return fmt.Errorf("standardize dates: %w", err)
		}
		d = out
	}
	d = d.Clone()
	if err := r.derive(d); err != nil {
		return err
	}
	r.raw = d
	if spec.Impute {
		d, r.res.Imputations = clean.Impute(d, r.log)
	}
	if name := strings.ToLower(spec.Outliers); name != "" && name != "none" {
		out, err := r.removeOutliers(d, name)
		if err != nil {
			return err
		}
		d = out
	}
	r.data = d
	r.res.After = analysis.ProfileDataset(d)
	r.res.Cleaned = d
	return nil
}

func (r *runner) derive(d *dataset.Dataset) error {
	if s := r.job.Analyze.Derive.Duration; s != nil {
		name := s.Name
		if name == "" {
			name = DefaultDurationColumn
		}
		if missing := d.Missing(s.Start, s.End); len(missing) > 0 {
			r.warn("derive %s: missing columns %s", name, strings.Join(missing, ", "))
		} else {
			vals, err := analysis.DurationDays(d, s.Start, s.End, r.now)
			if err != nil {
				return fmt.Errorf("derive %s: %w", name, err)
			}
			if err := d.AddColumn(name, vals); err != nil {
				return fmt.Errorf("derive %s: %w", name, err)
			}
		}
	}
	if s := r.job.Analyze.Derive.Age; s != nil {
		name := s.Name
		if name == "" {
			name = DefaultAgeColumn
		}
		if !d.Has(s.Column) {
			r.warn("derive %s: missing column %s", name, s.Column)
			return nil
		}
		vals, err := analysis.AgeYears(d, s.Column, r.now)
		if err != nil {
			return fmt.Errorf("derive %s: %w", name, err)
		}
		if err := d.AddColumn(name, vals); err != nil {
			return fmt.Errorf("derive %s: %w", name, err)
		}
	}
	return nil
}

func (r *runner) removeOutliers(d *dataset.Dataset, name string) (*dataset.Dataset, error) {
	p, err := clean.PolicyByName(name, r.cfg.ZScoreThreshold, r.cfg.IQRMultiplier)
	if err != nil {
		return nil, err
	}
	var cols []string
	for _, c := range r.job.Clean.OutlierColumns {
		if k, ok := d.KindOf(c); !ok || k != dataset.KindNumeric {
			r.warn("outliers: column %q is absent or not numeric", c)
			continue
		}
		cols = append(cols, c)
	}
	if len(r.job.Clean.OutlierColumns) > 0 && len(cols) == 0 {
		return d, nil
	}
	if len(cols) == 0 && len(d.NumericColumns()) == 0 {
		r.warn("outliers: no numeric columns")
		return d, nil
	}
	out, n, err := clean.RemoveOutliers(d, p, cols...)
	if err != nil {
		return nil, fmt.Errorf("outliers: %w", err)
	}
	r.res.OutliersRemoved = n
	r.log.Info("outliers removed", zap.String("policy", p.Name()), zap.Int("removed", n))
	return out, nil
}

// skippable reports analysis errors that mean "not enough input" rather
// than failure.
func skippable(err error) bool {
	return errors.Is(err, analysis.ErrNotNumeric) ||
		errors.Is(err, analysis.ErrTooFewRows) ||
		errors.Is(err, dataset.ErrColumnNotFound)
}

func (r *runner) correlate() error {
	spec := r.job.Analyze.Correlation
	if spec == nil {
		return nil
	}
	cols := spec.Columns
	if len(cols) == 0 {
		cols = r.data.NumericColumns()
	}
	if len(cols) < 2 {
		r.warn("correlation: needs at least two numeric columns")
		return nil
	}
	cm, err := analysis.Correlate(r.data, cols...)
	if err != nil {
		if skippable(err) {
			r.warn("correlation: %v", err)
			return nil
		}
		return fmt.Errorf("correlation: %w", err)
	}
	r.res.Correlation = cm

	if spec.Target != "" {
		thr := spec.Threshold
		if thr == 0 {
			thr = r.cfg.CorrelationThreshold
		}
		rels, err := analysis.ClassifyTarget(cm, spec.Target, thr)
		if err != nil {
			r.warn("correlation target: %v", err)
		} else {
			r.res.Relationships = rels
		}
	}
	if spec.MatrixCSV != "" {
		path := r.job.Path(spec.MatrixCSV)
		if err := cm.WriteCSV(path); err != nil {
			return fmt.Errorf("correlation matrix: %w", err)
		}
		r.res.Files = append(r.res.Files, path)
	}
	return nil
}

func (r *runner) cluster() error {
	spec := r.job.Analyze.Clustering
	if spec == nil {
		return nil
	}
	if missing := r.data.Missing(spec.Features...); len(missing) > 0 {
		r.warn("clustering: missing columns %s", strings.Join(missing, ", "))
		return nil
	}
	fm, err := analysis.Features(r.data, spec.Features...)
	if err != nil {
		if skippable(err) {
			r.warn("clustering: %v", err)
			return nil
		}
		return fmt.Errorf("clustering: %w", err)
	}
	x := analysis.Standardize(fm.X)
	opt := analysis.KMeansOptions{K: spec.K, MaxIter: r.cfg.ClusterMaxIter, Seed: spec.Seed}
	if opt.K == 0 {
		opt.K = r.cfg.Clusters
	}
	if opt.Seed == 0 {
		opt.Seed = r.cfg.ClusterSeed
	}
	c, err := analysis.KMeans(x, opt)
	if err != nil {
		if skippable(err) {
			r.warn("clustering: %v", err)
			return nil
		}
		return fmt.Errorf("clustering: %w", err)
	}
	r.res.Clustering = c
	r.res.ClusterMeans = analysis.ClusterMeans(fm, c)
	r.log.Info("clustered", zap.Int("k", c.K), zap.Ints("sizes", c.Sizes), zap.Float64("inertia", c.Inertia))

	if spec.Elbow {
		curve, err := analysis.ElbowCurve(x, r.cfg.ElbowMaxK, opt)
		if err != nil {
			return fmt.Errorf("elbow: %w", err)
		}
		r.res.Elbow = curve
	}
	if spec.Label != "" {
		if err := r.data.AddColumn(spec.Label, fm.LabelColumn(r.data.NumRows(), c.Labels)); err != nil {
			return fmt.Errorf("cluster label: %w", err)
		}
	}
	return nil
}

func (r *runner) timeline() error {
	spec := r.job.Analyze.Timeline
	if spec == nil {
		return nil
	}
	if !r.raw.Has(spec.Start) {
		r.warn("timeline: missing column %s", spec.Start)
		return nil
	}
	end := spec.End
	if end != "" && !r.raw.Has(end) {
		r.warn("timeline: missing end column %s, treating every interval as open", end)
		end = ""
	}
	months, err := analysis.ActiveByMonth(r.raw, spec.Start, end, r.now)
	if err != nil {
		return fmt.Errorf("timeline: %w", err)
	}
	r.res.Timeline = months
	return nil
}

func (r *runner) groupMeans() error {
	for _, g := range r.job.Analyze.GroupMeans {
		gm, err := analysis.GroupMeans(r.data, g.Key, g.Value)
		if err != nil {
			if skippable(err) {
				r.warn("group means %s by %s: %v", g.Value, g.Key, err)
				continue
			}
			return fmt.Errorf("group means: %w", err)
		}
		r.res.GroupMeans = append(r.res.GroupMeans, GroupMeansResult{Key: g.Key, Value: g.Value, Means: gm})
	}
	return nil
}

func (r *runner) yearCounts() error {
	for _, y := range r.job.Analyze.YearCounts {
		yc, err := analysis.CountByYear(r.data, y.Category, y.Date, y.Top)
		if err != nil {
			if skippable(err) {
				r.warn("year counts %s by %s: %v", y.Category, y.Date, err)
				continue
			}
			return fmt.Errorf("year counts: %w", err)
		}
		r.res.YearCounts = append(r.res.YearCounts, yc)
	}
	return nil
}

func (r *runner) emit() error {
	out := r.job.Output
	if out.CSV != "" {
		path := r.job.Path(out.CSV)
		if err := dataset.WriteCSV(r.data, path); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		r.res.Files = append(r.res.Files, path)
	}
	if out.XLSX != "" {
		path := r.job.Path(out.XLSX)
		if err := dataset.WriteXLSX(r.data, path, ""); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		r.res.Files = append(r.res.Files, path)
	}
	return r.charts()
}

func (r *runner) chartsDir() string {
	dir := r.job.Output.ChartsDir
	if dir == "" {
		dir = r.cfg.OutputDir
	}
	return r.job.Path(dir)
}

func (r *runner) charts() error {
	if len(r.job.Charts) == 0 && r.job.Output.ChartsDir == "" {
		return nil
	}
	kinds, err := render.ParseKinds(strings.Join(r.job.Charts, ","))
	if err != nil {
		return err
	}
	naming := r.job.Output.ChartNaming
	if naming == "" {
		naming = r.cfg.ChartNaming
	}
	rd := render.New(r.chartsDir(), naming, r.cfg.ChartWidthIn, r.cfg.ChartHeightIn, r.log)
	rd.Now = func() time.Time { return r.now }

	opt := render.SuiteOptions{Kinds: kinds, Corr: r.res.Correlation}
	if c := r.job.Analyze.Clustering; c != nil && r.res.Clustering != nil && len(c.Features) >= 2 {
		opt.ScatterX, opt.ScatterY = c.Features[0], c.Features[1]
		opt.Hue = c.Label
	}
	suite, err := rd.Suite(r.data, opt)
	if err != nil {
		return fmt.Errorf("charts: %w", err)
	}
	r.res.Files = append(r.res.Files, suite.Files...)
	for _, s := range suite.Skipped {
		r.warn("chart %s", s)
	}

	extra := func(label string, path string, err error) error {
		switch {
		case err == nil:
			r.res.Files = append(r.res.Files, path)
		case errors.Is(err, render.ErrNotPlottable):
			r.warn("chart %s: %v", label, err)
		default:
			return fmt.Errorf("chart %s: %w", label, err)
		}
		return nil
	}
	if len(r.res.Elbow) > 0 {
		p, err := rd.Elbow(r.res.Elbow)
		if err := extra("elbow", p, err); err != nil {
			return err
		}
	}
	if len(r.res.Timeline) > 0 {
		p, err := rd.Timeline(r.res.Timeline, "Active")
		if err := extra("timeline", p, err); err != nil {
			return err
		}
	}
	for _, g := range r.res.GroupMeans {
		p, err := rd.GroupMeans(r.data, g.Key, g.Value)
		if err := extra("group means "+g.Value, p, err); err != nil {
			return err
		}
	}
	for _, yc := range r.res.YearCounts {
		p, err := rd.CountHeatmap(yc)
		if err := extra("year counts "+yc.Category, p, err); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) manifestPath() string {
	if m := r.job.Output.Manifest; m != "" {
		return r.job.Path(m)
	}
	if c := r.job.Output.CSV; c != "" {
		return filepath.Join(filepath.Dir(r.job.Path(c)), ManifestFileName)
	}
	if c := r.job.Output.XLSX; c != "" {
		return filepath.Join(filepath.Dir(r.job.Path(c)), ManifestFileName)
	}
	return filepath.Join(r.chartsDir(), ManifestFileName)
}
