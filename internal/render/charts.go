package render

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// MaxCountCategories bounds the distinct values a count plot will draw.
const MaxCountCategories = 30

func floats(d *dataset.Dataset, col string) (plotter.Values, error) {
	k, ok := d.KindOf(col)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, col)
	}
	if k != dataset.KindNumeric {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPlottable, col, k)
	}
	vals := analysis.PresentFloats(d, col)
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: %s has no values", ErrNotPlottable, col)
	}
	return plotter.Values(vals), nil
}

// Histogram draws the distribution of a numeric column. bins <= 0 lets the
// plotter pick.
func (r *Renderer) Histogram(d *dataset.Dataset, col string, bins int) (string, error) {
	vals, err := floats(d, col)
	if err != nil {
		return "", err
	}
	p := newPlot("Distribution of "+col, col, "Count")
	h, err := plotter.NewHist(vals, bins)
	if err != nil {
		return "", fmt.Errorf("histogram %s: %w", col, err)
	}
	h.FillColor = plotutil.Color(0)
	p.Add(h)
	return r.save(p, "histogram_"+col)
}

// BoxPlot draws one box for a numeric column.
func (r *Renderer) BoxPlot(d *dataset.Dataset, col string) (string, error) {
	vals, err := floats(d, col)
	if err != nil {
		return "", err
	}
	p := newPlot("Box plot of "+col, "", col)
	b, err := plotter.NewBoxPlot(vg.Points(40), 0, vals)
	if err != nil {
		return "", fmt.Errorf("boxplot %s: %w", col, err)
	}
	b.FillColor = plotutil.Color(1)
	p.Add(b)
	p.NominalX(col)
	return r.save(p, "boxplot_"+col)
}

// BoxPlotByGroup draws one box of value per category of group.
func (r *Renderer) BoxPlotByGroup(d *dataset.Dataset, value, group string) (string, error) {
	if _, err := floats(d, value); err != nil {
		return "", err
	}
	keys, err := d.Column(group)
	if err != nil {
		return "", err
	}
	vals, present, _ := d.Floats(value)
	byKey := map[string]plotter.Values{}
	var order []string
	for i, k := range keys {
		if dataset.IsMissing(k) || !present[i] {
			continue
		}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], vals[i])
	}
	if len(order) < 1 || len(order) >= MaxCountCategories {
		return "", fmt.Errorf("%w: %s has %d groups", ErrNotPlottable, group, len(order))
	}
	sort.Strings(order)
	p := newPlot(fmt.Sprintf("%s by %s", value, group), group, value)
	for i, k := range order {
		b, err := plotter.NewBoxPlot(vg.Points(30), float64(i), byKey[k])
		if err != nil {
			return "", fmt.Errorf("boxplot %s=%s: %w", group, k, err)
		}
		b.FillColor = plotutil.Color(i)
		p.Add(b)
	}
	p.NominalX(order...)
	return r.save(p, fmt.Sprintf("boxplot_%s_by_%s", value, group))
}

// CountPlot draws value frequencies of a categorical column, most frequent
// first. Columns with a single value or MaxCountCategories or more are
// rejected with ErrNotPlottable.
func (r *Renderer) CountPlot(d *dataset.Dataset, col string) (string, error) {
	counts, err := analysis.ValueCounts(d, col)
	if err != nil {
		return "", err
	}
	if len(counts) <= 1 || len(counts) >= MaxCountCategories {
		return "", fmt.Errorf("%w: %s has %d distinct values", ErrNotPlottable, col, len(counts))
	}
	labels := make([]string, len(counts))
	vals := make(plotter.Values, len(counts))
	for i, c := range counts {
		labels[i] = c.Value
		vals[i] = float64(c.Count)
	}
	return r.Bar("Count of "+col, "countplot_"+col, col, "Count", labels, vals)
}

// Bar draws one bar per label.
func (r *Renderer) Bar(title, name, xLabel, yLabel string, labels []string, vals []float64) (string, error) {
	if len(vals) == 0 {
		return "", fmt.Errorf("%w: %s has no bars", ErrNotPlottable, name)
	}
	p := newPlot(title, xLabel, yLabel)
	bars, err := plotter.NewBarChart(plotter.Values(vals), vg.Points(20))
	if err != nil {
		return "", fmt.Errorf("bar chart %s: %w", name, err)
	}
	bars.Color = plotutil.Color(2)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)
	return r.save(p, name)
}

// GroupMeans draws the mean of value per category of key.
func (r *Renderer) GroupMeans(d *dataset.Dataset, key, value string) (string, error) {
	gm, err := analysis.GroupMeans(d, key, value)
	if err != nil {
		return "", err
	}
	if len(gm) >= MaxCountCategories {
		return "", fmt.Errorf("%w: %s has %d groups", ErrNotPlottable, key, len(gm))
	}
	labels := make([]string, len(gm))
	vals := make([]float64, len(gm))
	for i, g := range gm {
		labels[i], vals[i] = g.Key, g.Mean
	}
	return r.Bar(fmt.Sprintf("Average %s by %s", value, key), fmt.Sprintf("avg_%s_by_%s", value, key), key, "Average "+value, labels, vals)
}

// matrixGrid exposes a row-major matrix as a heat map grid. NaN cells are
// drawn at zero.
type matrixGrid [][]float64

func (g matrixGrid) Dims() (c, r int) { return len(g[0]), len(g) }
func (g matrixGrid) X(c int) float64  { return float64(c) }
func (g matrixGrid) Y(r int) float64  { return float64(r) }
func (g matrixGrid) Z(c, r int) float64 {
	if v := g[r][c]; !math.IsNaN(v) {
		return v
	}
	return 0
}

// matrixHeatmap draws z with one printed label per cell. xs name the
// columns, ys the rows.
func (r *Renderer) matrixHeatmap(title, name string, xs, ys []string, z [][]float64, lo, hi float64, label func(float64) string) (string, error) {
	if hi <= lo {
		hi = lo + 1
	}
	p := newPlot(title, "", "")
	h := plotter.NewHeatMap(matrixGrid(z), palette.Heat(12, 1))
	h.Min, h.Max = lo, hi
	p.Add(h)

	var labels plotter.XYLabels
	for i := range ys {
		for j := range xs {
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(j), Y: float64(i)})
			labels.Labels = append(labels.Labels, label(z[i][j]))
		}
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return "", fmt.Errorf("heatmap labels: %w", err)
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = text.XCenter
		l.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(l)
	p.NominalX(xs...)
	p.NominalY(ys...)
	return r.save(p, name)
}

// Heatmap draws a correlation matrix with r printed in every cell.
func (r *Renderer) Heatmap(cm *analysis.CorrMatrix) (string, error) {
	if cm == nil || len(cm.Columns) < 2 {
		return "", fmt.Errorf("%w: correlation needs two numeric columns", ErrNotPlottable)
	}
	return r.matrixHeatmap("Correlation Matrix", "correlation_heatmap", cm.Columns, cm.Columns, cm.Values, -1, 1,
		func(v float64) string {
			if math.IsNaN(v) {
				return "NaN"
			}
			return fmt.Sprintf("%.2f", v)
		})
}

// CountHeatmap draws a category by year crosstab with counts in every cell.
func (r *Renderer) CountHeatmap(yc *analysis.YearCounts) (string, error) {
	if yc == nil || len(yc.Values) == 0 || len(yc.Years) == 0 {
		return "", fmt.Errorf("%w: no counts", ErrNotPlottable)
	}
	years := make([]string, len(yc.Years))
	for i, y := range yc.Years {
		years[i] = fmt.Sprint(y)
	}
	z := make([][]float64, len(yc.Counts))
	for i, row := range yc.Counts {
		z[i] = make([]float64, len(row))
		for j, n := range row {
			z[i][j] = float64(n)
		}
	}
	title := fmt.Sprintf("Top %s by %s year", yc.Category, yc.Date)
	return r.matrixHeatmap(title, "top_"+yc.Category+"_by_year_heatmap", years, yc.Values, z, 0, float64(yc.Max()),
		func(v float64) string { return fmt.Sprintf("%g", v) })
}

// Scatter draws y against x. When hue names a column, points are coloured
// by its value (cluster ids, categories).
func (r *Renderer) Scatter(d *dataset.Dataset, x, y, hue string) (string, error) {
	for _, c := range []string{x, y} {
		if _, err := floats(d, c); err != nil {
			return "", err
		}
	}
	xv, xp, _ := d.Floats(x)
	yv, yp, _ := d.Floats(y)
	var groups []string
	if hue != "" {
		var err error
		if groups, err = d.Column(hue); err != nil {
			return "", err
		}
	}
	series := map[string]plotter.XYs{}
	var order []string
	for i := range xv {
		if !xp[i] || !yp[i] {
			continue
		}
		key := ""
		if groups != nil {
			if dataset.IsMissing(groups[i]) {
				continue
			}
			key = groups[i]
		}
		if _, ok := series[key]; !ok {
			order = append(order, key)
		}
		series[key] = append(series[key], plotter.XY{X: xv[i], Y: yv[i]})
	}
	if len(order) == 0 {
		return "", fmt.Errorf("%w: no complete %s/%s pairs", ErrNotPlottable, x, y)
	}
	sort.Strings(order)
	title := fmt.Sprintf("%s vs %s", y, x)
	name := fmt.Sprintf("scatter_%s_vs_%s", y, x)
	if hue != "" {
		title += " by " + hue
		name += "_by_" + hue
	}
	p := newPlot(title, x, y)
	for i, key := range order {
		s, err := plotter.NewScatter(series[key])
		if err != nil {
			return "", fmt.Errorf("scatter: %w", err)
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		if key != "" {
			p.Legend.Add(key, s)
		}
	}
	return r.save(p, name)
}

// PairPlot draws a grid of histograms on the diagonal and scatters off it.
func (r *Renderer) PairPlot(d *dataset.Dataset, cols ...string) (string, error) {
	if len(cols) < 2 {
		return "", fmt.Errorf("%w: pair plot needs two numeric columns", ErrNotPlottable)
	}
	vals := make([][]float64, len(cols))
	pres := make([][]bool, len(cols))
	for i, c := range cols {
		if _, err := floats(d, c); err != nil {
			return "", err
		}
		vals[i], pres[i], _ = d.Floats(c)
	}
	n := len(cols)
	plots := make([][]*plot.Plot, n)
	for row := 0; row < n; row++ {
		plots[row] = make([]*plot.Plot, n)
		for col := 0; col < n; col++ {
			p := plot.New()
			if row == n-1 {
				p.X.Label.Text = cols[col]
			}
			if col == 0 {
				p.Y.Label.Text = cols[row]
			}
			if row == col {
				h, err := plotter.NewHist(plotter.Values(analysis.PresentFloats(d, cols[col])), 10)
				if err != nil {
					return "", fmt.Errorf("pair plot histogram %s: %w", cols[col], err)
				}
				h.FillColor = plotutil.Color(0)
				p.Add(h)
			} else {
				var pts plotter.XYs
				for i := range vals[col] {
					if pres[col][i] && pres[row][i] {
						pts = append(pts, plotter.XY{X: vals[col][i], Y: vals[row][i]})
					}
				}
				if len(pts) > 0 {
					s, err := plotter.NewScatter(pts)
					if err != nil {
						return "", fmt.Errorf("pair plot scatter: %w", err)
					}
					s.GlyphStyle.Color = plotutil.Color(0)
					s.GlyphStyle.Radius = vg.Points(1.5)
					p.Add(s)
				}
			}
			plots[row][col] = p
		}
	}

	side := r.Height
	if r.Width > side {
		side = r.Width
	}
	img := vgimg.New(side, side)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: n, Cols: n, PadX: vg.Millimeter, PadY: vg.Millimeter, PadTop: vg.Points(2), PadBottom: vg.Points(2), PadLeft: vg.Points(2), PadRight: vg.Points(2)}
	canvases := plot.Align(plots, tiles, dc)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			plots[row][col].Draw(canvases[row][col])
		}
	}

	return r.saveCanvas(img, "pairplot_numerical")
}

// Timeline draws active counts per month on a time axis.
func (r *Renderer) Timeline(months []analysis.MonthCount, yLabel string) (string, error) {
	if len(months) == 0 {
		return "", fmt.Errorf("%w: empty timeline", ErrNotPlottable)
	}
	pts := make(plotter.XYs, len(months))
	for i, m := range months {
		pts[i] = plotter.XY{X: float64(m.Month.Unix()), Y: float64(m.Active)}
	}
	if yLabel == "" {
		yLabel = "Active"
	}
	p := newPlot(yLabel+" over time", "Month", yLabel)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	if err := r.addLine(p, pts); err != nil {
		return "", err
	}
	return r.save(p, "active_over_time")
}

// Elbow draws inertia against k.
func (r *Renderer) Elbow(curve []analysis.ElbowPoint) (string, error) {
	if len(curve) == 0 {
		return "", fmt.Errorf("%w: empty elbow curve", ErrNotPlottable)
	}
	pts := make(plotter.XYs, len(curve))
	for i, e := range curve {
		pts[i] = plotter.XY{X: float64(e.K), Y: e.Inertia}
	}
	p := newPlot("Elbow Method for Optimal Clusters", "Number of Clusters", "Sum of Squared Distances")
	if err := r.addLine(p, pts); err != nil {
		return "", err
	}
	return r.save(p, "elbow_method")
}

func (r *Renderer) addLine(p *plot.Plot, pts plotter.XYs) error {
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("line: %w", err)
	}
	line.Color = plotutil.Color(0)
	points.Shape = draw.CircleGlyph{}
	points.Color = plotutil.Color(0)
	p.Add(line, points, plotter.NewGrid())
	return nil
}
