package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
)

// Clustering defaults.
const (
	DefaultClusters = 3
	DefaultMaxIter  = 300
	DefaultElbowMax = 10
)

// FeatureMatrix is the numeric feature subset of a dataset. Only rows with
// every feature present are kept; Rows maps matrix rows back to the dataset.
type FeatureMatrix struct {
	Columns []string
	Rows    []int
	X       *mat.Dense
}

// Features extracts the named numeric columns as a dense matrix.
func Features(d *dataset.Dataset, columns ...string) (*FeatureMatrix, error) {
	if len(columns) == 0 {
		return nil, errors.New("no feature columns")
	}
	vals := make([][]float64, len(columns))
	pres := make([][]bool, len(columns))
	for i, c := range columns {
		k, ok := d.KindOf(c)
		if !ok {
			return nil, fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, c)
		}
		if k != dataset.KindNumeric {
			return nil, fmt.Errorf("%w: %s is %s", ErrNotNumeric, c, k)
		}
		vals[i], pres[i], _ = d.Floats(c)
	}
	fm := &FeatureMatrix{Columns: append([]string(nil), columns...)}
	var data []float64
	for r := 0; r < d.NumRows(); r++ {
		complete := true
		for i := range columns {
			if !pres[i][r] {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		fm.Rows = append(fm.Rows, r)
		for i := range columns {
			data = append(data, vals[i][r])
		}
	}
	if len(fm.Rows) == 0 {
		return nil, fmt.Errorf("%w: no complete rows for %v", ErrTooFewRows, columns)
	}
	fm.X = mat.NewDense(len(fm.Rows), len(columns), data)
	return fm, nil
}

// Standardize returns a copy of x with every column shifted to zero mean and
// scaled to unit population variance. Constant columns are only centered.
func Standardize(x *mat.Dense) *mat.Dense {
	n, p := x.Dims()
	out := mat.NewDense(n, p, nil)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i := 0; i < n; i++ {
			out.Set(i, j, (col[i]-mean)/std)
		}
	}
	return out
}

// KMeansOptions controls a clustering run.
type KMeansOptions struct {
	K       int
	MaxIter int
	// Seed drives k-means++ initialization. Zero picks a time-based seed.
	Seed int64
}

// Clustering is the result of a k-means run.
type Clustering struct {
	K          int         `json:"k"`
	Labels     []int       `json:"-"`
	Centroids  [][]float64 `json:"centroids"`
	Sizes      []int       `json:"sizes"`
	Inertia    float64     `json:"inertia"`
	Iterations int         `json:"iterations"`
}

// KMeans partitions the rows of x into opt.K clusters with Lloyd iterations
// from a k-means++ start. Empty clusters keep their previous centroid.
func KMeans(x *mat.Dense, opt KMeansOptions) (*Clustering, error) {
	n, p := x.Dims()
	if opt.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", opt.K)
	}
	if n < opt.K {
		return nil, fmt.Errorf("%w: %d rows for k=%d", ErrTooFewRows, n, opt.K)
	}
	maxIter := opt.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	seed := opt.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = x.RawRowView(i)
	}
	c := &Clustering{K: opt.K, Centroids: initCenters(rows, opt.K, rng), Labels: make([]int, n)}
	for i := range c.Labels {
		c.Labels[i] = -1
	}
	for it := 0; it < maxIter; it++ {
		c.Iterations = it + 1
		changed := false
		for i, r := range rows {
			best := nearest(r, c.Centroids)
			if c.Labels[i] != best {
				changed = true
				c.Labels[i] = best
			}
		}
		if !changed {
			break
		}
		sums := make([][]float64, opt.K)
		counts := make([]int, opt.K)
		for k := range sums {
			sums[k] = make([]float64, p)
		}
		for i, r := range rows {
			k := c.Labels[i]
			counts[k]++
			for j := 0; j < p; j++ {
				sums[k][j] += r[j]
			}
		}
		for k := 0; k < opt.K; k++ {
			if counts[k] == 0 {
				continue
			}
			for j := 0; j < p; j++ {
				c.Centroids[k][j] = sums[k][j] / float64(counts[k])
			}
		}
	}
	c.Sizes = make([]int, opt.K)
	for i, r := range rows {
		k := c.Labels[i]
		c.Sizes[k]++
		c.Inertia += euclidSquared(r, c.Centroids[k])
	}
	return c, nil
}

func initCenters(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64(nil), rows[rng.Intn(n)]...))
	distSq := make([]float64, n)
	for len(centers) < k {
		total := 0.0
		for i, r := range rows {
			distSq[i] = euclidSquared(r, centers[nearest(r, centers)])
			total += distSq[i]
		}
		pick := n - 1
		if total > 0 {
			target := rng.Float64() * total
			cumulative := 0.0
			for i, d2 := range distSq {
				cumulative += d2
				if cumulative >= target {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(n)
		}
		centers = append(centers, append([]float64(nil), rows[pick]...))
	}
	return centers
}

func nearest(r []float64, centers [][]float64) int {
	best, bestD := 0, math.MaxFloat64
	for k, c := range centers {
		if d := euclidSquared(r, c); d < bestD {
			best, bestD = k, d
		}
	}
	return best
}

func euclidSquared(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// ElbowPoint is the inertia for one k of an elbow sweep.
type ElbowPoint struct {
	K       int     `json:"k"`
	Inertia float64 `json:"inertia"`
}

// ElbowCurve runs KMeans for k = 1..maxK (capped at the row count) and
// reports each inertia. It is diagnostic only and picks nothing.
func ElbowCurve(x *mat.Dense, maxK int, opt KMeansOptions) ([]ElbowPoint, error) {
	if maxK <= 0 {
		maxK = DefaultElbowMax
	}
	n, _ := x.Dims()
	if maxK > n {
		maxK = n
	}
	out := make([]ElbowPoint, 0, maxK)
	for k := 1; k <= maxK; k++ {
		o := opt
		o.K = k
		c, err := KMeans(x, o)
		if err != nil {
			return nil, fmt.Errorf("k=%d: %w", k, err)
		}
		out = append(out, ElbowPoint{K: k, Inertia: c.Inertia})
	}
	return out, nil
}

// LabelColumn spreads cluster labels over all n dataset rows. Rows that were
// not clustered get an empty cell.
func (fm *FeatureMatrix) LabelColumn(n int, labels []int) []string {
	out := make([]string, n)
	for i, r := range fm.Rows {
		if i < len(labels) && r < n {
			out[r] = strconv.Itoa(labels[i])
		}
	}
	return out
}

// ClusterMean is the average of each feature within one cluster, in the
// original units.
type ClusterMean struct {
	Cluster int                `json:"cluster"`
	Size    int                `json:"size"`
	Means   map[string]float64 `json:"means"`
}

// ClusterMeans averages the unscaled features per cluster.
func ClusterMeans(fm *FeatureMatrix, c *Clustering) []ClusterMean {
	_, p := fm.X.Dims()
	out := make([]ClusterMean, c.K)
	sums := make([][]float64, c.K)
	for k := range out {
		out[k] = ClusterMean{Cluster: k, Means: map[string]float64{}}
		sums[k] = make([]float64, p)
	}
	for i, k := range c.Labels {
		out[k].Size++
		row := fm.X.RawRowView(i)
		for j := 0; j < p; j++ {
			sums[k][j] += row[j]
		}
	}
	for k := range out {
		if out[k].Size == 0 {
			continue
		}
		for j, name := range fm.Columns {
			out[k].Means[name] = sums[k][j] / float64(out[k].Size)
		}
	}
	return out
}
