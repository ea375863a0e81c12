package shooting

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/dotcommander/courtside/internal/stats"
)

const maxIterations = 100

// excluded columns are counts or ranks, not shot profile.
var excluded = map[string]bool{"Rk": true, "G": true, "MP": true}

// Clustering is a k-means partition of teams.
type Clustering struct {
	K        int
	Features []string
	Teams    []string
	// Labels[i] is the cluster of Teams[i]. Clusters are numbered from 1 in
	// order of first appearance.
	Labels []int
	// Centroids are in the original feature units.
	Centroids [][]float64
	Inertia   float64
}

// Cluster groups the teams of a shooting table into k clusters using the
// numeric columns as features, standardized to zero mean and unit variance.
// It is deterministic: the same table and k always give the same labels.
func Cluster(t *stats.Table, k int) (*Clustering, error) {
	teamCol := slices.Index(t.Columns, "Team")
	if teamCol < 0 {
		return nil, fmt.Errorf("table has no Team column")
	}
	n := t.Len()
	if k < 1 || k > n {
		return nil, fmt.Errorf("n_cluster must be between 1 and %d, got %d", n, k)
	}

	features, data := numericColumns(t)
	if len(features) == 0 {
		return nil, fmt.Errorf("table has no numeric columns")
	}
	mean, std := moments(data)
	z := make([][]float64, n)
	for i, row := range data {
		z[i] = make([]float64, len(row))
		for j, v := range row {
			if std[j] > 0 {
				z[i][j] = (v - mean[j]) / std[j]
			}
		}
	}

	labels, centroids := kmeans(z, k)
	labels, centroids = relabel(labels, centroids)

	c := &Clustering{K: k, Features: features, Labels: labels}
	for i := range n {
		c.Teams = append(c.Teams, strings.TrimRight(strings.TrimSpace(t.Rows[i][teamCol]), "*"))
		c.Inertia += sqDist(z[i], centroids[labels[i]-1])
	}
	for _, cz := range centroids {
		orig := make([]float64, len(cz))
		for j, v := range cz {
			orig[j] = v*std[j] + mean[j]
		}
		c.Centroids = append(c.Centroids, orig)
	}
	return c, nil
}

// Table renders the clustering as Team, Cluster and the feature columns,
// sorted by cluster then team.
func (c *Clustering) Table(source *stats.Table) *stats.Table {
	out := &stats.Table{Columns: append([]string{"Team", "Cluster"}, c.Features...)}
	idx := make(map[string]int, len(source.Columns))
	for j, col := range source.Columns {
		idx[col] = j
	}
	order := make([]int, len(c.Teams))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c.Labels[a] != c.Labels[b] {
			return c.Labels[a] - c.Labels[b]
		}
		return strings.Compare(c.Teams[a], c.Teams[b])
	})
	for _, i := range order {
		row := []string{c.Teams[i], strconv.Itoa(c.Labels[i])}
		for _, f := range c.Features {
			row = append(row, source.Rows[i][idx[f]])
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func numericColumns(t *stats.Table) ([]string, [][]float64) {
	data := make([][]float64, t.Len())
	var names []string
	for j, col := range t.Columns {
		if excluded[col] || col == "Team" {
			continue
		}
		vals := make([]float64, 0, t.Len())
		for _, row := range t.Rows {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				break
			}
			vals = append(vals, v)
		}
		if len(vals) != t.Len() {
			continue
		}
		names = append(names, col)
		for i, v := range vals {
			data[i] = append(data[i], v)
		}
	}
	return names, data
}

func moments(data [][]float64) (mean, std []float64) {
	d := len(data[0])
	mean = make([]float64, d)
	std = make([]float64, d)
	for _, row := range data {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(data))
	}
	for _, row := range data {
		for j, v := range row {
			std[j] += (v - mean[j]) * (v - mean[j])
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(len(data)))
	}
	return mean, std
}

// kmeans runs Lloyd's algorithm from a farthest-first seeding. Labels are
// zero based.
func kmeans(points [][]float64, k int) ([]int, [][]float64) {
	centroids := seed(points, k)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}
	for range maxIterations {
		changed := false
		for i, p := range points {
			best := nearest(p, centroids)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recompute(points, labels, centroids)
	}
	return labels, centroids
}

func seed(points [][]float64, k int) [][]float64 {
	origin := make([]float64, len(points[0]))
	first := 0
	for i, p := range points {
		if sqDist(p, origin) > sqDist(points[first], origin) {
			first = i
		}
	}
	centroids := [][]float64{slices.Clone(points[first])}
	for len(centroids) < k {
		far, farDist := 0, -1.0
		for i, p := range points {
			d := sqDist(p, centroids[nearest(p, centroids)])
			if d > farDist {
				far, farDist = i, d
			}
		}
		centroids = append(centroids, slices.Clone(points[far]))
	}
	return centroids
}

func recompute(points [][]float64, labels []int, old [][]float64) [][]float64 {
	k, d := len(old), len(points[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, d)
	}
	for i, p := range points {
		counts[labels[i]]++
		for j, v := range p {
			sums[labels[i]][j] += v
		}
	}
	for c := range sums {
		if counts[c] == 0 {
			// An emptied cluster keeps its previous centroid.
			sums[c] = old[c]
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
	}
	return sums
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, cen := range centroids {
		if d := sqDist(p, cen); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// relabel numbers clusters from 1 in order of first appearance and drops
// clusters no point ended up in.
func relabel(labels []int, centroids [][]float64) ([]int, [][]float64) {
	mapping := map[int]int{}
	var ordered [][]float64
	out := make([]int, len(labels))
	for i, l := range labels {
		m, ok := mapping[l]
		if !ok {
			m = len(mapping) + 1
			mapping[l] = m
			ordered = append(ordered, centroids[l])
		}
		out[i] = m
	}
	return out, ordered
}
