package moral

import (
	"fmt"
	"math"
	"sort"
)

// DistanceFunc measures the distance between two embedding vectors.
type DistanceFunc func(a, b []float64) float64

// CosineDistance returns 1 - cosine similarity of a and b. Two zero vectors are at distance 0;
// a zero vector is at distance 1 from anything else. Vectors of different lengths are at the
// maximum distance, 2; Cluster and Nearest reject them with ErrDimensionMismatch instead.
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		if normA == normB {
			return 0
		}
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

const (
	DefaultClusterRadius    = 0.3
	DefaultClusterMinPoints = 5
)

// ClusterParams configures density-based clustering.
type ClusterParams struct {
	// Radius is the neighbourhood radius: points closer than Radius are neighbours.
	Radius float64
	// MinPoints is the neighbourhood size (the point itself included) needed to seed a cluster.
	MinPoints int
	// Distance defaults to CosineDistance.
	Distance DistanceFunc
}

// DefaultClusterParams returns radius 0.3, 5 points per cluster and cosine distance.
func DefaultClusterParams() ClusterParams {
	return ClusterParams{
		Radius:    DefaultClusterRadius,
		MinPoints: DefaultClusterMinPoints,
		Distance:  CosineDistance,
	}
}

func (p ClusterParams) withDefaults() ClusterParams {
	d := DefaultClusterParams()
	if p.Radius <= 0 {
		p.Radius = d.Radius
	}
	if p.MinPoints <= 0 {
		p.MinPoints = d.MinPoints
	}
	if p.Distance == nil {
		p.Distance = d.Distance
	}
	return p
}

// Cluster partitions embeddings with DBSCAN and returns groups of indices into embeddings.
// Points that do not belong to any dense region are returned as singleton groups after the
// density clusters, so every index appears in exactly one group.
func Cluster(embeddings [][]float64, p ClusterParams) ([][]int, error) {
	groups, noise, err := ClusterWithNoise(embeddings, p)
	if err != nil {
		return nil, err
	}
	for _, i := range noise {
		groups = append(groups, []int{i})
	}
	return groups, nil
}

// ClusterWithNoise is Cluster with the points outside every dense region returned separately,
// in index order, instead of as singletons.
func ClusterWithNoise(embeddings [][]float64, p ClusterParams) (clusters [][]int, noise []int, err error) {
	if len(embeddings) == 0 {
		return nil, nil, nil
	}
	dim := len(embeddings[0])
	for i, e := range embeddings {
		if len(e) != dim {
			return nil, nil, fmt.Errorf("Cluster: embedding %d has %d dimensions, want %d: %w", i, len(e), dim, ErrDimensionMismatch)
		}
	}
	p = p.withDefaults()

	d := dbscan{points: embeddings, params: p}
	clusters = d.run()

	assigned := make([]bool, len(embeddings))
	for _, g := range clusters {
		for _, i := range g {
			assigned[i] = true
		}
	}
	for i := range embeddings {
		if !assigned[i] {
			noise = append(noise, i)
		}
	}
	return clusters, noise, nil
}

// ClusterItems clusters items by their embeddings (embeddings[i] belongs to items[i]).
func ClusterItems[T any](items []T, embeddings [][]float64, p ClusterParams) ([][]T, error) {
	if len(items) != len(embeddings) {
		return nil, fmt.Errorf("ClusterItems: %d items but %d embeddings", len(items), len(embeddings))
	}
	groups, err := Cluster(embeddings, p)
	if err != nil {
		return nil, err
	}
	out := make([][]T, 0, len(groups))
	for _, g := range groups {
		members := make([]T, 0, len(g))
		for _, i := range g {
			members = append(members, items[i])
		}
		out = append(out, members)
	}
	return out, nil
}

type dbscan struct {
	points  [][]float64
	params  ClusterParams
	visited []bool
	member  []bool
}

func (d *dbscan) run() [][]int {
	d.visited = make([]bool, len(d.points))
	d.member = make([]bool, len(d.points))

	var clusters [][]int
	for i := range d.points {
		if d.visited[i] {
			continue
		}
		d.visited[i] = true
		neighbours := d.regionQuery(i)
		if len(neighbours) < d.params.MinPoints {
			// Noise for now; may still be claimed as a border point later.
			continue
		}
		clusters = append(clusters, d.expand(i, neighbours))
	}
	return clusters
}

func (d *dbscan) expand(seed int, neighbours []int) []int {
	cluster := []int{seed}
	d.member[seed] = true

	queued := make(map[int]bool, len(neighbours))
	for _, n := range neighbours {
		queued[n] = true
	}

	for k := 0; k < len(neighbours); k++ {
		n := neighbours[k]
		if !d.visited[n] {
			d.visited[n] = true
			more := d.regionQuery(n)
			if len(more) >= d.params.MinPoints {
				for _, m := range more {
					if !queued[m] {
						queued[m] = true
						neighbours = append(neighbours, m)
					}
				}
			}
		}
		if !d.member[n] {
			d.member[n] = true
			cluster = append(cluster, n)
		}
	}
	return cluster
}

func (d *dbscan) regionQuery(i int) []int {
	var out []int
	for j := range d.points {
		if d.params.Distance(d.points[i], d.points[j]) < d.params.Radius {
			out = append(out, j)
		}
	}
	return out
}

// Nearest returns the indices of the k embeddings closest to target, closest first. Ties keep
// input order. k <= 0 or k > len(embeddings) returns every index.
func Nearest(target []float64, embeddings [][]float64, k int, dist DistanceFunc) ([]int, error) {
	if dist == nil {
		dist = CosineDistance
	}
	type scored struct {
		idx int
		d   float64
	}
	all := make([]scored, 0, len(embeddings))
	for i, e := range embeddings {
		if len(e) != len(target) {
			return nil, fmt.Errorf("Nearest: embedding %d: %w", i, ErrDimensionMismatch)
		}
		all = append(all, scored{idx: i, d: dist(target, e)})
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].d < all[b].d })
	if k <= 0 || k > len(all) {
		k = len(all)
	}
	out := make([]int, k)
	for i := range out {
		out[i] = all[i].idx
	}
	return out, nil
}
