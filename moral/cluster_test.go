package moral

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineDistance(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, CosineDistance([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 1, CosineDistance([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, 2, CosineDistance([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.Equal(t, 0.0, CosineDistance([]float64{0, 0}, []float64{0, 0}))
	assert.Equal(t, 1.0, CosineDistance([]float64{0, 0}, []float64{1, 0}))

	a, b := []float64{0.3, -1.2, 4}, []float64{2, 0.5, -0.1}
	assert.InDelta(t, CosineDistance(a, b), CosineDistance(b, a), 1e-12)
	assert.False(t, math.IsNaN(CosineDistance([]float64{0}, []float64{0})))
}

func TestCosineDistance_LengthMismatch(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		assert.Equal(t, 2.0, CosineDistance([]float64{1, 0, 0}, []float64{1, 0}))
		assert.Equal(t, 2.0, CosineDistance([]float64{1}, []float64{1, 0}))
	})
}

func TestClusterWithNoise(t *testing.T) {
	t.Parallel()

	embeddings := [][]float64{
		{0, 0, 1},
		{1, 0, 0},
		{0.99, 0.01, 0},
		{0, 1, 0},
	}
	clusters, noise, err := ClusterWithNoise(embeddings, ClusterParams{Radius: 0.3, MinPoints: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 2}}, clusters)
	assert.Equal(t, []int{0, 3}, noise)

	groups, err := Cluster(embeddings, ClusterParams{Radius: 0.3, MinPoints: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 2}, {0}, {3}}, groups)
}

func TestCluster_NearIdenticalPairAndFarPoint(t *testing.T) {
	t.Parallel()

	embeddings := [][]float64{
		{1, 0, 0},
		{0.99, 0.01, 0},
		{0, 0, 1},
	}
	groups, err := Cluster(embeddings, ClusterParams{Radius: 0.3, MinPoints: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {2}}, groups)
}

func TestCluster_DefaultsMakeSmallInputsNoise(t *testing.T) {
	t.Parallel()

	// With MinPoints 5 three points cannot seed a cluster, so each is its own group.
	groups, err := Cluster([][]float64{{1, 0}, {1, 0}, {1, 0}}, ClusterParams{})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}, {2}}, groups)
}

func TestCluster_RadiusIsExclusive(t *testing.T) {
	t.Parallel()

	// Distance between these is exactly 1, which is not < 1.
	groups, err := Cluster([][]float64{{1, 0}, {0, 1}}, ClusterParams{Radius: 1, MinPoints: 2})
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestCluster_BorderPointJoinsCluster(t *testing.T) {
	t.Parallel()

	// 1-D points with absolute distance: 0,1,2 are dense; 3 is only close to 2.
	abs := func(a, b []float64) float64 { return math.Abs(a[0] - b[0]) }
	embeddings := [][]float64{{0}, {1}, {2}, {3.5}, {10}}
	groups, err := Cluster(embeddings, ClusterParams{Radius: 1.6, MinPoints: 3, Distance: abs})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	sort.Ints(groups[0])
	assert.Equal(t, []int{0, 1, 2, 3}, groups[0])
	assert.Equal(t, []int{4}, groups[1])
}

func TestCluster_Completeness(t *testing.T) {
	t.Parallel()

	var embeddings [][]float64
	for i := 0; i < 40; i++ {
		angle := float64(i%7) * 0.4
		embeddings = append(embeddings, []float64{math.Cos(angle), math.Sin(angle), float64(i%3) * 0.05})
	}
	for _, p := range []ClusterParams{
		{Radius: 0.01, MinPoints: 2},
		{Radius: 0.3, MinPoints: 5},
		{Radius: 2, MinPoints: 1},
	} {
		groups, err := Cluster(embeddings, p)
		require.NoError(t, err)

		var all []int
		for _, g := range groups {
			require.NotEmpty(t, g)
			all = append(all, g...)
		}
		sort.Ints(all)
		want := make([]int, len(embeddings))
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, all, "params %+v", p)
	}
}

func TestCluster_DimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := Cluster([][]float64{{1, 0}, {1}}, DefaultClusterParams())
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err=%v, want ErrDimensionMismatch", err)
	}
}

func TestCluster_Empty(t *testing.T) {
	t.Parallel()

	groups, err := Cluster(nil, DefaultClusterParams())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestClusterItems(t *testing.T) {
	t.Parallel()

	items := []string{"a", "b", "c"}
	groups, err := ClusterItems(items, [][]float64{{1, 0}, {0, 1}, {1, 0.01}}, ClusterParams{Radius: 0.1, MinPoints: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "c"}, {"b"}}, groups)

	_, err = ClusterItems(items, [][]float64{{1}}, DefaultClusterParams())
	assert.Error(t, err)
}

func TestNearest(t *testing.T) {
	t.Parallel()

	embeddings := [][]float64{{0, 1}, {1, 0}, {1, 1}, {1, 0}}
	got, err := Nearest([]float64{1, 0}, embeddings, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2}, got)

	got, err = Nearest([]float64{1, 0}, embeddings, 0, nil)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = Nearest([]float64{1, 0, 0}, embeddings, 1, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
