package moral

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValues() []Value {
	return []Value{
		{ID: 1, Policies: []string{"MOMENTS one"}},
		{ID: 2, Policies: []string{"MOMENTS two"}},
		{ID: 3, Policies: []string{"MOMENTS three"}},
		{ID: 4, Policies: []string{"MOMENTS four"}},
	}
}

func testEvents() []ComparisonEvent {
	return []ComparisonEvent{
		ev(1, 2, "grief", Upgrade),
		ev(1, 2, "grief", Upgrade),
		ev(1, 2, "loss", Upgrade),
		ev(1, 2, "grief", NoUpgrade),
		ev(2, 3, "loss", Upgrade),
		ev(2, 3, "work", Upgrade),
		ev(3, 4, "work", Upgrade),
	}
}

func TestSummarizeGraph_NoEvents(t *testing.T) {
	t.Parallel()

	g, err := SummarizeGraph(testValues(), nil, Options{})
	require.NoError(t, err)
	b, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"values":[],"edges":[]}`, string(b))
}

func TestSummarizeGraph_FiltersAndKeepsReferencedValues(t *testing.T) {
	t.Parallel()

	g, err := SummarizeGraph(testValues(), testEvents(), Options{})
	require.NoError(t, err)

	var pairs [][2]int
	for _, e := range g.Edges {
		pairs = append(pairs, [2]int{e.SourceValueID, e.WiserValueID})
	}
	// 3 -> 4 has a single wiser vote and is dropped.
	if diff := cmp.Diff([][2]int{{1, 2}, {2, 3}}, pairs); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	var ids []int
	for _, v := range g.Values {
		ids = append(ids, v.ID)
		assert.Nil(t, v.PageRank)
		assert.Nil(t, v.Contexts)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
	assert.Nil(t, g.AllEdges)
}

func TestSummarizeGraph_Options(t *testing.T) {
	t.Parallel()

	g, err := SummarizeGraph(testValues(), testEvents(), Options{
		IncludeAllEdges: true,
		IncludePageRank: true,
		Ranking:         RankWeighted,
		IncludeContexts: true,
	})
	require.NoError(t, err)

	assert.Len(t, g.AllEdges, 6)
	var total float64
	contexts := map[int][]string{}
	for _, v := range g.Values {
		require.NotNil(t, v.PageRank)
		total += *v.PageRank
		contexts[v.ID] = v.Contexts
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.Equal(t, map[int][]string{
		1: {},
		2: {"grief", "loss"},
		3: {"loss", "work"},
	}, contexts)
}

func TestSummarizeGraph_ThresholdOverride(t *testing.T) {
	t.Parallel()

	g, err := SummarizeGraph(testValues(), testEvents(), Options{MarkedWiserThreshold: 3})
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, 2, g.Edges[0].WiserValueID)

	g, err = SummarizeGraph(testValues(), testEvents(), Options{MarkedWiserThreshold: 1})
	require.NoError(t, err)
	assert.Len(t, g.Edges, 3)
}

func TestSummarizeGraph_PageRankWithoutStrategy(t *testing.T) {
	t.Parallel()

	_, err := SummarizeGraph(testValues(), testEvents(), Options{IncludePageRank: true})
	if !errors.Is(err, ErrNoRankStrategy) {
		t.Fatalf("err=%v, want ErrNoRankStrategy", err)
	}
}

func TestSummarizeGraph_UnknownEventType(t *testing.T) {
	t.Parallel()

	_, err := SummarizeGraph(testValues(), []ComparisonEvent{ev(1, 2, "x", "sideways")}, Options{})
	if !errors.Is(err, ErrUnknownComparisonType) {
		t.Fatalf("err=%v, want ErrUnknownComparisonType", err)
	}
}

func TestSummarizeGraph_Demographics(t *testing.T) {
	t.Parallel()

	events := testEvents()
	events[0].Demographics = Demographics{"usPoliticalAffiliation": "Republican"}
	events[1].Demographics = Demographics{"usPoliticalAffiliation": "Democrat"}
	events[2].Demographics = Demographics{"usPoliticalAffiliation": "Republican"}

	g, err := SummarizeGraph(testValues(), events, Options{
		IncludeDemographics:    true,
		DemographicsSummarizer: USPoliticalAffiliationSummarizer,
	})
	require.NoError(t, err)
	require.Len(t, g.Edges, 2)

	first := g.Edges[0].Summary.Demographics.(PoliticalAffiliationSummary)
	assert.Equal(t, "Republican", first.MainAffiliation)
	assert.Equal(t, map[string]int{"Republican": 2, "Democrat": 1}, first.Counts)

	second := g.Edges[1].Summary.Demographics.(PoliticalAffiliationSummary)
	assert.Equal(t, "", second.MainAffiliation)
	assert.Empty(t, second.Counts)

	raw, err := SummarizeGraph(testValues(), events, Options{IncludeDemographics: true})
	require.NoError(t, err)
	assert.Len(t, raw.Edges[0].Summary.Demographics, 3)
	assert.Equal(t, []Demographics{}, raw.Edges[1].Summary.Demographics)
}

func TestSummarizeGraph_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	values := testValues()
	values[0].Policies = []string{"b", "a"}
	_, err := SummarizeGraph(values, testEvents(), Options{IncludeContexts: true, IncludePageRank: true, Ranking: RankUniform})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, values[0].Policies)
	assert.Equal(t, "a\nb", values[0].EmbeddingText())
	assert.Equal(t, []string{"b", "a"}, values[0].Policies)
}

func TestSummarizeGraph_PartialRetentionKeepsOtherDefaults(t *testing.T) {
	t.Parallel()

	contradictory := []ComparisonEvent{
		ev(1, 2, "grief", Upgrade),
		ev(2, 1, "grief", Upgrade),
	}
	g, err := SummarizeGraph(testValues(), contradictory, Options{
		MarkedWiserThreshold: 1,
		Retention:            RetentionPolicy{MaxEntropy: DefaultMaxEntropy},
	})
	require.NoError(t, err)
	assert.Empty(t, g.Edges)

	g, err = SummarizeGraph(testValues(), contradictory, Options{
		MarkedWiserThreshold: 1,
		Retention:            RetentionPolicy{MinWiserLikelihood: -1},
	})
	require.NoError(t, err)
	require.Len(t, g.Edges, 2)
	assert.Equal(t, 0.0, g.Edges[0].Summary.WiserLikelihood)
}
