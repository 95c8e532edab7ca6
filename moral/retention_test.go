package moral

import "testing"

func edgeWith(c EdgeCounts) MoralGraphEdge {
	return MoralGraphEdge{Counts: c, Summary: SummarizeCounts(c)}
}

func TestRetains_SingleVoteDropped(t *testing.T) {
	t.Parallel()

	e := edgeWith(EdgeCounts{MarkedWiser: 1, Impressions: 1})
	if DefaultRetention().Retains(e) {
		t.Fatalf("single wiser vote should be dropped at the default threshold")
	}
}

func TestRetains_ZeroWiserAlwaysDropped(t *testing.T) {
	t.Parallel()

	p := RetentionPolicy{MinMarkedWiser: 0, MinWiserLikelihood: -1, MaxEntropy: 10}
	if p.Retains(edgeWith(EdgeCounts{MarkedNotWiser: 3})) {
		t.Fatalf("edge without wiser votes retained")
	}
}

func TestRetains_Thresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		counts EdgeCounts
		want   bool
	}{
		{"clear upgrade", EdgeCounts{MarkedWiser: 4}, true},
		{"at threshold", EdgeCounts{MarkedWiser: 2}, true},
		{"low likelihood", EdgeCounts{MarkedWiser: 2, MarkedNotWiser: 5}, false},
		{"contested", EdgeCounts{MarkedWiser: 3, MarkedLessWise: 3}, false},
		{"high entropy", EdgeCounts{MarkedWiser: 10, MarkedNotWiser: 5, MarkedUnsure: 5, MarkedLessWise: 1}, false},
	}
	for _, tc := range cases {
		got := DefaultRetention().Retains(edgeWith(tc.counts))
		if got != tc.want {
			t.Fatalf("%s: Retains=%v, want %v (summary %+v)", tc.name, got, tc.want, SummarizeCounts(tc.counts))
		}
	}
}

func TestRetains_MonotoneInWiserVotes(t *testing.T) {
	t.Parallel()

	// Adding a wiser vote raises likelihood and, for a wiser-dominated edge, does not raise
	// entropy, so a retained edge stays retained.
	base := EdgeCounts{MarkedWiser: 3, MarkedNotWiser: 1, MarkedUnsure: 1}
	p := DefaultRetention()
	if !p.Retains(edgeWith(base)) {
		t.Fatalf("base edge should be retained: %+v", SummarizeCounts(base))
	}
	for i := 0; i < 20; i++ {
		base.MarkedWiser++
		if !p.Retains(edgeWith(base)) {
			t.Fatalf("edge dropped after adding wiser votes: %+v -> %+v", base, SummarizeCounts(base))
		}
	}
}

func TestRetains_StricterPolicyKeepsSubset(t *testing.T) {
	t.Parallel()

	loose := RetentionPolicy{MinMarkedWiser: 1, MinWiserLikelihood: 0, MaxEntropy: 2}
	strict := DefaultRetention()
	var edges []MoralGraphEdge
	for w := 0; w < 5; w++ {
		for n := 0; n < 4; n++ {
			for u := 0; u < 3; u++ {
				for l := 0; l < 3; l++ {
					edges = append(edges, edgeWith(EdgeCounts{MarkedWiser: w, MarkedNotWiser: n, MarkedUnsure: u, MarkedLessWise: l}))
				}
			}
		}
	}
	for _, e := range edges {
		if strict.Retains(e) && !loose.Retains(e) {
			t.Fatalf("strict policy kept %+v that loose dropped", e.Counts)
		}
	}
	if got, all := len(strict.Filter(edges)), len(loose.Filter(edges)); got > all {
		t.Fatalf("strict kept %d > loose %d", got, all)
	}
}

func TestRetentionPolicy_WithDefaultsPerField(t *testing.T) {
	t.Parallel()

	got := RetentionPolicy{MaxEntropy: 1.2}.withDefaults()
	want := RetentionPolicy{MinMarkedWiser: DefaultMarkedWiserThreshold, MinWiserLikelihood: DefaultMinWiserLikelihood, MaxEntropy: 1.2}
	if got != want {
		t.Fatalf("withDefaults=%+v, want %+v", got, want)
	}
	if got := (RetentionPolicy{}).withDefaults(); got != DefaultRetention() {
		t.Fatalf("zero policy=%+v, want defaults", got)
	}
}
