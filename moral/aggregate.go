package moral

import (
	"fmt"
	"math"
)

// PairKey identifies an ordered value pair: judgments about whether Wiser is wiser than Source.
type PairKey struct {
	Source int
	Wiser  int
}

type tallyEntry struct {
	edge         MoralGraphEdge
	seenContexts map[string]struct{}
	demographics []Demographics
}

// EdgeTally is the result of aggregating comparison events. Every event contributes to two
// records: the forward pair (from, to) and the reverse pair (to, from).
type EdgeTally struct {
	keys    []PairKey
	entries map[PairKey]*tallyEntry
}

// Aggregate accumulates comparison events into per-pair counters.
func Aggregate(events []ComparisonEvent) (*EdgeTally, error) {
	t := &EdgeTally{entries: make(map[PairKey]*tallyEntry)}

	for i, ev := range events {
		fwd := t.entry(ev.FromID, ev.ToID)
		fwd.addContext(ev.ContextID)
		fwd.edge.Counts.Impressions++
		switch ev.Type {
		case Upgrade:
			fwd.edge.Counts.MarkedWiser++
		case NoUpgrade:
			fwd.edge.Counts.MarkedNotWiser++
		case NotSure:
			fwd.edge.Counts.MarkedUnsure++
		default:
			return nil, fmt.Errorf("Aggregate: event %d: %w: %q", i, ErrUnknownComparisonType, ev.Type)
		}
		if ev.Demographics != nil {
			fwd.demographics = append(fwd.demographics, ev.Demographics)
		}
	}

	// An upgrade from A to B is also evidence that, seen from B, A is less wise.
	for _, ev := range events {
		rev := t.entry(ev.ToID, ev.FromID)
		rev.addContext(ev.ContextID)
		rev.edge.Counts.Impressions++
		if ev.Type == Upgrade {
			rev.edge.Counts.MarkedLessWise++
		}
	}

	return t, nil
}

func (t *EdgeTally) entry(source, wiser int) *tallyEntry {
	k := PairKey{Source: source, Wiser: wiser}
	if e, ok := t.entries[k]; ok {
		return e
	}
	e := &tallyEntry{
		edge: MoralGraphEdge{
			SourceValueID: source,
			WiserValueID:  wiser,
			Contexts:      []string{},
		},
		seenContexts: make(map[string]struct{}),
	}
	t.entries[k] = e
	t.keys = append(t.keys, k)
	return e
}

func (e *tallyEntry) addContext(ctx string) {
	if _, ok := e.seenContexts[ctx]; ok {
		return
	}
	e.seenContexts[ctx] = struct{}{}
	e.edge.Contexts = append(e.edge.Contexts, ctx)
}

// Len returns the number of ordered pairs in the tally.
func (t *EdgeTally) Len() int { return len(t.keys) }

// Edge returns the summarized edge for (source, wiser).
func (t *EdgeTally) Edge(source, wiser int) (MoralGraphEdge, bool) {
	e, ok := t.entries[PairKey{Source: source, Wiser: wiser}]
	if !ok {
		return MoralGraphEdge{}, false
	}
	return e.summarized(), true
}

// Edges returns every summarized edge in the order its pair was first seen.
func (t *EdgeTally) Edges() []MoralGraphEdge {
	out := make([]MoralGraphEdge, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.entries[k].summarized())
	}
	return out
}

// Demographics returns the demographics collected from forward judgments on (source, wiser).
func (t *EdgeTally) Demographics(source, wiser int) []Demographics {
	e, ok := t.entries[PairKey{Source: source, Wiser: wiser}]
	if !ok {
		return nil
	}
	return append([]Demographics(nil), e.demographics...)
}

func (e *tallyEntry) summarized() MoralGraphEdge {
	out := e.edge
	out.Contexts = append([]string(nil), e.edge.Contexts...)
	out.Summary = SummarizeCounts(e.edge.Counts)
	return out
}

// SummarizeCounts derives wiser likelihood and entropy from the four judgment counters.
// Impressions are not a judgment category and are ignored.
func SummarizeCounts(c EdgeCounts) EdgeSummary {
	total := c.MarkedWiser + c.MarkedNotWiser + c.MarkedUnsure + c.MarkedLessWise
	var likelihood float64
	if total > 0 {
		likelihood = float64(c.MarkedWiser-c.MarkedLessWise) / float64(total)
	}
	return EdgeSummary{
		WiserLikelihood: likelihood,
		Entropy:         Entropy(c.MarkedWiser, c.MarkedNotWiser, c.MarkedUnsure, c.MarkedLessWise),
	}
}

// Entropy returns the Shannon entropy, in bits, of the categorical distribution given by counts.
// Empty categories are skipped; all-zero input has entropy 0.
func Entropy(counts ...int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	// A single non-empty category yields -1*log2(1) = -0.
	if h <= 0 {
		return 0
	}
	return h
}
