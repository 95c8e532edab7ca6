package moral

import "fmt"

// DemographicsSummarizer reduces the demographics collected for one edge.
type DemographicsSummarizer func([]Demographics) any

// Options controls what SummarizeGraph attaches to the graph. The zero value produces the bare
// filtered graph with default retention thresholds.
type Options struct {
	// IncludeAllEdges attaches every aggregated edge, before filtering, as AllEdges.
	IncludeAllEdges bool

	// IncludePageRank attaches a rank to each value. Ranking must then name the variant.
	IncludePageRank bool
	Ranking         RankStrategy
	PageRank        PageRankParams

	// IncludeContexts attaches to each value the contexts of the retained edges it is wiser in.
	IncludeContexts bool

	// MarkedWiserThreshold overrides Retention.MinMarkedWiser when > 0. Thresholds of 1 and
	// below behave alike since edges without wiser votes are always dropped.
	MarkedWiserThreshold int
	// Retention decides which edges are kept. Each zero field takes its DefaultRetention
	// value; a negative MinWiserLikelihood keeps edges of any likelihood.
	Retention RetentionPolicy

	// IncludeDemographics attaches per-edge demographics to each edge summary, reduced by
	// DemographicsSummarizer when set and raw otherwise.
	IncludeDemographics    bool
	DemographicsSummarizer DemographicsSummarizer
}

func (o Options) retention() RetentionPolicy {
	p := o.Retention.withDefaults()
	if o.MarkedWiserThreshold > 0 {
		p.MinMarkedWiser = o.MarkedWiserThreshold
	}
	return p
}

// SummarizeGraph aggregates comparison events between values into a moral graph. Values not
// referenced by any retained edge are left out. Input values are not modified.
func SummarizeGraph(values []Value, events []ComparisonEvent, opts Options) (MoralGraph, error) {
	if opts.IncludePageRank && opts.Ranking == RankUnspecified {
		return MoralGraph{}, fmt.Errorf("SummarizeGraph: %w", ErrNoRankStrategy)
	}

	tally, err := Aggregate(events)
	if err != nil {
		return MoralGraph{}, fmt.Errorf("SummarizeGraph: %w", err)
	}

	allEdges := tally.Edges()
	if opts.IncludeDemographics {
		for i := range allEdges {
			d := tally.Demographics(allEdges[i].SourceValueID, allEdges[i].WiserValueID)
			if d == nil {
				d = []Demographics{}
			}
			if opts.DemographicsSummarizer != nil {
				allEdges[i].Summary.Demographics = opts.DemographicsSummarizer(d)
			} else {
				allEdges[i].Summary.Demographics = d
			}
		}
	}

	edges := opts.retention().Filter(allEdges)

	referenced := make(map[int]struct{}, len(edges)*2)
	wiserContexts := make(map[int][]string)
	for _, e := range edges {
		referenced[e.SourceValueID] = struct{}{}
		referenced[e.WiserValueID] = struct{}{}
		if opts.IncludeContexts {
			wiserContexts[e.WiserValueID] = appendUnique(wiserContexts[e.WiserValueID], e.Contexts...)
		}
	}

	var ranks map[int]float64
	if opts.IncludePageRank {
		ranks, err = opts.Ranking.Rank(edges, opts.PageRank)
		if err != nil {
			return MoralGraph{}, fmt.Errorf("SummarizeGraph: %w", err)
		}
	}

	graph := MoralGraph{
		Values: make([]MoralGraphValue, 0, len(referenced)),
		Edges:  edges,
	}
	for _, v := range values {
		if _, ok := referenced[v.ID]; !ok {
			continue
		}
		gv := MoralGraphValue{Value: v}
		if opts.IncludeContexts {
			gv.Contexts = wiserContexts[v.ID]
			if gv.Contexts == nil {
				gv.Contexts = []string{}
			}
		}
		if r, ok := ranks[v.ID]; ok {
			gv.PageRank = &r
		}
		graph.Values = append(graph.Values, gv)
	}
	if opts.IncludeAllEdges {
		graph.AllEdges = allEdges
	}
	return graph, nil
}

func appendUnique(dst []string, src ...string) []string {
	for _, s := range src {
		dup := false
		for _, d := range dst {
			if d == s {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
