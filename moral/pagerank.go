package moral

import "fmt"

const (
	DefaultDampingFactor      = 0.85
	DefaultPageRankIterations = 100
)

// PageRankParams configures power iteration.
type PageRankParams struct {
	Damping    float64
	Iterations int
}

// DefaultPageRankParams returns damping 0.85 over 100 iterations.
func DefaultPageRankParams() PageRankParams {
	return PageRankParams{Damping: DefaultDampingFactor, Iterations: DefaultPageRankIterations}
}

func (p PageRankParams) withDefaults() PageRankParams {
	if p.Damping <= 0 || p.Damping >= 1 {
		p.Damping = DefaultDampingFactor
	}
	if p.Iterations <= 0 {
		p.Iterations = DefaultPageRankIterations
	}
	return p
}

// RankStrategy selects how an edge's share of its source's rank is computed.
type RankStrategy int

const (
	// RankUnspecified is the zero value; page rank cannot be computed with it.
	RankUnspecified RankStrategy = iota
	// RankWeighted splits a node's rank over its outgoing edges in proportion to wiser likelihood.
	RankWeighted
	// RankUniform splits a node's rank equally over its outgoing edges.
	RankUniform
)

func (s RankStrategy) String() string {
	switch s {
	case RankWeighted:
		return "weighted"
	case RankUniform:
		return "uniform"
	default:
		return "unspecified"
	}
}

// ParseRankStrategy parses "weighted" or "uniform".
func ParseRankStrategy(s string) (RankStrategy, error) {
	switch s {
	case "weighted":
		return RankWeighted, nil
	case "uniform":
		return RankUniform, nil
	default:
		return RankUnspecified, fmt.Errorf("unknown rank strategy %q (want weighted or uniform)", s)
	}
}

// Rank runs the page rank variant s selects.
func (s RankStrategy) Rank(edges []MoralGraphEdge, p PageRankParams) (map[int]float64, error) {
	switch s {
	case RankWeighted:
		return WeightedPageRank(edges, p), nil
	case RankUniform:
		return UniformPageRank(edges, p), nil
	default:
		return nil, ErrNoRankStrategy
	}
}

// WeightedPageRank ranks the endpoints of edges, treating each edge source -> wiser as a
// transition weighted by its wiser likelihood. Edges with non-positive likelihood carry no mass.
func WeightedPageRank(edges []MoralGraphEdge, p PageRankParams) map[int]float64 {
	return pageRank(edges, p, func(e MoralGraphEdge) float64 {
		if e.Summary.WiserLikelihood <= 0 {
			return 0
		}
		return e.Summary.WiserLikelihood
	})
}

// UniformPageRank ranks the endpoints of edges, giving every outgoing edge an equal share.
func UniformPageRank(edges []MoralGraphEdge, p PageRankParams) map[int]float64 {
	return pageRank(edges, p, func(MoralGraphEdge) float64 { return 1 })
}

func pageRank(edges []MoralGraphEdge, p PageRankParams, weight func(MoralGraphEdge) float64) map[int]float64 {
	p = p.withDefaults()

	var nodes []int
	seen := make(map[int]struct{})
	addNode := func(id int) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			nodes = append(nodes, id)
		}
	}
	outWeight := make(map[int]float64)
	for _, e := range edges {
		addNode(e.SourceValueID)
		addNode(e.WiserValueID)
		outWeight[e.SourceValueID] += weight(e)
	}
	if len(nodes) == 0 {
		return map[int]float64{}
	}
	n := float64(len(nodes))

	rank := make(map[int]float64, len(nodes))
	for _, id := range nodes {
		rank[id] = 1 / n
	}

	for iter := 0; iter < p.Iterations; iter++ {
		// Nodes with nothing to pass on would leak mass; spread theirs evenly instead.
		var dangling float64
		for _, id := range nodes {
			if outWeight[id] <= 0 {
				dangling += rank[id]
			}
		}
		base := (1-p.Damping)/n + p.Damping*dangling/n

		next := make(map[int]float64, len(nodes))
		for _, id := range nodes {
			next[id] = base
		}
		for _, e := range edges {
			total := outWeight[e.SourceValueID]
			if total <= 0 {
				continue
			}
			next[e.WiserValueID] += p.Damping * rank[e.SourceValueID] * weight(e) / total
		}
		rank = next
	}
	return rank
}
