package moral

const (
	DefaultMarkedWiserThreshold = 2
	DefaultMinWiserLikelihood   = 0.33
	// DefaultMaxEntropy is roughly 85% of log2(4), the entropy of four equally likely verdicts.
	DefaultMaxEntropy = 1.69
)

// RetentionPolicy decides which aggregated edges are confident enough to keep.
type RetentionPolicy struct {
	MinMarkedWiser     int
	MinWiserLikelihood float64
	MaxEntropy         float64
}

// DefaultRetention keeps edges with at least 2 wiser votes, likelihood >= 0.33 and entropy <= 1.69.
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{
		MinMarkedWiser:     DefaultMarkedWiserThreshold,
		MinWiserLikelihood: DefaultMinWiserLikelihood,
		MaxEntropy:         DefaultMaxEntropy,
	}
}

func (p RetentionPolicy) withDefaults() RetentionPolicy {
	d := DefaultRetention()
	if p.MinMarkedWiser == 0 {
		p.MinMarkedWiser = d.MinMarkedWiser
	}
	if p.MinWiserLikelihood == 0 {
		p.MinWiserLikelihood = d.MinWiserLikelihood
	}
	if p.MaxEntropy == 0 {
		p.MaxEntropy = d.MaxEntropy
	}
	return p
}

// Retains reports whether e passes every threshold. An edge nobody marked wiser never passes.
func (p RetentionPolicy) Retains(e MoralGraphEdge) bool {
	if e.Counts.MarkedWiser == 0 {
		return false
	}
	if e.Summary.WiserLikelihood < p.MinWiserLikelihood {
		return false
	}
	if e.Summary.Entropy > p.MaxEntropy {
		return false
	}
	return e.Counts.MarkedWiser >= p.MinMarkedWiser
}

// Filter returns the edges p retains, preserving order.
func (p RetentionPolicy) Filter(edges []MoralGraphEdge) []MoralGraphEdge {
	out := make([]MoralGraphEdge, 0, len(edges))
	for _, e := range edges {
		if p.Retains(e) {
			out = append(out, e)
		}
	}
	return out
}
