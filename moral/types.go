package moral

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Value is a source of meaning represented by a set of attention policies.
type Value struct {
	ID          int       `json:"id"`
	Policies    []string  `json:"policies"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// EmbeddingText is the text embedded for a value: its policies, sorted, one per line.
// The value's own policy slice is left untouched.
func (v Value) EmbeddingText() string {
	policies := append([]string(nil), v.Policies...)
	sort.Strings(policies)
	return strings.Join(policies, "\n")
}

// ComparisonType is the verdict of a single pairwise comparison.
type ComparisonType string

const (
	// Upgrade means the "to" value was judged wiser than the "from" value.
	Upgrade ComparisonType = "upgrade"
	// NoUpgrade means the "to" value was judged not wiser than the "from" value.
	NoUpgrade ComparisonType = "no_upgrade"
	// NotSure means the respondent could not tell.
	NotSure ComparisonType = "not_sure"
)

// Valid reports whether t is one of the known comparison types.
func (t ComparisonType) Valid() bool {
	switch t {
	case Upgrade, NoUpgrade, NotSure:
		return true
	default:
		return false
	}
}

func (t *ComparisonType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ct := ComparisonType(s)
	if !ct.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownComparisonType, s)
	}
	*t = ct
	return nil
}

// Demographics holds opaque per-respondent attributes attached to a comparison.
type Demographics map[string]any

// ComparisonEvent is one respondent's judgment of whether ToID is wiser than FromID in ContextID.
type ComparisonEvent struct {
	FromID       int            `json:"fromId"`
	ToID         int            `json:"toId"`
	ContextID    string         `json:"contextId"`
	Type         ComparisonType `json:"type"`
	Demographics Demographics   `json:"demographics,omitempty"`
}

// EdgeCounts accumulates the judgments made about one ordered value pair.
type EdgeCounts struct {
	MarkedWiser    int `json:"markedWiser"`
	MarkedNotWiser int `json:"markedNotWiser"`
	MarkedLessWise int `json:"markedLessWise"`
	MarkedUnsure   int `json:"markedUnsure"`
	Impressions    int `json:"impressions"`
}

// EdgeSummary holds the statistics derived from EdgeCounts.
type EdgeSummary struct {
	// WiserLikelihood is in [-1, 1].
	WiserLikelihood float64 `json:"wiserLikelihood"`
	// Entropy is in bits, in [0, 2].
	Entropy float64 `json:"entropy"`

	Demographics any `json:"demographics,omitempty"`
}

// MoralGraphEdge is the aggregated record for the ordered pair (SourceValueID, WiserValueID).
type MoralGraphEdge struct {
	SourceValueID int         `json:"sourceValueId"`
	WiserValueID  int         `json:"wiserValueId"`
	Contexts      []string    `json:"contexts"`
	Counts        EdgeCounts  `json:"counts"`
	Summary       EdgeSummary `json:"summary"`
}

// MoralGraphValue is a value as it appears in a summarized graph.
type MoralGraphValue struct {
	Value
	PageRank *float64 `json:"pageRank,omitempty"`
	Contexts []string `json:"contexts,omitempty"`
}

// MoralGraph is the filtered, weighted directed graph of "wiser than" relationships.
type MoralGraph struct {
	Values   []MoralGraphValue `json:"values"`
	Edges    []MoralGraphEdge  `json:"edges"`
	AllEdges []MoralGraphEdge  `json:"allEdges,omitempty"`
}
