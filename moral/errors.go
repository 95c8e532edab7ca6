package moral

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownComparisonType is returned for a comparison event whose type tag is not recognized.
	ErrUnknownComparisonType = errors.New("unknown comparison type")

	// ErrNoRankStrategy is returned when page rank is requested without choosing a ranking variant.
	ErrNoRankStrategy = errors.New("page rank requested without a rank strategy")

	// ErrDimensionMismatch is returned when embedding vectors of different lengths are compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// GenerationError wraps a failed structured generation call: a network or provider error, or a
// response that did not match the requested schema.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// EmbeddingError wraps a failed embedding call. Clustering cannot proceed without embeddings,
// so it is always returned to the caller.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%s: embedding failed: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// TargetMismatchError is returned when a generated upgrade does not point at the requested target.
type TargetMismatchError struct {
	Want int
	Got  int
}

func (e *TargetMismatchError) Error() string {
	return fmt.Sprintf("generated upgrade targets value %d, want %d", e.Got, e.Want)
}
