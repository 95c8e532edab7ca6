package moral

import (
	"context"
	"fmt"
	"time"

	"github.com/theimaginaryfoundation/values-tools/moral/provider"
)

// Generator produces a JSON object matching req.Schema and decodes it into out.
// *provider.Client implements it.
type Generator interface {
	GenerateObject(ctx context.Context, req provider.ObjectRequest, out any) error
}

// Embedder computes fixed-length embedding vectors. EmbedTexts preserves input order.
// *provider.Client implements it.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// generate runs one structured generation call for T, bounded by timeout when it is positive.
// Failures come back as *GenerationError.
func generate[T any](ctx context.Context, g Generator, timeout time.Duration, name, prompt string, data []provider.Section, temperature float64) (T, error) {
	return generateWithSchema[T](ctx, g, timeout, name, prompt, data, provider.GenerateSchema[T](), temperature)
}

func generateWithSchema[T any](ctx context.Context, g Generator, timeout time.Duration, name, prompt string, data []provider.Section, schema map[string]interface{}, temperature float64) (T, error) {
	var out T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := g.GenerateObject(ctx, provider.ObjectRequest{
		Name:        name,
		Prompt:      prompt,
		Data:        data,
		Schema:      schema,
		Temperature: temperature,
	}, &out)
	if err != nil {
		var zero T
		return zero, &GenerationError{Op: name, Err: err}
	}
	return out, nil
}

func embedTexts(ctx context.Context, e Embedder, timeout time.Duration, op string, texts []string) ([][]float64, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := e.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Op: op, Err: err}
	}
	if len(out) != len(texts) {
		return nil, &EmbeddingError{Op: op, Err: fmt.Errorf("got %d vectors for %d texts", len(out), len(texts))}
	}
	return out, nil
}
