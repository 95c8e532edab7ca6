package moral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/theimaginaryfoundation/values-tools/moral/provider"
)

// fakeGenerator answers each operation through a per-name function returning a JSON reply.
type fakeGenerator struct {
	mu      sync.Mutex
	replies map[string]func(req provider.ObjectRequest) (string, error)
	reqs    []provider.ObjectRequest
}

func (g *fakeGenerator) GenerateObject(ctx context.Context, req provider.ObjectRequest, out any) error {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	reply := g.replies[req.Name]
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if reply == nil {
		return fmt.Errorf("no reply scripted for %s", req.Name)
	}
	s, err := reply(req)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(s), out)
}

func (g *fakeGenerator) calls(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.reqs {
		if r.Name == name {
			n++
		}
	}
	return n
}

func fixed(s string) func(provider.ObjectRequest) (string, error) {
	return func(provider.ObjectRequest) (string, error) { return s, nil }
}

type failingGenerator struct{}

func (failingGenerator) GenerateObject(context.Context, provider.ObjectRequest, any) error {
	return errors.New("model unavailable")
}

// mapEmbedder returns vecs[text], or a vector derived from the text's first byte.
type mapEmbedder struct {
	vecs map[string][]float64
	err  error
}

func (e mapEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	out, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e mapEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := e.vecs[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float64{1, float64(len(t))}
	}
	return out, nil
}
