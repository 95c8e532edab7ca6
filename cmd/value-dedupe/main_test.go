package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/values-tools/moral"
	"github.com/theimaginaryfoundation/values-tools/moral/cache"
	"github.com/theimaginaryfoundation/values-tools/moral/provider"
)

func TestParseFlags_Overrides(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("value-dedupe", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-in", "values.jsonl",
		"-canonical", "canon.json",
		"-choice-type", "a career path",
		"-radius", "0.2",
		"-min-points", "2",
		"-cache", "sqlite:.cache/gen.db",
		"-concurrency", "8",
		"-api-key", "k",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.InputPath != "values.jsonl" || cfg.CanonicalPath != "canon.json" {
		t.Fatalf("paths: in=%q canonical=%q", cfg.InputPath, cfg.CanonicalPath)
	}
	if cfg.Cache != "sqlite:.cache/gen.db" || cfg.Concurrency != 8 || cfg.APIKey != "k" {
		t.Fatalf("provider=%+v", cfg.Provider)
	}
	opts := cfg.ReconcileOptions()
	if opts.Cluster.Radius != 0.2 || opts.Cluster.MinPoints != 2 || opts.Concurrency != 8 {
		t.Fatalf("opts=%+v", opts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected error")
	}
	cfg := defaultConfig()
	cfg.InputPath = "v.json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	cfg.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

type failingGenerator struct{}

func (failingGenerator) GenerateObject(context.Context, provider.ObjectRequest, any) error {
	return errors.New("model unavailable")
}

type tableEmbedder map[string][]float64

func (e tableEmbedder) EmbedText(_ context.Context, text string) ([]float64, error) {
	return e[text], nil
}

func (e tableEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := e[t]
		if !ok {
			return nil, errors.New("unknown text " + t)
		}
		out[i] = v
	}
	return out, nil
}

func TestRun_FailingModelKeepsClustersAndFallsBack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	values := `{"id":10,"policies":["MOMENTS of quiet"]}
{"id":11,"policies":["MOMENTS of stillness"]}
{"id":12,"policies":["CHOICES that are bold"]}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "values.jsonl"), []byte(values), 0o644))

	emb := tableEmbedder{
		"MOMENTS of quiet":      {1, 0},
		"MOMENTS of stillness":  {0.999, 0.01},
		"CHOICES that are bold": {0, 1},
	}
	cfg := defaultConfig()
	cfg.InputPath = filepath.Join(dir, "values.jsonl")
	cfg.MinPoints = 2
	cfg.Concurrency = 2

	d := deduper{
		cfg: cfg,
		rec: moral.NewReconciler(failingGenerator{}, emb, moral.Prompts{}, cfg.ReconcileOptions(), zap.NewNop()),
		log: zap.NewNop(),
	}
	var out bytes.Buffer
	require.NoError(t, d.run(context.Background(), &out))

	var groups []Group
	require.NoError(t, json.Unmarshal(out.Bytes(), &groups))
	require.Len(t, groups, 2)

	byFirst := map[int]Group{}
	for _, g := range groups {
		byFirst[g.Members[0].ID] = g
	}
	pair := byFirst[10]
	require.Len(t, pair.Members, 2)
	assert.Equal(t, 11, pair.Members[1].ID)
	require.NotNil(t, pair.Representative)
	assert.Equal(t, 10, pair.Representative.ID)

	single := byFirst[12]
	require.Len(t, single.Members, 1)
	require.NotNil(t, single.Representative)
	assert.Equal(t, 12, single.Representative.ID)
}

func TestRun_CanonicalMatchFailureMeansNoMatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "values.json"),
		[]byte(`[{"id":1,"policies":["A"]}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "canon.json"),
		[]byte(`[{"id":100,"policies":["B"],"embedding":[1,0]}]`), 0o644))

	emb := tableEmbedder{"A": {1, 0}}
	cfg := defaultConfig()
	cfg.InputPath = filepath.Join(dir, "values.json")
	cfg.CanonicalPath = filepath.Join(dir, "canon.json")
	cfg.OutputPath = filepath.Join(dir, "groups.json")

	d := deduper{
		cfg: cfg,
		rec: moral.NewReconciler(failingGenerator{}, emb, moral.Prompts{}, cfg.ReconcileOptions(), zap.NewNop()),
		log: zap.NewNop(),
	}
	require.NoError(t, d.run(context.Background(), nil))

	b, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	var groups []Group
	require.NoError(t, json.Unmarshal(b, &groups))
	require.Len(t, groups, 1)
	assert.Nil(t, groups[0].ExistingDuplicateOf)
}

func TestRealMain_FailureReturnsAfterCleanup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.db")
	args := []string{
		"-in", filepath.Join(dir, "missing.jsonl"),
		"-api-key", "test-key",
		"-cache", "sqlite:" + cachePath,
	}
	var out bytes.Buffer
	assert.Equal(t, 1, realMain(args, &out))
	assert.Zero(t, out.Len())

	// The cache was opened and closed before realMain returned.
	store, err := cache.OpenSQLite(cachePath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Equal(t, 2, realMain([]string{"-api-key", "test-key"}, &out))
}
