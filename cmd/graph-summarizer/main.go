package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/values-tools/internal/cli"
	"github.com/theimaginaryfoundation/values-tools/moral"
	"github.com/theimaginaryfoundation/values-tools/moral/fileutils"
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout))
}

func realMain(args []string, stdout io.Writer) int {
	cfg, err := parseFlags(flag.NewFlagSet("graph-summarizer", flag.ContinueOnError), args)
	if err != nil {
		return cli.Fail(2, err)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Fail(2, err)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return cli.Fail(2, err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, stdout, log); err != nil {
		log.Error("graph-summarizer failed", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg Config, stdout io.Writer, log *zap.Logger) error {
	start := time.Now()
	values, err := fileutils.ReadJSONLines[moral.Value](cfg.ValuesPath)
	if err != nil {
		return fmt.Errorf("read -values: %w", err)
	}
	events, err := fileutils.ReadJSONLines[moral.ComparisonEvent](cfg.EventsPath)
	if err != nil {
		return fmt.Errorf("read -events: %w", err)
	}

	graph, err := moral.SummarizeGraph(values, events, cfg.Options())
	if err != nil {
		return err
	}
	if err := fileutils.WriteJSONOutput(stdout, cfg.OutputPath, graph, cfg.Pretty); err != nil {
		return err
	}

	log.Info("graph summarized",
		zap.Int("values_in", len(values)),
		zap.Int("events", len(events)),
		zap.Int("values_out", len(graph.Values)),
		zap.Int("edges_out", len(graph.Edges)),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
	)
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	cfg.ConfigPath = cli.ConfigPath(args)
	if cfg.ConfigPath != "" {
		if err := fileutils.ReadYAMLFile(cfg.ConfigPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Optional YAML file with defaults for these flags")
	fs.StringVar(&cfg.ValuesPath, "values", cfg.ValuesPath, "Values file (JSON array or JSONL of {id, policies, title})")
	fs.StringVar(&cfg.EventsPath, "events", cfg.EventsPath, "Comparison events file (JSON array or JSONL of {fromId, toId, contextId, type})")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "Where to write the graph JSON (- for stdout)")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the graph JSON")
	fs.BoolVar(&cfg.IncludeAllEdges, "all-edges", cfg.IncludeAllEdges, "Also emit every aggregated edge before filtering")
	fs.BoolVar(&cfg.IncludeContexts, "contexts", cfg.IncludeContexts, "Attach the contexts each value is wiser in")
	fs.StringVar(&cfg.PageRank, "pagerank", cfg.PageRank, "Attach page rank: weighted or uniform (empty skips ranking)")
	fs.Float64Var(&cfg.Damping, "damping", cfg.Damping, "Page rank damping factor")
	fs.IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "Page rank iterations")
	fs.IntVar(&cfg.MarkedWiserThreshold, "marked-wiser-threshold", cfg.MarkedWiserThreshold, "Min wiser votes for an edge to be kept")
	fs.Float64Var(&cfg.MinWiserLikelihood, "min-wiser-likelihood", cfg.MinWiserLikelihood, "Min wiser likelihood for an edge to be kept (0 uses the default, negative keeps any)")
	fs.Float64Var(&cfg.MaxEntropy, "max-entropy", cfg.MaxEntropy, "Max vote entropy for an edge to be kept (0 uses the default)")
	fs.StringVar(&cfg.Demographics, "demographics", cfg.Demographics, "Per-edge demographics: none, raw or us-political")
	cfg.Logging.Register(fs)

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/graph-summarizer -values values.json -events edges.jsonl -pagerank weighted -contexts -pretty")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.ValuesPath != "" {
		cfg.ValuesPath = filepath.Clean(cfg.ValuesPath)
	}
	if cfg.EventsPath != "" {
		cfg.EventsPath = filepath.Clean(cfg.EventsPath)
	}
	return cfg, nil
}
