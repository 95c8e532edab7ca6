package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theimaginaryfoundation/values-tools/internal/cli"
	"github.com/theimaginaryfoundation/values-tools/moral"
	"github.com/theimaginaryfoundation/values-tools/moral/fileutils"
)

// Group is a set of synonymous contexts.
type Group struct {
	moral.ContextGroup
	// ExistingDuplicateOf is the canonical context the representative already matches.
	ExistingDuplicateOf string `json:"existingDuplicateOf,omitempty"`
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout))
}

func realMain(args []string, stdout io.Writer) int {
	cfg, err := parseFlags(flag.NewFlagSet("context-dedupe", flag.ContinueOnError), args)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := cfg.Provider.Setup(ctx, log)
	if err != nil {
		return cli.Fail(2, err)
	}
	defer func() { _ = env.Close() }()

	d := deduper{
		cfg: cfg,
		rec: moral.NewReconciler(env.Client, env.Client, env.Prompts, cfg.ReconcileOptions(), log),
		log: log,
	}
	if err := d.run(ctx, stdout); err != nil {
		log.Error("context-dedupe failed", zap.Error(err))
		return 1
	}
	return 0
}

type deduper struct {
	cfg Config
	rec *moral.Reconciler
	log *zap.Logger
}

func (d deduper) run(ctx context.Context, stdout io.Writer) error {
	start := time.Now()
	contexts, err := fileutils.ReadJSONLines[string](d.cfg.InputPath)
	if err != nil {
		return fmt.Errorf("read -in: %w", err)
	}

	found, err := d.rec.DeduplicateContexts(ctx, contexts, d.cfg.UseClustering)
	if err != nil {
		return err
	}
	groups := make([]Group, len(found))
	for i, g := range found {
		groups[i].ContextGroup = g
	}

	if d.cfg.CanonicalPath != "" {
		if err := d.matchCanonical(ctx, groups); err != nil {
			return err
		}
	}

	if err := fileutils.WriteJSONOutput(stdout, d.cfg.OutputPath, groups, d.cfg.Pretty); err != nil {
		return err
	}
	d.log.Info("contexts deduplicated",
		zap.Int("contexts", len(contexts)),
		zap.Int("groups", len(groups)),
		zap.Duration("elapsed", time.Since(start).Round(time.Second)),
	)
	return nil
}

// matchCanonical checks each representative against its nearest canonical contexts.
func (d deduper) matchCanonical(ctx context.Context, groups []Group) error {
	canonical, err := fileutils.ReadJSONLines[string](d.cfg.CanonicalPath)
	if err != nil {
		return fmt.Errorf("read -canonical: %w", err)
	}
	if len(canonical) == 0 || len(groups) == 0 {
		return nil
	}

	texts := make([]string, 0, len(canonical)+len(groups))
	texts = append(texts, canonical...)
	for _, g := range groups {
		texts = append(texts, g.Representative)
	}
	vecs, err := d.rec.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	canonVecs, repVecs := vecs[:len(canonical)], vecs[len(canonical):]

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.cfg.Concurrency, 1))
	for i := range groups {
		g.Go(func() error {
			nearest, err := moral.Nearest(repVecs[i], canonVecs, d.cfg.Candidates, nil)
			if err != nil {
				return err
			}
			candidates := make([]string, len(nearest))
			for k, idx := range nearest {
				candidates[k] = canonical[idx]
			}
			if match, ok := d.rec.GetExistingDuplicateContext(gctx, groups[i].Representative, candidates); ok {
				groups[i].ExistingDuplicateOf = match
			}
			return nil
		})
	}
	return g.Wait()
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
	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Contexts file (JSON array of strings or one JSON string per line)")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "Where to write the groups JSON (- for stdout)")
	fs.StringVar(&cfg.CanonicalPath, "canonical", cfg.CanonicalPath, "Optional canonical contexts file to match each group against")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the output JSON")
	fs.BoolVar(&cfg.UseClustering, "cluster", cfg.UseClustering, "Split contexts by embedding density before asking the model")
	fs.Float64Var(&cfg.Radius, "radius", cfg.Radius, "Clustering radius (cosine distance)")
	fs.IntVar(&cfg.MinPoints, "min-points", cfg.MinPoints, "Min neighbourhood size to seed a cluster")
	fs.IntVar(&cfg.Candidates, "candidates", cfg.Candidates, "Nearest canonical contexts shown per existing-duplicate check")
	fs.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature for reconciliation calls")
	cfg.Provider.Register(fs)
	cfg.Logging.Register(fs)

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/context-dedupe -in choice-types.json -canonical canonical.json -pretty")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.InputPath != "" {
		cfg.InputPath = filepath.Clean(cfg.InputPath)
	}
	return cfg, nil
}
