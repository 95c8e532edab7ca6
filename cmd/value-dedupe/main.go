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

// Group is one deduplicated source of meaning.
type Group struct {
	Representative *moral.Value  `json:"representative,omitempty"`
	Members        []moral.Value `json:"members"`
	// ExistingDuplicateOf is the id of the canonical value this group already matches.
	ExistingDuplicateOf *int `json:"existingDuplicateOf,omitempty"`
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout))
}

func realMain(args []string, stdout io.Writer) int {
	cfg, err := parseFlags(flag.NewFlagSet("value-dedupe", flag.ContinueOnError), args)
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
		log.Error("value-dedupe failed", zap.Error(err))
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
	values, err := fileutils.ReadJSONLines[moral.Value](d.cfg.InputPath)
	if err != nil {
		return fmt.Errorf("read -in: %w", err)
	}

	clusters, err := d.rec.DeduplicateValueSet(ctx, values, d.cfg.ChoiceType)
	if err != nil {
		return err
	}
	groups := make([]Group, len(clusters))
	for i, c := range clusters {
		groups[i].Members = c
	}

	if d.cfg.Representatives || d.cfg.CanonicalPath != "" {
		if err := d.pickRepresentatives(ctx, groups); err != nil {
			return err
		}
	}
	if d.cfg.CanonicalPath != "" {
		if err := d.matchCanonical(ctx, groups); err != nil {
			return err
		}
	}

	if err := fileutils.WriteJSONOutput(stdout, d.cfg.OutputPath, groups, d.cfg.Pretty); err != nil {
		return err
	}
	d.log.Info("values deduplicated",
		zap.Int("values", len(values)),
		zap.Int("groups", len(groups)),
		zap.Duration("elapsed", time.Since(start).Round(time.Second)),
	)
	return nil
}

func (d deduper) pickRepresentatives(ctx context.Context, groups []Group) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.cfg.Concurrency, 1))
	for i := range groups {
		g.Go(func() error {
			rep, err := d.rec.GetRepresentativeValue(gctx, groups[i].Members)
			if err != nil {
				return err
			}
			groups[i].Representative = &rep
			return nil
		})
	}
	return g.Wait()
}

// matchCanonical looks for an existing canonical value for each group's representative among the
// nearest canonical values by embedding.
func (d deduper) matchCanonical(ctx context.Context, groups []Group) error {
	canonical, err := fileutils.ReadJSONLines[moral.Value](d.cfg.CanonicalPath)
	if err != nil {
		return fmt.Errorf("read -canonical: %w", err)
	}
	if len(canonical) == 0 {
		return nil
	}
	canonVecs, err := d.rec.EmbedValues(ctx, canonical)
	if err != nil {
		return err
	}
	reps := make([]moral.Value, len(groups))
	for i, gr := range groups {
		reps[i] = *gr.Representative
	}
	repVecs, err := d.rec.EmbedValues(ctx, reps)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.cfg.Concurrency, 1))
	for i := range groups {
		g.Go(func() error {
			nearest, err := moral.Nearest(repVecs[i], canonVecs, d.cfg.Candidates, nil)
			if err != nil {
				return err
			}
			candidates := make([]moral.Value, len(nearest))
			for k, idx := range nearest {
				candidates[k] = canonical[idx]
			}
			if match, ok := d.rec.GetExistingDuplicateValue(gctx, reps[i], candidates); ok {
				id := match.ID
				groups[i].ExistingDuplicateOf = &id
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
	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Values file (JSON array or JSONL of {id, policies}); embeddings are reused when present")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "Where to write the groups JSON (- for stdout)")
	fs.StringVar(&cfg.CanonicalPath, "canonical", cfg.CanonicalPath, "Optional canonical values file to match each group against")
	fs.StringVar(&cfg.ChoiceType, "choice-type", cfg.ChoiceType, "Kind of choice the values were articulated for (optional)")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the output JSON")
	fs.Float64Var(&cfg.Radius, "radius", cfg.Radius, "Clustering radius (cosine distance)")
	fs.IntVar(&cfg.MinPoints, "min-points", cfg.MinPoints, "Min neighbourhood size to seed a cluster")
	fs.IntVar(&cfg.Candidates, "candidates", cfg.Candidates, "Nearest canonical values shown per existing-duplicate check")
	fs.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature for reconciliation calls")
	fs.BoolVar(&cfg.Representatives, "representatives", cfg.Representatives, "Pick a representative value for each group")
	cfg.Provider.Register(fs)
	cfg.Logging.Register(fs)

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/value-dedupe -in values.jsonl -cache sqlite:.cache/gen.db -pretty")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.InputPath != "" {
		cfg.InputPath = filepath.Clean(cfg.InputPath)
	}
	return cfg, nil
}
