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

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/values-tools/internal/cli"
	"github.com/theimaginaryfoundation/values-tools/moral"
	"github.com/theimaginaryfoundation/values-tools/moral/fileutils"
)

// Output is what the tool writes for a value articulation.
type Output struct {
	Value     moral.Value          `json:"value"`
	Generated moral.GeneratedValue `json:"generated"`
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout))
}

func realMain(args []string, stdout io.Writer) int {
	cfg, err := parseFlags(flag.NewFlagSet("value-articulator", flag.ContinueOnError), args)
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

	a := moral.NewArticulator(env.Client, env.Prompts, cfg.CallTimeout, log)
	if err := run(ctx, cfg, a, stdout); err != nil {
		log.Error("value-articulator failed", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg Config, a *moral.Articulator, stdout io.Writer) error {
	if cfg.Factors {
		factors, err := a.GenerateFactors(ctx, cfg.Question)
		if err != nil {
			return err
		}
		return fileutils.WriteJSONOutput(stdout, cfg.OutputPath, factors, cfg.Pretty)
	}

	x, fromContext := cfg.ChoiceType, false
	if cfg.Context != "" {
		x, fromContext = cfg.Context, true
	}
	gen, err := a.GenerateValue(ctx, cfg.Question, x, moral.ArticulateOptions{
		IncludeStory: cfg.Story,
		IncludeTitle: cfg.Title,
		FromContext:  fromContext,
	})
	if err != nil {
		return err
	}
	return fileutils.WriteJSONOutput(stdout, cfg.OutputPath, Output{Value: gen.Value(cfg.ValueID), Generated: gen}, cfg.Pretty)
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
	fs.StringVar(&cfg.Question, "question", cfg.Question, "The user's message to articulate a value for")
	fs.StringVar(&cfg.ChoiceType, "choice-type", cfg.ChoiceType, "Kind of choice the value should help with")
	fs.StringVar(&cfg.Context, "context", cfg.Context, "Situational context the value should help with")
	fs.BoolVar(&cfg.Factors, "factors", cfg.Factors, "List implicit situational factors of the question instead")
	fs.BoolVar(&cfg.Story, "story", cfg.Story, "Also generate a one-sentence story")
	fs.BoolVar(&cfg.Title, "title", cfg.Title, "Also generate a title")
	fs.IntVar(&cfg.ValueID, "value-id", cfg.ValueID, "Id to give the articulated value")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "Where to write the JSON (- for stdout)")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the output JSON")
	cfg.Provider.Register(fs)
	cfg.Logging.Register(fs)

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/value-articulator -question \"should I quit my job?\" -choice-type \"a career path\" -title")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/value-articulator -question \"should I quit my job?\" -factors")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
