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

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout))
}

func realMain(args []string, stdout io.Writer) int {
	cfg, err := parseFlags(flag.NewFlagSet("upgrade-generator", flag.ContinueOnError), args)
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

	up := moral.NewUpgrader(env.Client, env.Prompts, cfg.Temperature, cfg.CallTimeout, log)
	if err := run(ctx, cfg, up, stdout, log); err != nil {
		log.Error("upgrade-generator failed", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg Config, up *moral.Upgrader, stdout io.Writer, log *zap.Logger) error {
	values, err := fileutils.ReadJSONLines[moral.Value](cfg.ValuesPath)
	if err != nil {
		return fmt.Errorf("read -values: %w", err)
	}

	var upgrades []moral.UpgradeTransition
	if cfg.TargetID >= 0 {
		target, candidates, ok := splitTarget(values, cfg.TargetID)
		if !ok {
			return fmt.Errorf("target value %d not found in %s", cfg.TargetID, cfg.ValuesPath)
		}
		upgrades, err = up.GenerateUpgradesToValue(ctx, target, candidates, cfg.Context)
	} else {
		upgrades, err = up.GenerateUpgrades(ctx, values, cfg.Context)
	}
	if err != nil {
		return err
	}
	if upgrades == nil {
		upgrades = []moral.UpgradeTransition{}
	}

	if err := fileutils.WriteJSONOutput(stdout, cfg.OutputPath, upgrades, cfg.Pretty); err != nil {
		return err
	}
	log.Info("upgrades generated", zap.Int("values", len(values)), zap.Int("upgrades", len(upgrades)))
	return nil
}

func splitTarget(values []moral.Value, id int) (moral.Value, []moral.Value, bool) {
	var target moral.Value
	found := false
	others := make([]moral.Value, 0, len(values))
	for _, v := range values {
		if v.ID == id && !found {
			target, found = v, true
			continue
		}
		others = append(others, v)
	}
	return target, others, found
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
	fs.StringVar(&cfg.ValuesPath, "values", cfg.ValuesPath, "Values file (JSON array or JSONL of {id, policies})")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "Where to write the transitions JSON (- for stdout)")
	fs.StringVar(&cfg.Context, "context", cfg.Context, "Optional choice context the transitions should make sense in")
	fs.IntVar(&cfg.TargetID, "target", cfg.TargetID, "Only generate transitions ending at this value id (-1 for any)")
	fs.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the output JSON")
	cfg.Provider.Register(fs)
	cfg.Logging.Register(fs)

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/upgrade-generator -values values.json -context \"a career path\" -target 42 -pretty")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.ValuesPath != "" {
		cfg.ValuesPath = filepath.Clean(cfg.ValuesPath)
	}
	return cfg, nil
}
