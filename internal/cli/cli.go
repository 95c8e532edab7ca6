// Package cli holds the flag groups and startup wiring shared by the command-line tools.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/values-tools/moral"
	"github.com/theimaginaryfoundation/values-tools/moral/cache"
	"github.com/theimaginaryfoundation/values-tools/moral/logger"
	"github.com/theimaginaryfoundation/values-tools/moral/prompts"
	"github.com/theimaginaryfoundation/values-tools/moral/provider"
)

// Logging selects the log format and level.
type Logging struct {
	LogMode string `yaml:"log_mode"`
	Debug   bool   `yaml:"debug"`
}

func (l *Logging) Register(fs *flag.FlagSet) {
	fs.StringVar(&l.LogMode, "log-mode", l.LogMode, "Log format: dev (console) or prod (JSON)")
	fs.BoolVar(&l.Debug, "debug", l.Debug, "Enable debug logging")
}

// NewLogger builds the logger described by l.
func (l Logging) NewLogger() (*zap.Logger, error) {
	return logger.New(l.LogMode, l.Debug)
}

// Provider configures the OpenAI client, its cache and the prompt set.
type Provider struct {
	APIKey              string        `yaml:"api_key"`
	Model               string        `yaml:"model"`
	EmbeddingModel      string        `yaml:"embedding_model"`
	EmbeddingDimensions int           `yaml:"embedding_dimensions"`
	MaxOutputTokens     int           `yaml:"max_output_tokens"`
	Flex                bool          `yaml:"flex"`
	Cache               string        `yaml:"cache"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	PromptsDir          string        `yaml:"prompts_dir"`
	CallTimeout         time.Duration `yaml:"call_timeout"`
	Concurrency         int           `yaml:"concurrency"`
}

// DefaultProvider returns the provider defaults shared by every tool.
func DefaultProvider() Provider {
	return Provider{
		Model:               provider.DefaultModel,
		EmbeddingModel:      provider.DefaultEmbeddingModel,
		EmbeddingDimensions: provider.DefaultEmbeddingDimensions,
		MaxOutputTokens:     provider.DefaultMaxOutputTokens,
		Cache:               "none",
		CallTimeout:         2 * time.Minute,
		Concurrency:         4,
	}
}

func (p *Provider) Register(fs *flag.FlagSet) {
	fs.StringVar(&p.APIKey, "api-key", p.APIKey, "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.StringVar(&p.Model, "model", p.Model, "OpenAI model used for structured generation")
	fs.StringVar(&p.EmbeddingModel, "embedding-model", p.EmbeddingModel, "OpenAI embedding model")
	fs.IntVar(&p.EmbeddingDimensions, "embedding-dimensions", p.EmbeddingDimensions, "Embedding vector length")
	fs.IntVar(&p.MaxOutputTokens, "max-output-tokens", p.MaxOutputTokens, "Max output tokens per generation call")
	fs.BoolVar(&p.Flex, "flex", p.Flex, "Use the flex service tier for generation calls")
	fs.StringVar(&p.Cache, "cache", p.Cache, "Generation cache: none, memory, sqlite:<path> or redis:<host:port>")
	fs.DurationVar(&p.CacheTTL, "cache-ttl", p.CacheTTL, "Expiry for redis cache entries (0 keeps them)")
	fs.StringVar(&p.PromptsDir, "prompts-dir", p.PromptsDir, "Directory of prompt .md files overriding the built-in prompts")
	fs.DurationVar(&p.CallTimeout, "call-timeout", p.CallTimeout, "Timeout for each model call (0 disables)")
	fs.IntVar(&p.Concurrency, "concurrency", p.Concurrency, "Max clusters reconciled at once")
}

func (p Provider) Validate() error {
	if p.Model == "" {
		return errors.New("missing -model")
	}
	if p.EmbeddingDimensions < 0 {
		return errors.New("embedding dimensions must be >= 0")
	}
	if p.Concurrency < 0 {
		return errors.New("concurrency must be >= 0")
	}
	if p.CallTimeout < 0 {
		return errors.New("call timeout must be >= 0")
	}
	return nil
}

// ResolveAPIKey returns -api-key, falling back to OPENAI_API_KEY.
func (p Provider) ResolveAPIKey() (string, error) {
	key := p.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return "", errors.New("missing OPENAI_API_KEY (or pass -api-key)")
	}
	return key, nil
}

// Env is the wiring a model-backed tool needs: client, prompts and the cache to close.
type Env struct {
	Client  *provider.Client
	Prompts moral.Prompts
	cache   cache.Store
}

// Setup resolves the API key, opens the cache, loads prompts and builds the client.
func (p Provider) Setup(ctx context.Context, log *zap.Logger, opts ...option.RequestOption) (*Env, error) {
	key, err := p.ResolveAPIKey()
	if err != nil {
		return nil, err
	}
	pr, err := prompts.Load(p.PromptsDir)
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(ctx, p.Cache, p.CacheTTL)
	if err != nil {
		return nil, err
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(key)}, opts...)...)
	cfg := provider.Config{
		Model:               p.Model,
		EmbeddingModel:      p.EmbeddingModel,
		EmbeddingDimensions: p.EmbeddingDimensions,
		MaxOutputTokens:     p.MaxOutputTokens,
		Flex:                p.Flex,
		Logger:              log,
	}
	if store != nil {
		cfg.Cache = store
	}
	log.Info("provider ready",
		zap.String("model", p.Model),
		zap.String("embedding_model", p.EmbeddingModel),
		zap.String("cache", p.Cache),
	)
	return &Env{Client: provider.NewClient(&client, cfg), Prompts: pr, cache: store}, nil
}

func (e *Env) Close() error {
	if e == nil || e.cache == nil {
		return nil
	}
	return e.cache.Close()
}

// ConfigPath returns the value of -config (or --config) in args without parsing other flags, so
// a YAML file can seed defaults before flags override them. Scanning stops at "--".
func ConfigPath(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			return ""
		}
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// Fail prints err to stderr and returns code, for a main that exits only after its deferred
// cleanup has run. flag.ErrHelp is not a failure: usage was already printed.
func Fail(code int, err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	fmt.Fprintln(os.Stderr, err.Error())
	return code
}
