package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/values-tools/moral/fileutils"
)

const (
	DefaultModel               = "gpt-4o"
	DefaultEmbeddingModel      = "text-embedding-3-large"
	DefaultEmbeddingDimensions = 1536
	DefaultMaxOutputTokens     = 4000

	// embedBatchSize stays well below the API's per-request input limit.
	embedBatchSize = 512
)

// Cache stores generation results by key. Implementations live in package cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Config configures a Client. Zero fields take the package defaults.
type Config struct {
	Model               string
	EmbeddingModel      string
	EmbeddingDimensions int
	MaxOutputTokens     int
	// Flex requests the flex service tier for generation calls.
	Flex bool

	Cache  Cache
	Logger *zap.Logger
}

// Client generates structured objects and embeddings through the OpenAI API.
type Client struct {
	client *openai.Client
	cfg    Config
	log    *zap.Logger
}

func NewClient(client *openai.Client, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{client: client, cfg: cfg, log: log.Named("provider")}
}

// GenerateObject sends req.Prompt as instructions and the rendered data sections as the user
// message, and decodes the schema-constrained reply into out.
func (c *Client) GenerateObject(ctx context.Context, req ObjectRequest, out any) error {
	if c.client == nil {
		return errors.New("provider: client is nil")
	}
	if req.Schema == nil {
		return errors.New("provider: schema is nil")
	}
	input, err := RenderSections(req.Data)
	if err != nil {
		return err
	}

	var key string
	if c.cfg.Cache != nil {
		key, err = CacheKey(req.Prompt, input, req.Schema, c.cfg.Model, req.Temperature)
		if err != nil {
			return fmt.Errorf("provider: cache key: %w", err)
		}
		if cached, ok, err := c.cfg.Cache.Get(ctx, key); err != nil {
			c.log.Warn("cache get failed", zap.String("schema", req.Name), zap.Error(err))
		} else if ok {
			if err := fileutils.DecodeModelJSON(string(cached), out); err == nil {
				c.log.Debug("cache hit", zap.String("schema", req.Name))
				return nil
			}
			c.log.Warn("discarding undecodable cache entry", zap.String("schema", req.Name))
		}
	}

	name := req.Name
	if name == "" {
		name = "Result"
	}
	params := responses.ResponseNewParams{
		Model:           c.cfg.Model,
		MaxOutputTokens: openai.Int(int64(c.cfg.MaxOutputTokens)),
		Instructions:    openai.String(req.Prompt),
		Temperature:     openai.Float(req.Temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   name,
					Schema: req.Schema,
					Strict: openai.Bool(true),
					Type:   "json_schema",
				},
			},
		},
	}
	if c.cfg.Flex {
		params.ServiceTier = responses.ResponseNewParamsServiceTierFlex
	}

	resp, err := CallWithRetry(ctx, func(ctx context.Context) (*responses.Response, error) {
		return c.client.Responses.New(ctx, params)
	})
	if err != nil {
		return err
	}

	text := resp.OutputText()
	if err := fileutils.DecodeModelJSON(text, out); err != nil {
		c.log.Debug("undecodable reply", zap.String("schema", name), zap.String("text", fileutils.Truncate(text, 300)))
		return fmt.Errorf("decode %s: %w", name, err)
	}

	if c.cfg.Cache != nil {
		if err := c.cfg.Cache.Set(ctx, key, []byte(text)); err != nil {
			c.log.Warn("cache set failed", zap.String("schema", req.Name), zap.Error(err))
		}
	}
	return nil
}

// EmbedText embeds a single text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	out, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedTexts embeds texts, returning vectors in input order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if c.client == nil {
		return nil, errors.New("provider: client is nil")
	}
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		resp, err := CallWithRetry(ctx, func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
			return c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
				Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
				Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
				Dimensions: openai.Int(int64(c.cfg.EmbeddingDimensions)),
			})
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("provider: got %d embeddings for %d inputs", len(resp.Data), len(batch))
		}
		data := resp.Data
		sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
		for _, d := range data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}

var (
	rateLimitWaitTimes   = []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes = []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}
)

// CallWithRetry retries call on rate-limit and server errors, waiting between attempts unless
// ctx is done first.
func CallWithRetry[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	const maxRetries = 3
	var zero T

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}
		var wait time.Duration
		switch {
		case isRateLimitError(err):
			wait = rateLimitWaitTimes[attempt]
		case isServerError(err):
			wait = serverErrorWaitTimes[attempt]
		default:
			return zero, err
		}
		if attempt == maxRetries-1 {
			return zero, err
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
	return zero, fmt.Errorf("failed after %d attempts due to OpenAI API issues", maxRetries)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
