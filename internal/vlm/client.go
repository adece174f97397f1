package vlm

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/semdiff/videodiff/internal/config"
	"github.com/semdiff/videodiff/internal/metrics"
	"github.com/semdiff/videodiff/internal/models"
)

const (
	modeSingle = "single"
	modePair   = "pair"
)

type Cache interface {
	Get(ctx context.Context, key string) (models.DescriptionResult, bool, error)
	Set(ctx context.Context, key string, res models.DescriptionResult) error
}

// Client wraps a vision-capable chat completion endpoint with retry, token
// accounting and a fixed inter-call throttle. Token counts are taken from the
// API usage block, so they match the model's own encoding exactly.
type Client struct {
	logger *slog.Logger
	api    openai.Client
	model  string
	cfg    config.PipelineConfig
	cache  Cache

	// sleep is swapped out in tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(logger *slog.Logger, oai config.OpenAIConfig, cfg config.PipelineConfig) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	// The SDK retries rate-limit and transient failures on its own; that
	// would stack with the attempt loop below, so it is turned off here
	// where the retry policy lives.
	api := openai.NewClient(
		option.WithAPIKey(oai.APIKey),
		option.WithBaseURL(oai.BaseURL),
		option.WithMaxRetries(0),
	)
	return &Client{
		logger: logger,
		api:    api,
		model:  oai.Model,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
}

func (c *Client) SetCacheClient(cache Cache) {
	c.cache = cache
}

// DescribeSingle describes one frame. On a retryable failure the same request
// is retried up to the configured attempt ceiling; after that a failure-marked
// result is returned with a nil error. A non-nil error means the failure is
// fatal and the caller should abort the sequence.
func (c *Client) DescribeSingle(ctx context.Context, image []byte, instruction string) (models.DescriptionResult, error) {
	return c.describe(ctx, modeSingle, instruction, image)
}

// DescribePair describes what changed between two consecutive frames. The
// prompt embeds both images; their token cost is part of the reported prompt
// tokens. Same failure contract as DescribeSingle.
func (c *Client) DescribePair(ctx context.Context, prev, curr []byte, instruction string) (models.DescriptionResult, error) {
	return c.describe(ctx, modePair, instruction, prev, curr)
}

func (c *Client) describe(ctx context.Context, mode, instruction string, images ...[]byte) (models.DescriptionResult, error) {
	key := cacheKey(c.model, instruction, images)
	if c.cache != nil {
		cached, found, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache get failed", "error", err)
		}
		if found {
			c.logger.Debug("description served from cache", "mode", mode)
			return cached, nil
		}
	}

	// The throttle is a deliberate rate limiter, not error recovery; it
	// applies after every network call regardless of outcome.
	defer c.throttle(ctx)

	params := c.buildParams(instruction, images)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		resp, err := c.api.Chat.Completions.New(ctx, params)
		metrics.VLMCallDuration(mode, time.Since(start))

		if err == nil {
			if len(resp.Choices) == 0 {
				lastErr = fmt.Errorf("model response has no choices")
				metrics.VLMRetry(ClassTransient.String())
				c.logger.Warn("malformed model response", "mode", mode, "attempt", attempt)
				if werr := c.waitBeforeRetry(ctx, attempt); werr != nil {
					return failure(werr), werr
				}
				continue
			}

			res := models.DescriptionResult{
				Text:             resp.Choices[0].Message.Content,
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				OK:               true,
			}
			metrics.VLMCall(mode, "ok")

			if c.cache != nil {
				if serr := c.cache.Set(ctx, key, res); serr != nil {
					c.logger.Warn("cache set failed", "error", serr)
				}
			}
			return res, nil
		}

		lastErr = err
		class := Classify(err)
		if !class.Retryable() {
			metrics.VLMCall(mode, "fatal")
			c.logger.Error("fatal model error", "mode", mode, "error", err)
			return failure(err), fmt.Errorf("describe %s: %w", mode, err)
		}

		metrics.VLMRetry(class.String())
		c.logger.Warn("retryable model error",
			"mode", mode, "class", class.String(), "attempt", attempt, "error", err)
		if werr := c.waitBeforeRetry(ctx, attempt); werr != nil {
			return failure(werr), werr
		}
	}

	metrics.VLMCall(mode, "exhausted")
	c.logger.Error("retries exhausted", "mode", mode, "attempts", c.cfg.MaxAttempts, "error", lastErr)
	return failure(lastErr), nil
}

func (c *Client) buildParams(instruction string, images [][]byte) openai.ChatCompletionNewParams {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(images)+1)
	parts = append(parts, openai.TextContentPart(instruction))
	for _, img := range images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(img),
		}))
	}

	return openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxCompletionTokens: openai.Int(int64(c.cfg.MaxTokens)),
	}
}

func (c *Client) waitBeforeRetry(ctx context.Context, attempt int) error {
	if attempt >= c.cfg.MaxAttempts {
		return nil
	}
	return c.sleep(ctx, c.cfg.RetryDelay)
}

func (c *Client) throttle(ctx context.Context) {
	if c.cfg.CallDelay <= 0 {
		return
	}
	if err := c.sleep(ctx, c.cfg.CallDelay); err != nil {
		c.logger.Warn("inter-call delay interrupted", "error", err)
	}
}

func failure(err error) models.DescriptionResult {
	return models.DescriptionResult{OK: false, FailReason: err.Error()}
}

func dataURL(jpeg []byte) string {
	return fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(jpeg))
}

func cacheKey(model, instruction string, images [][]byte) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(instruction))
	for _, img := range images {
		h.Write([]byte{0})
		h.Write(img)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
