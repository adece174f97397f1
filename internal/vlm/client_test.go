package vlm

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/semdiff/videodiff/internal/config"
	"github.com/semdiff/videodiff/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1,
	"model": "gpt-4.1-mini",
	"choices": [
		{"index": 0, "message": {"role": "assistant", "content": "a red ball on a table"}, "finish_reason": "stop"}
	],
	"usage": {"prompt_tokens": 120, "completion_tokens": 18, "total_tokens": 138}
}`

func testClient(baseURL string) *Client {
	c := NewClient(
		slog.New(slog.DiscardHandler),
		config.OpenAIConfig{APIKey: "test", BaseURL: baseURL, Model: "gpt-4.1-mini"},
		config.PipelineConfig{MaxAttempts: 3, RetryDelay: time.Second, CallDelay: time.Second, MaxTokens: 200},
	)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

// completionServer fakes the chat completions endpoint. status picks the
// response for the n-th request (1-based); the counter exposes how many
// requests actually reached the wire.
func completionServer(t *testing.T, status func(n int) int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		w.Header().Set("Content-Type", "application/json")
		switch code := status(n); code {
		case http.StatusOK:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(completionBody))
		case http.StatusTooManyRequests:
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded", "type": "rate_limit_error"}}`))
		default:
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error": {"message": "request rejected", "type": "invalid_request_error"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

type mapCache struct {
	data map[string]models.DescriptionResult
}

func (m *mapCache) Get(_ context.Context, key string) (models.DescriptionResult, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, res models.DescriptionResult) error {
	m.data[key] = res
	return nil
}

func TestCacheKeyDistinguishesInputs(t *testing.T) {
	img1, img2 := []byte{1, 2, 3}, []byte{4, 5, 6}

	base := cacheKey("gpt-4.1-mini", "describe", [][]byte{img1})
	assert.NotEqual(t, base, cacheKey("gpt-4o-mini", "describe", [][]byte{img1}))
	assert.NotEqual(t, base, cacheKey("gpt-4.1-mini", "diff", [][]byte{img1}))
	assert.NotEqual(t, base, cacheKey("gpt-4.1-mini", "describe", [][]byte{img2}))
	assert.NotEqual(t, base, cacheKey("gpt-4.1-mini", "describe", [][]byte{img1, img2}))

	// Same inputs, same key: reruns must hit the cache.
	assert.Equal(t, base, cacheKey("gpt-4.1-mini", "describe", [][]byte{img1}))
}

func TestDescribeSingleServedFromCache(t *testing.T) {
	srv, calls := completionServer(t, func(int) int { return http.StatusOK })
	c := testClient(srv.URL)

	image := []byte("jpeg-bytes")
	stored := models.DescriptionResult{
		Text:             "a red ball on a table",
		PromptTokens:     120,
		CompletionTokens: 18,
		OK:               true,
	}
	c.SetCacheClient(&mapCache{data: map[string]models.DescriptionResult{
		cacheKey("gpt-4.1-mini", "describe", [][]byte{image}): stored,
	}})

	got, err := c.DescribeSingle(context.Background(), image, "describe")
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	// A hit short-circuits before any network call.
	assert.EqualValues(t, 0, calls.Load())
}

func TestDescribeSingleRetriesUntilExhausted(t *testing.T) {
	srv, calls := completionServer(t, func(int) int { return http.StatusTooManyRequests })
	c := testClient(srv.URL)

	res, err := c.DescribeSingle(context.Background(), []byte("jpeg-bytes"), "describe")

	// Exhausted retries are a recorded failure, not an abort.
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.FailReason)

	// Exactly MaxAttempts requests on the wire: the transport must not add
	// retries of its own on top of the attempt loop.
	assert.EqualValues(t, 3, calls.Load())
}

func TestDescribeSingleFatalStopsImmediately(t *testing.T) {
	srv, calls := completionServer(t, func(int) int { return http.StatusUnauthorized })
	c := testClient(srv.URL)

	res, err := c.DescribeSingle(context.Background(), []byte("jpeg-bytes"), "describe")

	require.Error(t, err)
	assert.False(t, res.OK)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDescribeSingleRecoversAfterRateLimit(t *testing.T) {
	srv, calls := completionServer(t, func(n int) int {
		if n == 1 {
			return http.StatusTooManyRequests
		}
		return http.StatusOK
	})
	c := testClient(srv.URL)

	res, err := c.DescribeSingle(context.Background(), []byte("jpeg-bytes"), "describe")

	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "a red ball on a table", res.Text)
	assert.EqualValues(t, 120, res.PromptTokens)
	assert.EqualValues(t, 18, res.CompletionTokens)
	assert.EqualValues(t, 2, calls.Load())
}

func TestDescribePairSendsBothImages(t *testing.T) {
	srv, calls := completionServer(t, func(int) int { return http.StatusOK })
	c := testClient(srv.URL)

	res, err := c.DescribePair(context.Background(), []byte("prev"), []byte("curr"), "what changed?")

	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDataURLFormat(t *testing.T) {
	url := dataURL([]byte{0xff, 0xd8})
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
}

func TestBuildParams(t *testing.T) {
	c := testClient("http://localhost:0")

	params := c.buildParams("what changed?", [][]byte{{1}, {2}})
	assert.Equal(t, "gpt-4.1-mini", string(params.Model))
	assert.Equal(t, int64(200), params.MaxCompletionTokens.Value)
	require.Len(t, params.Messages, 1)
}
