package vlm

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go/v3"
)

// ErrorClass partitions model call failures by retry policy.
type ErrorClass int

const (
	// ClassRateLimit is a 429 from the endpoint; retry after backing off.
	ClassRateLimit ErrorClass = iota
	// ClassTransient covers 5xx, timeouts and transport failures; same
	// retry policy as rate limits.
	ClassTransient
	// ClassFatal covers authentication failures, malformed requests and
	// unsupported input; never retried.
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRateLimit:
		return "rate_limit"
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	}
	return "unknown"
}

// Retryable reports whether the class is subject to the backoff-and-retry
// policy.
func (c ErrorClass) Retryable() bool {
	return c == ClassRateLimit || c == ClassTransient
}

// Classify maps an error from the OpenAI client onto the retry taxonomy.
// Non-API errors are transport-level and treated as transient, except for
// context cancellation which cannot be recovered by retrying.
func Classify(err error) ErrorClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests:
			return ClassRateLimit
		case apierr.StatusCode == http.StatusRequestTimeout:
			return ClassTransient
		case apierr.StatusCode >= 500:
			return ClassTransient
		case apierr.StatusCode >= 400:
			return ClassFatal
		}
	}

	return ClassTransient
}
