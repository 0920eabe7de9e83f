package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-crebain/core"
)

func TestAdaptivePolicy_ThrottlesAfter429UntilRetryAfterElapses(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	policy.Now = func() time.Time { return now }

	key := core.RateLimitKey{APIKeyID: "ck_test", BucketKey: "entities"}
	res := NormalizeResponse(core.TransportResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "3"},
	})
	if err := policy.AfterCall(context.Background(), key, res); err != nil {
		t.Fatalf("record 429: %v", err)
	}

	err := policy.BeforeCall(context.Background(), key)
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if throttled.RetryAfter != 3*time.Second {
		t.Fatalf("expected 3s retry-after, got %s", throttled.RetryAfter)
	}

	now = now.Add(4 * time.Second)
	if err := policy.BeforeCall(context.Background(), key); err != nil {
		t.Fatalf("expected bucket to clear after retry-after, got %v", err)
	}
}

func TestAdaptivePolicy_ExhaustedRemainingBlocksUntilReset(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	policy.Now = func() time.Time { return now }

	key := core.RateLimitKey{APIKeyID: "ck_test", BucketKey: "entities"}
	// reset header is 30s after the fixed clock
	res := NormalizeResponse(core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "60",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1772452830",
		},
	})
	if err := policy.AfterCall(context.Background(), key, res); err != nil {
		t.Fatalf("record exhausted response: %v", err)
	}

	if err := policy.BeforeCall(context.Background(), key); err == nil {
		t.Fatalf("expected exhausted bucket to block")
	}
}

func TestAdaptivePolicy_SuccessResetsThrottle(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	policy.Now = func() time.Time { return now }

	key := core.RateLimitKey{APIKeyID: "ck_test", BucketKey: "webhooks"}
	throttledRes := NormalizeResponse(core.TransportResponse{StatusCode: http.StatusTooManyRequests})
	if err := policy.AfterCall(context.Background(), key, throttledRes); err != nil {
		t.Fatalf("record 429: %v", err)
	}

	okRes := NormalizeResponse(core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "60",
			"X-RateLimit-Remaining": "59",
		},
	})
	if err := policy.AfterCall(context.Background(), key, okRes); err != nil {
		t.Fatalf("record success: %v", err)
	}
	if err := policy.BeforeCall(context.Background(), key); err != nil {
		t.Fatalf("expected cleared bucket, got %v", err)
	}

	state, err := policy.Store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if state.Limit != 60 || state.Remaining != 59 {
		t.Fatalf("unexpected state limit=%d remaining=%d", state.Limit, state.Remaining)
	}
}

func TestThrottledError_ToAPIError(t *testing.T) {
	err := ThrottledError{BucketKey: "entities", RetryAfter: 3 * time.Second}

	mapped := err.ToAPIError()
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode != core.APIErrorRateLimited {
		t.Fatalf("expected RATE_LIMITED text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", mapped.Code)
	}
}

func TestNormalizeResponse_RequestIDAndDefaultRetryAfter(t *testing.T) {
	meta := NormalizeResponse(core.TransportResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"X-Request-Id": "req_429"},
	})
	if meta.RequestID != "req_429" {
		t.Fatalf("expected request id, got %q", meta.RequestID)
	}
	if meta.RetryAfter == nil || *meta.RetryAfter != defaultRetryAfter429 {
		t.Fatalf("expected default retry-after, got %v", meta.RetryAfter)
	}
	if meta.Metadata["retry_after_source"] != "default" {
		t.Fatalf("expected default retry-after source, got %v", meta.Metadata["retry_after_source"])
	}
}

func TestNormalizeResponse_HeaderRetryAfterWins(t *testing.T) {
	meta := NormalizeResponse(core.TransportResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "7"},
	})
	if meta.RetryAfter == nil || *meta.RetryAfter != 7*time.Second {
		t.Fatalf("expected 7s retry-after, got %v", meta.RetryAfter)
	}
	if meta.Metadata["retry_after_source"] != "header" {
		t.Fatalf("expected header retry-after source")
	}
}
