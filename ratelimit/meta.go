package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-crebain/core"
)

const defaultRetryAfter429 = 2 * time.Second

// NormalizeResponse extracts the correlation id and rate-limit view from a
// raw API response. A 429 without a Retry-After header gets a conservative
// default hint.
func NormalizeResponse(res core.TransportResponse) core.ResponseMeta {
	meta := core.ResponseMeta{
		StatusCode: res.StatusCode,
		Headers:    copyStringMap(res.Headers),
		Metadata:   map[string]any{},
	}

	if requestID := headerValue(meta.Headers, "x-request-id"); requestID != "" {
		meta.RequestID = requestID
		meta.Metadata[core.MetadataRequestID] = requestID
	}

	if limit, ok := parseHeaderInt(meta.Headers, "x-ratelimit-limit"); ok {
		meta.Metadata["rate_limit"] = limit
	}
	if remaining, ok := parseHeaderInt(meta.Headers, "x-ratelimit-remaining"); ok {
		meta.Metadata["rate_limit_remaining"] = remaining
	}
	if reset, ok := parseHeaderResetAt(meta.Headers); ok {
		meta.Metadata["rate_limit_reset"] = reset.Unix()
	}

	if raw := headerValue(meta.Headers, "retry-after"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			retryAfter := time.Duration(seconds) * time.Second
			meta.RetryAfter = &retryAfter
			meta.Metadata["retry_after_source"] = "header"
		}
	}
	if res.StatusCode == http.StatusTooManyRequests && meta.RetryAfter == nil {
		retryAfter := defaultRetryAfter429
		meta.RetryAfter = &retryAfter
		meta.Metadata["retry_after_source"] = "default"
	}
	if meta.RetryAfter != nil {
		meta.Metadata["retry_after_ms"] = meta.RetryAfter.Milliseconds()
	}

	return meta
}

func copyStringMap(input map[string]string) map[string]string {
	if len(input) == 0 {
		return map[string]string{}
	}
	output := make(map[string]string, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}
