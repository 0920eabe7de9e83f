package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// TransportRequest is the wire-level request handed to a transport adapter.
// Idempotency, when set, is attached as request metadata (a header), never
// folded into the body.
type TransportRequest struct {
	Method               string
	Path                 string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Idempotency          string
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// InboundRequest carries a webhook delivery exactly as received: headers plus
// the raw, unparsed body bytes. Verification always runs against Body as-is.
type InboundRequest struct {
	Surface  string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type RateLimitKey struct {
	APIKeyID  string
	BucketKey string
}

// ResponseMeta is the normalized view of rate-limit and correlation headers
// extracted from an API response.
type ResponseMeta struct {
	StatusCode int
	RequestID  string
	Headers    map[string]string
	RetryAfter *time.Duration
	Metadata   map[string]any
}

type Transport interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// RateLimitPolicy advises around calls: BeforeCall may refuse with a
// throttled error, AfterCall records the response's rate-limit headers.
type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, key RateLimitKey) error
	AfterCall(ctx context.Context, key RateLimitKey, res ResponseMeta) error
}

// ReplayLedger records delivery keys that have already been observed so a
// replayed webhook can be acknowledged without being handled twice.
type ReplayLedger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	PurgeExpired(ctx context.Context) (int, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
