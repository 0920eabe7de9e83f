package idempotency

import (
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-crebain/core"
)

type Decision string

const (
	// DecisionRetrySameKey: no definitive response was received; retrying
	// with the unchanged key is safe, the server dedupes.
	DecisionRetrySameKey Decision = "retry_same_key"
	// DecisionRetryAfterBackoff: the server answered but asked for a pause
	// (rate limit) or failed transiently; retry the unchanged key after
	// the advised delay.
	DecisionRetryAfterBackoff Decision = "retry_after_backoff"
	// DecisionDoNotRetry: the request itself was rejected; retrying it
	// unmodified will fail the same way.
	DecisionDoNotRetry Decision = "do_not_retry"
	DecisionNone       Decision = "none"
)

const defaultBackoffHint = 5 * time.Second

type Advice struct {
	Decision  Decision
	Backoff   time.Duration
	RequestID string
}

// Classify turns a failed call into retry advice. The library never acts on
// the advice itself; callers own their retry loops.
func Classify(err error) Advice {
	if err == nil {
		return Advice{Decision: DecisionNone}
	}

	requestID := core.RequestID(err)

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		// Plain transport failure with no response: the key dedupes.
		return Advice{Decision: DecisionRetrySameKey, RequestID: requestID}
	}

	switch richErr.TextCode {
	case core.APIErrorRateLimited:
		return Advice{
			Decision:  DecisionRetryAfterBackoff,
			Backoff:   backoffHint(richErr),
			RequestID: requestID,
		}
	case core.APIErrorInternal:
		return Advice{
			Decision:  DecisionRetryAfterBackoff,
			Backoff:   defaultBackoffHint,
			RequestID: requestID,
		}
	case core.APIErrorValidation,
		core.APIErrorUnauthorized,
		core.APIErrorKeyRevoked,
		core.APIErrorKeyExpired,
		core.APIErrorForbidden,
		core.APIErrorNotFound,
		core.APIErrorConflict,
		core.APIErrorBadInput:
		return Advice{Decision: DecisionDoNotRetry, RequestID: requestID}
	}

	if richErr.Category == goerrors.CategoryExternal {
		return Advice{Decision: DecisionRetrySameKey, RequestID: requestID}
	}
	return Advice{Decision: DecisionDoNotRetry, RequestID: requestID}
}

func backoffHint(err *goerrors.Error) time.Duration {
	if err == nil || err.Metadata == nil {
		return defaultBackoffHint
	}
	if ms, ok := err.Metadata["retry_after_ms"].(int64); ok && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if seconds, ok := err.Metadata["retry_after_s"].(int); ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultBackoffHint
}
