package core

import (
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestDecodeAPIError_MapsCodeFamilyAndRequestID(t *testing.T) {
	err := DecodeAPIError(TransportResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       []byte(`{"code":"RATE_LIMITED","message":"slow down","request_id":"req_42"}`),
	})
	if err == nil {
		t.Fatalf("expected error for 429 response")
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.TextCode != APIErrorRateLimited {
		t.Fatalf("expected RATE_LIMITED text code, got %q", richErr.TextCode)
	}
	if richErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", richErr.Code)
	}
	if richErr.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate-limit category, got %v", richErr.Category)
	}
	if got := RequestID(err); got != "req_42" {
		t.Fatalf("expected request id req_42, got %q", got)
	}
	if !IsRateLimited(err) {
		t.Fatalf("expected IsRateLimited to report true")
	}
}

func TestDecodeAPIError_AuthFamilyCodes(t *testing.T) {
	for _, code := range []string{APIErrorUnauthorized, APIErrorKeyRevoked, APIErrorKeyExpired} {
		err := DecodeAPIError(TransportResponse{
			StatusCode: http.StatusUnauthorized,
			Body:       []byte(`{"code":"` + code + `","message":"denied","request_id":"req_auth"}`),
		})
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			t.Fatalf("expected rich error for code %s", code)
		}
		if richErr.Category != goerrors.CategoryAuth {
			t.Fatalf("expected auth category for %s, got %v", code, richErr.Category)
		}
		if APIErrorCode(err) != code {
			t.Fatalf("expected code %s surfaced, got %q", code, APIErrorCode(err))
		}
	}
}

func TestDecodeAPIError_FallsBackToStatusWhenBodyUnusable(t *testing.T) {
	err := DecodeAPIError(TransportResponse{
		StatusCode: http.StatusUnprocessableEntity,
		Headers:    map[string]string{"X-Request-Id": "req_hdr"},
		Body:       []byte(`not json`),
	})
	if APIErrorCode(err) != APIErrorValidation {
		t.Fatalf("expected VALIDATION_ERROR fallback, got %q", APIErrorCode(err))
	}
	if got := RequestID(err); got != "req_hdr" {
		t.Fatalf("expected header request id req_hdr, got %q", got)
	}
}

func TestDecodeAPIError_ConflictAndNotFound(t *testing.T) {
	conflict := DecodeAPIError(TransportResponse{
		StatusCode: http.StatusConflict,
		Body:       []byte(`{"code":"CONFLICT","message":"key reuse","request_id":"req_c"}`),
	})
	var richErr *goerrors.Error
	if !goerrors.As(conflict, &richErr) || richErr.Category != goerrors.CategoryConflict {
		t.Fatalf("expected conflict category")
	}

	missing := DecodeAPIError(TransportResponse{StatusCode: http.StatusNotFound})
	if APIErrorCode(missing) != APIErrorNotFound {
		t.Fatalf("expected NOT_FOUND fallback, got %q", APIErrorCode(missing))
	}
}

func TestRequestID_NonRichError(t *testing.T) {
	if got := RequestID(nil); got != "" {
		t.Fatalf("expected empty request id for nil error, got %q", got)
	}
}
