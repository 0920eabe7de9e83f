package core

import (
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// API error codes as returned by the Crebain API. The code family maps 1:1
// onto the HTTP status of the response that carried it.
const (
	APIErrorUnauthorized    = "UNAUTHORIZED"
	APIErrorKeyRevoked      = "API_KEY_REVOKED"
	APIErrorKeyExpired      = "API_KEY_EXPIRED"
	APIErrorForbidden       = "FORBIDDEN"
	APIErrorNotFound        = "NOT_FOUND"
	APIErrorConflict        = "CONFLICT"
	APIErrorValidation      = "VALIDATION_ERROR"
	APIErrorRateLimited     = "RATE_LIMITED"
	APIErrorInternal        = "INTERNAL"
	APIErrorBadInput        = "BAD_INPUT"
	APIErrorExternalFailure = "EXTERNAL_FAILURE"
)

// MetadataRequestID is the metadata key carrying the server correlation id.
// Every decoded API error carries it; wrapping must never drop it.
const MetadataRequestID = "request_id"

type apiErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// DecodeAPIError turns a non-2xx transport response into a rich error
// carrying the taxonomy code, the server message, and the request id. The
// request id is read from the body first, then from the response header.
func DecodeAPIError(res TransportResponse) error {
	body := apiErrorBody{}
	if len(res.Body) > 0 {
		_ = json.Unmarshal(res.Body, &body)
	}

	code := strings.ToUpper(strings.TrimSpace(body.Code))
	if code == "" {
		code = defaultCodeForStatus(res.StatusCode)
	}
	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = http.StatusText(res.StatusCode)
	}
	requestID := strings.TrimSpace(body.RequestID)
	if requestID == "" {
		requestID = strings.TrimSpace(headerValue(res.Headers, "X-Request-Id"))
	}

	err := goerrors.New(message, categoryForCode(code)).
		WithCode(res.StatusCode).
		WithTextCode(code)
	metadata := map[string]any{
		MetadataRequestID: requestID,
		"http_status":     res.StatusCode,
	}
	err.WithMetadata(metadata)
	return err
}

// RequestID extracts the server correlation id from an error, if present.
// Decoded API errors are returned unwrapped by the client, so the id always
// lives on the outermost rich error.
func RequestID(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	if value, ok := richErr.Metadata[MetadataRequestID]; ok {
		if id, ok := value.(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

// APIErrorCode reports the taxonomy code of an error, or "" when the error
// did not originate from an API response.
func APIErrorCode(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	return strings.TrimSpace(richErr.TextCode)
}

func IsRateLimited(err error) bool {
	return APIErrorCode(err) == APIErrorRateLimited
}

func categoryForCode(code string) goerrors.Category {
	switch code {
	case APIErrorUnauthorized, APIErrorKeyRevoked, APIErrorKeyExpired:
		return goerrors.CategoryAuth
	case APIErrorForbidden:
		return goerrors.CategoryAuthz
	case APIErrorNotFound:
		return goerrors.CategoryNotFound
	case APIErrorConflict:
		return goerrors.CategoryConflict
	case APIErrorValidation:
		return goerrors.CategoryValidation
	case APIErrorRateLimited:
		return goerrors.CategoryRateLimit
	default:
		return goerrors.CategoryInternal
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return APIErrorUnauthorized
	case http.StatusForbidden:
		return APIErrorForbidden
	case http.StatusNotFound:
		return APIErrorNotFound
	case http.StatusConflict:
		return APIErrorConflict
	case http.StatusUnprocessableEntity:
		return APIErrorValidation
	case http.StatusTooManyRequests:
		return APIErrorRateLimited
	default:
		return APIErrorInternal
	}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
