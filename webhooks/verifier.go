package webhooks

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crebain/core"
)

// ErrVerificationFailed is the only error a verification attempt returns.
// Missing headers, stale timestamps, undecodable signatures, and MAC
// mismatches are deliberately indistinguishable so a caller cannot be turned
// into a forgery oracle.
var ErrVerificationFailed = errors.New("webhooks: signature verification failed")

const defaultTolerance = 5 * time.Minute

type VerifierConfig struct {
	Secret    string
	Tolerance time.Duration
	Encoding  string
	Now       func() time.Time
}

// SignatureVerifier authenticates inbound deliveries against the shared
// secret. Verification is a pure function of the request and the clock; it
// has no side effects.
type SignatureVerifier struct {
	secret    string
	tolerance time.Duration
	encoding  string
	now       func() time.Time
}

// NewSignatureVerifier validates configuration up front: a secret shorter
// than the minimum is a setup error, not a per-delivery rejection.
func NewSignatureVerifier(cfg VerifierConfig) (*SignatureVerifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if len(secret) < core.MinWebhookSecretLength {
		return nil, fmt.Errorf(
			"webhooks: secret must be at least %d characters",
			core.MinWebhookSecretLength,
		)
	}
	encoding := strings.ToLower(strings.TrimSpace(cfg.Encoding))
	switch encoding {
	case "":
		encoding = EncodingHex
	case EncodingHex, EncodingBase64:
	default:
		return nil, fmt.Errorf("webhooks: unsupported signature encoding %q", cfg.Encoding)
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	nowFunc := cfg.Now
	if nowFunc == nil {
		nowFunc = func() time.Time { return time.Now().UTC() }
	}
	return &SignatureVerifier{
		secret:    secret,
		tolerance: tolerance,
		encoding:  encoding,
		now:       nowFunc,
	}, nil
}

// Verify authenticates a delivery from its X-Crebain-Timestamp and
// X-Crebain-Signature headers and the raw body bytes. An empty body is
// valid input and is verified like any other.
func (v *SignatureVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if v == nil {
		return ErrVerificationFailed
	}
	timestamp := headerValue(req.Headers, HeaderTimestamp)
	signature := headerValue(req.Headers, HeaderSignature)
	return v.verify(timestamp, req.Body, signature)
}

// VerifyParts verifies an already-extracted (timestamp, body, signature)
// triple. Useful when the delivery did not arrive as an http request.
func (v *SignatureVerifier) VerifyParts(timestamp string, body []byte, signature string) error {
	if v == nil {
		return ErrVerificationFailed
	}
	return v.verify(strings.TrimSpace(timestamp), body, strings.TrimSpace(signature))
}

// Valid is the boolean form of Verify.
func (v *SignatureVerifier) Valid(ctx context.Context, req core.InboundRequest) bool {
	return v.Verify(ctx, req) == nil
}

func (v *SignatureVerifier) verify(timestamp string, body []byte, signature string) error {
	if timestamp == "" || signature == "" {
		return ErrVerificationFailed
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrVerificationFailed
	}

	now := v.now().UTC()
	skew := now.Sub(time.Unix(ts, 0).UTC())
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return ErrVerificationFailed
	}

	supplied, err := decodeSignature(signature, v.encoding)
	if err != nil {
		return ErrVerificationFailed
	}
	expected := ComputeSignature(v.secret, ts, body)
	if subtle.ConstantTimeCompare(supplied, expected) != 1 {
		return ErrVerificationFailed
	}
	return nil
}

func decodeSignature(signature string, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(signature)
	default:
		return hex.DecodeString(signature)
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
