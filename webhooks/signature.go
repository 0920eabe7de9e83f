package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderTimestamp  = "X-Crebain-Timestamp"
	HeaderSignature  = "X-Crebain-Signature"
	HeaderDeliveryID = "X-Crebain-Delivery-Id"
)

const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

// ComputeSignature computes the raw MAC over the canonical signed payload:
// the decimal unix-seconds timestamp, a "." separator, then the body bytes
// exactly as received. Re-serializing the body breaks the signature on
// purpose.
func ComputeSignature(secret string, timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// EncodeSignature renders a raw MAC in the configured encoding. Unknown
// encodings fall back to hex, matching the verifier default.
func EncodeSignature(mac []byte, encoding string) string {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(mac)
	default:
		return hex.EncodeToString(mac)
	}
}

// Signer produces the delivery headers for the Crebain signing scheme. The
// client uses it to build test fixtures and local delivery simulations; the
// scheme is identical to what the API signs outbound deliveries with.
type Signer struct {
	Secret   string
	Encoding string
	Now      func() time.Time
}

func (s Signer) Sign(body []byte) map[string]string {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	return s.SignAt(body, now.Unix())
}

func (s Signer) SignAt(body []byte, timestamp int64) map[string]string {
	mac := ComputeSignature(s.Secret, timestamp, body)
	return map[string]string{
		HeaderTimestamp: strconv.FormatInt(timestamp, 10),
		HeaderSignature: EncodeSignature(mac, s.Encoding),
	}
}
