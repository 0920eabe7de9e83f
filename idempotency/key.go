// Package idempotency implements the client side of the idempotent-request
// contract: key generation and validation, and retry-safety classification
// of failed calls. Deduplication itself is enforced by the server; the
// client holds no local cache and performs no locking.
package idempotency

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Header is the request header the key travels in. The key is metadata,
// never part of the request body.
const Header = "Idempotency-Key"

const maxKeyLength = 255

// Key identifies one logical operation. The caller creates it before the
// first attempt, reuses it verbatim on every retry of that operation, and
// never reuses it for a different operation; the server reports key reuse
// with a conflicting payload as CONFLICT.
type Key string

// NewKey generates a fresh key, optionally namespaced by a caller prefix
// such as "check-cust42".
func NewKey(prefix string) Key {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return Key(uuid.NewString())
	}
	return Key(prefix + "-" + uuid.NewString())
}

func (k Key) String() string {
	return string(k)
}

func (k Key) IsZero() bool {
	return strings.TrimSpace(string(k)) == ""
}

func (k Key) Validate() error {
	value := strings.TrimSpace(string(k))
	if value == "" {
		return fmt.Errorf("idempotency: key is required")
	}
	if len(value) > maxKeyLength {
		return fmt.Errorf("idempotency: key exceeds %d characters", maxKeyLength)
	}
	for _, r := range value {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return fmt.Errorf("idempotency: key must be printable ascii")
		}
	}
	return nil
}
