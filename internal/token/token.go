// Package token generates the opaque identifiers and one-time codes used by
// the authentication core. All randomness comes from crypto/rand.
package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

// CodeDigits is the fixed length of a one-time verification code.
const CodeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// codePattern matches exactly one well-formed code. Anchored so partial or
// padded inputs never pass.
var codePattern = regexp.MustCompile(`^\d{6}$`)

// NewCode returns a zero-padded 6-digit numeric one-time code.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ValidCode reports whether s has the exact shape of a one-time code.
// It says nothing about whether the code matches a stored record.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}

// NewID returns a fresh random 128-bit identifier, used both for pending
// records and for session liveness keys. The identifier is opaque: it
// carries no claims and is only ever meaningful as a Redis key suffix.
func NewID() string {
	return uuid.NewString()
}
