// Package pairing generates and checks the codes that link two lists.
package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"listou/internal/apperr"
)

// Length is the number of characters in a pairing code.
const Length = 6

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a random pairing code.
func Generate() (string, error) {
	var b strings.Builder
	size := big.NewInt(int64(len(alphabet)))
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("failed to generate pairing code: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize trims and upper-cases a code typed by the user.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate normalizes code and checks that it is six alphanumeric characters.
func Validate(code string) (string, error) {
	code = Normalize(code)
	if len(code) != Length {
		return "", apperr.Validation(fmt.Sprintf("pairing code must have %d characters", Length), nil)
	}
	for _, r := range code {
		if !strings.ContainsRune(alphabet, r) {
			return "", apperr.Validation("pairing code must contain only letters and digits", nil)
		}
	}
	return code, nil
}
