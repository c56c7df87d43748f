// Package token issues and validates tracking tokens.
//
// Tokens have the fixed wire format LF-XXXXXX-XXXXXX: the literal prefix
// "LF-" followed by two 6-character uppercase-alphanumeric groups.
package token

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	prefix    = "LF"
	groupLen  = 6
	alphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	separator = "-"
)

// Generate returns a new tracking token.
// Parameters: none.
// Returns:
//   - string: token in the form LF-XXXXXX-XXXXXX.
//   - error: non-nil if the system randomness source fails.
func Generate() (string, error) {
	g1, err := randomGroup()
	if err != nil {
		return "", err
	}
	g2, err := randomGroup()
	if err != nil {
		return "", err
	}
	return prefix + separator + g1 + separator + g2, nil
}

func randomGroup() (string, error) {
	buf := make([]byte, groupLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	out := make([]byte, groupLen)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// Validate reports whether s matches the tracking token wire format.
// Parameters:
//   - s: candidate token string.
// Returns:
//   - bool: true if s is a well-formed token.
func Validate(s string) bool {
	if s == "" {
		return false
	}
	parts := strings.Split(s, separator)
	if len(parts) != 3 {
		return false
	}
	if parts[0] != prefix {
		return false
	}
	if len(parts[1]) != groupLen || len(parts[2]) != groupLen {
		return false
	}
	return isAlnum(parts[1]) && isAlnum(parts[2])
}

func isAlnum(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
