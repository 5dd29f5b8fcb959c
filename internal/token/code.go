package token

import (
	"crypto/rand"
	"strings"
)

// CodePrefix is the literal prefix of every check-in code.  Codes look
// like "FIT-4K7Q2N": the prefix, a dash, then CodeSuffixLen characters
// drawn from codeAlphabet.  Matching is case-insensitive.
const CodePrefix = "FIT"

// CodeSuffixLen is the fixed length of the alphanumeric suffix.
const CodeSuffixLen = 6

// codeAlphabet deliberately omits 0/O and 1/I to keep codes easy to
// read out at the front desk.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewCheckInCode returns a fresh human-enterable check-in secret.
func NewCheckInCode() (string, error) {
	suffix, err := randomFrom(codeAlphabet, CodeSuffixLen)
	if err != nil {
		return "", err
	}
	return CodePrefix + "-" + suffix, nil
}

// NewReferenceCode returns a booking reference shared between a
// session and its ledger entries, e.g. "GS-8F3K2Q9T".
func NewReferenceCode() (string, error) {
	suffix, err := randomFrom(codeAlphabet, 8)
	if err != nil {
		return "", err
	}
	return "GS-" + suffix, nil
}

// randomFrom draws n characters from the given alphabet using
// cryptographically secure random data.  The 32-character alphabet
// divides 256 evenly, so the modulo draw is unbiased.
func randomFrom(alphabet string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(n)
	for _, c := range buf {
		b.WriteByte(alphabet[int(c)%len(alphabet)])
	}
	return b.String(), nil
}
