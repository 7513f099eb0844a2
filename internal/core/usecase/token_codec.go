package usecase

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const tokenPrefix = "vetra_"

// NewToken returns a fresh bearer token: the service prefix plus 28
// random bytes, URL-safe encoded.
func NewToken() (string, error) {
	buf := make([]byte, 28)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken produces the stored digest. bcrypt embeds a per-call salt,
// so two digests of the same token differ and neither can be reversed.
func HashToken(token string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(digest), nil
}

// CompareToken re-derives and compares. bcrypt's comparison runs the
// full key schedule regardless of where a mismatch occurs, so the cost
// does not reveal how much of the token matched.
func CompareToken(token, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(token)) == nil
}

// Fingerprint is the indexed, non-secret lookup key for a token. It
// only narrows the candidate set; CompareToken decides validity.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
