package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

var (
	ErrInvalidIdentity   = errors.New("identity must be an email address")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrCredentialExpired = errors.New("credential expired")
	ErrQuotaExceeded     = errors.New("usage limit reached")
	ErrRateLimited       = errors.New("rate limited")
	ErrStorage           = errors.New("storage failure")
	ErrNotFound          = errors.New("not found")
)

// Credential is one issued bearer token record. The plaintext token is
// returned exactly once at issuance; only its bcrypt digest and a SHA-256
// fingerprint are ever persisted.
type Credential struct {
	ID                 string
	OwnerIdentity      string
	SecretDigest       string
	Fingerprint        string
	UsesConsumed       int
	UsesAllowed        int
	Revoked            bool
	ExpiresAt          time.Time
	CreatedAt          time.Time
	BoundNetworkOrigin string
}

func (c Credential) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c Credential) Exhausted() bool {
	return c.UsesConsumed >= c.UsesAllowed
}

func ValidateIdentity(identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrInvalidIdentity
	}
	if _, err := mail.ParseAddress(identity); err != nil {
		return ErrInvalidIdentity
	}
	return nil
}
