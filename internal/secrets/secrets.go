// Package secrets holds the process-wide key material: the symmetric
// encryption key for audit metadata, the session-cookie signing secret,
// and the admin token signing secret. Keys are constructed once at
// startup and passed explicitly to the components that need them; there
// is no ambient global state, and nothing here is ever logged.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"

	"golang.org/x/crypto/chacha20poly1305"
)

type Keys struct {
	encryptionKey []byte
	sessionSecret []byte
	adminSecret   []byte
}

// Load builds Keys from the given values. The encryption key must be a
// base64url-encoded 32-byte key; session and admin secrets are opaque
// strings. Any empty value is replaced with fresh random material and a
// warning, which keeps single-process deployments working but means
// sessions, admin tokens and audit blobs do not survive a restart.
func Load(encodedEncryptionKey, sessionSecret, adminSecret string) (*Keys, error) {
	k := &Keys{}

	if encodedEncryptionKey == "" {
		k.encryptionKey = randomBytes(chacha20poly1305.KeySize)
		log.Printf("warning: no encryption key configured, generated an ephemeral one")
	} else {
		decoded, err := base64.RawURLEncoding.DecodeString(encodedEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decode encryption key: %w", err)
		}
		if len(decoded) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(decoded))
		}
		k.encryptionKey = decoded
	}

	if sessionSecret == "" {
		k.sessionSecret = randomBytes(32)
		log.Printf("warning: no session secret configured, generated an ephemeral one")
	} else {
		k.sessionSecret = []byte(sessionSecret)
	}

	if adminSecret == "" {
		k.adminSecret = randomBytes(32)
		log.Printf("warning: no admin secret configured, generated an ephemeral one")
	} else {
		k.adminSecret = []byte(adminSecret)
	}

	return k, nil
}

// NewEncryptionKey returns a freshly generated key in the encoding Load
// accepts, for operators provisioning a deployment.
func NewEncryptionKey() string {
	return base64.RawURLEncoding.EncodeToString(randomBytes(chacha20poly1305.KeySize))
}

func (k *Keys) SessionSecret() []byte { return k.sessionSecret }
func (k *Keys) AdminSecret() []byte   { return k.adminSecret }

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read system entropy: %v", err))
	}
	return buf
}
