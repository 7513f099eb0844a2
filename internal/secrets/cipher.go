package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrTamperedOrCorrupt is returned when a ciphertext fails
// authentication: either the blob was modified or it was produced under
// a different key.
var ErrTamperedOrCorrupt = errors.New("ciphertext tampered or corrupt")

// Cipher seals small metadata structures with XChaCha20-Poly1305. Each
// blob is self-contained: a random nonce prefix followed by ciphertext
// and tag, so any blob can be decrypted independently.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(keys *Keys) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(keys.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Cipher) Decrypt(blob []byte, v any) error {
	if len(blob) < c.aead.NonceSize() {
		return ErrTamperedOrCorrupt
	}
	nonce, ciphertext := blob[:c.aead.NonceSize()], blob[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrTamperedOrCorrupt
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	return nil
}
