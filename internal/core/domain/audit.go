package domain

import "time"

// AuditEntry is one append-only record of an authorized request. The
// indexed columns stay plaintext; the metadata blob is authenticated
// ciphertext and is unreadable without the process encryption key.
type AuditEntry struct {
	ID                uint64
	CredentialID      string
	OwnerIdentity     string
	Endpoint          string
	EncryptedMetadata []byte
	At                time.Time
}

// AuditMetadata carries the request-shape details that get encrypted
// into an entry.
type AuditMetadata struct {
	PromptLength  int    `json:"prompt_len"`
	NetworkOrigin string `json:"origin,omitempty"`
}

type AuditFilter struct {
	CredentialID  string
	OwnerIdentity string
	Limit         int
}
