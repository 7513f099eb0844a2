package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vetralabs/vetra/internal/core/domain"
	"github.com/vetralabs/vetra/internal/core/ports"
	"github.com/vetralabs/vetra/internal/secrets"
)

const auditRetryBackoff = 100 * time.Millisecond

// AuditService writes the encrypted audit trail. Writes are synchronous
// and strict: the trail is a compliance record, so a failed append (after
// one retry) fails the request that triggered it.
type AuditService struct {
	repo   ports.AuditLogRepository
	cipher *secrets.Cipher
	now    func() time.Time
}

func NewAuditService(repo ports.AuditLogRepository, cipher *secrets.Cipher) *AuditService {
	return &AuditService{repo: repo, cipher: cipher, now: time.Now}
}

// Record encrypts metadata and appends one entry. Transient store
// failures are retried once after a short backoff.
func (s *AuditService) Record(ctx context.Context, credentialID, ownerIdentity, endpoint string, metadata domain.AuditMetadata) error {
	blob, err := s.cipher.Encrypt(metadata)
	if err != nil {
		return fmt.Errorf("encrypt audit metadata: %w", err)
	}

	entry := domain.AuditEntry{
		CredentialID:      credentialID,
		OwnerIdentity:     ownerIdentity,
		Endpoint:          endpoint,
		EncryptedMetadata: blob,
		At:                s.now().UTC(),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		time.Sleep(auditRetryBackoff)
		if err = s.repo.Append(ctx, entry); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
	}
	return nil
}

// DecryptedEntry pairs an entry's plaintext columns with its decrypted
// metadata for the admin surface.
type DecryptedEntry struct {
	CredentialID  string
	OwnerIdentity string
	Endpoint      string
	Metadata      domain.AuditMetadata
	At            time.Time
}

func (s *AuditService) List(ctx context.Context, filter domain.AuditFilter) ([]DecryptedEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	out := make([]DecryptedEntry, 0, len(entries))
	for _, entry := range entries {
		var meta domain.AuditMetadata
		if err := s.cipher.Decrypt(entry.EncryptedMetadata, &meta); err != nil {
			return nil, fmt.Errorf("decrypt audit entry %d: %w", entry.ID, err)
		}
		out = append(out, DecryptedEntry{
			CredentialID:  entry.CredentialID,
			OwnerIdentity: entry.OwnerIdentity,
			Endpoint:      entry.Endpoint,
			Metadata:      meta,
			At:            entry.At,
		})
	}
	return out, nil
}
