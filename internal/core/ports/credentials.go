package ports

import (
	"context"

	"github.com/vetralabs/vetra/internal/core/domain"
)

type CredentialRepository interface {
	Insert(ctx context.Context, cred domain.Credential) error
	// FindActiveByFingerprint returns non-revoked credentials whose
	// fingerprint matches. The caller decides validity with a full
	// digest comparison; the fingerprint only narrows the scan.
	FindActiveByFingerprint(ctx context.Context, fingerprint string) ([]domain.Credential, error)
	FindByID(ctx context.Context, id string) (domain.Credential, error)
	// ConsumeUse increments uses_consumed in a single conditional
	// update and reports whether a unit of quota was taken. It must
	// never push uses_consumed past uses_allowed.
	ConsumeUse(ctx context.Context, id string) (bool, error)
	Revoke(ctx context.Context, id string) error
}
