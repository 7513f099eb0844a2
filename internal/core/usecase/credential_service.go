package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vetralabs/vetra/internal/core/domain"
	"github.com/vetralabs/vetra/internal/core/ports"
)

const (
	DefaultUsesAllowed    = 1000
	DefaultValidityWindow = 30 * 24 * time.Hour
)

// CredentialService owns the credential lifecycle: issuance, token
// verification with quota accounting, and revocation.
type CredentialService struct {
	repo        ports.CredentialRepository
	usesAllowed int
	validity    time.Duration
	now         func() time.Time
}

func NewCredentialService(repo ports.CredentialRepository) *CredentialService {
	return &CredentialService{
		repo:        repo,
		usesAllowed: DefaultUsesAllowed,
		validity:    DefaultValidityWindow,
		now:         time.Now,
	}
}

// Issue creates a credential bound to ownerIdentity and returns the
// plaintext token. This is the only moment the plaintext exists; the
// store keeps a bcrypt digest and a fingerprint.
func (s *CredentialService) Issue(ctx context.Context, ownerIdentity, boundOrigin string) (string, domain.Credential, error) {
	if err := domain.ValidateIdentity(ownerIdentity); err != nil {
		return "", domain.Credential{}, err
	}

	token, err := NewToken()
	if err != nil {
		return "", domain.Credential{}, err
	}
	digest, err := HashToken(token)
	if err != nil {
		return "", domain.Credential{}, err
	}

	now := s.now().UTC()
	cred := domain.Credential{
		ID:                 uuid.New().String(),
		OwnerIdentity:      ownerIdentity,
		SecretDigest:       digest,
		Fingerprint:        Fingerprint(token),
		UsesConsumed:       0,
		UsesAllowed:        s.usesAllowed,
		Revoked:            false,
		ExpiresAt:          now.Add(s.validity),
		CreatedAt:          now,
		BoundNetworkOrigin: boundOrigin,
	}

	if err := s.repo.Insert(ctx, cred); err != nil {
		return "", domain.Credential{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return token, cred, nil
}

// Verify resolves a plaintext token to its credential and consumes one
// unit of quota. The fingerprint lookup only narrows the candidate set;
// the bcrypt comparison decides validity. The quota unit is taken with
// a single conditional update in the store, so concurrent verifications
// of the same credential cannot jointly pass the ceiling.
func (s *CredentialService) Verify(ctx context.Context, token string) (domain.Credential, error) {
	if token == "" {
		return domain.Credential{}, domain.ErrInvalidCredential
	}

	candidates, err := s.repo.FindActiveByFingerprint(ctx, Fingerprint(token))
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	var matched *domain.Credential
	for i := range candidates {
		if CompareToken(token, candidates[i].SecretDigest) {
			matched = &candidates[i]
			break
		}
	}
	if matched == nil {
		return domain.Credential{}, domain.ErrInvalidCredential
	}

	if matched.Expired(s.now().UTC()) {
		return domain.Credential{}, domain.ErrCredentialExpired
	}

	consumed, err := s.repo.ConsumeUse(ctx, matched.ID)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if !consumed {
		// The conditional update refused: either the quota is spent or
		// the credential was revoked between lookup and update.
		return domain.Credential{}, domain.ErrQuotaExceeded
	}

	matched.UsesConsumed++
	return *matched, nil
}

// Revoke permanently blocks a credential. Revoking an already revoked
// credential is a no-op.
func (s *CredentialService) Revoke(ctx context.Context, credentialID string) error {
	if err := s.repo.Revoke(ctx, credentialID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *CredentialService) Get(ctx context.Context, credentialID string) (domain.Credential, error) {
	cred, err := s.repo.FindByID(ctx, credentialID)
	if err != nil {
		return domain.Credential{}, err
	}
	return cred, nil
}
