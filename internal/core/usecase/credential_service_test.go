package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vetralabs/vetra/internal/core/domain"
)

type stubCredentialRepo struct {
	insertFn  func(ctx context.Context, cred domain.Credential) error
	findFpFn  func(ctx context.Context, fingerprint string) ([]domain.Credential, error)
	findIDFn  func(ctx context.Context, id string) (domain.Credential, error)
	consumeFn func(ctx context.Context, id string) (bool, error)
	revokeFn  func(ctx context.Context, id string) error
}

func (s *stubCredentialRepo) Insert(ctx context.Context, cred domain.Credential) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, cred)
	}
	return nil
}

func (s *stubCredentialRepo) FindActiveByFingerprint(ctx context.Context, fingerprint string) ([]domain.Credential, error) {
	if s.findFpFn != nil {
		return s.findFpFn(ctx, fingerprint)
	}
	return nil, nil
}

func (s *stubCredentialRepo) FindByID(ctx context.Context, id string) (domain.Credential, error) {
	if s.findIDFn != nil {
		return s.findIDFn(ctx, id)
	}
	return domain.Credential{}, domain.ErrNotFound
}

func (s *stubCredentialRepo) ConsumeUse(ctx context.Context, id string) (bool, error) {
	if s.consumeFn != nil {
		return s.consumeFn(ctx, id)
	}
	return true, nil
}

func (s *stubCredentialRepo) Revoke(ctx context.Context, id string) error {
	if s.revokeFn != nil {
		return s.revokeFn(ctx, id)
	}
	return nil
}

func TestCredentialServiceIssueStoresDigestNotPlaintext(t *testing.T) {
	var inserted domain.Credential
	repo := &stubCredentialRepo{insertFn: func(_ context.Context, cred domain.Credential) error {
		inserted = cred
		return nil
	}}

	svc := NewCredentialService(repo)
	token, cred, err := svc.Issue(context.Background(), "user@example.com", "203.0.113.7")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if token == "" || inserted.SecretDigest == token {
		t.Fatal("plaintext token must not be persisted")
	}
	if !CompareToken(token, inserted.SecretDigest) {
		t.Fatal("stored digest must match the issued token")
	}
	if inserted.Fingerprint != Fingerprint(token) {
		t.Fatal("stored fingerprint must match the issued token")
	}
	if cred.UsesAllowed != DefaultUsesAllowed {
		t.Fatalf("expected %d uses, got %d", DefaultUsesAllowed, cred.UsesAllowed)
	}
	if cred.BoundNetworkOrigin != "203.0.113.7" {
		t.Fatalf("unexpected bound origin: %s", cred.BoundNetworkOrigin)
	}
	wantExpiry := cred.CreatedAt.Add(DefaultValidityWindow)
	if !cred.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %s, got %s", wantExpiry, cred.ExpiresAt)
	}
}

func TestCredentialServiceIssueRejectsBadIdentity(t *testing.T) {
	svc := NewCredentialService(&stubCredentialRepo{})
	for _, identity := range []string{"", "not-an-email", "nope@"} {
		if _, _, err := svc.Issue(context.Background(), identity, ""); !errors.Is(err, domain.ErrInvalidIdentity) {
			t.Fatalf("identity %q: expected ErrInvalidIdentity, got %v", identity, err)
		}
	}
}

func issuedCredential(t *testing.T) (string, domain.Credential) {
	t.Helper()
	token, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	digest, err := HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	return token, domain.Credential{
		ID:            "cred-1",
		OwnerIdentity: "user@example.com",
		SecretDigest:  digest,
		Fingerprint:   Fingerprint(token),
		UsesAllowed:   DefaultUsesAllowed,
		ExpiresAt:     time.Now().UTC().Add(time.Hour),
		CreatedAt:     time.Now().UTC(),
	}
}

func TestCredentialServiceVerifyConsumesOneUse(t *testing.T) {
	token, cred := issuedCredential(t)
	consumed := 0
	repo := &stubCredentialRepo{
		findFpFn: func(_ context.Context, fingerprint string) ([]domain.Credential, error) {
			if fingerprint != cred.Fingerprint {
				t.Fatalf("unexpected fingerprint: %s", fingerprint)
			}
			return []domain.Credential{cred}, nil
		},
		consumeFn: func(_ context.Context, id string) (bool, error) {
			if id != cred.ID {
				t.Fatalf("unexpected id: %s", id)
			}
			consumed++
			return true, nil
		},
	}

	svc := NewCredentialService(repo)
	got, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if consumed != 1 {
		t.Fatalf("expected 1 consume call, got %d", consumed)
	}
	if got.UsesConsumed != cred.UsesConsumed+1 {
		t.Fatalf("expected incremented uses, got %d", got.UsesConsumed)
	}
}

func TestCredentialServiceVerifyRejectsUnknownToken(t *testing.T) {
	_, cred := issuedCredential(t)
	repo := &stubCredentialRepo{
		findFpFn: func(context.Context, string) ([]domain.Credential, error) {
			return []domain.Credential{cred}, nil
		},
	}

	svc := NewCredentialService(repo)
	other, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if _, err := svc.Verify(context.Background(), other); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if _, err := svc.Verify(context.Background(), ""); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("empty token: expected ErrInvalidCredential, got %v", err)
	}
}

func TestCredentialServiceVerifyRejectsExpired(t *testing.T) {
	token, cred := issuedCredential(t)
	repo := &stubCredentialRepo{
		findFpFn: func(context.Context, string) ([]domain.Credential, error) {
			return []domain.Credential{cred}, nil
		},
		consumeFn: func(context.Context, string) (bool, error) {
			t.Fatal("expired credential must not consume quota")
			return false, nil
		},
	}

	svc := NewCredentialService(repo)
	svc.now = func() time.Time { return cred.ExpiresAt.Add(time.Second) }
	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, domain.ErrCredentialExpired) {
		t.Fatalf("expected ErrCredentialExpired, got %v", err)
	}
}

func TestCredentialServiceVerifyRejectsSpentQuota(t *testing.T) {
	token, cred := issuedCredential(t)
	repo := &stubCredentialRepo{
		findFpFn: func(context.Context, string) ([]domain.Credential, error) {
			return []domain.Credential{cred}, nil
		},
		consumeFn: func(context.Context, string) (bool, error) {
			return false, nil
		},
	}

	svc := NewCredentialService(repo)
	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

// countingCredentialRepo mimics the store's conditional update so the
// concurrency contract can be exercised without a database.
type countingCredentialRepo struct {
	mu   sync.Mutex
	cred domain.Credential
}

func (r *countingCredentialRepo) Insert(context.Context, domain.Credential) error { return nil }

func (r *countingCredentialRepo) FindActiveByFingerprint(context.Context, string) ([]domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []domain.Credential{r.cred}, nil
}

func (r *countingCredentialRepo) FindByID(context.Context, string) (domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cred, nil
}

func (r *countingCredentialRepo) ConsumeUse(context.Context, string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cred.Revoked || r.cred.UsesConsumed >= r.cred.UsesAllowed {
		return false, nil
	}
	r.cred.UsesConsumed++
	return true, nil
}

func (r *countingCredentialRepo) Revoke(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cred.Revoked = true
	return nil
}

func TestCredentialServiceVerifyConcurrentNeverOvershoots(t *testing.T) {
	token, cred := issuedCredential(t)
	cred.UsesAllowed = 5
	repo := &countingCredentialRepo{cred: cred}
	svc := NewCredentialService(repo)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Verify(context.Background(), token)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successes, got %d", succeeded)
	}
	if repo.cred.UsesConsumed != 5 {
		t.Fatalf("expected 5 consumed, got %d", repo.cred.UsesConsumed)
	}
}
