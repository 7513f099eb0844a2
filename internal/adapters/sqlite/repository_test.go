package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vetralabs/vetra/internal/adapters/sqlite/gormsqlite"
	"github.com/vetralabs/vetra/internal/core/domain"
	"github.com/vetralabs/vetra/migrations"
)

func openTestDB(t *testing.T) *gormsqlite.DB {
	t.Helper()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := gormsqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(ctx, writeSQLDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCredential(t *testing.T, repo *CredentialRepository, cred domain.Credential) domain.Credential {
	t.Helper()
	now := time.Now().UTC()
	if cred.ID == "" {
		cred.ID = "cred-1"
	}
	if cred.OwnerIdentity == "" {
		cred.OwnerIdentity = "user@example.com"
	}
	if cred.SecretDigest == "" {
		cred.SecretDigest = "$2a$10$digest"
	}
	if cred.Fingerprint == "" {
		cred.Fingerprint = "fp-1"
	}
	if cred.UsesAllowed == 0 {
		cred.UsesAllowed = 1000
	}
	if cred.ExpiresAt.IsZero() {
		cred.ExpiresAt = now.Add(time.Hour)
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	if err := repo.Insert(context.Background(), cred); err != nil {
		t.Fatalf("insert credential: %v", err)
	}
	return cred
}

func TestCredentialRepositoryFingerprintLookupExcludesRevoked(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(openTestDB(t))

	seedCredential(t, repo, domain.Credential{ID: "cred-1", Fingerprint: "fp-shared"})
	seedCredential(t, repo, domain.Credential{ID: "cred-2", Fingerprint: "fp-shared", Revoked: true})
	seedCredential(t, repo, domain.Credential{ID: "cred-3", Fingerprint: "fp-other"})

	creds, err := repo.FindActiveByFingerprint(ctx, "fp-shared")
	if err != nil {
		t.Fatalf("find by fingerprint: %v", err)
	}
	if len(creds) != 1 || creds[0].ID != "cred-1" {
		t.Fatalf("expected only cred-1, got %+v", creds)
	}
}

func TestCredentialRepositoryFindByIDNotFound(t *testing.T) {
	repo := NewCredentialRepository(openTestDB(t))
	if _, err := repo.FindByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialRepositoryConsumeUseStopsAtCeiling(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(openTestDB(t))
	cred := seedCredential(t, repo, domain.Credential{UsesAllowed: 2})

	for i := 0; i < 2; i++ {
		consumed, err := repo.ConsumeUse(ctx, cred.ID)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !consumed {
			t.Fatalf("consume %d should succeed", i)
		}
	}

	consumed, err := repo.ConsumeUse(ctx, cred.ID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed {
		t.Fatal("consume past the ceiling must refuse")
	}

	stored, err := repo.FindByID(ctx, cred.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.UsesConsumed != 2 {
		t.Fatalf("expected 2 consumed, got %d", stored.UsesConsumed)
	}
}

func TestCredentialRepositoryConsumeUseRefusesRevoked(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(openTestDB(t))
	cred := seedCredential(t, repo, domain.Credential{})

	if err := repo.Revoke(ctx, cred.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// Revoking twice is a no-op, not an error.
	if err := repo.Revoke(ctx, cred.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	consumed, err := repo.ConsumeUse(ctx, cred.ID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed {
		t.Fatal("revoked credential must not consume quota")
	}
}

func TestAuditRepositoryAppendAndFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(openTestDB(t))

	base := time.Now().UTC().Truncate(time.Second)
	entries := []domain.AuditEntry{
		{CredentialID: "cred-1", OwnerIdentity: "a@example.com", Endpoint: "/v1/ask", EncryptedMetadata: []byte{1}, At: base},
		{CredentialID: "cred-1", OwnerIdentity: "a@example.com", Endpoint: "/v1/ask", EncryptedMetadata: []byte{2}, At: base.Add(time.Second)},
		{CredentialID: "cred-2", OwnerIdentity: "b@example.com", Endpoint: "/v1/ask", EncryptedMetadata: []byte{3}, At: base.Add(2 * time.Second)},
	}
	for i, entry := range entries {
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := repo.List(ctx, domain.AuditFilter{CredentialID: "cred-1", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !got[0].At.After(got[1].At) {
		t.Fatal("entries must be newest first")
	}

	got, err = repo.List(ctx, domain.AuditFilter{OwnerIdentity: "b@example.com", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].CredentialID != "cred-2" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestUserRepositoryUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(openTestDB(t))

	user := domain.User{Email: "user@example.com", Name: "First", CreatedAt: time.Now().UTC()}
	if err := repo.Upsert(ctx, user); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	user.Name = "Second"
	if err := repo.Upsert(ctx, user); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
}

func TestAlertOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertOutboxRepository(openTestDB(t))

	if err := repo.Enqueue(ctx, []byte(`{"kind":"policy.violation"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repo.Enqueue(ctx, []byte(`{"kind":"credential.revoked"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	if err := repo.MarkDispatched(ctx, pending[0].ID); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}

	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339Nano)
	if err := repo.MarkFailed(ctx, pending[1].ID, 1, future, "receiver down"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// One dispatched, one deferred into the future: nothing is due.
	pending, err = repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no due alerts, got %d", len(pending))
	}

	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	if err := repo.MarkFailed(ctx, 2, 2, past, "receiver down"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, err = repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 2 {
		t.Fatalf("expected the deferred alert back, got %+v", pending)
	}

	if err := repo.MarkDead(ctx, 2, 5, "gave up"); err != nil {
		t.Fatalf("mark dead: %v", err)
	}
	pending, err = repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("dead alert must not be fetched, got %d", len(pending))
	}
}
