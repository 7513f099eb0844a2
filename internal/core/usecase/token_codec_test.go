package usecase

import (
	"strings"
	"testing"
)

func TestNewTokenShape(t *testing.T) {
	token, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if !strings.HasPrefix(token, "vetra_") {
		t.Fatalf("expected vetra_ prefix, got %s", token)
	}

	other, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if token == other {
		t.Fatal("two tokens must not collide")
	}
}

func TestHashAndCompareToken(t *testing.T) {
	token, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	digest, err := HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	if digest == token {
		t.Fatal("digest must not equal plaintext")
	}
	if !CompareToken(token, digest) {
		t.Fatal("token must match its own digest")
	}
	if CompareToken(token+"x", digest) {
		t.Fatal("altered token must not match")
	}
}

func TestFingerprintIsStable(t *testing.T) {
	if Fingerprint("vetra_abc") != Fingerprint("vetra_abc") {
		t.Fatal("fingerprint must be deterministic")
	}
	if Fingerprint("vetra_abc") == Fingerprint("vetra_abd") {
		t.Fatal("different tokens must not share a fingerprint")
	}
	if len(Fingerprint("vetra_abc")) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(Fingerprint("vetra_abc")))
	}
}
