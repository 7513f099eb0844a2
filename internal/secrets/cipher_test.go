package secrets

import (
	"errors"
	"testing"
)

func TestCipherRoundTrip(t *testing.T) {
	keys, err := Load(NewEncryptionKey(), "session", "admin")
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	cipher, err := NewCipher(keys)
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}

	type payload struct {
		N int    `json:"n"`
		S string `json:"s"`
	}
	in := payload{N: 7, S: "hello"}

	blob, err := cipher.Encrypt(in)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	var out payload
	if err := cipher.Decrypt(blob, &out); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestCipherNoncesDiffer(t *testing.T) {
	keys, err := Load("", "", "")
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	cipher, err := NewCipher(keys)
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}

	a, err := cipher.Encrypt("same input")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := cipher.Encrypt("same input")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if string(a) == string(b) {
		t.Fatal("two encryptions of the same input must not produce the same blob")
	}
}

func TestCipherDetectsTampering(t *testing.T) {
	keys, err := Load("", "", "")
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	cipher, err := NewCipher(keys)
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}

	blob, err := cipher.Encrypt(map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	for _, i := range []int{0, len(blob) / 2, len(blob) - 1} {
		mutated := append([]byte(nil), blob...)
		mutated[i] ^= 0x01
		var out map[string]int
		if err := cipher.Decrypt(mutated, &out); !errors.Is(err, ErrTamperedOrCorrupt) {
			t.Fatalf("flip at %d: expected ErrTamperedOrCorrupt, got %v", i, err)
		}
	}

	var out map[string]int
	if err := cipher.Decrypt([]byte("short"), &out); !errors.Is(err, ErrTamperedOrCorrupt) {
		t.Fatalf("short blob: expected ErrTamperedOrCorrupt, got %v", err)
	}
}

func TestCipherRejectsForeignKey(t *testing.T) {
	keysA, err := Load("", "", "")
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	keysB, err := Load("", "", "")
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	cipherA, err := NewCipher(keysA)
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}
	cipherB, err := NewCipher(keysB)
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}

	blob, err := cipherA.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	var out string
	if err := cipherB.Decrypt(blob, &out); !errors.Is(err, ErrTamperedOrCorrupt) {
		t.Fatalf("expected ErrTamperedOrCorrupt, got %v", err)
	}
}

func TestLoadRejectsBadEncryptionKey(t *testing.T) {
	if _, err := Load("%%%not-base64%%%", "", ""); err == nil {
		t.Fatal("expected error for undecodable key")
	}
	if _, err := Load("c2hvcnQ", "", ""); err == nil {
		t.Fatal("expected error for short key")
	}
}
