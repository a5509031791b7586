package vault

import (
	"errors"
	"testing"
)

func mustBox(t *testing.T, secret string) *Box {
	t.Helper()
	key, err := DeriveKey([]byte(secret), []byte("c0ffee00"))
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	box, err := NewBox(key)
	if err != nil {
		t.Fatalf("NewBox failed: %v", err)
	}
	return box
}

func TestSealOpen(t *testing.T) {
	box := mustBox(t, "device-secret")
	plaintext := "hunter2"

	sealed, err := box.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if sealed == plaintext {
		t.Fatal("Sealed value should not equal plaintext")
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened != plaintext {
		t.Errorf("Expected %s, got %s", plaintext, opened)
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	a, _ := DeriveKey([]byte("s"), []byte("salt"))
	b, _ := DeriveKey([]byte("s"), []byte("salt"))
	c, _ := DeriveKey([]byte("s"), []byte("other"))

	if string(a) != string(b) {
		t.Error("Same inputs should derive the same key")
	}
	if string(a) == string(c) {
		t.Error("Different salts should derive different keys")
	}
	if len(a) != KeySize {
		t.Errorf("Expected %d byte key, got %d", KeySize, len(a))
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	sealed, err := mustBox(t, "one").Seal("secret")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	_, err = mustBox(t, "two").Open(sealed)
	if !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("Expected ErrOpenFailed, got %v", err)
	}
}

func TestInvalidKeySize(t *testing.T) {
	if _, err := NewBox([]byte("shortkey")); err == nil {
		t.Fatal("NewBox should fail with invalid key size")
	}
}

func TestOpenMalformed(t *testing.T) {
	box := mustBox(t, "device-secret")

	if _, err := box.Open("not-hex"); err == nil {
		t.Fatal("Open should fail with malformed hex")
	}
	if _, err := box.Open("abcdef"); !errors.Is(err, ErrShortCiphertext) {
		t.Fatalf("Expected ErrShortCiphertext, got %v", err)
	}
}
