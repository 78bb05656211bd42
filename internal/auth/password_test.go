package auth

import (
	"bytes"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	password := "correct-horse-battery-staple"

	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}

	hash := HashPassword(password, salt)
	if len(hash) != argonKeyLen {
		t.Errorf("hash length = %d, want %d", len(hash), argonKeyLen)
	}

	if !VerifyPassword(password, salt, hash) {
		t.Error("VerifyPassword() should return true for correct password")
	}
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	hash := HashPassword("correct-password", salt)

	if VerifyPassword("wrong-password", salt, hash) {
		t.Error("VerifyPassword() should return false for wrong password")
	}
}

func TestVerifyPassword_WrongSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}

	hash := HashPassword("password", salt1)
	if VerifyPassword("password", salt2, hash) {
		t.Error("VerifyPassword() should return false when the salt differs")
	}
}

func TestHashPassword_Deterministic(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}

	hash1 := HashPassword("same-password", salt)
	hash2 := HashPassword("same-password", salt)

	if !bytes.Equal(hash1, hash2) {
		t.Error("same password and salt should always produce the same hash")
	}
}

func TestHashPassword_EmptyPassword(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}

	hash := HashPassword("", salt)
	if len(hash) != argonKeyLen {
		t.Errorf("empty password hash length = %d, want %d", len(hash), argonKeyLen)
	}
	if !VerifyPassword("", salt, hash) {
		t.Error("empty password should verify against its own hash")
	}
	if VerifyPassword("x", salt, hash) {
		t.Error("non-empty password should not verify against empty-password hash")
	}
}

func TestGenerateSalt_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 10000; i++ {
		salt, err := GenerateSalt()
		if err != nil {
			t.Fatalf("GenerateSalt() error = %v", err)
		}
		if len(salt) != SaltLength {
			t.Fatalf("salt length = %d, want %d", len(salt), SaltLength)
		}
		key := string(salt)
		if _, dup := seen[key]; dup {
			t.Fatal("GenerateSalt() produced a duplicate salt")
		}
		seen[key] = struct{}{}
	}
}
