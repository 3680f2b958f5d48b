package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_ProducesVerifiableHash(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pass", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "Str0ng!Pass" {
		t.Fatal("hash must not equal the plaintext password")
	}

	if !CheckPasswordHash("Str0ng!Pass", hash) {
		t.Error("expected hash to verify against the original password")
	}
	if CheckPasswordHash("Wr0ng!Pass", hash) {
		t.Error("expected hash not to verify against a different password")
	}
}

func TestCheckPasswordHash_InvalidHash_ReturnsFalse(t *testing.T) {
	if CheckPasswordHash("anything", "not-a-bcrypt-hash") {
		t.Error("expected false for a malformed hash")
	}
}
