package auth

import (
	"testing"

	"github.com/notlevi911/vcs-for-llms/internal/config"
)

func TestJWTRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateJWT("user-123")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	sub, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
	if sub != "user-123" {
		t.Errorf("Expected subject user-123, got %q", sub)
	}
}

func TestJWTRejectsTampering(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateJWT("user-123")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	if _, err := ValidateJWT(token + "x"); err == nil {
		t.Error("Expected tampered token to fail validation")
	}

	config.AppConfig.JWTSecret = "different-secret"
	if _, err := ValidateJWT(token); err == nil {
		t.Error("Expected token signed with another secret to fail validation")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter22" {
		t.Error("Hash must not equal the plaintext password")
	}
	if !CheckPasswordHash("hunter22", hash) {
		t.Error("Expected correct password to verify")
	}
	if CheckPasswordHash("hunter23", hash) {
		t.Error("Expected wrong password to fail verification")
	}
}
