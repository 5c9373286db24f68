package security

import (
	"testing"
	"time"
)

const testSecret = "test_secret_key_minimum_32_chars"

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name      string
		accountID uint
		role      string
	}{
		{
			name:      "Regular account",
			accountID: 1,
			role:      "user",
		},
		{
			name:      "Admin account",
			accountID: 2,
			role:      "admin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateJWT(tt.accountID, tt.role, testSecret, time.Hour)
			if err != nil {
				t.Fatalf("GenerateJWT() error = %v", err)
			}

			if token == "" {
				t.Error("GenerateJWT() returned empty token")
			}

			claims, err := ValidateJWT(token, testSecret)
			if err != nil {
				t.Fatalf("ValidateJWT() error = %v", err)
			}

			if claims.AccountID != tt.accountID {
				t.Errorf("AccountID = %d, want %d", claims.AccountID, tt.accountID)
			}

			if claims.Role != tt.role {
				t.Errorf("Role = %q, want %q", claims.Role, tt.role)
			}
		})
	}
}

func TestValidateToken_InvalidToken(t *testing.T) {
	valid, err := GenerateJWT(1, "user", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	expired, err := GenerateJWT(1, "user", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	anonymous, err := GenerateJWT(0, "user", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{name: "Empty token", token: "", secret: testSecret},
		{name: "Malformed token", token: "not.a.token", secret: testSecret},
		{name: "Wrong secret", token: valid, secret: "another_secret_key_of_32_chars_!!"},
		{name: "Expired token", token: expired, secret: testSecret},
		{name: "No account", token: anonymous, secret: testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateJWT(tt.token, tt.secret); err == nil {
				t.Error("ValidateJWT() should fail")
			}
		})
	}
}
