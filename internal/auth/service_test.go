package auth

import (
	"testing"
	"time"

	"mathemelody/internal/config"

	"github.com/sirupsen/logrus"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests

	svc, err := NewService(&config.AuthConfig{JWTSecret: "test-secret"}, ttl, logger)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return svc
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := newTestService(t, time.Hour)

	hash, err := svc.HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("HashPassword() returned the plaintext")
	}

	if !svc.CheckPassword(hash, "correct horse battery") {
		t.Error("CheckPassword() rejected the right password")
	}
	if svc.CheckPassword(hash, "wrong password") {
		t.Error("CheckPassword() accepted the wrong password")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestService(t, time.Hour)

	token, err := svc.IssueToken(42)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	userID, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error: %v", err)
	}
	if userID != 42 {
		t.Errorf("ParseToken() = %d, want 42", userID)
	}
}

func TestParseTokenRejections(t *testing.T) {
	svc := newTestService(t, time.Hour)
	expired := newTestService(t, -time.Minute)

	expiredToken, err := expired.IssueToken(7)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	otherLogger := logrus.New()
	otherLogger.SetLevel(logrus.ErrorLevel)
	other, err := NewService(&config.AuthConfig{JWTSecret: "a different secret"}, time.Hour, otherLogger)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	foreignToken, err := other.IssueToken(7)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not.a.token"},
		{name: "empty", token: ""},
		{name: "expired", token: expiredToken},
		{name: "wrong secret", token: foreignToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ParseToken(tt.token); err != ErrInvalidToken {
				t.Errorf("ParseToken(%s) error = %v, want ErrInvalidToken", tt.name, err)
			}
		})
	}
}
