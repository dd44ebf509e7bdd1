package auth

import (
	"testing"
	"time"

	"github.com/spec-kit/policy-service/internal/domain"
)

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager("unit-test-secret", 60)

	t.Run("round trip", func(t *testing.T) {
		token, exp, err := tm.GenerateToken("agent-123", domain.SubjectTypeAgent)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !exp.After(time.Now()) {
			t.Fatalf("expiry not in the future: %v", exp)
		}

		claims, err := tm.ParseToken(token)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if claims.SubjectID != "agent-123" {
			t.Fatalf("expected subject id agent-123, got %s", claims.SubjectID)
		}
		if claims.Subject != domain.SubjectTypeAgent {
			t.Fatalf("expected agent subject, got %s", claims.Subject)
		}
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		other := NewTokenManager("different-secret", 60)
		token, _, err := other.GenerateToken("agent-123", domain.SubjectTypeAgent)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if _, err := tm.ParseToken(token); err == nil {
			t.Fatalf("expected parse to fail")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := tm.ParseToken("not-a-jwt"); err == nil {
			t.Fatalf("expected parse to fail")
		}
	})
}
