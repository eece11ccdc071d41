package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "unit-test-signing-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	user := &User{ID: "usr-1a2b3c4d", Email: "lamp@example.com"}

	raw, err := GenerateAccessToken(user, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := ParseToken(raw, testSecret)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.Subject != user.ID {
		t.Errorf("subject = %q, want %q", claims.Subject, user.ID)
	}
	if claims.Email != user.Email {
		t.Errorf("email = %q, want %q", claims.Email, user.Email)
	}
	if claims.ID == "" {
		t.Error("token has no JTI")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	user := &User{ID: "usr-1a2b3c4d", Email: "lamp@example.com"}
	raw, err := GenerateAccessToken(user, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := ParseToken(raw, "a-different-secret"); err == nil {
		t.Error("token signed with another secret parsed")
	}
}

func TestParseTokenExpired(t *testing.T) {
	user := &User{ID: "usr-1a2b3c4d", Email: "lamp@example.com"}
	raw, err := GenerateAccessToken(user, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := ParseToken(raw, testSecret); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("got %v, want ErrTokenExpired", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	for _, raw := range []string{"", "not.a.jwt", "aGVsbG8="} {
		if _, err := ParseToken(raw, testSecret); err == nil {
			t.Errorf("ParseToken(%q) succeeded", raw)
		}
	}
}

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("GenerateOpaqueToken failed: %v", err)
	}
	b, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("GenerateOpaqueToken failed: %v", err)
	}

	if len(a) != 64 {
		t.Errorf("token length = %d, want 64 hex characters", len(a))
	}
	if a == b {
		t.Error("two opaque tokens are identical")
	}
}
