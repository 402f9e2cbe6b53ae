package auth

import (
	"testing"
	"time"

	"github.com/swiftel/request-handler/internal/app/domain/user"
	apperrors "github.com/swiftel/request-handler/internal/errors"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour, 0)
	u := user.User{ID: "user-1", Name: "Pat", Role: user.RoleBoardMember}

	token, err := issuer.Issue(u, false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.Name != "Pat" || claims.Role != "board_member" {
		t.Fatalf("claims = %+v, want the issued identity", claims)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Hour {
		t.Fatalf("expiry = %v, want within one hour", claims.ExpiresAt)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewIssuer("secret-a", time.Hour, 0).Issue(user.User{ID: "u"}, false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := NewIssuer("secret-b", time.Hour, 0).Parse(token); !apperrors.Is(err, apperrors.CodeInvalidToken) {
		t.Fatalf("Parse() error = %v, want invalid token", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Millisecond, 0)

	token, err := issuer.Issue(user.User{ID: "u"}, false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := issuer.Parse(token); !apperrors.Is(err, apperrors.CodeInvalidToken) {
		t.Fatalf("Parse() error = %v, want invalid token", err)
	}
}

func TestRememberExtendsExpiry(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour, 48*time.Hour)

	short, err := issuer.Issue(user.User{ID: "u"}, false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	long, err := issuer.Issue(user.User{ID: "u"}, true)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	shortClaims, err := issuer.Parse(short)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	longClaims, err := issuer.Parse(long)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !longClaims.ExpiresAt.After(shortClaims.ExpiresAt.Time) {
		t.Fatalf("remember-me expiry %v is not after the standard expiry %v", longClaims.ExpiresAt, shortClaims.ExpiresAt)
	}
}
