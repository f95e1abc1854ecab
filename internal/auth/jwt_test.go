package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "issuer")
	jwtToken, err := manager.Generate("user-1", RoleAdmin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := manager.Validate(jwtToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != string(RoleAdmin) {
		t.Fatalf("unexpected claims: %#v", claims)
	}
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "issuer")
	if _, err := manager.Generate("", RoleAdmin); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestJWTValidateMissing(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "issuer")
	if _, err := manager.Validate(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestJWTValidateRejectsForeignTokens(t *testing.T) {
	issuer := NewJWTManager("secret", time.Hour, "issuer")
	token, err := issuer.Generate("user-1", RoleUser)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := NewJWTManager("other-secret", time.Hour, "issuer").Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}
	if _, err := NewJWTManager("secret", time.Hour, "someone-else").Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong issuer, got %v", err)
	}
}

func TestJWTValidateExpired(t *testing.T) {
	manager := NewJWTManager("secret", time.Minute, "issuer")
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := manager.Generate("user-1", RoleUser)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	manager.now = time.Now
	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}
}

func TestTokenFromHeader(t *testing.T) {
	if _, err := TokenFromHeader("nope"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if token, err := TokenFromHeader("Bearer token"); err != nil || token != "token" {
		t.Fatalf("expected token, got %s err %v", token, err)
	}
}

func TestClaimsCanActAs(t *testing.T) {
	user := &Claims{Role: string(RoleUser)}
	user.Subject = "u1"
	admin := &Claims{Role: string(RoleAdmin)}
	admin.Subject = "a1"

	if !user.CanActAs("u1") || user.CanActAs("u2") {
		t.Fatal("user should act only as themselves")
	}
	if !admin.CanActAs("u2") {
		t.Fatal("admin should act as anyone")
	}
	var missing *Claims
	if missing.CanActAs("u1") {
		t.Fatal("nil claims must not act as anyone")
	}
	if NormalizeRole("ROOT") != RoleUser {
		t.Fatal("unknown roles map to user")
	}
}
