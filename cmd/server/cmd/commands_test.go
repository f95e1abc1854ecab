package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Ycseeasy/explore-with-me/internal/auth"
	"github.com/Ycseeasy/explore-with-me/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Storage.Driver = config.StorageMemory
	cfg.Auth.JWTSecret = testSecret
	return cfg
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	const subject = "01HZX3Q7K2M8N4P6R9S0T1V2W3"
	out, err := run(t, "token", "--subject", strings.ToLower(subject))
	if err != nil {
		t.Fatalf("token command failed: %v", err)
	}

	manager := auth.NewJWTManager(testSecret, time.Hour, config.Defaults().Auth.Issuer)
	claims, err := manager.Validate(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Subject != subject {
		t.Errorf("expected subject %s, got %s", subject, claims.Subject)
	}
	if auth.IsAdmin(claims.Role) {
		t.Errorf("expected a user token, got role %q", claims.Role)
	}
}

func TestTokenCommandAdminGeneratesSubject(t *testing.T) {
	out, err := run(t, "token", "--role", "admin")
	if err != nil {
		t.Fatalf("token command failed: %v", err)
	}
	manager := auth.NewJWTManager(testSecret, time.Hour, config.Defaults().Auth.Issuer)
	claims, err := manager.Validate(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if !auth.IsAdmin(claims.Role) || claims.Subject == "" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestTokenCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"user without subject", []string{"token"}, "--subject is required"},
		{"bad subject", []string{"token", "--subject", "alice"}, "--subject"},
		{"unknown role", []string{"token", "--role", "root"}, "unknown role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestReconcileCommandOnEmptyStore(t *testing.T) {
	out, err := run(t, "reconcile")
	if err != nil {
		t.Fatalf("reconcile command failed: %v", err)
	}
	if !strings.Contains(out, "checked 0, corrected 0, skipped 0") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestReconcileCommandRejectsBadEvent(t *testing.T) {
	_, err := run(t, "reconcile", "--event", "42")
	if err == nil || !strings.Contains(err.Error(), "--event") {
		t.Fatalf("expected --event error, got %v", err)
	}
}
