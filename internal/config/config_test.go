package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Addr != ":8787" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.StoreDriver != "postgres" {
		t.Fatalf("unexpected store driver %q", cfg.StoreDriver)
	}
	if cfg.AllowReopen {
		t.Fatal("reopen should be disabled by default")
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", " Memory ")
	t.Setenv("INQUIRY_ADMIN_EMAILS", "Ops@Example.com, support@example.com")
	t.Setenv("INQUIRY_ALLOW_REOPEN", "true")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.StoreDriver != "memory" {
		t.Fatalf("unexpected store driver %q", cfg.StoreDriver)
	}
	if !cfg.AllowReopen {
		t.Fatal("expected reopen to be enabled")
	}
	if !cfg.IsAdminEmail("ops@example.com") || !cfg.IsAdminEmail("SUPPORT@example.com ") {
		t.Fatalf("admin emails not normalized: %v", cfg.AdminEmails)
	}
	if cfg.IsAdminEmail("") || cfg.IsAdminEmail("user@example.com") {
		t.Fatal("unexpected admin match")
	}
}

func TestParseRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "firestore")
	if _, err := Parse(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
