package config

import (
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("PORTAL_PORT", "70000")
	if _, err := Port("PORTAL_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("PORTAL_PORT", "")
	p, err := Port("PORTAL_PORT", "8080")
	if err != nil || p != "8080" {
		t.Fatalf("expected fallback 8080, got %q (%v)", p, err)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("REFRESH", "90")
	if got := Duration("REFRESH", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	t.Setenv("REFRESH", "5m")
	if got := Duration("REFRESH", time.Minute); got != 5*time.Minute {
		t.Fatalf("expected 5m, got %s", got)
	}
	t.Setenv("REFRESH", "soon")
	if got := Duration("REFRESH", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestIntBoolList(t *testing.T) {
	t.Setenv("LIMIT", "-3")
	if got := Int("LIMIT", 60); got != 60 {
		t.Fatalf("expected fallback for negative int, got %d", got)
	}
	t.Setenv("FAIL_OPEN", "yes")
	if !Bool("FAIL_OPEN", false) {
		t.Fatal("expected yes to be truthy")
	}
	t.Setenv("ORIGINS", " http://a.test, ,http://b.test ")
	got := List("ORIGINS", "")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("unexpected list: %#v", got)
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	if _, err := RequiredString("BACKEND_URL"); err == nil {
		t.Fatal("expected error for missing BACKEND_URL")
	}
}
