package ratelimit

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/streamforge/uploadengine/uploaderr"
)

func TestAllowAdmitsUpToCapacity(t *testing.T) {
	l := New(Config{MaxRequests: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		if err := l.Allow("caller-a"); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	err := l.Allow("caller-a")
	var uerr *uploaderr.Error
	if !errors.As(err, &uerr) || uerr.Code != uploaderr.CodeRateLimitExceeded {
		t.Fatalf("expected RateLimitExceeded, got %v", err)
	}
	if uerr.RetryAfter <= 0 {
		t.Fatalf("expected positive RetryAfter, got %v", uerr.RetryAfter)
	}
}

func TestAllowIsolatesKeys(t *testing.T) {
	l := New(Config{MaxRequests: 1, Window: time.Minute})

	if err := l.Allow("a"); err != nil {
		t.Fatalf("a: unexpected error: %v", err)
	}
	if err := l.Allow("b"); err != nil {
		t.Fatalf("b: unexpected error: %v", err)
	}
	if err := l.Allow("a"); err == nil {
		t.Fatal("expected a's second request to be rejected")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	l := New(Config{MaxRequests: 1, Window: 10 * time.Millisecond})

	if err := l.Allow("caller"); err != nil {
		t.Fatalf("first request: unexpected error: %v", err)
	}
	if err := l.Allow("caller"); err == nil {
		t.Fatal("expected second immediate request to be rejected")
	}

	time.Sleep(20 * time.Millisecond)

	if err := l.Allow("caller"); err != nil {
		t.Fatalf("after refill: unexpected error: %v", err)
	}
}

func TestDefaultKeyFuncPrefersForwardedFor(t *testing.T) {
	r, _ := http.NewRequest(http.MethodPost, "/upload", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	if got := DefaultKeyFunc(r); got != "203.0.113.5" {
		t.Fatalf("DefaultKeyFunc = %q, want %q", got, "203.0.113.5")
	}
}

func TestDefaultKeyFuncFallsBackToRemoteAddr(t *testing.T) {
	r, _ := http.NewRequest(http.MethodPost, "/upload", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	if got := DefaultKeyFunc(r); got != "10.0.0.1:1234" {
		t.Fatalf("DefaultKeyFunc = %q, want %q", got, "10.0.0.1:1234")
	}
}

func TestAllowRequestUsesKeyFunc(t *testing.T) {
	l := New(Config{
		MaxRequests: 1,
		Window:      time.Minute,
		KeyFunc:     func(r *http.Request) string { return r.Header.Get("X-API-Key") },
	})

	r, _ := http.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("X-API-Key", "tenant-1")

	if err := l.AllowRequest(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.AllowRequest(r); err == nil {
		t.Fatal("expected second request for same key to be rejected")
	}

	r2, _ := http.NewRequest(http.MethodPost, "/upload", nil)
	r2.Header.Set("X-API-Key", "tenant-2")
	if err := l.AllowRequest(r2); err != nil {
		t.Fatalf("unexpected error for different key: %v", err)
	}
}
