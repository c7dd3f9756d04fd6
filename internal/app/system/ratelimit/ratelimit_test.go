package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLimiter_AllowAndWindowReset(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(2, time.Minute, c.now)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if l.Remaining("a") != 0 {
		t.Errorf("Remaining: got %d, want 0", l.Remaining("a"))
	}
	if got := l.RetryAfter("a"); got != time.Minute {
		t.Errorf("RetryAfter: got %v, want 1m", got)
	}
	if !l.Allow("b") {
		t.Error("keys are independent")
	}

	c.t = c.t.Add(61 * time.Second)
	if !l.Allow("a") {
		t.Error("window should have reset")
	}
	if l.RetryAfter("a") != 0 {
		t.Error("not limited after reset")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := newLimiter(1, time.Hour, time.Now)
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("expected limit")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Error("expected allow after Reset")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Errorf("RemoteAddr: got %q", got)
	}

	r.Header.Set("X-Real-IP", "10.0.0.2")
	if got := ClientIP(r); got != "10.0.0.2" {
		t.Errorf("X-Real-IP: got %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.3")
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Errorf("X-Forwarded-For: got %q", got)
	}
}

func TestGuard_Login(t *testing.T) {
	g := NewGuardWith(
		newLimiter(100, time.Minute, time.Now),
		newLimiter(2, time.Minute, time.Now),
		newLimiter(1, time.Minute, time.Now),
	)
	r := httptest.NewRequest("POST", "/login", nil)

	for i := 0; i < 2; i++ {
		if ok, _ := g.CheckLogin(r, "Ana@Example.com"); !ok {
			t.Fatalf("attempt %d should pass", i+1)
		}
	}
	if ok, msg := g.CheckLogin(r, "ana@example.com "); ok || msg == "" {
		t.Error("email key should be case-insensitive and limited")
	}

	g.LoginSucceeded("ANA@example.com")
	if ok, _ := g.CheckLogin(r, "ana@example.com"); !ok {
		t.Error("success should clear the email counter")
	}
}

func TestGuard_CodeRequests(t *testing.T) {
	g := NewGuardWith(
		newLimiter(1, time.Minute, time.Now),
		newLimiter(1, time.Minute, time.Now),
		newLimiter(1, time.Minute, time.Now),
	)
	r := httptest.NewRequest("POST", "/accounts/resend-verification", nil)
	if ok, _ := g.CheckCodeRequest(r); !ok {
		t.Fatal("first code request should pass")
	}
	if ok, _ := g.CheckCodeRequest(r); ok {
		t.Error("second code request should be limited")
	}
}
