package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"go.uber.org/zap"
)

// CodeRecorder captures verification and reset codes instead of mailing
// them, so flow tests can type the code back in.
type CodeRecorder struct {
	mu     sync.Mutex
	codes  map[string]string
	resets map[string]string
}

func NewCodeRecorder() *CodeRecorder {
	return &CodeRecorder{codes: map[string]string{}, resets: map[string]string{}}
}

func (c *CodeRecorder) VerificationCode(to, code, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[to] = code
}

func (c *CodeRecorder) PasswordResetCode(to, code, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets[to] = code
}

// Code returns the last verification code sent to addr.
func (c *CodeRecorder) Code(addr string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[addr]
}

// ResetCode returns the last password-reset code sent to addr.
func (c *CodeRecorder) ResetCode(addr string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets[addr]
}

// TestSessionName is the cookie name NewSessionManager uses.
const TestSessionName = "test-session"

// NewSessionManager returns a dev-mode session manager for handler tests.
func NewSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-0123456789", TestSessionName, "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return sm
}
