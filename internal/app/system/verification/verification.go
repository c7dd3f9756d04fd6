// Package verification issues and checks the 6-digit email codes used by
// registration, login and password reset.
//
// Evaluate mutates the Profile it is given; callers persist the result with
// accountstore.Store.SaveVerification before responding, so attempt counts
// and locks survive even when the response reports a failure.
package verification

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/dalemusser/scholarhub/internal/domain/models"
)

const (
	CodeTTL       = 15 * time.Minute
	MaxAttempts   = 10
	LockDuration  = 24 * time.Hour
	ResetCooldown = 24 * time.Hour

	codeMin = 100000
	codeMax = 999999
)

// Result classifies a verification attempt.
type Result int

const (
	Verified Result = iota
	Invalid
	Expired
	Locked
	NoPending
)

func (r Result) String() string {
	switch r {
	case Verified:
		return "verified"
	case Invalid:
		return "invalid"
	case Expired:
		return "expired"
	case Locked:
		return "locked"
	case NoPending:
		return "no_pending"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Outcome is what Evaluate reports. Remaining is set for Invalid and
// Expired; LockedFor is set for Locked.
type Outcome struct {
	Result    Result
	Remaining int
	LockedFor time.Duration
}

// OK reports whether the code was accepted.
func (o Outcome) OK() bool { return o.Result == Verified }

// Message is the user-facing text for the outcome.
func (o Outcome) Message() string {
	switch o.Result {
	case Verified:
		return "Email verified."
	case Locked:
		return fmt.Sprintf("Too many verification attempts. Try again in %s.", HumanizeWait(o.LockedFor))
	case NoPending:
		return "No verification is in progress. Please sign in again."
	default:
		return fmt.Sprintf("Invalid or expired verification code. %d attempts remaining.", o.Remaining)
	}
}

// GenerateCode returns a uniformly random code in 100000..999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// Issue stores a freshly generated code on p. Attempts are left alone so
// asking for a new code does not reset the lockout budget.
func Issue(p *models.Profile, now time.Time) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	at := now.UTC()
	p.VerificationCode = code
	p.VerificationCodeCreated = &at
	return code, nil
}

// IsLocked reports whether p is locked at now and for how long.
func IsLocked(p *models.Profile, now time.Time) (bool, time.Duration) {
	if p.VerificationLockedUntil == nil || !now.Before(*p.VerificationLockedUntil) {
		return false, 0
	}
	return true, p.VerificationLockedUntil.Sub(now)
}

// Evaluate checks code against p at now. p is nil when the flow has no
// pending verification.
//
// Order: an active lock wins; an expired lock resets the counter; an
// exhausted counter locks for LockDuration; otherwise the attempt is
// counted and the code compared.
func Evaluate(p *models.Profile, code string, now time.Time) Outcome {
	if p == nil {
		return Outcome{Result: NoPending}
	}

	if locked, left := IsLocked(p, now); locked {
		return Outcome{Result: Locked, LockedFor: left}
	}
	if p.VerificationLockedUntil != nil {
		p.VerificationAttempts = 0
		p.VerificationLockedUntil = nil
	}

	if p.VerificationAttempts >= MaxAttempts {
		until := now.UTC().Add(LockDuration)
		p.VerificationLockedUntil = &until
		return Outcome{Result: Locked, LockedFor: LockDuration}
	}

	p.VerificationAttempts++
	remaining := MaxAttempts - p.VerificationAttempts

	if p.VerificationCode == "" || p.VerificationCodeCreated == nil ||
		subtle.ConstantTimeCompare([]byte(p.VerificationCode), []byte(code)) != 1 {
		return Outcome{Result: Invalid, Remaining: remaining}
	}
	if now.Sub(*p.VerificationCodeCreated) > CodeTTL {
		return Outcome{Result: Expired, Remaining: remaining}
	}

	p.EmailVerified = true
	p.VerificationCode = ""
	p.VerificationCodeCreated = nil
	p.VerificationAttempts = 0
	p.VerificationLockedUntil = nil
	return Outcome{Result: Verified}
}

// ResetWait returns how long until another password reset may be requested,
// or zero when one is allowed now.
func ResetWait(p models.Profile, now time.Time) time.Duration {
	if p.LastPasswordResetRequest == nil {
		return 0
	}
	if d := p.LastPasswordResetRequest.Add(ResetCooldown).Sub(now); d > 0 {
		return d
	}
	return 0
}

// HumanizeWait renders d as "N hours", "N minutes" or "less than a minute",
// rounding up.
func HumanizeWait(d time.Duration) string {
	switch {
	case d >= time.Hour:
		h := int((d + time.Hour - 1) / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute:
		m := int((d + time.Minute - 1) / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return "less than a minute"
	}
}
