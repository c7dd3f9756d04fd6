package verification_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/dalemusser/scholarhub/internal/app/system/verification"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func issued(t *testing.T) (*models.Profile, string) {
	t.Helper()
	p := &models.Profile{}
	code, err := verification.Issue(p, t0)
	require.NoError(t, err)
	return p, code
}

func wrong(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}

func TestGenerateCode_SixDigits(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := verification.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestEvaluate_NoPending(t *testing.T) {
	out := verification.Evaluate(nil, "123456", t0)
	assert.Equal(t, verification.NoPending, out.Result)
	assert.False(t, out.OK())
}

func TestEvaluate_CorrectCode(t *testing.T) {
	p, code := issued(t)
	p.VerificationAttempts = 3

	out := verification.Evaluate(p, code, t0.Add(14*time.Minute))
	assert.True(t, out.OK())
	assert.True(t, p.EmailVerified)
	assert.Empty(t, p.VerificationCode)
	assert.Nil(t, p.VerificationCodeCreated)
	assert.Zero(t, p.VerificationAttempts)
}

func TestEvaluate_ExpiredAfter15Minutes(t *testing.T) {
	p, code := issued(t)

	out := verification.Evaluate(p, code, t0.Add(15*time.Minute+time.Second))
	assert.Equal(t, verification.Expired, out.Result)
	assert.Equal(t, 9, out.Remaining)
	assert.False(t, p.EmailVerified)
}

func TestEvaluate_OnlyLatestCodeMatches(t *testing.T) {
	p, first := issued(t)
	second, err := verification.Issue(p, t0.Add(time.Minute))
	require.NoError(t, err)
	if first == second {
		t.Skip("codes collided")
	}

	assert.Equal(t, verification.Invalid, verification.Evaluate(p, first, t0.Add(2*time.Minute)).Result)
	assert.True(t, verification.Evaluate(p, second, t0.Add(2*time.Minute)).OK())
}

func TestIssue_KeepsAttempts(t *testing.T) {
	p, _ := issued(t)
	p.VerificationAttempts = 7
	_, err := verification.Issue(p, t0)
	require.NoError(t, err)
	assert.Equal(t, 7, p.VerificationAttempts)
}

func TestEvaluate_ElevenWrongCodesLock(t *testing.T) {
	p, code := issued(t)
	now := t0.Add(time.Minute)

	for i := 1; i <= verification.MaxAttempts; i++ {
		out := verification.Evaluate(p, wrong(code), now)
		require.Equal(t, verification.Invalid, out.Result, "attempt %d", i)
		assert.Equal(t, verification.MaxAttempts-i, out.Remaining)
	}

	out := verification.Evaluate(p, wrong(code), now)
	assert.Equal(t, verification.Locked, out.Result)
	assert.Equal(t, verification.LockDuration, out.LockedFor)
	require.NotNil(t, p.VerificationLockedUntil)

	// The right code during the lock is still refused.
	out = verification.Evaluate(p, code, now.Add(time.Minute))
	assert.Equal(t, verification.Locked, out.Result)
	assert.Equal(t, verification.LockDuration-time.Minute, out.LockedFor)
	assert.False(t, p.EmailVerified)
}

func TestEvaluate_LockExpiryResetsCounter(t *testing.T) {
	p := &models.Profile{VerificationAttempts: verification.MaxAttempts}
	until := t0.Add(-time.Second)
	p.VerificationLockedUntil = &until

	code, err := verification.Issue(p, t0)
	require.NoError(t, err)

	out := verification.Evaluate(p, code, t0.Add(time.Minute))
	assert.True(t, out.OK())
	assert.Nil(t, p.VerificationLockedUntil)
	assert.Zero(t, p.VerificationAttempts)
}

func TestEvaluate_LockExpiryThenWrongCode(t *testing.T) {
	p := &models.Profile{VerificationAttempts: verification.MaxAttempts}
	until := t0
	p.VerificationLockedUntil = &until
	code, _ := verification.Issue(p, t0)

	out := verification.Evaluate(p, wrong(code), t0)
	assert.Equal(t, verification.Invalid, out.Result)
	assert.Equal(t, verification.MaxAttempts-1, out.Remaining)
}

func TestResetWait(t *testing.T) {
	var p models.Profile
	assert.Zero(t, verification.ResetWait(p, t0))

	last := t0.Add(-23 * time.Hour)
	p.LastPasswordResetRequest = &last
	assert.Equal(t, time.Hour, verification.ResetWait(p, t0))

	last = t0.Add(-25 * time.Hour)
	assert.Zero(t, verification.ResetWait(p, t0))
}

func TestHumanizeWait(t *testing.T) {
	assert.Equal(t, "24 hours", verification.HumanizeWait(24*time.Hour))
	assert.Equal(t, "2 hours", verification.HumanizeWait(61*time.Minute))
	assert.Equal(t, "1 hour", verification.HumanizeWait(time.Hour))
	assert.Equal(t, "5 minutes", verification.HumanizeWait(4*time.Minute+time.Second))
	assert.Equal(t, "less than a minute", verification.HumanizeWait(10*time.Second))
}

func TestOutcomeMessage(t *testing.T) {
	assert.Contains(t, verification.Outcome{Result: verification.Invalid, Remaining: 4}.Message(), "4 attempts remaining")
	assert.Contains(t, verification.Outcome{Result: verification.Locked, LockedFor: 3 * time.Hour}.Message(), "3 hours")
}
