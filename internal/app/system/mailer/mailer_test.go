package mailer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capture struct {
	mu   sync.Mutex
	msgs []email.Message
	err  error
}

func (c *capture) Send(_ context.Context, msg email.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.err
}

func newTestMailer(c *capture) *Mailer {
	m := New(Config{Host: "smtp.example.org", Port: 2525, From: "noreply@example.org", FromName: "ScholarHub"}, zap.NewNop(), nil)
	m.sender = c
	return m
}

func TestSend_HandsMessageToSender(t *testing.T) {
	c := &capture{}
	m := newTestMailer(c)

	e := BuildVerificationEmail(CodeEmailData{SiteName: "ScholarHub", Code: "123456", ExpiresIn: "15 minutes"})
	e.To = "student@example.org"
	require.NoError(t, m.Send(context.Background(), e))

	require.Len(t, c.msgs, 1)
	msg := c.msgs[0]
	assert.Equal(t, []string{"student@example.org"}, msg.To)
	assert.Equal(t, "Your ScholarHub verification code", msg.Subject)
	assert.Contains(t, msg.TextBody, "123456")
	assert.Contains(t, msg.HTMLBody, "123456")
}

func TestSend_ReturnsSenderError(t *testing.T) {
	c := &capture{err: errors.New("email: failed to send")}
	m := newTestMailer(c)
	err := m.Send(context.Background(), Email{To: "a@example.org", Subject: "x", TextBody: "y"})
	assert.EqualError(t, err, "email: failed to send")
}

func TestSend_DisabledOnlyLogs(t *testing.T) {
	m := New(Config{}, zap.NewNop(), nil)
	assert.IsType(t, &email.Sender{}, m.sender)
	assert.False(t, m.Enabled())
	assert.NoError(t, m.Send(context.Background(), Email{To: "a@example.org", Subject: "x"}))
	assert.Error(t, m.Send(context.Background(), Email{Subject: "no recipient"}))
}

func TestSendAsync_WaitsAndSwallowsErrors(t *testing.T) {
	c := &capture{err: errors.New("connection refused")}
	m := newTestMailer(c)

	m.SendAsync(Email{To: "a@example.org", Subject: "one", TextBody: "x", Kind: KindApproval})
	m.SendAsync(Email{To: "b@example.org", Subject: "two", TextBody: "y", Kind: KindApproval})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
	assert.Len(t, c.msgs, 2)
}

func TestNotices_Approved(t *testing.T) {
	c := &capture{}
	n := Notices{Mailer: newTestMailer(c), SiteName: "ScholarHub", BaseURL: "https://research.example.org/", Logger: zap.NewNop()}

	n.Approved(models.Account{Email: "ana@example.org", Profile: models.Profile{PendingFirstName: "Ana"}})
	require.NoError(t, n.Mailer.Wait(context.Background()))

	require.Len(t, c.msgs, 1)
	assert.Equal(t, []string{"ana@example.org"}, c.msgs[0].To)
	assert.Contains(t, c.msgs[0].TextBody, "Hello Ana,")
	assert.Contains(t, c.msgs[0].TextBody, "https://research.example.org/login")
}

func TestBuildPasswordResetEmail(t *testing.T) {
	e := BuildPasswordResetEmail(CodeEmailData{SiteName: "ScholarHub", Code: "654321", ExpiresIn: "15 minutes"})
	assert.Equal(t, KindPasswordReset, e.Kind)
	assert.True(t, strings.Contains(e.TextBody, "654321"))
	assert.Contains(t, e.HTMLBody, "Reset your password")
}
