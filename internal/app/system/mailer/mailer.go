// Package mailer sends transactional email over SMTP. With no SMTP host
// configured it only logs, which is how local development runs.
package mailer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dalemusser/scholarhub/internal/app/system/metrics"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/email"
	"go.uber.org/zap"
)

// Email is one outgoing message. Kind labels it in logs and metrics.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
	Kind     string
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// sender is satisfied by *email.Sender.
type sender interface {
	Send(ctx context.Context, msg email.Message) error
}

type Mailer struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	sender  sender
	wg      sync.WaitGroup
}

func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Mailer {
	return &Mailer{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		sender: email.NewSender(email.Config{
			Host:        cfg.Host,
			Port:        cfg.Port,
			Username:    cfg.User,
			Password:    cfg.Pass,
			FromAddress: cfg.From,
			FromName:    cfg.FromName,
			Timeout:     timeouts.Mail(),
		}),
	}
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool { return m.cfg.Host != "" }

// Send delivers e, or logs it when SMTP is disabled.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if strings.TrimSpace(e.To) == "" {
		return errors.New("mailer: empty recipient")
	}
	if !m.Enabled() {
		m.logger.Info("email (smtp disabled)",
			zap.String("kind", e.Kind),
			zap.String("to", e.To),
			zap.String("subject", e.Subject))
		return nil
	}
	return m.sender.Send(ctx, email.Message{
		To:       []string{e.To},
		Subject:  e.Subject,
		TextBody: e.TextBody,
		HTMLBody: e.HTMLBody,
	})
}

// SendAsync delivers e on a background goroutine with its own timeout.
// Failures are logged and counted, never returned.
func (m *Mailer) SendAsync(e Email) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Mail())
		defer cancel()

		err := m.Send(ctx, e)
		m.metrics.Email(e.Kind, err)
		if err != nil {
			m.logger.Error("failed to send email",
				zap.String("kind", e.Kind),
				zap.String("to", e.To),
				zap.Error(err))
			return
		}
		m.logger.Info("email sent", zap.String("kind", e.Kind), zap.String("to", e.To))
	}()
}

// Wait blocks until queued sends finish or ctx ends.
func (m *Mailer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
