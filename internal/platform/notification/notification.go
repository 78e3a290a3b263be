// Package notification delivers appointment reminders and clinical alerts
// over email or SMS. Delivery is fire-and-forget from the caller's point of
// view: a send failure is logged and swallowed so it can never fail the
// domain operation that triggered it.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Service routes a reminder to the sender matching the recipient address.
type Service struct {
	email  EmailSender
	sms    SMSSender
	logger zerolog.Logger
}

func NewService(email EmailSender, sms SMSSender, logger zerolog.Logger) *Service {
	return &Service{email: email, sms: sms, logger: logger}
}

// SendReminder delivers a reminder to recipient. Addresses containing "@"
// go out as email, anything else as SMS. The returned error is informational
// only; callers are expected to log and continue.
func (s *Service) SendReminder(ctx context.Context, recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	var err error
	if strings.Contains(recipient, "@") {
		if s.email == nil {
			return fmt.Errorf("no email sender configured")
		}
		err = s.email.SendEmail(ctx, recipient, subject, body)
	} else {
		if s.sms == nil {
			return fmt.Errorf("no sms sender configured")
		}
		err = s.sms.SendSMS(ctx, recipient, body)
	}

	if err != nil {
		s.logger.Warn().Err(err).Str("recipient", recipient).Msg("reminder delivery failed")
		return err
	}
	return nil
}

// LogSender writes notifications to the log instead of delivering them.
// It backs both sender interfaces in development.
type LogSender struct {
	Logger zerolog.Logger
}

func (l *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	l.Logger.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email (log sender)")
	return nil
}

func (l *LogSender) SendSMS(_ context.Context, to, body string) error {
	l.Logger.Info().Str("to", to).Str("body", body).Msg("sms (log sender)")
	return nil
}
