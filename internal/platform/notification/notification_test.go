package notification

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

type recordingSender struct {
	emails []string
	sms    []string
	fail   bool
}

func (r *recordingSender) SendEmail(_ context.Context, to, subject, body string) error {
	if r.fail {
		return fmt.Errorf("smtp down")
	}
	r.emails = append(r.emails, to)
	return nil
}

func (r *recordingSender) SendSMS(_ context.Context, to, body string) error {
	if r.fail {
		return fmt.Errorf("gateway down")
	}
	r.sms = append(r.sms, to)
	return nil
}

func TestService_RoutesByAddress(t *testing.T) {
	rec := &recordingSender{}
	svc := NewService(rec, rec, zerolog.Nop())
	ctx := context.Background()

	if err := svc.SendReminder(ctx, "pat@example.org", "Reminder", "see you soon"); err != nil {
		t.Fatalf("email reminder: %v", err)
	}
	if err := svc.SendReminder(ctx, "+15550100", "Reminder", "see you soon"); err != nil {
		t.Fatalf("sms reminder: %v", err)
	}

	if len(rec.emails) != 1 || rec.emails[0] != "pat@example.org" {
		t.Errorf("email not routed: %v", rec.emails)
	}
	if len(rec.sms) != 1 || rec.sms[0] != "+15550100" {
		t.Errorf("sms not routed: %v", rec.sms)
	}
}

func TestService_FailureIsReported(t *testing.T) {
	rec := &recordingSender{fail: true}
	svc := NewService(rec, rec, zerolog.Nop())

	if err := svc.SendReminder(context.Background(), "pat@example.org", "s", "b"); err == nil {
		t.Error("expected delivery error")
	}
}

func TestService_EmptyRecipient(t *testing.T) {
	svc := NewService(&recordingSender{}, nil, zerolog.Nop())
	if err := svc.SendReminder(context.Background(), "", "s", "b"); err == nil {
		t.Error("expected error for empty recipient")
	}
}
