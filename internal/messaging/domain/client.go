package domain

import "context"

// SMSResult is the provider's acknowledgment of a queued text.
type SMSResult struct {
	MessageID string
	Segments  int
}

// SMSClient sends texts through the SMS provider.
type SMSClient interface {
	Send(ctx context.Context, to, from, body string) (SMSResult, error)
}

// EmailClient sends mail through the email provider.
type EmailClient interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}
