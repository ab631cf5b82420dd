// Package sendgrid implements the email provider client against the
// SendGrid v3 mail send API.
package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raylanfranco/whitelabel-admin/internal/config"
	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/tracing"
)

const defaultAPIBase = "https://api.sendgrid.com"

// Client talks to the SendGrid mail send API with bearer auth.
type Client struct {
	apiKey      string
	fromAddress string
	apiBase     string
	httpClient  *http.Client
	log         *zap.Logger
}

func NewClient(cfg config.EmailConfig, log *zap.Logger) *Client {
	return &Client{
		apiKey:      cfg.SendGridAPIKey,
		fromAddress: cfg.FromAddress,
		apiBase:     defaultAPIBase,
		httpClient:  tracing.WrapHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		log:         log.Named("sendgrid.client"),
	}
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send queues one email and returns the provider message id.
func (c *Client) Send(ctx context.Context, to, subject, body string) (string, error) {
	payload := mailSendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: to}}}},
		From:             emailAddress{Email: c.fromAddress},
		Subject:          subject,
		Content:          []mailContent{{Type: "text/plain", Value: body}},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v3/mail/send", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", messagingdomain.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("email send rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("detail", detail),
		)
		return "", fmt.Errorf("%w: status %d", messagingdomain.ErrProvider, resp.StatusCode)
	}

	return resp.Header.Get("X-Message-Id"), nil
}
