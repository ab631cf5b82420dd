// Package twilio implements the SMS provider client and webhook signature
// verification against the Twilio REST API.
package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raylanfranco/whitelabel-admin/internal/config"
	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/tracing"
)

const defaultAPIBase = "https://api.twilio.com"

// Client talks to the Twilio Messages API with basic auth.
type Client struct {
	accountSID string
	authToken  string
	apiBase    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg config.TwilioConfig, log *zap.Logger) *Client {
	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		apiBase:    defaultAPIBase,
		httpClient: tracing.WrapHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		log:        log.Named("twilio.client"),
	}
}

type messageResponse struct {
	SID         string `json:"sid"`
	Status      string `json:"status"`
	NumSegments string `json:"num_segments"`
	ErrorCode   *int   `json:"error_code"`
	Message     string `json:"message"`
}

// Send queues one outbound text and returns the provider sid.
func (c *Client) Send(ctx context.Context, to, from, body string) (messagingdomain.SMSResult, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.apiBase, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return messagingdomain.SMSResult{}, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return messagingdomain.SMSResult{}, fmt.Errorf("%w: %v", messagingdomain.ErrProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return messagingdomain.SMSResult{}, fmt.Errorf("%w: %v", messagingdomain.ErrProvider, err)
	}

	var parsed messageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return messagingdomain.SMSResult{}, fmt.Errorf("%w: malformed response", messagingdomain.ErrProvider)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Warn("sms send rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("provider_message", parsed.Message),
		)
		return messagingdomain.SMSResult{}, fmt.Errorf("%w: %s", messagingdomain.ErrProvider, parsed.Message)
	}

	segments, _ := strconv.Atoi(parsed.NumSegments)
	if segments <= 0 {
		segments = 1
	}
	return messagingdomain.SMSResult{
		MessageID: parsed.SID,
		Segments:  segments,
	}, nil
}

// ValidateSignature checks the X-Twilio-Signature header: HMAC-SHA1 over
// the full callback URL plus the form parameters sorted by key, base64.
func ValidateSignature(authToken, callbackURL string, form url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}

	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	payload := callbackURL
	for _, key := range keys {
		payload += key + form.Get(key)
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
