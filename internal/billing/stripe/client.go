// Package stripe implements the payment processor client against the
// Stripe REST API. Requests are form-encoded with bearer auth and carry an
// idempotency key so retried mutations never double-charge.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	billingdomain "github.com/raylanfranco/whitelabel-admin/internal/billing/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/tracing"
)

const defaultAPIBase = "https://api.stripe.com"

// Client talks to the Stripe API.
type Client struct {
	secretKey  string
	apiBase    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg config.StripeConfig, log *zap.Logger) *Client {
	apiBase := strings.TrimSpace(cfg.APIBaseOverride)
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Client{
		secretKey:  cfg.SecretKey,
		apiBase:    apiBase,
		httpClient: tracing.WrapHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		log:        log.Named("stripe.client"),
	}
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", billingdomain.ErrProcessor, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", billingdomain.ErrProcessor, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var parsed apiError
		_ = json.Unmarshal(raw, &parsed)
		c.log.Warn("stripe request rejected",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("error_code", parsed.Error.Code),
		)
		return fmt.Errorf("%w: %s", billingdomain.ErrProcessor, parsed.Error.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed response", billingdomain.ErrProcessor)
	}
	return nil
}

type customerResponse struct {
	ID string `json:"id"`
}

func (c *Client) CreateCustomer(ctx context.Context, name, email, phone string, metadata map[string]string) (billingdomain.Customer, error) {
	form := url.Values{}
	form.Set("name", name)
	if email != "" {
		form.Set("email", email)
	}
	if phone != "" {
		form.Set("phone", phone)
	}
	encodeMetadata(form, metadata)

	var resp customerResponse
	if err := c.do(ctx, http.MethodPost, "/v1/customers", form, &resp); err != nil {
		return billingdomain.Customer{}, err
	}
	return billingdomain.Customer{ID: resp.ID}, nil
}

type subscriptionResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	TrialEnd      int64  `json:"trial_end"`
	LatestInvoice struct {
		PaymentIntent struct {
			ClientSecret string `json:"client_secret"`
		} `json:"payment_intent"`
	} `json:"latest_invoice"`
	Items struct {
		Data []struct {
			ID    string `json:"id"`
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (r subscriptionResponse) toDomain() billingdomain.Subscription {
	sub := billingdomain.Subscription{
		ID:           r.ID,
		Status:       r.Status,
		TrialEnd:     r.TrialEnd,
		ClientSecret: r.LatestInvoice.PaymentIntent.ClientSecret,
	}
	if len(r.Items.Data) > 0 {
		sub.ItemID = r.Items.Data[0].ID
		sub.PriceID = r.Items.Data[0].Price.ID
	}
	return sub
}

func (c *Client) CreateSubscription(ctx context.Context, customerID, priceID string, trialDays int64, metadata map[string]string) (billingdomain.Subscription, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("items[0][price]", priceID)
	form.Set("trial_period_days", strconv.FormatInt(trialDays, 10))
	form.Set("payment_behavior", "default_incomplete")
	form.Set("payment_settings[save_default_payment_method]", "on_subscription")
	form.Set("expand[]", "latest_invoice.payment_intent")
	encodeMetadata(form, metadata)

	var resp subscriptionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/subscriptions", form, &resp); err != nil {
		return billingdomain.Subscription{}, err
	}
	return resp.toDomain(), nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (billingdomain.Subscription, error) {
	var resp subscriptionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, &resp); err != nil {
		return billingdomain.Subscription{}, err
	}
	return resp.toDomain(), nil
}

func (c *Client) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, itemID, newPriceID string, metadata map[string]string) error {
	form := url.Values{}
	form.Set("items[0][id]", itemID)
	form.Set("items[0][price]", newPriceID)
	form.Set("proration_behavior", "create_prorations")
	encodeMetadata(form, metadata)
	return c.do(ctx, http.MethodPost, "/v1/subscriptions/"+url.PathEscape(subscriptionID), form, nil)
}

type idResponse struct {
	ID string `json:"id"`
}

func (c *Client) CreateInvoiceItem(ctx context.Context, customerID string, amountCents int64, description string, metadata map[string]string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", "usd")
	form.Set("description", description)
	encodeMetadata(form, metadata)

	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/v1/invoiceitems", form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) CreateInvoice(ctx context.Context, customerID string, autoAdvance bool, metadata map[string]string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("auto_advance", strconv.FormatBool(autoAdvance))
	form.Set("collection_method", "charge_automatically")
	encodeMetadata(form, metadata)

	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/v1/invoices", form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

type paymentIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

func (c *Client) CreatePaymentIntent(ctx context.Context, params billingdomain.CreatePaymentIntentParams) (billingdomain.PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", params.Currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	if params.ApplicationFee > 0 {
		form.Set("application_fee_amount", strconv.FormatInt(params.ApplicationFee, 10))
	}
	if params.DestinationAccount != "" {
		form.Set("transfer_data[destination]", params.DestinationAccount)
	}
	if params.Description != "" {
		form.Set("description", params.Description)
	}
	encodeMetadata(form, params.Metadata)

	var resp paymentIntentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &resp); err != nil {
		return billingdomain.PaymentIntent{}, err
	}
	return billingdomain.PaymentIntent{
		ID:           resp.ID,
		ClientSecret: resp.ClientSecret,
		Status:       resp.Status,
	}, nil
}

func (c *Client) CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64, reason string, metadata map[string]string) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	if reason != "" {
		form.Set("metadata[refund_reason]", reason)
	}
	encodeMetadata(form, metadata)

	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

type accountResponse struct {
	ID               string `json:"id"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

func (r accountResponse) toDomain() billingdomain.Account {
	return billingdomain.Account{
		ID:               r.ID,
		ChargesEnabled:   r.ChargesEnabled,
		PayoutsEnabled:   r.PayoutsEnabled,
		DetailsSubmitted: r.DetailsSubmitted,
	}
}

func (c *Client) CreateAccount(ctx context.Context, country, email string, metadata map[string]string) (billingdomain.Account, error) {
	form := url.Values{}
	form.Set("type", "express")
	form.Set("country", country)
	if email != "" {
		form.Set("email", email)
	}
	form.Set("business_type", "individual")
	encodeMetadata(form, metadata)

	var resp accountResponse
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", form, &resp); err != nil {
		return billingdomain.Account{}, err
	}
	return resp.toDomain(), nil
}

type accountLinkResponse struct {
	URL string `json:"url"`
}

func (c *Client) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	form := url.Values{}
	form.Set("account", accountID)
	form.Set("refresh_url", refreshURL)
	form.Set("return_url", returnURL)
	form.Set("type", "account_onboarding")

	var resp accountLinkResponse
	if err := c.do(ctx, http.MethodPost, "/v1/account_links", form, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (billingdomain.Account, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(accountID), nil, &resp); err != nil {
		return billingdomain.Account{}, err
	}
	return resp.toDomain(), nil
}

func encodeMetadata(form url.Values, metadata map[string]string) {
	for key, value := range metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		form.Set("metadata["+key+"]", value)
	}
}
