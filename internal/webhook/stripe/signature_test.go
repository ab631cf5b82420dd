package stripe

import (
	"errors"
	"testing"
	"time"

	webhookdomain "github.com/raylanfranco/whitelabel-admin/internal/webhook/domain"
)

const testSecret = "whsec_test"

func TestVerifySignatureAcceptsSigned(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	header := SignPayload(testSecret, payload, now)
	if err := VerifySignature(testSecret, payload, header, now); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now().UTC()

	header := SignPayload(testSecret, payload, now)
	err := VerifySignature(testSecret, []byte(`{"id":"evt_2"}`), header, now)
	if !errors.Is(err, webhookdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now().UTC()

	header := SignPayload("whsec_other", payload, now)
	err := VerifySignature(testSecret, payload, header, now)
	if !errors.Is(err, webhookdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	signedAt := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	now := signedAt.Add(SignatureTolerance + time.Minute)

	header := SignPayload(testSecret, payload, signedAt)
	err := VerifySignature(testSecret, payload, header, now)
	if !errors.Is(err, webhookdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureRejectsMalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now().UTC()

	for _, header := range []string{"", "t=abc,v1=def", "v1=deadbeef", "t=123"} {
		err := VerifySignature(testSecret, payload, header, now)
		if !errors.Is(err, webhookdomain.ErrInvalidSignature) {
			t.Errorf("header %q: expected ErrInvalidSignature, got %v", header, err)
		}
	}
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_42","type":"invoice.payment_failed","data":{"object":{"id":"in_1","customer":"cus_1"}}}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.ID != "evt_42" || event.Type != "invoice.payment_failed" {
		t.Fatalf("event = %+v", event)
	}
	if len(event.Object) == 0 {
		t.Fatalf("expected data.object to be captured")
	}
}

func TestParseEventRejectsMissingFields(t *testing.T) {
	for _, payload := range []string{`{}`, `{"id":"evt_1"}`, `not json`} {
		if _, err := ParseEvent([]byte(payload)); !errors.Is(err, webhookdomain.ErrMalformedEvent) {
			t.Errorf("payload %q: expected ErrMalformedEvent, got %v", payload, err)
		}
	}
}
