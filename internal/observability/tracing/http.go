package tracing

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// WrapHTTPClient instruments an http.Client so every outbound request runs
// inside a client span with context propagation. The Stripe, Twilio and
// SendGrid adapters all wrap their clients here, which makes a failed
// provider call traceable back to the tenant request that triggered it.
func WrapHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	clone := *client
	clone.Transport = &providerTransport{base: clone.Transport}
	return &clone
}

type providerTransport struct {
	base http.RoundTripper
}

func (t *providerTransport) next() http.RoundTripper {
	if t.base != nil {
		return t.base
	}
	return http.DefaultTransport
}

func (t *providerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return t.next().RoundTrip(req)
	}

	tracer := otel.Tracer("whitelabel/provider")
	ctx, span := tracer.Start(req.Context(), spanName(req), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	InjectContext(ctx, propagation.HeaderCarrier(req.Header))

	started := time.Now()
	resp, err := t.next().RoundTrip(req.WithContext(ctx))
	elapsed := time.Since(started)

	attrs := []attribute.KeyValue{
		attribute.String("http.method", req.Method),
		attribute.String("http.host", req.URL.Host),
		attribute.String("peer.service", providerName(req.URL.Host)),
		attribute.Int64("http.client_duration_ms", elapsed.Milliseconds()),
	}
	if err != nil {
		if safeErr := SafeError(err); safeErr != nil {
			span.RecordError(safeErr)
		}
		span.SetStatus(codes.Error, "transport error")
		span.SetAttributes(SafeAttributes(attrs...)...)
		return resp, err
	}

	attrs = append(attrs, attribute.Int("http.status_code", resp.StatusCode))
	span.SetAttributes(SafeAttributes(attrs...)...)
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, err
}

func spanName(req *http.Request) string {
	return strings.ToUpper(req.Method) + " " + providerName(req.URL.Host)
}

// providerName collapses a provider API host down to its vendor label so
// span names stay low-cardinality across API paths.
func providerName(host string) string {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "stripe"):
		return "stripe"
	case strings.Contains(host, "twilio"):
		return "twilio"
	case strings.Contains(host, "sendgrid"):
		return "sendgrid"
	case host == "":
		return "unknown"
	default:
		return host
	}
}
