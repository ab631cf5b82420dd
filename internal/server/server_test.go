package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raylanfranco/whitelabel-admin/internal/clock"
	"github.com/raylanfranco/whitelabel-admin/internal/config"
	"github.com/raylanfranco/whitelabel-admin/internal/observability/metrics"
)

func TestEngineServesHealthThroughMetricsMiddleware(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(metrics.Config{ServiceName: "whitelabel"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	s := NewServer(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Cfg:         config.Config{},
		Clock:       clock.FixedClock{At: time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)},
		HTTPMetrics: httpMetrics,
	})
	engine := NewEngine(s)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
