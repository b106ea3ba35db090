package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/visionsuite/camstream/internal/stream"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type downConnector struct{}

func (downConnector) Connect(context.Context, stream.SourceDescriptor, stream.VariantKind) (stream.Conn, error) {
	return nil, errors.New("no cameras in tests")
}

func newFixture(t *testing.T) (*Handler, *miniredis.Miniredis, *stream.Registry) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := stream.NewRegistry(downConnector{}, nil, nil, logger, stream.Config{
		BackoffCap: 10 * time.Millisecond,
	})
	t.Cleanup(func() { registry.Shutdown(context.Background()) })

	return NewHandler(db, client, registry, "test"), mr, registry
}

func TestLiveness(t *testing.T) {
	h, _, _ := newFixture(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	if err := h.Liveness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Liveness: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReadinessHealthy(t *testing.T) {
	h, _, registry := newFixture(t)
	if _, err := registry.Add(stream.SourceDescriptor{ID: "src_a", Host: "cam.local"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	if err := h.Readiness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Fatalf("status = %s", resp.Status)
	}
	if resp.Components["database"].Status != StatusHealthy {
		t.Fatalf("database component: %+v", resp.Components["database"])
	}
	if resp.Components["redis"].Status != StatusHealthy {
		t.Fatalf("redis component: %+v", resp.Components["redis"])
	}
	if resp.Stats.Streams.Total != 1 {
		t.Fatalf("stream total = %d", resp.Stats.Streams.Total)
	}
	if resp.Stats.Streams.Connected != 0 {
		t.Fatalf("stream connected = %d", resp.Stats.Streams.Connected)
	}
}

func TestReadinessRedisDown(t *testing.T) {
	h, mr, _ := newFixture(t)
	mr.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	if err := h.Readiness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Fatalf("status = %s", resp.Status)
	}
}

func TestRequestCounters(t *testing.T) {
	h, _, _ := newFixture(t)

	h.IncrementRequests()
	h.IncrementRequests()
	h.IncrementConnections()
	h.IncrementConnections()
	h.DecrementConnections()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	if err := h.Readiness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Readiness: %v", err)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stats.Requests.TotalRequests != 2 {
		t.Fatalf("total requests = %d", resp.Stats.Requests.TotalRequests)
	}
	if resp.Stats.Requests.ActiveConnections != 1 {
		t.Fatalf("active connections = %d", resp.Stats.Requests.ActiveConnections)
	}
}
