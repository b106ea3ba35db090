package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/visionsuite/camstream/internal/dto"
)

func newHandlerFixture(t *testing.T) (*Handler, *Registry) {
	t.Helper()
	reg := newTestRegistry(refusingConnector(), Config{})
	t.Cleanup(func() { reg.Shutdown(context.Background()) })
	return NewHandler(reg, testLogger()), reg
}

func TestHandlerRegisterRoutes(t *testing.T) {
	h, _ := newHandlerFixture(t)
	e := echo.New()
	h.RegisterRoutes(e.Group("/v1/streams"))

	want := map[string]bool{
		"/v1/streams":           false,
		"/v1/streams/:id":       false,
		"/v1/streams/:id/frame": false,
		"/v1/streams/:id/live":  false,
	}
	for _, r := range e.Routes() {
		if _, ok := want[r.Path]; ok {
			want[r.Path] = true
		}
	}
	for path, found := range want {
		if !found {
			t.Errorf("route %s not registered", path)
		}
	}
}

func TestHandlerList(t *testing.T) {
	h, reg := newHandlerFixture(t)
	for _, id := range []string{"src_b", "src_a"} {
		if _, err := reg.Add(SourceDescriptor{ID: id, Name: "cam " + id, Host: "cam.local"}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/streams", nil)
	rec := httptest.NewRecorder()

	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("List: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp dto.StreamListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d", resp.Total)
	}
	if resp.Streams[0].ID != "src_a" || resp.Streams[1].ID != "src_b" {
		t.Fatalf("unexpected order: %s, %s", resp.Streams[0].ID, resp.Streams[1].ID)
	}
}

func TestHandlerGetNotFound(t *testing.T) {
	h, _ := newHandlerFixture(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/v1/streams/src_missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("src_missing")

	err := h.Get(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandlerFrameUnavailable(t *testing.T) {
	h, reg := newHandlerFixture(t)
	if _, err := reg.Add(SourceDescriptor{ID: "src_cold", Host: "cam.local"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/streams/src_cold/frame", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("src_cold")

	err := h.Frame(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first frame, got %v", err)
	}
}

func TestHandlerFrameServesJPEG(t *testing.T) {
	h, reg := newHandlerFixture(t)
	if _, err := reg.Add(SourceDescriptor{ID: "src_warm", Host: "cam.local"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	slot, _ := reg.Slot("src_warm")
	slot.Publish(FrameRecord{
		SourceID:   "src_warm",
		Seq:        42,
		Data:       []byte("jpeg-bytes"),
		CapturedAt: time.Now(),
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/streams/src_warm/frame", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("src_warm")

	if err := h.Frame(c); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "image/jpeg" {
		t.Fatalf("content type = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Seq"); got != "42" {
		t.Fatalf("X-Frame-Seq = %q", got)
	}
	if rec.Body.String() != "jpeg-bytes" {
		t.Fatal("body does not match the published frame")
	}
}
