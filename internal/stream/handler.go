package stream

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/visionsuite/camstream/internal/dto"
	"github.com/visionsuite/camstream/internal/shared"
)

type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

func NewHandler(registry *Registry, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/frame", h.Frame)
	g.GET("/:id/live", h.Live)
}

func statusToResponse(s SessionStatus) dto.StreamResponse {
	resp := dto.StreamResponse{
		ID:                  s.ID,
		Name:                s.Name,
		State:               s.State,
		Connected:           s.Connected,
		Variant:             string(s.Variant),
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastFailure:         s.LastFailure,
		Seq:                 s.Seq,
	}
	if !s.NextAttemptAt.IsZero() {
		resp.NextAttemptAt = s.NextAttemptAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if !s.LastFrameAt.IsZero() {
		resp.LastFrameAt = s.LastFrameAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func (h *Handler) List(c echo.Context) error {
	statuses := h.registry.List()

	streams := make([]dto.StreamResponse, len(statuses))
	for i, s := range statuses {
		streams[i] = statusToResponse(s)
	}

	return c.JSON(http.StatusOK, dto.StreamListResponse{
		Total:   len(streams),
		Streams: streams,
	})
}

func (h *Handler) Get(c echo.Context) error {
	status, ok := h.registry.Status(c.Param("id"))
	if !ok {
		return shared.NotFound("stream_not_found", "stream not found")
	}
	return c.JSON(http.StatusOK, statusToResponse(status))
}

// Frame serves the newest frame of a source as raw JPEG. A registered but
// not-yet-producing source is a 503, not a 404: the stream exists, the
// picture just is not there yet.
func (h *Handler) Frame(c echo.Context) error {
	slot, ok := h.registry.Slot(c.Param("id"))
	if !ok {
		return shared.NotFound("stream_not_found", "stream not found")
	}

	rec, ok := slot.Latest()
	if !ok {
		return shared.ServiceUnavailable("no_frame", "no frame captured yet")
	}

	c.Response().Header().Set("X-Frame-Seq", strconv.FormatUint(rec.Seq, 10))
	c.Response().Header().Set("X-Frame-Captured-At", rec.CapturedAt.UTC().Format(time.RFC3339Nano))
	return c.Blob(http.StatusOK, "image/jpeg", rec.Data)
}
