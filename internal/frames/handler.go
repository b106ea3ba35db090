package frames

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/visionsuite/camstream/internal/dto"
	"github.com/visionsuite/camstream/internal/shared"
)

const (
	defaultFrameLimit = 50
	maxFrameLimit     = 500
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.DELETE("", h.Delete)
}

// List returns archived frames for a source in a time window. Frame bytes
// are omitted unless include_data=true; listing metadata is the common case
// and the payloads are large.
func (h *Handler) List(c echo.Context) error {
	sourceID := c.Param("id")

	now := time.Now().UnixMilli()
	since := now - time.Minute.Milliseconds()
	if v := c.QueryParam("since_ms"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return shared.BadRequest("invalid_since", "since_ms must be a unix millisecond timestamp")
		}
		since = parsed
	}

	until := now
	if v := c.QueryParam("until_ms"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return shared.BadRequest("invalid_until", "until_ms must be a unix millisecond timestamp")
		}
		until = parsed
	}

	limit := defaultFrameLimit
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return shared.BadRequest("invalid_limit", "limit must be a positive integer")
		}
		if parsed > maxFrameLimit {
			parsed = maxFrameLimit
		}
		limit = parsed
	}

	includeData := c.QueryParam("include_data") == "true"

	archived, err := h.store.GetFrames(c.Request().Context(), sourceID, since, until, limit)
	if err != nil {
		h.logger.Error("failed to list frames", "error", err, "source_id", sourceID)
		return shared.InternalError("list_failed", "failed to list frames")
	}

	out := make([]dto.ArchivedFrameResponse, len(archived))
	for i, f := range archived {
		out[i] = dto.ArchivedFrameResponse{
			CapturedAtMs: f.CapturedAt,
			SizeBytes:    len(f.Data),
		}
		if includeData {
			out[i].Data = f.Data
		}
	}

	return c.JSON(http.StatusOK, dto.FrameListResponse{
		SourceID: sourceID,
		Count:    len(out),
		Frames:   out,
	})
}

func (h *Handler) Delete(c echo.Context) error {
	sourceID := c.Param("id")

	if err := h.store.DeleteFrames(c.Request().Context(), sourceID); err != nil {
		h.logger.Error("failed to delete frames", "error", err, "source_id", sourceID)
		return shared.InternalError("delete_failed", "failed to delete frames")
	}

	return c.NoContent(http.StatusNoContent)
}
