package source

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/visionsuite/camstream/internal/dto"
	"github.com/visionsuite/camstream/internal/frames"
	"github.com/visionsuite/camstream/internal/shared"
	"github.com/visionsuite/camstream/internal/stream"
)

type Handler struct {
	store      *Store
	registry   *stream.Registry
	frameStore *frames.Store
	logger     *slog.Logger
}

func NewHandler(store *Store, registry *stream.Registry, frameStore *frames.Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:      store,
		registry:   registry,
		frameStore: frameStore,
		logger:     logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func sourceToResponse(s *Source) dto.SourceResponse {
	return dto.SourceResponse{
		ID:                s.ID,
		Name:              s.Name,
		Host:              s.Host,
		Port:              s.Port,
		Username:          s.Username,
		Width:             s.Width,
		Height:            s.Height,
		Variants:          s.Variants,
		BackoffCapSeconds: s.BackoffCapSeconds,
		FallbackAfter:     s.FallbackAfter,
		Enabled:           s.Enabled,
		CreatedAt:         s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:         s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func validateVariants(variants []string) error {
	for _, v := range variants {
		if !stream.VariantKind(v).Valid() {
			return shared.BadRequest("invalid_variant", "variant must be mjpeg or snapshot")
		}
	}
	return nil
}

func (h *Handler) List(c echo.Context) error {
	sources, err := h.store.List(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list sources", "error", err)
		return shared.InternalError("list_failed", "failed to list sources")
	}

	response := make([]dto.SourceResponse, len(sources))
	for i, s := range sources {
		response[i] = sourceToResponse(s)
	}

	return c.JSON(http.StatusOK, dto.SourceListResponse{Sources: response})
}

func (h *Handler) Create(c echo.Context) error {
	var req dto.CreateSourceRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	if req.Host == "" {
		return shared.BadRequest("missing_host", "host is required")
	}
	if err := validateVariants(req.Variants); err != nil {
		return err
	}

	variants := req.Variants
	if len(variants) == 0 {
		variants = []string{string(stream.VariantMJPEG), string(stream.VariantSnapshot)}
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	src := &Source{
		Name:              req.Name,
		Host:              req.Host,
		Port:              req.Port,
		Username:          req.Username,
		Password:          req.Password,
		Width:             req.Width,
		Height:            req.Height,
		Variants:          variants,
		BackoffCapSeconds: req.BackoffCapSeconds,
		FallbackAfter:     req.FallbackAfter,
		Enabled:           enabled,
	}

	if err := h.store.Create(c.Request().Context(), src); err != nil {
		h.logger.Error("failed to create source", "error", err)
		return shared.InternalError("create_failed", "failed to create source")
	}

	if src.Enabled {
		if _, err := h.registry.Add(src.ToDescriptor()); err != nil {
			h.logger.Error("failed to start capture", "error", err, "source_id", src.ID)
			_ = h.store.Delete(c.Request().Context(), src.ID)
			return shared.InternalError("capture_failed", "failed to start capture")
		}
	}

	return c.JSON(http.StatusCreated, sourceToResponse(src))
}

func (h *Handler) Get(c echo.Context) error {
	src, err := h.store.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("source_not_found", "source not found")
		}
		return shared.InternalError("get_failed", "failed to get source")
	}
	return c.JSON(http.StatusOK, sourceToResponse(src))
}

// Update rewrites the stored definition and restarts the capture session so
// the new settings take effect. Sessions hold an immutable descriptor;
// remove-then-re-add is the only way to change one.
func (h *Handler) Update(c echo.Context) error {
	src, err := h.store.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("source_not_found", "source not found")
		}
		return shared.InternalError("get_failed", "failed to get source")
	}

	var req dto.UpdateSourceRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if err := validateVariants(req.Variants); err != nil {
		return err
	}

	if req.Name != nil {
		src.Name = *req.Name
	}
	if req.Host != nil {
		if *req.Host == "" {
			return shared.BadRequest("missing_host", "host is required")
		}
		src.Host = *req.Host
	}
	if req.Port != nil {
		src.Port = *req.Port
	}
	if req.Username != nil {
		src.Username = *req.Username
	}
	if req.Password != nil {
		src.Password = *req.Password
	}
	if req.Width != nil {
		src.Width = *req.Width
	}
	if req.Height != nil {
		src.Height = *req.Height
	}
	if req.Variants != nil {
		src.Variants = req.Variants
	}
	if req.BackoffCapSeconds != nil {
		src.BackoffCapSeconds = *req.BackoffCapSeconds
	}
	if req.FallbackAfter != nil {
		src.FallbackAfter = *req.FallbackAfter
	}
	if req.Enabled != nil {
		src.Enabled = *req.Enabled
	}

	if err := h.store.Update(c.Request().Context(), src); err != nil {
		h.logger.Error("failed to update source", "error", err, "source_id", src.ID)
		return shared.InternalError("update_failed", "failed to update source")
	}

	if err := h.registry.Remove(src.ID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("failed to stop capture", "error", err, "source_id", src.ID)
	}
	if src.Enabled {
		if _, err := h.registry.Add(src.ToDescriptor()); err != nil {
			h.logger.Error("failed to restart capture", "error", err, "source_id", src.ID)
			return shared.InternalError("capture_failed", "failed to restart capture")
		}
	}

	return c.JSON(http.StatusOK, sourceToResponse(src))
}

func (h *Handler) Delete(c echo.Context) error {
	id := c.Param("id")

	if err := h.store.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("source_not_found", "source not found")
		}
		h.logger.Error("failed to delete source", "error", err, "source_id", id)
		return shared.InternalError("delete_failed", "failed to delete source")
	}

	if err := h.registry.Remove(id); err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("failed to stop capture", "error", err, "source_id", id)
	}

	if h.frameStore != nil {
		if err := h.frameStore.DeleteFrames(c.Request().Context(), id); err != nil {
			h.logger.Error("failed to purge frame archive", "error", err, "source_id", id)
		}
	}

	return c.NoContent(http.StatusNoContent)
}
