package bootstrap

import (
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/visionsuite/camstream/internal/frames"
	"github.com/visionsuite/camstream/internal/source"
	"github.com/visionsuite/camstream/internal/stream"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideSourceHandler(store *source.Store, registry *stream.Registry, frameStore *frames.Store, logger *slog.Logger) *source.Handler {
	return source.NewHandler(store, registry, frameStore, logger.With("handler", "source"))
}

func ProvideStreamHandler(registry *stream.Registry, logger *slog.Logger) *stream.Handler {
	return stream.NewHandler(registry, logger.With("handler", "stream"))
}

func ProvideFramesHandler(store *frames.Store, logger *slog.Logger) *frames.Handler {
	return frames.NewHandler(store, logger.With("handler", "frames"))
}

type HandlerParams struct {
	fx.In

	SourceHandler   *source.Handler
	StreamHandler   *stream.Handler
	FramesHandler   *frames.Handler
	MetricsGatherer *prometheus.Registry
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")

	params.SourceHandler.RegisterRoutes(api.Group("/sources"))
	params.StreamHandler.RegisterRoutes(api.Group("/streams"))
	params.FramesHandler.RegisterRoutes(api.Group("/streams/:id/frames"))

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(params.MetricsGatherer, promhttp.HandlerOpts{})))
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideSourceHandler,
		ProvideStreamHandler,
		ProvideFramesHandler,
	),
	fx.Invoke(RegisterRoutes),
)
