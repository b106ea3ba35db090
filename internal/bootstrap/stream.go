package bootstrap

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/visionsuite/camstream/internal/frames"
	"github.com/visionsuite/camstream/internal/source"
	"github.com/visionsuite/camstream/internal/stream"
	"go.uber.org/fx"
)

func ProvideMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideStreamMetrics(reg *prometheus.Registry) *stream.Metrics {
	return stream.NewMetrics(reg)
}

func ProvideConnector(cfg *Config) stream.Connector {
	return &stream.HTTPConnector{
		ConnectTimeout:   cfg.ConnectTimeout,
		ReadTimeout:      cfg.ReadTimeout,
		SnapshotInterval: cfg.SnapshotInterval,
	}
}

func ProvideRegistry(connector stream.Connector, frameStore *frames.Store, metrics *stream.Metrics, logger *slog.Logger, cfg *Config) *stream.Registry {
	return stream.NewRegistry(connector, frameStore, metrics, logger.With("component", "registry"), stream.Config{
		ConnectTimeout:    cfg.ConnectTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		BackoffCap:        cfg.BackoffCap,
		FallbackAfter:     cfg.FallbackAfter,
		SnapshotInterval:  cfg.SnapshotInterval,
		ArchiveInterval:   cfg.ArchiveInterval,
		RemoveJoinTimeout: cfg.RemoveJoinTimeout,
	})
}

// StartCapture registers every enabled source on boot and drains the
// registry on shutdown.
func StartCapture(lc fx.Lifecycle, registry *stream.Registry, sourceStore *source.Store, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sources, err := sourceStore.ListEnabled(ctx)
			if err != nil {
				return err
			}
			for _, src := range sources {
				if _, err := registry.Add(src.ToDescriptor()); err != nil {
					logger.Error("failed to start capture", "error", err, "source_id", src.ID)
				}
			}
			logger.Info("capture sessions started", "count", registry.Count())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return registry.Shutdown(ctx)
		},
	})
}

var StreamModule = fx.Options(
	fx.Provide(
		ProvideMetricsRegistry,
		ProvideStreamMetrics,
		ProvideConnector,
		ProvideRegistry,
	),
	fx.Invoke(StartCapture),
)
