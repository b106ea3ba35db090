package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"github.com/visionsuite/camstream/internal/frames"
	"github.com/visionsuite/camstream/internal/source"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideSourceStore(db *gorm.DB) *source.Store {
	return source.NewStore(db)
}

func ProvideFrameStore(redisClient *redis.Client, cfg *Config) *frames.Store {
	return frames.NewStore(redisClient, cfg.FrameTTL)
}

func RunMigrations(sourceStore *source.Store) error {
	return sourceStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideSourceStore,
		ProvideFrameStore,
	),
	fx.Invoke(RunMigrations),
)
