package places

import (
	"github.com/smallbiznis/reviewboost/internal/cache"
	"github.com/smallbiznis/reviewboost/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxCachedPlaces = 1024

var Module = fx.Module("providers.places",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Resolver {
	google := NewGoogle(GoogleConfig{
		APIKey:  cfg.Places.APIKey,
		Timeout: cfg.Places.Timeout,
	}, nil, log)
	store := cache.NewTTLCache[string, Place](cache.WithMaxEntries(maxCachedPlaces))
	return NewCached(google, store, cfg.Places.CacheTTL)
}
