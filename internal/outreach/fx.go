package outreach

import (
	"github.com/smallbiznis/reviewboost/internal/outreach/domain"
	"github.com/smallbiznis/reviewboost/internal/outreach/service"
	"github.com/smallbiznis/reviewboost/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("outreach.service",
	fx.Provide(func(l *ratelimit.Limiter) domain.DispatchLock { return l }),
	fx.Provide(service.New),
)
