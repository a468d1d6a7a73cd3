package redirect

import (
	"github.com/smallbiznis/reviewboost/internal/redirect/service"
	"go.uber.org/fx"
)

var Module = fx.Module("redirect.service",
	fx.Provide(service.New),
)
