package shortcode

import (
	"github.com/smallbiznis/reviewboost/internal/shortcode/repository"
	"github.com/smallbiznis/reviewboost/internal/shortcode/service"
	"go.uber.org/fx"
)

var Module = fx.Module("shortcode.registry",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
