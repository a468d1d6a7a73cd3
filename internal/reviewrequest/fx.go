package reviewrequest

import (
	"github.com/smallbiznis/reviewboost/internal/reviewrequest/repository"
	"github.com/smallbiznis/reviewboost/internal/reviewrequest/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reviewrequest.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
