package providers

import (
	"github.com/smallbiznis/reviewboost/internal/providers/dispatch"
	"github.com/smallbiznis/reviewboost/internal/providers/email"
	"github.com/smallbiznis/reviewboost/internal/providers/places"
	"github.com/smallbiznis/reviewboost/internal/providers/textgen"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	dispatch.Module,
	places.Module,
	textgen.Module,
)
