package insights

import "go.uber.org/fx"

var Module = fx.Module("insights.service",
	fx.Provide(NewService),
)
