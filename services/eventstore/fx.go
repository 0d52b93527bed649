package eventstore

import (
	"go.uber.org/fx"
)

var Module = fx.Module("eventstore.service",
	fx.Provide(NewService),
	fx.Invoke(Migrate),
)
