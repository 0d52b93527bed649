package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"makersclub-insights/internal/httpapi"
	"makersclub-insights/pkg/config"
	"makersclub-insights/pkg/db"
	"makersclub-insights/pkg/health"
	"makersclub-insights/pkg/logger"
	"makersclub-insights/pkg/server"
	"makersclub-insights/services/digest"
	"makersclub-insights/services/eventstore"
	"makersclub-insights/services/insights"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Provide(
			provideSnowflakeNode,
		),
		eventstore.Module,
		insights.Module,
		digest.Module,
		health.Module,
		httpapi.Module,
		server.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
