package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/storyloom/storyloom/internal/clock"
	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/logger"
	"github.com/storyloom/storyloom/internal/migration"
	"github.com/storyloom/storyloom/internal/observability"
	"github.com/storyloom/storyloom/internal/organization"
	"github.com/storyloom/storyloom/internal/scheduler"
	"github.com/storyloom/storyloom/internal/usage"
	"github.com/storyloom/storyloom/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Repositories the sweep operates on.
		organization.Module,
		usage.Module,

		// No server module.
		scheduler.Module,
		scheduler.RunModule,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
