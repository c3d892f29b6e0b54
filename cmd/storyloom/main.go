// Command storyloom runs the API server and the sweep loop in one process,
// the default for local and self-hosted deployments.
package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/storyloom/storyloom/internal/authorization"
	"github.com/storyloom/storyloom/internal/clock"
	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/entitlement"
	"github.com/storyloom/storyloom/internal/logger"
	"github.com/storyloom/storyloom/internal/migration"
	"github.com/storyloom/storyloom/internal/observability"
	"github.com/storyloom/storyloom/internal/organization"
	"github.com/storyloom/storyloom/internal/ratelimit"
	"github.com/storyloom/storyloom/internal/scheduler"
	"github.com/storyloom/storyloom/internal/server"
	"github.com/storyloom/storyloom/internal/story"
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

		organization.Module,
		story.Module,
		usage.Module,
		entitlement.Module,
		authorization.Module,
		ratelimit.Module,
		scheduler.Module,
		scheduler.RunModule,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
			s.RegisterInternalRoutes()
		}),
		fx.Invoke(server.RunHTTP),
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
