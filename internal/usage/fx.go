package usage

import (
	"github.com/storyloom/storyloom/internal/usage/repository"
	"github.com/storyloom/storyloom/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
