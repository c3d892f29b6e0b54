package organization

import (
	"github.com/storyloom/storyloom/internal/organization/repository"
	"github.com/storyloom/storyloom/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
