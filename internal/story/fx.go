package story

import (
	"github.com/storyloom/storyloom/internal/story/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("story.repository",
	fx.Provide(repository.Provide),
)
