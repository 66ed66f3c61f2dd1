package usage

import (
	"github.com/inspira-labs/inspira-billing/internal/usage/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.store",
	fx.Provide(repository.Provide),
)
