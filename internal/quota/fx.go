package quota

import (
	"github.com/inspira-labs/inspira-billing/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(service.NewService),
)
