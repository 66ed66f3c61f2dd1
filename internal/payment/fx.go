package payment

import (
	"github.com/inspira-labs/inspira-billing/internal/payment/provider"
	"github.com/inspira-labs/inspira-billing/internal/payment/repository"
	"github.com/inspira-labs/inspira-billing/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(provider.NewProviderClient),
	fx.Provide(service.NewService),
)
