package service

import (
	"context"

	"github.com/inspira-labs/inspira-billing/internal/config"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Catalog *config.TierCatalogHolder
}

type Service struct {
	log     *zap.Logger
	catalog *config.TierCatalogHolder
}

func NewService(p Params) plandomain.Service {
	return &Service{
		log:     p.Log.Named("plan.service"),
		catalog: p.Catalog,
	}
}

// GetTierLimits implements domain.Service.
func (s *Service) GetTierLimits(ctx context.Context, tier plandomain.Tier) (plandomain.TierLimits, error) {
	if tier == plandomain.TierFree {
		return plandomain.TierLimits{}, plandomain.ErrFreeTierNotPurchasable
	}
	entry, ok := s.catalog.Get().Tiers[string(tier)]
	if !ok {
		return plandomain.TierLimits{}, plandomain.ErrUnknownTier
	}
	return plandomain.TierLimits{
		Tier:              tier,
		MonthlyQuotaLimit: entry.MonthlyQuotaLimit,
		PeriodDays:        entry.PeriodDays,
		AmountFen:         entry.AmountFen,
		Features:          entry.Features,
	}, nil
}
