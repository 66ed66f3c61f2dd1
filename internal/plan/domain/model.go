// Package domain describes the plan catalog consumed by provisioning.
package domain

import (
	"context"
	"errors"
)

// Tier identifies a subscription plan.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
	TierAdmin Tier = "admin"
)

// TierLimits carries the entitlements of a paid tier.
type TierLimits struct {
	Tier              Tier
	MonthlyQuotaLimit int
	PeriodDays        int
	AmountFen         int64
	Features          []string
}

type Service interface {
	GetTierLimits(ctx context.Context, tier Tier) (TierLimits, error)
}

var (
	ErrUnknownTier            = errors.New("unknown_tier")
	ErrFreeTierNotPurchasable = errors.New("free_tier_not_purchasable")
)

func ParseTier(value string) (Tier, error) {
	switch Tier(value) {
	case TierFree, TierBasic, TierPro, TierAdmin:
		return Tier(value), nil
	default:
		return "", ErrUnknownTier
	}
}
