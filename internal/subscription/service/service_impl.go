package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/inspira-labs/inspira-billing/internal/clock"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
	"github.com/inspira-labs/inspira-billing/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const expirySweepBatch = 200

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    subscriptiondomain.Repository
	PlanSvc plandomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock   clock.Clock
	repo    subscriptiondomain.Repository
	plansvc plandomain.Service
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		clock:   p.Clock,
		repo:    p.Repo,
		plansvc: p.PlanSvc,
	}
}

// ProvisionQuota implements domain.Service. It is the only path that resets
// monthly counters; idempotency is keyed on the funding order.
func (s *Service) ProvisionQuota(ctx context.Context, userID snowflake.ID, tier plandomain.Tier, orderID string) error {
	if userID == 0 {
		return subscriptiondomain.ErrInvalidUser
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return subscriptiondomain.ErrInvalidOrder
	}

	limits, err := s.plansvc.GetTierLimits(ctx, tier)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	periodEnd := now.Add(time.Duration(limits.PeriodDays) * 24 * time.Hour)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		if subscription == nil {
			subscription = &subscriptiondomain.Subscription{
				UserID:             userID,
				Tier:               tier,
				Status:             subscriptiondomain.SubscriptionStatusActive,
				MonthlyQuotaLimit:  limits.MonthlyQuotaLimit,
				MonthlyQuotaUsed:   0,
				CurrentPeriodStart: now,
				CurrentPeriodEnd:   periodEnd,
				AutoRenew:          true,
				LastOrderID:        orderID,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := s.repo.Insert(ctx, tx, subscription); err != nil {
				if db.IsDuplicateKeyErr(err) {
					// Lost a create race on a brand-new user. The retry will
					// find the winner's row and take the update path.
					return subscriptiondomain.ErrProvisionRace
				}
				return err
			}
			return nil
		}

		// Replay of the order that already provisioned this period.
		if subscription.LastOrderID == orderID {
			return nil
		}

		subscription.Tier = tier
		subscription.Status = subscriptiondomain.SubscriptionStatusActive
		subscription.MonthlyQuotaLimit = limits.MonthlyQuotaLimit
		subscription.MonthlyQuotaUsed = 0
		subscription.CurrentPeriodStart = now
		subscription.CurrentPeriodEnd = periodEnd
		subscription.AutoRenew = true
		subscription.LastOrderID = orderID
		subscription.UpdatedAt = now

		return s.repo.Update(ctx, tx, subscription)
	})
}

// CancelSubscription implements domain.Service.
func (s *Service) CancelSubscription(ctx context.Context, userID snowflake.ID) (time.Time, error) {
	if userID == 0 {
		return time.Time{}, subscriptiondomain.ErrInvalidUser
	}

	var periodEnd time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if subscription == nil || subscription.Status == subscriptiondomain.SubscriptionStatusExpired {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		if subscription.Status == subscriptiondomain.SubscriptionStatusCancelled {
			periodEnd = subscription.CurrentPeriodEnd
			return nil
		}

		if !isTransitionAllowed(subscription.Status, subscriptiondomain.SubscriptionStatusCancelled) {
			return subscriptiondomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		subscription.Status = subscriptiondomain.SubscriptionStatusCancelled
		subscription.AutoRenew = false
		subscription.UpdatedAt = now
		periodEnd = subscription.CurrentPeriodEnd

		return s.repo.Update(ctx, tx, subscription)
	})
	if err != nil {
		return time.Time{}, err
	}

	return periodEnd, nil
}

// MarkRenewalFailed implements domain.Service.
func (s *Service) MarkRenewalFailed(ctx context.Context, userID snowflake.ID) error {
	if userID == 0 {
		return subscriptiondomain.ErrInvalidUser
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		if subscription.Status == subscriptiondomain.SubscriptionStatusGracePeriod {
			return nil
		}
		if !isTransitionAllowed(subscription.Status, subscriptiondomain.SubscriptionStatusGracePeriod) {
			return subscriptiondomain.ErrInvalidTransition
		}

		subscription.Status = subscriptiondomain.SubscriptionStatusGracePeriod
		subscription.UpdatedAt = s.clock.Now()

		s.log.Info("subscription entered grace period",
			zap.String("user_id", userID.String()),
			zap.Time("period_end", subscription.CurrentPeriodEnd),
		)

		return s.repo.Update(ctx, tx, subscription)
	})
}

// ExpireDue implements domain.Service.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	graceCutoff := now.Add(-subscriptiondomain.GracePeriodWindow)

	due, err := s.repo.ListDueForExpiry(ctx, s.db, now, graceCutoff, expirySweepBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range due {
		userID := due[i].UserID
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			subscription, err := s.repo.FindByUserIDForUpdate(ctx, tx, userID)
			if err != nil {
				return err
			}
			if subscription == nil {
				return nil
			}
			if !isTransitionAllowed(subscription.Status, subscriptiondomain.SubscriptionStatusExpired) {
				return nil
			}

			subscription.Status = subscriptiondomain.SubscriptionStatusExpired
			subscription.UpdatedAt = now
			return s.repo.Update(ctx, tx, subscription)
		})
		if err != nil {
			s.log.Warn("subscription expiry failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			continue
		}
		expired++
	}

	return expired, nil
}

// GetByUserID implements domain.Service.
func (s *Service) GetByUserID(ctx context.Context, userID snowflake.ID) (subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidUser
	}

	subscription, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if subscription == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}

	return *subscription, nil
}

func isTransitionAllowed(current, target subscriptiondomain.SubscriptionStatus) bool {
	switch current {
	case subscriptiondomain.SubscriptionStatusActive:
		return target == subscriptiondomain.SubscriptionStatusCancelled ||
			target == subscriptiondomain.SubscriptionStatusGracePeriod
	case subscriptiondomain.SubscriptionStatusGracePeriod:
		return target == subscriptiondomain.SubscriptionStatusActive ||
			target == subscriptiondomain.SubscriptionStatusExpired
	case subscriptiondomain.SubscriptionStatusCancelled:
		return target == subscriptiondomain.SubscriptionStatusExpired
	case subscriptiondomain.SubscriptionStatusExpired:
		return target == subscriptiondomain.SubscriptionStatusActive
	default:
		return false
	}
}
