package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/inspira-labs/inspira-billing/internal/clock"
	"github.com/inspira-labs/inspira-billing/internal/config"
	"github.com/inspira-labs/inspira-billing/internal/metrics"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
	quotadomain "github.com/inspira-labs/inspira-billing/internal/quota/domain"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
	usagedomain "github.com/inspira-labs/inspira-billing/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Clock   clock.Clock
	GenID   *snowflake.Node
	Usage   usagedomain.Repository
	SubRepo subscriptiondomain.Repository
	SubSvc  subscriptiondomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock      clock.Clock
	genID      *snowflake.Node
	usage      usagedomain.Repository
	subRepo    subscriptiondomain.Repository
	subSvc     subscriptiondomain.Service
	metrics    *metrics.Metrics
	dailyLimit int
}

func NewService(p ServiceParam) quotadomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("quota.service"),

		clock:      p.Clock,
		genID:      p.GenID,
		usage:      p.Usage,
		subRepo:    p.SubRepo,
		subSvc:     p.SubSvc,
		metrics:    p.Metrics,
		dailyLimit: p.Config.Quota.FreeDailyLimit,
	}
}

// CheckAndConsume implements domain.Service. The decision and the debit are
// one conditional update against the store; a plain read-then-write would let
// two concurrent requests both see "1 remaining" and both be admitted.
func (s *Service) CheckAndConsume(ctx context.Context, userID snowflake.ID, quotaType usagedomain.QuotaType) (quotadomain.QuotaResult, error) {
	if userID == 0 {
		return quotadomain.QuotaResult{}, quotadomain.ErrInvalidUser
	}
	if !usagedomain.ValidQuotaType(quotaType) {
		return quotadomain.QuotaResult{}, quotadomain.ErrInvalidQuotaType
	}

	subscription, err := s.subRepo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return quotadomain.QuotaResult{}, err
	}

	now := s.clock.Now()
	if subscription.HasPaidAccess(now) {
		return s.consumeMonthly(ctx, userID, now)
	}
	return s.consumeDaily(ctx, userID, quotaType, now)
}

func (s *Service) consumeMonthly(ctx context.Context, userID snowflake.ID, now time.Time) (quotadomain.QuotaResult, error) {
	remaining, ok, err := s.subRepo.ConsumeMonthlyQuota(ctx, s.db, userID, now)
	if err != nil {
		return quotadomain.QuotaResult{}, err
	}

	result := quotadomain.QuotaResult{
		Allowed:   ok,
		Kind:      quotadomain.QuotaKindMonthly,
		Remaining: remaining,
	}
	if !ok {
		result.Reason = quotadomain.ReasonMonthlyExhausted
	}

	s.metrics.RecordQuotaDecision(string(result.Kind), result.Allowed)
	return result, nil
}

func (s *Service) consumeDaily(ctx context.Context, userID snowflake.ID, quotaType usagedomain.QuotaType, now time.Time) (quotadomain.QuotaResult, error) {
	day := usagedomain.DayKey(now)

	count, ok, err := s.usage.IncrementIfBelow(ctx, s.db, userID, quotaType, day, s.dailyLimit, now)
	if err != nil {
		return quotadomain.QuotaResult{}, err
	}

	remaining := s.dailyLimit - count
	if remaining < 0 {
		remaining = 0
	}

	result := quotadomain.QuotaResult{
		Allowed:   ok,
		Kind:      quotadomain.QuotaKindDaily,
		Remaining: remaining,
	}
	if !ok {
		result.Reason = quotadomain.ReasonDailyExhausted
	}

	s.metrics.RecordQuotaDecision(string(result.Kind), result.Allowed)
	return result, nil
}

// CreateSubscription implements domain.Service. Comp provisioning rides the
// regular provisioning path with a synthetic order so replays stay harmless.
func (s *Service) CreateSubscription(ctx context.Context, userID snowflake.ID) error {
	if userID == 0 {
		return quotadomain.ErrInvalidUser
	}

	compOrderID := fmt.Sprintf("COMP%s", s.genID.Generate().String())
	return s.subSvc.ProvisionQuota(ctx, userID, plandomain.TierBasic, compOrderID)
}

// GetQuotaStatus implements domain.Service.
func (s *Service) GetQuotaStatus(ctx context.Context, userID snowflake.ID) (quotadomain.QuotaStatus, error) {
	if userID == 0 {
		return quotadomain.QuotaStatus{}, quotadomain.ErrInvalidUser
	}

	subscription, err := s.subRepo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return quotadomain.QuotaStatus{}, err
	}

	now := s.clock.Now()
	if subscription.HasPaidAccess(now) {
		periodEnd := subscription.CurrentPeriodEnd
		return quotadomain.QuotaStatus{
			Tier:      subscription.Tier,
			Kind:      quotadomain.QuotaKindMonthly,
			Limit:     subscription.MonthlyQuotaLimit,
			Used:      subscription.MonthlyQuotaUsed,
			Remaining: subscription.QuotaRemaining(),
			PeriodEnd: &periodEnd,
		}, nil
	}

	day := usagedomain.DayKey(now)
	count, err := s.usage.CountFor(ctx, s.db, userID, usagedomain.QuotaTypeCreate, day)
	if err != nil {
		return quotadomain.QuotaStatus{}, err
	}

	remaining := s.dailyLimit - count
	if remaining < 0 {
		remaining = 0
	}

	return quotadomain.QuotaStatus{
		Tier:      plandomain.TierFree,
		Kind:      quotadomain.QuotaKindDaily,
		Limit:     s.dailyLimit,
		Used:      count,
		Remaining: remaining,
	}, nil
}
