package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/inspira-labs/inspira-billing/internal/clock"
	"github.com/inspira-labs/inspira-billing/internal/config"
	"github.com/inspira-labs/inspira-billing/internal/metrics"
	paymentdomain "github.com/inspira-labs/inspira-billing/internal/payment/domain"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Config   config.Config
	Clock    clock.Clock
	GenID    *snowflake.Node
	Repo     paymentdomain.Repository
	Provider paymentdomain.ProviderClient
	PlanSvc  plandomain.Service
	SubSvc   subscriptiondomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	repo        paymentdomain.Repository
	provider    paymentdomain.ProviderClient
	planSvc     plandomain.Service
	subSvc      subscriptiondomain.Service
	metrics     *metrics.Metrics
	orderPrefix string
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		clock:       p.Clock,
		genID:       p.GenID,
		repo:        p.Repo,
		provider:    p.Provider,
		planSvc:     p.PlanSvc,
		subSvc:      p.SubSvc,
		metrics:     p.Metrics,
		orderPrefix: p.Config.Payment.OrderPrefix,
	}
}

// CreateOrder implements domain.Service. The provider is asked first; a row
// is written only once the provider accepted, so there are no dangling local
// pending orders for payments that never existed on the provider side.
func (s *Service) CreateOrder(ctx context.Context, userID snowflake.ID, tier plandomain.Tier, orderType subscriptiondomain.OrderType) (*paymentdomain.PaymentOrder, error) {
	if userID == 0 {
		return nil, paymentdomain.ErrInvalidUser
	}
	if !subscriptiondomain.ValidOrderType(orderType) {
		return nil, paymentdomain.ErrInvalidOrder
	}

	limits, err := s.planSvc.GetTierLimits(ctx, tier)
	if err != nil {
		return nil, err
	}

	order := &paymentdomain.PaymentOrder{
		OrderID:   s.orderPrefix + s.genID.Generate().String(),
		UserID:    userID,
		Type:      orderType,
		Tier:      limits.Tier,
		Status:    paymentdomain.OrderStatusPending,
		AmountFen: limits.AmountFen,
		CreatedAt: s.clock.Now(),
	}

	accepted, err := s.provider.CreateOrder(ctx, order)
	if err != nil {
		s.log.Warn("provider rejected order",
			zap.String("provider", s.provider.Name()),
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
		return nil, err
	}
	order.ProviderReference = accepted.ProviderReference
	order.QRCodeURL = accepted.QRCodeURL

	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return nil, err
	}

	s.metrics.RecordOrderCreated()
	return order, nil
}

// HandleCallback implements domain.Service. The pending-to-terminal flip is a
// conditional update, so the duplicate delivery every provider eventually
// sends resolves to a clean no-op.
func (s *Service) HandleCallback(ctx context.Context, req *paymentdomain.CallbackRequest) error {
	status, paidAt, err := s.validateCallback(req)
	if err != nil {
		s.metrics.RecordPaymentCallback("invalid")
		return err
	}

	order, err := s.repo.FindByOrderID(ctx, s.db, req.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		s.metrics.RecordPaymentCallback("unknown_order")
		return paymentdomain.ErrOrderNotFound
	}

	resolved, err := s.repo.Resolve(ctx, s.db, order.OrderID, status, req.ProviderReference, paidAt)
	if err != nil {
		return err
	}
	if !resolved {
		// Already terminal. The first delivery did all the work.
		s.metrics.RecordPaymentCallback("replay")
		return nil
	}

	if status != paymentdomain.OrderStatusSuccess {
		if order.Type == subscriptiondomain.OrderTypeRenewal {
			if err := s.subSvc.MarkRenewalFailed(ctx, order.UserID); err != nil {
				s.log.Warn("failed to mark renewal failure",
					zap.String("order_id", order.OrderID),
					zap.Error(err),
				)
			}
		}
		s.metrics.RecordPaymentCallback("failed")
		return nil
	}

	if err := s.subSvc.ProvisionQuota(ctx, order.UserID, order.Tier, order.OrderID); err != nil {
		// The payment is settled and recorded; only the entitlement write
		// failed. Surface a distinct error so the caller retries and the
		// reconciler can replay from the success row.
		s.log.Error("provisioning failed after settled payment",
			zap.String("order_id", order.OrderID),
			zap.Int64("user_id", int64(order.UserID)),
			zap.Error(err),
		)
		s.metrics.RecordPaymentCallback("provision_failed")
		return paymentdomain.ErrReconciliationPending
	}

	s.metrics.RecordPaymentCallback("success")
	return nil
}

func (s *Service) validateCallback(req *paymentdomain.CallbackRequest) (paymentdomain.OrderStatus, *time.Time, error) {
	if req == nil {
		return "", nil, paymentdomain.ErrInvalidCallback
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		return "", nil, paymentdomain.ErrInvalidCallback
	}

	var status paymentdomain.OrderStatus
	switch strings.ToLower(strings.TrimSpace(req.Status)) {
	case "success":
		status = paymentdomain.OrderStatusSuccess
	case "failed":
		status = paymentdomain.OrderStatusFailed
	default:
		return "", nil, paymentdomain.ErrInvalidCallback
	}

	var paidAt *time.Time
	if status == paymentdomain.OrderStatusSuccess {
		at := s.clock.Now()
		if req.PaidAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.PaidAt)
			if err != nil {
				return "", nil, paymentdomain.ErrInvalidCallback
			}
			at = parsed.UTC()
		}
		paidAt = &at
	}

	return status, paidAt, nil
}

// QueryPaymentStatus implements domain.Service. Orders are only visible to
// their owner; a mismatched user gets not-found, not forbidden.
func (s *Service) QueryPaymentStatus(ctx context.Context, userID snowflake.ID, orderID string) (*paymentdomain.PaymentOrder, error) {
	if userID == 0 {
		return nil, paymentdomain.ErrInvalidUser
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, paymentdomain.ErrInvalidOrder
	}

	order, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, paymentdomain.ErrOrderNotFound
	}
	return order, nil
}
