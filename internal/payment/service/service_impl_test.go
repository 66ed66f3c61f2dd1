package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/inspira-labs/inspira-billing/internal/clock"
	"github.com/inspira-labs/inspira-billing/internal/config"
	paymentdomain "github.com/inspira-labs/inspira-billing/internal/payment/domain"
	paymentrepo "github.com/inspira-labs/inspira-billing/internal/payment/repository"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
	planservice "github.com/inspira-labs/inspira-billing/internal/plan/service"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
	subscriptionrepo "github.com/inspira-labs/inspira-billing/internal/subscription/repository"
	subscriptionservice "github.com/inspira-labs/inspira-billing/internal/subscription/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubProvider struct {
	err     error
	created int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CreateOrder(ctx context.Context, order *paymentdomain.PaymentOrder) (*paymentdomain.ProviderOrder, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.created++
	return &paymentdomain.ProviderOrder{
		ProviderReference: "STUB-" + order.OrderID,
		QRCodeURL:         "https://stub.pay.invalid/qr/" + order.OrderID,
	}, nil
}

type fixture struct {
	db       *gorm.DB
	fake     *clock.FakeClock
	node     *snowflake.Node
	provider *stubProvider
	svc      paymentdomain.Service
	subSvc   subscriptiondomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:payment_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&paymentdomain.PaymentOrder{}, &subscriptiondomain.Subscription{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))
	catalog, err := config.NewStaticTierCatalogHolder(config.DefaultTierCatalog())
	require.NoError(t, err)
	planSvc := planservice.NewService(planservice.Params{Log: zap.NewNop(), Catalog: catalog})
	subSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		Clock:   fake,
		Repo:    subscriptionrepo.Provide(),
		PlanSvc: planSvc,
	})

	provider := &stubProvider{}
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Config:   config.Config{Payment: config.PaymentConfig{OrderPrefix: "INSPI"}},
		Clock:    fake,
		GenID:    node,
		Repo:     paymentrepo.Provide(),
		Provider: provider,
		PlanSvc:  planSvc,
		SubSvc:   subSvc,
	})

	return &fixture{db: db, fake: fake, node: node, provider: provider, svc: svc, subSvc: subSvc}
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.node.Generate()

	order, err := f.svc.CreateOrder(ctx, userID, plandomain.TierBasic, subscriptiondomain.OrderTypeInitial)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.OrderID, "INSPI"))
	assert.Equal(t, paymentdomain.OrderStatusPending, order.Status)
	assert.Equal(t, int64(2900), order.AmountFen)
	assert.Equal(t, "STUB-"+order.OrderID, order.ProviderReference)
	assert.NotEmpty(t, order.QRCodeURL)

	second, err := f.svc.CreateOrder(ctx, userID, plandomain.TierBasic, subscriptiondomain.OrderTypeInitial)
	require.NoError(t, err)
	assert.NotEqual(t, order.OrderID, second.OrderID, "order ids must be unique")
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateOrder(ctx, 0, plandomain.TierBasic, subscriptiondomain.OrderTypeInitial)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidUser)

	_, err = f.svc.CreateOrder(ctx, f.node.Generate(), plandomain.TierBasic, subscriptiondomain.OrderType("upgrade"))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidOrder)

	_, err = f.svc.CreateOrder(ctx, f.node.Generate(), plandomain.TierFree, subscriptiondomain.OrderTypeInitial)
	assert.ErrorIs(t, err, plandomain.ErrFreeTierNotPurchasable)
}

func TestCreateOrderProviderFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.err = paymentdomain.ErrProviderUnavailable

	_, err := f.svc.CreateOrder(ctx, f.node.Generate(), plandomain.TierBasic, subscriptiondomain.OrderTypeInitial)
	assert.ErrorIs(t, err, paymentdomain.ErrProviderUnavailable)

	var count int64
	require.NoError(t, f.db.Raw("SELECT COUNT(1) FROM payment_orders").Scan(&count).Error)
	assert.Zero(t, count, "a rejected order must leave no row behind")
}

func TestHandleCallbackSuccessProvisions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.node.Generate()

	order, err := f.svc.CreateOrder(ctx, userID, plandomain.TierPro, subscriptiondomain.OrderTypeInitial)
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleCallback(ctx, &paymentdomain.CallbackRequest{
		OrderID:           order.OrderID,
		ProviderReference: order.ProviderReference,
		Status:            "success",
	}))

	stored, err := f.svc.QueryPaymentStatus(ctx, userID, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OrderStatusSuccess, stored.Status)
	require.NotNil(t, stored.PaidAt)

	sub, err := f.subSvc.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, plandomain.TierPro, sub.Tier)
	assert.Equal(t, order.OrderID, sub.LastOrderID)
}

func TestHandleCallbackReplayIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.node.Generate()

	order, err := f.svc.CreateOrder(ctx, userID, plandomain.TierBasic, subscriptiondomain.OrderTypeInitial)
	require.NoError(t, err)

	callback := &paymentdomain.CallbackRequest{OrderID: order.OrderID, Status: "success"}
	require.NoError(t, f.svc.HandleCallback(ctx, callback))

	// Spend quota, then redeliver. The replay must not reset anything.
	repo := subscriptionrepo.Provide()
	_, ok, err := repo.ConsumeMonthlyQuota(ctx, f.db, userID, f.fake.Now())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.svc.HandleCallback(ctx, callback), "replay must succeed")

	sub, err := f.subSvc.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.MonthlyQuotaUsed)

	// A contradictory late delivery is swallowed the same way.
	require.NoError(t, f.svc.HandleCallback(ctx, &paymentdomain.CallbackRequest{
		OrderID: order.OrderID,
		Status:  "failed",
	}))
	stored, err := f.svc.QueryPaymentStatus(ctx, userID, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OrderStatusSuccess, stored.Status)
}

func TestHandleCallbackValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		req  *paymentdomain.CallbackRequest
		want error
	}{
		{"nil request", nil, paymentdomain.ErrInvalidCallback},
		{"missing order id", &paymentdomain.CallbackRequest{Status: "success"}, paymentdomain.ErrInvalidCallback},
		{"unknown status", &paymentdomain.CallbackRequest{OrderID: "INSPI1", Status: "refunded"}, paymentdomain.ErrInvalidCallback},
		{"bad paid_at", &paymentdomain.CallbackRequest{OrderID: "INSPI1", Status: "success", PaidAt: "yesterday"}, paymentdomain.ErrInvalidCallback},
		{"unknown order", &paymentdomain.CallbackRequest{OrderID: "INSPI404", Status: "success"}, paymentdomain.ErrOrderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, f.svc.HandleCallback(ctx, tt.req), tt.want)
		})
	}
}

func TestHandleCallbackRenewalFailureEntersGrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.node.Generate()

	first, err := f.svc.CreateOrder(ctx, userID, plandomain.TierBasic, subscriptiondomain.OrderTypeInitial)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleCallback(ctx, &paymentdomain.CallbackRequest{OrderID: first.OrderID, Status: "success"}))

	renewal, err := f.svc.CreateOrder(ctx, userID, plandomain.TierBasic, subscriptiondomain.OrderTypeRenewal)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleCallback(ctx, &paymentdomain.CallbackRequest{OrderID: renewal.OrderID, Status: "failed"}))

	sub, err := f.subSvc.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusGracePeriod, sub.Status)

	stored, err := f.svc.QueryPaymentStatus(ctx, userID, renewal.OrderID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OrderStatusFailed, stored.Status)
	assert.Nil(t, stored.PaidAt)
}

func TestHandleCallbackProvisioningFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.node.Generate()

	order, err := f.svc.CreateOrder(ctx, userID, plandomain.TierBasic, subscriptiondomain.OrderTypeInitial)
	require.NoError(t, err)

	// Break the entitlement store so provisioning cannot land.
	require.NoError(t, f.db.Migrator().RenameTable("subscriptions", "subscriptions_hidden"))

	err = f.svc.HandleCallback(ctx, &paymentdomain.CallbackRequest{OrderID: order.OrderID, Status: "success"})
	assert.ErrorIs(t, err, paymentdomain.ErrReconciliationPending)

	// The settlement itself is durable; only the entitlement is missing.
	stored, err := f.svc.QueryPaymentStatus(ctx, userID, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OrderStatusSuccess, stored.Status)

	require.NoError(t, f.db.Migrator().RenameTable("subscriptions_hidden", "subscriptions"))

	var count int64
	require.NoError(t, f.db.Raw(
		"SELECT COUNT(1) FROM subscriptions WHERE user_id = ?", userID,
	).Scan(&count).Error)
	assert.Zero(t, count)
}

func TestQueryPaymentStatusOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.node.Generate()
	stranger := f.node.Generate()

	order, err := f.svc.CreateOrder(ctx, owner, plandomain.TierBasic, subscriptiondomain.OrderTypeInitial)
	require.NoError(t, err)

	_, err = f.svc.QueryPaymentStatus(ctx, stranger, order.OrderID)
	assert.ErrorIs(t, err, paymentdomain.ErrOrderNotFound, "foreign orders read as missing")

	_, err = f.svc.QueryPaymentStatus(ctx, owner, "INSPI404")
	assert.ErrorIs(t, err, paymentdomain.ErrOrderNotFound)

	got, err := f.svc.QueryPaymentStatus(ctx, owner, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, got.OrderID)
}
