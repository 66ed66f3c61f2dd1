package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/inspira-labs/inspira-billing/internal/config"
	paymentdomain "github.com/inspira-labs/inspira-billing/internal/payment/domain"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
	quotadomain "github.com/inspira-labs/inspira-billing/internal/quota/domain"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
	usagedomain "github.com/inspira-labs/inspira-billing/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// -- Mocks --

type quotaMock struct {
	mock.Mock
}

func (m *quotaMock) CheckAndConsume(ctx context.Context, userID snowflake.ID, quotaType usagedomain.QuotaType) (quotadomain.QuotaResult, error) {
	args := m.Called(ctx, userID, quotaType)
	return args.Get(0).(quotadomain.QuotaResult), args.Error(1)
}

func (m *quotaMock) CreateSubscription(ctx context.Context, userID snowflake.ID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *quotaMock) GetQuotaStatus(ctx context.Context, userID snowflake.ID) (quotadomain.QuotaStatus, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(quotadomain.QuotaStatus), args.Error(1)
}

type subscriptionMock struct {
	mock.Mock
}

func (m *subscriptionMock) ProvisionQuota(ctx context.Context, userID snowflake.ID, tier plandomain.Tier, orderID string) error {
	return nil
}

func (m *subscriptionMock) CancelSubscription(ctx context.Context, userID snowflake.ID) (time.Time, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *subscriptionMock) MarkRenewalFailed(ctx context.Context, userID snowflake.ID) error {
	return nil
}

func (m *subscriptionMock) ExpireDue(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *subscriptionMock) GetByUserID(ctx context.Context, userID snowflake.ID) (subscriptiondomain.Subscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(subscriptiondomain.Subscription), args.Error(1)
}

type paymentMock struct {
	mock.Mock
}

func (m *paymentMock) CreateOrder(ctx context.Context, userID snowflake.ID, tier plandomain.Tier, orderType subscriptiondomain.OrderType) (*paymentdomain.PaymentOrder, error) {
	args := m.Called(ctx, userID, tier, orderType)
	order := args.Get(0)
	if order == nil {
		return nil, args.Error(1)
	}
	return order.(*paymentdomain.PaymentOrder), args.Error(1)
}

func (m *paymentMock) HandleCallback(ctx context.Context, req *paymentdomain.CallbackRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *paymentMock) QueryPaymentStatus(ctx context.Context, userID snowflake.ID, orderID string) (*paymentdomain.PaymentOrder, error) {
	args := m.Called(ctx, userID, orderID)
	order := args.Get(0)
	if order == nil {
		return nil, args.Error(1)
	}
	return order.(*paymentdomain.PaymentOrder), args.Error(1)
}

// -- Harness --

type harness struct {
	engine  *gin.Engine
	quota   *quotaMock
	sub     *subscriptionMock
	payment *paymentMock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	quota := &quotaMock{}
	sub := &subscriptionMock{}
	payment := &paymentMock{}

	srv := NewServer(ServerParams{
		Gin:        NewEngine(),
		Log:        zap.NewNop(),
		Cfg:        config.Config{},
		QuotaSvc:   quota,
		SubSvc:     sub,
		PaymentSvc: payment,
	})

	return &harness{engine: srv.Engine(), quota: quota, sub: sub, payment: payment}
}

func (h *harness) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}

	recorder := httptest.NewRecorder()
	h.engine.ServeHTTP(recorder, req)
	return recorder
}

// -- Tests --

func TestConsumeQuotaAllowed(t *testing.T) {
	h := newHarness(t)
	userID := snowflake.ID(12345)

	h.quota.On("CheckAndConsume", mock.Anything, userID, usagedomain.QuotaTypeCreate).
		Return(quotadomain.QuotaResult{Allowed: true, Kind: quotadomain.QuotaKindDaily, Remaining: 2}, nil)

	resp := h.do(t, http.MethodPost, "/v1/quota/consume", "12345", gin.H{"quota_type": "create"})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data quotadomain.QuotaResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Data.Allowed)
	assert.Equal(t, 2, body.Data.Remaining)
}

func TestConsumeQuotaDeniedIsStill200(t *testing.T) {
	h := newHarness(t)
	userID := snowflake.ID(12345)

	h.quota.On("CheckAndConsume", mock.Anything, userID, usagedomain.QuotaTypeCreate).
		Return(quotadomain.QuotaResult{
			Allowed: false,
			Kind:    quotadomain.QuotaKindDaily,
			Reason:  quotadomain.ReasonDailyExhausted,
		}, nil)

	resp := h.do(t, http.MethodPost, "/v1/quota/consume", "12345", gin.H{"quota_type": "create"})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data quotadomain.QuotaResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Data.Allowed)
	assert.Equal(t, quotadomain.ReasonDailyExhausted, body.Data.Reason)
}

func TestConsumeQuotaRequiresUser(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		userID string
	}{
		{"missing header", ""},
		{"malformed header", "not-a-number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.do(t, http.MethodPost, "/v1/quota/consume", tt.userID, gin.H{"quota_type": "create"})
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
		})
	}
}

func TestConsumeQuotaInvalidType(t *testing.T) {
	h := newHarness(t)
	userID := snowflake.ID(12345)

	h.quota.On("CheckAndConsume", mock.Anything, userID, usagedomain.QuotaType("mint")).
		Return(quotadomain.QuotaResult{}, quotadomain.ErrInvalidQuotaType)

	resp := h.do(t, http.MethodPost, "/v1/quota/consume", "12345", gin.H{"quota_type": "mint"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCancelSubscription(t *testing.T) {
	h := newHarness(t)
	userID := snowflake.ID(777)
	periodEnd := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	h.sub.On("CancelSubscription", mock.Anything, userID).Return(periodEnd, nil)

	resp := h.do(t, http.MethodDelete, "/v1/subscriptions", "777", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data struct {
			Status        string `json:"status"`
			ActiveUntil   string `json:"active_until"`
			QuotaRetained bool   `json:"quota_retained"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "cancelled", body.Data.Status)
	assert.Equal(t, periodEnd.Format(time.RFC3339), body.Data.ActiveUntil)
	assert.True(t, body.Data.QuotaRetained)
}

func TestCancelSubscriptionNotFound(t *testing.T) {
	h := newHarness(t)
	userID := snowflake.ID(777)

	h.sub.On("CancelSubscription", mock.Anything, userID).
		Return(time.Time{}, subscriptiondomain.ErrSubscriptionNotFound)

	resp := h.do(t, http.MethodDelete, "/v1/subscriptions", "777", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCreatePaymentOrder(t *testing.T) {
	h := newHarness(t)
	userID := snowflake.ID(42)

	h.payment.On("CreateOrder", mock.Anything, userID, plandomain.TierPro, subscriptiondomain.OrderTypeInitial).
		Return(&paymentdomain.PaymentOrder{
			OrderID:   "INSPI100",
			UserID:    userID,
			Status:    paymentdomain.OrderStatusPending,
			AmountFen: 9900,
			QRCodeURL: "https://pay.invalid/qr/INSPI100",
		}, nil)

	resp := h.do(t, http.MethodPost, "/v1/payments/orders", "42", gin.H{"tier": "pro"})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data paymentdomain.PaymentOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "INSPI100", body.Data.OrderID)
	assert.Equal(t, int64(9900), body.Data.AmountFen)
}

func TestCreatePaymentOrderRejectsUnknownTier(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/v1/payments/orders", "42", gin.H{"tier": "platinum"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	h.payment.AssertNotCalled(t, "CreateOrder")
}

func TestCreatePaymentOrderProviderDown(t *testing.T) {
	h := newHarness(t)
	userID := snowflake.ID(42)

	h.payment.On("CreateOrder", mock.Anything, userID, plandomain.TierBasic, subscriptiondomain.OrderTypeInitial).
		Return(nil, paymentdomain.ErrProviderUnavailable)

	resp := h.do(t, http.MethodPost, "/v1/payments/orders", "42", gin.H{"tier": "basic"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestPaymentCallback(t *testing.T) {
	h := newHarness(t)

	h.payment.On("HandleCallback", mock.Anything, mock.MatchedBy(func(req *paymentdomain.CallbackRequest) bool {
		return req.OrderID == "INSPI100" && req.Status == "success"
	})).Return(nil)

	resp := h.do(t, http.MethodPost, "/v1/payments/callback", "", gin.H{
		"order_id": "INSPI100",
		"status":   "success",
	})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestPaymentCallbackReconciliationPending(t *testing.T) {
	h := newHarness(t)

	h.payment.On("HandleCallback", mock.Anything, mock.Anything).
		Return(paymentdomain.ErrReconciliationPending)

	resp := h.do(t, http.MethodPost, "/v1/payments/callback", "", gin.H{
		"order_id": "INSPI100",
		"status":   "success",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code, "provider must redeliver until provisioning lands")
}

func TestQueryPaymentOrder(t *testing.T) {
	h := newHarness(t)
	userID := snowflake.ID(42)

	h.payment.On("QueryPaymentStatus", mock.Anything, userID, "INSPI100").
		Return(&paymentdomain.PaymentOrder{OrderID: "INSPI100", Status: paymentdomain.OrderStatusSuccess}, nil)

	resp := h.do(t, http.MethodGet, "/v1/payments/orders/INSPI100", "42", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data paymentdomain.PaymentOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, paymentdomain.OrderStatusSuccess, body.Data.Status)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}
