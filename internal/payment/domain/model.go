// Package domain contains the payment order records and the provider client
// contract for collecting subscription payments.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus represents the settlement states of a payment order.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusSuccess OrderStatus = "success"
	OrderStatusFailed  OrderStatus = "failed"
)

// PaymentOrder is one payment attempt. Rows are written only after the
// provider accepted the order, so every pending row has a provider-side
// counterpart to reconcile against.
type PaymentOrder struct {
	OrderID           string                       `json:"order_id" gorm:"primaryKey;type:text"`
	UserID            snowflake.ID                 `json:"user_id" gorm:"not null;index:ix_payment_orders_user_id"`
	Type              subscriptiondomain.OrderType `json:"type" gorm:"type:text;not null"`
	Tier              plandomain.Tier              `json:"tier" gorm:"type:text;not null"`
	Status            OrderStatus                  `json:"status" gorm:"type:text;not null;index:ix_payment_orders_status"`
	AmountFen         int64                        `json:"amount_fen" gorm:"not null"`
	ProviderReference string                       `json:"provider_reference" gorm:"type:text;not null;default:''"`
	QRCodeURL         string                       `json:"qr_code_url" gorm:"type:text;not null;default:''"`
	Metadata          datatypes.JSON               `json:"metadata,omitempty"`
	CreatedAt         time.Time                    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	PaidAt            *time.Time                   `json:"paid_at,omitempty"`
}

// TableName sets the database table name.
func (PaymentOrder) TableName() string { return "payment_orders" }

// CallbackRequest is the notification a provider posts when an order settles.
type CallbackRequest struct {
	OrderID           string `json:"order_id"`
	ProviderReference string `json:"provider_reference"`
	Status            string `json:"status"`
	PaidAt            string `json:"paid_at,omitempty"`
}

// ProviderOrder is what a provider hands back for a freshly created order.
type ProviderOrder struct {
	ProviderReference string
	QRCodeURL         string
}

// ProviderClient abstracts the external payment channel. Implementations must
// honor the context deadline; the service treats any error as "no order was
// created" and persists nothing.
type ProviderClient interface {
	Name() string
	CreateOrder(ctx context.Context, order *PaymentOrder) (*ProviderOrder, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *PaymentOrder) error
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*PaymentOrder, error)

	// Resolve flips a pending order to its terminal status. The transition is
	// a conditional update so concurrent callbacks race safely; ok=false means
	// the order was not pending anymore.
	Resolve(ctx context.Context, db *gorm.DB, orderID string, status OrderStatus, providerReference string, paidAt *time.Time) (ok bool, err error)

	// ListUnprovisionedSuccess returns settled orders paid after cutoff whose
	// entitlement write never landed. An order is excluded once its user's
	// subscription carries it as last_order_id or was provisioned after the
	// payment settled.
	ListUnprovisionedSuccess(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]PaymentOrder, error)
}

type Service interface {
	// CreateOrder asks the provider for a payable order first and persists the
	// row only on provider success.
	CreateOrder(ctx context.Context, userID snowflake.ID, tier plandomain.Tier, orderType subscriptiondomain.OrderType) (*PaymentOrder, error)

	// HandleCallback applies a provider settlement notification. Replays of an
	// already-resolved order succeed without side effects.
	HandleCallback(ctx context.Context, req *CallbackRequest) error

	QueryPaymentStatus(ctx context.Context, userID snowflake.ID, orderID string) (*PaymentOrder, error)
}

var (
	ErrInvalidUser           = errors.New("invalid_user")
	ErrInvalidOrder          = errors.New("invalid_order")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrInvalidCallback       = errors.New("invalid_callback")
	ErrProviderUnavailable   = errors.New("provider_unavailable")
	ErrUnknownProvider       = errors.New("unknown_provider")
	ErrReconciliationPending = errors.New("reconciliation_pending")
)
