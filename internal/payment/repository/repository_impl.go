package repository

import (
	"context"
	"time"

	"github.com/inspira-labs/inspira-billing/internal/payment/domain"
	"gorm.io/gorm"
)

const orderColumns = `order_id, user_id, type, tier, status, amount_fen,
	provider_reference, qr_code_url, metadata, created_at, paid_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.PaymentOrder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderID,
		order.UserID,
		order.Type,
		order.Tier,
		order.Status,
		order.AmountFen,
		order.ProviderReference,
		order.QRCodeURL,
		order.Metadata,
		order.CreatedAt,
		order.PaidAt,
	).Error
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.PaymentOrder, error) {
	var item domain.PaymentOrder
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM payment_orders
		 WHERE order_id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.OrderID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Resolve(ctx context.Context, db *gorm.DB, orderID string, status domain.OrderStatus, providerReference string, paidAt *time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_orders
		 SET status = ?,
			 provider_reference = CASE WHEN ? <> '' THEN ? ELSE provider_reference END,
			 paid_at = ?
		 WHERE order_id = ? AND status = ?`,
		status,
		providerReference,
		providerReference,
		paidAt,
		orderID,
		domain.OrderStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListUnprovisionedSuccess(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.PaymentOrder, error) {
	var items []domain.PaymentOrder
	err := db.WithContext(ctx).Raw(
		`SELECT o.order_id, o.user_id, o.type, o.tier, o.status, o.amount_fen,
			o.provider_reference, o.qr_code_url, o.metadata, o.created_at, o.paid_at
		 FROM payment_orders o
		 LEFT JOIN subscriptions s ON s.user_id = o.user_id
		 WHERE o.status = ?
		   AND o.paid_at >= ?
		   AND (s.user_id IS NULL OR (s.last_order_id <> o.order_id AND s.updated_at < o.paid_at))
		 ORDER BY o.paid_at
		 LIMIT ?`,
		domain.OrderStatusSuccess,
		cutoff,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
