package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `user_id, tier, status, monthly_quota_limit, monthly_quota_used,
	 current_period_start, current_period_end, auto_renew, last_order_id, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			user_id, tier, status, monthly_quota_limit, monthly_quota_used,
			current_period_start, current_period_end, auto_renew, last_order_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.UserID,
		subscription.Tier,
		subscription.Status,
		subscription.MonthlyQuotaLimit,
		subscription.MonthlyQuotaUsed,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.AutoRenew,
		subscription.LastOrderID,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findByUserID(ctx, db, userID, false)
}

func (r *repo) FindByUserIDForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findByUserID(ctx, db, userID, true)
}

func (r *repo) findByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID, forUpdate bool) (*subscriptiondomain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ?`
	if forUpdate && supportsRowLocks(db) {
		query += " FOR UPDATE"
	}

	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(query, userID).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.UserID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET tier = ?, status = ?, monthly_quota_limit = ?, monthly_quota_used = ?,
		     current_period_start = ?, current_period_end = ?, auto_renew = ?,
		     last_order_id = ?, updated_at = ?
		 WHERE user_id = ?`,
		subscription.Tier,
		subscription.Status,
		subscription.MonthlyQuotaLimit,
		subscription.MonthlyQuotaUsed,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.AutoRenew,
		subscription.LastOrderID,
		subscription.UpdatedAt,
		subscription.UserID,
	).Error
}

func (r *repo) ConsumeMonthlyQuota(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (int, bool, error) {
	// Cancelled rows keep their allowance until period end, grace rows
	// through the retry window. Must stay in step with HasPaidAccess.
	graceBoundary := now.Add(-subscriptiondomain.GracePeriodWindow)

	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET monthly_quota_used = monthly_quota_used + 1, updated_at = ?
		 WHERE user_id = ? AND monthly_quota_used < monthly_quota_limit
		   AND (status = ?
		        OR (status = ? AND current_period_end > ?)
		        OR (status = ? AND current_period_end > ?))`,
		now,
		userID,
		subscriptiondomain.SubscriptionStatusActive,
		subscriptiondomain.SubscriptionStatusCancelled,
		now,
		subscriptiondomain.SubscriptionStatusGracePeriod,
		graceBoundary,
	)
	if result.Error != nil {
		return 0, false, result.Error
	}

	var row struct {
		MonthlyQuotaLimit int `gorm:"column:monthly_quota_limit"`
		MonthlyQuotaUsed  int `gorm:"column:monthly_quota_used"`
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT monthly_quota_limit, monthly_quota_used FROM subscriptions WHERE user_id = ?`,
		userID,
	).Scan(&row).Error; err != nil {
		return 0, false, err
	}

	remaining := row.MonthlyQuotaLimit - row.MonthlyQuotaUsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, result.RowsAffected > 0, nil
}

func (r *repo) ListDueForExpiry(ctx context.Context, db *gorm.DB, now time.Time, graceCutoff time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}

	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE (status = ? AND current_period_end <= ?)
		    OR (status = ? AND current_period_end <= ?)
		 ORDER BY current_period_end ASC
		 LIMIT ?`,
		subscriptiondomain.SubscriptionStatusCancelled,
		now,
		subscriptiondomain.SubscriptionStatusGracePeriod,
		graceCutoff,
		limit,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func supportsRowLocks(db *gorm.DB) bool {
	name := strings.ToLower(db.Dialector.Name())
	return name == "postgres" || name == "mysql"
}
