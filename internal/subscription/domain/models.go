// Package domain contains the subscription record and its lifecycle states.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive      SubscriptionStatus = "active"
	SubscriptionStatusCancelled   SubscriptionStatus = "cancelled"
	SubscriptionStatusGracePeriod SubscriptionStatus = "grace_period"
	SubscriptionStatusExpired     SubscriptionStatus = "expired"
)

// GracePeriodWindow is how long a grace-period subscription keeps paid access
// past its period end while renewal retries run.
const GracePeriodWindow = 3 * 24 * time.Hour

// Subscription captures a user's paid entitlement. One row per user; the row
// is created on first purchase and kept forever, expiry only flips status.
type Subscription struct {
	UserID             snowflake.ID       `json:"user_id" gorm:"primaryKey"`
	Tier               plandomain.Tier    `json:"tier" gorm:"type:text;not null"`
	Status             SubscriptionStatus `json:"status" gorm:"type:text;not null"`
	MonthlyQuotaLimit  int                `json:"monthly_quota_limit" gorm:"not null;default:0"`
	MonthlyQuotaUsed   int                `json:"monthly_quota_used" gorm:"not null;default:0"`
	CurrentPeriodStart time.Time          `json:"current_period_start" gorm:"not null"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end" gorm:"not null;index:ix_subscriptions_status_period_end,priority:2"`
	AutoRenew          bool               `json:"auto_renew" gorm:"not null;default:true"`
	LastOrderID        string             `json:"last_order_id" gorm:"type:text;not null;default:''"`
	CreatedAt          time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// QuotaRemaining derives the remaining monthly allowance, clamped at zero.
func (s *Subscription) QuotaRemaining() int {
	remaining := s.MonthlyQuotaLimit - s.MonthlyQuotaUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasPaidAccess reports whether the subscription still meters the user by
// its monthly counters at the given instant. Cancellation keeps access and
// the remaining allowance until the paid period ends; a grace-period
// subscription keeps them through the renewal retry window.
func (s *Subscription) HasPaidAccess(now time.Time) bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case SubscriptionStatusActive:
		return true
	case SubscriptionStatusCancelled:
		return now.Before(s.CurrentPeriodEnd)
	case SubscriptionStatusGracePeriod:
		return now.Before(s.CurrentPeriodEnd.Add(GracePeriodWindow))
	default:
		return false
	}
}
