package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
)

// OrderType distinguishes a first purchase from a renewal.
type OrderType string

const (
	OrderTypeInitial OrderType = "initial"
	OrderTypeRenewal OrderType = "renewal"
)

type Service interface {
	// ProvisionQuota activates or extends the subscription after a successful
	// payment. It is idempotent per orderID: replaying the same order leaves
	// the counters untouched.
	ProvisionQuota(ctx context.Context, userID snowflake.ID, tier plandomain.Tier, orderID string) error

	// CancelSubscription turns off auto-renewal; access and remaining quota
	// persist until the period end, which is returned to the caller.
	CancelSubscription(ctx context.Context, userID snowflake.ID) (time.Time, error)

	// MarkRenewalFailed moves an active subscription into its grace period
	// after a failed renewal charge.
	MarkRenewalFailed(ctx context.Context, userID snowflake.ID) error

	// ExpireDue sweeps cancelled subscriptions past period end and
	// grace-period subscriptions past the retry window into expired.
	ExpireDue(ctx context.Context) (int, error)

	GetByUserID(ctx context.Context, userID snowflake.ID) (Subscription, error)
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidOrder         = errors.New("invalid_order")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrProvisionRace        = errors.New("provision_race")
)

// ValidOrderType reports whether value is a known order type.
func ValidOrderType(value OrderType) bool {
	return value == OrderTypeInitial || value == OrderTypeRenewal
}
