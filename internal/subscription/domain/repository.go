package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Subscription, error)
	FindByUserIDForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Subscription, error)
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error

	// ConsumeMonthlyQuota debits one unit iff the subscription still has paid
	// access at now and allowance left. The debit and the admit decision are
	// one conditional update; losers of the race observe ok=false.
	ConsumeMonthlyQuota(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (remaining int, ok bool, err error)

	// ListDueForExpiry returns cancelled subscriptions past their period end
	// and grace-period subscriptions past the grace cutoff.
	ListDueForExpiry(ctx context.Context, db *gorm.DB, now time.Time, graceCutoff time.Time, limit int) ([]Subscription, error)
}
