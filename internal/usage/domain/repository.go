package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the usage-record store. IncrementIfBelow is the only write
// path: the admit decision and the debit are a single conditional update so
// concurrent requests are linearized by the database, not the application.
type Repository interface {
	// IncrementIfBelow increments the (userID, quotaType, day) counter by one
	// iff the post-increment count does not exceed limit. It returns the
	// counter value after the attempt and whether the increment was applied.
	// Row timestamps come from now so the caller's clock is the one source of
	// time.
	IncrementIfBelow(ctx context.Context, db *gorm.DB, userID snowflake.ID, quotaType QuotaType, day string, limit int, now time.Time) (int, bool, error)

	// CountFor reads the current counter without side effects. A missing row
	// reads as zero.
	CountFor(ctx context.Context, db *gorm.DB, userID snowflake.ID, quotaType QuotaType, day string) (int, error)
}
