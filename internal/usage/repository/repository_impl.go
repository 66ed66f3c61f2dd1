package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/inspira-labs/inspira-billing/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct {
	genID *snowflake.Node
}

func Provide(genID *snowflake.Node) usagedomain.Repository {
	return &repo{genID: genID}
}

func (r *repo) IncrementIfBelow(ctx context.Context, db *gorm.DB, userID snowflake.ID, quotaType usagedomain.QuotaType, day string, limit int, now time.Time) (int, bool, error) {
	now = now.UTC()

	if err := r.ensureRow(ctx, db, userID, quotaType, day, now); err != nil {
		return 0, false, err
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE usage_records
		 SET count = count + 1, updated_at = ?
		 WHERE user_id = ? AND quota_type = ? AND day = ? AND count < ?`,
		now,
		userID,
		quotaType,
		day,
		limit,
	)
	if result.Error != nil {
		return 0, false, result.Error
	}

	count, err := r.CountFor(ctx, db, userID, quotaType, day)
	if err != nil {
		return 0, false, err
	}

	return count, result.RowsAffected > 0, nil
}

func (r *repo) CountFor(ctx context.Context, db *gorm.DB, userID snowflake.ID, quotaType usagedomain.QuotaType, day string) (int, error) {
	var count int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(count), 0) FROM usage_records
		 WHERE user_id = ? AND quota_type = ? AND day = ?`,
		userID,
		quotaType,
		day,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) ensureRow(ctx context.Context, db *gorm.DB, userID snowflake.ID, quotaType usagedomain.QuotaType, day string, now time.Time) error {
	query := `INSERT INTO usage_records (id, user_id, quota_type, day, count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (user_id, quota_type, day) DO NOTHING`
	if strings.EqualFold(db.Dialector.Name(), "mysql") {
		query = `INSERT IGNORE INTO usage_records (id, user_id, quota_type, day, count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`
	}

	return db.WithContext(ctx).Exec(
		query,
		r.genID.Generate(),
		userID,
		quotaType,
		day,
		now,
		now,
	).Error
}
