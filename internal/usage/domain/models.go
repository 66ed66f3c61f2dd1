// Package domain contains persistence models for free-tier usage counters.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// QuotaType identifies the metered action.
type QuotaType string

const (
	QuotaTypeCreate     QuotaType = "create"
	QuotaTypeReuse      QuotaType = "reuse"
	QuotaTypeExport     QuotaType = "export"
	QuotaTypeGraphNodes QuotaType = "graph_nodes"
)

// UsageRecord accumulates free-tier consumption for one user, action and
// calendar day. A new day gets a fresh row; rows are never deleted.
type UsageRecord struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;index:ux_usage_records_user_type_day,unique,priority:1"`
	QuotaType QuotaType    `json:"quota_type" gorm:"type:text;not null;index:ux_usage_records_user_type_day,unique,priority:2"`
	Day       string       `json:"day" gorm:"type:date;not null;index:ux_usage_records_user_type_day,unique,priority:3"`
	Count     int          `json:"count" gorm:"not null;default:0"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// DayKey formats the calendar-day key for a point in time.
func DayKey(at time.Time) string {
	return at.UTC().Format("2006-01-02")
}

func ValidQuotaType(value QuotaType) bool {
	switch value {
	case QuotaTypeCreate, QuotaTypeReuse, QuotaTypeExport, QuotaTypeGraphNodes:
		return true
	default:
		return false
	}
}
