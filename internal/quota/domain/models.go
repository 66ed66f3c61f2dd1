// Package domain defines the quota gate contract: the admit/deny decision
// every privileged action passes through.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
	usagedomain "github.com/inspira-labs/inspira-billing/internal/usage/domain"
)

// QuotaKind is the metering mode applied to a decision.
type QuotaKind string

const (
	QuotaKindDaily   QuotaKind = "daily"
	QuotaKindMonthly QuotaKind = "monthly"
)

// Denial reasons. Reason is mandatory whenever Allowed is false so callers
// never have to disambiguate remaining=0 between "last unit consumed" and
// "never had quota".
const (
	ReasonDailyExhausted   = "daily free quota exhausted"
	ReasonMonthlyExhausted = "monthly quota exhausted"
)

// QuotaResult is the outcome of a check-and-consume. Exhaustion is a normal
// result, not an error: callers branch on Allowed.
type QuotaResult struct {
	Allowed   bool      `json:"allowed"`
	Kind      QuotaKind `json:"kind"`
	Remaining int       `json:"remaining"`
	Reason    string    `json:"reason,omitempty"`
}

// QuotaStatus is the read-only counter surface.
type QuotaStatus struct {
	Tier      plandomain.Tier `json:"tier"`
	Kind      QuotaKind       `json:"kind"`
	Limit     int             `json:"limit"`
	Used      int             `json:"used"`
	Remaining int             `json:"remaining"`
	PeriodEnd *time.Time      `json:"period_end,omitempty"`
}

type Service interface {
	// CheckAndConsume decides admit/deny for one unit of quotaType and debits
	// the matching counter in the same conditional store update.
	CheckAndConsume(ctx context.Context, userID snowflake.ID, quotaType usagedomain.QuotaType) (QuotaResult, error)

	// CreateSubscription forces a user into paid metering without a completed
	// payment (admin comps, free trials).
	CreateSubscription(ctx context.Context, userID snowflake.ID) error

	GetQuotaStatus(ctx context.Context, userID snowflake.ID) (QuotaStatus, error)
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidQuotaType = errors.New("invalid_quota_type")
)
