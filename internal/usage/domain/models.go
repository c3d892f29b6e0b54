// Package domain contains persistence models for the usage ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageRecord is the per-organization counter row for one billing period.
// Limits are copied in from the tier catalog when the row is created and
// stay fixed for the period; a mid-period tier change takes effect on the
// next rollover. A zero limit means unlimited.
type UsageRecord struct {
	ID    snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID snowflake.ID `gorm:"not null;uniqueIndex:ux_usage_org_period,priority:1" json:"org_id"`

	PeriodStart time.Time `gorm:"not null;uniqueIndex:ux_usage_org_period,priority:2" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null" json:"period_end"`

	TokensUsed       int64 `gorm:"not null;default:0" json:"tokens_used"`
	TokensLimit      int64 `gorm:"not null;default:0" json:"tokens_limit"`
	DocsUsed         int64 `gorm:"not null;default:0" json:"docs_used"`
	DocsLimit        int64 `gorm:"not null;default:0" json:"docs_limit"`
	AIActionsUsed    int64 `gorm:"not null;default:0" json:"ai_actions_used"`
	AIActionsLimit   int64 `gorm:"not null;default:0" json:"ai_actions_limit"`
	StoryUpdatesUsed int64 `gorm:"not null;default:0" json:"story_updates_used"`

	// ClosedAt is set by the rollover sweep once the period has ended and a
	// successor row exists. Closed rows are kept for reporting, never deleted.
	ClosedAt *time.Time `gorm:"column:closed_at" json:"closed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// PeriodStartFor returns the UTC calendar-month start containing t.
func PeriodStartFor(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodEndFor returns the start of the month after t.
func PeriodEndFor(t time.Time) time.Time {
	return PeriodStartFor(t).AddDate(0, 1, 0)
}
