package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// FindCurrent returns the record whose period contains at, or nil.
	FindCurrent(ctx context.Context, db *gorm.DB, orgID snowflake.ID, at time.Time) (*UsageRecord, error)
	// Insert creates the record, ignoring a (org_id, period_start) conflict.
	// Returns false when a concurrent caller already created the row.
	Insert(ctx context.Context, db *gorm.DB, record *UsageRecord) (bool, error)
	// Add* perform database-level atomic column adds against the row.
	AddTokens(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error
	AddDocs(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error
	AddAIActions(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error
	AddStoryUpdates(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error
	// ConditionalAddTokens adds amount only when the resulting total stays
	// within the row's limit, in a single statement. Returns false when the
	// add would exceed the limit.
	ConditionalAddTokens(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*UsageRecord, error)
	// ListExpiredOpen returns open records whose period ended before cutoff,
	// claimed with a row lock where the dialect supports it.
	ListExpiredOpen(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]UsageRecord, error)
	Close(ctx context.Context, db *gorm.DB, id snowflake.ID, closedAt time.Time) error
}
