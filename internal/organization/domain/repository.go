package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, org *Organization) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organization, error)
	UpdateTier(ctx context.Context, db *gorm.DB, id snowflake.ID, tier string, seats int, updatedAt time.Time) error
	// ExpireTrials marks trialing organizations whose trial ended before
	// cutoff. Idempotent: already-expired rows no longer match the predicate.
	ExpireTrials(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) (int64, error)
}
