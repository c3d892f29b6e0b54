package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateBatch(ctx context.Context, db *gorm.DB, stories []Story) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Story, error)
	ListByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]Story, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status Status, updatedAt time.Time) error
}
