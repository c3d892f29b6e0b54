package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storyloom/storyloom/internal/story/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateBatch(ctx context.Context, db *gorm.DB, stories []domain.Story) error {
	if len(stories) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&stories).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Story, error) {
	var story domain.Story
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, title, status, parent_id, metadata, created_at, updated_at
		 FROM stories WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&story).Error
	if err != nil {
		return nil, err
	}
	if story.ID == 0 {
		return nil, nil
	}
	return &story, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]domain.Story, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Story
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, title, status, parent_id, metadata, created_at, updated_at
		 FROM stories WHERE org_id = ? AND id IN ?`,
		orgID,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status domain.Status, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE stories SET status = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		status,
		updatedAt,
		orgID,
		id,
	).Error
}
