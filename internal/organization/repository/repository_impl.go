package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storyloom/storyloom/internal/organization/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, org *domain.Organization) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, tier, seats, status, trial_ends_at, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.Tier,
		org.Seats,
		org.Status,
		org.TrialEndsAt,
		org.Metadata,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, tier, seats, status, trial_ends_at, metadata, created_at, updated_at
		 FROM organizations WHERE id = ?`,
		id,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}

func (r *repo) UpdateTier(ctx context.Context, db *gorm.DB, id snowflake.ID, tier string, seats int, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE organizations SET tier = ?, seats = ?, updated_at = ? WHERE id = ?`,
		tier,
		seats,
		updatedAt,
		id,
	).Error
}

func (r *repo) ExpireTrials(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE organizations SET status = ?, updated_at = ?
		 WHERE id IN (
			SELECT id FROM organizations
			WHERE status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at < ?
			ORDER BY id
			LIMIT ?
		 )`,
		domain.StatusExpired,
		cutoff,
		domain.StatusTrialing,
		cutoff,
		limit,
	)
	return result.RowsAffected, result.Error
}
