package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storyloom/storyloom/internal/usage/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindCurrent(ctx context.Context, db *gorm.DB, orgID snowflake.ID, at time.Time) (*domain.UsageRecord, error) {
	var record domain.UsageRecord
	err := db.WithContext(ctx).
		Where("org_id = ? AND period_start <= ? AND period_end > ?", orgID, at, at).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.UsageRecord) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "period_start"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) AddTokens(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error {
	return r.add(ctx, db, "tokens_used", id, amount, at)
}

func (r *repo) AddDocs(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error {
	return r.add(ctx, db, "docs_used", id, amount, at)
}

func (r *repo) AddAIActions(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error {
	return r.add(ctx, db, "ai_actions_used", id, amount, at)
}

func (r *repo) AddStoryUpdates(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error {
	return r.add(ctx, db, "story_updates_used", id, amount, at)
}

// add is the one mutation path for counters: an atomic column add at the
// storage layer, never a read-modify-write in application code.
func (r *repo) add(ctx context.Context, db *gorm.DB, column string, id snowflake.ID, amount int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE usage_records SET `+column+` = `+column+` + ?, updated_at = ? WHERE id = ?`,
		amount,
		at,
		id,
	).Error
}

func (r *repo) ConditionalAddTokens(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE usage_records
		 SET tokens_used = tokens_used + ?, updated_at = ?
		 WHERE id = ? AND (tokens_limit = 0 OR tokens_used + ? <= tokens_limit)`,
		amount,
		at,
		id,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.UsageRecord, error) {
	var record domain.UsageRecord
	err := db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) ListExpiredOpen(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.UsageRecord, error) {
	stmt := db.WithContext(ctx).
		Where("period_end <= ? AND closed_at IS NULL", cutoff).
		Order("id").
		Limit(limit)
	// Row locks keep concurrent sweep instances off the same batch; sqlite
	// has no FOR UPDATE.
	if name := strings.ToLower(db.Dialector.Name()); name == "postgres" || name == "mysql" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var records []domain.UsageRecord
	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) Close(ctx context.Context, db *gorm.DB, id snowflake.ID, closedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE usage_records SET closed_at = ?, updated_at = ? WHERE id = ? AND closed_at IS NULL`,
		closedAt,
		closedAt,
		id,
	).Error
}
