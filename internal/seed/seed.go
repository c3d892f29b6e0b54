// Package seed bootstraps a default organization so a fresh install is
// usable without a signup flow.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/storyloom/storyloom/internal/organization/domain"
	"github.com/storyloom/storyloom/internal/tier"
	"gorm.io/gorm"
)

const (
	defaultOrgName = "Main"
	defaultOrgSlug = "main"
)

// EnsureDefaultOrg seeds the default organization with a fresh ID.
func EnsureDefaultOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}
	return ensureOrg(db, node.Generate())
}

// EnsureDefaultOrgWithID seeds the default organization under a fixed ID so
// self-hosted deployments can pin it via config.
func EnsureDefaultOrgWithID(db *gorm.DB, id int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if id == 0 {
		return errors.New("seed organization id must be non-zero")
	}
	return ensureOrg(db, snowflake.ID(id))
}

func ensureOrg(db *gorm.DB, id snowflake.ID) error {
	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing orgdomain.Organization
		err := tx.Where("slug = ?", defaultOrgSlug).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		def := tier.GetTierConfig(string(tier.TierStarter))
		now := time.Now().UTC()
		org := orgdomain.Organization{
			ID:        id,
			Name:      defaultOrgName,
			Slug:      defaultOrgSlug,
			Tier:      string(def.Tier),
			Seats:     def.SeatMin,
			Status:    orgdomain.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Create(&org).Error
	})
}
