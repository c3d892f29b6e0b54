package migration

import (
	"github.com/storyloom/storyloom/internal/config"
	orgdomain "github.com/storyloom/storyloom/internal/organization/domain"
	"github.com/storyloom/storyloom/internal/seed"
	storydomain "github.com/storyloom/storyloom/internal/story/domain"
	usagedomain "github.com/storyloom/storyloom/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Versioned migrations target postgres; other dialects are for
			// local development and get the gorm schema directly.
			if err := conn.AutoMigrate(
				&orgdomain.Organization{},
				&usagedomain.UsageRecord{},
				&storydomain.Story{},
			); err != nil {
				return err
			}
		}

		if cfg.DefaultOrgID != 0 {
			return seed.EnsureDefaultOrgWithID(conn, cfg.DefaultOrgID)
		}
		return seed.EnsureDefaultOrg(conn)
	}),
)
