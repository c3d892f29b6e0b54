// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusExpired  Status = "expired"
)

// Organization represents a tenant. Tier is the raw subscription key as the
// billing provider reports it; legacy keys are resolved through the tier
// catalog, never compared ad hoc.
type Organization struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"type:text;not null" json:"name"`
	Slug        string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Tier        string            `gorm:"type:text;not null" json:"tier"`
	Seats       int               `gorm:"not null;default:1" json:"seats"`
	Status      Status            `gorm:"type:text;not null;default:'active'" json:"status"`
	TrialEndsAt *time.Time        `gorm:"column:trial_ends_at" json:"trial_ends_at,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
