// Package domain contains persistence models for stories.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

// Terminal reports whether a story in this status needs elevated-role
// sign-off before further mutation on approvals-required tiers.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusBlocked
}

type Story struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID      `gorm:"not null;index" json:"org_id"`
	Title     string            `gorm:"type:text;not null" json:"title"`
	Status    Status            `gorm:"type:text;not null;default:'draft'" json:"status"`
	ParentID  *snowflake.ID     `gorm:"column:parent_id" json:"parent_id,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Story) TableName() string { return "stories" }
