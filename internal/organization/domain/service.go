package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Organization, error)
	Get(ctx context.Context, id string) (*Organization, error)
	// ChangeTier validates the checkout (tier, seats) pair and persists it.
	// The current usage record is intentionally left untouched; period limits
	// are locked at record creation and re-seed on the next rollover.
	ChangeTier(ctx context.Context, req ChangeTierRequest) (*Organization, error)
}

type CreateRequest struct {
	Name     string         `json:"name"`
	Tier     string         `json:"tier"`
	Seats    int            `json:"seats"`
	Trial    bool           `json:"trial"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type ChangeTierRequest struct {
	OrgID string `json:"-"`
	Tier  string `json:"tier"`
	Seats int    `json:"seats"`
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidSeats = errors.New("invalid_seats")
	ErrInvalidID    = errors.New("invalid_id")
	ErrSlugTaken    = errors.New("slug_taken")
	ErrNotFound     = errors.New("organization_not_found")
)
