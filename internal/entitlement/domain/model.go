// Package domain defines the entitlement decision values returned to
// request handlers. Decisions are computed per request and never persisted.
package domain

import (
	"context"
	"errors"

	"github.com/storyloom/storyloom/internal/tier"
)

// Operation tags the size-capped story operations.
type Operation string

const (
	OperationSplit      Operation = "split"
	OperationBulkSplit  Operation = "bulk_split"
	OperationBulkRefine Operation = "bulk_refine"
)

// Decision is the verdict of one entitlement check. Denial is data, not an
// error: Allowed=false with a populated Reason and, where an upgrade would
// lift the limit, an UpgradeSuggestion. A bare boolean is never returned.
type Decision struct {
	Allowed bool `json:"allowed"`

	Used       int64   `json:"used"`
	Limit      int64   `json:"limit"`
	Remaining  int64   `json:"remaining"`
	Requested  int64   `json:"requested,omitempty"`
	Percentage float64 `json:"percentage"`

	// IsWarning fires at the soft cap, below the hard block, so the UI can
	// nudge before the next check denies.
	IsWarning bool `json:"is_warning"`
	IsBlocked bool `json:"is_blocked"`

	Reason  string             `json:"reason,omitempty"`
	Upgrade *UpgradeSuggestion `json:"upgrade,omitempty"`
}

type UpgradeSuggestion struct {
	Tier string `json:"tier"`
	URL  string `json:"url"`
}

// ApprovalCheck reports which of the given stories need elevated-role
// sign-off. The offending IDs come back so the caller can report specifics.
type ApprovalCheck struct {
	Required          bool     `json:"required"`
	UnapprovedStories []string `json:"unapproved_stories,omitempty"`
}

type Service interface {
	CanUseAI(ctx context.Context, estimatedTokens int64) (*Decision, error)
	// ConsumeAI folds check and increment into one conditional update,
	// closing the gap two concurrent pre-flight checks would leave open.
	ConsumeAI(ctx context.Context, tokens int64) (*Decision, error)
	CanIngestDocument(ctx context.Context) (*Decision, error)
	CheckStoryUpdate(ctx context.Context) (*Decision, error)
	CheckBulkLimit(ctx context.Context, count int) (*Decision, error)
	CheckPageLimit(ctx context.Context, pages int) (*Decision, error)
	RequireApproval(ctx context.Context, storyIDs []string) (*ApprovalCheck, error)
	ValidateOperationLimits(ctx context.Context, op Operation, count int) (*Decision, error)
	ValidateCheckout(tierKey string, seats int) tier.SeatValidation
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrUnknownOrganization = errors.New("unknown_organization")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidStoryID      = errors.New("invalid_story_id")
	ErrUnknownOperation    = errors.New("unknown_operation")
)
