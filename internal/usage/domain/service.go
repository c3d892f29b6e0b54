package domain

import (
	"context"
	"errors"
	"time"
)

// Resource names the metered resources for increments and metrics labels.
const (
	ResourceTokens       = "tokens"
	ResourceDocuments    = "documents"
	ResourceAIActions    = "ai_actions"
	ResourceStoryUpdates = "story_updates"
)

type ResourceUsage struct {
	Used       int64   `json:"used"`
	Limit      int64   `json:"limit"`
	Remaining  int64   `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Summary struct {
	Tokens        ResourceUsage `json:"tokens"`
	Docs          ResourceUsage `json:"docs"`
	AIActions     ResourceUsage `json:"ai_actions"`
	StoryUpdates  ResourceUsage `json:"story_updates"`
	BillingPeriod Period        `json:"billing_period"`
}

// Service is the usage ledger. The active organization comes from the
// request context. Denials are not modeled here; callers decide through the
// entitlement checker and then record consumption, except TryConsumeTokens
// which folds check and increment into one conditional update.
type Service interface {
	GetOrCreate(ctx context.Context) (*UsageRecord, error)
	AddTokens(ctx context.Context, amount int64) error
	AddDocument(ctx context.Context) error
	AddAIAction(ctx context.Context) error
	AddStoryUpdate(ctx context.Context) error
	// TryConsumeTokens atomically adds amount if the resulting total stays
	// within the period limit. Returns the post-update record when it
	// succeeds and the unchanged record when it does not.
	TryConsumeTokens(ctx context.Context, amount int64) (bool, *UsageRecord, error)
	Summary(ctx context.Context) (*Summary, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrUnknownOrganization = errors.New("unknown_organization")
	ErrInvalidAmount       = errors.New("invalid_amount")
)

// UsageFor builds the used/limit/remaining/percentage view of one counter.
// A zero limit means unlimited: remaining is unbounded, percentage zero.
func UsageFor(used, limit int64) ResourceUsage {
	u := ResourceUsage{Used: used, Limit: limit}
	if limit <= 0 {
		return u
	}
	u.Remaining = limit - used
	if u.Remaining < 0 {
		u.Remaining = 0
	}
	u.Percentage = float64(used) / float64(limit) * 100
	return u
}
