package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/tier"
)

const keyRequestOrg = "request:org:%s"

// RequestLimiter throttles API requests per organization. The sustained
// rate comes from the organization's tier; the burst is an ops knob.
type RequestLimiter struct {
	bucket *TokenBucket
	limits *config.LimitsHolder
}

func NewRequestLimiter(bucket *TokenBucket, limits *config.LimitsHolder) *RequestLimiter {
	return &RequestLimiter{bucket: bucket, limits: limits}
}

func (l *RequestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil && l.limits.Get().RateLimitEnabled
}

// AllowOrg consumes one request slot for orgID. Tiers with no per-minute
// cap pass unconditionally.
func (l *RequestLimiter) AllowOrg(ctx context.Context, orgID snowflake.ID, def tier.Definition) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	if def.RequestsPerMinute <= 0 {
		return &Result{Allowed: true}, nil
	}

	rate := float64(def.RequestsPerMinute) / 60.0
	burst := l.limits.Get().RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return l.bucket.Allow(ctx, fmt.Sprintf(keyRequestOrg, orgID.String()), rate, burst)
}
