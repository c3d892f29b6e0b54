package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/storyloom/storyloom/internal/orgcontext"
	"github.com/storyloom/storyloom/internal/tier"
)

// RateLimit throttles requests per organization at the tier's per-minute
// rate. Fails open when Redis is unavailable so entitlement checks stay
// reachable.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.requestLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		orgID, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok || orgID == 0 {
			c.Next()
			return
		}

		org, err := s.orgRepo.FindByID(ctx, s.db, orgID)
		if err != nil || org == nil {
			c.Next()
			return
		}

		result, err := s.requestLimiter.AllowOrg(ctx, orgID, tier.GetTierConfig(org.Tier))
		if err != nil {
			c.Next()
			return
		}
		if result.Allowed {
			c.Next()
			return
		}

		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimited(c.FullPath())
		}
		if result.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
		}
		AbortWithError(c, ErrTooManyRequests)
	}
}
