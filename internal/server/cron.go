package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const HeaderCronSecret = "X-Cron-Secret"

// RunSweep lets an external cron trigger one sweep pass. Deployments
// without the embedded loop (serverless, single-shot containers) use this.
func (s *Server) RunSweep(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	secret := strings.TrimSpace(s.cfg.CronSecret)
	if secret == "" {
		AbortWithError(c, ErrForbidden)
		return
	}
	provided := strings.TrimSpace(c.GetHeader(HeaderCronSecret))
	if subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) != 1 {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.scheduler.RunOnce(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "swept"})
}
