package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) UsageSummary(c *gin.Context) {
	summary, err := s.usageSvc.Summary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

type recordTokensRequest struct {
	Amount int64 `json:"amount"`
}

// RecordTokens registers consumption after the fact, for callers that did
// their own pre-flight check. It does not enforce the limit.
func (s *Server) RecordTokens(c *gin.Context) {
	var req recordTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.usageSvc.AddTokens(c.Request.Context(), req.Amount); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (s *Server) RecordDocument(c *gin.Context) {
	if err := s.usageSvc.AddDocument(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (s *Server) RecordAIAction(c *gin.Context) {
	if err := s.usageSvc.AddAIAction(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
