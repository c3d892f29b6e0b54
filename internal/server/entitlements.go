package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/storyloom/storyloom/internal/entitlement/domain"
)

// CheckAI is the pre-flight token check. It never deducts; callers that
// want check-and-deduct in one step use ConsumeAI.
func (s *Server) CheckAI(c *gin.Context) {
	tokens, err := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("tokens", "1")), 10, 64)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	decision, err := s.entitlementSvc.CanUseAI(c.Request.Context(), tokens)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

type consumeAIRequest struct {
	Tokens int64 `json:"tokens"`
}

func (s *Server) ConsumeAI(c *gin.Context) {
	var req consumeAIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	decision, err := s.entitlementSvc.ConsumeAI(c.Request.Context(), req.Tokens)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

func (s *Server) CheckDocument(c *gin.Context) {
	decision, err := s.entitlementSvc.CanIngestDocument(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

func (s *Server) CheckStoryUpdate(c *gin.Context) {
	decision, err := s.entitlementSvc.CheckStoryUpdate(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

type validateOperationRequest struct {
	Operation string `json:"operation"`
	Count     int    `json:"count"`
}

func (s *Server) ValidateOperation(c *gin.Context) {
	var req validateOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	op := entitlementdomain.Operation(strings.TrimSpace(req.Operation))
	decision, err := s.entitlementSvc.ValidateOperationLimits(c.Request.Context(), op, req.Count)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}
