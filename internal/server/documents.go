package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ingestDocumentRequest struct {
	Title string `json:"title"`
	Pages int    `json:"pages"`
}

// IngestDocument enforces both the per-upload page cap and the monthly
// document allowance before recording the ingest.
func (s *Server) IngestDocument(c *gin.Context) {
	var req ingestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Pages <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()

	pageDecision, err := s.entitlementSvc.CheckPageLimit(ctx, req.Pages)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !pageDecision.Allowed {
		c.JSON(http.StatusForbidden, pageDecision)
		return
	}

	docDecision, err := s.entitlementSvc.CanIngestDocument(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !docDecision.Allowed {
		c.JSON(http.StatusForbidden, docDecision)
		return
	}

	if err := s.usageSvc.AddDocument(ctx); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "ingested",
		"pages":  req.Pages,
	})
}
