package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storyloom/storyloom/internal/authorization"
	entitlementdomain "github.com/storyloom/storyloom/internal/entitlement/domain"
	"github.com/storyloom/storyloom/internal/orgcontext"
	storydomain "github.com/storyloom/storyloom/internal/story/domain"
)

type bulkCreateRequest struct {
	Stories []struct {
		Title string `json:"title"`
	} `json:"stories"`
}

func (s *Server) BulkCreateStories(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Stories) == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	decision, err := s.entitlementSvc.CheckBulkLimit(ctx, len(req.Stories))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !decision.Allowed {
		c.JSON(http.StatusForbidden, decision)
		return
	}

	if err := s.authorize(c, authorization.ObjectStory, authorization.ActionStoryCreate); err != nil {
		AbortWithError(c, err)
		return
	}

	now := time.Now().UTC()
	stories := make([]storydomain.Story, 0, len(req.Stories))
	for _, item := range req.Stories {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		stories = append(stories, storydomain.Story{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			Title:     title,
			Status:    storydomain.StatusDraft,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.storyRepo.CreateBatch(ctx, s.db, stories); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"stories": stories})
}

type splitStoryRequest struct {
	Titles []string `json:"titles"`
}

func (s *Server) SplitStory(c *gin.Context) {
	var req splitStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Titles) == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	decision, err := s.entitlementSvc.ValidateOperationLimits(ctx, entitlementdomain.OperationSplit, len(req.Titles))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !decision.Allowed {
		c.JSON(http.StatusForbidden, decision)
		return
	}

	storyID := c.Param("id")
	approval, err := s.entitlementSvc.RequireApproval(ctx, []string{storyID})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if approval.Required {
		if err := s.authorize(c, authorization.ObjectStory, authorization.ActionStoryApprove); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"approval": approval})
			return
		}
	}

	parent, err := s.findStory(c, orgID, storyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := time.Now().UTC()
	children := make([]storydomain.Story, 0, len(req.Titles))
	for _, title := range req.Titles {
		title = strings.TrimSpace(title)
		if title == "" {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		parentID := parent.ID
		children = append(children, storydomain.Story{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			Title:     title,
			Status:    storydomain.StatusDraft,
			ParentID:  &parentID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.storyRepo.CreateBatch(ctx, s.db, children); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"stories": children})
}

type updateStoryRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateStory(c *gin.Context) {
	var req updateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	status := storydomain.Status(strings.TrimSpace(req.Status))
	switch status {
	case storydomain.StatusDraft, storydomain.StatusReady, storydomain.StatusInProgress,
		storydomain.StatusDone, storydomain.StatusBlocked:
	default:
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	decision, err := s.entitlementSvc.CheckStoryUpdate(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !decision.Allowed {
		c.JSON(http.StatusForbidden, decision)
		return
	}

	storyID := c.Param("id")
	approval, err := s.entitlementSvc.RequireApproval(ctx, []string{storyID})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if approval.Required {
		if err := s.authorize(c, authorization.ObjectStory, authorization.ActionStoryApprove); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"approval": approval})
			return
		}
	}

	story, err := s.findStory(c, orgID, storyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.storyRepo.UpdateStatus(ctx, s.db, orgID, story.ID, status, time.Now().UTC()); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.usageSvc.AddStoryUpdate(ctx); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
