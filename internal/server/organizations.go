package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storyloom/storyloom/internal/authorization"
	orgdomain "github.com/storyloom/storyloom/internal/organization/domain"
)

func (s *Server) CreateOrganization(c *gin.Context) {
	var req orgdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.orgSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (s *Server) GetOrganization(c *gin.Context) {
	org, err := s.orgSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

type changeTierRequest struct {
	Tier  string `json:"tier"`
	Seats int    `json:"seats"`
}

// ChangeOrganizationTier swaps the subscription. The current usage period
// keeps its seeded limits; the new tier applies from the next rollover.
func (s *Server) ChangeOrganizationTier(c *gin.Context) {
	var req changeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.authorize(c, authorization.ObjectOrganization, authorization.ActionOrganizationChangeTier); err != nil {
		AbortWithError(c, err)
		return
	}

	org, err := s.orgSvc.ChangeTier(c.Request.Context(), orgdomain.ChangeTierRequest{
		OrgID: c.Param("id"),
		Tier:  req.Tier,
		Seats: req.Seats,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}
