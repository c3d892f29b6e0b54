package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storyloom/storyloom/internal/tier"
)

type tierView struct {
	Tier                string `json:"tier"`
	SeatMin             int    `json:"seat_min"`
	SeatMax             int    `json:"seat_max,omitempty"`
	TokenAllowance      int64  `json:"token_allowance"`
	AIActionAllowance   int64  `json:"ai_action_allowance"`
	DocAllowance        int64  `json:"doc_allowance"`
	BulkOperationLimit  int    `json:"bulk_operation_limit"`
	BulkSplitLimit      int    `json:"bulk_split_limit"`
	MaxSplitChildren    int    `json:"max_split_children"`
	MaxPagesPerUpload   int    `json:"max_pages_per_upload"`
	RequestsPerMinute   int    `json:"requests_per_minute"`
	StoryUpdatesEnabled bool   `json:"story_updates_enabled"`
	ApprovalsRequired   bool   `json:"approvals_required"`
	UpgradeTier         string `json:"upgrade_tier,omitempty"`
}

func newTierView(def tier.Definition) tierView {
	return tierView{
		Tier:                string(def.Tier),
		SeatMin:             def.SeatMin,
		SeatMax:             def.SeatMax,
		TokenAllowance:      def.TokenAllowance,
		AIActionAllowance:   def.AIActionAllowance,
		DocAllowance:        def.DocAllowance,
		BulkOperationLimit:  def.BulkOperationLimit,
		BulkSplitLimit:      def.BulkSplitLimit,
		MaxSplitChildren:    def.MaxSplitChildren,
		MaxPagesPerUpload:   def.MaxPagesPerUpload,
		RequestsPerMinute:   def.RequestsPerMinute,
		StoryUpdatesEnabled: def.StoryUpdatesEnabled,
		ApprovalsRequired:   def.ApprovalsRequired,
		UpgradeTier:         string(def.UpgradeTier),
	}
}

func (s *Server) ListTiers(c *gin.Context) {
	tiers := make([]tierView, 0, len(tier.All()))
	for _, t := range tier.All() {
		tiers = append(tiers, newTierView(tier.GetTierConfig(string(t))))
	}

	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

// GetTier resolves legacy aliases too, so a caller holding an old key sees
// the tier it actually gets.
func (s *Server) GetTier(c *gin.Context) {
	def := tier.GetTierConfig(c.Param("tier"))
	c.JSON(http.StatusOK, newTierView(def))
}

type validateSeatsRequest struct {
	Tier  string `json:"tier"`
	Seats int    `json:"seats"`
}

func (s *Server) ValidateSeats(c *gin.Context) {
	var req validateSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Tier) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result := s.entitlementSvc.ValidateCheckout(req.Tier, req.Seats)
	c.JSON(http.StatusOK, result)
}
