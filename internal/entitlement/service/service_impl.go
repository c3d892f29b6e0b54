package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/entitlement/domain"
	obsmetrics "github.com/storyloom/storyloom/internal/observability/metrics"
	orgdomain "github.com/storyloom/storyloom/internal/organization/domain"
	"github.com/storyloom/storyloom/internal/orgcontext"
	storydomain "github.com/storyloom/storyloom/internal/story/domain"
	"github.com/storyloom/storyloom/internal/tier"
	usagedomain "github.com/storyloom/storyloom/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	OrgRepo   orgdomain.Repository
	StoryRepo storydomain.Repository
	UsageSvc  usagedomain.Service
	Limits    *config.LimitsHolder
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	orgRepo   orgdomain.Repository
	storyRepo storydomain.Repository
	usageSvc  usagedomain.Service
	limits    *config.LimitsHolder
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("entitlement.service"),
		orgRepo:   p.OrgRepo,
		storyRepo: p.StoryRepo,
		usageSvc:  p.UsageSvc,
		limits:    p.Limits,
		metrics:   p.Metrics,
	}
}

// CanUseAI is a pre-flight check: it does not deduct. The caller performs
// the protected action first and records consumption afterwards, or uses
// ConsumeAI to do both in one step.
func (s *Service) CanUseAI(ctx context.Context, estimatedTokens int64) (*domain.Decision, error) {
	if estimatedTokens <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	def, err := s.tierFor(ctx)
	if err != nil {
		return nil, err
	}

	record, err := s.usageSvc.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	decision := s.consumptionDecision(record.TokensUsed, record.TokensLimit, estimatedTokens, def)
	if !decision.Allowed {
		decision.Reason = fmt.Sprintf(
			"monthly AI token allowance reached: %d of %d tokens used, %d more requested",
			record.TokensUsed, record.TokensLimit, estimatedTokens,
		)
	}
	s.recordDecision("ai_tokens", decision)
	return decision, nil
}

func (s *Service) ConsumeAI(ctx context.Context, tokens int64) (*domain.Decision, error) {
	if tokens <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	def, err := s.tierFor(ctx)
	if err != nil {
		return nil, err
	}

	ok, record, err := s.usageSvc.TryConsumeTokens(ctx, tokens)
	if err != nil {
		return nil, err
	}

	decision := s.usageDecision(record.TokensUsed, record.TokensLimit, def)
	decision.Allowed = ok
	decision.Requested = tokens
	if !ok {
		decision.Reason = fmt.Sprintf(
			"monthly AI token allowance reached: %d of %d tokens used, %d more requested",
			record.TokensUsed, record.TokensLimit, tokens,
		)
		decision.Upgrade = s.upgradeFor(def)
	}
	s.recordDecision("ai_tokens", decision)
	return decision, nil
}

func (s *Service) CanIngestDocument(ctx context.Context) (*domain.Decision, error) {
	def, err := s.tierFor(ctx)
	if err != nil {
		return nil, err
	}

	record, err := s.usageSvc.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	decision := s.consumptionDecision(record.DocsUsed, record.DocsLimit, 1, def)
	if !decision.Allowed {
		decision.Reason = fmt.Sprintf(
			"monthly document allowance reached: %d of %d documents ingested",
			record.DocsUsed, record.DocsLimit,
		)
	}
	s.recordDecision("documents", decision)
	return decision, nil
}

func (s *Service) CheckStoryUpdate(ctx context.Context) (*domain.Decision, error) {
	def, err := s.tierFor(ctx)
	if err != nil {
		return nil, err
	}

	if !def.StoryUpdatesEnabled {
		decision := &domain.Decision{
			Allowed:   false,
			IsBlocked: true,
			Reason:    fmt.Sprintf("story updates are not included in the %s tier", def.Tier),
			Upgrade:   s.upgradeFor(def),
		}
		s.recordDecision("story_updates", decision)
		return decision, nil
	}

	record, err := s.usageSvc.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	decision := &domain.Decision{
		Allowed: true,
		Used:    record.StoryUpdatesUsed,
	}
	s.recordDecision("story_updates", decision)
	return decision, nil
}

// CheckBulkLimit is a per-request size cap, not a cumulative-usage cap; it
// never consults the ledger.
func (s *Service) CheckBulkLimit(ctx context.Context, count int) (*domain.Decision, error) {
	def, err := s.tierFor(ctx)
	if err != nil {
		return nil, err
	}
	decision := s.sizeCapDecision(count, def.BulkOperationLimit, def,
		"bulk operation of %d items exceeds the %s tier limit of %d")
	s.recordDecision("bulk", decision)
	return decision, nil
}

func (s *Service) CheckPageLimit(ctx context.Context, pages int) (*domain.Decision, error) {
	def, err := s.tierFor(ctx)
	if err != nil {
		return nil, err
	}
	decision := s.sizeCapDecision(pages, def.MaxPagesPerUpload, def,
		"upload of %d pages exceeds the %s tier limit of %d")
	s.recordDecision("pages", decision)
	return decision, nil
}

func (s *Service) RequireApproval(ctx context.Context, storyIDs []string) (*domain.ApprovalCheck, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	def, err := s.tierFor(ctx)
	if err != nil {
		return nil, err
	}
	if !def.ApprovalsRequired {
		return &domain.ApprovalCheck{}, nil
	}

	ids := make([]snowflake.ID, 0, len(storyIDs))
	for _, raw := range storyIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidStoryID
		}
		ids = append(ids, id)
	}

	stories, err := s.storyRepo.ListByIDs(ctx, s.db, orgID, ids)
	if err != nil {
		return nil, err
	}

	var unapproved []string
	for _, story := range stories {
		if story.Status.Terminal() {
			unapproved = append(unapproved, story.ID.String())
		}
	}

	return &domain.ApprovalCheck{
		Required:          len(unapproved) > 0,
		UnapprovedStories: unapproved,
	}, nil
}

func (s *Service) ValidateOperationLimits(ctx context.Context, op domain.Operation, count int) (*domain.Decision, error) {
	def, err := s.tierFor(ctx)
	if err != nil {
		return nil, err
	}

	var limit int
	var format string
	switch op {
	case domain.OperationSplit:
		limit = def.MaxSplitChildren
		format = "split cannot create more than %d child %s on the %s tier"
	case domain.OperationBulkSplit:
		limit = def.BulkSplitLimit
		format = "bulk split is limited to %d %s per request on the %s tier"
	case domain.OperationBulkRefine:
		limit = def.BulkOperationLimit
		format = "bulk refine is limited to %d %s per request on the %s tier"
	default:
		return nil, domain.ErrUnknownOperation
	}

	decision := &domain.Decision{
		Allowed:   count <= limit,
		Limit:     int64(limit),
		Requested: int64(count),
	}
	if !decision.Allowed {
		decision.IsBlocked = true
		decision.Reason = fmt.Sprintf(format, limit, storyWord(limit), def.Tier)
		decision.Upgrade = s.upgradeFor(def)
	}
	s.recordDecision(string(op), decision)
	return decision, nil
}

// ValidateCheckout mirrors seat validation at the billing boundary by
// delegating to the catalog, so the thresholds cannot drift.
func (s *Service) ValidateCheckout(tierKey string, seats int) tier.SeatValidation {
	return tier.ValidateSeatCount(tierKey, seats)
}

func (s *Service) tierFor(ctx context.Context) (tier.Definition, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return tier.Definition{}, domain.ErrInvalidOrganization
	}
	org, err := s.orgRepo.FindByID(ctx, s.db, orgID)
	if err != nil {
		return tier.Definition{}, err
	}
	if org == nil {
		return tier.Definition{}, domain.ErrUnknownOrganization
	}
	return tier.GetTierConfig(org.Tier), nil
}

// usageDecision fills the usage view of a counter without deciding.
func (s *Service) usageDecision(used, limit int64, def tier.Definition) *domain.Decision {
	view := usagedomain.UsageFor(used, limit)
	decision := &domain.Decision{
		Used:       view.Used,
		Limit:      view.Limit,
		Remaining:  view.Remaining,
		Percentage: view.Percentage,
	}
	if limit > 0 {
		threshold := float64(s.warningThreshold())
		decision.IsWarning = decision.Percentage >= threshold && decision.Percentage < 100
		decision.IsBlocked = used >= limit
	}
	return decision
}

// consumptionDecision is the pre-flight rule: deny when the addition would
// exceed the limit. A zero limit is unlimited.
func (s *Service) consumptionDecision(used, limit, requested int64, def tier.Definition) *domain.Decision {
	decision := s.usageDecision(used, limit, def)
	decision.Requested = requested
	if limit <= 0 {
		decision.Allowed = true
		return decision
	}
	decision.Allowed = used+requested <= limit
	if !decision.Allowed {
		decision.Upgrade = s.upgradeFor(def)
	}
	return decision
}

func (s *Service) sizeCapDecision(requested, limit int, def tier.Definition, format string) *domain.Decision {
	decision := &domain.Decision{
		Allowed:   limit <= 0 || requested <= limit,
		Limit:     int64(limit),
		Requested: int64(requested),
	}
	if !decision.Allowed {
		decision.IsBlocked = true
		decision.Reason = fmt.Sprintf(format, requested, def.Tier, limit)
		decision.Upgrade = s.upgradeFor(def)
	}
	return decision
}

func (s *Service) upgradeFor(def tier.Definition) *domain.UpgradeSuggestion {
	if def.UpgradeTier == "" {
		return nil
	}
	return &domain.UpgradeSuggestion{
		Tier: string(def.UpgradeTier),
		URL:  s.limits.Get().UpgradeURL,
	}
}

func (s *Service) warningThreshold() int {
	return s.limits.Get().WarningThresholdPercent
}

func (s *Service) recordDecision(resource string, decision *domain.Decision) {
	if s.metrics == nil {
		return
	}
	outcome := obsmetrics.OutcomeAllowed
	switch {
	case !decision.Allowed:
		outcome = obsmetrics.OutcomeDenied
	case decision.IsWarning:
		outcome = obsmetrics.OutcomeWarning
	}
	s.metrics.RecordDecision(resource, outcome)
}

func storyWord(n int) string {
	if n == 1 {
		return "story"
	}
	return "stories"
}
