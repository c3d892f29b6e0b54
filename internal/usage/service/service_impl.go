package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/storyloom/storyloom/internal/clock"
	obsmetrics "github.com/storyloom/storyloom/internal/observability/metrics"
	orgdomain "github.com/storyloom/storyloom/internal/organization/domain"
	"github.com/storyloom/storyloom/internal/orgcontext"
	"github.com/storyloom/storyloom/internal/tier"
	"github.com/storyloom/storyloom/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	OrgRepo orgdomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	orgRepo orgdomain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("usage.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		orgRepo: p.OrgRepo,
		metrics: p.Metrics,
	}
}

// GetOrCreate returns the current-period record, creating it lazily. The
// sweep normally opens fresh rows at rollover; this is the defensive
// fallback so a read between period end and the next sweep never sees a
// stale row.
func (s *Service) GetOrCreate(ctx context.Context) (*domain.UsageRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	now := s.clock.Now()

	record, err := s.repo.FindCurrent(ctx, s.db, orgID, now)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}

	org, err := s.orgRepo.FindByID(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrUnknownOrganization
	}

	record = NewRecordForPeriod(s.genID.Generate(), orgID, org.Tier, now)

	inserted, err := s.repo.Insert(ctx, s.db, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Concurrent first call won the upsert; read its row.
		return s.repo.FindCurrent(ctx, s.db, orgID, now)
	}

	s.log.Info("usage record opened",
		zap.String("org_id", orgID.String()),
		zap.String("tier", org.Tier),
		zap.Time("period_start", record.PeriodStart),
	)

	return record, nil
}

// NewRecordForPeriod seeds a fresh counter row for the period containing at,
// with limits copied from the tier catalog. Shared with the rollover sweep.
func NewRecordForPeriod(id, orgID snowflake.ID, rawTier string, at time.Time) *domain.UsageRecord {
	def := tier.GetTierConfig(rawTier)
	return &domain.UsageRecord{
		ID:             id,
		OrgID:          orgID,
		PeriodStart:    domain.PeriodStartFor(at),
		PeriodEnd:      domain.PeriodEndFor(at),
		TokensLimit:    def.TokenAllowance,
		DocsLimit:      def.DocAllowance,
		AIActionsLimit: def.AIActionAllowance,
		CreatedAt:      at.UTC(),
		UpdatedAt:      at.UTC(),
	}
}

func (s *Service) AddTokens(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	record, err := s.GetOrCreate(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.AddTokens(ctx, s.db, record.ID, amount, s.clock.Now()); err != nil {
		return err
	}
	s.recordIncrement(domain.ResourceTokens)
	return nil
}

func (s *Service) AddDocument(ctx context.Context) error {
	record, err := s.GetOrCreate(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.AddDocs(ctx, s.db, record.ID, 1, s.clock.Now()); err != nil {
		return err
	}
	s.recordIncrement(domain.ResourceDocuments)
	return nil
}

func (s *Service) AddAIAction(ctx context.Context) error {
	record, err := s.GetOrCreate(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.AddAIActions(ctx, s.db, record.ID, 1, s.clock.Now()); err != nil {
		return err
	}
	s.recordIncrement(domain.ResourceAIActions)
	return nil
}

func (s *Service) AddStoryUpdate(ctx context.Context) error {
	record, err := s.GetOrCreate(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.AddStoryUpdates(ctx, s.db, record.ID, 1, s.clock.Now()); err != nil {
		return err
	}
	s.recordIncrement(domain.ResourceStoryUpdates)
	return nil
}

func (s *Service) TryConsumeTokens(ctx context.Context, amount int64) (bool, *domain.UsageRecord, error) {
	if amount <= 0 {
		return false, nil, domain.ErrInvalidAmount
	}
	record, err := s.GetOrCreate(ctx)
	if err != nil {
		return false, nil, err
	}

	ok, err := s.repo.ConditionalAddTokens(ctx, s.db, record.ID, amount, s.clock.Now())
	if err != nil {
		return false, nil, err
	}

	updated, err := s.repo.FindByID(ctx, s.db, record.ID)
	if err != nil {
		return false, nil, err
	}
	if updated == nil {
		updated = record
	}

	if ok {
		s.recordIncrement(domain.ResourceTokens)
	}
	return ok, updated, nil
}

func (s *Service) Summary(ctx context.Context) (*domain.Summary, error) {
	record, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Summary{
		Tokens:       domain.UsageFor(record.TokensUsed, record.TokensLimit),
		Docs:         domain.UsageFor(record.DocsUsed, record.DocsLimit),
		AIActions:    domain.UsageFor(record.AIActionsUsed, record.AIActionsLimit),
		StoryUpdates: domain.UsageFor(record.StoryUpdatesUsed, 0),
		BillingPeriod: domain.Period{
			Start: record.PeriodStart,
			End:   record.PeriodEnd,
		},
	}, nil
}

func (s *Service) recordIncrement(resource string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordIncrement(resource)
}
