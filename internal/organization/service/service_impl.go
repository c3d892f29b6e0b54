package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/storyloom/storyloom/internal/organization/domain"
	"github.com/storyloom/storyloom/internal/tier"
	"github.com/storyloom/storyloom/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const trialLength = 14 * 24 * time.Hour

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	resolved := tier.Resolve(req.Tier)
	seats := req.Seats
	if seats == 0 {
		seats = tier.GetTierConfig(string(resolved)).SeatMin
	}
	if v := tier.ValidateSeatCount(string(resolved), seats); !v.Valid {
		return nil, domain.ErrInvalidSeats
	}

	now := time.Now().UTC()
	org := &domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		Tier:      string(resolved),
		Seats:     seats,
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Trial {
		org.Status = domain.StatusTrialing
		trialEnd := now.Add(trialLength)
		org.TrialEndsAt = &trialEnd
	}
	if req.Metadata != nil {
		org.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Create(ctx, s.db, org); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("tier", org.Tier),
	)

	return org, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Organization, error) {
	orgID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || orgID == 0 {
		return nil, domain.ErrInvalidID
	}

	org, err := s.repo.FindByID(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return org, nil
}

func (s *Service) ChangeTier(ctx context.Context, req domain.ChangeTierRequest) (*domain.Organization, error) {
	org, err := s.Get(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}

	resolved := tier.Resolve(req.Tier)
	seats := req.Seats
	if seats == 0 {
		seats = org.Seats
	}
	// Checkout-time seat validation goes through the catalog, the single
	// source of truth for the thresholds.
	if v := tier.ValidateSeatCount(string(resolved), seats); !v.Valid {
		return nil, domain.ErrInvalidSeats
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateTier(ctx, s.db, org.ID, string(resolved), seats, now); err != nil {
		return nil, err
	}

	org.Tier = string(resolved)
	org.Seats = seats
	org.UpdatedAt = now

	s.log.Info("organization tier changed",
		zap.String("org_id", org.ID.String()),
		zap.String("tier", org.Tier),
		zap.Int("seats", seats),
	)

	return org, nil
}
