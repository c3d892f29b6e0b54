package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/storyloom/storyloom/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectStory        = "story"
	ObjectUsage        = "usage"
	ObjectOrganization = "organization"
	ObjectSweep        = "sweep"
)

const (
	ActionStoryCreate  = "story.create"
	ActionStoryUpdate  = "story.update"
	ActionStoryApprove = "story.approve"

	ActionUsageView = "usage.view"

	ActionOrganizationChangeTier = "organization.change_tier"

	ActionSweepRun = "sweep.run"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, err := s.resolveActor(ctx, actor)
	if err != nil {
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string) (string, string, error) {
	if actor == "system" {
		return actor, "role:system", nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", ErrInvalidActor
		}
		role := strings.ToLower(strings.TrimSpace(orgcontext.RoleFromContext(ctx)))
		if role == "" {
			return "", "", ErrForbidden
		}
		return actor, fmt.Sprintf("role:%s", role), nil
	}
	return "", "", ErrInvalidActor
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Viewers read usage, nothing else.
		{"role:viewer", ObjectUsage, ActionUsageView},

		// Editors write stories.
		{"role:editor", ObjectUsage, ActionUsageView},
		{"role:editor", ObjectStory, ActionStoryCreate},
		{"role:editor", ObjectStory, ActionStoryUpdate},

		// Approvers additionally sign off terminal-status stories.
		{"role:approver", ObjectUsage, ActionUsageView},
		{"role:approver", ObjectStory, ActionStoryCreate},
		{"role:approver", ObjectStory, ActionStoryUpdate},
		{"role:approver", ObjectStory, ActionStoryApprove},

		// Admins manage the subscription.
		{"role:admin", ObjectUsage, ActionUsageView},
		{"role:admin", ObjectStory, ActionStoryCreate},
		{"role:admin", ObjectStory, ActionStoryUpdate},
		{"role:admin", ObjectStory, ActionStoryApprove},
		{"role:admin", ObjectOrganization, ActionOrganizationChangeTier},

		// Automated processes.
		{"role:system", ObjectSweep, ActionSweepRun},
		{"role:system", ObjectUsage, ActionUsageView},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

var Module = fx.Module("authorization",
	fx.Provide(
		NewEnforcer,
		NewService,
	),
)
