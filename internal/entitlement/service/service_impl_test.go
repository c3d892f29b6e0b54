package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/storyloom/storyloom/internal/clock"
	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/entitlement/domain"
	orgdomain "github.com/storyloom/storyloom/internal/organization/domain"
	orgrepository "github.com/storyloom/storyloom/internal/organization/repository"
	"github.com/storyloom/storyloom/internal/orgcontext"
	storydomain "github.com/storyloom/storyloom/internal/story/domain"
	storyrepository "github.com/storyloom/storyloom/internal/story/repository"
	usagedomain "github.com/storyloom/storyloom/internal/usage/domain"
	usagerepository "github.com/storyloom/storyloom/internal/usage/repository"
	usageservice "github.com/storyloom/storyloom/internal/usage/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	svc      domain.Service
	usageSvc usagedomain.Service
	node     *snowflake.Node
	orgID    snowflake.ID
	ctx      context.Context
}

func newTestEnv(t *testing.T, tierKey string) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&orgdomain.Organization{}, &usagedomain.UsageRecord{}, &storydomain.Story{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	org := orgdomain.Organization{
		ID:     node.Generate(),
		Name:   "Acme",
		Slug:   "acme",
		Tier:   tierKey,
		Seats:  2,
		Status: orgdomain.StatusActive,
	}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("create org: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC))
	orgRepo := orgrepository.Provide()

	usageSvc := usageservice.New(usageservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Repo:    usagerepository.Provide(),
		OrgRepo: orgRepo,
	})

	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		OrgRepo:   orgRepo,
		StoryRepo: storyrepository.Provide(),
		UsageSvc:  usageSvc,
		Limits:    config.NewStaticLimitsHolder(config.DefaultLimitsConfig()),
	})

	return &testEnv{
		db:       db,
		svc:      svc,
		usageSvc: usageSvc,
		node:     node,
		orgID:    org.ID,
		ctx:      orgcontext.WithOrgID(context.Background(), int64(org.ID)),
	}
}

func (env *testEnv) setUsage(t *testing.T, column string, value int64) {
	t.Helper()
	record, err := env.usageSvc.GetOrCreate(env.ctx)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if err := env.db.Exec(`UPDATE usage_records SET `+column+` = ? WHERE id = ?`, value, record.ID).Error; err != nil {
		t.Fatalf("set usage: %v", err)
	}
}

func TestCanUseAIWarnsAtNinetyPercent(t *testing.T) {
	env := newTestEnv(t, "starter")
	env.setUsage(t, "tokens_used", 45_000)

	decision, err := env.svc.CanUseAI(env.ctx, 1000)
	if err != nil {
		t.Fatalf("can use ai: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected request below the limit to be allowed")
	}
	if !decision.IsWarning {
		t.Fatal("expected warning at 90 percent")
	}
	if decision.IsBlocked {
		t.Fatal("warning state must not be blocked")
	}
	if decision.Percentage != 90 {
		t.Fatalf("expected 90 percent, got %v", decision.Percentage)
	}
	if decision.Remaining != 5000 {
		t.Fatalf("expected 5000 remaining, got %d", decision.Remaining)
	}
}

func TestCanUseAIDeniesAtLimit(t *testing.T) {
	env := newTestEnv(t, "starter")
	env.setUsage(t, "tokens_used", 50_000)

	decision, err := env.svc.CanUseAI(env.ctx, 1)
	if err != nil {
		t.Fatalf("can use ai: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected denial at the limit")
	}
	if !decision.IsBlocked {
		t.Fatal("expected blocked at 100 percent")
	}
	if decision.IsWarning {
		t.Fatal("blocked state must not also warn")
	}
	if !strings.Contains(decision.Reason, "50000 of 50000") {
		t.Fatalf("expected counts in reason, got %q", decision.Reason)
	}
	if decision.Upgrade == nil || decision.Upgrade.Tier != "pro" {
		t.Fatalf("expected pro upgrade suggestion, got %+v", decision.Upgrade)
	}
}

func TestCanUseAIDeniesWhenAdditionWouldExceed(t *testing.T) {
	env := newTestEnv(t, "starter")
	env.setUsage(t, "tokens_used", 49_500)

	decision, err := env.svc.CanUseAI(env.ctx, 1000)
	if err != nil {
		t.Fatalf("can use ai: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected denial when the addition would exceed the limit")
	}
	if decision.IsBlocked {
		t.Fatal("not yet at the hard cap")
	}

	// The same remaining budget fits a smaller request.
	decision, err = env.svc.CanUseAI(env.ctx, 500)
	if err != nil {
		t.Fatalf("can use ai: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected request within remaining budget to pass")
	}
}

func TestConsumeAIStopsExactlyAtLimit(t *testing.T) {
	env := newTestEnv(t, "starter")
	env.setUsage(t, "tokens_used", 49_000)

	decision, err := env.svc.ConsumeAI(env.ctx, 1000)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected consume up to the limit to pass")
	}
	if decision.Used != 50_000 {
		t.Fatalf("expected 50000 used, got %d", decision.Used)
	}
	if !decision.IsBlocked {
		t.Fatal("expected blocked flag once the allowance is exhausted")
	}

	decision, err = env.svc.ConsumeAI(env.ctx, 1)
	if err != nil {
		t.Fatalf("consume past limit: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected denial past the limit")
	}
	if decision.Used != 50_000 {
		t.Fatalf("denied consume mutated counter: %d", decision.Used)
	}
}

func TestCanIngestDocumentBoundary(t *testing.T) {
	env := newTestEnv(t, "starter")
	env.setUsage(t, "docs_used", 9)

	decision, err := env.svc.CanIngestDocument(env.ctx)
	if err != nil {
		t.Fatalf("can ingest: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected the tenth document to be allowed")
	}

	env.setUsage(t, "docs_used", 10)
	decision, err = env.svc.CanIngestDocument(env.ctx)
	if err != nil {
		t.Fatalf("can ingest: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected the eleventh document to be denied")
	}
	if !strings.Contains(decision.Reason, "10 of 10") {
		t.Fatalf("expected counts in reason, got %q", decision.Reason)
	}
}

func TestCheckStoryUpdateFlagGated(t *testing.T) {
	env := newTestEnv(t, "starter")

	decision, err := env.svc.CheckStoryUpdate(env.ctx)
	if err != nil {
		t.Fatalf("check story update: %v", err)
	}
	if decision.Allowed {
		t.Fatal("starter tier must not allow story updates")
	}
	if !strings.Contains(decision.Reason, "starter tier") {
		t.Fatalf("expected tier in reason, got %q", decision.Reason)
	}
	if decision.Upgrade == nil || decision.Upgrade.Tier != "pro" {
		t.Fatalf("expected pro upgrade suggestion, got %+v", decision.Upgrade)
	}

	proEnv := newTestEnv(t, "pro")
	decision, err = proEnv.svc.CheckStoryUpdate(proEnv.ctx)
	if err != nil {
		t.Fatalf("check story update: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("pro tier must allow story updates")
	}
}

func TestCheckBulkLimit(t *testing.T) {
	env := newTestEnv(t, "starter")

	decision, err := env.svc.CheckBulkLimit(env.ctx, 15)
	if err != nil {
		t.Fatalf("check bulk: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("15 items must pass the starter limit of 20")
	}

	decision, err = env.svc.CheckBulkLimit(env.ctx, 25)
	if err != nil {
		t.Fatalf("check bulk: %v", err)
	}
	if decision.Allowed {
		t.Fatal("25 items must fail the starter limit of 20")
	}
	if !strings.Contains(decision.Reason, "20") {
		t.Fatalf("expected limit in reason, got %q", decision.Reason)
	}
	if !strings.Contains(decision.Reason, "25") {
		t.Fatalf("expected requested count in reason, got %q", decision.Reason)
	}
}

func TestCheckPageLimit(t *testing.T) {
	env := newTestEnv(t, "starter")

	decision, err := env.svc.CheckPageLimit(env.ctx, 21)
	if err != nil {
		t.Fatalf("check pages: %v", err)
	}
	if decision.Allowed {
		t.Fatal("21 pages must fail the starter cap of 20")
	}
	if !strings.Contains(decision.Reason, "starter tier limit of 20") {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}

	decision, err = env.svc.CheckPageLimit(env.ctx, 20)
	if err != nil {
		t.Fatalf("check pages: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("20 pages must pass the starter cap of 20")
	}
}

func TestValidateOperationLimits(t *testing.T) {
	env := newTestEnv(t, "starter")

	decision, err := env.svc.ValidateOperationLimits(env.ctx, domain.OperationSplit, 4)
	if err != nil {
		t.Fatalf("validate split: %v", err)
	}
	if decision.Allowed {
		t.Fatal("4 children must fail the starter split cap of 3")
	}
	if !strings.Contains(decision.Reason, "3 child stories") {
		t.Fatalf("expected pluralized reason, got %q", decision.Reason)
	}

	decision, err = env.svc.ValidateOperationLimits(env.ctx, domain.OperationBulkSplit, 6)
	if err != nil {
		t.Fatalf("validate bulk split: %v", err)
	}
	if decision.Allowed {
		t.Fatal("6 stories must fail the starter bulk split cap of 5")
	}
	if !strings.Contains(decision.Reason, "5 stories") {
		t.Fatalf("expected pluralized reason, got %q", decision.Reason)
	}

	decision, err = env.svc.ValidateOperationLimits(env.ctx, domain.OperationBulkRefine, 20)
	if err != nil {
		t.Fatalf("validate bulk refine: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("20 stories must pass the starter bulk cap of 20")
	}

	if _, err := env.svc.ValidateOperationLimits(env.ctx, domain.Operation("merge"), 1); err != domain.ErrUnknownOperation {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestRequireApproval(t *testing.T) {
	env := newTestEnv(t, "team")

	done := storydomain.Story{ID: env.node.Generate(), OrgID: env.orgID, Title: "done", Status: storydomain.StatusDone}
	draft := storydomain.Story{ID: env.node.Generate(), OrgID: env.orgID, Title: "draft", Status: storydomain.StatusDraft}
	if err := env.db.Create(&done).Error; err != nil {
		t.Fatalf("create story: %v", err)
	}
	if err := env.db.Create(&draft).Error; err != nil {
		t.Fatalf("create story: %v", err)
	}

	check, err := env.svc.RequireApproval(env.ctx, []string{done.ID.String(), draft.ID.String()})
	if err != nil {
		t.Fatalf("require approval: %v", err)
	}
	if !check.Required {
		t.Fatal("expected approval for a terminal-status story on the team tier")
	}
	if len(check.UnapprovedStories) != 1 || check.UnapprovedStories[0] != done.ID.String() {
		t.Fatalf("unexpected unapproved list: %v", check.UnapprovedStories)
	}

	// Tiers without the approvals flag skip the check entirely.
	starterEnv := newTestEnv(t, "starter")
	blocked := storydomain.Story{ID: starterEnv.node.Generate(), OrgID: starterEnv.orgID, Title: "blocked", Status: storydomain.StatusBlocked}
	if err := starterEnv.db.Create(&blocked).Error; err != nil {
		t.Fatalf("create story: %v", err)
	}
	check, err = starterEnv.svc.RequireApproval(starterEnv.ctx, []string{blocked.ID.String()})
	if err != nil {
		t.Fatalf("require approval: %v", err)
	}
	if check.Required {
		t.Fatal("starter tier must not require approval")
	}
}

func TestRequireApprovalRejectsBadID(t *testing.T) {
	env := newTestEnv(t, "team")

	if _, err := env.svc.RequireApproval(env.ctx, []string{"not-a-snowflake"}); err != domain.ErrInvalidStoryID {
		t.Fatalf("expected ErrInvalidStoryID, got %v", err)
	}
}

func TestValidateCheckoutDelegatesToCatalog(t *testing.T) {
	env := newTestEnv(t, "pro")

	result := env.svc.ValidateCheckout("pro", 5)
	if result.Valid {
		t.Fatal("5 seats must fail pro")
	}
	if !strings.Contains(result.Error, "team") {
		t.Fatalf("expected team suggestion, got %q", result.Error)
	}

	result = env.svc.ValidateCheckout("team", 4)
	if result.Valid {
		t.Fatal("4 seats must fail team")
	}
	if !strings.Contains(result.Error, "pro") {
		t.Fatalf("expected pro suggestion, got %q", result.Error)
	}

	if result := env.svc.ValidateCheckout("pro", 4); !result.Valid {
		t.Fatalf("4 seats must pass pro: %q", result.Error)
	}
	if result := env.svc.ValidateCheckout("team", 5); !result.Valid {
		t.Fatalf("5 seats must pass team: %q", result.Error)
	}
}

func TestDecisionsNeverErrorOnDenial(t *testing.T) {
	env := newTestEnv(t, "starter")
	env.setUsage(t, "tokens_used", 50_000)

	if _, err := env.svc.CanUseAI(env.ctx, 100); err != nil {
		t.Fatalf("denial must be data, not an error: %v", err)
	}
	if _, err := env.svc.CheckBulkLimit(env.ctx, 10_000); err != nil {
		t.Fatalf("denial must be data, not an error: %v", err)
	}
	if _, err := env.svc.CheckStoryUpdate(env.ctx); err != nil {
		t.Fatalf("denial must be data, not an error: %v", err)
	}
}
