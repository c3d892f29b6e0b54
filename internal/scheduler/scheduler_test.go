package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/storyloom/storyloom/internal/clock"
	"github.com/storyloom/storyloom/internal/config"
	orgdomain "github.com/storyloom/storyloom/internal/organization/domain"
	orgrepository "github.com/storyloom/storyloom/internal/organization/repository"
	usagedomain "github.com/storyloom/storyloom/internal/usage/domain"
	usagerepository "github.com/storyloom/storyloom/internal/usage/repository"
	usageservice "github.com/storyloom/storyloom/internal/usage/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db    *gorm.DB
	sched *Scheduler
	clk   *clock.FakeClock
	node  *snowflake.Node
	repo  usagedomain.Repository
}

func newTestEnv(t *testing.T) *testEnv {
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

	if err := db.AutoMigrate(&orgdomain.Organization{}, &usagedomain.UsageRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC))
	repo := usagerepository.Provide()

	sched, err := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		UsageRepo: repo,
		OrgRepo:   orgrepository.Provide(),
		Limits:    config.NewStaticLimitsHolder(config.DefaultLimitsConfig()),
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	return &testEnv{db: db, sched: sched, clk: clk, node: node, repo: repo}
}

func (env *testEnv) createOrg(t *testing.T, slug, tierKey string, status orgdomain.Status, trialEndsAt *time.Time) orgdomain.Organization {
	t.Helper()
	org := orgdomain.Organization{
		ID:          env.node.Generate(),
		Name:        slug,
		Slug:        slug,
		Tier:        tierKey,
		Seats:       1,
		Status:      status,
		TrialEndsAt: trialEndsAt,
	}
	if err := env.db.Create(&org).Error; err != nil {
		t.Fatalf("create org: %v", err)
	}
	return org
}

func (env *testEnv) openRecord(t *testing.T, orgID snowflake.ID, tierKey string, at time.Time) *usagedomain.UsageRecord {
	t.Helper()
	record := usageservice.NewRecordForPeriod(env.node.Generate(), orgID, tierKey, at)
	inserted, err := env.repo.Insert(context.Background(), env.db, record)
	if err != nil {
		t.Fatalf("insert record: %v", err)
	}
	if !inserted {
		t.Fatal("record already existed")
	}
	return record
}

func TestRolloverClosesExpiredAndOpensSuccessor(t *testing.T) {
	env := newTestEnv(t)
	org := env.createOrg(t, "acme", "pro", orgdomain.StatusActive, nil)
	old := env.openRecord(t, org.ID, org.Tier, env.clk.Now())

	// Cross into April; the March row is now expired but still open.
	env.clk.Advance(25 * 24 * time.Hour)

	if err := env.sched.RolloverUsageJob(context.Background()); err != nil {
		t.Fatalf("rollover: %v", err)
	}

	var closed usagedomain.UsageRecord
	if err := env.db.Where("id = ?", old.ID).First(&closed).Error; err != nil {
		t.Fatalf("reload old record: %v", err)
	}
	if closed.ClosedAt == nil {
		t.Fatal("expected expired record to be closed")
	}

	current, err := env.repo.FindCurrent(context.Background(), env.db, org.ID, env.clk.Now())
	if err != nil {
		t.Fatalf("find current: %v", err)
	}
	if current == nil {
		t.Fatal("expected a successor record for the new period")
	}
	if current.ID == old.ID {
		t.Fatal("successor must be a fresh row")
	}
	if current.TokensUsed != 0 {
		t.Fatalf("expected fresh counters, got %d", current.TokensUsed)
	}
	if current.TokensLimit != 200_000 {
		t.Fatalf("expected pro limits on successor, got %d", current.TokensLimit)
	}
}

func TestRolloverIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	org := env.createOrg(t, "acme", "starter", orgdomain.StatusActive, nil)
	env.openRecord(t, org.ID, org.Tier, env.clk.Now())

	env.clk.Advance(25 * 24 * time.Hour)

	for i := 0; i < 3; i++ {
		if err := env.sched.RolloverUsageJob(context.Background()); err != nil {
			t.Fatalf("rollover %d: %v", i, err)
		}
	}

	var count int64
	if err := env.db.Model(&usagedomain.UsageRecord{}).Where("org_id = ?", org.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected exactly 2 records after repeated sweeps, got %d", count)
	}
}

func TestRolloverAppliesTierChangeAtPeriodBoundary(t *testing.T) {
	env := newTestEnv(t)
	org := env.createOrg(t, "acme", "starter", orgdomain.StatusActive, nil)
	env.openRecord(t, org.ID, org.Tier, env.clk.Now())

	// Mid-period upgrade: the open row keeps its seeded limits.
	if err := env.db.Exec(`UPDATE organizations SET tier = ? WHERE id = ?`, "team", org.ID).Error; err != nil {
		t.Fatalf("change tier: %v", err)
	}

	env.clk.Advance(25 * 24 * time.Hour)
	if err := env.sched.RolloverUsageJob(context.Background()); err != nil {
		t.Fatalf("rollover: %v", err)
	}

	current, err := env.repo.FindCurrent(context.Background(), env.db, org.ID, env.clk.Now())
	if err != nil {
		t.Fatalf("find current: %v", err)
	}
	if current == nil {
		t.Fatal("expected successor record")
	}
	if current.TokensLimit != 1_000_000 {
		t.Fatalf("expected team limits on the new period, got %d", current.TokensLimit)
	}
}

func TestRolloverSkipsExpiredOrganizations(t *testing.T) {
	env := newTestEnv(t)
	org := env.createOrg(t, "ghost", "pro", orgdomain.StatusExpired, nil)
	env.openRecord(t, org.ID, org.Tier, env.clk.Now())

	env.clk.Advance(25 * 24 * time.Hour)
	if err := env.sched.RolloverUsageJob(context.Background()); err != nil {
		t.Fatalf("rollover: %v", err)
	}

	current, err := env.repo.FindCurrent(context.Background(), env.db, org.ID, env.clk.Now())
	if err != nil {
		t.Fatalf("find current: %v", err)
	}
	if current != nil {
		t.Fatal("expired organizations must not get a successor record")
	}
}

func TestExpireTrialsIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	past := env.clk.Now().Add(-24 * time.Hour)
	future := env.clk.Now().Add(7 * 24 * time.Hour)
	lapsed := env.createOrg(t, "lapsed", "pro", orgdomain.StatusTrialing, &past)
	active := env.createOrg(t, "active", "pro", orgdomain.StatusTrialing, &future)

	for i := 0; i < 2; i++ {
		if err := env.sched.ExpireTrialsJob(context.Background()); err != nil {
			t.Fatalf("expire trials %d: %v", i, err)
		}
	}

	var reloaded orgdomain.Organization
	if err := env.db.Where("id = ?", lapsed.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != orgdomain.StatusExpired {
		t.Fatalf("expected lapsed trial to expire, got %s", reloaded.Status)
	}

	reloaded = orgdomain.Organization{}
	if err := env.db.Where("id = ?", active.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != orgdomain.StatusTrialing {
		t.Fatalf("future trial must stay trialing, got %s", reloaded.Status)
	}
}

func TestRunOnceRunsAllJobs(t *testing.T) {
	env := newTestEnv(t)

	past := env.clk.Now().Add(-time.Hour)
	org := env.createOrg(t, "acme", "pro", orgdomain.StatusTrialing, &past)
	env.openRecord(t, org.ID, org.Tier, env.clk.Now())

	env.clk.Advance(25 * 24 * time.Hour)
	if err := env.sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	var reloaded orgdomain.Organization
	if err := env.db.Where("id = ?", org.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != orgdomain.StatusExpired {
		t.Fatalf("expected trial expiry, got %s", reloaded.Status)
	}
}

func TestRunJobTreatsTimeoutAsSoft(t *testing.T) {
	env := newTestEnv(t)
	env.sched.cfg.JobTimeout = 5 * time.Millisecond

	err := env.sched.runJob(context.Background(), "slow_job", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected soft timeout, got %v", err)
	}
}
