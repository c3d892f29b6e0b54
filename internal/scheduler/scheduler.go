// Package scheduler runs the periodic sweep over usage periods and trials.
// The sweep is the primary rollover mechanism; the usage service's lazy
// get-or-create covers reads that land between period end and the next run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/storyloom/storyloom/internal/clock"
	"github.com/storyloom/storyloom/internal/config"
	obsmetrics "github.com/storyloom/storyloom/internal/observability/metrics"
	orgdomain "github.com/storyloom/storyloom/internal/organization/domain"
	usagedomain "github.com/storyloom/storyloom/internal/usage/domain"
	usageservice "github.com/storyloom/storyloom/internal/usage/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler configuration is incomplete")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	UsageRepo usagedomain.Repository
	OrgRepo   orgdomain.Repository
	Limits    *config.LimitsHolder
	Metrics   *obsmetrics.Metrics `optional:"true"`
	Config    Config              `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	usageRepo usagedomain.Repository
	orgRepo   orgdomain.Repository
	limits    *config.LimitsHolder
	metrics   *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.UsageRepo == nil || p.OrgRepo == nil || p.Limits == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		usageRepo: p.UsageRepo,
		orgRepo:   p.OrgRepo,
		limits:    p.Limits,
		metrics:   p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", uuid.NewString()),
	)

	err := fn(ctx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.recordSweep(name, "ok", elapsed)
		return nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		// Soft timeout: the next run picks up where this one stopped.
		s.recordSweep(name, "timeout", elapsed)
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout), zap.Error(err))
		return nil
	default:
		s.recordSweep(name, "error", elapsed)
		log.Error("job failed", zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"rollover_usage", s.RolloverUsageJob},
		{"expire_trials", s.ExpireTrialsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs means everything runs (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// RolloverUsageJob closes usage rows whose period has ended and opens the
// successor row for the current period, with limits re-read from the
// organization's tier at rollover time.
func (s *Scheduler) RolloverUsageJob(ctx context.Context) error {
	now := s.clock.Now()
	batch := s.batchSize()

	for {
		var processed int
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			expired, err := s.usageRepo.ListExpiredOpen(ctx, tx, now, batch)
			if err != nil {
				return err
			}
			processed = len(expired)

			for i := range expired {
				record := &expired[i]
				if err := s.usageRepo.Close(ctx, tx, record.ID, now); err != nil {
					return err
				}
				if err := s.openSuccessor(ctx, tx, record.OrgID, now); err != nil {
					return err
				}
				s.log.Info("usage period rolled over",
					zap.String("org_id", record.OrgID.String()),
					zap.Time("period_end", record.PeriodEnd),
				)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if processed < batch {
			return nil
		}
	}
}

func (s *Scheduler) openSuccessor(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, now time.Time) error {
	org, err := s.orgRepo.FindByID(ctx, tx, orgID)
	if err != nil {
		return err
	}
	if org == nil || org.Status == orgdomain.StatusExpired {
		return nil
	}

	record := usageservice.NewRecordForPeriod(s.genID.Generate(), orgID, org.Tier, now)
	// Conflict means a lazy create beat the sweep to it; that row wins.
	_, err = s.usageRepo.Insert(ctx, tx, record)
	return err
}

// ExpireTrialsJob marks trialing organizations whose trial window has
// passed. Re-running over the same rows is a no-op.
func (s *Scheduler) ExpireTrialsJob(ctx context.Context) error {
	now := s.clock.Now()
	batch := s.batchSize()

	for {
		expired, err := s.orgRepo.ExpireTrials(ctx, s.db, now, batch)
		if err != nil {
			return err
		}
		if expired > 0 {
			s.log.Info("trials expired", zap.Int64("count", expired))
		}
		if expired < int64(batch) {
			return nil
		}
	}
}

func (s *Scheduler) batchSize() int {
	if size := s.limits.Get().SweepBatchSize; size > 0 {
		return size
	}
	return s.cfg.BatchSize
}

func (s *Scheduler) recordSweep(job, result string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSweep(job, result, elapsed)
}
