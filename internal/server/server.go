// Package server exposes the entitlement subsystem over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/storyloom/storyloom/internal/authorization"
	"github.com/storyloom/storyloom/internal/config"
	entitlementdomain "github.com/storyloom/storyloom/internal/entitlement/domain"
	obsmetrics "github.com/storyloom/storyloom/internal/observability/metrics"
	obstracing "github.com/storyloom/storyloom/internal/observability/tracing"
	orgdomain "github.com/storyloom/storyloom/internal/organization/domain"
	"github.com/storyloom/storyloom/internal/ratelimit"
	"github.com/storyloom/storyloom/internal/scheduler"
	storydomain "github.com/storyloom/storyloom/internal/story/domain"
	usagedomain "github.com/storyloom/storyloom/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewEngine(metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	orgSvc         orgdomain.Service
	orgRepo        orgdomain.Repository
	storyRepo      storydomain.Repository
	usageSvc       usagedomain.Service
	entitlementSvc entitlementdomain.Service
	authzSvc       authorization.Service
	requestLimiter *ratelimit.RequestLimiter
	obsMetrics     *obsmetrics.Metrics
	scheduler      *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	OrgSvc         orgdomain.Service
	OrgRepo        orgdomain.Repository
	StoryRepo      storydomain.Repository
	UsageSvc       usagedomain.Service
	EntitlementSvc entitlementdomain.Service
	AuthzSvc       authorization.Service
	RequestLimiter *ratelimit.RequestLimiter
	ObsMetrics     *obsmetrics.Metrics  `optional:"true"`
	Scheduler      *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		log:            p.Log.Named("server"),
		genID:          p.GenID,
		orgSvc:         p.OrgSvc,
		orgRepo:        p.OrgRepo,
		storyRepo:      p.StoryRepo,
		usageSvc:       p.UsageSvc,
		entitlementSvc: p.EntitlementSvc,
		authzSvc:       p.AuthzSvc,
		requestLimiter: p.RequestLimiter,
		obsMetrics:     p.ObsMetrics,
		scheduler:      p.Scheduler,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// RegisterAPIRoutes mounts the tenant-facing API under /v1.
func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1")
	v1.Use(s.OrgContext())
	v1.Use(s.RateLimit())

	entitlements := v1.Group("/entitlements")
	entitlements.GET("/ai", s.CheckAI)
	entitlements.POST("/ai/consume", s.ConsumeAI)
	entitlements.GET("/documents", s.CheckDocument)
	entitlements.GET("/story-updates", s.CheckStoryUpdate)
	entitlements.POST("/operations/validate", s.ValidateOperation)

	usage := v1.Group("/usage")
	usage.GET("", s.UsageSummary)
	usage.POST("/tokens", s.RecordTokens)
	usage.POST("/documents", s.RecordDocument)
	usage.POST("/ai-actions", s.RecordAIAction)

	stories := v1.Group("/stories")
	stories.POST("/bulk", s.BulkCreateStories)
	stories.POST("/:id/split", s.SplitStory)
	stories.POST("/:id/update", s.UpdateStory)

	v1.POST("/documents/ingest", s.IngestDocument)

	tiers := v1.Group("/tiers")
	tiers.GET("", s.ListTiers)
	tiers.GET("/:tier", s.GetTier)
	tiers.POST("/validate-seats", s.ValidateSeats)

	orgs := v1.Group("/organizations")
	orgs.POST("", s.CreateOrganization)
	orgs.GET("/:id", s.GetOrganization)
	orgs.POST("/:id/tier", s.ChangeOrganizationTier)
}

// RegisterInternalRoutes mounts operator endpoints, including the external
// cron trigger for the sweep.
func (s *Server) RegisterInternalRoutes() {
	internal := s.engine.Group("/internal")
	internal.POST("/cron/sweep", s.RunSweep)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
