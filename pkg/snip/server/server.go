// Package server assembles the HTTP router and the background workers.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/admin"
	"github.com/mikepea/snip/pkg/snip/apikeys"
	"github.com/mikepea/snip/pkg/snip/auth"
	"github.com/mikepea/snip/pkg/snip/codegen"
	"github.com/mikepea/snip/pkg/snip/config"
	"github.com/mikepea/snip/pkg/snip/importexport"
	"github.com/mikepea/snip/pkg/snip/links"
	"github.com/mikepea/snip/pkg/snip/metrics"
	"github.com/mikepea/snip/pkg/snip/redirect"
	"github.com/mikepea/snip/pkg/snip/stats"
	"github.com/mikepea/snip/pkg/snip/store"
	"github.com/mikepea/snip/pkg/snip/sweeper"
	"github.com/mikepea/snip/pkg/snip/tasks"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "github.com/mikepea/snip/api/swagger"
)

// Server is the assembled application.
type Server struct {
	Router    *gin.Engine
	Links     *store.Links
	Sweeper   *sweeper.Sweeper
	Queue     *tasks.Queue
	Scheduler *tasks.Scheduler
	Metrics   *metrics.Metrics
}

// New wires every component onto db. Nothing runs until Start.
func New(cfg *config.Config, db *gorm.DB, statsBackend stats.Backend) (*Server, error) {
	m := metrics.New()
	linkStore := store.NewLinks(db, store.WithTimeout(cfg.StoreTimeout))

	sw := sweeper.New(linkStore, sweeper.WithTimeout(cfg.SweepTimeout), sweeper.WithObserver(m.Sweep))
	queue := tasks.NewQueue(db, cfg.TaskWorkers, cfg.TaskBuffer)
	sw.Register(queue)

	scheduler := tasks.NewScheduler(queue)
	if err := scheduler.Add(cfg.SweepSchedule, sweeper.TaskKind, sweeper.Payload{Days: cfg.SweepDays}); err != nil {
		return nil, err
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	authn := apikeys.NewAuthenticator(db, tokens)

	service := links.NewService(linkStore, codegen.New(cfg.CodeLength, cfg.CodeAttempts))
	engine := redirect.NewEngine(linkStore,
		redirect.WithExpiry(cfg.EnforceExpiry),
		redirect.WithObserver(func(o redirect.Outcome) { m.Redirect(string(o)) }),
	)
	statsCache := stats.NewCache(linkStore, statsBackend, stats.WithLoadTimeout(cfg.StoreTimeout), stats.WithObserver(m.StatsCache))

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), m.Middleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "snip",
		})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Auth routes (public), API key management requires a session token
	authGroup := r.Group("/auth")
	auth.NewHandler(db, tokens).RegisterRoutes(authGroup)
	apikeys.NewHandler(db).RegisterRoutes(authGroup.Group("", auth.RequirePrincipal(tokens)))

	// Link routes; each handler applies its own credential requirement
	linksGroup := r.Group("/links")
	links.NewHandler(service, authn, cfg.BaseURL).RegisterRoutes(linksGroup)
	importexport.NewHandler(service, authn).RegisterRoutes(linksGroup)
	stats.NewHandler(statsCache).RegisterRoutes(linksGroup)
	sweeper.NewHandler(queue).RegisterRoutes(linksGroup)
	redirect.NewHandler(engine).RegisterRoutes(linksGroup)

	// Admin routes (JWT or API key, admin role required)
	adminGroup := r.Group("/admin", auth.RequirePrincipal(authn), auth.RequireAdmin())
	admin.NewHandler(db, linkStore).RegisterRoutes(adminGroup)

	return &Server{
		Router:    r,
		Links:     linkStore,
		Sweeper:   sw,
		Queue:     queue,
		Scheduler: scheduler,
		Metrics:   m,
	}, nil
}

// Start launches the task workers and the sweep schedule.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Queue.Start(ctx); err != nil {
		return fmt.Errorf("start task queue: %w", err)
	}
	s.Scheduler.Start()
	return nil
}

// Stop halts scheduling and drains the task queue.
func (s *Server) Stop() {
	s.Scheduler.Stop()
	s.Queue.Stop()
}
