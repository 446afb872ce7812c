// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

// Package server assembles the AgentCost API: storage, domain services,
// router and middleware.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/agentcost-ai/agentcost-backend/analytics"
	"github.com/agentcost-ai/agentcost-backend/config"
	"github.com/agentcost-ai/agentcost-backend/migrations"
	"github.com/agentcost-ai/agentcost-backend/optimize"
	"github.com/agentcost-ai/agentcost-backend/pricing"
	"github.com/agentcost-ai/agentcost-backend/shared/logger"
	"github.com/agentcost-ai/agentcost-backend/tenant"
	"github.com/agentcost-ai/agentcost-backend/tracking"
)

// Server is the assembled AgentCost backend.
type Server struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *sql.DB
	redis *redis.Client

	pricingService   *pricing.Service
	trackingService  *tracking.Service
	analyticsService *analytics.Service
	analyzer         *optimize.Analyzer
	authenticator    *tenant.Authenticator
	tenantRepo       tenant.Repository

	handler  http.Handler
	stopSync chan struct{}
}

// New connects storage, applies migrations, seeds pricing and wires every
// component into the HTTP handler.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	log := logger.New("server")

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := migrations.Run(ctx, db); err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Redis is optional; rate limiting and caching degrade
			// to in-process behavior.
			log.Warn("", "", "redis unreachable, running without it", map[string]interface{}{"error": err.Error()})
			redisClient = nil
		}
	}

	pricingService, err := pricing.NewService(ctx, pricing.NewPostgresRepository(db))
	if err != nil {
		return nil, err
	}
	if len(pricingService.Models()) == 0 {
		if _, err := pricingService.SyncDefaults(ctx); err != nil {
			return nil, fmt.Errorf("failed to seed pricing defaults: %w", err)
		}
	}

	tenantRepo := tenant.NewPostgresRepository(db)
	limiter := tenant.NewRateLimiter(redisClient, cfg.Auth.RateLimitPerMinute)
	authenticator := tenant.NewAuthenticator(tenantRepo, cfg.Auth.JWTSecret, limiter)

	trackingService := tracking.NewService(
		tracking.NewPostgresRepository(db),
		pricingService,
		tracking.UnknownModelPolicy(cfg.Pricing.UnknownModelPolicy),
	)
	analyticsService := analytics.NewService(
		analytics.NewPostgresRepository(db),
		cfg.Analytics.MaxWindowDays,
	)
	analyzer := optimize.NewAnalyzer(
		analyticsService,
		redisClient,
		optimize.NewModelDowngradeRule(pricingService),
		optimize.NewHighFailureRateRule(),
	)

	s := &Server{
		cfg:              cfg,
		log:              log,
		db:               db,
		redis:            redisClient,
		pricingService:   pricingService,
		trackingService:  trackingService,
		analyticsService: analyticsService,
		analyzer:         analyzer,
		authenticator:    authenticator,
		tenantRepo:       tenantRepo,
		stopSync:         make(chan struct{}),
	}
	s.handler = s.buildHandler()
	return s, nil
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP listener and the background pricing sync, blocking
// until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	go s.syncLoop()

	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("", "", "listening", map[string]interface{}{"addr": s.cfg.Server.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		close(s.stopSync)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close releases storage connections.
func (s *Server) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	_ = s.db.Close()
}

func (s *Server) buildHandler() http.Handler {
	r := mux.NewRouter()

	// Unauthenticated endpoints.
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	tracking.NewHandler(s.trackingService).RegisterRoutes(r)
	analytics.NewHandler(s.analyticsService).RegisterRoutes(r)
	optimize.NewHandler(s.analyzer).RegisterRoutes(r)
	pricing.NewHandler(s.pricingService).RegisterRoutes(r)
	tenant.NewHandler(s.tenantRepo, s.authenticator).RegisterRoutes(r)

	// Everything under /api/v1 requires a principal. Logging runs after
	// auth so requests are attributed to their project.
	r.Use(s.apiOnly(s.authenticator.Middleware), s.apiOnly(s.requestLogging))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// syncLoop re-syncs default pricing on the configured interval so catalog
// updates ship without redeploys.
func (s *Server) syncLoop() {
	if s.cfg.Pricing.SyncIntervalMinutes <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(s.cfg.Pricing.SyncIntervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := s.pricingService.SyncDefaults(ctx); err != nil {
				s.log.Error("", "", "background pricing sync failed", map[string]interface{}{"error": err.Error()})
			}
			cancel()
		case <-s.stopSync:
			return
		}
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := s.pricingService.IsHealthy(ctx) && s.trackingService.IsHealthy(ctx)
	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    state,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// apiOnly applies a middleware to /api/v1 routes, leaving /health and
// /prometheus open.
func (s *Server) apiOnly(mw mux.MiddlewareFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		projectID := ""
		if principal, ok := tenant.PrincipalFromContext(r.Context()); ok {
			projectID = principal.ProjectID
		}
		s.log.Info(projectID, "", "request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}
