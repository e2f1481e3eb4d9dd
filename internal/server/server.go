// Package server provides the HTTP REST API over the matching service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/internal/auth"
	"github.com/foodmatch/matchd/internal/config"
	"github.com/foodmatch/matchd/internal/matcher"
	"github.com/foodmatch/matchd/internal/portal"
	"github.com/foodmatch/matchd/internal/predict"
	"github.com/foodmatch/matchd/internal/rfq"
	"github.com/foodmatch/matchd/internal/store"
)

// Server wires the engine packages behind the REST surface.
type Server struct {
	store   store.Store
	auth    *auth.Service
	matcher *matcher.Matcher
	portal  *portal.Portal
	rfq     *rfq.Estimator
	predict *predict.Model
	cfg     config.ServerConfig
}

// New assembles a Server from already-constructed services.
func New(st store.Store, authSvc *auth.Service, m *matcher.Matcher, p *portal.Portal, est *rfq.Estimator, pred *predict.Model, cfg config.ServerConfig) *Server {
	return &Server{
		store:   st,
		auth:    authSvc,
		matcher: m,
		portal:  p,
		rfq:     est,
		predict: pred,
		cfg:     cfg,
	}
}

// Router builds the chi handler tree. All routes live under /api; reads are
// public, mutations that carry ownership require a session.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.auth.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Get("/me", s.handleMe)
			r.Post("/make-admin", s.handleMakeAdmin)
		})

		r.Route("/solicitations", func(r chi.Router) {
			r.Get("/", s.handleListSolicitations)
			r.Post("/", s.handleCreateSolicitation)
			r.Get("/{id}", s.handleGetSolicitation)
			r.Delete("/{id}", s.handleDeleteSolicitation)
		})

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", s.handleListOrganizations)
			r.Get("/{id}", s.handleGetOrganization)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Post("/generate", s.handleGenerateMatches)
			r.Get("/", s.handleListMatches)
		})

		r.Route("/portal", func(r chi.Router) {
			r.Get("/supplier/{id}/matches", s.handleSupplierMatches)
			r.Get("/distributor/{id}/matches", s.handleDistributorMatches)
			r.Get("/federal/vendors", s.handleFederalVendors)
			r.Post("/federal/match", s.handleFederalMatch)
		})

		r.Route("/rfq", func(r chi.Router) {
			r.Post("/estimate", s.handleRFQEstimate)
			r.Get("/supply-costs", s.handleSupplyCosts)
		})

		r.Route("/predictions", func(r chi.Router) {
			r.Get("/food-insecurity", s.handleFoodInsecurity)
			r.Get("/surplus-matching", s.handleSurplusMatching)
			r.Get("/waste-reduction", s.handleWasteReduction)
		})

		r.Route("/emergency", func(r chi.Router) {
			r.Get("/capacity", s.handleListCapacity)
			r.Post("/capacity", s.handleRegisterCapacity)
			r.Delete("/capacity/{id}", s.handleDeleteCapacity)
			r.Get("/crisis-dashboard", s.handleCrisisDashboard)
			r.Get("/supply-types", s.handleSupplyTypes)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/stats", s.handleDashboardStats)
			r.Get("/zip-scores", s.handleZipScores)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("server: listening", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}
