// Package server wires the stores, engines, and handlers into one HTTP
// surface.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/terakoya-app/terakoya/internal/email"
	"github.com/terakoya-app/terakoya/internal/entitlement"
	"github.com/terakoya-app/terakoya/internal/handler"
	"github.com/terakoya-app/terakoya/internal/identity"
	"github.com/terakoya-app/terakoya/internal/middleware"
	"github.com/terakoya-app/terakoya/internal/payment"
	"github.com/terakoya-app/terakoya/internal/reconcile"
	"github.com/terakoya-app/terakoya/internal/store"
)

type Config struct {
	Stripe        payment.Config
	SessionSecret []byte
	EmailClient   *email.Client
}

type Server struct {
	db          *sql.DB
	cfg         Config
	logger      *slog.Logger
	rateLimiter *middleware.RateLimiter

	authH       *handler.AuthHandler
	accessH     *handler.AccessHandler
	checkoutH   *handler.CheckoutHandler
	webhookH    *handler.WebhookHandler
	newsletterH *handler.NewsletterHandler
	coursesH    *handler.CoursesHandler
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	accounts := store.NewAccountStore(db)
	subscriptions := store.NewSubscriptionStore(db)
	purchases := store.NewPurchaseStore(db)
	newsletter := store.NewNewsletterStore(db)

	payments := payment.NewClient(cfg.Stripe)
	evaluator := entitlement.NewEvaluator(subscriptions, purchases)
	resolver := identity.NewResolver(accounts)

	var notifier reconcile.Notifier
	if cfg.EmailClient != nil {
		notifier = cfg.EmailClient
	}
	reconciler := reconcile.New(accounts, subscriptions, purchases, resolver, notifier,
		logger.With("component", "reconcile"))

	return &Server{
		db:          db,
		cfg:         cfg,
		logger:      logger,
		rateLimiter: middleware.NewRateLimiter(),
		authH:       handler.NewAuthHandler(accounts, cfg.SessionSecret, logger.With("component", "auth")),
		accessH:     handler.NewAccessHandler(evaluator, logger.With("component", "access")),
		checkoutH:   handler.NewCheckoutHandler(payments, logger.With("component", "checkout")),
		webhookH:    handler.NewWebhookHandler(payments, reconciler, logger.With("component", "webhook")),
		newsletterH: handler.NewNewsletterHandler(newsletter, logger.With("component", "newsletter")),
		coursesH:    handler.NewCoursesHandler(),
	}
}

// RateLimiter returns the limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	// Credential endpoints are rate limited by client IP.
	mux.Handle("POST /api/auth/signup", s.rateLimited(s.authH.Signup))
	mux.Handle("POST /api/auth/login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	mux.HandleFunc("GET /api/courses", s.coursesH.List)
	mux.HandleFunc("GET /api/courses/access", s.accessH.Check)

	mux.HandleFunc("POST /api/checkout", s.checkoutH.Create)
	mux.Handle("POST /api/newsletter", s.rateLimited(s.newsletterH.Subscribe))

	// The webhook authenticates by signature, never by session.
	mux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)

	var h http.Handler = mux
	h = middleware.Authenticate(s.cfg.SessionSecret)(h)
	h = middleware.RequestLogger(s.logger)(h)
	return h
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return rl(h)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
