// Package router wires handlers, middleware and services into the HTTP API.
package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commune/backend/internal/chat"
	"github.com/commune/backend/internal/config"
	"github.com/commune/backend/internal/db"
	"github.com/commune/backend/internal/directmsg"
	"github.com/commune/backend/internal/handlers"
	"github.com/commune/backend/internal/middleware"
	"github.com/commune/backend/internal/relay"
	"github.com/commune/backend/internal/services"
)

// Dependencies are the long-lived components shared by every request.
type Dependencies struct {
	DB          *sql.DB
	Broadcaster *chat.Broadcaster
	Bus         *directmsg.Bus
	// Relay is nil when fan-out is process-local.
	Relay *relay.Relay
}

// New builds the router. ctx bounds background work such as rate limiter
// cleanup.
func New(ctx context.Context, cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.NewRealIPMiddleware(cfg.TrustedProxies).Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.InstrumentMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Services
	queries := db.New(deps.DB)
	authService := services.NewAuthService(cfg.JWTSecret, cfg.TokenDuration)
	accountService := services.NewAccountService(queries)
	postService := services.NewPostService(queries)
	friendService := services.NewFriendService(deps.DB, queries)
	messageService := services.NewDirectMessageService(queries, deps.Bus)

	streams := handlers.StreamConfig{
		Heartbeat:  cfg.HeartbeatInterval,
		BufferSize: cfg.StreamBufferSize,
	}

	// Handlers
	healthDeps := map[string]handlers.Pinger{"database": deps.DB}
	if deps.Relay != nil {
		healthDeps["relay"] = deps.Relay
	}
	healthHandler := handlers.NewHealthHandler(healthDeps)
	configHandler := handlers.NewConfigHandler(cfg)
	tunnelHandler := handlers.NewSentryTunnelHandler(cfg.SentryDSNFrontend, &http.Client{Timeout: 10 * time.Second})
	authHandler := handlers.NewAuthHandler(accountService, authService, cfg.CookieSecure)
	userHandler := handlers.NewUserHandler(accountService, authHandler)
	postHandler := handlers.NewPostHandler(postService)
	friendHandler := handlers.NewFriendHandler(friendService)
	adminHandler := handlers.NewAdminHandler(accountService, postService)
	chatHandler := handlers.NewChatHandler(deps.Broadcaster, streams)
	dmHandler := handlers.NewDirectMessageHandler(messageService, deps.Bus, streams)

	// Rate limiters: credentials per client IP, chat publishing per user
	authRateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, middleware.ByClientIP)
	chatRateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute*6, middleware.ByUser)
	go authRateLimiter.Run(ctx)
	go chatRateLimiter.Run(ctx)

	requireAuth := middleware.AuthMiddleware(authService)

	r.Handle("/metrics", promhttp.Handler())

	// Routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		// Public configuration for the frontend
		r.Get("/config", configHandler.PublicConfig)
		r.Post("/monitoring", tunnelHandler.Tunnel)

		r.Get("/posts", postHandler.List)

		r.Route("/auth", func(r chi.Router) {
			r.With(authRateLimiter.Middleware).Post("/register", authHandler.Register)
			r.With(authRateLimiter.Middleware).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.List)
				r.Get("/me", userHandler.Me)
				r.Patch("/me", userHandler.UpdateMe)
				r.Delete("/me", userHandler.DeleteMe)
			})

			r.Post("/posts", postHandler.Create)
			r.Route("/posts/{id}", func(r chi.Router) {
				r.Use(middleware.AdminOnlyMiddleware)
				r.Patch("/", postHandler.Update)
				r.Delete("/", postHandler.Delete)
			})

			r.Route("/friends", func(r chi.Router) {
				r.Get("/", friendHandler.List)
				r.Post("/", friendHandler.Add)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Get("/", chatHandler.Stream)
				r.With(chatRateLimiter.Middleware).Post("/", chatHandler.Publish)
			})

			r.Route("/direct-messages", func(r chi.Router) {
				r.Get("/", dmHandler.List)
				r.Post("/", dmHandler.Create)
				r.Get("/stream", dmHandler.Stream)
			})

			// Admin panel
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminOnlyMiddleware)
				r.Get("/users", adminHandler.ListUsers)
				r.Delete("/users/{id}", adminHandler.DeleteUser)
				r.Get("/posts", adminHandler.ListPosts)
				r.Delete("/posts/{id}", adminHandler.DeletePost)
			})
		})
	})

	return r
}
