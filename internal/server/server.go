// Package server wires the repository, services, handlers and middleware
// into one HTTP server and owns its lifecycle.
//
// The dependency chain is assembled once, in New:
//
//	sqlite.DB → BookService / MessageService / AuthService → handlers → chi routes
//	social.Store (roster) ↗
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/config"
	"github.com/sakif/bookshelf/internal/handler"
	"github.com/sakif/bookshelf/internal/middleware"
	"github.com/sakif/bookshelf/internal/ratelimit"
	sqliteRepo "github.com/sakif/bookshelf/internal/repository/sqlite"
	"github.com/sakif/bookshelf/internal/service"
	"github.com/sakif/bookshelf/internal/social"
	"github.com/sakif/bookshelf/internal/storage"
)

const (
	shutdownTimeout = 30 * time.Second
	storageTimeout  = 10 * time.Second
)

// Server represents the HTTP server and all its dependencies. It owns the
// database connection and the rate limiter's Redis client; both are closed
// when Start returns or Close is called.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *ratelimit.FixedWindowLimiter
}

// New opens the database, connects the optional blob store and rate
// limiter, seeds the roster and registers every route.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and Redis connections.
func (s *Server) Close() error {
	var errs []error
	if s.limiter != nil {
		errs = append(errs, s.limiter.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

func (s *Server) openObjectStore() (storage.ObjectStore, error) {
	if !s.config.StorageEnabled() {
		s.logger.Warn("S3_ENDPOINT/S3_BUCKET not set; book file uploads are disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	store, err := storage.NewMinioStore(ctx, storage.Options{
		Endpoint:  s.config.S3Endpoint,
		AccessKey: s.config.S3AccessKey,
		SecretKey: s.config.S3SecretKey,
		Bucket:    s.config.S3Bucket,
		UseSSL:    s.config.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting object store: %w", err)
	}
	s.logger.Info("object store ready",
		slog.String("endpoint", s.config.S3Endpoint),
		slog.String("bucket", s.config.S3Bucket),
	)
	return store, nil
}

// rateLimiter returns nil, an untyped nil interface, when rate limiting is
// off so middleware.RateLimit passes everything through.
func (s *Server) rateLimiter() (middleware.Limiter, error) {
	if !s.config.RateLimitEnabled() {
		s.logger.Warn("REDIS_ADDR not set; rate limiting is disabled")
		return nil, nil
	}

	l, err := ratelimit.NewRedisFixedWindowLimiter(
		s.config.RedisAddr, s.config.RedisPassword, "",
		s.config.RateLimitPerMinute, time.Minute,
	)
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter: %w", err)
	}
	s.limiter = l
	return l, nil
}

// setupRoutes configures all middleware and route handlers.
//
// Middleware runs in the order it is added: request id, real ip (only with
// TrustProxy), panic recovery, request logging, CORS.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	if s.config.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Recoverer(s.logger))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS)

	s.router.NotFound(handler.NotFound)
	s.router.MethodNotAllowed(handler.NotFound)

	files, err := s.openObjectStore()
	if err != nil {
		return err
	}
	limiter, err := s.rateLimiter()
	if err != nil {
		return err
	}
	limited := middleware.RateLimit(limiter, s.logger)

	roster := social.New(social.WithLogger(s.logger))

	bookService := service.NewBookService(s.db, files, s.config.MaxUploadBytes, s.logger)
	messageService := service.NewMessageService(s.db, s.logger)
	userService := service.NewUserService(s.db, roster, s.logger)
	friendService := service.NewFriendService(roster)

	if _, err := userService.SeedRoster(context.Background()); err != nil {
		return err
	}

	bookHandler := handler.NewBookHandler(bookService, s.config.MaxUploadBytes, s.logger)
	messageHandler := handler.NewMessageHandler(messageService, s.logger)
	userHandler := handler.NewUserHandler(userService, friendService, s.logger)

	var (
		tokens      *auth.TokenService
		authHandler *handler.AuthHandler
	)
	if s.config.AuthEnabled() {
		tokens, err = auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}

		var github *auth.GitHubProvider
		if s.config.GitHubEnabled() {
			github = auth.NewGitHubProvider(
				s.config.GitHubClientID,
				s.config.GitHubClientSecret,
				s.config.GitHubCallbackURL,
			)
		} else {
			s.logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set; GitHub sign-in is disabled")
		}

		authService := service.NewAuthService(s.db, roster, tokens, auth.NewPasswordService(), s.logger)
		authHandler = handler.NewAuthHandler(authService, github, tokens.TTL(), s.config.SecureCookie, s.logger)

		if github != nil {
			s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
			s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set; authentication is disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		if tokens != nil {
			r.Use(auth.OptionalAuth(tokens))
		}

		r.Get("/books", bookHandler.HandleList)
		r.Post("/books", bookHandler.HandleCreate)
		r.Get("/books/shared", bookHandler.HandleListShared)
		r.Get("/books/{id}", bookHandler.HandleGet)
		r.Put("/books/{id}", bookHandler.HandleUpdate)
		r.Delete("/books/{id}", bookHandler.HandleDelete)
		r.Post("/books/{id}/file", bookHandler.HandleUploadFile)
		r.Get("/books/{id}/file", bookHandler.HandleDownloadFile)
		r.Post("/share", bookHandler.HandleShare)

		r.Get("/messages", messageHandler.HandleList)
		r.Get("/chats", messageHandler.HandleChats)
		r.With(limited).Post("/messages", messageHandler.HandleSend)
		r.Patch("/messages/{id}/read", messageHandler.HandleMarkRead)

		r.Get("/users", userHandler.HandleList)

		if authHandler == nil {
			return
		}

		r.Route("/auth", func(r chi.Router) {
			r.With(limited).Post("/register", authHandler.HandleRegister)
			r.With(limited).Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			friendHandler := handler.NewFriendHandler(friendService)

			r.Get("/me", authHandler.HandleMe)
			r.Get("/books/mine", bookHandler.HandleListMine)
			r.Get("/users/search", userHandler.HandleSearch)
			r.Get("/friends", friendHandler.HandleList)
			r.Get("/friends/requests", friendHandler.HandleRequests)
			r.Post("/friends/requests", friendHandler.HandleSendRequest)
			r.Post("/friends/requests/{userId}/accept", friendHandler.HandleAccept)
			r.Post("/friends/requests/{userId}/reject", friendHandler.HandleReject)
			r.Delete("/friends/{userId}", friendHandler.HandleRemove)
		})
	})

	return nil
}

// Start serves HTTP until SIGINT or SIGTERM, then drains in-flight requests
// for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // uploads
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
