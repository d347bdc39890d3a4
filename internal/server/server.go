// Package server is the composition root: it wires the database, object
// store, AI providers, mailer, services, and handlers together and owns
// the HTTP lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/martinbavio/photalabs/internal/auth"
	"github.com/martinbavio/photalabs/internal/config"
	"github.com/martinbavio/photalabs/internal/handler"
	"github.com/martinbavio/photalabs/internal/mailer"
	"github.com/martinbavio/photalabs/internal/middleware"
	"github.com/martinbavio/photalabs/internal/provider"
	sqliteRepo "github.com/martinbavio/photalabs/internal/repository/sqlite"
	"github.com/martinbavio/photalabs/internal/service"
	"github.com/martinbavio/photalabs/internal/storage"
)

// Server holds the router and the resources it owns. The database
// connection is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	cfg    config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
// DB → repositories → services → handlers → routes.
//
// AI providers are optional at startup: a missing API key leaves the
// backend nil and requests selecting it fail with a 503 rather than
// preventing the server from running at all.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === object store ===
	store, err := storage.NewS3Store(storage.S3Config{
		Endpoint:     s.cfg.S3Endpoint,
		Region:       s.cfg.S3Region,
		AccessKey:    s.cfg.S3AccessKey,
		SecretKey:    s.cfg.S3SecretKey,
		Bucket:       s.cfg.S3Bucket,
		UsePathStyle: s.cfg.S3UsePathStyle,
		Prefix:       s.cfg.S3Prefix,
		URLTTL:       s.cfg.S3URLTTL,
	})
	if err != nil {
		return fmt.Errorf("creating object store: %w", err)
	}

	// === AI providers ===
	var (
		vision provider.VisionDescriber
		dalle  provider.ImageProvider
		gemini provider.ImageProvider
	)
	openai := provider.NewOpenAIClient(provider.OpenAIConfig{
		APIKey:  s.cfg.OpenAIAPIKey,
		BaseURL: s.cfg.OpenAIBaseURL,
		Timeout: s.cfg.OpenAITimeout,
	}, s.logger)
	if openai.Configured() {
		vision = openai
		dalle = openai
	} else {
		s.logger.Warn("OPENAI_API_KEY not set — vision descriptions and the dall-e-3 backend are unavailable")
	}
	if s.cfg.GeminiAPIKey != "" {
		g, err := provider.NewGeminiProvider(ctx, provider.GeminiConfig{
			APIKey: s.cfg.GeminiAPIKey,
			Model:  s.cfg.GeminiModel,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("creating gemini provider: %w", err)
		}
		gemini = g
	} else {
		s.logger.Warn("GEMINI_API_KEY not set — the gemini backend is unavailable")
	}

	// === mailer ===
	var mail mailer.Mailer
	resend := mailer.NewResend(mailer.ResendConfig{
		APIKey: s.cfg.ResendAPIKey,
		From:   s.cfg.EmailFrom,
	})
	if resend.Configured() {
		mail = resend
	} else {
		s.logger.Warn("RESEND_API_KEY not set — magic links are written to the log instead of emailed")
		mail = &mailer.LogMailer{Logger: s.logger}
	}

	// === auth ===
	tokens, err := auth.NewTokenService(s.cfg.JWTSecret)
	if err != nil {
		return err
	}
	secureCookies := strings.HasPrefix(s.cfg.AppBaseURL, "https://")

	// === services ===
	creditSvc := service.NewCreditService(s.db.Credits(), s.logger)
	authSvc := service.NewAuthService(s.db.Users(), s.db.LoginTokens(), s.db.Credits(), mail, tokens, s.cfg.AppBaseURL, s.logger)
	characterSvc := service.NewCharacterService(s.db.Characters(), store, s.logger)
	generationSvc := service.NewGenerationService(s.db.Generations(), s.db.Characters(), creditSvc, store, vision, dalle, gemini, s.logger)

	// === handlers ===
	authHandler := handler.NewAuthHandler(authSvc, secureCookies, s.logger)
	characterHandler := handler.NewCharacterHandler(characterSvc, s.logger)
	generationHandler := handler.NewGenerationHandler(generationSvc, s.logger)
	storageHandler := handler.NewStorageHandler(store, s.logger)

	// Magic-link endpoints sit outside /api: the verify URL is opened by a
	// browser from an email client, not called by the frontend.
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/magic-link", authHandler.HandleMagicLink)
		r.Get("/verify", authHandler.HandleVerify)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Readable anonymously; authenticated callers see their own data.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Get("/auth/status", authHandler.HandleStatus)
			r.Get("/characters", characterHandler.HandleList)
			r.Get("/characters/search", characterHandler.HandleSearch)
			r.Get("/characters/{id}", characterHandler.HandleGet)
			r.Get("/storage/{id}/url", storageHandler.HandleGetURL)
		})

		// Everything that mutates state or reads private history.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Post("/characters", characterHandler.HandleCreate)
			r.Patch("/characters/{id}", characterHandler.HandleUpdate)
			r.Delete("/characters/{id}", characterHandler.HandleDelete)

			r.Post("/generate", generationHandler.HandleGenerate)
			r.Get("/generations", generationHandler.HandleList)
			r.Get("/generations/recent", generationHandler.HandleRecent)
			r.Get("/generations/{id}", generationHandler.HandleGet)

			r.Post("/storage/upload-url", storageHandler.HandleUploadURL)
			r.Delete("/storage/{id}", storageHandler.HandleDelete)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute, // generation requests wait on provider calls
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
