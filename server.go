package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"travel-expense/auth"
	"travel-expense/cache"
	"travel-expense/config"
	"travel-expense/database"
	"travel-expense/handlers"
	"travel-expense/insights"
	"travel-expense/mailer"
	"travel-expense/ratelimit"
	"travel-expense/repository"
	"travel-expense/routes"
)

// authRequestsPerMinute bounds calls to /api/auth per client IP.
const (
	authRequestsPerMinute = 30
	authBurst             = 10
)

// server owns the Fiber app and every connection it was built on.
type server struct {
	app     *fiber.App
	closers []func()
}

// Close releases backends in reverse order of creation.
func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newServer wires storage, auth, mail and AI backends from the settings.
func newServer(ctx context.Context, settings *config.Settings, logger *zap.Logger) (*server, error) {
	s := &server{}
	fail := func(err error) (*server, error) {
		s.Close()
		return nil, err
	}

	store, err := openStore(ctx, settings, logger)
	if err != nil {
		return fail(err)
	}
	s.closers = append(s.closers, store.Close)

	var (
		codes    auth.CodeStore = auth.NewMemoryCodeStore(nil)
		denylist auth.Denylist  = auth.NewMemoryDenylist(nil)
	)
	if settings.RedisURL != "" {
		client, err := cache.NewClient(ctx, settings.RedisURL)
		if err != nil {
			return fail(err)
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		codes = cache.NewCodeStore(client)
		denylist = cache.NewDenylist(client)
		logger.Info("using redis for verification codes and revoked tokens")
	}

	tokens, err := auth.NewTokenManager(settings.SecretKey, settings.Algorithm, settings.AccessTokenTTL())
	if err != nil {
		return fail(err)
	}

	var mail mailer.Mailer
	switch {
	case settings.MailEnabled():
		mail = mailer.NewSMTPMailer(settings.SMTPServer, settings.SMTPPort, settings.SMTPUsername, settings.SMTPPassword, settings.SMTPFrom)
	case settings.Debug:
		logger.Warn("smtp_username is not set, verification codes will be logged instead of e-mailed")
		mail = mailer.NewLogMailer(logger)
	default:
		logger.Warn("smtp_username is not set, e-mail login is disabled")
	}

	var generator insights.Generator
	if settings.GeminiAPIKey != "" {
		gemini, err := insights.NewGemini(ctx, settings.GeminiAPIKey, settings.GeminiModel)
		if err != nil {
			return fail(err)
		}
		s.closers = append(s.closers, func() { _ = gemini.Close() })
		generator = gemini
	}

	h := handlers.New(handlers.Deps{
		Settings:     settings,
		Store:        store,
		Tokens:       tokens,
		Verifier:     auth.NewVerifier(codes, settings.VerificationCodeTTL(), settings.VerificationMaxAttempts),
		Denylist:     denylist,
		Mailer:       mail,
		EmailLimiter: ratelimit.NewKeyed(settings.VerificationRequestsPerMinute, settings.VerificationBurst),
		Insights:     generator,
		Logger:       logger,
	})

	opts := routes.Options{
		Settings:    settings,
		Logger:      logger,
		Tokens:      tokens,
		Denylist:    denylist,
		AuthLimiter: ratelimit.NewKeyed(authRequestsPerMinute, authBurst),
	}
	s.app = routes.New(opts)
	routes.SetupRoutes(s.app, h, opts)

	return s, nil
}

// openStore picks PostgreSQL for postgres URLs and process memory for anything else.
func openStore(ctx context.Context, settings *config.Settings, logger *zap.Logger) (repository.Store, error) {
	if !database.IsPostgresURL(settings.DatabaseURL) {
		logger.Warn("database_url is not a PostgreSQL URL, data is kept in memory only",
			zap.String("database_url", settings.DatabaseURL))
		return repository.NewMemoryStore(nil), nil
	}

	pool, err := database.Connect(ctx, settings.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repository.NewPostgresStore(pool), nil
}
