package handlers

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"travel-expense/auth"
	"travel-expense/config"
	"travel-expense/insights"
	"travel-expense/mailer"
	"travel-expense/ratelimit"
	"travel-expense/repository"
)

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Settings *config.Settings
	Store    repository.Store
	Tokens   *auth.TokenManager
	Verifier *auth.Verifier
	Denylist auth.Denylist
	// Mailer is nil when neither SMTP nor log delivery is available.
	Mailer mailer.Mailer
	// EmailLimiter throttles verification requests per address.
	EmailLimiter *ratelimit.Keyed
	// Insights is nil when no AI backend is configured.
	Insights insights.Generator
	Logger   *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Handler serves the API routes.
type Handler struct {
	settings     *config.Settings
	users        repository.UserRepository
	expenses     repository.ExpenseRepository
	store        repository.Store
	tokens       *auth.TokenManager
	verifier     *auth.Verifier
	denylist     auth.Denylist
	mailer       mailer.Mailer
	emailLimiter *ratelimit.Keyed
	insights     insights.Generator
	logger       *zap.Logger
	clock        func() time.Time
}

// New builds a Handler from its dependencies, defaulting the logger and clock.
func New(d Deps) *Handler {
	h := &Handler{
		settings:     d.Settings,
		users:        d.Store.Users(),
		expenses:     d.Store.Expenses(),
		store:        d.Store,
		tokens:       d.Tokens,
		verifier:     d.Verifier,
		denylist:     d.Denylist,
		mailer:       d.Mailer,
		emailLimiter: d.EmailLimiter,
		insights:     d.Insights,
		logger:       d.Logger,
		clock:        d.Clock,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	return h
}

// errResponded means a helper already wrote the error response.
var errResponded = errors.New("response already written")

func ignoreResponded(err error) error {
	if errors.Is(err, errResponded) {
		return nil
	}
	return err
}
