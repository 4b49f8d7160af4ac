package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"travel-expense/auth"
	"travel-expense/config"
	"travel-expense/handlers"
	"travel-expense/insights"
	"travel-expense/mailer"
	"travel-expense/models"
	"travel-expense/ratelimit"
	"travel-expense/repository"
	"travel-expense/routes"
)

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *captureMailer) SendVerificationCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[to] = code
	return nil
}

func (m *captureMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type fakeGenerator struct {
	prompt string
	advice string
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.advice, g.err
}

type failingStore struct {
	repository.Store
}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

// brokenExpensesStore fails every per-user expense listing.
type brokenExpensesStore struct {
	repository.Store
}

type brokenExpenses struct {
	repository.ExpenseRepository
}

func (s brokenExpensesStore) Expenses() repository.ExpenseRepository {
	return brokenExpenses{s.Store.Expenses()}
}

func (brokenExpenses) ListByUser(context.Context, int64) ([]models.Expense, error) {
	return nil, errors.New("connection reset")
}

type testEnv struct {
	app      *fiber.App
	store    repository.Store
	mailer   *captureMailer
	tokens   *auth.TokenManager
	denylist *auth.MemoryDenylist
}

type envOption func(*handlers.Deps)

func withoutMailer() envOption {
	return func(d *handlers.Deps) { d.Mailer = nil }
}

func withInsights(g insights.Generator) envOption {
	return func(d *handlers.Deps) { d.Insights = g }
}

func withEmailLimit(perMinute float64, burst int) envOption {
	return func(d *handlers.Deps) { d.EmailLimiter = ratelimit.NewKeyed(perMinute, burst) }
}

func withStore(s repository.Store) envOption {
	return func(d *handlers.Deps) { d.Store = s }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	settings := &config.Settings{
		AppName:      "Travel Expense Manager API",
		AppVersion:   "1.0.0",
		AllowedHosts: []string{"*"},
		CORSOrigins:  []string{"http://localhost:3000"},
	}
	tokens, err := auth.NewTokenManager("test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)

	capture := &captureMailer{}
	denylist := auth.NewMemoryDenylist(nil)
	deps := handlers.Deps{
		Settings: settings,
		Store:    repository.NewMemoryStore(nil),
		Tokens:   tokens,
		Verifier: auth.NewVerifier(auth.NewMemoryCodeStore(nil), 10*time.Minute, 3, auth.WithHashCost(bcrypt.MinCost)),
		Denylist: denylist,
		Mailer:   capture,
		Logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	routeOpts := routes.Options{Settings: settings, Logger: zap.NewNop(), Tokens: tokens, Denylist: denylist}
	app := routes.New(routeOpts)
	routes.SetupRoutes(app, handlers.New(deps), routeOpts)

	return &testEnv{app: app, store: deps.Store, mailer: capture, tokens: tokens, denylist: denylist}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// login runs the e-mail verification flow and returns the access token.
func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/auth/request-verification", map[string]string{"email": email}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/auth/verify-code", map[string]string{"email": email, "code": e.mailer.code(email)}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, resp, &out)
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

// errorBody reads a {"status","message"} error response.
func errorBody(t *testing.T, resp *http.Response) (status, message string) {
	t.Helper()
	assert.Equal(t, fiber.MIMEApplicationJSON, resp.Header.Get("Content-Type"))
	var out struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	decode(t, resp, &out)
	return out.Status, out.Message
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// wrongCode returns a code of the same length that differs from code.
func wrongCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}

var _ mailer.Mailer = (*captureMailer)(nil)
