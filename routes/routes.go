package routes

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"travel-expense/auth"
	"travel-expense/config"
	"travel-expense/handlers"
	"travel-expense/middleware"
	"travel-expense/ratelimit"
)

// Options are the pieces the router needs besides the handlers.
type Options struct {
	Settings *config.Settings
	Logger   *zap.Logger
	Tokens   *auth.TokenManager
	Denylist auth.Denylist
	// AuthLimiter guards the /api/auth group per client IP. Nil disables it.
	AuthLimiter *ratelimit.Keyed
}

// New builds the Fiber application with the global middleware chain.
func New(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               opts.Settings.AppName,
		DisableStartupMessage: !opts.Settings.Debug,
		ErrorHandler:          errorHandler,
	})

	app.Use(middleware.RequestID)
	app.Use(middleware.RequestLogger(opts.Logger))
	app.Use(recover.New())
	// Host filtering comes first so preflight requests are checked too.
	app.Use(middleware.TrustedHosts(opts.Settings.AllowedHosts))
	app.Use(cors.New(corsConfig(opts.Settings.CORSOrigins)))

	return app
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowCredentials: true,
		ExposeHeaders:    "X-Request-ID,X-Total-Count,X-Total-Pages,Content-Disposition",
	}
	// Fiber refuses credentials together with a wildcard origin.
	for _, o := range origins {
		if o == "*" {
			cfg.AllowOrigins = "*"
			cfg.AllowCredentials = false
			break
		}
	}
	return cfg
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{"status": "error", "message": message})
}

// SetupRoutes defines all the routes for the application.
func SetupRoutes(app *fiber.App, h *handlers.Handler, opts Options) {
	jwt := middleware.JWTMiddleware(opts.Tokens, opts.Denylist, opts.Logger)

	app.Get("/", h.HandleRoot)
	app.Get("/health", h.HandleHealth)
	app.Get("/health/ready", h.HandleReady)

	api := app.Group("/api")

	// --- Authentication Routes ---
	authGroup := api.Group("/auth", middleware.RateLimit(opts.AuthLimiter))
	authGroup.Post("/request-verification", h.HandleRequestVerification)
	authGroup.Post("/verify-code", h.HandleVerifyCode)
	authGroup.Post("/logout", jwt, h.HandleLogout)
	authGroup.Get("/me", jwt, h.HandleMe)
	authGroup.Post("/refresh", jwt, h.HandleRefresh)

	// --- Expense Routes ---
	expenses := api.Group("/expenses")
	expenses.Get("/public", h.HandleListPublicExpenses)

	// Must be before /:id
	expenses.Get("/export", jwt, h.HandleExportExpenses)
	expenses.Get("/summary", jwt, h.HandleExpenseSummary)
	expenses.Post("/insights", jwt, h.HandleExpenseInsights)

	expenses.Get("/", jwt, h.HandleListExpenses)
	expenses.Post("/", jwt, h.HandleCreateExpense)
	expenses.Get("/:id<int>", jwt, h.HandleGetExpense)
	expenses.Put("/:id<int>", jwt, h.HandleUpdateExpense)
	expenses.Delete("/:id<int>", jwt, h.HandleDeleteExpense)
}
