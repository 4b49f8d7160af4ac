package middleware

import (
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"travel-expense/ratelimit"
)

const (
	HeaderRequestID = "X-Request-ID"
	localRequestID  = "requestID"
)

// RequestID tags each request with the caller's X-Request-ID or a new UUID and echoes it back.
func RequestID(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Get(HeaderRequestID))
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	c.Locals(localRequestID, id)
	c.Set(HeaderRequestID, id)
	return c.Next()
}

// GetRequestID returns the ID assigned by RequestID.
func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

// RequestLogger writes one structured line per request.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the app error handler set the final status before logging it.
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return nil
	}
}

// TrustedHosts rejects requests whose Host header is not listed. "*" allows every host
// and "*.example.com" matches any subdomain of example.com.
func TrustedHosts(allowed []string) fiber.Handler {
	for _, h := range allowed {
		if h == "*" {
			return func(c *fiber.Ctx) error { return c.Next() }
		}
	}

	return func(c *fiber.Ctx) error {
		host := strings.ToLower(c.Hostname())
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		for _, pattern := range allowed {
			pattern = strings.ToLower(pattern)
			if host == pattern || (strings.HasPrefix(pattern, "*.") && strings.HasSuffix(host, pattern[1:])) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Invalid host header"})
	}
}

// RateLimit answers 429 once the caller's bucket, keyed by client IP, is empty.
func RateLimit(limiter *ratelimit.Keyed) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter.Allow(c.IP()) {
			return c.Next()
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"status": "error", "message": "Too many requests, please retry shortly"})
	}
}
