package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"travel-expense/auth"
	"travel-expense/middleware"
	"travel-expense/models"
	"travel-expense/repository"
	"travel-expense/utils"
)

const tokenType = "bearer"

// HandleRequestVerification e-mails a fresh login code.
// POST /api/auth/request-verification
func (h *Handler) HandleRequestVerification(c *fiber.Ctx) error {
	var req models.VerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Cannot parse JSON"})
	}

	email, err := utils.ValidateEmail(req.Email)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}

	if h.mailer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "error", "message": "E-mail delivery is not configured"})
	}

	if !h.emailLimiter.Allow(email) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"status": "error", "message": "Too many code requests, please wait before retrying"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()

	code, err := h.verifier.Issue(ctx, email)
	if err != nil {
		h.logger.Error("issuing verification code failed", zap.String("email", email), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Could not create verification code"})
	}

	if err := h.mailer.SendVerificationCode(ctx, email, code, h.verifier.TTL()); err != nil {
		h.logger.Error("sending verification code failed", zap.String("email", email), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"status": "error", "message": "Could not send verification e-mail"})
	}

	return c.JSON(fiber.Map{"message": "Verification code sent to your e-mail"})
}

// HandleVerifyCode exchanges a valid login code for an access token, creating the user on first login.
// POST /api/auth/verify-code
func (h *Handler) HandleVerifyCode(c *fiber.Ctx) error {
	var req models.VerifyCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Cannot parse JSON"})
	}

	email, err := utils.ValidateEmail(req.Email)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}
	code, err := utils.NormalizeVerificationCode(req.Code)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}

	ctx := c.UserContext()
	if err := h.verifier.Check(ctx, email, code); err != nil {
		switch {
		case errors.Is(err, auth.ErrCodeNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Verification code expired or was never requested"})
		case errors.Is(err, auth.ErrCodeMismatch):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Invalid verification code"})
		case errors.Is(err, auth.ErrTooManyAttempts):
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"status": "error", "message": "Too many invalid attempts, request a new code"})
		default:
			h.logger.Error("checking verification code failed", zap.String("email", email), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Could not verify code"})
		}
	}

	user, created, err := h.users.FindOrCreateByEmail(ctx, email, models.DefaultUserName(email))
	if err != nil {
		h.logger.Error("loading user failed", zap.String("email", email), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Database error"})
	}
	if created {
		h.logger.Info("user registered", zap.Int64("user_id", user.ID))
	}

	token, _, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("signing token failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Could not sign token"})
	}

	return c.JSON(models.TokenResponse{AccessToken: token, TokenType: tokenType, User: user})
}

// HandleLogout revokes the presented token.
// POST /api/auth/logout
func (h *Handler) HandleLogout(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": "Not authenticated"})
	}

	if err := h.denylist.Revoke(c.UserContext(), claims.ID, claims.ExpiresAt.Time); err != nil {
		h.logger.Error("revoking token failed", zap.String("jti", claims.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Could not log out"})
	}

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// HandleMe returns the authenticated user.
// GET /api/auth/me
func (h *Handler) HandleMe(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// HandleRefresh swaps the presented token for a new one with a full lifetime.
// POST /api/auth/refresh
func (h *Handler) HandleRefresh(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": "Not authenticated"})
	}
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	token, _, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("signing token failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Could not sign token"})
	}

	if err := h.denylist.Revoke(c.UserContext(), claims.ID, claims.ExpiresAt.Time); err != nil {
		h.logger.Error("revoking refreshed token failed", zap.String("jti", claims.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Could not refresh token"})
	}

	return c.JSON(models.TokenResponse{AccessToken: token, TokenType: tokenType})
}

// currentUser loads the token's user. Failures are returned as *fiber.Error
// for the app error handler to render.
func (h *Handler) currentUser(c *fiber.Ctx) (*models.User, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
	}

	user, err := h.users.GetByID(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "User no longer exists")
		}
		h.logger.Error("loading user failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Database error")
	}
	return user, nil
}
