package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"travel-expense/insights"
	"travel-expense/models"
	"travel-expense/utils"
)

const insightsTimeout = 30 * time.Second

// HandleExpenseInsights asks the AI model for budgeting advice on the caller's spending.
// POST /api/expenses/insights
func (h *Handler) HandleExpenseInsights(c *fiber.Ctx) error {
	if h.insights == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "error", "message": "AI insights are not configured"})
	}

	expenses, err := h.ownExpenses(c)
	if err != nil {
		return err
	}

	summary := utils.Summarize(expenses)
	if summary.Count == 0 {
		return c.JSON(models.InsightsResponse{Summary: summary})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), insightsTimeout)
	defer cancel()

	advice, err := h.insights.Generate(ctx, insights.BuildPrompt(summary))
	if err != nil {
		h.logger.Error("generating insights failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"status": "error", "message": "Failed to generate insights"})
	}

	return c.JSON(models.InsightsResponse{Summary: summary, Advice: advice})
}
