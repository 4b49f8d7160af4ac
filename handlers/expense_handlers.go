package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"travel-expense/middleware"
	"travel-expense/models"
	"travel-expense/repository"
	"travel-expense/utils"
)

// HandleListPublicExpenses lists every traveller's expenses without owner information.
// GET /api/expenses/public
func (h *Handler) HandleListPublicExpenses(c *fiber.Ctx) error {
	pagination := utils.CreatePagination(0, c.QueryInt("page", 1), c.QueryInt("pageSize", utils.DefaultPageSize))

	expenses, total, err := h.expenses.ListPublic(c.UserContext(), pagination.PageSize, pagination.Offset())
	if err != nil {
		h.logger.Error("listing public expenses failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Database error"})
	}

	pagination = utils.CreatePagination(total, pagination.CurrentPage, pagination.PageSize)
	c.Set("X-Total-Count", strconv.Itoa(pagination.TotalItems))
	c.Set("X-Total-Pages", strconv.Itoa(pagination.TotalPages))

	out := make([]models.Expense, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.Public())
	}
	return c.JSON(out)
}

// HandleListExpenses lists the caller's expenses, newest first.
// GET /api/expenses
func (h *Handler) HandleListExpenses(c *fiber.Ctx) error {
	expenses, err := h.ownExpenses(c)
	if err != nil {
		return err
	}
	return c.JSON(expenses)
}

// HandleCreateExpense records a new expense for the caller.
// POST /api/expenses
func (h *Handler) HandleCreateExpense(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	expense, err := h.parseExpense(c)
	if err != nil {
		return ignoreResponded(err)
	}

	created, err := h.expenses.Create(c.UserContext(), userID, *expense)
	if err != nil {
		h.logger.Error("creating expense failed", zap.Int64("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Failed to create expense"})
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// HandleGetExpense returns one of the caller's expenses.
// GET /api/expenses/:id
func (h *Handler) HandleGetExpense(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Invalid expense ID"})
	}

	expense, err := h.expenses.Get(c.UserContext(), userID, int64(id))
	if err != nil {
		return h.expenseLookupError(c, err, userID, id)
	}
	return c.JSON(expense)
}

// HandleUpdateExpense replaces the editable fields of one of the caller's expenses.
// PUT /api/expenses/:id
func (h *Handler) HandleUpdateExpense(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Invalid expense ID"})
	}

	expense, err := h.parseExpense(c)
	if err != nil {
		return ignoreResponded(err)
	}

	updated, err := h.expenses.Update(c.UserContext(), userID, int64(id), *expense)
	if err != nil {
		return h.expenseLookupError(c, err, userID, id)
	}
	return c.JSON(updated)
}

// HandleDeleteExpense logically deletes one of the caller's expenses.
// DELETE /api/expenses/:id
func (h *Handler) HandleDeleteExpense(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Invalid expense ID"})
	}

	if err := h.expenses.SoftDelete(c.UserContext(), userID, int64(id)); err != nil {
		return h.expenseLookupError(c, err, userID, id)
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleExportExpenses downloads the caller's expenses as a spreadsheet-friendly CSV.
// GET /api/expenses/export
func (h *Handler) HandleExportExpenses(c *fiber.Ctx) error {
	expenses, err := h.ownExpenses(c)
	if err != nil {
		return err
	}

	data, err := utils.BuildExpensesCSV(expenses)
	if err != nil {
		h.logger.Error("building csv export failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Failed to export expenses"})
	}

	filename := fmt.Sprintf("travel-expenses-%s.csv", h.clock().Format("20060102"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(data)
}

// HandleExpenseSummary totals the caller's spending.
// GET /api/expenses/summary
func (h *Handler) HandleExpenseSummary(c *fiber.Ctx) error {
	expenses, err := h.ownExpenses(c)
	if err != nil {
		return err
	}
	return c.JSON(utils.Summarize(expenses))
}

// ownExpenses loads the caller's expenses. Failures are returned as
// *fiber.Error for the app error handler to render.
func (h *Handler) ownExpenses(c *fiber.Ctx) ([]models.Expense, error) {
	userID, _ := middleware.UserID(c)

	expenses, err := h.expenses.ListByUser(c.UserContext(), userID)
	if err != nil {
		h.logger.Error("listing expenses failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Database error")
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	return expenses, nil
}

// parseExpense decodes and validates the request body. On failure it writes
// the error response itself and returns errResponded.
func (h *Handler) parseExpense(c *fiber.Ctx) (*models.Expense, error) {
	var in models.ExpenseInput
	if err := c.BodyParser(&in); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	expense, errs := utils.ValidateExpense(in, h.clock())
	if len(errs) > 0 {
		if err := c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"status":  "error",
			"message": "Validation failed",
			"errors":  errs,
		}); err != nil {
			return nil, err
		}
		return nil, errResponded
	}
	return &expense, nil
}

func (h *Handler) expenseLookupError(c *fiber.Ctx, err error, userID int64, id int) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "error", "message": "Expense not found"})
	}
	h.logger.Error("expense query failed", zap.Int64("user_id", userID), zap.Int("expense_id", id), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Database error"})
}
