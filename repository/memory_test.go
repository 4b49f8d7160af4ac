package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-expense/models"
)

func expenseAt(date string, amount float64) models.Expense {
	d, err := models.ParseExpenseDate(date)
	if err != nil {
		panic(err)
	}
	return models.Expense{Date: d, Category: models.CategoryFood, Amount: amount, PaymentMethod: models.PaymentCash}
}

func TestMemoryUsersFindOrCreate(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryStore(nil).Users()

	u, created, err := users.FindOrCreateByEmail(ctx, "kim@example.com", "kim")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), u.ID)

	again, created, err := users.FindOrCreateByEmail(ctx, "kim@example.com", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "kim", again.Name)

	_, err = users.GetByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryExpensesOwnershipAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	expenses := store.Expenses()

	first, err := expenses.Create(ctx, 1, expenseAt("2024-01-15 10:00", 500))
	require.NoError(t, err)
	second, err := expenses.Create(ctx, 1, expenseAt("2024-01-15 12:00", 3000))
	require.NoError(t, err)
	other, err := expenses.Create(ctx, 2, expenseAt("2024-01-14 09:00", 15000))
	require.NoError(t, err)

	mine, err := expenses.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")

	_, err = expenses.Get(ctx, 1, other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = expenses.Update(ctx, 1, other.ID, expenseAt("2024-01-14 09:00", 1))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, expenses.SoftDelete(ctx, 1, other.ID), ErrNotFound)

	updated, err := expenses.Update(ctx, 1, first.ID, expenseAt("2024-01-15 11:00", 700))
	require.NoError(t, err)
	assert.Equal(t, 700.0, updated.Amount)
	assert.Equal(t, "2024-01-15 11:00", updated.Date.String())

	require.NoError(t, expenses.SoftDelete(ctx, 1, first.ID))
	assert.ErrorIs(t, expenses.SoftDelete(ctx, 1, first.ID), ErrNotFound)
	_, err = expenses.Get(ctx, 1, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err = expenses.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestMemoryExpensesListPublicPaging(t *testing.T) {
	ctx := context.Background()
	expenses := NewMemoryStore(nil).Expenses()

	for i, date := range []string{"2024-01-15 10:00", "2024-01-16 10:00", "2024-01-17 10:00"} {
		_, err := expenses.Create(ctx, int64(i+1), expenseAt(date, 100))
		require.NoError(t, err)
	}
	require.NoError(t, expenses.SoftDelete(ctx, 1, 1))

	page, total, err := expenses.ListPublic(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "2024-01-17 10:00", page[0].Date.String())

	page, _, err = expenses.ListPublic(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, _, err = expenses.ListPublic(ctx, 10, -10)
	require.NoError(t, err)
	assert.Empty(t, page)
}
