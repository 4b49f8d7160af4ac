package repository

import (
	"context"
	"errors"

	"travel-expense/models"
)

// ErrNotFound is returned when a record does not exist or is not visible to the caller.
var ErrNotFound = errors.New("record not found")

// UserRepository stores travellers.
type UserRepository interface {
	// FindOrCreateByEmail returns the user owning email, creating it with name
	// when absent. created reports whether a new row was inserted.
	FindOrCreateByEmail(ctx context.Context, email, name string) (user *models.User, created bool, err error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// ExpenseRepository stores expenses. Deleted expenses are never returned.
type ExpenseRepository interface {
	// ListPublic returns one page of every user's expenses, newest first, and the total count.
	ListPublic(ctx context.Context, limit, offset int) ([]models.Expense, int, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Expense, error)
	Get(ctx context.Context, userID, id int64) (*models.Expense, error)
	Create(ctx context.Context, userID int64, in models.Expense) (*models.Expense, error)
	Update(ctx context.Context, userID, id int64, in models.Expense) (*models.Expense, error)
	// SoftDelete marks the expense deleted. Already deleted expenses yield ErrNotFound.
	SoftDelete(ctx context.Context, userID, id int64) error
}

// Store bundles the repositories of one backend.
type Store interface {
	Users() UserRepository
	Expenses() ExpenseRepository
	Ping(ctx context.Context) error
	Close()
}
