package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"travel-expense/models"
)

// PostgresStore keeps users and expenses in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Users() UserRepository       { return postgresUsers{pool: s.pool} }
func (s *PostgresStore) Expenses() ExpenseRepository { return postgresExpenses{pool: s.pool} }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

type postgresUsers struct {
	pool *pgxpool.Pool
}

func (r postgresUsers) FindOrCreateByEmail(ctx context.Context, email, name string) (*models.User, bool, error) {
	// xmax is zero only for a freshly inserted row.
	query := `
		INSERT INTO users (email, name)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, name, created_at, updated_at, (xmax = 0) AS inserted`

	var u models.User
	var created bool
	err := r.pool.QueryRow(ctx, query, email, name).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}
	return &u, created, nil
}

func (r postgresUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, email, name, created_at, updated_at FROM users WHERE id = $1`

	var u models.User
	err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

type postgresExpenses struct {
	pool *pgxpool.Pool
}

const expenseColumns = `id, user_id, spent_at, category, amount::float8, payment_method, note, is_deleted, created_at, updated_at`

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var e models.Expense
	var spentAt time.Time
	err := row.Scan(&e.ID, &e.UserID, &spentAt, &e.Category, &e.Amount, &e.PaymentMethod, &e.Note, &e.IsDeleted, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Date = models.NewExpenseDate(spentAt)
	return &e, nil
}

func collectExpenses(rows pgx.Rows) ([]models.Expense, error) {
	defer rows.Close()

	expenses := make([]models.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (r postgresExpenses) ListPublic(ctx context.Context, limit, offset int) ([]models.Expense, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses WHERE NOT is_deleted`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count public expenses: %w", err)
	}

	query := `SELECT ` + expenseColumns + `
		FROM expenses
		WHERE NOT is_deleted
		ORDER BY spent_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list public expenses: %w", err)
	}
	expenses, err := collectExpenses(rows)
	if err != nil {
		return nil, 0, err
	}
	return expenses, total, nil
}

func (r postgresExpenses) ListByUser(ctx context.Context, userID int64) ([]models.Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY spent_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return collectExpenses(rows)
}

func (r postgresExpenses) Get(ctx context.Context, userID, id int64) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1 AND user_id = $2 AND NOT is_deleted`
	e, err := scanExpense(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r postgresExpenses) Create(ctx context.Context, userID int64, in models.Expense) (*models.Expense, error) {
	query := `
		INSERT INTO expenses (user_id, spent_at, category, amount, payment_method, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + expenseColumns
	e, err := scanExpense(r.pool.QueryRow(ctx, query, userID, in.Date.Time, in.Category, in.Amount, in.PaymentMethod, in.Note))
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

func (r postgresExpenses) Update(ctx context.Context, userID, id int64, in models.Expense) (*models.Expense, error) {
	query := `
		UPDATE expenses
		SET spent_at = $3, category = $4, amount = $5, payment_method = $6, note = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND NOT is_deleted
		RETURNING ` + expenseColumns
	e, err := scanExpense(r.pool.QueryRow(ctx, query, id, userID, in.Date.Time, in.Category, in.Amount, in.PaymentMethod, in.Note))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return e, nil
}

func (r postgresExpenses) SoftDelete(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE expenses SET is_deleted = TRUE, updated_at = now() WHERE id = $1 AND user_id = $2 AND NOT is_deleted`,
		id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
