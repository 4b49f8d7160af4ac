package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"travel-expense/models"
)

// MemoryStore keeps users and expenses in process memory and guards access with a RWMutex.
// Data does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	byEmail  map[string]int64
	expenses map[int64]models.Expense
	nextUser int64
	nextExp  int64
	clock    func() time.Time
}

// NewMemoryStore returns an empty store. A nil clock means time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		users:    make(map[int64]models.User),
		byEmail:  make(map[string]int64),
		expenses: make(map[int64]models.Expense),
		clock:    clock,
	}
}

func (s *MemoryStore) Users() UserRepository       { return memoryUsers{s} }
func (s *MemoryStore) Expenses() ExpenseRepository { return memoryExpenses{s} }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

type memoryUsers struct {
	s *MemoryStore
}

func (r memoryUsers) FindOrCreateByEmail(_ context.Context, email, name string) (*models.User, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byEmail[email]; ok {
		u := s.users[id]
		return &u, false, nil
	}

	s.nextUser++
	now := s.clock().UTC()
	u := models.User{ID: s.nextUser, Email: email, Name: name, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return &u, true, nil
}

func (r memoryUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

type memoryExpenses struct {
	s *MemoryStore
}

// visible returns the live expenses accepted by keep, newest first.
func (r memoryExpenses) visible(keep func(models.Expense) bool) []models.Expense {
	out := make([]models.Expense, 0)
	for _, e := range r.s.expenses {
		if !e.IsDeleted && keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r memoryExpenses) ListPublic(_ context.Context, limit, offset int) ([]models.Expense, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.visible(func(models.Expense) bool { return true })
	total := len(all)
	if offset < 0 || offset >= total {
		return []models.Expense{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r memoryExpenses) ListByUser(_ context.Context, userID int64) ([]models.Expense, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.visible(func(e models.Expense) bool { return e.UserID == userID }), nil
}

// lookup must be called with the lock held.
func (r memoryExpenses) lookup(userID, id int64) (models.Expense, error) {
	e, ok := r.s.expenses[id]
	if !ok || e.UserID != userID || e.IsDeleted {
		return models.Expense{}, ErrNotFound
	}
	return e, nil
}

func (r memoryExpenses) Get(_ context.Context, userID, id int64) (*models.Expense, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, err := r.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r memoryExpenses) Create(_ context.Context, userID int64, in models.Expense) (*models.Expense, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextExp++
	now := s.clock().UTC()
	e := models.Expense{
		ID:            s.nextExp,
		UserID:        userID,
		Date:          in.Date,
		Category:      in.Category,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		Note:          in.Note,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.expenses[e.ID] = e
	return &e, nil
}

func (r memoryExpenses) Update(_ context.Context, userID, id int64, in models.Expense) (*models.Expense, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := r.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	e.Date = in.Date
	e.Category = in.Category
	e.Amount = in.Amount
	e.PaymentMethod = in.PaymentMethod
	e.Note = in.Note
	e.UpdatedAt = s.clock().UTC()
	s.expenses[id] = e
	return &e, nil
}

func (r memoryExpenses) SoftDelete(_ context.Context, userID, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := r.lookup(userID, id)
	if err != nil {
		return err
	}
	e.IsDeleted = true
	e.UpdatedAt = s.clock().UTC()
	s.expenses[id] = e
	return nil
}
