package auth

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const email = "kim@example.com"

func newTestVerifier(now func() time.Time) (*Verifier, *MemoryCodeStore) {
	store := NewMemoryCodeStore(now)
	return NewVerifier(store, 10*time.Minute, 3, WithHashCost(bcrypt.MinCost)), store
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestVerifierIssueAndCheck(t *testing.T) {
	ctx := context.Background()
	v, store := newTestVerifier(nil)

	code, err := v.Issue(ctx, email)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)

	stored, err := store.Get(ctx, email)
	require.NoError(t, err)
	assert.NotEqual(t, code, stored.Hash, "only the hash is stored")

	require.NoError(t, v.Check(ctx, email, code))
	assert.ErrorIs(t, v.Check(ctx, email, code), ErrCodeNotFound, "codes are single use")
}

func TestVerifierReissueReplacesCode(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVerifier(nil)

	first, err := v.Issue(ctx, email)
	require.NoError(t, err)
	second, err := v.Issue(ctx, email)
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, v.Check(ctx, email, first), ErrCodeMismatch)
	}
	require.NoError(t, v.Check(ctx, email, second))
}

func TestVerifierBurnsCodeAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVerifier(nil)

	code, err := v.Issue(ctx, email)
	require.NoError(t, err)
	bad := wrongCode(code)

	assert.ErrorIs(t, v.Check(ctx, email, bad), ErrCodeMismatch)
	assert.ErrorIs(t, v.Check(ctx, email, bad), ErrCodeMismatch)
	assert.ErrorIs(t, v.Check(ctx, email, bad), ErrTooManyAttempts)
	assert.ErrorIs(t, v.Check(ctx, email, code), ErrCodeNotFound)
}

// countingStore counts hash lookups, one per compared guess.
type countingStore struct {
	*MemoryCodeStore
	gets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, email string) (*VerificationCode, error) {
	s.gets.Add(1)
	return s.MemoryCodeStore.Get(ctx, email)
}

func TestVerifierLimitsParallelGuesses(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryCodeStore: NewMemoryCodeStore(nil)}
	v := NewVerifier(store, 10*time.Minute, 3)

	code, err := v.Issue(ctx, email)
	require.NoError(t, err)
	bad := wrongCode(code)

	var (
		wg         sync.WaitGroup
		mismatches atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := v.Check(ctx, email, bad)
			switch {
			case errors.Is(err, ErrCodeMismatch):
				mismatches.Add(1)
			case errors.Is(err, ErrTooManyAttempts), errors.Is(err, ErrCodeNotFound):
			default:
				t.Errorf("unexpected result %v", err)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, store.gets.Load(), int32(3), "only counted attempts reach the hash")
	assert.LessOrEqual(t, mismatches.Load(), int32(2))
	assert.ErrorIs(t, v.Check(ctx, email, code), ErrCodeNotFound, "the code is burnt")
}

func TestVerifierCountsSuccessfulAttempt(t *testing.T) {
	ctx := context.Background()
	v, store := newTestVerifier(nil)

	code, err := v.Issue(ctx, email)
	require.NoError(t, err)
	bad := wrongCode(code)

	assert.ErrorIs(t, v.Check(ctx, email, bad), ErrCodeMismatch)
	assert.ErrorIs(t, v.Check(ctx, email, bad), ErrCodeMismatch)
	// The last allowed attempt may still be the right one.
	require.NoError(t, v.Check(ctx, email, code))

	_, err = store.Get(ctx, email)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestMemoryCodeStoreDeleteReportsLiveCode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCodeStore(nil)
	require.NoError(t, store.Save(ctx, email, "hash", time.Minute))

	deleted, err := store.Delete(ctx, email)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, email)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestVerifierExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	v, _ := newTestVerifier(func() time.Time { return now })

	code, err := v.Issue(ctx, email)
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	assert.ErrorIs(t, v.Check(ctx, email, code), ErrCodeNotFound)
}

func TestMemoryDenylist(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	d := NewMemoryDenylist(func() time.Time { return now })

	require.NoError(t, d.Revoke(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, d.Revoke(ctx, "stale", now.Add(-time.Minute)))

	revoked, err := d.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = d.IsRevoked(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = d.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)
}
