package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-expense/auth"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "http://localhost:6379")
	assert.Error(t, err)
}

func TestCodeStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	store := NewCodeStore(client)
	const email = "kim@example.com"

	_, err := store.Get(ctx, email)
	assert.ErrorIs(t, err, auth.ErrCodeNotFound)

	require.NoError(t, store.Save(ctx, email, "hash-1", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(codeKeyPrefix+email))

	n, err := store.IncrementAttempts(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	code, err := store.Get(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", code.Hash)
	assert.Equal(t, 1, code.Attempts)

	// Saving again resets the attempt counter.
	require.NoError(t, store.Save(ctx, email, "hash-2", time.Minute))
	code, err = store.Get(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 0, code.Attempts)

	deleted, err := store.Delete(ctx, email)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, email)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCodeStoreIncrementDoesNotRecreateExpiredKey(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	store := NewCodeStore(client)
	const email = "kim@example.com"

	require.NoError(t, store.Save(ctx, email, "hash", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.IncrementAttempts(ctx, email)
	assert.ErrorIs(t, err, auth.ErrCodeNotFound)
	assert.False(t, mr.Exists(codeKeyPrefix+email))
}

func TestCodeStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewCodeStore(client)
	const email = "kim@example.com"
	require.NoError(t, store.Save(ctx, email, "hash", time.Minute))

	var wg sync.WaitGroup
	seen := make(chan int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.IncrementAttempts(ctx, email)
			assert.NoError(t, err)
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)

	counts := make(map[int]bool)
	for n := range seen {
		counts[n] = true
	}
	assert.Len(t, counts, 20, "every attempt gets its own count")
}

func TestVerifierWithRedisStore(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	v := auth.NewVerifier(NewCodeStore(client), time.Minute, 2)
	const email = "kim@example.com"

	code, err := v.Issue(ctx, email)
	require.NoError(t, err)
	require.NoError(t, v.Check(ctx, email, code))
	assert.ErrorIs(t, v.Check(ctx, email, code), auth.ErrCodeNotFound)
}

func TestDenylist(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	d := NewDenylist(client)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = d.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestDenylistSkipsExpiredTokens(t *testing.T) {
	// An already expired token needs no entry, so no connection is touched.
	d := NewDenylist(&Client{})
	assert.NoError(t, d.Revoke(context.Background(), "jti", time.Now().Add(-time.Minute)))
}
