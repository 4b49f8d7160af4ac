package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"travel-expense/auth"
)

const (
	codeKeyPrefix    = "verify:"
	revokedKeyPrefix = "revoked:"
)

// incrementAttempts bumps the counter only while the code hash exists, so an
// expired key is never recreated without its TTL.
var incrementAttempts = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], "hash") == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// Client wraps a Redis connection.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to the server named by a redis:// URL.
func NewClient(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := &Client{rdb: redis.NewClient(opts)}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Ping tests the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// CodeStore keeps verification codes as hashes that expire with the code.
type CodeStore struct {
	c *Client
}

func NewCodeStore(c *Client) *CodeStore {
	return &CodeStore{c: c}
}

func (s *CodeStore) Save(ctx context.Context, email, hash string, ttl time.Duration) error {
	key := codeKeyPrefix + email
	_, err := s.c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "hash", hash, "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *CodeStore) Get(ctx context.Context, email string) (*auth.VerificationCode, error) {
	fields, err := s.c.rdb.HGetAll(ctx, codeKeyPrefix+email).Result()
	if err != nil {
		return nil, err
	}
	hash := fields["hash"]
	if hash == "" {
		return nil, auth.ErrCodeNotFound
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return &auth.VerificationCode{Hash: hash, Attempts: attempts}, nil
}

func (s *CodeStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrementAttempts.Run(ctx, s.c.rdb, []string{codeKeyPrefix + email}).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, auth.ErrCodeNotFound
	}
	return n, nil
}

func (s *CodeStore) Delete(ctx context.Context, email string) (bool, error) {
	n, err := s.c.rdb.Del(ctx, codeKeyPrefix+email).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Denylist stores revoked token IDs with a TTL matching the token expiry.
type Denylist struct {
	c   *Client
	now func() time.Time
}

func NewDenylist(c *Client) *Denylist {
	return &Denylist{c: c, now: time.Now}
}

func (d *Denylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	return d.c.rdb.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err()
}

func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := d.c.rdb.Get(ctx, revokedKeyPrefix+jti).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

var (
	_ auth.CodeStore = (*CodeStore)(nil)
	_ auth.Denylist  = (*Denylist)(nil)
)
