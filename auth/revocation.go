package auth

import (
	"context"
	"time"
)

// Denylist remembers revoked token IDs until the tokens would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
