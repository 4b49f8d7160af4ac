package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrCodeNotFound means no live code exists for the address.
	ErrCodeNotFound = errors.New("verification code not found or expired")
	// ErrCodeMismatch means the submitted code is wrong but more attempts remain.
	ErrCodeMismatch = errors.New("invalid verification code")
	// ErrTooManyAttempts means the code was burnt after repeated wrong guesses.
	ErrTooManyAttempts = errors.New("too many invalid attempts")
)

const codeDigits = 6

// VerificationCode is a stored login code. Only the bcrypt hash is kept.
type VerificationCode struct {
	Hash     string
	Attempts int
}

// CodeStore persists one pending code per e-mail address.
type CodeStore interface {
	// Save replaces any pending code for email.
	Save(ctx context.Context, email, hash string, ttl time.Duration) error
	// Get returns ErrCodeNotFound when nothing live is stored.
	Get(ctx context.Context, email string) (*VerificationCode, error)
	// IncrementAttempts atomically counts one attempt and returns the new total.
	// It returns ErrCodeNotFound when nothing live is stored.
	IncrementAttempts(ctx context.Context, email string) (int, error)
	// Delete removes the code and reports whether one was stored.
	Delete(ctx context.Context, email string) (bool, error)
}

// Verifier issues and checks e-mailed login codes.
type Verifier struct {
	store       CodeStore
	ttl         time.Duration
	maxAttempts int
	cost        int
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithHashCost overrides the bcrypt cost, primarily for tests.
func WithHashCost(cost int) VerifierOption {
	return func(v *Verifier) {
		v.cost = cost
	}
}

func NewVerifier(store CodeStore, ttl time.Duration, maxAttempts int, opts ...VerifierOption) *Verifier {
	v := &Verifier{store: store, ttl: ttl, maxAttempts: maxAttempts, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// TTL is how long an issued code stays valid.
func (v *Verifier) TTL() time.Duration {
	return v.ttl
}

// Issue generates a fresh code for email, stores its hash and returns the plain code.
func (v *Verifier) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode(codeDigits)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}
	if err := v.store.Save(ctx, email, string(hash), v.ttl); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Check consumes the pending code for email when code matches it.
// Every call counts as an attempt before the hash is compared, so parallel
// guesses cannot exceed the attempt limit.
func (v *Verifier) Check(ctx context.Context, email, code string) error {
	attempts, err := v.store.IncrementAttempts(ctx, email)
	if err != nil {
		return err
	}
	if attempts > v.maxAttempts {
		_, _ = v.store.Delete(ctx, email)
		return ErrTooManyAttempts
	}

	stored, err := v.store.Get(ctx, email)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(stored.Hash), []byte(code)) != nil {
		if attempts >= v.maxAttempts {
			_, _ = v.store.Delete(ctx, email)
			return ErrTooManyAttempts
		}
		return ErrCodeMismatch
	}

	// Only the caller that removes the code may use it.
	deleted, err := v.store.Delete(ctx, email)
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if !deleted {
		return ErrCodeNotFound
	}
	return nil
}

func generateCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
