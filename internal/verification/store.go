// Package verification manages short-lived numeric codes used to prove
// ownership of an email address. Codes live in process memory with lazy
// expiry; there is no background sweep.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"tutorgate/internal/types"
)

// Notifier delivers a verification code to its recipient. Delivery is
// best-effort: a failed send is logged but does not invalidate the code.
type Notifier interface {
	SendCode(ctx context.Context, email, code string) error
}

// entry is the live verification state for one email. At most one entry
// exists per address; issuing a new code overwrites the previous entry.
type entry struct {
	code     string
	issuedAt time.Time
	verified bool
}

// Store issues and confirms verification codes.
//
// Expiry is enforced lazily: an entry older than the TTL is treated as
// absent and deleted on the next confirmation attempt, not by a sweeper.
// Mismatched codes keep the entry alive so the sender can retry; the
// brute-force exposure that creates is bounded by the per-IP rate limit on
// the confirm endpoint.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl      time.Duration
	notifier Notifier
	logger   *slog.Logger

	// Injection points for tests.
	now    func() time.Time
	codeFn func() (string, error)
}

// NewStore creates a Store with the given code lifetime.
func NewStore(ttl time.Duration, notifier Notifier, logger *slog.Logger) *Store {
	return &Store{
		entries:  make(map[string]entry),
		ttl:      ttl,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		codeFn:   generateCode,
	}
}

// Issue generates a fresh code for email, overwriting any previous entry,
// and dispatches it through the notifier. A notifier failure is logged and
// swallowed; the code remains valid either way.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	code, err := s.codeFn()
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected,
			"Failed to generate verification code", err)
	}

	s.mu.Lock()
	s.entries[email] = entry{code: code, issuedAt: s.now()}
	s.mu.Unlock()

	if err := s.notifier.SendCode(ctx, email, code); err != nil {
		s.logger.WarnContext(ctx, "verification code dispatch failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}

	return code, nil
}

// Confirm checks a submitted code against the live entry for email.
//
// Outcomes:
//   - no entry: verification_not_found.
//   - entry already verified: success, idempotently, whatever the code.
//   - entry older than the TTL: entry deleted, verification_expired. A
//     retry with the same code then reports not-found.
//   - wrong code: verification_code_mismatch, entry retained for retries.
//   - matching code: entry marked verified, success.
func (s *Store) Confirm(ctx context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[email]
	if !ok {
		return types.NewAppError(types.ErrCodeVerificationNotFound,
			"No verification code found for this email", nil)
	}

	if e.verified {
		return nil
	}

	if s.now().Sub(e.issuedAt) > s.ttl {
		delete(s.entries, email)
		return types.NewAppError(types.ErrCodeVerificationExpired,
			"Verification code expired", nil)
	}

	if code != e.code {
		return types.NewAppError(types.ErrCodeVerificationMismatch,
			"Invalid verification code", nil)
	}

	e.verified = true
	s.entries[email] = e
	return nil
}

// Verified reports whether email has confirmed a code that is still live.
// The flag is advisory: nothing in the request path currently gates on it.
func (s *Store) Verified(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[email]
	return ok && e.verified
}

// generateCode returns a uniformly random 6-digit code in [100000, 999999]
// from a cryptographically secure source.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
