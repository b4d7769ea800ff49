package service

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.mongodb.org/mongo-driver/mongo"
)

// User-facing error taxonomy. NotFound, InvalidState, InvalidOperation and
// Forbidden surface directly and are never retried. Conflict means a
// guarded write lost to a concurrent mutation; callers re-fetch and retry
// manually. Transient covers storage timeouts and is safe to retry.
var (
	ErrNotFound         = errors.New("referenced record not found")
	ErrConflict         = errors.New("conflicting concurrent modification")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrForbidden        = errors.New("actor is not allowed to perform this action")
	ErrTransient        = errors.New("transient storage failure")
)

// wrapTransient classifies store timeouts and network failures as
// retryable for the caller.
func wrapTransient(err error) error {
	if isTransient(err) {
		return fmt.Errorf("%v: %w", err, ErrTransient)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
