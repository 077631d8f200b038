package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"
)

// ErrUnavailable is returned once bounded retries against the backing store
// are exhausted. Callers surface it as a temporary failure.
var ErrUnavailable = errors.New("storage unavailable")

// SnapshotStore is the persistence collaborator: it reads the full ledger
// snapshot and atomically replaces it as one unit. Implementations must never
// leave the canonical state half-written.
type SnapshotStore interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Replace(ctx context.Context, sn *models.Snapshot) error
}

// RetryPolicy bounds load retries. Delay doubles after every failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy mirrors the historical 3-attempt read loop.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}

// RetryingStore decorates a SnapshotStore with bounded retry on Load.
// Replace is forwarded as-is: a failed replace leaves the old snapshot
// intact, so the whole operation fails cleanly without retry.
type RetryingStore struct {
	inner  SnapshotStore
	policy RetryPolicy
}

// NewRetryingStore wraps a store with the given retry policy.
func NewRetryingStore(inner SnapshotStore, policy RetryPolicy) *RetryingStore {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	return &RetryingStore{inner: inner, policy: policy}
}

// Load attempts the read up to MaxAttempts times with doubling backoff.
func (rs *RetryingStore) Load(ctx context.Context) (*models.Snapshot, error) {
	delay := rs.policy.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= rs.policy.MaxAttempts; attempt++ {
		sn, err := rs.inner.Load(ctx)
		if err == nil {
			return sn, nil
		}
		lastErr = err

		if attempt < rs.policy.MaxAttempts {
			util.SnapshotLoadRetriesTotal.Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}
	}

	return nil, fmt.Errorf("%w: load failed after %d attempts: %v", ErrUnavailable, rs.policy.MaxAttempts, lastErr)
}

// Replace forwards to the inner store.
func (rs *RetryingStore) Replace(ctx context.Context, sn *models.Snapshot) error {
	if err := rs.inner.Replace(ctx, sn); err != nil {
		return fmt.Errorf("%w: replace failed: %v", ErrUnavailable, err)
	}
	return nil
}
