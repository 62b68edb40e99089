package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/vtu-gateway/pkg/logger"
	"github.com/nimasrn/vtu-gateway/pkg/redis"
)

var (
	ErrAlreadyRefunded    = errors.New("refund already applied")
	ErrLockAcquireFailed  = errors.New("failed to acquire refund lock")
	ErrMaxRetriesExceeded = errors.New("maximum refund retries exceeded")
)

// A refund credits money; applying one twice is worse than applying it
// late. IdempotencyConfig controls the redis markers that make a refund
// at-most-once across redeliveries and competing consumers.
type IdempotencyConfig struct {
	LockTTL time.Duration

	AppliedTTL time.Duration

	MaxRetries int

	RetryKeyPrefix string

	LockKeyPrefix string

	AppliedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:          30 * time.Second,
		AppliedTTL:       7 * 24 * time.Hour,
		MaxRetries:       5,
		RetryKeyPrefix:   "refund:retry:",
		LockKeyPrefix:    "refund:lock:",
		AppliedKeyPrefix: "refund:applied:",
	}
}

type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type RefundContext struct {
	Reference    string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

// AcquireLock checks the applied marker and retry budget, then takes
// the short-term lock that keeps two consumers off the same refund.
func (s *IdempotencyService) AcquireLock(ctx context.Context, reference string) (*RefundContext, error) {
	appliedKey := s.config.AppliedKeyPrefix + reference
	exists, err := s.redis.Exist(appliedKey)
	if err != nil {
		// A failed check must not block the refund; the wallet credit
		// path has its own refunded_at guard.
		logger.Warn("failed to check applied marker", "reference", reference, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyRefunded
	}

	retryKey := s.config.RetryKeyPrefix + reference
	retryCountBytes, err := s.redis.Get(retryKey)
	retryCount := 0
	if err == nil && len(retryCountBytes) > 0 {
		fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	}

	if retryCount >= s.config.MaxRetries {
		logger.Error("refund retry budget exhausted", "reference", reference, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: reference=%s, retries=%d", ErrMaxRetriesExceeded, reference, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + reference
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("failed to acquire refund lock", "reference", reference, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		logger.Info("refund lock held by another consumer", "reference", reference)
		return nil, ErrLockAcquireFailed
	}

	logger.Info("refund lock acquired",
		"reference", reference,
		"retry_count", retryCount,
		"lock_ttl", s.config.LockTTL)

	return &RefundContext{
		Reference:    reference,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

// MarkApplied sets the long-term applied marker and drops the lock and
// retry counter.
func (s *IdempotencyService) MarkApplied(ctx context.Context, rc *RefundContext) error {
	reference := rc.Reference

	appliedKey := s.config.AppliedKeyPrefix + reference
	if err := s.redis.Set(appliedKey, []byte("1"), s.config.AppliedTTL); err != nil {
		logger.Error("failed to set applied marker", "reference", reference, "error", err)
		return fmt.Errorf("failed to mark refund as applied: %w", err)
	}

	s.cleanup(ctx, rc)

	logger.Info("refund marked applied", "reference", reference, "retry_count", rc.RetryCount)
	return nil
}

// IsApplied reports whether the long-term applied marker is set.
func (s *IdempotencyService) IsApplied(ctx context.Context, reference string) (bool, error) {
	exists, err := s.redis.Exist(s.config.AppliedKeyPrefix + reference)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// MarkFailure bumps the retry counter and releases the lock so the next
// delivery can try again.
func (s *IdempotencyService) MarkFailure(ctx context.Context, rc *RefundContext, reason error) error {
	reference := rc.Reference

	retryKey := s.config.RetryKeyPrefix + reference
	newRetryCount := rc.RetryCount + 1
	if err := s.redis.Set(retryKey, []byte(fmt.Sprintf("%d", newRetryCount)), s.config.AppliedTTL); err != nil {
		logger.Error("failed to increment refund retry counter", "reference", reference, "error", err)
	}

	lockKey := s.config.LockKeyPrefix + reference
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to remove refund lock", "reference", reference, "error", err)
	}

	logger.Warn("refund attempt failed, will retry",
		"reference", reference,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, rc *RefundContext) error {
	if rc == nil || !rc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + rc.Reference
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to release refund lock", "reference", rc.Reference, "error", err)
		return err
	}

	rc.lockAcquired = false
	logger.Debug("refund lock released", "reference", rc.Reference)
	return nil
}

func (s *IdempotencyService) cleanup(ctx context.Context, rc *RefundContext) {
	reference := rc.Reference

	lockKey := s.config.LockKeyPrefix + reference
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to cleanup refund lock", "reference", reference, "error", err)
	}

	retryKey := s.config.RetryKeyPrefix + reference
	if err := s.redis.Del(retryKey); err != nil {
		logger.Warn("failed to cleanup refund retry counter", "reference", reference, "error", err)
	}

	rc.lockAcquired = false
}
