package refunds

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nimasrn/vtu-gateway/internal/queue"
	"github.com/nimasrn/vtu-gateway/pkg/logger"
	"github.com/nimasrn/vtu-gateway/pkg/prom"
)

type WalletCreditor interface {
	Credit(ctx context.Context, userID int64, amount uint) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionMarker interface {
	// MarkRefunded claims the refund: false means refunded_at was
	// already set and the credit must be skipped.
	MarkRefunded(ctx context.Context, id int64) (bool, error)
}

// RefundProcessor applies queued compensating credits. The refunded_at
// claim and the credit commit in one DB transaction, so the credit is
// at-most-once even against the inline compensation path; the Redis
// lock only serializes competing consumers.
type RefundProcessor struct {
	wallets      WalletCreditor
	transactions TransactionMarker
	idempotency  *IdempotencyService
}

func NewRefundProcessor(wallets WalletCreditor, transactions TransactionMarker, idempotency *IdempotencyService) *RefundProcessor {
	return &RefundProcessor{
		wallets:      wallets,
		transactions: transactions,
		idempotency:  idempotency,
	}
}

func (p *RefundProcessor) GetType() string {
	return "refund"
}

func (p *RefundProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var job Job
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("failed to unmarshal refund job", "error", err)
		return err // move to DLQ
	}
	if job.Reference == "" || job.UserID == 0 || job.Amount == 0 {
		logger.Error("refund job missing required fields",
			"reference", job.Reference, "user_id", job.UserID, "amount", job.Amount)
		return errors.New("malformed refund job")
	}

	rc, err := p.idempotency.AcquireLock(ctx, job.Reference)
	if err != nil {
		if errors.Is(err, ErrAlreadyRefunded) {
			logger.Info("refund already applied, skipping", "reference", job.Reference)
			return nil // ACK
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Out of budget: surface loudly and ACK so the DLQ keeps
			// the evidence. These need a human.
			logger.Error("refund abandoned after max retries, manual intervention required",
				"reference", job.Reference, "user_id", job.UserID, "amount", job.Amount)
			prom.AddRefundOutcome("abandoned")
			return err // move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("refund lock held by another consumer")
		}
		logger.Error("failed to acquire refund lock", "reference", job.Reference, "error", err)
		return err
	}

	defer func() {
		if rc.lockAcquired {
			p.idempotency.ReleaseLock(ctx, rc)
		}
	}()

	logger.Info("applying queued refund",
		"reference", job.Reference,
		"user_id", job.UserID,
		"amount", job.Amount,
		"retry_count", rc.RetryCount)

	credited := false
	err = p.wallets.WithinTransaction(ctx, func(ctx context.Context) error {
		claimed, err := p.transactions.MarkRefunded(ctx, job.TransactionID)
		if err != nil {
			return err
		}
		if !claimed {
			// refunded_at is set, so the credit already landed; this
			// job was a stale re-enqueue.
			return nil
		}
		credited = true
		return p.wallets.Credit(ctx, job.UserID, job.Amount)
	})
	if err != nil {
		logger.Error("queued refund credit failed", "reference", job.Reference, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, rc, err); markErr != nil {
			logger.Error("failed to record refund failure", "reference", job.Reference, "error", markErr)
		}
		return err // NACK to retry
	}

	if err := p.idempotency.MarkApplied(ctx, rc); err != nil {
		logger.Error("failed to mark refund applied", "reference", job.Reference, "error", err)
	}

	if !credited {
		logger.Info("refund already on the ledger, skipping credit", "reference", job.Reference)
		return nil
	}

	prom.AddRefundOutcome("reconciled")
	logger.Info("queued refund applied", "reference", job.Reference, "user_id", job.UserID, "amount", job.Amount)
	return nil
}
