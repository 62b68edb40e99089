package refunds

import (
	"context"
	"time"

	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/pkg/logger"
)

const sweepBatchSize = 200

type TransactionSweepStore interface {
	ListFailedUnrefunded(ctx context.Context, olderThan time.Time, limit int) ([]*model.Transaction, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus, errorMessage string) error
}

type JobPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// ProviderLookup resolves the client to ask about a stale purchase.
type ProviderLookup interface {
	Get(code string) (billpay.Client, bool)
	PreferredFor(service model.ServiceType) (billpay.Client, error)
}

// Sweeper is the safety net behind the in-flow compensation and the
// refund queue: it periodically re-drives failed rows whose credit
// never landed, and settles rows stuck in pending because the process
// died between debit and settlement.
type Sweeper struct {
	transactions TransactionSweepStore
	publisher    JobPublisher
	providers    ProviderLookup
	staleAfter   time.Duration
}

func NewSweeper(transactions TransactionSweepStore, publisher JobPublisher, providers ProviderLookup, staleAfter time.Duration) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &Sweeper{
		transactions: transactions,
		publisher:    publisher,
		providers:    providers,
		staleAfter:   staleAfter,
	}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweepFailedUnrefunded(ctx)
	s.sweepStalePending(ctx)
}

func (s *Sweeper) sweepFailedUnrefunded(ctx context.Context) {
	cutoff := time.Now().Add(-s.staleAfter)
	rows, err := s.transactions.ListFailedUnrefunded(ctx, cutoff, sweepBatchSize)
	if err != nil {
		logger.Error("failed to list unrefunded failures", "error", err)
		return
	}
	for _, txn := range rows {
		s.enqueue(ctx, txn, txn.ErrorMessage)
	}
	if len(rows) > 0 {
		logger.Info("re-enqueued unrefunded failures", "count", len(rows))
	}
}

// sweepStalePending settles rows the purchase flow abandoned. The
// provider's own record decides the outcome: a stale row is only
// refunded once the provider confirms the purchase did not deliver,
// otherwise a delivered top-up would be paid back too.
func (s *Sweeper) sweepStalePending(ctx context.Context) {
	cutoff := time.Now().Add(-s.staleAfter)
	rows, err := s.transactions.ListStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		logger.Error("failed to list stale pending purchases", "error", err)
		return
	}

	for _, txn := range rows {
		client, ok := s.providers.Get(txn.ProviderCode)
		if !ok {
			client, err = s.providers.PreferredFor(txn.Service)
			if err != nil {
				logger.Warn("no provider to verify stale purchase", "reference", txn.Reference)
				continue
			}
		}

		res, err := client.TransactionStatus(ctx, txn.Reference)
		if err != nil {
			// Provider unreachable; the row stays pending for the next
			// sweep.
			logger.Warn("stale purchase status query failed", "reference", txn.Reference, "error", err)
			continue
		}

		if res.Success {
			if err := s.transactions.UpdateStatus(ctx, txn.ID, model.StatusSuccessful, ""); err != nil {
				logger.Error("failed to settle stale purchase as successful", "reference", txn.Reference, "error", err)
			} else {
				logger.Info("stale purchase confirmed delivered", "reference", txn.Reference)
			}
			continue
		}

		reason := res.Message
		if reason == "" {
			reason = "not confirmed by provider"
		}
		if err := s.transactions.UpdateStatus(ctx, txn.ID, model.StatusFailed, reason); err != nil {
			logger.Error("failed to mark stale purchase failed", "reference", txn.Reference, "error", err)
			continue
		}
		s.enqueue(ctx, txn, reason)
		logger.Info("stale purchase marked failed and queued for refund", "reference", txn.Reference)
	}
}

func (s *Sweeper) enqueue(ctx context.Context, txn *model.Transaction, reason string) {
	_, err := s.publisher.PublishJSON(ctx, Job{
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		Amount:        txn.Total,
		Reference:     txn.Reference,
		Reason:        reason,
	}, nil)
	if err != nil {
		logger.Error("failed to enqueue refund job from sweep", "reference", txn.Reference, "error", err)
	}
}
