package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrAlreadyFinalized is returned when a terminal-state update
	// targets a row that already reached a different terminal state.
	ErrAlreadyFinalized = errors.New("transaction already finalized")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// Create inserts a new row in pending status. This must happen before
// the provider is called so every attempt stays auditable even if the
// process dies mid-flight.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)
	if entity.Status == "" {
		entity.Status = string(model.StatusPending)
	}
	if entity.PaymentMethod == "" {
		entity.PaymentMethod = "wallet"
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// UpdateStatus is the only allowed mutation after creation: it moves a
// pending row to a terminal status. The transition is conditional on
// the row still being pending, so calling it twice with the same
// terminal status leaves the row untouched the second time.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus, errorMessage string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ? AND status = ?", id, string(model.StatusPending)).
		Updates(map[string]interface{}{
			"status":        string(status),
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Nothing transitioned: either the row is gone or it is already
	// terminal. Same terminal status twice is a no-op, anything else
	// is a bug worth surfacing.
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("status").
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTransactionNotFound
		}
		return err
	}
	if entity.Status == string(status) {
		return nil
	}
	return ErrAlreadyFinalized
}

// MarkRefunded claims the compensating credit for a failed attempt by
// setting refunded_at, conditional on it still being NULL. The claim
// succeeds for exactly one caller; a false return means the row was
// already refunded and the credit must be skipped. Run it in the same
// DB transaction as the wallet credit so the timestamp and the money
// commit or roll back together.
func (r *TransactionRepository) MarkRefunded(ctx context.Context, id int64) (bool, error) {
	now := time.Now()
	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ? AND refunded_at IS NULL", id).
		Update("refunded_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("reference = ?", reference).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{})

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Service != nil {
		q = q.Where("service = ?", string(*f.Service))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Reference != nil && *f.Reference != "" {
		q = q.Where("reference = ?", *f.Reference)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

// ListFailedUnrefunded returns failed rows whose compensating credit
// has not been confirmed. The reconciler sweep re-drives these.
func (r *TransactionRepository) ListFailedUnrefunded(ctx context.Context, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND refunded_at IS NULL AND updated_at < ?", string(model.StatusFailed), olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// ListStalePending returns rows stuck in pending past the provider
// deadline: the process died between the debit and the settlement.
func (r *TransactionRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND created_at < ?", string(model.StatusPending), olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}
