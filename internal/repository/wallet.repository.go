package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/vtu-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nimasrn/vtu-gateway/internal/model"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConcurrentUpdate    = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
	ErrDuplicateWallet     = errors.New("wallet already exists for user")
)

type WalletRepository struct {
	*pg.DB
}

func NewWalletRepository(db *pg.DB) *WalletRepository {
	return &WalletRepository{
		db,
	}
}

// Create inserts a zero-balance wallet for a user at registration time.
func (r *WalletRepository) Create(ctx context.Context, w *model.Wallet) (*model.Wallet, error) {
	entity := toWalletEntity(w)
	if entity.Currency == "" {
		entity.Currency = "NGN"
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toWalletModel(entity), nil
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	var entity WalletEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return toWalletModel(&entity), nil
}

func (r *WalletRepository) GetBalance(ctx context.Context, userID int64) (uint, error) {
	var entity WalletEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("balance").
		Where("user_id = ?", userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrWalletNotFound
		}
		return 0, err
	}
	return entity.Balance, nil
}

// Debit atomically verifies balance >= amount and decrements, with
// automatic retry on transient errors. Two concurrent debits for the
// same user cannot both succeed when only one can be covered: the
// decrement is conditional on the balance it is taken from.
func (r *WalletRepository) Debit(ctx context.Context, userID int64, amount uint) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.debitAttempt(ctx, userID, amount)

		if err == nil {
			return nil
		}

		// Don't retry on permanent errors
		if errors.Is(err, ErrWalletNotFound) ||
			errors.Is(err, ErrInsufficientBalance) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt) // 2ms, 4ms, 8ms
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *WalletRepository) debitAttempt(ctx context.Context, userID int64, amount uint) error {
	var entity WalletEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWalletNotFound
		}
		return err
	}

	if entity.Balance < amount {
		return ErrInsufficientBalance
	}

	// The balance guard in the WHERE clause keeps this correct even
	// without the row lock (sqlite in tests ignores FOR UPDATE).
	now := time.Now()
	result := r.Write(ctx).WithContext(ctx).
		Model(&WalletEntity{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":             gorm.Expr("balance - ?", amount),
			"last_transaction_at": now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// Balance moved under us between the read and the write.
		return ErrConcurrentUpdate
	}

	return nil
}

// Credit atomically increments the balance. Used both for legitimate
// funding and for orchestrator-driven refunds; it only fails when the
// wallet does not exist or the store is unavailable.
func (r *WalletRepository) Credit(ctx context.Context, userID int64, amount uint) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.creditAttempt(ctx, userID, amount)

		if err == nil {
			return nil
		}

		if errors.Is(err, ErrWalletNotFound) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *WalletRepository) creditAttempt(ctx context.Context, userID int64, amount uint) error {
	var entity WalletEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWalletNotFound
		}
		return err
	}

	now := time.Now()
	result := r.Write(ctx).WithContext(ctx).
		Model(&WalletEntity{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":             gorm.Expr("balance + ?", amount),
			"last_transaction_at": now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}

	return nil
}
