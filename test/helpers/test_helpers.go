package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/vtu-gateway/internal/repository"
	"github.com/nimasrn/vtu-gateway/internal/services"
	"github.com/nimasrn/vtu-gateway/pkg/pg"
	"github.com/nimasrn/vtu-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// One in-memory sqlite database per connection; pin the pool to a
	// single connection so every goroutine sees the same data.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&repository.UserEntity{},
		&repository.WalletEntity{},
		&repository.TransactionEntity{},
		&repository.PlanEntity{},
		&repository.ProviderEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Adapters are cached by connection name, so every test needs its
	// own name or they would all share the first miniredis instance.
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestUser(t *testing.T, db *pg.DB, id int64, pin string) *repository.UserEntity {
	ctx := context.Background()
	hash, err := services.HashPin(pin)
	require.NoError(t, err)
	user := &repository.UserEntity{
		ID:      id,
		Email:   fmt.Sprintf("user%d@example.test", id),
		PinHash: hash,
	}
	err = db.Write(ctx).Create(user).Error
	require.NoError(t, err)
	return user
}

func CreateTestWallet(t *testing.T, db *pg.DB, userID int64, balance uint) *repository.WalletEntity {
	ctx := context.Background()
	wallet := &repository.WalletEntity{
		UserID:   userID,
		Balance:  balance,
		Currency: "NGN",
	}
	err := db.Write(ctx).Create(wallet).Error
	require.NoError(t, err)
	return wallet
}

func CreateTestPlan(t *testing.T, db *pg.DB, providerCode, service, code string, price uint) *repository.PlanEntity {
	ctx := context.Background()
	plan := &repository.PlanEntity{
		ProviderCode: providerCode,
		Service:      service,
		Code:         code,
		Name:         code,
		Price:        price,
		Active:       true,
	}
	err := db.Write(ctx).Create(plan).Error
	require.NoError(t, err)
	return plan
}

func CreateTestProvider(t *testing.T, db *pg.DB, code string, priority int, supported string) *repository.ProviderEntity {
	ctx := context.Background()
	provider := &repository.ProviderEntity{
		Code:     code,
		Name:     code,
		BaseURL:  "http://" + code + ".test",
		APIKey:   "test-key-" + code,
		Priority: priority,
		Active:   true,
		Services: supported,
	}
	err := db.Write(ctx).Create(provider).Error
	require.NoError(t, err)
	return provider
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
