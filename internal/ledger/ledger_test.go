package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/blendlab/blendlab/internal/db"
	"github.com/blendlab/blendlab/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	// A single connection keeps the in-memory database stable under the
	// concurrency tests below.
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func createTestUser(t *testing.T, conn *gorm.DB, credits int64) uint64 {
	t.Helper()
	user := models.User{
		Username: "tester",
		Email:    "tester@example.com",
		Password: "hash",
		Credits:  credits,
		Active:   true,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return user.ID
}

func TestTryDebitSucceedsAndRecordsTransaction(t *testing.T) {
	conn := openTestDB(t)
	userID := createTestUser(t, conn, 3)
	l := New(conn)

	result, errDebit := l.TryDebit(context.Background(), userID, 1)
	if errDebit != nil {
		t.Fatalf("debit: %v", errDebit)
	}
	if !result.OK || result.Remaining != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var entry models.CreditTransaction
	if errFind := conn.Where("user_id = ?", userID).First(&entry).Error; errFind != nil {
		t.Fatalf("find transaction: %v", errFind)
	}
	if entry.Amount != -1 || entry.Reason != models.ReasonGeneration {
		t.Fatalf("unexpected transaction: %+v", entry)
	}
}

func TestTryDebitInsufficientFundsIsNotAnError(t *testing.T) {
	conn := openTestDB(t)
	userID := createTestUser(t, conn, 0)
	l := New(conn)

	result, errDebit := l.TryDebit(context.Background(), userID, 1)
	if errDebit != nil {
		t.Fatalf("debit: %v", errDebit)
	}
	if result.OK || result.Remaining != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var count int64
	if errCount := conn.Model(&models.CreditTransaction{}).Where("user_id = ?", userID).Count(&count).Error; errCount != nil {
		t.Fatalf("count transactions: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("denied debit left %d audit rows", count)
	}
}

func TestTryDebitUnknownUser(t *testing.T) {
	conn := openTestDB(t)
	l := New(conn)

	if _, errDebit := l.TryDebit(context.Background(), 9999, 1); errDebit != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", errDebit)
	}
}

func TestConcurrentTryDebitNeverOverspends(t *testing.T) {
	conn := openTestDB(t)
	const startBalance = 5
	const attempts = 20
	userID := createTestUser(t, conn, startBalance)
	l := New(conn)

	var successes atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, errDebit := l.TryDebit(context.Background(), userID, 1)
			if errDebit != nil {
				t.Errorf("debit: %v", errDebit)
				return
			}
			if result.OK {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != startBalance {
		t.Fatalf("got %d successful debits, want %d", successes.Load(), startBalance)
	}

	balance, errBalance := l.Balance(context.Background(), userID)
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if balance != 0 {
		t.Fatalf("final balance %d, want 0", balance)
	}
}

func TestCreditIncrementsAndLinksEvent(t *testing.T) {
	conn := openTestDB(t)
	userID := createTestUser(t, conn, 1)
	l := New(conn)

	if errCredit := l.Credit(context.Background(), userID, 5, models.ReasonPurchase, TxRef{EventID: "evt_123"}); errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}

	balance, errBalance := l.Balance(context.Background(), userID)
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if balance != 6 {
		t.Fatalf("balance %d, want 6", balance)
	}

	var entry models.CreditTransaction
	if errFind := conn.Where("user_id = ? AND reason = ?", userID, models.ReasonPurchase).First(&entry).Error; errFind != nil {
		t.Fatalf("find transaction: %v", errFind)
	}
	if entry.EventID == nil || *entry.EventID != "evt_123" {
		t.Fatalf("unexpected event link: %+v", entry)
	}
}

func TestDebitThenRefundNetsToZero(t *testing.T) {
	conn := openTestDB(t)
	userID := createTestUser(t, conn, 2)
	l := New(conn)
	ctx := context.Background()

	before, _ := l.Balance(ctx, userID)
	result, errDebit := l.TryDebit(ctx, userID, 1)
	if errDebit != nil || !result.OK {
		t.Fatalf("debit: %v %+v", errDebit, result)
	}
	if errCredit := l.Credit(ctx, userID, 1, models.ReasonRefund, TxRef{}); errCredit != nil {
		t.Fatalf("refund: %v", errCredit)
	}

	after, errBalance := l.Balance(ctx, userID)
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if after != before {
		t.Fatalf("balance drifted: before %d, after %d", before, after)
	}
}
