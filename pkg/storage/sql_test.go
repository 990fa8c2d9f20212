package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/storage"
	"github.com/ogulcanaydogan/finalert/pkg/storage/storagetest"
)

var baseTime = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := storage.Open("oracle", "x")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestSQL_MigrationIdempotency(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	db1.Close()

	db2, err := storage.Open(storage.DriverSQLite, dbPath)
	require.NoError(t, err)
	assert.Equal(t, storage.DriverSQLite, db2.Dialect())
	db2.Close()
}

func TestSQL_CreateAndGetRule(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	rule := &model.AlertRule{
		Name:      "overdue",
		AlertType: model.AlertOverdueInvoice,
		Condition: datatypes.JSON(`{"days_overdue": 7}`),
		IsActive:  true,
	}
	require.NoError(t, db.CreateRule(ctx, rule))
	assert.NotZero(t, rule.ID)

	got, err := db.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "overdue", got.Name)
	assert.Equal(t, model.AlertOverdueInvoice, got.AlertType)
	assert.JSONEq(t, `{"days_overdue": 7}`, got.Condition.String())
	assert.JSONEq(t, `{}`, got.Action.String())
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastTriggered)
	assert.Equal(t, int64(0), got.TriggerCount)
}

func TestSQL_GetRule_NotFound(t *testing.T) {
	db := storagetest.NewStore(t)

	_, err := db.GetRule(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestSQL_ListActiveRules_Ordering(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	for _, r := range []*model.AlertRule{
		{Name: "pending", AlertType: model.AlertPendingApproval, IsActive: true},
		{Name: "overdue", AlertType: model.AlertOverdueInvoice, IsActive: true},
		{Name: "inactive", AlertType: model.AlertLowBalance, IsActive: false},
		{Name: "balance", AlertType: model.AlertLowBalance, IsActive: true},
	} {
		require.NoError(t, db.CreateRule(ctx, r))
	}

	active, err := db.ListActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "balance", active[0].Name)
	assert.Equal(t, "overdue", active[1].Name)
	assert.Equal(t, "pending", active[2].Name)

	all, err := db.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQL_UpsertRule_PreservesStats(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	rule := &model.AlertRule{Name: "balance", AlertType: model.AlertLowBalance, IsActive: true}
	require.NoError(t, db.UpsertRule(ctx, rule))
	require.NoError(t, db.RecordRuleTrigger(ctx, rule.ID, baseTime))

	updated := &model.AlertRule{
		Name:      "balance",
		AlertType: model.AlertLowBalance,
		Condition: datatypes.JSON(`{"threshold_amount": 500}`),
		IsActive:  false,
	}
	require.NoError(t, db.UpsertRule(ctx, updated))
	assert.Equal(t, rule.ID, updated.ID)

	got, err := db.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.JSONEq(t, `{"threshold_amount": 500}`, got.Condition.String())
	assert.Equal(t, int64(1), got.TriggerCount)
}

func TestSQL_RecordRuleTrigger(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	rule := &model.AlertRule{Name: "r", AlertType: model.AlertLowBalance, IsActive: true}
	require.NoError(t, db.CreateRule(ctx, rule))

	require.NoError(t, db.RecordRuleTrigger(ctx, rule.ID, baseTime))
	require.NoError(t, db.RecordRuleTrigger(ctx, rule.ID, baseTime.Add(time.Hour)))

	got, err := db.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TriggerCount)
	require.NotNil(t, got.LastTriggered)
	assert.True(t, got.LastTriggered.Equal(baseTime.Add(time.Hour)))

	err = db.RecordRuleTrigger(ctx, 12345, baseTime)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQL_SetRuleActive(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	rule := &model.AlertRule{Name: "r", AlertType: model.AlertLowBalance, IsActive: true}
	require.NoError(t, db.CreateRule(ctx, rule))
	require.NoError(t, db.SetRuleActive(ctx, rule.ID, false))

	active, err := db.ListActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, db.SetRuleActive(ctx, 404, true), model.ErrNotFound)
}

func TestSQL_InsertNotification_Defaults(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	n := &model.Notification{
		Type:     model.TypeAlert,
		Category: "invoice",
		Title:    "Overdue",
		Message:  "Invoice INV-1 is overdue",
	}
	inserted, err := db.InsertNotification(ctx, n)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, n.ID)

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityNormal, got.Priority)
	assert.JSONEq(t, `{}`, got.Metadata.String())
	assert.Nil(t, got.UserID)
	assert.False(t, got.IsRead)
}

func TestSQL_InsertNotification_DedupKey(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	key := "rule-1:invoice:5:bucket-1"
	first := &model.Notification{Type: model.TypeAlert, Category: "invoice", Title: "t", Message: "m", DedupKey: &key}
	second := &model.Notification{Type: model.TypeAlert, Category: "invoice", Title: "t", Message: "m", DedupKey: &key}

	inserted, err := db.InsertNotification(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = db.InsertNotification(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, second.ID)

	// Rows without a key never collide.
	for i := 0; i < 2; i++ {
		inserted, err = db.InsertNotification(ctx, &model.Notification{Type: model.TypeAlert, Category: "c", Title: "t", Message: "m"})
		require.NoError(t, err)
		assert.True(t, inserted)
	}
}

func TestSQL_ListNotifications_VisibilityAndOrder(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	mine := &model.Notification{UserID: int64Ptr(1), Type: model.TypeAlert, Category: "c", Title: "mine-low", Message: "m", Priority: model.PriorityLow, CreatedAt: baseTime}
	broadcast := &model.Notification{Type: model.TypeAlert, Category: "c", Title: "broadcast-high", Message: "m", Priority: model.PriorityHigh, CreatedAt: baseTime}
	newer := &model.Notification{UserID: int64Ptr(1), Type: model.TypeAlert, Category: "c", Title: "mine-normal-newer", Message: "m", Priority: model.PriorityNormal, CreatedAt: baseTime.Add(time.Hour)}
	older := &model.Notification{UserID: int64Ptr(1), Type: model.TypeAlert, Category: "c", Title: "mine-normal-older", Message: "m", Priority: model.PriorityNormal, CreatedAt: baseTime}
	other := &model.Notification{UserID: int64Ptr(2), Type: model.TypeAlert, Category: "c", Title: "other", Message: "m", CreatedAt: baseTime}
	expired := &model.Notification{UserID: int64Ptr(1), Type: model.TypeAlert, Category: "c", Title: "expired", Message: "m", CreatedAt: baseTime, ExpiresAt: timePtr(baseTime.Add(-time.Minute))}

	for _, n := range []*model.Notification{mine, broadcast, newer, older, other, expired} {
		_, err := db.InsertNotification(ctx, n)
		require.NoError(t, err)
	}

	list, err := db.ListNotifications(ctx, model.NotificationFilter{UserID: 1, Now: baseTime.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "broadcast-high", list[0].Title)
	assert.Equal(t, "mine-normal-newer", list[1].Title)
	assert.Equal(t, "mine-normal-older", list[2].Title)
	assert.Equal(t, "mine-low", list[3].Title)

	limited, err := db.ListNotifications(ctx, model.NotificationFilter{UserID: 1, Limit: 2, Now: baseTime.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQL_MarkRead(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	n := &model.Notification{UserID: int64Ptr(1), Type: model.TypeAlert, Category: "c", Title: "t", Message: "m"}
	_, err := db.InsertNotification(ctx, n)
	require.NoError(t, err)

	// Another user's row is untouched.
	affected, err := db.MarkRead(ctx, n.ID, 2, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	affected, err = db.MarkRead(ctx, n.ID, 1, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)
	assert.True(t, got.ReadAt.Equal(baseTime))
}

func TestSQL_MarkAllRead_CountUnread(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	for _, uid := range []*int64{int64Ptr(1), int64Ptr(1), nil, int64Ptr(2)} {
		_, err := db.InsertNotification(ctx, &model.Notification{UserID: uid, Type: model.TypeAlert, Category: "c", Title: "t", Message: "m"})
		require.NoError(t, err)
	}

	count, err := db.CountUnread(ctx, 1, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	affected, err := db.MarkAllRead(ctx, 1, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	affected, err = db.MarkAllRead(ctx, 1, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	count, err = db.CountUnread(ctx, 2, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQL_DeleteExpired(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	past := &model.Notification{Type: model.TypeAlert, Category: "c", Title: "past", Message: "m", ExpiresAt: timePtr(baseTime.Add(-time.Hour))}
	future := &model.Notification{Type: model.TypeAlert, Category: "c", Title: "future", Message: "m", ExpiresAt: timePtr(baseTime.Add(time.Hour))}
	never := &model.Notification{Type: model.TypeAlert, Category: "c", Title: "never", Message: "m"}
	for _, n := range []*model.Notification{past, future, never} {
		_, err := db.InsertNotification(ctx, n)
		require.NoError(t, err)
	}

	deleted, err := db.DeleteExpired(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = db.GetNotification(ctx, past.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = db.GetNotification(ctx, future.ID)
	assert.NoError(t, err)
	_, err = db.GetNotification(ctx, never.ID)
	assert.NoError(t, err)
}

func TestSQL_OverdueInvoices(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	later := storagetest.InsertInvoice(t, db, "INV-2", "unpaid", baseTime.AddDate(0, 0, -8), 300, "RWF")
	earlier := storagetest.InsertInvoice(t, db, "INV-1", "unpaid", baseTime.AddDate(0, 0, -20), 150, "RWF")
	storagetest.InsertInvoice(t, db, "INV-3", "unpaid", baseTime.AddDate(0, 0, -6), 500, "RWF")
	storagetest.InsertInvoice(t, db, "INV-4", "paid", baseTime.AddDate(0, 0, -30), 500, "RWF")
	storagetest.InsertInvoice(t, db, "INV-5", "unpaid", baseTime.AddDate(0, 0, -30), 0, "RWF")

	cutoff := baseTime.AddDate(0, 0, -7)
	invoices, err := db.OverdueInvoices(ctx, cutoff, 0, 50)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, earlier, invoices[0].ID)
	assert.Equal(t, later, invoices[1].ID)

	invoices, err = db.OverdueInvoices(ctx, cutoff, 200, 50)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV-2", invoices[0].InvoiceNumber)

	invoices, err = db.OverdueInvoices(ctx, cutoff, 0, 1)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestSQL_PettyCashBalance(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	balance, err := db.PettyCashBalance(ctx, "RWF")
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)

	storagetest.InsertPettyCash(t, db, model.PettyCashCredit, 15000, "RWF", model.ApprovalApproved, baseTime)
	storagetest.InsertPettyCash(t, db, model.PettyCashDebit, 5001, "RWF", model.ApprovalApproved, baseTime)
	storagetest.InsertPettyCash(t, db, model.PettyCashDebit, 9000, "RWF", model.ApprovalPending, baseTime)
	storagetest.InsertPettyCash(t, db, model.PettyCashCredit, 100, "USD", model.ApprovalApproved, baseTime)

	balance, err = db.PettyCashBalance(ctx, "RWF")
	require.NoError(t, err)
	assert.InDelta(t, 9999.0, balance, 0.001)

	balance, err = db.PettyCashBalance(ctx, "USD")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, balance, 0.001)
}

func TestSQL_PendingPettyCash(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	old := storagetest.InsertPettyCash(t, db, model.PettyCashDebit, 100, "RWF", model.ApprovalPending, baseTime.AddDate(0, 0, -3))
	storagetest.InsertPettyCash(t, db, model.PettyCashDebit, 100, "RWF", model.ApprovalPending, baseTime.AddDate(0, 0, -1))
	storagetest.InsertPettyCash(t, db, model.PettyCashDebit, 100, "RWF", model.ApprovalApproved, baseTime.AddDate(0, 0, -10))

	records, err := db.PendingPettyCash(ctx, baseTime.AddDate(0, 0, -2), 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, old, records[0].ID)
}

func TestSQL_JobLock(t *testing.T) {
	db := storagetest.NewStore(t)
	ctx := context.Background()

	ok, err := db.AcquireLock(ctx, "check", "a", baseTime, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.AcquireLock(ctx, "check", "b", baseTime.Add(30*time.Second), baseTime.Add(90*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	// Expired lease is taken over.
	ok, err = db.AcquireLock(ctx, "check", "b", baseTime.Add(2*time.Minute), baseTime.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale token cannot release the new holder.
	require.NoError(t, db.ReleaseLock(ctx, "check", "a"))
	ok, err = db.AcquireLock(ctx, "check", "c", baseTime.Add(2*time.Minute), baseTime.Add(3*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.ReleaseLock(ctx, "check", "b"))
	ok, err = db.AcquireLock(ctx, "check", "c", baseTime.Add(2*time.Minute), baseTime.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}
