package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/finalert/pkg/alerts"
	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/notify"
	"github.com/ogulcanaydogan/finalert/pkg/storage/storagetest"
)

func TestCheckAlertRules_NoRules(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	result, err := mgr.CheckAlertRules(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.RulesChecked)
	assert.Empty(t, result.Triggered)
}

func TestCheckAlertRules_InactiveRulesIgnored(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	r := addRule(t, store, "inactive balance", model.AlertLowBalance, `{}`, false)

	result, err := mgr.CheckAlertRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RulesChecked)
	assert.Equal(t, 0, result.NotificationsCreated)

	got, err := store.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.TriggerCount)
	assert.Nil(t, got.LastTriggered)
	assert.Equal(t, int64(0), mgr.UnreadCount(ctx, 1))
}

func TestCheckAlertRules_OverdueInvoices(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	storagetest.InsertInvoice(t, store, "INV-1", "unpaid", start.AddDate(0, 0, -8), 500, "RWF")
	storagetest.InsertInvoice(t, store, "INV-2", "unpaid", start.AddDate(0, 0, -9), 700, "RWF")
	storagetest.InsertInvoice(t, store, "INV-3", "unpaid", start.AddDate(0, 0, -6), 900, "RWF")
	r := addRule(t, store, "overdue", model.AlertOverdueInvoice, `{"days_overdue": 7, "min_amount": 0}`, true)

	result, err := mgr.CheckAlertRules(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RulesChecked)
	assert.Equal(t, 1, result.RulesTriggered)
	assert.Equal(t, 2, result.NotificationsCreated)
	require.Len(t, result.Triggered, 1)
	assert.Len(t, result.Triggered[0].Items, 2)

	got, err := store.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TriggerCount)
	require.NotNil(t, got.LastTriggered)
	assert.True(t, got.LastTriggered.Equal(start))

	list, err := mgr.ListForUser(ctx, 5, true, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCheckAlertRules_PendingApprovalAggregate(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		storagetest.InsertPettyCash(t, store, model.PettyCashDebit, 100, "RWF", model.ApprovalPending, start.AddDate(0, 0, -4))
	}
	addRule(t, store, "pending", model.AlertPendingApproval, `{"pending_days": 2}`, true)

	result, err := mgr.CheckAlertRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotificationsCreated)

	list, err := mgr.ListForUser(ctx, 1, false, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, "5 petty cash transactions")
}

func TestCheckAlertRules_DedupWithinWindow(t *testing.T) {
	mgr, store, clk := newTestManager(t)
	ctx := context.Background()

	storagetest.InsertPettyCash(t, store, model.PettyCashCredit, 50, "RWF", model.ApprovalApproved, start)
	r := addRule(t, store, "balance", model.AlertLowBalance, `{}`, true)

	first, err := mgr.CheckAlertRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.NotificationsCreated)

	clk.Advance(time.Hour)
	second, err := mgr.CheckAlertRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.NotificationsCreated)
	assert.Equal(t, 1, second.NotificationsSuppressed)
	assert.Equal(t, 1, second.RulesTriggered)

	clk.Advance(notify.DefaultDedupWindow)
	third, err := mgr.CheckAlertRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.NotificationsCreated)

	got, err := store.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TriggerCount)
}

func TestCheckAlertRules_DedupDisabled(t *testing.T) {
	mgr, store, _ := newTestManager(t, notify.WithDedupWindow(0))
	ctx := context.Background()

	storagetest.InsertPettyCash(t, store, model.PettyCashCredit, 50, "RWF", model.ApprovalApproved, start)
	addRule(t, store, "balance", model.AlertLowBalance, `{}`, true)

	for i := 0; i < 2; i++ {
		result, err := mgr.CheckAlertRules(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.NotificationsCreated)
	}
	assert.Equal(t, int64(2), mgr.UnreadCount(ctx, 1))
}

func TestCheckAlertRules_RuleErrorDoesNotStopRun(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	storagetest.InsertPettyCash(t, store, model.PettyCashCredit, 50, "RWF", model.ApprovalApproved, start)
	storagetest.InsertPettyCash(t, store, model.PettyCashDebit, 10, "RWF", model.ApprovalPending, start.AddDate(0, 0, -5))
	broken := addRule(t, store, "broken balance", model.AlertLowBalance, `{"threshold_amount": "lots"}`, true)
	addRule(t, store, "pending", model.AlertPendingApproval, `{}`, true)

	result, err := mgr.CheckAlertRules(ctx)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.RulesChecked)
	assert.Equal(t, 1, result.RulesTriggered)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, broken.ID, result.Errors[0].RuleID)
	assert.Equal(t, "validation_error", result.Errors[0].Code())

	data, err := json.Marshal(result.Errors[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"rule_id": 1, "rule_name": "broken balance", "alert_type": "low_balance", "error": "validation_error"}`, string(data))
}

func TestCheckAlertRules_ActionDisabled(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	storagetest.InsertPettyCash(t, store, model.PettyCashCredit, 50, "RWF", model.ApprovalApproved, start)
	r := &model.AlertRule{
		Name:      "silent",
		AlertType: model.AlertLowBalance,
		Action:    []byte(`{"create_notification": false}`),
		IsActive:  true,
	}
	require.NoError(t, store.CreateRule(ctx, r))

	result, err := mgr.CheckAlertRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RulesTriggered)
	assert.Equal(t, 0, result.NotificationsCreated)

	got, err := store.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TriggerCount)
}

func TestCheckAlertRules_ListFailure(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	require.NoError(t, store.Close())

	result, err := mgr.CheckAlertRules(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsStorage(err))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.RulesChecked)
	assert.False(t, result.FinishedAt.IsZero())
}

func TestCheckAlertRules_Cancelled(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	addRule(t, store, "balance", model.AlertLowBalance, `{}`, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := mgr.CheckAlertRules(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Empty(t, result.Errors)
}

func TestCheckAlertRules_DispatchesCreatedNotifications(t *testing.T) {
	rec := &recordingNotifier{}
	dispatcher := alerts.NewDispatcher([]alerts.Notifier{rec}, model.PriorityHigh, zap.NewNop())
	mgr, store, _ := newTestManager(t, notify.WithDispatcher(dispatcher))
	ctx := context.Background()

	storagetest.InsertPettyCash(t, store, model.PettyCashCredit, 50, "RWF", model.ApprovalApproved, start)
	storagetest.InsertPettyCash(t, store, model.PettyCashDebit, 10, "RWF", model.ApprovalPending, start.AddDate(0, 0, -5))
	addRule(t, store, "balance", model.AlertLowBalance, `{}`, true)
	addRule(t, store, "pending", model.AlertPendingApproval, `{}`, true)

	_, err := mgr.CheckAlertRules(ctx)
	require.NoError(t, err)

	// Only the high priority balance alert passes the dispatcher filter.
	require.Len(t, rec.sent, 1)
	assert.Equal(t, "balance", rec.sent[0].RuleName)
	assert.Equal(t, model.AlertLowBalance, rec.sent[0].AlertType)
	assert.NotZero(t, rec.sent[0].NotificationID)

	// Suppressed duplicates are not re-sent.
	_, err = mgr.CheckAlertRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rec.sent, 1)
}

func TestDedupKey(t *testing.T) {
	window := 24 * time.Hour
	a := notify.DedupKey(1, "invoice:5", start, window)

	assert.Equal(t, a, notify.DedupKey(1, "invoice:5", start.Add(time.Hour), window))
	assert.NotEqual(t, a, notify.DedupKey(1, "invoice:6", start, window))
	assert.NotEqual(t, a, notify.DedupKey(2, "invoice:5", start, window))
	assert.NotEqual(t, a, notify.DedupKey(1, "invoice:5", start.Add(window), window))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", notify.ErrorCode(nil))
	assert.Equal(t, "validation_error", notify.ErrorCode(model.Required("title")))
	assert.Equal(t, "not_found", notify.ErrorCode(model.ErrNotFound))
	assert.Equal(t, "storage_error", notify.ErrorCode(&model.StorageError{Op: "x", Err: errors.New("disk")}))
	assert.Equal(t, "internal_error", notify.ErrorCode(errors.New("boom")))
}
