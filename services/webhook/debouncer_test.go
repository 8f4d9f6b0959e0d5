package webhook

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/logger"
)

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{DevMode: true})
	l.InitLogger()
	return l
}

func TestDebouncer_CollapsesBurst(t *testing.T) {
	var calls int32
	d := NewDebouncer(testLogger(), 50*time.Millisecond, func(ctx context.Context, userID, accountID string, trigger enum.SyncTrigger) (string, error) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, enum.TriggerWebhook, trigger)
		return "run_1", nil
	})
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Notify("user_1", "acct_1")
	}
	assert.True(t, d.Pending("acct_1"))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 10*time.Millisecond)

	// Burst of 10 produced exactly one trigger.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, d.Pending("acct_1"))
}

func TestDebouncer_PerAccountWindows(t *testing.T) {
	var calls int32
	d := NewDebouncer(testLogger(), 20*time.Millisecond, func(ctx context.Context, userID, accountID string, trigger enum.SyncTrigger) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", nil
	})
	defer d.Stop()

	d.Notify("user_1", "acct_1")
	d.Notify("user_1", "acct_2")

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestDebouncer_NewWindowAfterFire(t *testing.T) {
	var calls int32
	d := NewDebouncer(testLogger(), 20*time.Millisecond, func(ctx context.Context, userID, accountID string, trigger enum.SyncTrigger) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", nil
	})
	defer d.Stop()

	d.Notify("user_1", "acct_1")
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)

	d.Notify("user_1", "acct_1")
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 5*time.Millisecond)
}
