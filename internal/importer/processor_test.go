package importer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/autofix"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/batch"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/client"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// creatorFunc adapts a function to autofix.Creator and counts calls
type creatorFunc struct {
	fn    func(t entity.Type, r *row.Row) client.Result
	calls int32
}

func (c *creatorFunc) CreateRecord(_ context.Context, t entity.Type, r *row.Row) client.Result {
	atomic.AddInt32(&c.calls, 1)
	return c.fn(t, r)
}

func (c *creatorFunc) Calls() int { return int(atomic.LoadInt32(&c.calls)) }

func alwaysOK() *creatorFunc {
	return &creatorFunc{fn: func(entity.Type, *row.Row) client.Result {
		return client.Result{Success: true, StatusCode: 200, Data: json.RawMessage(`{"data":{}}`), ResponseTimeMs: 5}
	}}
}

func newProcessor(store batch.Store, creator autofix.Creator) *Processor {
	return NewProcessor(store, creator, autofix.New(creator), ProcessorOptions{MaxRetries: 3})
}

func stage(t *testing.T, store batch.Store, et entity.Type, rows ...*row.Row) *batch.Batch {
	t.Helper()
	b := &batch.Batch{Filename: "upload.xlsx", EntityType: et, RecordCount: len(rows), Rows: rows}
	require.NoError(t, store.CreateBatch(context.Background(), b))
	return b
}

func assertCounts(t *testing.T, logs []*batch.LogEntry) {
	t.Helper()
	for _, e := range logs {
		assert.Equal(t, e.RecordCount, e.SuccessCount+e.FailureCount, "log %s", e.ID)
	}
}

func TestProcessCompletesWhenAllRowsSucceed(t *testing.T) {
	ctx := context.Background()
	store := batch.NewMemoryStore()
	b := stage(t, store, entity.Item,
		row.FromPairs("item_code", "A"), row.FromPairs("item_code", "B"), row.FromPairs("item_code", "C"))
	creator := alwaysOK()

	require.NoError(t, newProcessor(store, creator).Process(ctx, b.ID))

	got, err := store.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.Errors)
	assert.Equal(t, 3, creator.Calls())

	logs, err := store.LogsForBatch(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assertCounts(t, logs)
	for _, e := range logs[:3] {
		assert.Equal(t, 1, e.RecordCount)
		assert.Equal(t, batch.LogSuccess, e.Status)
		assert.Equal(t, "/api/resource/Item", e.Endpoint)
		assert.Equal(t, "POST", e.Method)
	}
	summary := logs[3]
	assert.Equal(t, 3, summary.RecordCount)
	assert.Equal(t, 3, summary.SuccessCount)
	assert.Equal(t, batch.LogSuccess, summary.Status)
	assert.JSONEq(t, `{"summary":"Processed 3 records"}`, string(summary.RemoteResponse))
}

func TestProcessInvalidDateRowFailsBatch(t *testing.T) {
	ctx := context.Background()
	store := batch.NewMemoryStore()
	b := stage(t, store, entity.SalesOrder,
		row.FromPairs("customer", "C1", "delivery_date", "2025-10-31", "item_code", "I", "qty", 1, "rate", 1),
		row.FromPairs("customer", "BAD", "delivery_date", "2025-10-31", "item_code", "I", "qty", 1, "rate", 1),
		row.FromPairs("customer", "C3", "delivery_date", "2025-10-31", "item_code", "I", "qty", 1, "rate", 1),
	)
	creator := &creatorFunc{fn: func(_ entity.Type, r *row.Row) client.Result {
		if v, _ := r.Get("customer"); v.Text() == "BAD" {
			return client.Result{Error: "Invalid date format", StatusCode: 417}
		}
		return client.Result{Success: true}
	}}

	require.NoError(t, newProcessor(store, creator).Process(ctx, b.ID))

	// one call per good row, one initial call plus three retries for the bad row
	assert.Equal(t, 6, creator.Calls())

	got, _ := store.GetBatch(ctx, b.ID)
	assert.Equal(t, batch.StatusFailed, got.Status)
	require.Len(t, got.Errors, 1)
	f := got.Errors[0]
	assert.Equal(t, 3, f.Row)
	assert.True(t, f.AutoFixAttempted)
	assert.Equal(t, "Auto-fix failed after 3 attempts. Last error: Invalid date format", f.Error)
	assert.Len(t, f.FixesApplied, 3)

	logs, _ := store.LogsForBatch(ctx, b.ID)
	require.Len(t, logs, 4)
	assertCounts(t, logs)
	assert.Equal(t, batch.LogSuccess, logs[0].Status)
	assert.Equal(t, batch.LogFailed, logs[1].Status)
	require.Len(t, logs[1].Errors, 1)
	assert.Equal(t, 3, logs[1].Errors[0].Row)
	assert.True(t, logs[1].Errors[0].AutoFixAttempted)

	summary := logs[3]
	assert.Equal(t, batch.LogFailed, summary.Status)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 3, summary.Errors[0].Row)
}

func TestProcessRecordsAutoFixOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := batch.NewMemoryStore()
	b := stage(t, store, entity.Customer, row.FromPairs("customer_name", "Acme", "customer_type", "Company"))
	creator := &creatorFunc{fn: func(_ entity.Type, r *row.Row) client.Result {
		if !r.Has("territory") {
			return client.Result{Error: "field 'territory' is mandatory"}
		}
		return client.Result{Success: true, Data: json.RawMessage(`{"data":{"name":"Acme"}}`)}
	}}

	require.NoError(t, newProcessor(store, creator).Process(ctx, b.ID))

	got, _ := store.GetBatch(ctx, b.ID)
	assert.Equal(t, batch.StatusCompleted, got.Status)

	logs, _ := store.LogsForBatch(ctx, b.ID)
	require.Len(t, logs, 2)
	rowLog := logs[0]
	assert.Equal(t, batch.LogSuccess, rowLog.Status)
	assert.Equal(t, 1, rowLog.SuccessCount)
	require.Len(t, rowLog.Errors, 1)
	assert.Equal(t, "territory", rowLog.Errors[0].Field)
	assert.Equal(t, 2, rowLog.Errors[0].Row)
	assert.Equal(t, []string{autofix.DescMandatoryDefaults}, rowLog.Errors[0].FixesApplied)
	assert.JSONEq(t, `{"data":{"name":"Acme"}}`, string(rowLog.RemoteResponse))
}

func TestProcessRowPanicIsRowFailure(t *testing.T) {
	ctx := context.Background()
	store := batch.NewMemoryStore()
	b := stage(t, store, entity.Item, row.FromPairs("item_code", "A"), row.FromPairs("item_code", "B"))
	creator := &creatorFunc{fn: func(_ entity.Type, r *row.Row) client.Result {
		if v, _ := r.Get("item_code"); v.Text() == "A" {
			panic("nil map write")
		}
		return client.Result{Success: true}
	}}

	require.NoError(t, newProcessor(store, creator).Process(ctx, b.ID))

	got, _ := store.GetBatch(ctx, b.ID)
	assert.Equal(t, batch.StatusFailed, got.Status)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, 2, got.Errors[0].Row)
	assert.Equal(t, "nil map write", got.Errors[0].Error)

	logs, _ := store.LogsForBatch(ctx, b.ID)
	require.Len(t, logs, 3)
	assertCounts(t, logs)
	assert.Equal(t, batch.LogFailed, logs[0].Status)
	assert.Equal(t, batch.LogSuccess, logs[1].Status)
}

// rowLogFailingStore rejects per-row logs after the first one
type rowLogFailingStore struct {
	*batch.MemoryStore
	rowLogs int32
}

func (s *rowLogFailingStore) AppendLog(ctx context.Context, e *batch.LogEntry) error {
	if e.RecordCount == 1 && atomic.AddInt32(&s.rowLogs, 1) > 1 {
		return errors.New("disk full")
	}
	return s.MemoryStore.AppendLog(ctx, e)
}

func TestProcessFatalFaultFailsBatch(t *testing.T) {
	ctx := context.Background()
	store := &rowLogFailingStore{MemoryStore: batch.NewMemoryStore()}
	b := stage(t, store, entity.Item,
		row.FromPairs("item_code", "A"), row.FromPairs("item_code", "B"), row.FromPairs("item_code", "C"))

	err := newProcessor(store, alwaysOK()).Process(ctx, b.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	got, _ := store.GetBatch(ctx, b.ID)
	assert.Equal(t, batch.StatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)

	logs, _ := store.LogsForBatch(ctx, b.ID)
	require.Len(t, logs, 2)
	summary := logs[1]
	assert.Equal(t, 3, summary.RecordCount)
	assert.Equal(t, 3, summary.FailureCount)
	assert.Equal(t, 0, summary.SuccessCount)
	assert.Equal(t, batch.LogFailed, summary.Status)
	require.Len(t, summary.Errors, 1)
	assert.True(t, strings.HasPrefix(summary.Errors[0].Message, "Overall processing failed: "))
}

func TestProcessUnknownBatch(t *testing.T) {
	err := newProcessor(batch.NewMemoryStore(), alwaysOK()).Process(context.Background(), "nope")
	assert.True(t, errors.Is(err, batch.ErrNotFound))
}

func TestProcessRowNumbersMatchSpreadsheet(t *testing.T) {
	ctx := context.Background()
	store := batch.NewMemoryStore()
	var rows []*row.Row
	for i := 0; i < 5; i++ {
		rows = append(rows, row.FromPairs("item_code", "X"))
	}
	b := stage(t, store, entity.Item, rows...)
	failing := &creatorFunc{fn: func(entity.Type, *row.Row) client.Result {
		return client.Result{Error: "Internal server error"}
	}}

	require.NoError(t, newProcessor(store, failing).Process(ctx, b.ID))

	got, _ := store.GetBatch(ctx, b.ID)
	require.Len(t, got.Errors, 5)
	for i, f := range got.Errors {
		assert.Equal(t, i+2, f.Row)
	}
	// no strategy matches, so no retries
	assert.Equal(t, 5, failing.Calls())
}

func TestPoolRunsQueuedBatchesAndRecovers(t *testing.T) {
	ctx := context.Background()
	store := batch.NewMemoryStore()
	queue := NewQueue(10, nil)
	processor := newProcessor(store, alwaysOK())
	pool := NewPool(queue, store, processor, 2, nil)

	stuck := stage(t, store, entity.Item, row.FromPairs("item_code", "A"))
	require.NoError(t, store.UpdateStatus(ctx, stuck.ID, batch.StatusProcessing))
	pending := stage(t, store, entity.Item, row.FromPairs("item_code", "B"))

	require.NoError(t, pool.Recover(ctx))
	assert.Equal(t, 1, queue.Len())

	got, _ := store.GetBatch(ctx, stuck.ID)
	assert.Equal(t, batch.StatusFailed, got.Status)

	runCtx, cancel := context.WithCancel(ctx)
	pool.Start(runCtx)

	require.Eventually(t, func() bool {
		b, err := store.GetBatch(ctx, pending.ID)
		return err == nil && b.Status == batch.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	assert.NoError(t, pool.Wait(waitCtx))
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Enqueue("a"))
	assert.ErrorIs(t, q.Enqueue("b"), ErrQueueFull)

	id, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
