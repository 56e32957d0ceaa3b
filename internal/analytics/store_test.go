package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swcstudio/fieldctl/internal/testutil/testlog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/analytics.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSummarize(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	rows := []RequestRow{
		{RequestID: "r1", SessionID: "s1", Type: "field_interaction", Priority: "high", EdgeID: "edge-1", DurationMS: 10, Success: true, CreatedAt: now},
		{RequestID: "r2", SessionID: "s1", Type: "inference", Priority: "critical", EdgeID: "edge-1", DurationMS: 30, Success: false, CreatedAt: now},
		{RequestID: "r3", SessionID: "s2", Type: "field_interaction", Priority: "low", EdgeID: "edge-1", DurationMS: 20, Success: true, CreatedAt: now.Add(-2 * time.Hour)},
	}
	for _, row := range rows {
		require.NoError(t, store.InsertRequest(ctx, row))
	}
	require.NoError(t, store.InsertError(ctx, ErrorRow{Code: "DOWNSTREAM", Message: "inference unavailable", CreatedAt: now}))

	summary, err := store.Summarize(ctx, now.Add(-time.Hour), "")
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.TotalRequests)
	require.EqualValues(t, 1, summary.Succeeded)
	require.EqualValues(t, 1, summary.Failed)
	require.EqualValues(t, 1, summary.ByType["field_interaction"])
	require.EqualValues(t, 1, summary.ByType["inference"])
	require.EqualValues(t, 1, summary.ByPriority["critical"])
	require.EqualValues(t, 1, summary.ErrorCount)
}

func TestSummarizeMetricFilter(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now()
	require.NoError(t, store.InsertRequest(ctx, RequestRow{RequestID: "r1", Type: "inference", Priority: "low", EdgeID: "edge-1", Success: true, CreatedAt: now}))
	require.NoError(t, store.InsertRequest(ctx, RequestRow{RequestID: "r2", Type: "pipeline", Priority: "low", EdgeID: "edge-1", Success: true, CreatedAt: now}))

	summary, err := store.Summarize(ctx, now.Add(-time.Minute), "inference")
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.TotalRequests)
	require.EqualValues(t, 1, summary.ByType["inference"])
	require.Zero(t, summary.ByType["pipeline"])
}
