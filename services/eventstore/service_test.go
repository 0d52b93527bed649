package eventstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"makersclub-insights/pkg/config"
	"makersclub-insights/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Event{}, &Subscription{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Pricing.DefaultPrice = 3990

	return NewService(ServiceParams{DB: db, Node: node, Config: cfg})
}

func TestIngestNewCreatesSubscription(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Ingest(ctx, Record{UserID: "u1", EventType: "new", Date: "2026-07-01"}))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Subscriptions, 1)
	require.Len(t, snap.Events, 1)

	sub := snap.Subscriptions[0]
	require.Equal(t, "u1", sub.UserID)
	require.Equal(t, StatusActive, sub.Status)
	require.Equal(t, int64(3990), sub.Amount)
	require.Nil(t, sub.EndDate)
	require.Equal(t, "2026-07-01", sub.StartDate.Format(DateLayout))
}

func TestIngestNewHonoursExplicitAmount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	amount := int64(4990)
	require.NoError(t, svc.Ingest(ctx, Record{UserID: "u1", EventType: "new", Date: "2026-07-01", Amount: &amount}))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4990), snap.Subscriptions[0].Amount)
}

func TestIngestNewOverwritesExistingRow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Ingest(ctx, Record{UserID: "u1", EventType: "new", Date: "2026-05-01"}))
	require.NoError(t, svc.Ingest(ctx, Record{UserID: "u1", EventType: "churned", Date: "2026-06-01"}))
	require.NoError(t, svc.Ingest(ctx, Record{UserID: "u1", EventType: "new", Date: "2026-07-01"}))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Subscriptions, 1, "one subscription row per user")

	sub := snap.Subscriptions[0]
	require.Equal(t, StatusActive, sub.Status)
	require.Nil(t, sub.EndDate)
	require.Equal(t, "2026-07-01", sub.StartDate.Format(DateLayout))
	require.Len(t, snap.Events, 3, "every accepted record stays in the log")
}

func TestIngestChurnedSetsEndDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Ingest(ctx, Record{UserID: "u1", EventType: "new", Date: "2026-06-01"}))
	require.NoError(t, svc.Ingest(ctx, Record{UserID: "u1", EventType: "churned", Date: "2026-07-02"}))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	sub := snap.Subscriptions[0]
	require.Equal(t, StatusChurned, sub.Status)
	require.NotNil(t, sub.EndDate)
	require.Equal(t, "2026-07-02", sub.EndDate.Format(DateLayout))
}

func TestIngestChurnedWithoutSubscriptionIsLogOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Ingest(ctx, Record{UserID: "ghost", EventType: "churned", Date: "2026-07-01"}))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Subscriptions)
	require.Len(t, snap.Events, 1)
}

func TestIngestRenewedNeverMutatesSubscription(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Ingest(ctx, Record{UserID: "u1", EventType: "new", Date: "2026-06-01"}))
	require.NoError(t, svc.Ingest(ctx, Record{UserID: "u1", EventType: "renewed", Date: "2026-07-01"}))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusActive, snap.Subscriptions[0].Status)
	require.Equal(t, "2026-06-01", snap.Subscriptions[0].StartDate.Format(DateLayout))
	require.Len(t, snap.Events, 2)
}

func TestIngestBatchSkipsInvalidRows(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	accepted, err := svc.IngestBatch(ctx, []Record{
		{UserID: "u1", EventType: "new", Date: "2026-07-01"},
		{UserID: "", EventType: "new", Date: "2026-07-01"},
		{UserID: "u2", EventType: "upgraded", Date: "2026-07-01"},
		{UserID: "u3", EventType: "new", Date: "not-a-date"},
		{UserID: "u4", EventType: "new", Date: "2026-07-02"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, accepted)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Subscriptions, 2)
	require.Len(t, snap.Events, 2)
}

func TestResetIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	batch := []Record{
		{UserID: "u1", EventType: "new", Date: "2026-06-01"},
		{UserID: "u2", EventType: "new", Date: "2026-06-03"},
		{UserID: "u1", EventType: "churned", Date: "2026-07-01"},
	}

	_, err := svc.IngestBatch(ctx, batch)
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx))
	require.NoError(t, svc.Reset(ctx))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Subscriptions)
	require.Empty(t, snap.Events)

	// Re-ingesting the same batch reproduces identical state.
	accepted, err := svc.IngestBatch(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 3, accepted)

	snap, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Subscriptions, 2)
	require.Len(t, snap.Events, 3)
}

func TestSnapshotEventsAreDateOrdered(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.IngestBatch(ctx, []Record{
		{UserID: "u2", EventType: "new", Date: "2026-07-05"},
		{UserID: "u1", EventType: "new", Date: "2026-06-01"},
		{UserID: "u3", EventType: "new", Date: "2026-06-20"},
	})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	var prev time.Time
	for _, ev := range snap.Events {
		require.False(t, ev.Date.Before(prev))
		prev = ev.Date
	}
}

func TestLoadCSVReplacesStore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Ingest(ctx, Record{UserID: "old", EventType: "new", Date: "2026-01-01"}))

	csvBody := strings.Join([]string{
		"user_id,event_type,date,amount",
		"u1,new,2026-07-01,3990",
		"u2,new,2026-07-02,",
		",new,2026-07-02,",
		"u3,bogus,2026-07-03,",
		"u2,renewed,2026-08-01,",
	}, "\n")

	accepted, err := svc.LoadCSV(ctx, strings.NewReader(csvBody))
	require.NoError(t, err)
	require.Equal(t, 3, accepted)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Subscriptions, 2)
	require.Len(t, snap.Events, 3)

	for _, sub := range snap.Subscriptions {
		require.NotEqual(t, "old", sub.UserID)
	}
}

func TestLoadCSVRequiresColumns(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.LoadCSV(context.Background(), strings.NewReader("user_id,date\nu1,2026-07-01"))
	require.Error(t, err)
}
