package history

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlwatch/internal/api"
	"crawlwatch/pkg/protocol"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordStatus_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		st := api.Status{CrawlStatus: api.CrawlRunning, TotalAccounts: 5, ActiveAccounts: 3, TotalRecords: 100 + i*10}
		require.NoError(t, store.RecordStatus(ctx, st, "periodic", base.Add(time.Duration(i)*time.Minute)))
	}

	snaps, err := store.RecentSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, 120, snaps[0].TotalRecords)
	assert.True(t, snaps[0].ObservedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, "periodic", snaps[0].Source)
	assert.Equal(t, []int{100, 110, 120}, RecordsTrend(snaps))

	limited, err := store.RecentSnapshots(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordPush(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	received := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	update := &protocol.CrawlerUpdate{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeCrawlerUpdate,
			Timestamp: protocol.NewTimestamp(received.Add(-time.Second)),
		},
		Account: "KR666",
		Data:    []json.RawMessage{json.RawMessage(`{}`), json.RawMessage(`{}`)},
	}
	require.NoError(t, store.RecordPush(ctx, update, received))
	require.NoError(t, store.RecordPush(ctx, &protocol.CrawlerUpdate{Account: "KR777"}, received.Add(time.Minute)))
	require.NoError(t, store.RecordPush(ctx, nil, received))

	events, err := store.RecentPushEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "KR777", events[0].Account)
	assert.True(t, events[0].EventTime.IsZero())
	assert.Equal(t, 2, events[1].RecordCount)
	assert.True(t, events[1].EventTime.Equal(received.Add(-time.Second)))

	counts, err := store.PushCountsSince(ctx, received)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"KR666": 2, "KR777": 0}, counts)
}

func TestAlerts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordAlert(ctx, Alert{Kind: "crawl_status", Message: "Crawler stopped"})
	require.NoError(t, err)
	require.NoError(t, store.MarkDelivered(ctx, id))

	alerts, err := store.RecentAlerts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Delivered)
	assert.False(t, alerts[0].RaisedAt.IsZero())
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	st := api.Status{CrawlStatus: api.CrawlStopped}
	require.NoError(t, store.RecordStatus(ctx, st, "", now.Add(-48*time.Hour)))
	require.NoError(t, store.RecordStatus(ctx, st, "", now.Add(-time.Hour)))
	require.NoError(t, store.RecordPush(ctx, &protocol.CrawlerUpdate{Account: "a"}, now.Add(-72*time.Hour)))
	_, err := store.RecordAlert(ctx, Alert{Kind: "k", Message: "m", RaisedAt: now.Add(-30 * time.Hour)})
	require.NoError(t, err)

	res, err := store.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Total())

	res, err = store.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{Snapshots: 1, PushEvents: 1, Alerts: 1}, res)

	snaps, err := store.RecentSnapshots(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}
