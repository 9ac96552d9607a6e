package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crawlwatch/internal/api"
	"crawlwatch/pkg/protocol"
)

func TestFormatKeywords_Sorted(t *testing.T) {
	assert.Equal(t, "", formatKeywords(nil))
	assert.Equal(t, "alpha:1, beta:2", formatKeywords(map[string]int{"beta": 2, "alpha": 1}))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "-", formatTimestamp(protocol.Timestamp{}, nil))

	ts := protocol.NewTimestamp(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tokyo := time.FixedZone("JST", 9*3600)
	assert.Equal(t, "2025-06-01 21:00:00", formatTimestamp(ts, tokyo))
}

func TestRecordRows_LimitAndKeywordColumn(t *testing.T) {
	records := []api.Record{
		{AccountUsername: "A", CountCurrent: 3, CountTotal: 199, KeywordsDetected: map[string]int{"k": 1}},
		{AccountUsername: "B"},
		{AccountUsername: "C"},
	}

	rows := recordRows(records, false, 2, nil)
	assert.Len(t, rows, 2)
	assert.Len(t, rows[0], len(recordColumns(false)))
	assert.Equal(t, "3/199", rows[0][8])

	rows = recordRows(records, true, 0, nil)
	assert.Len(t, rows, 3)
	assert.Len(t, rows[0], len(recordColumns(true)))
	assert.Equal(t, "k:1", rows[0][10])
}

func TestControlLabel(t *testing.T) {
	assert.Equal(t, "Start crawler", controlLabel(nil))
	assert.Equal(t, "Start crawler", controlLabel(&api.Status{CrawlStatus: "stopped"}))
	assert.Equal(t, "Stop crawler", controlLabel(&api.Status{CrawlStatus: "running"}))
	assert.Equal(t, "unknown", crawlLabel(nil))
	assert.Equal(t, "stopped", crawlLabel(&api.Status{}))
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", sparkline(nil, 10))
	assert.Equal(t, "▁▁▁", sparkline([]int{5, 5, 5}, 10))
	assert.Equal(t, "▁█", sparkline([]int{0, 10}, 10))
	assert.Equal(t, "▁█", sparkline([]int{99, 0, 10}, 2))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "3s", formatDuration(3*time.Second))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2h5m", formatDuration(2*time.Hour+5*time.Minute))
	assert.Equal(t, "1d2h", formatDuration(26*time.Hour))
}

func TestTabBar_NavigationAndUnread(t *testing.T) {
	tb := NewTabBarModel(Styles{})
	tb.MarkUnread(TabData)
	tb.MarkUnread(TabDashboard)
	assert.True(t, tb.Tabs[TabData].HasUnread)
	assert.False(t, tb.Tabs[TabDashboard].HasUnread)

	tb.Next()
	assert.Equal(t, TabData, tb.Active())
	assert.False(t, tb.Tabs[TabData].HasUnread)

	tb.Prev()
	tb.Prev()
	assert.Equal(t, TabKeywords, tb.Active())
	assert.Equal(t, TabKeywords, ParseTab("KEYWORDS"))
	assert.Equal(t, TabDashboard, ParseTab("nope"))
}
