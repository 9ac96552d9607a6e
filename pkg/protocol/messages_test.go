package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_CrawlerUpdate(t *testing.T) {
	raw := `{"type":"crawler_update","account":"KR666","data":[{"sequence_number":1},{"sequence_number":2}],"timestamp":"2025-03-01T12:30:00.000123"}`

	msg, err := ParseMessage([]byte(raw))
	require.NoError(t, err)

	update, ok := msg.(*CrawlerUpdate)
	require.True(t, ok, "expected *CrawlerUpdate, got %T", msg)
	assert.Equal(t, TypeCrawlerUpdate, update.Type)
	assert.Equal(t, "KR666", update.Account)
	assert.Equal(t, 2, update.RecordCount())
	assert.Equal(t, time.Date(2025, 3, 1, 12, 30, 0, 123000, time.UTC), update.Timestamp.Time)
}

func TestParseMessage_OtherTypesIgnored(t *testing.T) {
	for _, raw := range []string{`{"type":"heartbeat"}`, `{}`, `{"account":"x"}`} {
		msg, err := ParseMessage([]byte(raw))
		require.NoError(t, err, raw)
		_, isUpdate := msg.(*CrawlerUpdate)
		assert.False(t, isUpdate, raw)
	}
}

func TestParseMessage_Malformed(t *testing.T) {
	for _, raw := range []string{``, `not json`, `{"type":`, `[1,2]`} {
		_, err := ParseMessage([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestParseMessage_CrawlerUpdateBadBody(t *testing.T) {
	tests := []struct {
		raw     string
		account string
		records int
	}{
		{`{"type":"crawler_update"}`, "", 0},
		{`{"type":"crawler_update","account":"a","data":{"id":1}}`, "a", 0},
		{`{"type":"crawler_update","account":42,"data":[{},{}]}`, "", 2},
		{`{"type":"crawler_update","data":"oops"}`, "", 0},
		{`{"type":"crawler_update","account":"b","timestamp":17}`, "b", 0},
	}
	for _, tt := range tests {
		msg, err := ParseMessage([]byte(tt.raw))
		require.NoError(t, err, tt.raw)
		update, ok := msg.(*CrawlerUpdate)
		require.True(t, ok, "%s: expected *CrawlerUpdate, got %T", tt.raw, msg)
		assert.Equal(t, TypeCrawlerUpdate, update.Type, tt.raw)
		assert.Equal(t, tt.account, update.Account, tt.raw)
		assert.Equal(t, tt.records, update.RecordCount(), tt.raw)
	}
}

func TestNewCrawlerUpdate_RoundTrip(t *testing.T) {
	type rec struct {
		Seq int `json:"sequence_number"`
	}
	ts := NewTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	update, err := NewCrawlerUpdate("KR777", []rec{{1}, {2}, {3}}, ts)
	require.NoError(t, err)

	data, err := json.Marshal(update)
	require.NoError(t, err)

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	parsed := msg.(*CrawlerUpdate)
	assert.Equal(t, "KR777", parsed.Account)
	assert.Equal(t, 3, parsed.RecordCount())
	assert.True(t, ts.Equal(parsed.Timestamp.Time))
}

func TestTimestamp_Lenient(t *testing.T) {
	tests := []struct {
		in   string
		zero bool
	}{
		{`"2025-01-02T03:04:05Z"`, false},
		{`"2025-01-02T03:04:05+08:00"`, false},
		{`"2025-01-02T03:04:05.999"`, false},
		{`"2025-01-02 03:04:05"`, false},
		{`null`, true},
		{`""`, true},
		{`"yesterday"`, true},
		{`12345`, true},
	}
	for _, tt := range tests {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(tt.in), &ts), tt.in)
		assert.Equal(t, tt.zero, ts.IsZero(), tt.in)
	}

	out, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
