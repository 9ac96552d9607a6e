package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiltersValues(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    url.Values
	}{
		{"empty", Filters{}, url.Values{}},
		{"blank status dropped", Filters{Status: "", Keyword: "x"}, url.Values{"keyword": {"x"}}},
		{"whitespace dropped", Filters{Guild: "   ", MinCount: " 5 "}, url.Values{"min_count": {"5"}}},
		{
			"all set",
			Filters{AccountUsername: "KR666", Keyword: "k", Status: "在线", Guild: "g", MinCount: "1", MaxCount: "9"},
			url.Values{
				"account_username": {"KR666"},
				"keyword":          {"k"},
				"status":           {"在线"},
				"guild":            {"g"},
				"min_count":        {"1"},
				"max_count":        {"9"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filters.Values())
		})
	}

	assert.True(t, Filters{Status: " "}.IsZero())
	assert.Equal(t, Filters{Keyword: "x", MaxCount: "3"}, FiltersFromValues(url.Values{"keyword": {"x"}, "max_count": {"3"}}))
}

func TestFiltersMatch(t *testing.T) {
	rec := Record{
		AccountUsername:  "KR666",
		Status:           "online",
		Guild:            "Shaolin",
		CountCurrent:     5,
		KeywordsDetected: map[string]int{"no-money": 2},
	}

	assert.True(t, Filters{}.Match(rec))
	assert.True(t, Filters{AccountUsername: "KR666", Guild: "Shao", Keyword: "no-money", MinCount: "5", MaxCount: "5"}.Match(rec))
	assert.False(t, Filters{AccountUsername: "KR777"}.Match(rec))
	assert.False(t, Filters{Status: "offline"}.Match(rec))
	assert.False(t, Filters{Keyword: "face-check"}.Match(rec))
	assert.False(t, Filters{MinCount: "6"}.Match(rec))
	assert.False(t, Filters{MaxCount: "4"}.Match(rec))
	assert.True(t, Filters{MinCount: "abc"}.Match(rec))
	assert.Equal(t, 2, rec.KeywordHits())
}

func TestFetchAll_FailuresAreIndependent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/crawler/data":
			_, _ = w.Write([]byte(`[{"account_username":"a"},{"account_username":"b"}]`))
		case "/api/crawler/status":
			_, _ = w.Write([]byte(`{"crawl_status":"stopped","total_accounts":2}`))
		case "/api/crawler/accounts":
			w.WriteHeader(http.StatusInternalServerError)
		case "/api/crawler/data/keywords":
			_, _ = w.Write([]byte(`[{"keyword":"k","total_count":3,"accounts_affected":["a"]}]`))
		case "/api/crawler/data/summary":
			_, _ = w.Write([]byte(`{"total_records":2,"recent_records_24h":1,"accumulation_stats":{"total_accumulated":10,"avg_accumulated":5}}`))
		case "/api/crawler/data/accounts-performance":
			_, _ = w.Write([]byte(`not json`))
		}
	})

	snap := c.FetchAll(context.Background(), Filters{})
	assert.False(t, snap.OK())
	require.Len(t, snap.Errors, 2)
	assert.Contains(t, snap.Errors, CollectionAccounts)
	assert.Contains(t, snap.Errors, CollectionPerformance)
	assert.Error(t, snap.Err())

	assert.Len(t, snap.Records, 2)
	require.NotNil(t, snap.Status)
	assert.Equal(t, CrawlStopped, snap.Status.CrawlStatus)
	assert.Len(t, snap.Keywords, 1)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 10, snap.Summary.AccumulationStats.TotalAccumulated)
	assert.Nil(t, snap.Accounts)
	assert.False(t, snap.FetchedAt.IsZero())
}
