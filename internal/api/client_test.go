package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURLs(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "localhost:8001", "http://"} {
		_, err := NewClient(raw)
		assert.Error(t, err, raw)
	}

	c, err := NewClient("https://crawler.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://crawler.example.com", c.BaseURL())
}

func TestRecords_OmitsEmptyFilters(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/crawler/data", r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[{"account_username":"KR666","sequence_number":1,"count_current":7,"crawl_timestamp":"2025-01-02T03:04:05.123456"}]`))
	})

	records, err := c.Records(context.Background(), Filters{Status: "", Keyword: "x"})
	require.NoError(t, err)
	assert.Equal(t, "keyword=x", gotQuery)
	require.Len(t, records, 1)
	assert.Equal(t, "KR666", records[0].AccountUsername)
	assert.Equal(t, 7, records[0].CountCurrent)
	assert.Equal(t, 2025, records[0].CrawlTimestamp.Year())
}

func TestStatus_MirrorsResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/crawler/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"crawl_status":"running","total_accounts":5,"active_accounts":3,"total_records":120,"last_update":null}`))
	})

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, st.TotalAccounts)
	assert.Equal(t, 3, st.ActiveAccounts)
	assert.Equal(t, 120, st.TotalRecords)
	assert.True(t, st.Running())
	assert.True(t, st.LastUpdate.IsZero())
}

func TestControlEndpoints(t *testing.T) {
	type call struct{ method, path string }
	var calls []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.EscapedPath()})
		switch r.URL.Path {
		case "/api/crawler/test/KR 1":
			_, _ = w.Write([]byte(`{"test_result":"success","message":"Test completed"}`))
		case "/api/crawler/accounts/validate":
			var creds Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, Credentials{Username: "new", Password: "pw"}, creds)
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		default:
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		}
	})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.EnableAll(ctx))
	require.NoError(t, c.DisableAll(ctx))
	require.NoError(t, c.ToggleAccount(ctx, Account{Username: "a", Status: AccountDisabled}))
	require.NoError(t, c.ToggleAccount(ctx, Account{Username: "b", Status: AccountActive}))
	require.NoError(t, c.AddAccount(ctx, Credentials{Username: "new", Password: "pw"}))
	require.NoError(t, c.DeleteAccount(ctx, "gone"))
	res, err := c.TestAccount(ctx, "KR 1")
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "KR 1", res.Username)

	assert.Equal(t, []call{
		{"POST", "/api/crawler/start"},
		{"POST", "/api/crawler/stop"},
		{"POST", "/api/crawler/accounts/batch/enable"},
		{"POST", "/api/crawler/accounts/batch/disable"},
		{"POST", "/api/crawler/accounts/a/enable"},
		{"POST", "/api/crawler/accounts/b/disable"},
		{"POST", "/api/crawler/accounts/validate"},
		{"DELETE", "/api/crawler/accounts/gone"},
		{"POST", "/api/crawler/test/KR%201"},
	}, calls)
}

func TestAddAccount_RequiresBothFields(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	assert.Error(t, c.AddAccount(context.Background(), Credentials{Username: "only"}))
	assert.Error(t, c.AddAccount(context.Background(), Credentials{Password: "only"}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestExport_ReturnsRawCSV(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/crawler/data/export", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("include_keywords"))
		assert.Equal(t, "false", r.URL.Query().Get("include_accumulated"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("account,count\nKR666,7\n"))
	})

	data, err := c.Export(context.Background(), ExportOptions{IncludeKeywords: true})
	require.NoError(t, err)
	assert.Equal(t, "account,count\nKR666,7\n", string(data))
}

func TestErrors_CarryDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/crawler/start":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"scheduler already running"}`))
		case "/api/crawler/data/export":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"No data found"}`))
		default:
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html><head><title>502 Bad Gateway</title></head><body><h1>502</h1></body></html>`))
		}
	})
	ctx := context.Background()

	err := c.Start(ctx)
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "scheduler already running", Detail(err))

	_, err = c.Export(ctx, DefaultExportOptions())
	assert.True(t, IsNotFound(err))

	_, err = c.Accounts(ctx)
	require.Error(t, err)
	assert.Equal(t, "502 Bad Gateway", Detail(err))
}

func TestExtractDetail_ValidationErrors(t *testing.T) {
	body := []byte(`{"detail":[{"loc":["body","password"],"msg":"field required"}]}`)
	assert.Equal(t, "password: field required", extractDetail("application/json", body))
	assert.Equal(t, "plain failure", extractDetail("text/plain", []byte("plain failure\n")))
	assert.Equal(t, "", extractDetail("", nil))
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	_, err = c.Status(context.Background())
	assert.Error(t, err)
}
