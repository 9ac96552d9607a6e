// Package fakebackend emulates the crawler service's REST API and push
// channel over in-memory data. It backs the dev-server command and tests.
package fakebackend

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"crawlwatch/internal/api"
	"crawlwatch/pkg/protocol"
)

// maxRecords caps GET /data like the crawler does
const maxRecords = 1000

// DefaultAccounts are created on first start when no accounts exist
var DefaultAccounts = []string{"KR666", "KR777", "KR888", "KR999", "KR000"}

// Server is an in-memory crawler service
type Server struct {
	store  *store
	hub    *hub
	router *mux.Router
	gen    *generator

	faultMu sync.RWMutex
	faults  map[string]int
}

// Option configures a Server
type Option func(*Server)

// WithClock overrides time.Now for deterministic timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.store.now = now
	}
}

// WithSeed makes generated records deterministic
func WithSeed(seed int64) Option {
	return func(s *Server) {
		s.gen = newGenerator(seed)
	}
}

// New creates a server and starts its push hub. Call Close when done.
func New(opts ...Option) *Server {
	s := &Server{
		store:  newStore(time.Now),
		hub:    newHub(),
		gen:    newGenerator(time.Now().UnixNano()),
		faults: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	go s.hub.run()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.faultMiddleware)

	c := r.PathPrefix(api.PathPrefix).Subrouter()
	c.HandleFunc("/ws", s.hub.serveWS)
	c.HandleFunc("/data", s.handleRecords).Methods("GET")
	c.HandleFunc("/data/export", s.handleExport).Methods("GET")
	c.HandleFunc("/data/keywords", s.handleKeywords).Methods("GET")
	c.HandleFunc("/data/summary", s.handleSummary).Methods("GET")
	c.HandleFunc("/data/accounts-performance", s.handlePerformance).Methods("GET")
	c.HandleFunc("/status", s.handleStatus).Methods("GET")
	c.HandleFunc("/start", s.handleStart).Methods("POST")
	c.HandleFunc("/stop", s.handleStop).Methods("POST")
	c.HandleFunc("/accounts", s.handleAccounts).Methods("GET")
	c.HandleFunc("/accounts/validate", s.handleValidate).Methods("POST")
	c.HandleFunc("/accounts/batch/{action:enable|disable}", s.handleBatch).Methods("POST")
	c.HandleFunc("/accounts/{username}/{action:enable|disable}", s.handleToggle).Methods("POST")
	c.HandleFunc("/accounts/{username}", s.handleDelete).Methods("DELETE")
	c.HandleFunc("/test/{username}", s.handleTest).Methods("POST")
	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close disconnects stream clients and stops the hub
func (s *Server) Close() {
	s.hub.close()
}

// Fail makes every request to path (relative to /api/crawler) answer with
// status until ClearFaults
func (s *Server) Fail(path string, status int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[api.PathPrefix+path] = status
}

// ClearFaults removes all injected failures
func (s *Server) ClearFaults() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = make(map[string]int)
}

// DropStreams abruptly disconnects every push channel client
func (s *Server) DropStreams() {
	s.hub.dropAll()
}

// StreamClients returns the number of connected push channel clients
func (s *Server) StreamClients() int {
	return s.hub.clientCount()
}

// SeedAccounts creates the default accounts if none exist
func (s *Server) SeedAccounts() {
	if len(s.store.listAccounts()) > 0 {
		return
	}
	for _, name := range DefaultAccounts {
		_, _ = s.store.addAccount(name, "changeme", api.AccountInactive)
	}
}

// SetRunning flips the crawler state without going through the API
func (s *Server) SetRunning(running bool) {
	s.store.setRunning(running)
}

// AddAccount creates an account directly, bypassing validation
func (s *Server) AddAccount(username, status string) error {
	_, err := s.store.addAccount(username, "changeme", status)
	return err
}

// Ingest stores records for username and broadcasts a crawler_update
func (s *Server) Ingest(username string, records ...api.Record) []api.Record {
	stored := s.store.addRecords(username, records)
	s.broadcastUpdate(username, stored)
	return stored
}

// Publish sends a raw frame to every push channel client
func (s *Server) Publish(frame []byte) {
	s.hub.publish(frame)
}

func (s *Server) broadcastUpdate(username string, records []api.Record) {
	update, err := protocol.NewCrawlerUpdate(username, records, protocol.NewTimestamp(s.store.now()))
	if err != nil {
		log.Printf("[FakeBackend] Failed to build update: %v", err)
		return
	}
	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("[FakeBackend] Failed to marshal update: %v", err)
		return
	}
	s.hub.publish(data)
}

func (s *Server) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.faultMu.RLock()
		status, ok := s.faults[r.URL.Path]
		s.faultMu.RUnlock()
		if ok {
			writeDetail(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[FakeBackend] Failed to encode response: %v", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, api.ActionResult{Message: msg})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	f := api.FiltersFromValues(r.URL.Query())
	writeJSON(w, http.StatusOK, s.store.queryRecords(f, maxRecords))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.status())
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.listAccounts())
}

func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.keywordStats())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.summary())
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.performance())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.SeedAccounts()
	s.store.setRunning(true)
	writeMessage(w, "Crawler started successfully")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.store.setRunning(false)
	writeMessage(w, "Crawler stopped successfully")
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		writeDetail(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if len(creds.Password) < 6 {
		writeDetail(w, http.StatusBadRequest, "Login validation failed")
		return
	}
	acct, err := s.store.addAccount(creds.Username, creds.Password, api.AccountInactive)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Account already exists")
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	status := api.AccountInactive
	if mux.Vars(r)["action"] == "disable" {
		status = api.AccountDisabled
	}
	n := s.store.setAllStatus(status)
	writeMessage(w, fmt.Sprintf("Updated %d accounts", n))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	status := api.AccountInactive
	if vars["action"] == "disable" {
		status = api.AccountDisabled
	}
	if !s.store.setAccountStatus(vars["username"], status) {
		writeDetail(w, http.StatusNotFound, "Account not found")
		return
	}
	writeMessage(w, fmt.Sprintf("Account %sd", vars["action"]))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.store.deleteAccount(mux.Vars(r)["username"]) {
		writeDetail(w, http.StatusNotFound, "Account not found")
		return
	}
	writeMessage(w, "Account deleted successfully")
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	acct, ok := s.store.account(username)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Account not found")
		return
	}

	result := api.TestResult{Username: username, TestResult: "failed", Message: "Test completed"}
	if acct.Status != api.AccountDisabled {
		s.Ingest(username, s.gen.batch(username)...)
		result.TestResult = "success"
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeKeywords := parseBool(q.Get("include_keywords"), true)
	includeAccumulated := parseBool(q.Get("include_accumulated"), true)

	records := s.store.queryRecords(api.Filters{AccountUsername: q.Get("account_username")}, 10000)
	if len(records) == 0 {
		writeDetail(w, http.StatusNotFound, "No data found")
		return
	}

	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	cw := csv.NewWriter(&buf)

	header := []string{"账号", "序号", "IP", "类型", "命名", "等级", "门派", "绝技", "次数", "总时间", "状态", "运行时间", "爬取时间"}
	if includeAccumulated {
		header = append(header, "累计次数")
	}
	if includeKeywords {
		header = append(header, "关键词")
	}
	_ = cw.Write(header)

	for _, rec := range records {
		row := []string{
			rec.AccountUsername,
			strconv.Itoa(rec.SequenceNumber),
			rec.IP,
			rec.Type,
			rec.Name,
			strconv.Itoa(rec.Level),
			rec.Guild,
			rec.Skill,
			fmt.Sprintf("%d/%d", rec.CountCurrent, rec.CountTotal),
			rec.TotalTime,
			rec.Status,
			rec.Runtime,
			rec.CrawlTimestamp.Format("2006-01-02 15:04:05"),
		}
		if includeAccumulated {
			row = append(row, strconv.Itoa(rec.AccumulatedCount))
		}
		if includeKeywords {
			row = append(row, formatKeywords(rec.KeywordsDetected))
		}
		_ = cw.Write(row)
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=crawler_data.csv")
	_, _ = w.Write(buf.Bytes())
}

func formatKeywords(kw map[string]int) string {
	if len(kw) == 0 {
		return ""
	}
	parts := make([]string, 0, len(kw))
	for _, k := range sortedKeys(kw) {
		parts = append(parts, fmt.Sprintf("%s:%d", k, kw[k]))
	}
	return strings.Join(parts, ";")
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
