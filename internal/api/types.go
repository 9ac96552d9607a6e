package api

import "crawlwatch/pkg/protocol"

// Account statuses reported by the crawler
const (
	AccountActive   = "active"
	AccountInactive = "inactive"
	AccountError    = "error"
	AccountDisabled = "disabled"
)

// Crawl statuses reported by GET /status
const (
	CrawlRunning = "running"
	CrawlStopped = "stopped"
)

// Record is one crawled row for an account
type Record struct {
	ID               string             `json:"id,omitempty"`
	AccountUsername  string             `json:"account_username"`
	SequenceNumber   int                `json:"sequence_number"`
	IP               string             `json:"ip"`
	Type             string             `json:"type"`
	Name             string             `json:"name"`
	Level            int                `json:"level"`
	Guild            string             `json:"guild"`
	Skill            string             `json:"skill"`
	CountCurrent     int                `json:"count_current"`
	CountTotal       int                `json:"count_total"`
	AccumulatedCount int                `json:"accumulated_count"`
	KeywordsDetected map[string]int     `json:"keywords_detected,omitempty"`
	TotalTime        string             `json:"total_time"`
	Status           string             `json:"status"`
	Runtime          string             `json:"runtime"`
	CrawlTimestamp   protocol.Timestamp `json:"crawl_timestamp"`
}

// KeywordHits returns the total number of keyword detections in the record
func (r Record) KeywordHits() int {
	n := 0
	for _, c := range r.KeywordsDetected {
		n += c
	}
	return n
}

// Account is a crawler login. The password is write-only and never decoded.
type Account struct {
	ID        string             `json:"id,omitempty"`
	Username  string             `json:"username"`
	Status    string             `json:"status"`
	LastCrawl protocol.Timestamp `json:"last_crawl"`
	CreatedAt protocol.Timestamp `json:"created_at"`
}

// Status mirrors the crawler's aggregate counters
type Status struct {
	TotalAccounts  int                `json:"total_accounts"`
	ActiveAccounts int                `json:"active_accounts"`
	TotalRecords   int                `json:"total_records"`
	LastUpdate     protocol.Timestamp `json:"last_update"`
	CrawlStatus    string             `json:"crawl_status"`
}

// Running reports whether the crawler scheduler is active
func (s Status) Running() bool {
	return s.CrawlStatus == CrawlRunning
}

// KeywordStat aggregates detections of a single keyword
type KeywordStat struct {
	Keyword          string             `json:"keyword"`
	TotalCount       int                `json:"total_count"`
	AccountsAffected []string           `json:"accounts_affected"`
	LastSeen         protocol.Timestamp `json:"last_seen"`
}

// AccumulationStats summarises accumulated counts across all records
type AccumulationStats struct {
	TotalAccumulated int     `json:"total_accumulated"`
	AvgAccumulated   float64 `json:"avg_accumulated"`
}

// Summary is the crawler's data overview
type Summary struct {
	TotalRecords      int               `json:"total_records"`
	RecentRecords24h  int               `json:"recent_records_24h"`
	AccumulationStats AccumulationStats `json:"accumulation_stats"`
}

// AccountPerformance is one row of the per-account performance report
type AccountPerformance struct {
	Username         string             `json:"_id"`
	TotalRecords     int                `json:"total_records"`
	TotalAccumulated int                `json:"total_accumulated"`
	TotalCurrent     int                `json:"total_current"`
	AvgCurrent       float64            `json:"avg_current"`
	KeywordsDetected int                `json:"keywords_detected"`
	LastCrawl        protocol.Timestamp `json:"last_crawl"`
}

// TestResult is returned by POST /test/{username}
type TestResult struct {
	Username   string `json:"username"`
	TestResult string `json:"test_result"`
	Message    string `json:"message,omitempty"`
}

// Succeeded reports whether the test crawl produced data
func (r TestResult) Succeeded() bool {
	return r.TestResult == "success"
}

// Credentials are submitted when adding an account
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ActionResult is the generic acknowledgement returned by control endpoints
type ActionResult struct {
	Message string `json:"message"`
}
