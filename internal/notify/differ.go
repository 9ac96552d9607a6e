// Package notify turns changes between consecutive crawler snapshots into
// alerts and delivers them.
package notify

import (
	"fmt"
	"sort"
	"time"

	"crawlwatch/internal/api"
	"crawlwatch/internal/history"
)

// Alert kinds
const (
	KindCrawlStatus     = "crawl_status"
	KindAccountError    = "account_error"
	KindKeywordIncrease = "keyword_increase"
)

// State is the part of a snapshot alerts are computed from. A nil map or
// empty CrawlStatus means that collection has not been observed yet.
type State struct {
	CrawlStatus string
	Accounts    map[string]string
	Keywords    map[string]int
}

// Merge returns s updated with the collections snap fetched successfully.
// Failed collections keep their previous values.
func (s State) Merge(snap *api.Snapshot) State {
	next := s
	if snap == nil {
		return next
	}
	if snap.Errors[api.CollectionStatus] == nil && snap.Status != nil {
		next.CrawlStatus = snap.Status.CrawlStatus
	}
	if snap.Errors[api.CollectionAccounts] == nil && snap.Accounts != nil {
		next.Accounts = make(map[string]string, len(snap.Accounts))
		for _, a := range snap.Accounts {
			next.Accounts[a.Username] = a.Status
		}
	}
	if snap.Errors[api.CollectionKeywords] == nil && snap.Keywords != nil {
		next.Keywords = make(map[string]int, len(snap.Keywords))
		for _, k := range snap.Keywords {
			next.Keywords[k.Keyword] = k.TotalCount
		}
	}
	return next
}

// Diff reports what changed from prev to curr. Collections prev has not
// observed produce no alerts, so the first snapshot only sets a baseline.
func Diff(prev, curr State, at time.Time) []history.Alert {
	var alerts []history.Alert

	if prev.CrawlStatus != "" && curr.CrawlStatus != "" && prev.CrawlStatus != curr.CrawlStatus {
		alerts = append(alerts, history.Alert{
			Kind:     KindCrawlStatus,
			Subject:  curr.CrawlStatus,
			Message:  fmt.Sprintf("Crawler %s (was %s)", curr.CrawlStatus, prev.CrawlStatus),
			RaisedAt: at,
		})
	}

	if prev.Accounts != nil {
		for _, name := range sortedKeys(curr.Accounts) {
			if curr.Accounts[name] != api.AccountError || prev.Accounts[name] == api.AccountError {
				continue
			}
			alerts = append(alerts, history.Alert{
				Kind:     KindAccountError,
				Subject:  name,
				Message:  fmt.Sprintf("Account %s entered error state", name),
				RaisedAt: at,
			})
		}
	}

	if prev.Keywords != nil {
		for _, kw := range sortedKeys(curr.Keywords) {
			before, now := prev.Keywords[kw], curr.Keywords[kw]
			if now <= before {
				continue
			}
			alerts = append(alerts, history.Alert{
				Kind:     KindKeywordIncrease,
				Subject:  kw,
				Message:  fmt.Sprintf("Keyword %q detected %d more time(s) (total %d)", kw, now-before, now),
				RaisedAt: at,
			})
		}
	}

	return alerts
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
