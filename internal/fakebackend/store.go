package fakebackend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"crawlwatch/internal/api"
	"crawlwatch/pkg/protocol"
)

// DefaultKeywords are the phrases the crawler watches for in record fields
var DefaultKeywords = []string{"人脸提示", "没钱了", "掉线", "封号"}

type account struct {
	api.Account
	password string
}

// lastSeen tracks the previous reading of one row for accumulation
type lastSeen struct {
	countCurrent int
	accumulated  int
}

// store is the in-memory crawler state
type store struct {
	mu       sync.RWMutex
	accounts []*account
	records  []api.Record
	last     map[string]lastSeen
	running  bool
	keywords []string
	nextID   int
	now      func() time.Time
}

func newStore(now func() time.Time) *store {
	return &store{
		last:     make(map[string]lastSeen),
		keywords: append([]string(nil), DefaultKeywords...),
		now:      now,
	}
}

func (s *store) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *store) findLocked(username string) *account {
	for _, a := range s.accounts {
		if a.Username == username {
			return a
		}
	}
	return nil
}

func (s *store) addAccount(username, password, status string) (*api.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(username) != nil {
		return nil, fmt.Errorf("account %s already exists", username)
	}
	a := &account{
		Account: api.Account{
			ID:        s.id("acct"),
			Username:  username,
			Status:    status,
			CreatedAt: protocol.NewTimestamp(s.now()),
		},
		password: password,
	}
	s.accounts = append(s.accounts, a)
	out := a.Account
	return &out, nil
}

func (s *store) deleteAccount(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.accounts {
		if a.Username == username {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			return true
		}
	}
	return false
}

func (s *store) setAccountStatus(username, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findLocked(username)
	if a == nil {
		return false
	}
	a.Status = status
	return true
}

func (s *store) setAllStatus(status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		a.Status = status
	}
	return len(s.accounts)
}

func (s *store) account(username string) (api.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := s.findLocked(username)
	if a == nil {
		return api.Account{}, false
	}
	return a.Account, true
}

func (s *store) listAccounts() []api.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Account)
	}
	return out
}

func (s *store) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

func (s *store) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// addRecords stores a crawl batch, detecting keywords and accumulating counts
// per account/sequence/ip the way the crawler does
func (s *store) addRecords(username string, batch []api.Record) []api.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := make([]api.Record, 0, len(batch))
	for _, r := range batch {
		r.AccountUsername = username
		if r.ID == "" {
			r.ID = s.id("rec")
		}
		if r.CrawlTimestamp.IsZero() {
			r.CrawlTimestamp = protocol.NewTimestamp(now)
		}
		if r.KeywordsDetected == nil {
			r.KeywordsDetected = s.detectKeywordsLocked(r)
		}

		key := fmt.Sprintf("%s_%d_%s", username, r.SequenceNumber, r.IP)
		prev, seen := s.last[key]
		switch {
		case !seen:
			r.AccumulatedCount = r.CountCurrent
		case r.CountCurrent < prev.countCurrent:
			// Counter reset on the target site; keep the running total.
			r.AccumulatedCount = prev.accumulated + r.CountCurrent
		default:
			r.AccumulatedCount = prev.accumulated + (r.CountCurrent - prev.countCurrent)
		}
		s.last[key] = lastSeen{countCurrent: r.CountCurrent, accumulated: r.AccumulatedCount}

		s.records = append(s.records, r)
		stored = append(stored, r)
	}

	if a := s.findLocked(username); a != nil {
		a.LastCrawl = protocol.NewTimestamp(now)
		if a.Status != api.AccountDisabled {
			a.Status = api.AccountActive
		}
	}
	return stored
}

func (s *store) detectKeywordsLocked(r api.Record) map[string]int {
	text := strings.Join([]string{r.Name, r.Status, r.Skill, r.Guild, r.Type}, " ")
	found := make(map[string]int)
	for _, kw := range s.keywords {
		if n := strings.Count(text, kw); n > 0 {
			found[kw] = n
		}
	}
	if len(found) == 0 {
		return nil
	}
	return found
}

// queryRecords returns matching records, newest first, capped at limit
func (s *store) queryRecords(f api.Filters, limit int) []api.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.Record, 0)
	for _, r := range s.records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortNewestFirst(records []api.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CrawlTimestamp.After(records[j].CrawlTimestamp.Time)
	})
}

func (s *store) status() api.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := api.Status{
		TotalAccounts: len(s.accounts),
		TotalRecords:  len(s.records),
		CrawlStatus:   api.CrawlStopped,
	}
	if s.running {
		st.CrawlStatus = api.CrawlRunning
	}
	for _, a := range s.accounts {
		if a.Status == api.AccountActive {
			st.ActiveAccounts++
		}
	}
	for _, r := range s.records {
		if r.CrawlTimestamp.After(st.LastUpdate.Time) {
			st.LastUpdate = r.CrawlTimestamp
		}
	}
	return st
}

func (s *store) keywordStats() []api.KeywordStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKeyword := make(map[string]*api.KeywordStat)
	affected := make(map[string]map[string]bool)
	for _, r := range s.records {
		for kw, n := range r.KeywordsDetected {
			st, ok := byKeyword[kw]
			if !ok {
				st = &api.KeywordStat{Keyword: kw}
				byKeyword[kw] = st
				affected[kw] = make(map[string]bool)
			}
			st.TotalCount += n
			if r.CrawlTimestamp.After(st.LastSeen.Time) {
				st.LastSeen = r.CrawlTimestamp
			}
			if !affected[kw][r.AccountUsername] {
				affected[kw][r.AccountUsername] = true
				st.AccountsAffected = append(st.AccountsAffected, r.AccountUsername)
			}
		}
	}

	out := make([]api.KeywordStat, 0, len(byKeyword))
	for _, st := range byKeyword {
		sort.Strings(st.AccountsAffected)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCount != out[j].TotalCount {
			return out[i].TotalCount > out[j].TotalCount
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out
}

func (s *store) summary() api.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := api.Summary{TotalRecords: len(s.records)}
	cutoff := s.now().Add(-24 * time.Hour)
	total := 0
	for _, r := range s.records {
		if r.CrawlTimestamp.After(cutoff) {
			sum.RecentRecords24h++
		}
		total += r.AccumulatedCount
	}
	sum.AccumulationStats.TotalAccumulated = total
	if len(s.records) > 0 {
		sum.AccumulationStats.AvgAccumulated = float64(total) / float64(len(s.records))
	}
	return sum
}

func (s *store) performance() []api.AccountPerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byAccount := make(map[string]*api.AccountPerformance)
	for _, r := range s.records {
		p, ok := byAccount[r.AccountUsername]
		if !ok {
			p = &api.AccountPerformance{Username: r.AccountUsername}
			byAccount[r.AccountUsername] = p
		}
		p.TotalRecords++
		p.TotalAccumulated += r.AccumulatedCount
		p.TotalCurrent += r.CountCurrent
		p.KeywordsDetected += r.KeywordHits()
		if r.CrawlTimestamp.After(p.LastCrawl.Time) {
			p.LastCrawl = r.CrawlTimestamp
		}
	}

	out := make([]api.AccountPerformance, 0, len(byAccount))
	for _, p := range byAccount {
		p.AvgCurrent = float64(p.TotalCurrent) / float64(p.TotalRecords)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TotalAccumulated > out[j].TotalAccumulated
	})
	return out
}
