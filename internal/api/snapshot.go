package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Collection names one of the datasets a refresh re-requests
type Collection string

const (
	CollectionRecords     Collection = "records"
	CollectionStatus      Collection = "status"
	CollectionAccounts    Collection = "accounts"
	CollectionKeywords    Collection = "keywords"
	CollectionSummary     Collection = "summary"
	CollectionPerformance Collection = "performance"
)

// Collections lists every tracked collection in display order
var Collections = []Collection{
	CollectionRecords,
	CollectionStatus,
	CollectionAccounts,
	CollectionKeywords,
	CollectionSummary,
	CollectionPerformance,
}

// Snapshot holds one full refresh. Collections whose fetch failed are left
// at their zero value and reported in Errors.
type Snapshot struct {
	FetchedAt   time.Time
	Records     []Record
	Status      *Status
	Accounts    []Account
	Keywords    []KeywordStat
	Summary     *Summary
	Performance []AccountPerformance
	Errors      map[Collection]error
}

// OK reports whether every collection was fetched
func (s *Snapshot) OK() bool {
	return len(s.Errors) == 0
}

// Err summarises per-collection failures, or returns nil
func (s *Snapshot) Err() error {
	if len(s.Errors) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Errors))
	for name := range s.Errors {
		names = append(names, string(name))
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, s.Errors[Collection(name)]))
	}
	return fmt.Errorf("refresh incomplete: %s", strings.Join(parts, "; "))
}

// FetchAll requests every collection concurrently. Failures are independent:
// one failed collection never prevents the others from being populated.
func (c *Client) FetchAll(ctx context.Context, f Filters) *Snapshot {
	snap := &Snapshot{Errors: make(map[Collection]error)}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	run := func(name Collection, fetch func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fetch(); err != nil {
				mu.Lock()
				snap.Errors[name] = err
				mu.Unlock()
			}
		}()
	}

	run(CollectionRecords, func() (err error) {
		snap.Records, err = c.Records(ctx, f)
		return err
	})
	run(CollectionStatus, func() (err error) {
		snap.Status, err = c.Status(ctx)
		return err
	})
	run(CollectionAccounts, func() (err error) {
		snap.Accounts, err = c.Accounts(ctx)
		return err
	})
	run(CollectionKeywords, func() (err error) {
		snap.Keywords, err = c.KeywordStats(ctx)
		return err
	})
	run(CollectionSummary, func() (err error) {
		snap.Summary, err = c.Summary(ctx)
		return err
	})
	run(CollectionPerformance, func() (err error) {
		snap.Performance, err = c.Performance(ctx)
		return err
	})

	wg.Wait()
	snap.FetchedAt = time.Now()
	return snap
}
