package fakebackend

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"crawlwatch/internal/api"
)

var (
	recordTypes  = []string{"主机", "副机"}
	recordGuilds = []string{"少林", "武当", "峨眉", "丐帮", "明教"}
	recordSkills = []string{"金刚掌", "太极剑", "九阴白骨爪", "打狗棒", "乾坤大挪移"}
	recordStates = []string{"在线", "在线", "在线", "掉线", "人脸提示", "没钱了"}
)

// generator produces plausible crawl batches. Counts grow between batches
// and occasionally reset so accumulation is exercised.
type generator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	counts map[string]int
}

func newGenerator(seed int64) *generator {
	return &generator{
		rnd:    rand.New(rand.NewSource(seed)),
		counts: make(map[string]int),
	}
}

func (g *generator) batch(username string) []api.Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 3 + g.rnd.Intn(4)
	out := make([]api.Record, 0, n)
	for seq := 1; seq <= n; seq++ {
		key := fmt.Sprintf("%s/%d", username, seq)
		count := g.counts[key] + g.rnd.Intn(15)
		if g.rnd.Intn(10) == 0 {
			count = g.rnd.Intn(5)
		}
		g.counts[key] = count

		out = append(out, api.Record{
			SequenceNumber: seq,
			IP:             fmt.Sprintf("10.0.%d.%d", len(username), seq),
			Type:           recordTypes[g.rnd.Intn(len(recordTypes))],
			Name:           fmt.Sprintf("%s-%02d", username, seq),
			Level:          30 + g.rnd.Intn(70),
			Guild:          recordGuilds[g.rnd.Intn(len(recordGuilds))],
			Skill:          recordSkills[g.rnd.Intn(len(recordSkills))],
			CountCurrent:   count,
			CountTotal:     199,
			TotalTime:      fmt.Sprintf("%dh%02dm", g.rnd.Intn(48), g.rnd.Intn(60)),
			Status:         recordStates[g.rnd.Intn(len(recordStates))],
			Runtime:        fmt.Sprintf("%dm", 1+g.rnd.Intn(600)),
		})
	}
	return out
}

// CrawlOnce crawls every enabled account once and broadcasts the results
func (s *Server) CrawlOnce() int {
	total := 0
	for _, acct := range s.store.listAccounts() {
		if acct.Status == api.AccountDisabled {
			continue
		}
		total += len(s.Ingest(acct.Username, s.gen.batch(acct.Username)...))
	}
	return total
}

// Simulate crawls on every interval while the crawler is running, until ctx
// is cancelled
func (s *Server) Simulate(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.store.isRunning() {
				continue
			}
			n := s.CrawlOnce()
			log.Printf("[FakeBackend] Crawled %d records", n)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
