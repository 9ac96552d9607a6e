package tui

import (
	"context"
	"fmt"
	"log"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"crawlwatch/internal/livesync"
)

// LiveClient bridges a livesync.Synchronizer into the Bubble Tea loop.
// Synchronizer callbacks run on their own goroutines, so they only enqueue
// messages; the model consumes them one at a time through ListenCmd.
type LiveClient struct {
	sync  *livesync.Synchronizer
	inbox chan tea.Msg
	done  chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
}

// NewLiveClient creates a client for the crawler at baseURL. opts may carry a
// Dialer, Ticker, ReconnectDelay or AfterFunc; URL and callbacks are set here.
func NewLiveClient(baseURL string, opts livesync.Options) (*LiveClient, error) {
	streamURL, err := livesync.StreamURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &LiveClient{
		inbox: make(chan tea.Msg, 256),
		done:  make(chan struct{}),
	}

	opts.URL = streamURL
	opts.OnRefresh = func(t livesync.Trigger) {
		c.send(RefreshMsg{Trigger: t})
	}
	opts.OnState = func(state livesync.ConnectionState, err error) {
		c.send(ConnStateMsg{State: state, Err: err})
	}

	s, err := livesync.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create synchronizer: %w", err)
	}
	c.sync = s
	return c, nil
}

// StartCmd returns a tea.Cmd that starts the synchronizer. The initial
// refresh trigger arrives through ListenCmd like every other.
func (c *LiveClient) StartCmd() tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		if c.started || c.closed {
			c.mu.Unlock()
			return nil
		}
		c.started = true
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.mu.Unlock()

		if err := c.sync.Start(ctx); err != nil {
			return LiveStoppedMsg{Err: err}
		}
		return nil
	}
}

// ListenCmd returns a tea.Cmd that blocks until the next message arrives on
// the inbox
func (c *LiveClient) ListenCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-c.inbox:
			return msg
		case <-c.done:
			return LiveStoppedMsg{}
		}
	}
}

// Refresh requests a manual refresh
func (c *LiveClient) Refresh() {
	c.sync.Refresh()
}

// State returns the push channel state
func (c *LiveClient) State() livesync.ConnectionState {
	return c.sync.State()
}

// Close tears the synchronizer down. No reconnect happens afterwards.
func (c *LiveClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	close(c.done)
	c.mu.Unlock()

	c.sync.Teardown()
	if cancel != nil {
		cancel()
	}
}

// send enqueues a tea.Msg into the inbox channel (non-blocking, drops if full)
func (c *LiveClient) send(msg tea.Msg) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.inbox <- msg:
	default:
		log.Printf("[TUI] Live inbox full, dropping %T", msg)
	}
}
