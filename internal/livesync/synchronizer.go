package livesync

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crawlwatch/pkg/protocol"
)

// DefaultReconnectDelay is the fixed wait between a drop and the next dial
const DefaultReconnectDelay = 3 * time.Second

// Dialer opens the push channel. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Timer is a cancellable pending callback
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d. time.AfterFunc is the default.
type AfterFunc func(d time.Duration, fn func()) Timer

func realAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Options configures a Synchronizer
type Options struct {
	// URL is the push channel address; see StreamURL
	URL            string
	Dialer         Dialer
	ReconnectDelay time.Duration
	// Ticker drives periodic refreshes; nil disables them
	Ticker    Ticker
	OnRefresh func(Trigger)
	OnState   func(state ConnectionState, err error)
	AfterFunc AfterFunc
}

// Synchronizer keeps a view current by combining a push channel with a
// periodic poll. Each push event of type crawler_update and each tick produce
// a Trigger; the consumer re-fetches everything it shows. When the channel
// drops, exactly one reconnect is scheduled after ReconnectDelay, forever,
// until Teardown.
type Synchronizer struct {
	opts Options

	mu       sync.Mutex
	state    ConnectionState
	healthy  bool
	conn     *websocket.Conn
	pending  Timer
	started  bool
	tornDown bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a synchronizer. Nothing happens until Start.
func New(opts Options) (*Synchronizer, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("stream URL is required")
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	if opts.OnRefresh == nil {
		opts.OnRefresh = func(Trigger) {}
	}
	if opts.OnState == nil {
		opts.OnState = func(ConnectionState, error) {}
	}
	return &Synchronizer{opts: opts, state: Closed}, nil
}

// Start fires the initial refresh, starts the periodic ticker and begins
// connecting. Cancelling ctx is equivalent to calling Teardown.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer already started")
	}
	if s.tornDown {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer torn down")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.refresh(SourceInitial, nil)

	if s.opts.Ticker != nil {
		if err := s.opts.Ticker.Start(func() { s.refresh(SourcePeriodic, nil) }); err != nil {
			s.Teardown()
			return fmt.Errorf("failed to start refresh ticker: %w", err)
		}
	}

	go func() {
		<-s.ctx.Done()
		s.Teardown()
	}()

	go s.connect()
	return nil
}

// Refresh emits a manual trigger
func (s *Synchronizer) Refresh() {
	s.refresh(SourceManual, nil)
}

// State returns the current connection state
func (s *Synchronizer) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Healthy reports whether the channel is open and has not reported an error
func (s *Synchronizer) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthy
}

// Teardown closes the channel, stops the ticker and cancels any pending
// reconnect. No reconnect is scheduled afterwards. Safe to call repeatedly.
func (s *Synchronizer) Teardown() {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	s.tornDown = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	conn := s.conn
	s.conn = nil
	prev := s.state
	s.state = Closed
	s.healthy = false
	cancel := s.cancel
	s.mu.Unlock()

	if s.opts.Ticker != nil {
		s.opts.Ticker.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
	if prev != Closed {
		s.opts.OnState(Closed, nil)
	}
}

// connect dials the push channel. A failed dial is handled like an error
// followed by a close, so it schedules the next attempt.
func (s *Synchronizer) connect() {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	s.state = Connecting
	ctx := s.ctx
	s.mu.Unlock()
	s.opts.OnState(Connecting, nil)

	conn, _, err := s.opts.Dialer.DialContext(ctx, s.opts.URL, nil)
	if err != nil {
		s.onError(fmt.Errorf("dial %s: %w", s.opts.URL, err))
		s.onClose(nil, err)
		return
	}

	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.state = Open
	s.healthy = true
	s.mu.Unlock()

	log.Printf("[LiveSync] Connected to %s", s.opts.URL)
	s.opts.OnState(Open, nil)

	go s.readLoop(conn)
}

// readLoop delivers frames to onMessage until the connection ends
func (s *Synchronizer) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.onError(err)
			}
			s.onClose(conn, err)
			return
		}
		s.onMessage(data)
	}
}

// onMessage triggers a full refresh for crawler_update events. Other event
// types are ignored; malformed payloads are logged and dropped without
// touching the connection state.
func (s *Synchronizer) onMessage(data []byte) {
	parsed, err := protocol.ParseMessage(data)
	if err != nil {
		log.Printf("[LiveSync] Discarding malformed event: %v", err)
		return
	}

	switch msg := parsed.(type) {
	case *protocol.CrawlerUpdate:
		log.Printf("[LiveSync] crawler_update for %s (%d records)", msg.Account, msg.RecordCount())
		s.refresh(SourcePush, msg)
	}
}

// onError marks the channel unhealthy. Reconnection is left to onClose.
func (s *Synchronizer) onError(err error) {
	s.mu.Lock()
	tornDown := s.tornDown
	s.healthy = false
	s.mu.Unlock()

	if !tornDown {
		log.Printf("[LiveSync] Channel error: %v", err)
	}
}

// onClose moves to Closed and schedules exactly one reconnect. conn is the
// connection that ended, or nil for a failed dial.
func (s *Synchronizer) onClose(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	if conn != nil && s.conn != conn {
		// A stale read loop; the current connection is someone else's.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = Closed
	s.healthy = false
	if s.pending == nil {
		s.pending = s.opts.AfterFunc(s.opts.ReconnectDelay, s.reconnect)
	}
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	log.Printf("[LiveSync] Channel closed, reconnecting in %s", s.opts.ReconnectDelay)
	s.opts.OnState(Closed, err)
}

func (s *Synchronizer) reconnect() {
	s.mu.Lock()
	s.pending = nil
	tornDown := s.tornDown
	s.mu.Unlock()

	if tornDown {
		return
	}
	s.connect()
}

func (s *Synchronizer) refresh(source Source, update *protocol.CrawlerUpdate) {
	s.mu.Lock()
	tornDown := s.tornDown
	s.mu.Unlock()
	if tornDown {
		return
	}
	s.opts.OnRefresh(Trigger{Source: source, At: time.Now(), Update: update})
}
