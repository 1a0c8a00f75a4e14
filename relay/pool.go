// Package relay maintains websocket connections to nostr relays and
// provides best-effort multi-relay fetch and publish primitives.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nwc-core/cache"
)

// ErrConnectionFailed means a relay could not be reached
var ErrConnectionFailed = errors.New("relay connection failed")

const (
	defaultFetchTimeout   = 5 * time.Second
	defaultPublishTimeout = 5 * time.Second
	connIdleTimeout       = 2 * time.Minute
	cleanupInterval       = 60 * time.Second
)

// Pool manages one connection per relay URL. Connecting is idempotent;
// idle connections are swept in the background until Shutdown.
type Pool struct {
	mu             sync.RWMutex
	conns          map[string]*Conn
	profileCache   cache.Backend
	fetchTimeout   time.Duration
	publishTimeout time.Duration
	done           chan struct{}
	closeOnce      sync.Once
}

// Option configures a Pool
type Option func(*Pool)

// WithProfileCache installs a cache backend consulted by FetchProfile
func WithProfileCache(backend cache.Backend) Option {
	return func(p *Pool) { p.profileCache = backend }
}

// WithFetchTimeout overrides the default 5s per-relay fetch window
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Pool) { p.fetchTimeout = d }
}

// WithPublishTimeout overrides the default 5s per-relay publish window
func WithPublishTimeout(d time.Duration) Option {
	return func(p *Pool) { p.publishTimeout = d }
}

// NewPool creates a connection pool with an explicit lifecycle; callers
// own it and must Shutdown when done.
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		conns:          make(map[string]*Conn),
		fetchTimeout:   defaultFetchTimeout,
		publishTimeout: defaultPublishTimeout,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.cleanupLoop()
	return p
}

// Connect returns the pooled connection for the URL, dialing if needed.
// Safe to call redundantly from multiple goroutines.
func (p *Pool) Connect(ctx context.Context, relayURL string) (*Conn, error) {
	if err := validateRelayURL(relayURL); err != nil {
		return nil, err
	}

	p.mu.RLock()
	conn := p.conns[relayURL]
	p.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring the write lock
	conn = p.conns[relayURL]
	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	slog.Debug("relay pool: dialing", "relay", relayURL)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, relayURL, err)
	}

	conn = newConn(relayURL, ws)
	p.conns[relayURL] = conn
	return conn, nil
}

// Disconnect closes and deregisters the connection for the URL
func (p *Pool) Disconnect(relayURL string) {
	p.mu.Lock()
	conn := p.conns[relayURL]
	delete(p.conns, relayURL)
	p.mu.Unlock()

	if conn != nil {
		conn.markClosed()
	}
}

// Shutdown closes every connection and stops the background sweeper
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() { close(p.done) })

	p.mu.Lock()
	defer p.mu.Unlock()
	for url, conn := range p.conns {
		conn.markClosed()
		delete(p.conns, url)
	}
}

func (p *Pool) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.cleanup()
		}
	}
}

// cleanup drops closed connections and closes idle ones
func (p *Pool) cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for url, conn := range p.conns {
		conn.mu.Lock()
		idle := len(conn.subs) == 0 && now.Sub(conn.lastActivity) > connIdleTimeout
		closed := conn.closed
		conn.mu.Unlock()

		if closed || idle {
			if !closed {
				slog.Debug("relay pool: closing idle connection", "relay", url)
				conn.markClosed()
			}
			delete(p.conns, url)
		}
	}
}

func validateRelayURL(relayURL string) error {
	parsed, err := url.Parse(relayURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL %q", ErrConnectionFailed, relayURL)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("%w: %q is not a ws:// or wss:// URL", ErrConnectionFailed, relayURL)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("%w: %q has no host", ErrConnectionFailed, relayURL)
	}
	return nil
}
