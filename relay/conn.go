package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nwc-core/nostr"
)

// Subscription is an active REQ on a relay connection
type Subscription struct {
	ID        string
	Events    chan nostr.Event
	EOSE      chan struct{}
	Done      chan struct{}
	closeOnce sync.Once
}

// Close signals the subscription's consumers exactly once
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.Done)
	})
}

type okStatus struct {
	accepted bool
	reason   string
}

// Conn is a single websocket connection to a relay, multiplexing any
// number of subscriptions plus publish acknowledgements.
type Conn struct {
	url          string
	ws           *websocket.Conn
	mu           sync.Mutex
	writeMu      sync.Mutex
	subs         map[string]*Subscription
	okWaiters    map[string]chan okStatus
	closed       bool
	done         chan struct{}
	lastActivity time.Time
	authFn       func(challenge string)
}

// Dial opens a standalone connection outside any pool. The NWC client
// uses this for its private wallet relay, which must never be shared
// across independently configured wallets.
func Dial(ctx context.Context, relayURL string) (*Conn, error) {
	if err := validateRelayURL(relayURL); err != nil {
		return nil, err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, relayURL, err)
	}
	return newConn(relayURL, ws), nil
}

func newConn(url string, ws *websocket.Conn) *Conn {
	c := &Conn{
		url:          url,
		ws:           ws,
		subs:         make(map[string]*Subscription),
		okWaiters:    make(map[string]chan okStatus),
		done:         make(chan struct{}),
		lastActivity: time.Now(),
	}
	go c.readLoop()
	return c
}

// URL returns the relay address this connection is bound to
func (c *Conn) URL() string { return c.url }

// IsClosed reports whether the connection has been torn down
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears the connection down, releasing all subscriptions
func (c *Conn) Close() {
	c.markClosed()
}

// OnAuth registers a handler for NIP-42 AUTH challenges from the relay
func (c *Conn) OnAuth(fn func(challenge string)) {
	c.mu.Lock()
	c.authFn = fn
	c.mu.Unlock()
}

// Subscribe sends a REQ for the filter and returns the live subscription
func (c *Conn) Subscribe(filter nostr.Filter) (*Subscription, error) {
	sub := &Subscription{
		ID:     "sub-" + randomID(8),
		Events: make(chan nostr.Event, 100),
		EOSE:   make(chan struct{}, 1),
		Done:   make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("connection closed")
	}
	c.subs[sub.ID] = sub
	c.mu.Unlock()

	if err := c.writeJSON([]interface{}{"REQ", sub.ID, filter.ReqObject()}); err != nil {
		c.mu.Lock()
		delete(c.subs, sub.ID)
		c.mu.Unlock()
		c.markClosed()
		return nil, fmt.Errorf("failed to subscribe on %s: %w", c.url, err)
	}

	c.touch()
	return sub, nil
}

// Unsubscribe sends CLOSE for the subscription and releases it
func (c *Conn) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	c.mu.Lock()
	_, exists := c.subs[sub.ID]
	shouldSendClose := !c.closed && exists
	if exists {
		delete(c.subs, sub.ID)
	}
	c.mu.Unlock()

	// Best effort - the connection may already be gone
	if shouldSendClose {
		c.writeJSON([]interface{}{"CLOSE", sub.ID})
	}

	sub.Close()
}

// Publish sends the signed event and waits for the relay's OK, the
// context deadline, or connection loss - whichever comes first.
func (c *Conn) Publish(ctx context.Context, event *nostr.Event) error {
	ch := make(chan okStatus, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("connection closed")
	}
	c.okWaiters[event.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.okWaiters, event.ID)
		c.mu.Unlock()
	}()

	if err := c.writeJSON([]interface{}{"EVENT", event}); err != nil {
		c.markClosed()
		return fmt.Errorf("failed to publish to %s: %w", c.url, err)
	}
	c.touch()

	select {
	case status, ok := <-ch:
		if !ok {
			return errors.New("connection closed")
		}
		if !status.accepted {
			return fmt.Errorf("relay %s rejected event: %s", c.url, status.reason)
		}
		return nil
	case <-c.done:
		return errors.New("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendJSON writes an arbitrary wire message (AUTH responses and the like)
func (c *Conn) SendJSON(v interface{}) error {
	return c.writeJSON(v)
}

func (c *Conn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	defer c.ws.SetWriteDeadline(time.Time{})

	return c.ws.WriteJSON(v)
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// readLoop reads wire messages and routes them to subscriptions and
// publish waiters until the connection dies.
func (c *Conn) readLoop() {
	defer c.markClosed()

	for {
		var msg []interface{}
		if err := c.ws.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				slog.Debug("relay: read error", "relay", c.url, "error", err)
			}
			return
		}

		c.touch()

		if len(msg) < 2 {
			continue
		}
		msgType, ok := msg[0].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "EVENT":
			if len(msg) < 3 {
				continue
			}
			subID, ok := msg[1].(string)
			if !ok {
				continue
			}
			event, ok := parseEvent(msg[2])
			if !ok {
				continue
			}
			event.RelaysSeen = []string{c.url}

			c.mu.Lock()
			sub := c.subs[subID]
			c.mu.Unlock()

			if sub != nil {
				select {
				case sub.Events <- event:
				case <-sub.Done:
				default:
					// Channel full, drop event
				}
			}

		case "EOSE":
			subID, ok := msg[1].(string)
			if !ok {
				continue
			}

			c.mu.Lock()
			sub := c.subs[subID]
			c.mu.Unlock()

			if sub != nil {
				select {
				case sub.EOSE <- struct{}{}:
				default:
				}
			}

		case "OK":
			if len(msg) < 3 {
				continue
			}
			eventID, _ := msg[1].(string)
			accepted, _ := msg[2].(bool)
			reason := ""
			if len(msg) >= 4 {
				reason, _ = msg[3].(string)
			}

			c.mu.Lock()
			ch := c.okWaiters[eventID]
			c.mu.Unlock()

			if ch != nil {
				select {
				case ch <- okStatus{accepted: accepted, reason: reason}:
				default:
				}
			}

		case "CLOSED":
			subID, _ := msg[1].(string)
			c.mu.Lock()
			sub := c.subs[subID]
			if sub != nil {
				delete(c.subs, subID)
			}
			c.mu.Unlock()
			if sub != nil {
				sub.Close()
			}

		case "AUTH":
			challenge, _ := msg[1].(string)
			c.mu.Lock()
			fn := c.authFn
			c.mu.Unlock()
			if fn != nil && challenge != "" {
				go fn(challenge)
			}

		case "NOTICE":
			notice, _ := msg[1].(string)
			slog.Debug("relay: NOTICE", "relay", c.url, "notice", notice)
		}
	}
}

// markClosed tears the connection down and releases every subscription
// and publish waiter exactly once
func (c *Conn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.ws.Close()
	close(c.done)

	for _, sub := range c.subs {
		sub.Close()
	}
	c.subs = make(map[string]*Subscription)

	for _, ch := range c.okWaiters {
		close(ch)
	}
	c.okWaiters = make(map[string]chan okStatus)
}

func parseEvent(raw interface{}) (nostr.Event, bool) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nostr.Event{}, false
	}
	var event nostr.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nostr.Event{}, false
	}
	return event, true
}

func randomID(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)[:n]
}
