// Package nwc implements the NIP-47 Nostr Wallet Connect client:
// encrypted request/response RPC with a user-controlled wallet over a
// single wallet-designated relay.
package nwc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nwc-core/encryption"
	"nwc-core/keys"
	"nwc-core/nostr"
	"nwc-core/relay"
)

const defaultRequestTimeout = 30 * time.Second

// Request is the JSON-RPC request embedded (encrypted) in a wallet
// request event
type Request struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// Response is the wallet's decrypted reply. Exactly one of Result and
// Error is present.
type Response struct {
	ResultType string          `json:"result_type"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *WalletError    `json:"error,omitempty"`
}

// Client speaks NIP-47 with one wallet over its designated relay. The
// relay connection is private to the instance: the encryption secret is
// tied to this key pair, so it must not be shared across wallets.
// Concurrent requests are safe; each call correlates responses through
// its own subscription keyed by the request event ID.
type Client struct {
	conn         Connection
	clientPubkey string
	cipher       encryption.Cipher
	timeout      time.Duration

	mu    sync.Mutex
	relay *relay.Conn
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithCipher swaps the payload encryption scheme (default NIP-04)
func WithCipher(cipher encryption.Cipher) ClientOption {
	return func(c *Client) { c.cipher = cipher }
}

// WithRequestTimeout overrides the default 30s response window
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient builds a client for the parsed connection. The client's
// public key is derived from the connection secret; payloads are
// encrypted with NIP-04 unless WithCipher overrides it.
func NewClient(conn Connection, opts ...ClientOption) (*Client, error) {
	clientPubkey, err := keys.GetPublicKey(conn.Secret)
	if err != nil {
		return nil, fmt.Errorf("invalid connection secret: %w", err)
	}

	c := &Client{
		conn:         conn,
		clientPubkey: clientPubkey,
		timeout:      defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cipher == nil {
		cipher, err := encryption.NewNIP04(conn.Secret, conn.WalletPubkey)
		if err != nil {
			return nil, fmt.Errorf("failed to derive shared secret: %w", err)
		}
		c.cipher = cipher
	}

	return c, nil
}

// Connect establishes the wallet relay connection; idempotent
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.relay != nil && !c.relay.IsClosed() {
		return nil
	}

	conn, err := relay.Dial(ctx, c.conn.RelayURL)
	if err != nil {
		return err
	}
	conn.OnAuth(c.handleAuth)
	c.relay = conn

	slog.Debug("nwc: connected to wallet relay",
		"relay", c.conn.RelayURL, "scheme", c.cipher.Scheme())
	return nil
}

// Disconnect tears down the wallet relay connection
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.relay != nil {
		c.relay.Close()
		c.relay = nil
	}
}

// IsConnected reports whether the wallet relay connection is up
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relay != nil && !c.relay.IsClosed()
}

// LightningAddress returns the lud16 address from the connection URI,
// or "" when the wallet did not advertise one
func (c *Client) LightningAddress() string {
	return c.conn.Lud16
}

// WalletPubkey returns the wallet's public key (hex)
func (c *Client) WalletPubkey() string {
	return c.conn.WalletPubkey
}

// ClientPubkey returns this client's derived public key (hex)
func (c *Client) ClientPubkey() string {
	return c.clientPubkey
}

// sendRequest performs one NIP-47 round trip: encrypt and sign the
// request, subscribe for the correlated response, publish, and wait for
// the first matching response event. The subscription is closed on
// exactly one of success, timeout, publish failure, or decrypt failure.
func (c *Client) sendRequest(ctx context.Context, method string, params interface{}) (*Response, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	rc := c.relay
	c.mu.Unlock()

	payload, err := json.Marshal(Request{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ciphertext, err := c.cipher.Encrypt(string(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt request: %w", err)
	}

	event := &nostr.Event{
		PubKey:    c.clientPubkey,
		CreatedAt: time.Now().Unix(),
		Kind:      nostr.KindWalletRequest,
		Tags:      [][]string{{"p", c.conn.WalletPubkey}},
		Content:   ciphertext,
	}
	if err := event.Sign(c.conn.Secret); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Subscribe before publishing: a fast wallet response must not
	// arrive before the listener exists
	sub, err := rc.Subscribe(nostr.Filter{
		Kinds:   []int{nostr.KindWalletResponse},
		Authors: []string{c.conn.WalletPubkey},
		ETags:   []string{event.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	defer rc.Unsubscribe(sub)

	if err := rc.Publish(reqCtx, event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	slog.Debug("nwc: request published",
		"method", method, "event_id", event.ID)

	for {
		select {
		case response := <-sub.Events:
			if response.PubKey != c.conn.WalletPubkey {
				continue
			}
			return c.decodeResponse(&response)
		case <-sub.Done:
			return nil, errors.New("connection closed while awaiting wallet response")
		case <-reqCtx.Done():
			// The relay did accept the request event (Publish waits
			// for OK), so a silent wallet is the likely cause here
			slog.Debug("nwc: no wallet response", "method", method, "event_id", event.ID)
			return nil, fmt.Errorf("%w: %s", ErrTimeout, method)
		}
	}
}

// decodeResponse decrypts and parses the first matching response event
func (c *Client) decodeResponse(event *nostr.Event) (*Response, error) {
	plaintext, err := c.cipher.Decrypt(event.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	var response Response
	if err := json.Unmarshal([]byte(plaintext), &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return &response, nil
}

// handleAuth answers a NIP-42 challenge with a signed kind-22242 event
func (c *Client) handleAuth(challenge string) {
	c.mu.Lock()
	rc := c.relay
	c.mu.Unlock()
	if rc == nil {
		return
	}

	event := &nostr.Event{
		PubKey:    c.clientPubkey,
		CreatedAt: time.Now().Unix(),
		Kind:      nostr.KindRelayAuth,
		Tags: [][]string{
			{"relay", c.conn.RelayURL},
			{"challenge", challenge},
		},
	}
	if err := event.Sign(c.conn.Secret); err != nil {
		slog.Error("nwc: failed to sign AUTH response", "error", err)
		return
	}

	if err := rc.SendJSON([]interface{}{"AUTH", event}); err != nil {
		slog.Error("nwc: failed to send AUTH response", "error", err)
		return
	}
	slog.Debug("nwc: answered AUTH challenge", "relay", c.conn.RelayURL)
}
