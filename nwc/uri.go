package nwc

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// URIScheme is the connection string scheme defined by NIP-47
const URIScheme = "nostr+walletconnect://"

// Connection holds the wallet connection parameters extracted from a
// nostr+walletconnect:// URI. Immutable for the life of a client.
type Connection struct {
	WalletPubkey string // wallet's x-only public key, hex
	RelayURL     string // relay the wallet listens on
	Secret       string // this client's private key for the session, hex
	Lud16        string // optional lightning address advertised by the wallet
}

// ParseURI parses a connection string of the form
// nostr+walletconnect://<pubkey>?relay=<url>&secret=<hex>[&lud16=<addr>]
func ParseURI(uri string) (Connection, error) {
	if !strings.HasPrefix(uri, URIScheme) {
		return Connection{}, fmt.Errorf("%w: must start with %s", ErrInvalidURI, URIScheme)
	}

	// url.Parse chokes on the nostr+walletconnect scheme
	parseable := strings.Replace(uri, URIScheme, "https://", 1)
	parsed, err := url.Parse(parseable)
	if err != nil {
		return Connection{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}

	walletPubkey := parsed.Host
	if walletPubkey == "" {
		return Connection{}, fmt.Errorf("%w: missing wallet pubkey", ErrInvalidURI)
	}
	if len(walletPubkey) != 64 {
		return Connection{}, fmt.Errorf("%w: wallet pubkey must be 64 hex characters", ErrInvalidURI)
	}
	if _, err := hex.DecodeString(walletPubkey); err != nil {
		return Connection{}, fmt.Errorf("%w: wallet pubkey is not valid hex", ErrInvalidURI)
	}

	if parsed.RawQuery == "" {
		return Connection{}, fmt.Errorf("%w: missing query string", ErrInvalidURI)
	}
	query := parsed.Query()

	relayURL := query.Get("relay")
	if relayURL == "" {
		return Connection{}, fmt.Errorf("%w: missing relay parameter", ErrInvalidURI)
	}
	if !strings.HasPrefix(relayURL, "wss://") && !strings.HasPrefix(relayURL, "ws://") {
		return Connection{}, fmt.Errorf("%w: relay must be a ws:// or wss:// URL", ErrInvalidURI)
	}

	secret := query.Get("secret")
	if secret == "" {
		return Connection{}, fmt.Errorf("%w: missing secret parameter", ErrInvalidURI)
	}
	if len(secret) != 64 {
		return Connection{}, fmt.Errorf("%w: secret must be 64 hex characters", ErrInvalidURI)
	}
	if _, err := hex.DecodeString(secret); err != nil {
		return Connection{}, fmt.Errorf("%w: secret is not valid hex", ErrInvalidURI)
	}

	return Connection{
		WalletPubkey: walletPubkey,
		RelayURL:     relayURL,
		Secret:       secret,
		Lud16:        query.Get("lud16"),
	}, nil
}

// IsValidURI reports whether the connection string parses; never errors
func IsValidURI(uri string) bool {
	_, err := ParseURI(uri)
	return err == nil
}

// String re-encodes the connection as a nostr+walletconnect:// URI
func (c Connection) String() string {
	var b strings.Builder
	b.WriteString(URIScheme)
	b.WriteString(c.WalletPubkey)
	b.WriteString("?relay=")
	b.WriteString(url.QueryEscape(c.RelayURL))
	b.WriteString("&secret=")
	b.WriteString(c.Secret)
	if c.Lud16 != "" {
		b.WriteString("&lud16=")
		b.WriteString(url.QueryEscape(c.Lud16))
	}
	return b.String()
}
