package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Empty(t, cfg.Relays)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NWC_URI", "nostr+walletconnect://abc?relay=wss://r.example.com&secret=def")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RELAYS", "wss://a.example.com,wss://b.example.com")
	t.Setenv("NWC_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"wss://a.example.com", "wss://b.example.com"}, cfg.Relays)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Contains(t, cfg.NWCURI, "nostr+walletconnect://")
}
