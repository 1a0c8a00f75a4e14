package keys

import (
	"context"
	"errors"
	"sync"

	"nwc-core/nostr"
)

// ErrSignerUnavailable means no external signer capability is registered
var ErrSignerUnavailable = errors.New("no external signer available")

// Signer is an optional host-provided signing capability (the NIP-07
// extension role: a remote bunker, hardware signer, or embedding
// application holding the user's key).
type Signer interface {
	// PublicKey returns the signer's x-only public key as hex
	PublicKey(ctx context.Context) (string, error)

	// SignEvent fills in the event's ID and Sig
	SignEvent(ctx context.Context, event *nostr.Event) error
}

var (
	signerMu     sync.RWMutex
	activeSigner Signer
)

// RegisterSigner installs a signer capability for the process.
// Passing nil removes the current one.
func RegisterSigner(s Signer) {
	signerMu.Lock()
	activeSigner = s
	signerMu.Unlock()
}

// HasSigner reports whether a signer capability is present.
// Absence is a capability gate, not an error.
func HasSigner() bool {
	signerMu.RLock()
	defer signerMu.RUnlock()
	return activeSigner != nil
}

// ActiveSigner returns the registered signer, or ErrSignerUnavailable
func ActiveSigner() (Signer, error) {
	signerMu.RLock()
	defer signerMu.RUnlock()
	if activeSigner == nil {
		return nil, ErrSignerUnavailable
	}
	return activeSigner, nil
}

// SignerPublicKey asks the registered signer for its public key
func SignerPublicKey(ctx context.Context) (string, error) {
	s, err := ActiveSigner()
	if err != nil {
		return "", err
	}
	return s.PublicKey(ctx)
}
