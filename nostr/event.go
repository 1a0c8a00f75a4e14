package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Event kinds used by this module (NIP-01, NIP-42, NIP-47)
const (
	KindProfileMetadata = 0     // user profile metadata
	KindRelayAuth       = 22242 // NIP-42 AUTH response
	KindWalletRequest   = 23194 // NIP-47 client request to wallet
	KindWalletResponse  = 23195 // NIP-47 wallet response to client
)

// Event is a NIP-01 event as exchanged with relays
type Event struct {
	ID         string     `json:"id"`
	PubKey     string     `json:"pubkey"`
	CreatedAt  int64      `json:"created_at"`
	Kind       int        `json:"kind"`
	Tags       [][]string `json:"tags"`
	Content    string     `json:"content"`
	Sig        string     `json:"sig"`
	RelaysSeen []string   `json:"-"`
}

// TagValue returns the value of the first tag with the given name, or ""
func (e *Event) TagValue(name string) string {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// ComputeID calculates the NIP-01 event ID:
// sha256 of the serialized [0, pubkey, created_at, kind, tags, content] array
func ComputeID(e *Event) string {
	tags := e.Tags
	if tags == nil {
		tags = [][]string{}
	}
	serialized := fmt.Sprintf(`[0,"%s",%d,%d,%s,%s]`,
		e.PubKey,
		e.CreatedAt,
		e.Kind,
		mustJSON(tags),
		mustJSON(e.Content),
	)

	hash := sha256.Sum256([]byte(serialized))
	return hex.EncodeToString(hash[:])
}

// Sign computes the event ID and produces a BIP-340 schnorr signature
// over it with the given private key (hex). The event's PubKey must
// already be set to the matching x-only public key.
func (e *Event) Sign(privKeyHex string) error {
	privKeyBytes, err := hex.DecodeString(privKeyHex)
	if err != nil || len(privKeyBytes) != 32 {
		return errors.New("invalid signing key")
	}

	privKey, _ := btcec.PrivKeyFromBytes(privKeyBytes)
	if privKey == nil {
		return errors.New("invalid signing key")
	}

	e.ID = ComputeID(e)
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return fmt.Errorf("invalid event ID: %w", err)
	}

	sig, err := schnorr.Sign(privKey, idBytes)
	if err != nil {
		return fmt.Errorf("failed to sign event: %w", err)
	}

	e.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// Verify checks the event's signature against its pubkey and computed ID
func (e *Event) Verify() bool {
	if e.ID != ComputeID(e) {
		return false
	}

	pubKeyBytes, err := hex.DecodeString(e.PubKey)
	if err != nil || len(pubKeyBytes) != 32 {
		return false
	}
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}

	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return false
	}
	return sig.Verify(idBytes, pubKey)
}

func mustJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
