// Package encryption implements the shared-secret payload ciphers used
// between two nostr key holders: NIP-04 (AES-256-CBC, deprecated but
// still what most wallets speak) and NIP-44 v2 (ChaCha20 + HMAC).
package encryption

import (
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Cipher encrypts and decrypts payloads under a shared secret derived
// from one party's private key and the other's public key. Swapping the
// scheme never touches request/response orchestration.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(payload string) (string, error)

	// Scheme returns the wire name of the scheme ("nip04" or "nip44")
	Scheme() string
}

// parseKeyPair decodes a hex private key and a hex x-only public key
// into btcec types. X-only keys are lifted with an even-y prefix first,
// falling back to odd y.
func parseKeyPair(privKeyHex, pubKeyHex string) (*btcec.PrivateKey, *btcec.PublicKey, error) {
	privKeyBytes, err := hex.DecodeString(privKeyHex)
	if err != nil || len(privKeyBytes) != 32 {
		return nil, nil, errors.New("invalid private key")
	}
	privKey, _ := btcec.PrivKeyFromBytes(privKeyBytes)
	if privKey == nil {
		return nil, nil, errors.New("invalid private key")
	}

	pubKeyBytes, err := hex.DecodeString(pubKeyHex)
	if err != nil || len(pubKeyBytes) != 32 {
		return nil, nil, errors.New("invalid public key")
	}

	pubKeyWithPrefix := append([]byte{0x02}, pubKeyBytes...)
	pubKey, err := btcec.ParsePubKey(pubKeyWithPrefix)
	if err != nil {
		pubKeyWithPrefix[0] = 0x03
		pubKey, err = btcec.ParsePubKey(pubKeyWithPrefix)
		if err != nil {
			return nil, nil, errors.New("invalid public key")
		}
	}

	return privKey, pubKey, nil
}
