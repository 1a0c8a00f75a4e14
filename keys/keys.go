package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcutil/bech32"
)

var (
	// ErrInvalidKey means the input is not a valid 32-byte secp256k1 scalar
	ErrInvalidKey = errors.New("invalid key")

	// ErrUnsupportedEncoding means a bech32 value decoded to a type other
	// than npub or nsec
	ErrUnsupportedEncoding = errors.New("unsupported bech32 encoding")
)

// Bech32 human-readable prefixes for nostr keys (NIP-19)
const (
	PrefixPublic  = "npub"
	PrefixPrivate = "nsec"
)

// KeyPair holds a secp256k1 key pair as hex strings. PrivateKey is
// sensitive and must never be logged or sent over the wire.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

// GenerateKeyPair draws a new random private key and derives the
// x-only public key from it.
func GenerateKeyPair() (KeyPair, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate key: %w", err)
	}

	// x-only pubkey (32 bytes) - BIP-340 format
	pubKey := privKey.PubKey().SerializeCompressed()[1:]

	return KeyPair{
		PublicKey:  hex.EncodeToString(pubKey),
		PrivateKey: hex.EncodeToString(privKey.Serialize()),
	}, nil
}

// GetPublicKey derives the x-only public key (hex) from a private key (hex)
func GetPublicKey(privKeyHex string) (string, error) {
	privKeyBytes, err := hex.DecodeString(privKeyHex)
	if err != nil || len(privKeyBytes) != 32 {
		return "", ErrInvalidKey
	}

	allZero := true
	for _, b := range privKeyBytes {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return "", ErrInvalidKey
	}

	privKey, _ := btcec.PrivKeyFromBytes(privKeyBytes)
	pubKey := privKey.PubKey().SerializeCompressed()[1:]
	return hex.EncodeToString(pubKey), nil
}

// HexToNpub encodes a hex public key as an npub1... bech32 string
func HexToNpub(pubKeyHex string) (string, error) {
	return encodeKey(PrefixPublic, pubKeyHex)
}

// HexToNsec encodes a hex private key as an nsec1... bech32 string
func HexToNsec(privKeyHex string) (string, error) {
	return encodeKey(PrefixPrivate, privKeyHex)
}

func encodeKey(hrp, keyHex string) (string, error) {
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return "", fmt.Errorf("invalid key hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return "", errors.New("key must be 32 bytes")
	}

	// Convert 8-bit bytes to 5-bit groups for bech32
	data, err := bech32.ConvertBits(keyBytes, 8, 5, true)
	if err != nil {
		return "", err
	}

	return bech32.Encode(hrp, data)
}

// DecodeBech32 decodes an npub or nsec string, returning the prefix and
// the raw 32-byte key as hex. Any other prefix fails with
// ErrUnsupportedEncoding.
func DecodeBech32(value string) (prefix string, keyHex string, err error) {
	hrp, data, err := bech32.Decode(value)
	if err != nil {
		return "", "", fmt.Errorf("bech32 decode failed: %w", err)
	}

	if hrp != PrefixPublic && hrp != PrefixPrivate {
		return "", "", ErrUnsupportedEncoding
	}

	keyBytes, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", "", err
	}
	if len(keyBytes) != 32 {
		return "", "", errors.New("decoded key is not 32 bytes")
	}

	return hrp, hex.EncodeToString(keyBytes), nil
}

// IsValidNpub reports whether the value is a well-formed npub1... string
func IsValidNpub(value string) bool {
	if !strings.HasPrefix(value, PrefixPublic+"1") {
		return false
	}
	prefix, _, err := DecodeBech32(value)
	return err == nil && prefix == PrefixPublic
}

// IsValidNsec reports whether the value is a well-formed nsec1... string
func IsValidNsec(value string) bool {
	if !strings.HasPrefix(value, PrefixPrivate+"1") {
		return false
	}
	prefix, _, err := DecodeBech32(value)
	return err == nil && prefix == PrefixPrivate
}

// ShortenNpub abbreviates an npub for display: npub1abc...xyz.
// Inputs already shorter than the abbreviation are returned unchanged.
// chars <= 0 defaults to 8.
func ShortenNpub(npub string, chars int) string {
	if chars <= 0 {
		chars = 8
	}
	if len(npub) < chars*2+5 {
		return npub
	}
	return npub[:5+chars] + "..." + npub[len(npub)-chars:]
}
