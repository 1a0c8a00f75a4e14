package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

// NIP04 is the AES-256-CBC shared-secret cipher.
// Payload format: base64(ciphertext)?iv=base64(iv)
type NIP04 struct {
	sharedSecret []byte
}

// NewNIP04 derives the ECDH shared secret between privKeyHex and the
// x-only pubKeyHex and returns a cipher bound to it.
func NewNIP04(privKeyHex, pubKeyHex string) (*NIP04, error) {
	privKey, pubKey, err := parseKeyPair(privKeyHex, pubKeyHex)
	if err != nil {
		return nil, err
	}

	// X coordinate of the shared point per RFC 5903 section 9
	sharedX := btcec.GenerateSharedSecret(privKey, pubKey)

	// x.Bytes() may return fewer than 32 bytes when leading bytes are zero
	if len(sharedX) < 32 {
		padded := make([]byte, 32)
		copy(padded[32-len(sharedX):], sharedX)
		sharedX = padded
	}

	return &NIP04{sharedSecret: sharedX}, nil
}

func (n *NIP04) Scheme() string { return "nip04" }

// Encrypt encrypts plaintext with AES-256-CBC under the shared secret
func (n *NIP04) Encrypt(plaintext string) (string, error) {
	if len(n.sharedSecret) != 32 {
		return "", errors.New("shared secret must be 32 bytes")
	}

	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	// PKCS7 padding
	plaintextBytes := []byte(plaintext)
	blockSize := aes.BlockSize
	padding := blockSize - (len(plaintextBytes) % blockSize)
	paddedPlaintext := make([]byte, len(plaintextBytes)+padding)
	copy(paddedPlaintext, plaintextBytes)
	for i := len(plaintextBytes); i < len(paddedPlaintext); i++ {
		paddedPlaintext[i] = byte(padding)
	}

	block, err := aes.NewCipher(n.sharedSecret)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, len(paddedPlaintext))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, paddedPlaintext)

	return base64.StdEncoding.EncodeToString(ciphertext) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt decrypts a base64(ciphertext)?iv=base64(iv) payload
func (n *NIP04) Decrypt(payload string) (string, error) {
	parts := strings.Split(payload, "?iv=")
	if len(parts) != 2 {
		return "", errors.New("invalid NIP-04 payload format")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", errors.New("invalid ciphertext base64")
	}

	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", errors.New("invalid IV base64")
	}
	if len(iv) != 16 {
		return "", errors.New("invalid IV length")
	}

	block, err := aes.NewCipher(n.sharedSecret)
	if err != nil {
		return "", err
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a multiple of block size")
	}

	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, ciphertext)

	// Remove PKCS7 padding
	padding := int(plaintext[len(plaintext)-1])
	if padding > aes.BlockSize || padding == 0 || padding > len(plaintext) {
		return "", errors.New("invalid padding")
	}
	for i := len(plaintext) - padding; i < len(plaintext); i++ {
		if plaintext[i] != byte(padding) {
			return "", errors.New("invalid padding bytes")
		}
	}

	return string(plaintext[:len(plaintext)-padding]), nil
}
