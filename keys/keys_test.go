package keys

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	require.Len(t, kp.PublicKey, 64)
	require.Len(t, kp.PrivateKey, 64)

	// Derivation must agree with the generated public key
	derived, err := GetPublicKey(kp.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, kp.PublicKey, derived)

	other, err := GenerateKeyPair()
	require.NoError(t, err)
	require.NotEqual(t, kp.PrivateKey, other.PrivateKey)
}

func TestGetPublicKeyKnownScalar(t *testing.T) {
	// Private key 1 maps to the generator point's x coordinate
	pub, err := GetPublicKey("0000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Equal(t, "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798", pub)
}

func TestGetPublicKeyRejectsInvalidInput(t *testing.T) {
	for _, input := range []string{
		"",
		"zz",
		"abcd",
		strings.Repeat("0", 64), // zero scalar
		strings.Repeat("0", 63),
		strings.Repeat("g", 64), // not hex
	} {
		_, err := GetPublicKey(input)
		require.ErrorIs(t, err, ErrInvalidKey, "input %q", input)
	}
}

func TestKeyBech32RoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	npub, err := HexToNpub(kp.PublicKey)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(npub, "npub1"))

	prefix, keyHex, err := DecodeBech32(npub)
	require.NoError(t, err)
	require.Equal(t, PrefixPublic, prefix)
	require.Equal(t, kp.PublicKey, keyHex)

	nsec, err := HexToNsec(kp.PrivateKey)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(nsec, "nsec1"))

	prefix, keyHex, err = DecodeBech32(nsec)
	require.NoError(t, err)
	require.Equal(t, PrefixPrivate, prefix)
	require.Equal(t, kp.PrivateKey, keyHex)
}

func TestDecodeBech32RejectsOtherPrefixes(t *testing.T) {
	// A well-formed bech32 string with a non-key prefix
	data, err := bech32.ConvertBits(make([]byte, 32), 8, 5, true)
	require.NoError(t, err)
	note, err := bech32.Encode("note", data)
	require.NoError(t, err)

	_, _, err = DecodeBech32(note)
	require.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestIsValidNpub(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	npub, err := HexToNpub(kp.PublicKey)
	require.NoError(t, err)
	nsec, err := HexToNsec(kp.PrivateKey)
	require.NoError(t, err)

	require.True(t, IsValidNpub(npub))
	require.False(t, IsValidNpub(nsec))
	require.False(t, IsValidNpub(""))
	require.False(t, IsValidNpub("npub1"))
	require.False(t, IsValidNpub(kp.PublicKey))

	// Corrupt the checksum
	corrupted := npub[:len(npub)-1]
	if strings.HasSuffix(npub, "q") {
		corrupted += "p"
	} else {
		corrupted += "q"
	}
	require.False(t, IsValidNpub(corrupted))
}

func TestIsValidNsec(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	npub, err := HexToNpub(kp.PublicKey)
	require.NoError(t, err)
	nsec, err := HexToNsec(kp.PrivateKey)
	require.NoError(t, err)

	require.True(t, IsValidNsec(nsec))
	require.False(t, IsValidNsec(npub))
	require.False(t, IsValidNsec("nsec1notvalid"))
}

func TestShortenNpub(t *testing.T) {
	long := "npub1" + strings.Repeat("q", 58)

	short := ShortenNpub(long, 8)
	require.Equal(t, long[:13]+"..."+long[len(long)-8:], short)
	require.Len(t, short, 13+3+8)

	// Default width
	require.Equal(t, short, ShortenNpub(long, 0))

	// Already short inputs come back unchanged
	require.Equal(t, "npub1abc", ShortenNpub("npub1abc", 8))
	require.Equal(t, "", ShortenNpub("", 8))

	wide := ShortenNpub(long, 20)
	require.Equal(t, long[:25]+"..."+long[len(long)-20:], wide)
}
