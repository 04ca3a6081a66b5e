package solana

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = "So11111111111111111111111111111111111111112"

func TestBondingCurveAddress_Deterministic(t *testing.T) {
	a, err := BondingCurveAddress(testMint, PumpProgramID)
	require.NoError(t, err)
	b, err := BondingCurveAddress(testMint, PumpProgramID)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, testMint, a)

	raw, err := base58.Decode(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.False(t, isOnCurve(raw), "PDA must be off the ed25519 curve")
}

func TestFindProgramAddress_SeedsMatter(t *testing.T) {
	mint, err := decodePubkey(testMint)
	require.NoError(t, err)

	curve, _, err := FindProgramAddress([][]byte{[]byte("bonding-curve"), mint}, PumpProgramID)
	require.NoError(t, err)
	other, _, err := FindProgramAddress([][]byte{[]byte("metadata"), mint}, PumpProgramID)
	require.NoError(t, err)

	assert.NotEqual(t, curve, other)
}

func TestFindProgramAddress_InvalidInput(t *testing.T) {
	_, _, err := FindProgramAddress(nil, "not-base58-0OIl")
	assert.Error(t, err)

	_, err = BondingCurveAddress("short", PumpProgramID)
	assert.Error(t, err)

	long := make([]byte, 33)
	_, _, err = FindProgramAddress([][]byte{long}, PumpProgramID)
	assert.Error(t, err)
}

func TestMetadataAddress(t *testing.T) {
	addr, err := MetadataAddress(testMint)
	require.NoError(t, err)
	assert.NotEmpty(t, addr)
}

func borshString(s string) []byte {
	out := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(out, uint32(len(s)))
	copy(out[4:], s)
	return out
}

func TestParseMetadata(t *testing.T) {
	buf := make([]byte, 65)
	buf[0] = metadataV1Key
	buf = append(buf, borshString("Moon Dog\x00\x00\x00")...)
	buf = append(buf, borshString("MDOG\x00")...)
	buf = append(buf, borshString("https://example.org/m.json")...)

	meta, err := ParseMetadata(base64.StdEncoding.EncodeToString(buf))
	require.NoError(t, err)
	assert.Equal(t, "Moon Dog", meta.Name)
	assert.Equal(t, "MDOG", meta.Symbol)
	assert.Equal(t, "https://example.org/m.json", meta.URI)
}

func TestParseMetadata_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", make([]byte, 10)},
		{"wrong key", append([]byte{9}, make([]byte, 80)...)},
		{"truncated name", func() []byte {
			b := make([]byte, 65)
			b[0] = metadataV1Key
			return append(b, 0xff, 0x00, 0x00, 0x00, 'a')
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMetadata(base64.StdEncoding.EncodeToString(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := ParseMetadata("%%%")
	assert.Error(t, err)
}
