package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program addresses.
const (
	PumpProgramID     = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	MetaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
)

const pdaMarker = "ProgramDerivedAddress"

// ErrNoViableBump is returned when every bump seed lands on the curve.
var ErrNoViableBump = errors.New("no viable bump seed")

// FindProgramAddress derives a program derived address for the seeds.
// Bumps are tried from 255 down; the first off-curve hash wins.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	program, err := decodePubkey(programID)
	if err != nil {
		return "", 0, fmt.Errorf("program id: %w", err)
	}
	for _, s := range seeds {
		if len(s) > 32 {
			return "", 0, fmt.Errorf("seed longer than 32 bytes")
		}
	}

	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program)
		h.Write([]byte(pdaMarker))
		sum := h.Sum(nil)

		if !isOnCurve(sum) {
			return base58.Encode(sum), uint8(bump), nil
		}
	}
	return "", 0, ErrNoViableBump
}

// BondingCurveAddress returns the pump.fun bonding-curve account for a mint.
func BondingCurveAddress(mint, pumpProgramID string) (string, error) {
	m, err := decodePubkey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	addr, _, err := FindProgramAddress([][]byte{[]byte("bonding-curve"), m}, pumpProgramID)
	return addr, err
}

// MetadataAddress returns the Metaplex metadata account for a mint.
func MetadataAddress(mint string) (string, error) {
	m, err := decodePubkey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	program, _ := decodePubkey(MetaplexProgramID)
	addr, _, err := FindProgramAddress([][]byte{[]byte("metadata"), program, m}, MetaplexProgramID)
	return addr, err
}

func decodePubkey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", s, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("pubkey %q: want 32 bytes, got %d", s, len(b))
	}
	return b, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
