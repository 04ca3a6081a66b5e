package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// TokenMetadata is the subset of a Metaplex metadata account the monitor reads.
type TokenMetadata struct {
	Name   string
	Symbol string
	URI    string
}

const metadataV1Key = 4

// ParseMetadata decodes base64 Metaplex metadata account data.
// Layout: key(1) | updateAuthority(32) | mint(32) | name | symbol | uri,
// strings are borsh encoded (u32 length + bytes) and NUL padded.
func ParseMetadata(data string) (*TokenMetadata, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if len(raw) < 65 {
		return nil, fmt.Errorf("metadata too short: %d bytes", len(raw))
	}
	if raw[0] != metadataV1Key {
		return nil, fmt.Errorf("unexpected metadata key %d", raw[0])
	}

	r := borshReader{buf: raw, off: 65}
	meta := &TokenMetadata{}
	if meta.Name, err = r.string(200); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	if meta.Symbol, err = r.string(50); err != nil {
		return nil, fmt.Errorf("symbol: %w", err)
	}
	// uri is optional for our purposes
	meta.URI, _ = r.string(400)
	return meta, nil
}

type borshReader struct {
	buf []byte
	off int
}

func (r *borshReader) string(max int) (string, error) {
	if r.off+4 > len(r.buf) {
		return "", fmt.Errorf("truncated length at %d", r.off)
	}
	n := int(binary.LittleEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	if n > max || r.off+n > len(r.buf) {
		return "", fmt.Errorf("bad string length %d", n)
	}
	s := strings.TrimRight(string(r.buf[r.off:r.off+n]), "\x00")
	r.off += n
	return s, nil
}
