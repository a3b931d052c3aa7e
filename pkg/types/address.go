// Package types holds the wire-level data model shared by every component:
// addresses, chain state variants, and the derived price records.
package types

import (
	"encoding/hex"
	"fmt"
)

// Address is an opaque chain identifier: 20-32 raw bytes, hex-encodable
// with a 0x prefix. It is used purely as an index key and for display; it
// carries no cryptographic meaning in this engine.
type Address struct {
	b []byte
}

// NewAddress copies b into a new Address. b must be 20-32 bytes.
func NewAddress(b []byte) (Address, error) {
	if len(b) < 20 || len(b) > 32 {
		return Address{}, fmt.Errorf("types: address must be 20-32 bytes, got %d", len(b))
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return Address{b: cp}, nil
}

// AddressFromHex parses a 0x-prefixed (or bare) hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("types: decode address hex: %w", err)
	}
	return NewAddress(b)
}

// Bytes returns the raw address bytes. Callers must not mutate the result.
func (a Address) Bytes() []byte { return a.b }

// IsZero reports whether the address carries no bytes (the zero value).
func (a Address) IsZero() bool { return len(a.b) == 0 }

// String renders the address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a.b)
}

// Key returns a value usable as a map key or sharded-index key: a byte
// slice is not comparable, so the key is the raw address bytes converted
// to a string (not the 0x-hex rendering of String).
func (a Address) Key() string { return string(a.b) }

// GobEncode/GobDecode make Address a valid gob field despite its
// unexported backing slice: gob silently drops unexported fields, which
// would otherwise decode every stored Address back as zero-length.
func (a Address) GobEncode() ([]byte, error) {
	return append([]byte(nil), a.b...), nil
}

func (a *Address) GobDecode(data []byte) error {
	a.b = append([]byte(nil), data...)
	return nil
}

// MarshalJSON/UnmarshalJSON render an Address as its 0x-hex string, for
// any JSON surface (config dumps, debug snapshots) that touches it.
func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Address) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	parsed, err := AddressFromHex(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Compare gives a total order over addresses, byte-wise, matching the
// "total-ordered" requirement.
func Compare(a, b Address) int {
	n := len(a.b)
	if len(b.b) < n {
		n = len(b.b)
	}
	for i := 0; i < n; i++ {
		if a.b[i] != b.b[i] {
			if a.b[i] < b.b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a.b) < len(b.b):
		return -1
	case len(a.b) > len(b.b):
		return 1
	default:
		return 0
	}
}
