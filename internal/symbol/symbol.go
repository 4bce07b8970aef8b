// Package symbol defines the opaque 4-byte symbol identifier votes are
// placed on, compared bitwise throughout the engine.
package symbol

import (
	"encoding/hex"
	"errors"
)

// Symbol is an opaque 4-byte identifier, e.g. a ticker packed into 4 bytes.
type Symbol [4]byte

var errInvalidLength = errors.New("symbol: hex has wrong length")

// FromString packs the first 4 bytes of s into a Symbol, zero-padding if s
// is shorter. Longer input is truncated — callers that need uniqueness
// guarantees should pick genuinely 4-byte-distinct symbols.
func FromString(s string) Symbol {
	var sym Symbol
	copy(sym[:], s)
	return sym
}

func (s Symbol) String() string {
	return hex.EncodeToString(s[:])
}

// FromHex parses the hex encoding String produces, for reconstructing a
// Symbol from a persisted audit record.
func FromHex(s string) (Symbol, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Symbol{}, err
	}
	var sym Symbol
	if len(b) != len(sym) {
		return Symbol{}, errInvalidLength
	}
	copy(sym[:], b)
	return sym, nil
}
