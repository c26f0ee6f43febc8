// Package commitment implements the content-addressed commitment engine
// and its append-only store. A commitment is the keccak-256 digest of a
// payload's canonical encoding; the store maps digests back to payloads so
// committed closures can be opened for evaluation and audit.
package commitment

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Errors returned by the engine and stores.
var (
	// ErrUnknownCommitment is returned when a digest has no stored payload.
	ErrUnknownCommitment = errors.New("commitment: unknown commitment")
	// ErrImmutable is returned when a store put would overwrite an
	// existing entry with different bytes. Entries are content-addressed,
	// so this only happens on corruption or a hash collision.
	ErrImmutable = errors.New("commitment: store entry is immutable")
	// ErrBadEncoding is returned for stored records that fail to decode.
	ErrBadEncoding = errors.New("commitment: bad payload record")
	// ErrBadHex is returned for strings that do not parse as a commitment.
	ErrBadHex = errors.New("commitment: invalid hex commitment")
)

// Commitment is a fixed-width keccak-256 digest binding a payload.
type Commitment [32]byte

// Hex renders the commitment as a fixed-length 0x-prefixed hex string,
// the external form used by chain directives.
func (c Commitment) Hex() string {
	return "0x" + hex.EncodeToString(c[:])
}

// String implements fmt.Stringer.
func (c Commitment) String() string { return c.Hex() }

// Parse reads a 0x-prefixed 64-digit hex string into a Commitment.
func Parse(s string) (Commitment, error) {
	var c Commitment
	if !strings.HasPrefix(s, "0x") {
		return c, fmt.Errorf("%w: missing 0x prefix", ErrBadHex)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrBadHex, err)
	}
	if len(raw) != len(c) {
		return c, fmt.Errorf("%w: want %d bytes, got %d", ErrBadHex, len(c), len(raw))
	}
	copy(c[:], raw)
	return c, nil
}

// Keccak256 computes the keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}
