package prover

import (
	"encoding/base32"
	"errors"
	"fmt"

	"github.com/chainseal/chainseal/commitment"
)

// ErrBadProofID is returned for strings that are not well-formed proof
// identifiers.
var ErrBadProofID = errors.New("prover: invalid proof identifier")

// Proof identifiers are "zs" followed by the lowercase base32 encoding of
// a keccak-256 digest over the proof's content. The "zs" prefix and the
// base32 alphabet keep identifiers from parsing as hex commitments.
const (
	proofIDPrefix = "zs"
	proofIDLength = len(proofIDPrefix) + 52 // 32 bytes -> 52 base32 digits
)

var proofIDEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// ProofID is the stable textual identifier of a proof. Identical proof
// content always yields the identical identifier.
type ProofID string

// computeProofID derives the identifier from the backend name, the
// encoded claim and the proof bytes. Nothing time- or counter-dependent
// enters the digest, so proving the same step twice is idempotent.
func computeProofID(backend string, claimBytes, proofBytes []byte) ProofID {
	d := commitment.Keccak256([]byte(backend), claimBytes, proofBytes)
	return ProofID(proofIDPrefix + proofIDEncoding.EncodeToString(d[:]))
}

// ParseProofID validates the format of a proof identifier.
func ParseProofID(s string) (ProofID, error) {
	id := ProofID(s)
	if _, err := id.digest(); err != nil {
		return "", err
	}
	return id, nil
}

// digest recovers the 32-byte content digest encoded in the identifier.
// It is the key under which the artifact is stored.
func (id ProofID) digest() ([32]byte, error) {
	var out [32]byte
	if len(id) != proofIDLength || id[:len(proofIDPrefix)] != proofIDPrefix {
		return out, fmt.Errorf("%w: %q", ErrBadProofID, string(id))
	}
	raw, err := proofIDEncoding.DecodeString(string(id[len(proofIDPrefix):]))
	if err != nil || len(raw) != 32 {
		return out, fmt.Errorf("%w: %q", ErrBadProofID, string(id))
	}
	copy(out[:], raw)
	return out, nil
}

// String implements fmt.Stringer.
func (id ProofID) String() string { return string(id) }
