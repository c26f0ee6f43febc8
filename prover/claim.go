// Package prover implements the proof manager: it turns the trace of a
// chain step into a succinct artifact bound to a public claim, assigns the
// artifact a content-derived textual identifier, and verifies artifacts by
// identifier without re-running the evaluator.
package prover

import (
	"fmt"

	"github.com/chainseal/chainseal/chain"
	"github.com/chainseal/chainseal/commitment"
	"github.com/ethereum/go-ethereum/rlp"
)

// Claim is the public statement a proof binds: applying the function
// under PriorHead to Input yields Output and the new commitment NewHead.
// Input and Output carry the canonical value encodings.
type Claim struct {
	PriorHead commitment.Commitment
	Input     []byte
	Output    []byte
	NewHead   commitment.Commitment
}

// ClaimFromRecord extracts the public claim of a step record.
func ClaimFromRecord(rec *chain.StepRecord) Claim {
	return Claim{
		PriorHead: rec.PriorHead,
		Input:     rec.InputBytes,
		Output:    rec.OutputBytes,
		NewHead:   rec.NewHead,
	}
}

// Encode returns the canonical RLP encoding of the claim.
func (c Claim) Encode() ([]byte, error) {
	b, err := rlp.EncodeToBytes(c)
	if err != nil {
		return nil, fmt.Errorf("prover: encode claim: %w", err)
	}
	return b, nil
}

// Digest returns the keccak-256 digest of the encoded claim.
func (c Claim) Digest() ([32]byte, error) {
	b, err := c.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	return commitment.Keccak256(b), nil
}
