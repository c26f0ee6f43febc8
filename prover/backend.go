package prover

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"

	"github.com/chainseal/chainseal/commitment"
	"github.com/chainseal/chainseal/lang"
)

// Backend errors.
var (
	// ErrEmptyTrace is returned when a proof is requested for a step
	// with no recorded frames.
	ErrEmptyTrace = errors.New("prover: empty trace")
	// ErrBadProofLength is returned for artifacts of the wrong size.
	ErrBadProofLength = errors.New("prover: invalid proof length")
)

// ProofBackend is the narrow oracle interface to the proving system. Any
// conforming backend is swappable: Prove folds a trace into a succinct
// artifact for a claim, Verify checks an artifact against a claim without
// access to the trace.
type ProofBackend interface {
	// Name identifies the backend; it is bound into proof identifiers so
	// artifacts from different backends never share an identifier.
	Name() string
	// Prove produces an artifact for claim from the step's trace.
	// Implementations must observe ctx and return its error on expiry.
	Prove(ctx context.Context, claim Claim, trace *lang.Trace) ([]byte, error)
	// Verify checks an artifact against a claim. A false result means the
	// proof is invalid; an error means the artifact is malformed.
	Verify(claim Claim, proof []byte) (bool, error)
}

// Hash backend proof layout: traceCommitment(32) || A(64) || B(128) || C(64).
// The A/B/C points follow the Groth16 proof shape; here they are
// keccak transcripts derived from the trace commitment and claim digest.
const (
	hashPointASize  = 64
	hashPointBSize  = 128
	hashPointCSize  = 64
	hashProofSize   = 32 + hashPointASize + hashPointBSize + hashPointCSize
	hashBackendName = "keccak-transcript"
)

// HashBackend is the default proof backend: a keccak transcript over the
// trace commitment and claim digest in the Groth16 [A, B, C] shape. It is
// succinct and deterministic, and stands in for a real polynomial
// commitment backend behind the same interface.
type HashBackend struct{}

// NewHashBackend creates the default backend.
func NewHashBackend() *HashBackend { return &HashBackend{} }

// Name returns the backend identifier.
func (b *HashBackend) Name() string { return hashBackendName }

// Prove folds the trace into its sequential commitment and derives the
// [A, B, C] transcript bound to the claim digest.
func (b *HashBackend) Prove(ctx context.Context, claim Claim, trace *lang.Trace) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if trace == nil || trace.Len() == 0 {
		return nil, ErrEmptyTrace
	}
	claimDigest, err := claim.Digest()
	if err != nil {
		return nil, err
	}
	traceCommitment := trace.Digest()

	pointA := hashPointA(traceCommitment, claimDigest)
	pointB := hashPointB(pointA, claimDigest)
	pointC := hashPointC(pointA, pointB)

	proof := make([]byte, 0, hashProofSize)
	proof = append(proof, traceCommitment[:]...)
	proof = append(proof, pointA[:]...)
	proof = append(proof, pointB[:]...)
	proof = append(proof, pointC[:]...)
	return proof, nil
}

// Verify recomputes the transcript from the artifact's trace commitment
// and the claim, and compares it against the artifact.
func (b *HashBackend) Verify(claim Claim, proof []byte) (bool, error) {
	if len(proof) != hashProofSize {
		return false, ErrBadProofLength
	}
	claimDigest, err := claim.Digest()
	if err != nil {
		return false, err
	}
	var traceCommitment [32]byte
	copy(traceCommitment[:], proof[:32])

	pointA := hashPointA(traceCommitment, claimDigest)
	pointB := hashPointB(pointA, claimDigest)
	pointC := hashPointC(pointA, pointB)

	expected := make([]byte, 0, hashProofSize)
	expected = append(expected, traceCommitment[:]...)
	expected = append(expected, pointA[:]...)
	expected = append(expected, pointB[:]...)
	expected = append(expected, pointC[:]...)
	return bytes.Equal(proof, expected), nil
}

func hashPointA(traceCommitment, claimDigest [32]byte) [hashPointASize]byte {
	first := commitment.Keccak256(traceCommitment[:], claimDigest[:], []byte("ProofPointA"))
	second := commitment.Keccak256([]byte("ProofPointA2"), traceCommitment[:], claimDigest[:])
	var out [hashPointASize]byte
	copy(out[:32], first[:])
	copy(out[32:], second[:])
	return out
}

func hashPointB(pointA [hashPointASize]byte, claimDigest [32]byte) [hashPointBSize]byte {
	var out [hashPointBSize]byte
	for i := 0; i < 4; i++ {
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], uint32(i))
		h := commitment.Keccak256(pointA[:], claimDigest[:], idx[:], []byte("ProofPointB"))
		copy(out[i*32:], h[:])
	}
	return out
}

func hashPointC(pointA [hashPointASize]byte, pointB [hashPointBSize]byte) [hashPointCSize]byte {
	first := commitment.Keccak256(pointA[:], pointB[:], []byte("ProofPointC"))
	second := commitment.Keccak256(pointB[:], pointA[:], []byte("ProofPointC2"))
	var out [hashPointCSize]byte
	copy(out[:32], first[:])
	copy(out[32:], second[:])
	return out
}
