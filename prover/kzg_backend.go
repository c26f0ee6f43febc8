//go:build goethkzg

// Real polynomial-commitment proof backend built on crate-crypto/go-eth-kzg
// and the Ethereum KZG ceremony trusted setup.
//
// Build with: go build -tags goethkzg ./...
// Test with:  go test -tags goethkzg ./prover/ -run KZG
package prover

import (
	"context"
	"errors"
	"fmt"

	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/chainseal/chainseal/commitment"
	"github.com/chainseal/chainseal/lang"
)

// KZG backend errors.
var (
	// ErrTraceTooLarge is returned when a trace does not fit one blob.
	ErrTraceTooLarge = errors.New("prover: trace exceeds blob capacity")
)

const (
	kzgBackendName = "kzg-blob"

	// Each frame contributes two scalars (input and output digest), so a
	// 4096-scalar blob holds 2048 frames.
	kzgScalarsPerBlob = 4096
	kzgMaxFrames      = kzgScalarsPerBlob / 2

	kzgCommitmentSize = 48
	kzgScalarSize     = 32
	kzgProofPointSize = 48
	// Artifact layout: commitment(48) || z(32) || y(32) || proof(48).
	kzgArtifactSize = kzgCommitmentSize + 2*kzgScalarSize + kzgProofPointSize
)

// KZGBackend proves a step by committing to the trace polynomial and
// opening it at a claim-derived evaluation point. Verification needs only
// the 48-byte commitment, the opening pair and the 48-byte proof; the
// trace itself stays with the prover.
type KZGBackend struct {
	ctx *goethkzg.Context
}

// NewKZGBackend initializes the backend with the embedded Ethereum KZG
// ceremony SRS. This takes a few seconds; reuse the backend.
func NewKZGBackend() (*KZGBackend, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, fmt.Errorf("prover: kzg context: %w", err)
	}
	return &KZGBackend{ctx: ctx}, nil
}

// Name returns the backend identifier.
func (b *KZGBackend) Name() string { return kzgBackendName }

// Prove packs the trace into a blob, commits to it, and opens the blob
// polynomial at a point derived from the claim digest. The ctx is checked
// before the expensive proving call so a timed-out prove stores nothing.
func (b *KZGBackend) Prove(ctx context.Context, claim Claim, trace *lang.Trace) ([]byte, error) {
	if trace == nil || trace.Len() == 0 {
		return nil, ErrEmptyTrace
	}
	if trace.Len() > kzgMaxFrames {
		return nil, ErrTraceTooLarge
	}
	blob, err := packTraceBlob(trace)
	if err != nil {
		return nil, err
	}

	comm, err := b.ctx.BlobToKZGCommitment(blob, 0)
	if err != nil {
		return nil, fmt.Errorf("prover: blob commitment: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	z, err := claimEvaluationPoint(claim)
	if err != nil {
		return nil, err
	}
	proof, y, err := b.ctx.ComputeKZGProof(blob, z, 0)
	if err != nil {
		return nil, fmt.Errorf("prover: kzg proof: %w", err)
	}

	out := make([]byte, 0, kzgArtifactSize)
	out = append(out, comm[:]...)
	out = append(out, z[:]...)
	out = append(out, y[:]...)
	out = append(out, proof[:]...)
	return out, nil
}

// Verify checks the opening proof and that the evaluation point is the
// one the claim prescribes, so an artifact cannot be replayed under a
// different claim.
func (b *KZGBackend) Verify(claim Claim, artifact []byte) (bool, error) {
	if len(artifact) != kzgArtifactSize {
		return false, ErrBadProofLength
	}

	var comm goethkzg.KZGCommitment
	copy(comm[:], artifact[:kzgCommitmentSize])
	var z, y goethkzg.Scalar
	copy(z[:], artifact[kzgCommitmentSize:kzgCommitmentSize+kzgScalarSize])
	copy(y[:], artifact[kzgCommitmentSize+kzgScalarSize:kzgCommitmentSize+2*kzgScalarSize])
	var proof goethkzg.KZGProof
	copy(proof[:], artifact[kzgCommitmentSize+2*kzgScalarSize:])

	want, err := claimEvaluationPoint(claim)
	if err != nil {
		return false, err
	}
	if z != want {
		return false, nil
	}
	if err := b.ctx.VerifyKZGProof(comm, z, y, proof); err != nil {
		return false, nil
	}
	return true, nil
}

// packTraceBlob lays the trace's frame digests out as consecutive blob
// scalars. Digests are masked into the canonical scalar range by zeroing
// the top byte, matching the canonicalization numeric values use.
func packTraceBlob(trace *lang.Trace) (*goethkzg.Blob, error) {
	var blob goethkzg.Blob
	for i, f := range trace.Frames {
		in := f.Input
		out := f.Output
		in[0] = 0
		out[0] = 0
		copy(blob[2*i*kzgScalarSize:], in[:])
		copy(blob[(2*i+1)*kzgScalarSize:], out[:])
	}
	return &blob, nil
}

// claimEvaluationPoint derives the opening point from the claim digest,
// masked into the canonical scalar range.
func claimEvaluationPoint(claim Claim) (goethkzg.Scalar, error) {
	var z goethkzg.Scalar
	b, err := claim.Encode()
	if err != nil {
		return z, err
	}
	d := commitment.Keccak256([]byte("kzg-eval-point"), b)
	d[0] = 0
	copy(z[:], d[:])
	return z, nil
}
