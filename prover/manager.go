package prover

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainseal/chainseal/chain"
	"github.com/chainseal/chainseal/commitment"
	"github.com/chainseal/chainseal/log"
	"github.com/ethereum/go-ethereum/rlp"
)

// Manager errors. These mark infrastructure failures; an invalid proof is
// reported through VerificationResult, never as an error.
var (
	// ErrProving wraps backend failures during proof generation.
	ErrProving = errors.New("prover: proving failed")
	// ErrUnknownProof is returned when an identifier has no stored
	// artifact.
	ErrUnknownProof = errors.New("prover: unknown proof identifier")
)

// Proof is the stored artifact: the backend that produced it, the public
// claim it binds, and the backend's succinct proof bytes. Immutable once
// created.
type Proof struct {
	Backend string
	Claim   Claim
	Bytes   []byte
}

// ID returns the content-derived identifier of the proof.
func (p *Proof) ID() (ProofID, error) {
	claimBytes, err := p.Claim.Encode()
	if err != nil {
		return "", err
	}
	return computeProofID(p.Backend, claimBytes, p.Bytes), nil
}

// Reason classifies a negative verification outcome.
type Reason uint8

const (
	// ReasonNone accompanies a successful verification.
	ReasonNone Reason = iota
	// ReasonMalformed means the artifact did not decode or has an
	// impossible shape.
	ReasonMalformed
	// ReasonTampered means the artifact's content no longer matches its
	// identifier.
	ReasonTampered
	// ReasonBackendMismatch means the artifact was produced by a
	// different proof backend than the verifier's.
	ReasonBackendMismatch
	// ReasonInvalidProof means the cryptographic check failed.
	ReasonInvalidProof
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "ok"
	case ReasonMalformed:
		return "malformed artifact"
	case ReasonTampered:
		return "artifact does not match identifier"
	case ReasonBackendMismatch:
		return "backend mismatch"
	case ReasonInvalidProof:
		return "invalid proof"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// VerificationResult is the outcome of a verify operation. On success OK
// is true and Claim carries the verified public claim.
type VerificationResult struct {
	OK     bool
	Reason Reason
	Claim  *Claim
}

// Manager produces and verifies proofs over an artifact store.
type Manager struct {
	backend ProofBackend
	store   commitment.Store
	log     *log.Logger
}

// NewManager creates a manager over the given backend and artifact store.
func NewManager(backend ProofBackend, store commitment.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{backend: backend, store: store, log: logger.Module("prover")}
}

// Prove generates a proof for the step record and retains the artifact
// under its content-derived identifier. Proving the same record again
// yields the identical identifier and leaves a single stored artifact. A
// ctx expiry aborts before anything is stored, so retries are safe.
func (m *Manager) Prove(ctx context.Context, rec *chain.StepRecord) (*Proof, ProofID, error) {
	claim := ClaimFromRecord(rec)
	proofBytes, err := m.backend.Prove(ctx, claim, rec.Trace)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrProving, err)
	}

	p := &Proof{Backend: m.backend.Name(), Claim: claim, Bytes: proofBytes}
	id, err := p.ID()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrProving, err)
	}
	key, err := id.digest()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrProving, err)
	}
	enc, err := rlp.EncodeToBytes(p)
	if err != nil {
		return nil, "", fmt.Errorf("%w: encode artifact: %w", ErrProving, err)
	}
	if err := m.store.Put(key, enc); err != nil {
		return nil, "", fmt.Errorf("%w: store artifact: %w", ErrProving, err)
	}
	m.log.Info("proof generated", "id", id, "backend", p.Backend,
		"step", rec.Index, "bytes", len(proofBytes))
	return p, id, nil
}

// Verify resolves an identifier to its stored artifact and checks it. An
// unknown identifier or a store failure is an error (an infrastructure
// problem); every judgement about the artifact itself comes back as a
// VerificationResult and never as an error or panic.
func (m *Manager) Verify(id ProofID) (VerificationResult, error) {
	key, err := id.digest()
	if err != nil {
		return VerificationResult{}, err
	}
	enc, err := m.store.Get(key)
	if err != nil {
		if errors.Is(err, commitment.ErrUnknownCommitment) {
			return VerificationResult{}, fmt.Errorf("%w: %s", ErrUnknownProof, id)
		}
		return VerificationResult{}, fmt.Errorf("prover: artifact lookup: %w", err)
	}
	return m.checkArtifact(id, enc), nil
}

// VerifyDetached checks an externally supplied artifact against an
// identifier, without consulting the store. The artifact must be the
// RLP-encoded Proof whose content derives exactly that identifier.
func (m *Manager) VerifyDetached(id ProofID, artifact []byte) (VerificationResult, error) {
	if _, err := id.digest(); err != nil {
		return VerificationResult{}, err
	}
	return m.checkArtifact(id, artifact), nil
}

func (m *Manager) checkArtifact(id ProofID, enc []byte) VerificationResult {
	var p Proof
	if err := rlp.DecodeBytes(enc, &p); err != nil {
		m.log.Warn("malformed proof artifact", "id", id)
		return VerificationResult{Reason: ReasonMalformed}
	}

	// The identifier is a digest of the content: any mutation of the
	// stored artifact breaks the binding.
	actual, err := p.ID()
	if err != nil {
		return VerificationResult{Reason: ReasonMalformed}
	}
	if actual != id {
		m.log.Warn("proof artifact does not match identifier", "id", id)
		return VerificationResult{Reason: ReasonTampered}
	}

	if p.Backend != m.backend.Name() {
		return VerificationResult{Reason: ReasonBackendMismatch}
	}

	ok, err := m.backend.Verify(p.Claim, p.Bytes)
	if err != nil {
		return VerificationResult{Reason: ReasonMalformed}
	}
	if !ok {
		return VerificationResult{Reason: ReasonInvalidProof}
	}
	m.log.Debug("proof verified", "id", id)
	return VerificationResult{OK: true, Claim: &p.Claim}
}
