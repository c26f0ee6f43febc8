//go:build blst

// BLS proof attestation using the supranational/blst library (MinPk
// scheme: public keys in G1, signatures in G2, Ethereum DST). An attestor
// signs proof identifiers so a distributor can vouch for artifacts out of
// band; attestation is orthogonal to cryptographic verification.
//
// Build with: go build -tags blst ./...
package prover

import (
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// attestationDST is the domain separation tag for attestation signatures.
var attestationDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

// Key and signature sizes for the MinPk scheme.
const (
	attestorPubkeySize = 48 // compressed G1
	attestorSigSize    = 96 // compressed G2
)

// Attestor errors.
var (
	ErrAttestorShortIKM  = errors.New("prover: attestor IKM must be at least 32 bytes")
	ErrAttestorKeyFailed = errors.New("prover: attestor key generation failed")
)

// Attestor holds a BLS secret key and signs proof identifiers.
type Attestor struct {
	sk *blst.SecretKey
}

// NewAttestor derives an attestor key from the given input key material.
func NewAttestor(ikm []byte) (*Attestor, error) {
	if len(ikm) < 32 {
		return nil, ErrAttestorShortIKM
	}
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, ErrAttestorKeyFailed
	}
	return &Attestor{sk: sk}, nil
}

// PublicKey returns the compressed G1 public key.
func (a *Attestor) PublicKey() []byte {
	return new(blst.P1Affine).From(a.sk).Compress()
}

// Attest signs the proof identifier, returning a compressed G2 signature.
func (a *Attestor) Attest(id ProofID) []byte {
	return new(blst.P2Affine).Sign(a.sk, []byte(id), attestationDST).Compress()
}

// VerifyAttestation checks an attestation signature over an identifier.
func VerifyAttestation(pubkey, sig []byte, id ProofID) bool {
	if len(pubkey) != attestorPubkeySize || len(sig) != attestorSigSize {
		return false
	}
	pk := new(blst.P1Affine).Uncompress(pubkey)
	if pk == nil {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}
	return s.Verify(true, pk, true, []byte(id), attestationDST)
}
