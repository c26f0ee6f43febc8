package lang

import "golang.org/x/crypto/sha3"

// Frame records one reduction: the digest of (expression, environment)
// going in and the digest of the value coming out.
type Frame struct {
	Input  [32]byte
	Output [32]byte
}

// Trace is the ordered record of an evaluation, consumed by the prover.
// It is append-only during evaluation and immutable afterwards.
type Trace struct {
	Frames []Frame
}

// append records a frame. Traces grow only through the evaluator.
func (t *Trace) append(in, out [32]byte) {
	t.Frames = append(t.Frames, Frame{Input: in, Output: out})
}

// Len returns the number of recorded frames.
func (t *Trace) Len() int { return len(t.Frames) }

// Digest folds the frames into a single keccak-256 digest:
// d_0 = 0, d_i = keccak(d_{i-1} || input_i || output_i). The sequential
// fold makes the digest order-dependent, so reordering frames is
// detectable.
func (t *Trace) Digest() [32]byte {
	var d [32]byte
	for _, f := range t.Frames {
		h := sha3.NewLegacyKeccak256()
		h.Write(d[:])
		h.Write(f.Input[:])
		h.Write(f.Output[:])
		h.Sum(d[:0])
	}
	return d
}
