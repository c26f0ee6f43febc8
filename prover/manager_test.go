package prover

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chainseal/chainseal/chain"
	"github.com/chainseal/chainseal/commitment"
	"github.com/chainseal/chainseal/lang"
	"github.com/ethereum/go-ethereum/rlp"
)

const counterSource = `
(let ((mk (lambda (self)
            (lambda (n)
              (lambda (x)
                (cons (+ n x) ((self self) (+ n x))))))))
  ((mk mk) 0))`

// buildSteps runs the counter chain over the inputs and returns the
// resulting step records.
func buildSteps(t *testing.T, inputs ...uint64) []*chain.StepRecord {
	t.Helper()
	engine := commitment.NewEngine(commitment.NewMemoryStore(), nil)

	expr, err := lang.Parse(counterSource)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	payload, _, err := lang.Eval(expr, lang.NewEnv(nil), lang.DefaultStepLimit)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	genesis, err := engine.Commit(payload)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ctrl := chain.NewController(engine, 0, nil)
	if err := ctrl.Initialize(genesis); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	prior := genesis
	recs := make([]*chain.StepRecord, 0, len(inputs))
	for _, in := range inputs {
		rec, err := ctrl.Chain(prior, lang.NumUint64(in))
		if err != nil {
			t.Fatalf("Chain(%d): %v", in, err)
		}
		recs = append(recs, rec)
		prior = rec.NewHead
	}
	return recs
}

func newTestManager() *Manager {
	return NewManager(NewHashBackend(), commitment.NewMemoryStore(), nil)
}

func TestProveVerifySoundness(t *testing.T) {
	recs := buildSteps(t, 9, 12, 14)
	m := newTestManager()

	for _, rec := range recs {
		p, id, err := m.Prove(context.Background(), rec)
		if err != nil {
			t.Fatalf("Prove step %d: %v", rec.Index, err)
		}
		res, err := m.Verify(id)
		if err != nil {
			t.Fatalf("Verify step %d: %v", rec.Index, err)
		}
		if !res.OK {
			t.Fatalf("step %d: verification failed: %s", rec.Index, res.Reason)
		}
		if res.Claim.PriorHead != rec.PriorHead || res.Claim.NewHead != rec.NewHead {
			t.Errorf("step %d: claim commitments do not match the record", rec.Index)
		}
		if string(res.Claim.Input) != string(rec.InputBytes) {
			t.Errorf("step %d: claim input does not match the record", rec.Index)
		}
		if p.Backend != hashBackendName {
			t.Errorf("backend: got %s", p.Backend)
		}
	}
}

func TestIdempotentIdentifiers(t *testing.T) {
	recs := buildSteps(t, 9, 12)
	m := newTestManager()

	_, id1, err := m.Prove(context.Background(), recs[0])
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	_, id1again, err := m.Prove(context.Background(), recs[0])
	if err != nil {
		t.Fatalf("Prove again: %v", err)
	}
	if id1 != id1again {
		t.Errorf("same record produced %s and %s", id1, id1again)
	}

	_, id2, err := m.Prove(context.Background(), recs[1])
	if err != nil {
		t.Fatalf("Prove second step: %v", err)
	}
	if id1 == id2 {
		t.Error("distinct records produced the same identifier")
	}
}

func TestVerifyUnknownIdentifier(t *testing.T) {
	recs := buildSteps(t, 9)
	m := newTestManager()
	_, id, err := m.Prove(context.Background(), recs[0])
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	other := newTestManager() // empty store
	_, err = other.Verify(id)
	if !errors.Is(err, ErrUnknownProof) {
		t.Errorf("got %v, want ErrUnknownProof", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	recs := buildSteps(t, 9)
	m := newTestManager()
	p, id, err := m.Prove(context.Background(), recs[0])
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	enc, err := rlp.EncodeToBytes(p)
	if err != nil {
		t.Fatalf("encode artifact: %v", err)
	}

	// Flip every byte in turn; no mutation may verify or crash.
	for i := range enc {
		mutated := make([]byte, len(enc))
		copy(mutated, enc)
		mutated[i] ^= 0xff

		res, err := m.VerifyDetached(id, mutated)
		if err != nil {
			t.Fatalf("VerifyDetached byte %d: %v", i, err)
		}
		if res.OK {
			t.Fatalf("mutated artifact at byte %d verified", i)
		}
		if res.Reason != ReasonTampered && res.Reason != ReasonMalformed {
			t.Errorf("byte %d: got reason %s", i, res.Reason)
		}
	}
}

func TestVerifyTamperedStore(t *testing.T) {
	recs := buildSteps(t, 9)

	// Plant a tampered artifact directly under the identifier's key in a
	// fresh store.
	m := newTestManager()
	p, id, err := m.Prove(context.Background(), recs[0])
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	p.Bytes[5] ^= 0x01
	enc, err := rlp.EncodeToBytes(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	key, err := id.digest()
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	tamperedStore := commitment.NewMemoryStore()
	if err := tamperedStore.Put(key, enc); err != nil {
		t.Fatalf("Put: %v", err)
	}

	m2 := NewManager(NewHashBackend(), tamperedStore, nil)
	res, err := m2.Verify(id)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.OK || res.Reason != ReasonTampered {
		t.Errorf("got OK=%v reason=%s, want tampered", res.OK, res.Reason)
	}
}

func TestProveContextCancelled(t *testing.T) {
	recs := buildSteps(t, 9)
	m := newTestManager()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, id, err := m.Prove(ctx, recs[0])
	if !errors.Is(err, ErrProving) || !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want ErrProving wrapping context.Canceled", err)
	}
	if id != "" {
		t.Errorf("cancelled prove returned an identifier")
	}

	// A retry with a live context succeeds and stores the artifact.
	_, id, err = m.Prove(context.Background(), recs[0])
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res, err := m.Verify(id); err != nil || !res.OK {
		t.Errorf("retry verify: %v %v", res, err)
	}
}

func TestProveEmptyTrace(t *testing.T) {
	recs := buildSteps(t, 9)
	rec := *recs[0]
	rec.Trace = &lang.Trace{}
	m := newTestManager()
	_, _, err := m.Prove(context.Background(), &rec)
	if !errors.Is(err, ErrProving) || !errors.Is(err, ErrEmptyTrace) {
		t.Errorf("got %v, want ErrProving wrapping ErrEmptyTrace", err)
	}
}

func TestHashBackendRejectsForeignClaim(t *testing.T) {
	recs := buildSteps(t, 9, 12)
	b := NewHashBackend()

	claim0 := ClaimFromRecord(recs[0])
	proof, err := b.Prove(context.Background(), claim0, recs[0].Trace)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	ok, err := b.Verify(claim0, proof)
	if err != nil || !ok {
		t.Fatalf("own claim: got %v, %v", ok, err)
	}

	// The proof must not verify against another step's claim.
	claim1 := ClaimFromRecord(recs[1])
	ok, err = b.Verify(claim1, proof)
	if err != nil {
		t.Fatalf("foreign claim: %v", err)
	}
	if ok {
		t.Error("proof verified against a foreign claim")
	}

	// Wrong length is malformed, not invalid.
	if _, err := b.Verify(claim0, proof[:10]); !errors.Is(err, ErrBadProofLength) {
		t.Errorf("short proof: got %v, want ErrBadProofLength", err)
	}
}

func TestProofIDFormat(t *testing.T) {
	recs := buildSteps(t, 9)
	m := newTestManager()
	_, id, err := m.Prove(context.Background(), recs[0])
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	if len(id) != proofIDLength {
		t.Errorf("length: got %d, want %d", len(id), proofIDLength)
	}
	if !strings.HasPrefix(string(id), proofIDPrefix) {
		t.Errorf("prefix: got %s", id)
	}
	// The identifier alphabet is disjoint from a commitment's hex form.
	if strings.HasPrefix(string(id), "0x") {
		t.Errorf("identifier looks like a commitment: %s", id)
	}

	parsed, err := ParseProofID(string(id))
	if err != nil {
		t.Fatalf("ParseProofID: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip changed the identifier")
	}

	// '1' is outside the identifier alphabet.
	invalidDigit := string(id[:3]) + "1" + string(id[4:])
	for _, bad := range []string{"", "zs", "0x12ab", string(id) + "a", "ZS" + string(id)[2:], invalidDigit} {
		if _, err := ParseProofID(bad); !errors.Is(err, ErrBadProofID) {
			t.Errorf("ParseProofID(%q): got %v, want ErrBadProofID", bad, err)
		}
	}
}
