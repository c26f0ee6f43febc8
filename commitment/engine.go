package commitment

import (
	"fmt"

	"github.com/chainseal/chainseal/lang"
	"github.com/chainseal/chainseal/log"
)

// encodingVersion prefixes every stored payload record so the canonical
// encoding can evolve without breaking already-committed payloads.
const encodingVersion byte = 0x01

// Engine builds commitments from payloads and opens them back up.
type Engine struct {
	store Store
	log   *log.Logger
}

// NewEngine creates an engine over the given store. A nil logger uses the
// package default.
func NewEngine(store Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{store: store, log: logger.Module("commitment")}
}

// Store exposes the engine's backing store for audit reads.
func (e *Engine) Store() Store { return e.store }

// Commit canonically encodes payload, hashes the record, stores the
// (digest, record) pair and returns the digest. Committing the same
// payload twice yields the identical commitment and leaves a single store
// entry. Payloads outside the encodable subset fail with the lang
// package's ErrNotSerializable.
func (e *Engine) Commit(payload lang.Value) (Commitment, error) {
	enc, err := lang.EncodeValue(payload)
	if err != nil {
		return Commitment{}, fmt.Errorf("commitment: encode payload: %w", err)
	}
	rec := make([]byte, 1+len(enc))
	rec[0] = encodingVersion
	copy(rec[1:], enc)

	c := Commitment(Keccak256(rec))
	if err := e.store.Put(c, rec); err != nil {
		return Commitment{}, fmt.Errorf("commitment: store payload: %w", err)
	}
	e.log.Debug("committed payload", "commitment", c.Hex(), "bytes", len(rec))
	return c, nil
}

// Open recovers the payload behind a commitment. A store miss is
// ErrUnknownCommitment; a record that fails to decode (corrupted store or
// unknown encoding version) is ErrBadEncoding.
func (e *Engine) Open(c Commitment) (lang.Value, error) {
	rec, err := e.store.Get(c)
	if err != nil {
		return lang.Value{}, err
	}
	if len(rec) == 0 || rec[0] != encodingVersion {
		return lang.Value{}, fmt.Errorf("%w: unsupported version", ErrBadEncoding)
	}
	v, err := lang.DecodeValue(rec[1:])
	if err != nil {
		return lang.Value{}, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return v, nil
}
