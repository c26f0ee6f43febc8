// Package chain implements the chain controller: a single-writer state
// machine that applies a committed closure to successive inputs, advancing
// a head commitment one atomic step at a time and recording each step for
// the prover.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chainseal/chainseal/commitment"
	"github.com/chainseal/chainseal/lang"
	"github.com/chainseal/chainseal/log"
)

// Controller errors.
var (
	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("chain: already initialized")
	// ErrNotInitialized is returned by Chain before Initialize.
	ErrNotInitialized = errors.New("chain: not initialized")
	// ErrHeadMismatch is returned when the caller's prior commitment is
	// not the current head (stale reference or replay).
	ErrHeadMismatch = errors.New("chain: head mismatch")
	// ErrEvaluation wraps evaluator failures (divergence, type errors,
	// step budget exhaustion).
	ErrEvaluation = errors.New("chain: evaluation failed")
	// ErrFaulted is returned after an internal invariant violation.
	ErrFaulted = errors.New("chain: controller faulted")
	// ErrNoUnprovenStep is returned when every step has been proven.
	ErrNoUnprovenStep = errors.New("chain: no unproven step")
)

// State enumerates the controller's lifecycle.
type State uint8

const (
	// Uninitialized means no genesis commitment has been set.
	Uninitialized State = iota
	// Active means the controller holds a head and accepts chain steps.
	Active
	// Faulted means an invariant broke; all further steps are refused.
	Faulted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// StepRecord is the immutable artifact of one successful chain step. It
// carries everything the prover needs: the linking commitments, the
// canonical encodings of input and output, and the evaluation trace.
type StepRecord struct {
	Index       int
	PriorHead   commitment.Commitment
	Input       lang.Value
	InputBytes  []byte
	Output      lang.Value
	OutputBytes []byte
	NewHead     commitment.Commitment
	Trace       *lang.Trace
}

// Controller owns one chain instance. All head mutation happens under a
// single mutex, so concurrent Chain calls serialize and at most one can
// succeed against any given head value.
type Controller struct {
	mu        sync.Mutex
	state     State
	head      commitment.Commitment
	engine    *commitment.Engine
	stepLimit int
	records   []*StepRecord
	proven    map[int]bool
	log       *log.Logger
}

// NewController creates a controller over the given commitment engine.
// stepLimit bounds each evaluation; zero or negative selects the default.
func NewController(engine *commitment.Engine, stepLimit int, logger *log.Logger) *Controller {
	if stepLimit <= 0 {
		stepLimit = lang.DefaultStepLimit
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		engine:    engine,
		stepLimit: stepLimit,
		proven:    make(map[int]bool),
		log:       logger.Module("chain"),
	}
}

// Initialize sets the genesis head. It must be called exactly once; the
// genesis commitment must already exist in the commitment store.
func (c *Controller) Initialize(genesis commitment.Commitment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Uninitialized {
		return ErrAlreadyInitialized
	}
	ok, err := c.engine.Store().Has(genesis)
	if err != nil {
		return fmt.Errorf("chain: genesis lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("chain: genesis: %w", commitment.ErrUnknownCommitment)
	}
	c.head = genesis
	c.state = Active
	c.log.Info("chain initialized", "head", genesis.Hex())
	return nil
}

// Head returns the current head commitment. The second return is false
// until the controller is initialized.
func (c *Controller) Head() (commitment.Commitment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, c.state == Active
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Chain executes one step: it opens the head's closure, applies it to
// input under the step budget, commits the successor closure and advances
// the head. expectedPrior must equal the current head or the step fails
// with ErrHeadMismatch. On any failure the head and the step history are
// left untouched.
func (c *Controller) Chain(expectedPrior commitment.Commitment, input lang.Value) (*StepRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Uninitialized:
		return nil, ErrNotInitialized
	case Faulted:
		return nil, ErrFaulted
	}
	if expectedPrior != c.head {
		return nil, fmt.Errorf("%w: have %s, head is %s", ErrHeadMismatch, expectedPrior.Hex(), c.head.Hex())
	}

	payload, err := c.engine.Open(c.head)
	if err != nil {
		// The head must always be recoverable; a store miss here means
		// the store was corrupted behind our back.
		c.state = Faulted
		c.log.Error("head payload unrecoverable", "head", c.head.Hex(), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrFaulted, err)
	}

	output, next, trace, err := lang.ApplyChain(payload, input, c.stepLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	inputBytes, err := lang.EncodeValue(input)
	if err != nil {
		return nil, fmt.Errorf("chain: encode input: %w", err)
	}
	outputBytes, err := lang.EncodeValue(output)
	if err != nil {
		return nil, fmt.Errorf("chain: encode output: %w", err)
	}

	newHead, err := c.engine.Commit(next)
	if err != nil {
		return nil, fmt.Errorf("chain: commit successor: %w", err)
	}

	rec := &StepRecord{
		Index:       len(c.records),
		PriorHead:   expectedPrior,
		Input:       input,
		InputBytes:  inputBytes,
		Output:      output,
		OutputBytes: outputBytes,
		NewHead:     newHead,
		Trace:       trace,
	}
	c.head = newHead
	c.records = append(c.records, rec)
	c.log.Info("chain step", "index", rec.Index, "prior", rec.PriorHead.Hex(),
		"head", rec.NewHead.Hex(), "frames", trace.Len())
	return rec, nil
}

// Records returns a snapshot of the step history.
func (c *Controller) Records() []*StepRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*StepRecord, len(c.records))
	copy(out, c.records)
	return out
}

// LatestUnproven returns the most recent step record that has not been
// marked proven.
func (c *Controller) LatestUnproven() (*StepRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.records) - 1; i >= 0; i-- {
		if !c.proven[i] {
			return c.records[i], nil
		}
	}
	return nil, ErrNoUnprovenStep
}

// MarkProven records that the step at index has a proof. Marking is
// idempotent.
func (c *Controller) MarkProven(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index >= 0 && index < len(c.records) {
		c.proven[index] = true
	}
}
