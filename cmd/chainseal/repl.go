package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chainseal/chainseal/chain"
	"github.com/chainseal/chainseal/commitment"
	"github.com/chainseal/chainseal/lang"
	"github.com/chainseal/chainseal/log"
	"github.com/chainseal/chainseal/prover"
)

// errQuit signals a clean REPL exit.
var errQuit = errors.New("quit")

// session wires the engine, controller and proof manager behind the
// directive surface. headFile, when set, persists the chain head so a
// chain resumes across process restarts.
type session struct {
	engine       *commitment.Engine
	ctrl         *chain.Controller
	mgr          *prover.Manager
	headFile     string
	proveTimeout time.Duration
	log          *log.Logger
}

// newSession builds a session over the given stores. If headFile names an
// existing head record, the controller resumes from it.
func newSession(commitments, proofs commitment.Store, headFile string, stepLimit int, proveTimeout time.Duration, logger *log.Logger) (*session, error) {
	if logger == nil {
		logger = log.Default()
	}
	engine := commitment.NewEngine(commitments, logger)
	s := &session{
		engine:       engine,
		ctrl:         chain.NewController(engine, stepLimit, logger),
		mgr:          prover.NewManager(prover.NewHashBackend(), proofs, logger),
		headFile:     headFile,
		proveTimeout: proveTimeout,
		log:          logger.Module("repl"),
	}
	if headFile != "" {
		if err := s.resumeHead(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// resumeHead re-initializes the controller from a persisted head record.
func (s *session) resumeHead() error {
	raw, err := os.ReadFile(s.headFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("repl: read head record: %w", err)
	}
	head, err := commitment.Parse(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("repl: head record: %w", err)
	}
	if err := s.ctrl.Initialize(head); err != nil {
		return fmt.Errorf("repl: resume head: %w", err)
	}
	s.log.Info("resumed chain", "head", head.Hex())
	return nil
}

// persistHead writes the current head record, if persistence is on.
func (s *session) persistHead(head commitment.Commitment) {
	if s.headFile == "" {
		return
	}
	if err := os.WriteFile(s.headFile, []byte(head.Hex()+"\n"), 0o644); err != nil {
		s.log.Error("persist head", "err", err)
	}
}

// execute runs one directive line and returns the text to print.
func (s *session) execute(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ";") {
		return "", nil
	}
	verb := line
	rest := ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		verb, rest = line[:i], strings.TrimSpace(line[i+1:])
	}

	switch verb {
	case "commit":
		return s.doCommit(rest)
	case "chain":
		return s.doChain(rest)
	case "prove":
		return s.doProve()
	case "verify":
		return s.doVerify(rest)
	case "head":
		return s.doHead()
	case "quit", "exit":
		return "", errQuit
	default:
		return "", fmt.Errorf("repl: unknown directive %q", verb)
	}
}

// doCommit evaluates the expression and commits the resulting payload.
func (s *session) doCommit(src string) (string, error) {
	if src == "" {
		return "", errors.New("repl: commit needs an expression")
	}
	expr, err := lang.Parse(src)
	if err != nil {
		return "", err
	}
	payload, _, err := lang.Eval(expr, lang.NewEnv(nil), lang.DefaultStepLimit)
	if err != nil {
		return "", err
	}
	c, err := s.engine.Commit(payload)
	if err != nil {
		return "", err
	}
	return c.Hex(), nil
}

// doChain parses "<commitmentHex> <input-expr>" and runs one chain step.
// The first chain call establishes the genesis head.
func (s *session) doChain(args string) (string, error) {
	fields := strings.SplitN(args, " ", 2)
	if len(fields) != 2 {
		return "", errors.New("repl: usage: chain <commitment> <input>")
	}
	prior, err := commitment.Parse(strings.TrimSpace(fields[0]))
	if err != nil {
		return "", err
	}
	inputExpr, err := lang.Parse(strings.TrimSpace(fields[1]))
	if err != nil {
		return "", err
	}
	input, _, err := lang.Eval(inputExpr, lang.NewEnv(nil), lang.DefaultStepLimit)
	if err != nil {
		return "", err
	}

	if s.ctrl.State() == chain.Uninitialized {
		if err := s.ctrl.Initialize(prior); err != nil {
			return "", err
		}
	}
	rec, err := s.ctrl.Chain(prior, input)
	if err != nil {
		return "", err
	}
	s.persistHead(rec.NewHead)
	return fmt.Sprintf("(%s . %s)", rec.Output, rec.NewHead.Hex()), nil
}

// doProve proves the most recent unproven step and retains the artifact.
func (s *session) doProve() (string, error) {
	rec, err := s.ctrl.LatestUnproven()
	if err != nil {
		return "", err
	}
	ctx := context.Background()
	if s.proveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.proveTimeout)
		defer cancel()
	}
	start := time.Now()
	_, id, err := s.mgr.Prove(ctx, rec)
	if err != nil {
		return "", err
	}
	s.ctrl.MarkProven(rec.Index)
	s.log.Info("proved step", "index", rec.Index, "elapsed", time.Since(start))
	return fmt.Sprintf("proof %s", id), nil
}

// doVerify checks a proof by identifier.
func (s *session) doVerify(arg string) (string, error) {
	id, err := prover.ParseProofID(strings.TrimSpace(arg))
	if err != nil {
		return "", err
	}
	res, err := s.mgr.Verify(id)
	if err != nil {
		return "", err
	}
	if !res.OK {
		return fmt.Sprintf("verified: false (%s)", res.Reason), nil
	}
	return "verified: true", nil
}

// doHead reports the current chain head.
func (s *session) doHead() (string, error) {
	head, ok := s.ctrl.Head()
	if !ok {
		return "head: none", nil
	}
	return "head: " + head.Hex(), nil
}
