package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/chainseal/chainseal/commitment"
)

const counterSource = `(let ((mk (lambda (self) (lambda (n) (lambda (x) (cons (+ n x) ((self self) (+ n x)))))))) ((mk mk) 0))`

func newMemorySession(t *testing.T) *session {
	t.Helper()
	s, err := newSession(commitment.NewMemoryStore(), commitment.NewMemoryStore(), "", 0, 0, nil)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	return s
}

// mustExecute runs a directive and fails the test on error.
func mustExecute(t *testing.T, s *session, line string) string {
	t.Helper()
	out, err := s.execute(line)
	if err != nil {
		t.Fatalf("execute(%q): %v", line, err)
	}
	return out
}

func TestTranscript(t *testing.T) {
	s := newMemorySession(t)

	genesis := mustExecute(t, s, "commit "+counterSource)
	if !strings.HasPrefix(genesis, "0x") || len(genesis) != 66 {
		t.Fatalf("commit output: %q", genesis)
	}

	// chain genesis 9 -> output 9
	out := mustExecute(t, s, "chain "+genesis+" 9")
	if !strings.HasPrefix(out, "(9 . 0x") {
		t.Fatalf("first chain output: %q", out)
	}
	h1 := headFromOutput(t, out)

	out = mustExecute(t, s, "chain "+h1+" 12")
	if !strings.HasPrefix(out, "(21 . 0x") {
		t.Fatalf("second chain output: %q", out)
	}
	h2 := headFromOutput(t, out)

	out = mustExecute(t, s, "chain "+h2+" 14")
	if !strings.HasPrefix(out, "(35 . 0x") {
		t.Fatalf("third chain output: %q", out)
	}

	// prove and verify the latest step.
	proveOut := mustExecute(t, s, "prove")
	if !strings.HasPrefix(proveOut, "proof zs") {
		t.Fatalf("prove output: %q", proveOut)
	}
	id := strings.TrimPrefix(proveOut, "proof ")

	verifyOut := mustExecute(t, s, "verify "+id)
	if verifyOut != "verified: true" {
		t.Fatalf("verify output: %q", verifyOut)
	}

	// Replaying a superseded head fails.
	if _, err := s.execute("chain " + h1 + " 12"); err == nil {
		t.Fatal("replay against a superseded head succeeded")
	}
}

// headFromOutput extracts the commitment hex from "(out . 0x...)".
func headFromOutput(t *testing.T, out string) string {
	t.Helper()
	i := strings.Index(out, "0x")
	if i < 0 || !strings.HasSuffix(out, ")") {
		t.Fatalf("malformed chain output: %q", out)
	}
	return strings.TrimSuffix(out[i:], ")")
}

func TestProveAllSteps(t *testing.T) {
	s := newMemorySession(t)
	genesis := mustExecute(t, s, "commit "+counterSource)

	head := genesis
	for _, in := range []string{"9", "12", "14"} {
		out := mustExecute(t, s, "chain "+head+" "+in)
		head = headFromOutput(t, out)
		proveOut := mustExecute(t, s, "prove")
		id := strings.TrimPrefix(proveOut, "proof ")
		if got := mustExecute(t, s, "verify "+id); got != "verified: true" {
			t.Fatalf("verify after chain %s: %q", in, got)
		}
	}

	// Everything is proven now.
	if _, err := s.execute("prove"); err == nil {
		t.Fatal("prove with no unproven step succeeded")
	}
}

func TestDirectiveErrors(t *testing.T) {
	s := newMemorySession(t)

	cases := []string{
		"frobnicate",
		"commit",
		"chain 0x12 9",
		"chain",
		"verify nonsense",
	}
	for _, line := range cases {
		if _, err := s.execute(line); err == nil {
			t.Errorf("execute(%q): expected error", line)
		}
	}

	// Blank lines and comments are ignored.
	for _, line := range []string{"", "   ", "; a comment"} {
		if out, err := s.execute(line); err != nil || out != "" {
			t.Errorf("execute(%q): got %q, %v", line, out, err)
		}
	}
}

func TestHeadDirective(t *testing.T) {
	s := newMemorySession(t)
	if out := mustExecute(t, s, "head"); out != "head: none" {
		t.Errorf("uninitialized head: %q", out)
	}

	genesis := mustExecute(t, s, "commit "+counterSource)
	out := mustExecute(t, s, "chain "+genesis+" 9")
	want := "head: " + headFromOutput(t, out)
	if got := mustExecute(t, s, "head"); got != want {
		t.Errorf("head: got %q, want %q", got, want)
	}
}

func TestSessionResumesAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	commitments, err := commitment.NewFileStore(filepath.Join(dir, "commitments"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	proofs, err := commitment.NewFileStore(filepath.Join(dir, "proofs"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	headFile := filepath.Join(dir, "HEAD")

	s1, err := newSession(commitments, proofs, headFile, 0, 0, nil)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	genesis := mustExecute(t, s1, "commit "+counterSource)
	out := mustExecute(t, s1, "chain "+genesis+" 9")
	h1 := headFromOutput(t, out)

	// "Restart": fresh stores over the same directory.
	commitments2, err := commitment.NewFileStore(filepath.Join(dir, "commitments"))
	if err != nil {
		t.Fatalf("reopen commitments: %v", err)
	}
	proofs2, err := commitment.NewFileStore(filepath.Join(dir, "proofs"))
	if err != nil {
		t.Fatalf("reopen proofs: %v", err)
	}
	s2, err := newSession(commitments2, proofs2, headFile, 0, 0, nil)
	if err != nil {
		t.Fatalf("resumed session: %v", err)
	}

	// The resumed chain continues from the persisted head.
	out = mustExecute(t, s2, "chain "+h1+" 12")
	if !strings.HasPrefix(out, "(21 . 0x") {
		t.Fatalf("resumed chain output: %q", out)
	}

	// The stale genesis head is rejected by the resumed controller.
	if _, err := s2.execute("chain " + genesis + " 9"); err == nil {
		t.Fatal("resumed session accepted a stale head")
	}
}
