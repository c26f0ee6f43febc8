// Command chainseal is the line-oriented front-end to the chained
// functional commitment engine. It reads directives from stdin:
//
//	commit <expression>      commit an evaluated payload, print its digest
//	chain <commitment> <in>  apply the head closure to an input
//	prove                    prove the most recent unproven step
//	verify <proof-id>        check a proof by identifier
//	head                     print the current chain head
//
// With -datadir, commitments, proofs and the chain head persist across
// runs so a chain can be resumed.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chainseal/chainseal/commitment"
	"github.com/chainseal/chainseal/log"
)

var (
	version = "v0.1.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, in io.Reader, out io.Writer) int {
	fs := flag.NewFlagSet("chainseal", flag.ContinueOnError)

	datadir := fs.String("datadir", "", "Data directory for persistent stores (empty = in-memory)")
	verbosity := fs.Int("verbosity", 3, "Log level 0-5 (0=silent, 5=trace)")
	stepLimit := fs.Int("step-limit", 0, "Evaluator step budget per chain step (0 = default)")
	proveTimeout := fs.Duration("prove-timeout", 2*time.Minute, "Timeout for proof generation (0 = none)")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if *showVersion {
		fmt.Fprintf(out, "chainseal %s (commit %s)\n", version, commit)
		return 0
	}

	logger := log.New(log.LevelFromVerbosity(*verbosity))
	log.SetDefault(logger)

	commitments, proofs, headFile, err := openStores(*datadir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	sess, err := newSession(commitments, proofs, headFile, *stepLimit, *proveTimeout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text, err := sess.execute(scanner.Text())
		if errors.Is(err, errQuit) {
			return 0
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if text != "" {
			fmt.Fprintln(out, text)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// openStores builds the commitment and proof stores. An empty datadir
// selects in-memory stores with no head persistence.
func openStores(datadir string) (commitments, proofs commitment.Store, headFile string, err error) {
	if datadir == "" {
		return commitment.NewMemoryStore(), commitment.NewMemoryStore(), "", nil
	}
	commitments, err = commitment.NewFileStore(filepath.Join(datadir, "commitments"))
	if err != nil {
		return nil, nil, "", err
	}
	proofs, err = commitment.NewFileStore(filepath.Join(datadir, "proofs"))
	if err != nil {
		return nil, nil, "", err
	}
	return commitments, proofs, filepath.Join(datadir, "HEAD"), nil
}
