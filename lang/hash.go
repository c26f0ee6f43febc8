package lang

import (
	"sort"

	"golang.org/x/crypto/sha3"
)

// Domain separation tags for structural hashing. Distinct tags per kind
// keep e.g. the symbol "3" and the number 3 from colliding.
var (
	hashTagNil     = []byte("seal/nil")
	hashTagNum     = []byte("seal/num")
	hashTagSym     = []byte("seal/sym")
	hashTagCons    = []byte("seal/cons")
	hashTagClosure = []byte("seal/closure")
	hashTagBuiltin = []byte("seal/builtin")
	hashTagEnv     = []byte("seal/env")
	hashTagFrame   = []byte("seal/frame")
)

// HashValue computes a structural keccak-256 digest of v. Unlike
// EncodeValue it is total: builtins hash by name, so evaluation traces can
// reference any runtime value.
func HashValue(v Value) [32]byte {
	h := sha3.NewLegacyKeccak256()
	writeValue(h, v, 0)
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// hashWriter is the subset of hash.Hash the walkers need.
type hashWriter interface {
	Write(p []byte) (int, error)
}

func writeValue(h hashWriter, v Value, depth int) {
	if depth > maxEncodeDepth {
		// Beyond the bound, fold in a fixed marker. Such values are not
		// serializable anyway, so their digests never reach a commitment.
		h.Write([]byte("seal/deep"))
		return
	}
	switch v.Kind {
	case KindNil:
		h.Write(hashTagNil)
	case KindNum:
		h.Write(hashTagNum)
		b := v.Num.Bytes32()
		h.Write(b[:])
	case KindSym:
		h.Write(hashTagSym)
		h.Write([]byte(v.Sym))
	case KindCons:
		h.Write(hashTagCons)
		car := HashValue(*v.Car)
		cdr := HashValue(*v.Cdr)
		h.Write(car[:])
		h.Write(cdr[:])
	case KindClosure:
		h.Write(hashTagClosure)
		for _, p := range v.Fn.Params {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
		body := HashValue(v.Fn.Body)
		h.Write(body[:])
		env := HashEnv(v.Fn.Env)
		h.Write(env[:])
	case KindBuiltin:
		h.Write(hashTagBuiltin)
		h.Write([]byte(v.Builtin))
	}
}

// HashEnv digests the visible bindings of an environment, sorted by name,
// matching the canonicalization used by EncodeValue.
func HashEnv(e *Env) [32]byte {
	names, vals := e.flatten()
	idx := make([]int, len(names))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return names[idx[a]] < names[idx[b]] })

	h := sha3.NewLegacyKeccak256()
	h.Write(hashTagEnv)
	for _, i := range idx {
		h.Write([]byte(names[i]))
		h.Write([]byte{0})
		v := HashValue(vals[i])
		h.Write(v[:])
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// hashFrameInput binds an expression to the environment it is evaluated
// in; it is the per-frame input digest recorded in traces.
func hashFrameInput(expr Value, env *Env) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(hashTagFrame)
	e := HashValue(expr)
	h.Write(e[:])
	ev := HashEnv(env)
	h.Write(ev[:])
	var out [32]byte
	h.Sum(out[:0])
	return out
}
