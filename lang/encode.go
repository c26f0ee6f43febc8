package lang

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Encoding errors.
var (
	// ErrNotSerializable marks values outside the canonically encodable
	// subset (builtin references, structures beyond the depth bound).
	ErrNotSerializable = errors.New("lang: value has no canonical encoding")
	// ErrMalformedEncoding marks bytes that do not decode to a value.
	ErrMalformedEncoding = errors.New("lang: malformed value encoding")
)

// maxEncodeDepth bounds recursion so pathological structures fail with
// ErrNotSerializable instead of exhausting the stack.
const maxEncodeDepth = 512

// EncodeValue produces the canonical RLP encoding of v. The encoding is a
// pure function of the value's structure: the same payload always yields
// the same bytes, regardless of how its environment frames were laid out
// during evaluation. Closures encode as (params, body, captured bindings
// sorted by name); builtins and over-deep structures return
// ErrNotSerializable.
func EncodeValue(v Value) ([]byte, error) {
	tree, err := encodeTree(v, 0)
	if err != nil {
		return nil, err
	}
	b, err := rlp.EncodeToBytes(tree)
	if err != nil {
		return nil, fmt.Errorf("lang: rlp encode: %w", err)
	}
	return b, nil
}

// encodeTree lowers a value to the nested list form the RLP codec accepts.
func encodeTree(v Value, depth int) (interface{}, error) {
	if depth > maxEncodeDepth {
		return nil, ErrNotSerializable
	}
	switch v.Kind {
	case KindNil:
		return []interface{}{uint64(KindNil)}, nil
	case KindNum:
		return []interface{}{uint64(KindNum), v.Num.Bytes()}, nil
	case KindSym:
		return []interface{}{uint64(KindSym), []byte(v.Sym)}, nil
	case KindCons:
		car, err := encodeTree(*v.Car, depth+1)
		if err != nil {
			return nil, err
		}
		cdr, err := encodeTree(*v.Cdr, depth+1)
		if err != nil {
			return nil, err
		}
		return []interface{}{uint64(KindCons), car, cdr}, nil
	case KindClosure:
		return encodeClosure(v.Fn, depth)
	case KindBuiltin:
		return nil, ErrNotSerializable
	default:
		return nil, ErrNotSerializable
	}
}

func encodeClosure(fn *Closure, depth int) (interface{}, error) {
	params := make([]interface{}, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = []byte(p)
	}
	body, err := encodeTree(fn.Body, depth+1)
	if err != nil {
		return nil, err
	}
	env, err := encodeEnv(fn.Env, depth+1)
	if err != nil {
		return nil, err
	}
	return []interface{}{uint64(KindClosure), params, body, env}, nil
}

// encodeEnv flattens the frame chain (innermost binding wins) and sorts
// by name, so two environments with the same visible bindings encode
// identically whatever their frame structure was.
func encodeEnv(e *Env, depth int) (interface{}, error) {
	names, vals := e.flatten()
	idx := make([]int, len(names))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return names[idx[a]] < names[idx[b]] })

	out := make([]interface{}, 0, len(names))
	for _, i := range idx {
		ev, err := encodeTree(vals[i], depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, []interface{}{[]byte(names[i]), ev})
	}
	return out, nil
}

// DecodeValue parses a canonical encoding back into a value. Closure
// environments decode into a single flat frame, which is observationally
// equivalent to the frame chain they were captured from.
func DecodeValue(b []byte) (Value, error) {
	s := rlp.NewStream(bytes.NewReader(b), uint64(len(b)))
	v, err := decodeValue(s, 0)
	if err != nil {
		return Value{}, err
	}
	// Trailing bytes after the value are malformed.
	if _, _, err := s.Kind(); err == nil {
		return Value{}, ErrMalformedEncoding
	}
	return v, nil
}

func decodeValue(s *rlp.Stream, depth int) (Value, error) {
	if depth > maxEncodeDepth {
		return Value{}, ErrMalformedEncoding
	}
	if _, err := s.List(); err != nil {
		return Value{}, ErrMalformedEncoding
	}
	tag, err := s.Uint64()
	if err != nil {
		return Value{}, ErrMalformedEncoding
	}
	var v Value
	switch Kind(tag) {
	case KindNil:
		v = Nil()
	case KindNum:
		raw, err := s.Bytes()
		if err != nil || len(raw) > 32 {
			return Value{}, ErrMalformedEncoding
		}
		n := new(uint256.Int).SetBytes(raw)
		if n.Cmp(scalarModulus) >= 0 {
			return Value{}, ErrMalformedEncoding
		}
		v = Value{Kind: KindNum, Num: n}
	case KindSym:
		raw, err := s.Bytes()
		if err != nil {
			return Value{}, ErrMalformedEncoding
		}
		v = Sym(string(raw))
	case KindCons:
		car, err := decodeValue(s, depth+1)
		if err != nil {
			return Value{}, err
		}
		cdr, err := decodeValue(s, depth+1)
		if err != nil {
			return Value{}, err
		}
		v = Cons(car, cdr)
	case KindClosure:
		v, err = decodeClosure(s, depth)
		if err != nil {
			return Value{}, err
		}
	default:
		return Value{}, ErrMalformedEncoding
	}
	if err := s.ListEnd(); err != nil {
		return Value{}, ErrMalformedEncoding
	}
	return v, nil
}

func decodeClosure(s *rlp.Stream, depth int) (Value, error) {
	if _, err := s.List(); err != nil {
		return Value{}, ErrMalformedEncoding
	}
	var params []string
	for {
		raw, err := s.Bytes()
		if err == rlp.EOL {
			break
		}
		if err != nil {
			return Value{}, ErrMalformedEncoding
		}
		params = append(params, string(raw))
	}
	if err := s.ListEnd(); err != nil {
		return Value{}, ErrMalformedEncoding
	}

	body, err := decodeValue(s, depth+1)
	if err != nil {
		return Value{}, err
	}

	if _, err := s.List(); err != nil {
		return Value{}, ErrMalformedEncoding
	}
	env := NewEnv(nil)
	for {
		if _, err := s.List(); err == rlp.EOL {
			break
		} else if err != nil {
			return Value{}, ErrMalformedEncoding
		}
		name, err := s.Bytes()
		if err != nil {
			return Value{}, ErrMalformedEncoding
		}
		val, err := decodeValue(s, depth+1)
		if err != nil {
			return Value{}, err
		}
		if err := s.ListEnd(); err != nil {
			return Value{}, ErrMalformedEncoding
		}
		env.Define(string(name), val)
	}
	if err := s.ListEnd(); err != nil {
		return Value{}, ErrMalformedEncoding
	}

	return Value{Kind: KindClosure, Fn: &Closure{Params: params, Body: body, Env: env}}, nil
}
