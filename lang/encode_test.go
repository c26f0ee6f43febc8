package lang

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDeterministic(t *testing.T) {
	counter := evalSource(t, counterSource)

	b1, err := EncodeValue(counter)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	b2, err := EncodeValue(counter)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Error("same value encoded to different bytes")
	}
}

func TestEncodeIndependentOfEnvLayout(t *testing.T) {
	body := mustParse(t, "(+ a b)")

	// Both bindings in a single frame.
	flat := NewEnv(nil)
	flat.Define("b", NumUint64(2))
	flat.Define("a", NumUint64(1))

	// Same bindings split across two frames.
	outer := NewEnv(nil)
	outer.Define("a", NumUint64(1))
	nested := NewEnv(outer)
	nested.Define("b", NumUint64(2))

	c1 := Value{Kind: KindClosure, Fn: &Closure{Params: []string{"x"}, Body: body, Env: flat}}
	c2 := Value{Kind: KindClosure, Fn: &Closure{Params: []string{"x"}, Body: body, Env: nested}}

	b1, err := EncodeValue(c1)
	if err != nil {
		t.Fatalf("EncodeValue flat: %v", err)
	}
	b2, err := EncodeValue(c2)
	if err != nil {
		t.Fatalf("EncodeValue nested: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Error("environment layout leaked into the canonical encoding")
	}
}

func TestEncodeShadowingInnermostWins(t *testing.T) {
	body := mustParse(t, "n")

	outer := NewEnv(nil)
	outer.Define("n", NumUint64(1))
	inner := NewEnv(outer)
	inner.Define("n", NumUint64(2))

	shadowed := Value{Kind: KindClosure, Fn: &Closure{Body: body, Env: inner}}

	flat := NewEnv(nil)
	flat.Define("n", NumUint64(2))
	plain := Value{Kind: KindClosure, Fn: &Closure{Body: body, Env: flat}}

	b1, err := EncodeValue(shadowed)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	b2, err := EncodeValue(plain)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Error("shadowed outer binding leaked into the encoding")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cases := []string{
		"nil",
		"42",
		"(quote foo)",
		"(cons 1 (cons 2 nil))",
		"(lambda (x) (+ x 1))",
	}
	for _, src := range cases {
		v := evalSource(t, src)
		b, err := EncodeValue(v)
		if err != nil {
			t.Fatalf("%s: EncodeValue: %v", src, err)
		}
		got, err := DecodeValue(b)
		if err != nil {
			t.Fatalf("%s: DecodeValue: %v", src, err)
		}
		b2, err := EncodeValue(got)
		if err != nil {
			t.Fatalf("%s: re-encode: %v", src, err)
		}
		if !bytes.Equal(b, b2) {
			t.Errorf("%s: round trip changed the encoding", src)
		}
	}
}

func TestRoundTrippedClosureStillRuns(t *testing.T) {
	counter := evalSource(t, counterSource)
	b, err := EncodeValue(counter)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	revived, err := DecodeValue(b)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	out, next, _, err := ApplyChain(revived, NumUint64(9), DefaultStepLimit)
	if err != nil {
		t.Fatalf("ApplyChain: %v", err)
	}
	if out.Num.Uint64() != 9 {
		t.Errorf("output: got %s, want 9", out)
	}
	out2, _, _, err := ApplyChain(next, NumUint64(12), DefaultStepLimit)
	if err != nil {
		t.Fatalf("ApplyChain second step: %v", err)
	}
	if out2.Num.Uint64() != 21 {
		t.Errorf("second output: got %s, want 21", out2)
	}
}

func TestEncodeBuiltinFails(t *testing.T) {
	// Referencing + in value position yields a builtin, which has no
	// canonical encoding.
	v := evalSource(t, "+")
	if v.Kind != KindBuiltin {
		t.Fatalf("got %s, want builtin", v)
	}
	if _, err := EncodeValue(v); !errors.Is(err, ErrNotSerializable) {
		t.Errorf("got %v, want ErrNotSerializable", err)
	}

	// Same when the builtin is buried inside a structure.
	buried := Cons(NumUint64(1), v)
	if _, err := EncodeValue(buried); !errors.Is(err, ErrNotSerializable) {
		t.Errorf("buried builtin: got %v, want ErrNotSerializable", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		{0xff},
		{0x01, 0x02, 0x03},
	}
	for _, b := range cases {
		if _, err := DecodeValue(b); !errors.Is(err, ErrMalformedEncoding) {
			t.Errorf("DecodeValue(%x): got %v, want ErrMalformedEncoding", b, err)
		}
	}
}

func TestHashValueDistinguishesKinds(t *testing.T) {
	// The symbol "3" and the number 3 must not collide.
	if HashValue(Sym("3")) == HashValue(NumUint64(3)) {
		t.Error("symbol and number digests collide")
	}
	if HashValue(Nil()) == HashValue(Sym("")) {
		t.Error("nil and empty symbol digests collide")
	}
}
