package lang

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// ErrParse is returned for unreadable source text.
var ErrParse = errors.New("lang: parse error")

// Parse reads a single expression from src. Trailing input after the
// expression is an error.
func Parse(src string) (Value, error) {
	toks := tokenize(src)
	p := &parser{toks: toks}
	v, err := p.read()
	if err != nil {
		return Value{}, err
	}
	if p.pos != len(p.toks) {
		return Value{}, fmt.Errorf("%w: trailing input %q", ErrParse, p.toks[p.pos])
	}
	return v, nil
}

// ParsePrefix reads one expression from src and returns it together with
// the unconsumed remainder, for callers that read an expression followed
// by further arguments.
func ParsePrefix(src string) (Value, string, error) {
	toks := tokenize(src)
	p := &parser{toks: toks}
	v, err := p.read()
	if err != nil {
		return Value{}, "", err
	}
	return v, strings.Join(p.toks[p.pos:], " "), nil
}

type parser struct {
	toks []string
	pos  int
}

func tokenize(src string) []string {
	src = strings.ReplaceAll(src, "(", " ( ")
	src = strings.ReplaceAll(src, ")", " ) ")
	return strings.Fields(src)
}

func (p *parser) read() (Value, error) {
	if p.pos >= len(p.toks) {
		return Value{}, fmt.Errorf("%w: unexpected end of input", ErrParse)
	}
	tok := p.toks[p.pos]
	p.pos++

	switch tok {
	case "(":
		return p.readList()
	case ")":
		return Value{}, fmt.Errorf("%w: unexpected )", ErrParse)
	default:
		return readAtom(tok)
	}
}

func (p *parser) readList() (Value, error) {
	var elems []Value
	for {
		if p.pos >= len(p.toks) {
			return Value{}, fmt.Errorf("%w: unterminated list", ErrParse)
		}
		if p.toks[p.pos] == ")" {
			p.pos++
			return list(elems...), nil
		}
		// Dotted pair tail: (a . b)
		if p.toks[p.pos] == "." && len(elems) > 0 {
			p.pos++
			tail, err := p.read()
			if err != nil {
				return Value{}, err
			}
			if p.pos >= len(p.toks) || p.toks[p.pos] != ")" {
				return Value{}, fmt.Errorf("%w: malformed dotted pair", ErrParse)
			}
			p.pos++
			out := tail
			for i := len(elems) - 1; i >= 0; i-- {
				out = Cons(elems[i], out)
			}
			return out, nil
		}
		v, err := p.read()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
}

func readAtom(tok string) (Value, error) {
	if tok == "nil" {
		return Nil(), nil
	}
	if isNumeral(tok) {
		n, err := uint256.FromDecimal(tok)
		if err != nil {
			return Value{}, fmt.Errorf("%w: numeral %q: %v", ErrParse, tok, err)
		}
		return Num(n), nil
	}
	return Sym(tok), nil
}

func isNumeral(tok string) bool {
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(tok) > 0
}
