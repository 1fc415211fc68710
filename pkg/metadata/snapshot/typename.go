package snapshot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/panbanda/ilscan/pkg/metadata"
)

// ParseTypeName parses the textual type-reference syntax used by snapshots:
//
//	[Scope]Ns.Outer/Inner`1<ArgA,ArgB>[]&*
//	!0 (type generic parameter)  !!1 (method generic parameter)
//
// The scope prefix, instantiation arguments and suffixes are optional. Bare
// identifiers such as "T" are returned as named references; the builder
// rebinds them to generic parameters once it knows the declaring context.
func ParseTypeName(s string) (*metadata.TypeRef, error) {
	p := &typeNameParser{src: s}
	ref, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return ref, nil
}

type typeNameParser struct {
	src string
	pos int
}

func (p *typeNameParser) errorf(format string, args ...any) error {
	return fmt.Errorf("type name %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *typeNameParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeNameParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeNameParser) parseType() (*metadata.TypeRef, error) {
	var ref *metadata.TypeRef
	switch p.peek() {
	case '!':
		gp, err := p.parseGenericParam()
		if err != nil {
			return nil, err
		}
		ref = gp
	default:
		scope := ""
		if p.peek() == '[' {
			end := strings.IndexByte(p.src[p.pos:], ']')
			if end < 0 {
				return nil, p.errorf("unterminated scope")
			}
			scope = strings.TrimSpace(p.src[p.pos+1 : p.pos+end])
			p.pos += end + 1
		}
		name := p.parseName()
		if name == "" {
			return nil, p.errorf("missing type name")
		}
		ref = metadata.NamedRef(scope, name)
		if p.peek() == '<' {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			ref.Args = args
		}
	}
	return p.parseSuffixes(ref)
}

func (p *typeNameParser) parseGenericParam() (*metadata.TypeRef, error) {
	p.pos++
	methodOwned := false
	if p.pos < len(p.src) && p.src[p.pos] == '!' {
		methodOwned = true
		p.pos++
	}
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return nil, p.errorf("expected generic parameter position")
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return nil, p.errorf("bad generic parameter position: %v", err)
	}
	return &metadata.TypeRef{Kind: metadata.RefGenericParam, Position: n, MethodOwned: methodOwned}, nil
}

func (p *typeNameParser) parseName() string {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("<>,[]&* ", rune(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeNameParser) parseArgs() ([]*metadata.TypeRef, error) {
	p.pos++
	var args []*metadata.TypeRef
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch p.peek() {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return args, nil
		default:
			return nil, p.errorf("expected ',' or '>'")
		}
	}
}

func (p *typeNameParser) parseSuffixes(ref *metadata.TypeRef) (*metadata.TypeRef, error) {
	for {
		switch p.peek() {
		case '[':
			p.pos++
			rank := 1
			for p.peek() == ',' {
				rank++
				p.pos++
			}
			if p.peek() != ']' {
				return nil, p.errorf("expected ']'")
			}
			p.pos++
			ref = metadata.ArrayOf(ref, rank)
		case '&':
			p.pos++
			ref = metadata.ByRefTo(ref)
		case '*':
			p.pos++
			ref = metadata.PointerTo(ref)
		default:
			return ref, nil
		}
	}
}
