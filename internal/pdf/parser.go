package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrSyntax = errors.New("pdf syntax error")
)

func isWhite(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isWhite(c) && !isDelim(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// parser is a cursor over PDF bytes. It is used for file bodies, object
// streams and content streams alike.
type parser struct {
	data []byte
	pos  int
}

func newParser(data []byte, pos int) *parser {
	return &parser{data: data, pos: pos}
}

func (p *parser) eof() bool { return p.pos >= len(p.data) }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

// skipWS skips white space and comments.
func (p *parser) skipWS() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhite(c) {
			p.pos++
			continue
		}
		if c == '%' {
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		return
	}
}

func (p *parser) hasPrefix(s string) bool {
	return bytes.HasPrefix(p.data[p.pos:], []byte(s))
}

// keyword reads a run of regular characters.
func (p *parser) keyword() string {
	start := p.pos
	for p.pos < len(p.data) && isRegular(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

func (p *parser) expectKeyword(kw string) error {
	p.skipWS()
	if got := p.keyword(); got != kw {
		return p.errorf("expected %q, got %q", kw, got)
	}
	return nil
}

func (p *parser) readInt() (int64, error) {
	p.skipWS()
	start := p.pos
	if p.pos < len(p.data) && (p.data[p.pos] == '+' || p.data[p.pos] == '-') {
		p.pos++
	}
	for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("expected integer")
	}
	return strconv.ParseInt(string(p.data[start:p.pos]), 10, 64)
}

// parseObject reads the next object. Bare words other than true, false and
// null are returned as Keyword.
func (p *parser) parseObject() (Object, error) {
	p.skipWS()
	if p.eof() {
		return nil, p.errorf("unexpected end of data")
	}

	c := p.data[p.pos]
	switch {
	case c == '/':
		return p.parseName(), nil
	case c == '(':
		return p.parseLiteral()
	case c == '<':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			return p.parseDict()
		}
		return p.parseHex()
	case c == '[':
		return p.parseArray()
	case c == '+' || c == '-' || c == '.' || isDigit(c):
		return p.parseNumberOrRef()
	case isDelim(c):
		p.pos++
		return nil, p.errorf("unexpected delimiter %q", c)
	}

	switch kw := p.keyword(); kw {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	case "null":
		return Null{}, nil
	default:
		return Keyword(kw), nil
	}
}

func (p *parser) parseName() Name {
	p.pos++ // '/'
	var out []byte
	for p.pos < len(p.data) && isRegular(p.data[p.pos]) {
		c := p.data[p.pos]
		if c == '#' && p.pos+2 < len(p.data) {
			if v, err := strconv.ParseUint(string(p.data[p.pos+1:p.pos+3]), 16, 8); err == nil {
				out = append(out, byte(v))
				p.pos += 3
				continue
			}
		}
		out = append(out, c)
		p.pos++
	}
	return Name(out)
}

func (p *parser) parseLiteral() (Object, error) {
	p.pos++ // '('
	var out []byte
	depth := 1
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return String{Value: out}, nil
			}
			out = append(out, c)
		case '\r':
			if p.pos < len(p.data) && p.data[p.pos] == '\n' {
				p.pos++
			}
			out = append(out, '\n')
		case '\\':
			if p.pos >= len(p.data) {
				return nil, p.errorf("unterminated string")
			}
			e := p.data[p.pos]
			p.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if p.pos < len(p.data) && p.data[p.pos] == '\n' {
					p.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '7'; i++ {
						v = v*8 + int(p.data[p.pos]-'0')
						p.pos++
					}
					out = append(out, byte(v))
					continue
				}
				out = append(out, e)
			}
		default:
			out = append(out, c)
		}
	}
	return nil, p.errorf("unterminated string")
}

func (p *parser) parseHex() (Object, error) {
	p.pos++ // '<'
	var digits []byte
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := range out {
				v, err := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
				if err != nil {
					return nil, p.errorf("bad hex string")
				}
				out[i] = byte(v)
			}
			return String{Value: out, Hex: true}, nil
		}
		if isWhite(c) {
			continue
		}
		digits = append(digits, c)
	}
	return nil, p.errorf("unterminated hex string")
}

func (p *parser) parseArray() (Object, error) {
	p.pos++ // '['
	arr := Array{}
	for {
		p.skipWS()
		if p.eof() {
			return nil, p.errorf("unterminated array")
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (p *parser) parseDict() (Object, error) {
	p.pos += 2 // '<<'
	d := Dict{}
	for {
		p.skipWS()
		if p.eof() {
			return nil, p.errorf("unterminated dictionary")
		}
		if p.hasPrefix(">>") {
			p.pos += 2
			return d, nil
		}
		key, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		name, ok := key.(Name)
		if !ok {
			return nil, p.errorf("dictionary key is %T, not a name", key)
		}
		val, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		if _, isNull := val.(Null); isNull {
			continue
		}
		d[name] = val
	}
}

func (p *parser) parseNumberOrRef() (Object, error) {
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if !(isDigit(c) || c == '.' || c == '+' || c == '-') {
			break
		}
		p.pos++
	}
	tok := string(p.data[start:p.pos])

	if !bytes.ContainsRune(p.data[start:p.pos], '.') {
		n, err := strconv.ParseInt(tok, 10, 64)
		if err == nil {
			if n >= 0 {
				if ref, ok := p.tryRef(int(n)); ok {
					return ref, nil
				}
			}
			return Integer(n), nil
		}
	}

	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, p.errorf("bad number %q", tok)
	}
	return Real(f), nil
}

// tryRef checks whether num is followed by "gen R" and consumes it if so.
func (p *parser) tryRef(num int) (Ref, bool) {
	save := p.pos
	p.skipWS()
	genStart := p.pos
	for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
		p.pos++
	}
	if genStart == p.pos {
		p.pos = save
		return Ref{}, false
	}
	gen, _ := strconv.Atoi(string(p.data[genStart:p.pos]))
	p.skipWS()
	if p.pos < len(p.data) && p.data[p.pos] == 'R' &&
		(p.pos+1 == len(p.data) || !isRegular(p.data[p.pos+1])) {
		p.pos++
		return Ref{Num: num, Gen: gen}, true
	}
	p.pos = save
	return Ref{}, false
}

// lengthFunc resolves a stream /Length that may be an indirect reference.
type lengthFunc func(Object) (int, bool)

// parseIndirect reads "num gen obj ... endobj" at the cursor.
func (p *parser) parseIndirect(length lengthFunc) (Ref, Object, error) {
	num, err := p.readInt()
	if err != nil {
		return Ref{}, nil, err
	}
	gen, err := p.readInt()
	if err != nil {
		return Ref{}, nil, err
	}
	if err := p.expectKeyword("obj"); err != nil {
		return Ref{}, nil, err
	}
	ref := Ref{Num: int(num), Gen: int(gen)}

	obj, err := p.parseObject()
	if err != nil {
		return ref, nil, err
	}

	if d, ok := obj.(Dict); ok {
		p.skipWS()
		if p.hasPrefix("stream") {
			p.pos += len("stream")
			data, err := p.streamData(d, length)
			if err != nil {
				return ref, nil, err
			}
			obj = &Stream{Dict: d, Data: data}
		}
	}

	return ref, obj, nil
}

func (p *parser) streamData(d Dict, length lengthFunc) ([]byte, error) {
	if p.hasPrefix("\r\n") {
		p.pos += 2
	} else if p.hasPrefix("\n") || p.hasPrefix("\r") {
		p.pos++
	}
	start := p.pos

	if length != nil {
		if n, ok := length(d["Length"]); ok && n >= 0 && start+n <= len(p.data) {
			q := newParser(p.data, start+n)
			q.skipWS()
			if q.hasPrefix("endstream") {
				p.pos = q.pos + len("endstream")
				return p.data[start : start+n], nil
			}
		}
	}

	idx := bytes.Index(p.data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, p.errorf("missing endstream")
	}
	end := start + idx
	p.pos = end + len("endstream")
	if end > start && p.data[end-1] == '\n' {
		end--
	}
	if end > start && p.data[end-1] == '\r' {
		end--
	}
	return p.data[start:end], nil
}
