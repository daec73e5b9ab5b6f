package pdf

import (
	"bytes"
	"errors"
)

// ContentBuilder accumulates content stream operations.
type ContentBuilder struct {
	buf bytes.Buffer
}

// Op appends one operation: the operands followed by the operator.
func (b *ContentBuilder) Op(operator string, operands ...Object) *ContentBuilder {
	for _, o := range operands {
		WriteObject(&b.buf, o)
		b.buf.WriteByte(' ')
	}
	b.buf.WriteString(operator)
	b.buf.WriteByte('\n')
	return b
}

func (b *ContentBuilder) Bytes() []byte { return b.buf.Bytes() }
func (b *ContentBuilder) Len() int      { return b.buf.Len() }

// Operation is one parsed content stream operator with its operands.
type Operation struct {
	Operator string
	Operands []Object
}

// ParseContent splits a decoded content stream into operations. Inline
// images (BI ... ID ... EI) are reported as a single "BI" operation without
// their data.
func ParseContent(data []byte) ([]Operation, error) {
	p := newParser(data, 0)
	var ops []Operation
	var operands []Object

	for {
		p.skipWS()
		if p.eof() {
			break
		}
		obj, err := p.parseObject()
		if err != nil {
			return ops, err
		}
		kw, ok := obj.(Keyword)
		if !ok {
			operands = append(operands, obj)
			continue
		}
		if kw == "BI" {
			if err := p.skipInlineImage(); err != nil {
				return ops, err
			}
			ops = append(ops, Operation{Operator: "BI"})
			operands = nil
			continue
		}
		ops = append(ops, Operation{Operator: string(kw), Operands: operands})
		operands = nil
	}
	return ops, nil
}

func (p *parser) skipInlineImage() error {
	idx := bytes.Index(p.data[p.pos:], []byte("ID"))
	if idx < 0 {
		return errors.New("inline image without ID")
	}
	p.pos += idx + 2
	for {
		idx = bytes.Index(p.data[p.pos:], []byte("EI"))
		if idx < 0 {
			return errors.New("inline image without EI")
		}
		at := p.pos + idx
		p.pos = at + 2
		before := at == 0 || isWhite(p.data[at-1])
		after := p.pos >= len(p.data) || !isRegular(p.data[p.pos])
		if before && after {
			return nil
		}
	}
}
