package pdf

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// WriteObject serializes o in PDF syntax. Dictionary keys are written in
// sorted order; a stream's /Length is always set from len(Data).
func WriteObject(buf *bytes.Buffer, o Object) {
	switch v := o.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Boolean:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int:
		buf.WriteString(strconv.Itoa(v))
	case Real:
		buf.WriteString(FormatReal(float64(v)))
	case float64:
		buf.WriteString(FormatReal(v))
	case Name:
		writeName(buf, v)
	case String:
		if v.Hex {
			writeHexString(buf, v.Value)
		} else {
			writeLiteralString(buf, v.Value)
		}
	case Keyword:
		buf.WriteString(string(v))
	case Ref:
		buf.WriteString(strconv.Itoa(v.Num))
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(v.Gen))
		buf.WriteString(" R")
	case Array:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			WriteObject(buf, item)
		}
		buf.WriteByte(']')
	case Dict:
		writeDict(buf, v)
	case *Stream:
		d := v.Dict.Clone()
		d["Length"] = Integer(len(v.Data))
		writeDict(buf, d)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString("null")
	}
}

// FormatReal writes f with at most five decimals and no exponent.
func FormatReal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', 5, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

func writeDict(buf *bytes.Buffer, d Dict) {
	buf.WriteString("<<")
	for _, k := range d.Keys() {
		writeName(buf, k)
		buf.WriteByte(' ')
		WriteObject(buf, d[k])
	}
	buf.WriteString(">>")
}

func writeName(buf *bytes.Buffer, n Name) {
	const hexdigits = "0123456789ABCDEF"
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelim(c) {
			buf.WriteByte('#')
			buf.WriteByte(hexdigits[c>>4])
			buf.WriteByte(hexdigits[c&0x0f])
			continue
		}
		buf.WriteByte(c)
	}
}

func writeLiteralString(buf *bytes.Buffer, b []byte) {
	buf.WriteByte('(')
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if c < 0x20 || c > 0x7e {
				buf.WriteByte('\\')
				buf.WriteByte('0' + (c>>6)&7)
				buf.WriteByte('0' + (c>>3)&7)
				buf.WriteByte('0' + c&7)
				continue
			}
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

func writeHexString(buf *bytes.Buffer, b []byte) {
	const hexdigits = "0123456789ABCDEF"
	buf.WriteByte('<')
	for _, c := range b {
		buf.WriteByte(hexdigits[c>>4])
		buf.WriteByte(hexdigits[c&0x0f])
	}
	buf.WriteByte('>')
}
