// Package pdf is a small PDF object layer: it parses existing files
// (classic and stream cross-reference sections, object streams, damaged
// xref recovery), walks the page tree and appends incremental updates
// without touching the original bytes.
package pdf

import (
	"fmt"
	"sort"
)

// Object is any PDF object: Null, Boolean, Integer, Real, Name, String,
// Array, Dict, Ref, *Stream, or a Keyword when parsing content streams.
type Object interface{}

type (
	Null    struct{}
	Boolean bool
	Integer int64
	Real    float64
	Name    string
	Array   []Object
	Dict    map[Name]Object
	// Keyword is a bare token such as a content stream operator.
	Keyword string
)

// String is a PDF string. Hex records whether it was (or should be)
// written in <hex> form.
type String struct {
	Value []byte
	Hex   bool
}

// Ref is an indirect reference.
type Ref struct {
	Num int
	Gen int
}

func (r Ref) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Stream holds a stream dictionary and its data exactly as stored, i.e.
// still encoded with the filters named in Dict.
type Stream struct {
	Dict Dict
	Data []byte
}

// Rect is a normalized rectangle (LLX <= URX, LLY <= URY).
type Rect struct {
	LLX, LLY, URX, URY float64
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

// Clone returns a shallow copy of d.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Keys returns the keys of d in sorted order.
func (d Dict) Keys() []Name {
	keys := make([]Name, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// NameValue returns d[key] when it is a direct Name.
func (d Dict) NameValue(key Name) (Name, bool) {
	n, ok := d[key].(Name)
	return n, ok
}

// Number converts Integer and Real to float64.
func Number(o Object) (float64, bool) {
	switch v := o.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int converts an Integer (or an integral Real) to int.
func Int(o Object) (int, bool) {
	switch v := o.(type) {
	case Integer:
		return int(v), true
	case Real:
		if float64(v) == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// NewText returns a literal string holding s as PDFDocEncoding when s is
// plain ASCII and as UTF-16BE with a byte order mark otherwise.
func NewText(s string) String {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return String{Value: []byte(s)}
	}
	out := []byte{0xfe, 0xff}
	for _, r := range s {
		if r > 0xffff {
			r -= 0x10000
			hi, lo := 0xd800+(r>>10), 0xdc00+(r&0x3ff)
			out = append(out, byte(hi>>8), byte(hi), byte(lo>>8), byte(lo))
			continue
		}
		out = append(out, byte(r>>8), byte(r))
	}
	return String{Value: out}
}

// Text decodes a text string (UTF-16BE with BOM, UTF-8 with BOM, or
// PDFDocEncoding approximated as Latin-1).
func Text(o Object) string {
	s, ok := o.(String)
	if !ok {
		return ""
	}
	b := s.Value
	switch {
	case len(b) >= 2 && b[0] == 0xfe && b[1] == 0xff:
		var runes []rune
		for i := 2; i+1 < len(b); i += 2 {
			u := rune(b[i])<<8 | rune(b[i+1])
			if u >= 0xd800 && u < 0xdc00 && i+3 < len(b) {
				lo := rune(b[i+2])<<8 | rune(b[i+3])
				runes = append(runes, 0x10000+((u-0xd800)<<10)+(lo-0xdc00))
				i += 2
				continue
			}
			runes = append(runes, u)
		}
		return string(runes)
	case len(b) >= 3 && b[0] == 0xef && b[1] == 0xbb && b[2] == 0xbf:
		return string(b[3:])
	default:
		runes := make([]rune, len(b))
		for i, c := range b {
			runes[i] = rune(c)
		}
		return string(runes)
	}
}
