package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var ErrNoXref = errors.New("cross-reference section not found")

type xrefKind byte

const (
	xrefFree       xrefKind = 0
	xrefInUse      xrefKind = 1
	xrefCompressed xrefKind = 2
)

type xrefEntry struct {
	kind   xrefKind
	offset int64
	gen    int
	stream int
	index  int
}

// findStartXref returns the offset written after the last startxref.
func findStartXref(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoXref
	}
	p := newParser(data, idx+len("startxref"))
	off, err := p.readInt()
	if err != nil || off < 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("%w: bad startxref", ErrNoXref)
	}
	return off, nil
}

// loadXref walks the xref chain from startxref through /Prev links. Newer
// sections win over older ones. When the chain cannot be read at all the
// file is scanned for object headers instead.
func (r *Reader) loadXref() error {
	start, err := findStartXref(r.data)
	if err != nil {
		return r.repair()
	}
	r.startxref = start

	visited := map[int64]bool{}
	offset := start
	first := true
	for offset >= 0 && !visited[offset] {
		visited[offset] = true

		trailer, isStream, err := r.readXrefSection(offset)
		if err != nil {
			if first {
				return r.repair()
			}
			break
		}
		if first {
			r.trailer = trailer
			r.xrefStream = isStream
			first = false
		}

		offset = -1
		if prev, ok := Int(trailer["Prev"]); ok {
			offset = int64(prev)
		}
	}

	if _, ok := r.trailer["Root"]; !ok {
		return r.repair()
	}
	return nil
}

func (r *Reader) setEntry(num int, e xrefEntry) {
	if _, exists := r.xref[num]; !exists {
		r.xref[num] = e
	}
}

func (r *Reader) readXrefSection(offset int64) (Dict, bool, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, false, fmt.Errorf("%w: offset %d out of range", ErrNoXref, offset)
	}
	p := newParser(r.data, int(offset))
	p.skipWS()

	if p.hasPrefix("xref") {
		p.pos += len("xref")
		trailer, err := r.readXrefTable(p)
		return trailer, false, err
	}

	_, obj, err := p.parseIndirect(r.directLength)
	if err != nil {
		return nil, false, err
	}
	s, ok := obj.(*Stream)
	if !ok {
		return nil, false, fmt.Errorf("%w: object at %d is not an xref stream", ErrNoXref, offset)
	}
	if t, _ := s.Dict.NameValue("Type"); t != "XRef" {
		return nil, false, fmt.Errorf("%w: stream at %d has type %q", ErrNoXref, offset, t)
	}
	if err := r.readXrefStream(s); err != nil {
		return nil, false, err
	}
	return s.Dict, true, nil
}

type tableEntry struct {
	num int
	e   xrefEntry
}

func (r *Reader) readXrefTable(p *parser) (Dict, error) {
	var entries []tableEntry
	for {
		p.skipWS()
		if p.eof() {
			return nil, fmt.Errorf("%w: xref table without trailer", ErrNoXref)
		}
		if p.hasPrefix("trailer") {
			p.pos += len("trailer")
			break
		}
		start, err := p.readInt()
		if err != nil {
			return nil, err
		}
		count, err := p.readInt()
		if err != nil {
			return nil, err
		}
		for i := int64(0); i < count; i++ {
			off, err := p.readInt()
			if err != nil {
				return nil, err
			}
			gen, err := p.readInt()
			if err != nil {
				return nil, err
			}
			p.skipWS()
			kind := xrefInUse
			switch p.keyword() {
			case "n":
			case "f":
				kind = xrefFree
			default:
				return nil, p.errorf("bad xref entry type")
			}
			entries = append(entries, tableEntry{
				num: int(start + i),
				e:   xrefEntry{kind: kind, offset: off, gen: int(gen)},
			})
		}
	}

	obj, err := p.parseObject()
	if err != nil {
		return nil, err
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return nil, p.errorf("trailer is not a dictionary")
	}

	// Hybrid files: the stream lists objects the table marks as free.
	if stm, ok := Int(trailer["XRefStm"]); ok {
		if _, _, err := r.readXrefSection(int64(stm)); err != nil {
			return nil, err
		}
	}

	for _, te := range entries {
		r.setEntry(te.num, te.e)
	}
	return trailer, nil
}

func (r *Reader) readXrefStream(s *Stream) error {
	data, err := decodeStream(s, nil)
	if err != nil {
		return fmt.Errorf("xref stream: %w", err)
	}

	wArr, ok := s.Dict["W"].(Array)
	if !ok || len(wArr) != 3 {
		return fmt.Errorf("%w: bad /W", ErrNoXref)
	}
	var w [3]int
	for i := range w {
		v, ok := Int(wArr[i])
		if !ok || v < 0 || v > 8 {
			return fmt.Errorf("%w: bad /W", ErrNoXref)
		}
		w[i] = v
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return fmt.Errorf("%w: empty /W", ErrNoXref)
	}

	var index []int
	if idx, ok := s.Dict["Index"].(Array); ok {
		for _, v := range idx {
			n, ok := Int(v)
			if !ok {
				return fmt.Errorf("%w: bad /Index", ErrNoXref)
			}
			index = append(index, n)
		}
	} else {
		size, _ := Int(s.Dict["Size"])
		index = []int{0, size}
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return nil
			}
			row := data[pos : pos+rowLen]
			pos += rowLen

			kind := int64(1)
			if w[0] > 0 {
				kind = beInt(row[:w[0]])
			}
			f1 := beInt(row[w[0] : w[0]+w[1]])
			f2 := beInt(row[w[0]+w[1]:])

			num := start + j
			switch kind {
			case 0:
				r.setEntry(num, xrefEntry{kind: xrefFree})
			case 1:
				r.setEntry(num, xrefEntry{kind: xrefInUse, offset: f1, gen: int(f2)})
			case 2:
				r.setEntry(num, xrefEntry{kind: xrefCompressed, stream: int(f1), index: int(f2)})
			}
		}
	}
	return nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

var objHeader = regexp.MustCompile(`(\d+)[\x00\t\n\f\r ]+(\d+)[\x00\t\n\f\r ]+obj\b`)

// repair rebuilds the xref by scanning for "num gen obj" headers. Later
// occurrences win, matching the order of incremental updates.
func (r *Reader) repair() error {
	r.xref = map[int]xrefEntry{}
	r.repaired = true
	r.startxref = -1

	for _, m := range objHeader.FindAllSubmatchIndex(r.data, -1) {
		if m[0] > 0 && isDigit(r.data[m[0]-1]) {
			continue
		}
		num, err1 := strconv.Atoi(string(r.data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(r.data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		r.xref[num] = xrefEntry{kind: xrefInUse, offset: int64(m[0]), gen: gen}
	}
	if len(r.xref) == 0 {
		return ErrNoXref
	}

	r.trailer = Dict{}
	for idx := len(r.data); ; {
		idx = bytes.LastIndex(r.data[:idx], []byte("trailer"))
		if idx < 0 {
			break
		}
		p := newParser(r.data, idx+len("trailer"))
		if obj, err := p.parseObject(); err == nil {
			if d, ok := obj.(Dict); ok {
				if _, hasRoot := d["Root"]; hasRoot {
					r.trailer = d
					break
				}
			}
		}
	}

	// Register objects living in object streams and find a catalog when no
	// usable trailer exists.
	inUse := make([]int, 0, len(r.xref))
	for num := range r.xref {
		inUse = append(inUse, num)
	}
	for _, num := range inUse {
		obj, err := r.Object(num)
		if err != nil {
			continue
		}
		switch v := obj.(type) {
		case *Stream:
			if t, _ := v.Dict.NameValue("Type"); t == "ObjStm" {
				if stm, err := r.objectStream(num); err == nil {
					for i, n := range stm.nums {
						r.setEntry(n, xrefEntry{kind: xrefCompressed, stream: num, index: i})
					}
				}
			}
			if t, _ := v.Dict.NameValue("Type"); t == "XRef" {
				if _, ok := r.trailer["Root"]; !ok {
					r.trailer = v.Dict
				}
			}
		case Dict:
			if t, _ := v.NameValue("Type"); t == "Catalog" {
				if _, ok := r.trailer["Root"]; !ok {
					r.trailer["Root"] = Ref{Num: num, Gen: r.xref[num].gen}
				}
			}
		}
	}

	if _, ok := r.trailer["Root"]; !ok {
		return fmt.Errorf("%w: no document catalog", ErrNoXref)
	}

	maxNum := 0
	for num := range r.xref {
		if num > maxNum {
			maxNum = num
		}
	}
	r.trailer = r.trailer.Clone()
	r.trailer["Size"] = Integer(maxNum + 1)
	delete(r.trailer, "Prev")
	return nil
}
