package pdf

import (
	"errors"
	"fmt"
)

var (
	ErrNotPDF    = errors.New("not a PDF file")
	ErrEncrypted = errors.New("encrypted PDF files are not supported")
	ErrNoPages   = errors.New("document has no pages")
)

const maxResolveDepth = 32

// Reader gives random access to the objects of a PDF held in memory.
// It is not safe for concurrent use.
type Reader struct {
	data       []byte
	xref       map[int]xrefEntry
	trailer    Dict
	xrefStream bool
	repaired   bool
	startxref  int64
	version    string

	cache     map[int]Object
	objStms   map[int]*objectStream
	resolving map[int]bool
}

type objectStream struct {
	data    []byte
	first   int
	nums    []int
	offsets []int
}

// Open parses the cross-reference information of data. Objects are read
// lazily. data must not be modified while the Reader is in use.
func Open(data []byte) (*Reader, error) {
	hdr := indexOf(data, "%PDF-", 1024)
	if hdr < 0 {
		return nil, ErrNotPDF
	}

	r := &Reader{
		data:      data,
		xref:      map[int]xrefEntry{},
		cache:     map[int]Object{},
		objStms:   map[int]*objectStream{},
		resolving: map[int]bool{},
	}
	if end := hdr + 8; end <= len(data) {
		r.version = string(data[hdr+5 : end])
	}

	if err := r.loadXref(); err != nil {
		return nil, err
	}
	return r, nil
}

func indexOf(data []byte, s string, limit int) int {
	if limit > len(data) {
		limit = len(data)
	}
	for i := 0; i+len(s) <= limit; i++ {
		if string(data[i:i+len(s)]) == s {
			return i
		}
	}
	return -1
}

// Data returns the bytes the Reader was opened on.
func (r *Reader) Data() []byte { return r.data }

// Version returns the header version, e.g. "1.7".
func (r *Reader) Version() string { return r.version }

// Trailer returns the newest trailer dictionary.
func (r *Reader) Trailer() Dict { return r.trailer }

// Repaired reports whether the xref had to be rebuilt by scanning.
func (r *Reader) Repaired() bool { return r.repaired }

// Encrypted reports whether the trailer names an encryption dictionary.
func (r *Reader) Encrypted() bool {
	_, ok := r.trailer["Encrypt"]
	return ok
}

// Size returns one more than the highest object number in use.
func (r *Reader) Size() int {
	size, _ := Int(r.trailer["Size"])
	for num := range r.xref {
		if num >= size {
			size = num + 1
		}
	}
	return size
}

// directLength resolves a /Length without following references; used
// while the xref itself is being read.
func (r *Reader) directLength(o Object) (int, bool) {
	return Int(o)
}

func (r *Reader) length(o Object) (int, bool) {
	ref, ok := o.(Ref)
	if !ok {
		return Int(o)
	}
	if r.resolving[ref.Num] {
		return 0, false
	}
	r.resolving[ref.Num] = true
	defer delete(r.resolving, ref.Num)

	v, err := r.Object(ref.Num)
	if err != nil {
		return 0, false
	}
	return Int(v)
}

// Object returns object num. Missing and free objects are Null.
func (r *Reader) Object(num int) (Object, error) {
	if obj, ok := r.cache[num]; ok {
		return obj, nil
	}

	e, ok := r.xref[num]
	if !ok || e.kind == xrefFree {
		return Null{}, nil
	}

	var obj Object
	switch e.kind {
	case xrefInUse:
		if e.offset < 0 || e.offset >= int64(len(r.data)) {
			return nil, fmt.Errorf("object %d: offset %d out of range", num, e.offset)
		}
		p := newParser(r.data, int(e.offset))
		ref, o, err := p.parseIndirect(r.length)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", num, err)
		}
		if ref.Num != num {
			return nil, fmt.Errorf("object %d: found object %d at offset %d", num, ref.Num, e.offset)
		}
		obj = o
	case xrefCompressed:
		o, err := r.compressedObject(num, e)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", num, err)
		}
		obj = o
	}

	r.cache[num] = obj
	return obj, nil
}

func (r *Reader) objectStream(num int) (*objectStream, error) {
	if stm, ok := r.objStms[num]; ok {
		return stm, nil
	}
	if r.resolving[-num-1] {
		return nil, fmt.Errorf("object stream %d refers to itself", num)
	}
	r.resolving[-num-1] = true
	defer delete(r.resolving, -num-1)

	obj, err := r.Object(num)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is %T", num, obj)
	}
	data, err := r.DecodeStream(s)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", num, err)
	}

	n, _ := Int(r.resolveQuiet(s.Dict["N"]))
	first, _ := Int(r.resolveQuiet(s.Dict["First"]))
	if n < 0 || first < 0 || first > len(data) {
		return nil, fmt.Errorf("object stream %d: bad /N or /First", num)
	}

	stm := &objectStream{data: data, first: first}
	p := newParser(data[:first], 0)
	for i := 0; i < n; i++ {
		objNum, err := p.readInt()
		if err != nil {
			return nil, fmt.Errorf("object stream %d header: %w", num, err)
		}
		off, err := p.readInt()
		if err != nil {
			return nil, fmt.Errorf("object stream %d header: %w", num, err)
		}
		stm.nums = append(stm.nums, int(objNum))
		stm.offsets = append(stm.offsets, int(off))
	}

	r.objStms[num] = stm
	return stm, nil
}

func (r *Reader) compressedObject(num int, e xrefEntry) (Object, error) {
	stm, err := r.objectStream(e.stream)
	if err != nil {
		return nil, err
	}

	idx := -1
	if e.index < len(stm.nums) && stm.nums[e.index] == num {
		idx = e.index
	} else {
		for i, n := range stm.nums {
			if n == num {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("not found in object stream %d", e.stream)
	}

	off := stm.first + stm.offsets[idx]
	if off >= len(stm.data) {
		return nil, fmt.Errorf("offset out of range in object stream %d", e.stream)
	}
	return newParser(stm.data, off).parseObject()
}

// Resolve follows references until a direct object is reached.
func (r *Reader) Resolve(o Object) (Object, error) {
	for i := 0; i < maxResolveDepth; i++ {
		ref, ok := o.(Ref)
		if !ok {
			return o, nil
		}
		var err error
		o, err = r.Object(ref.Num)
		if err != nil {
			return nil, err
		}
	}
	return nil, errors.New("reference chain too deep")
}

func (r *Reader) resolveQuiet(o Object) Object {
	v, err := r.Resolve(o)
	if err != nil {
		return Null{}
	}
	return v
}

// ResolveDict resolves o and returns it as a dictionary, or nil.
func (r *Reader) ResolveDict(o Object) Dict {
	d, _ := r.resolveQuiet(o).(Dict)
	return d
}

// DecodeStream returns the decoded data of s.
func (r *Reader) DecodeStream(s *Stream) ([]byte, error) {
	return decodeStream(s, r.Resolve)
}

// Catalog returns the document catalog.
func (r *Reader) Catalog() (Dict, error) {
	root, err := r.Resolve(r.trailer["Root"])
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	d, ok := root.(Dict)
	if !ok {
		return nil, fmt.Errorf("catalog is %T", root)
	}
	return d, nil
}

// Info returns the title and author from the document information
// dictionary, if any.
func (r *Reader) Info() (title, author string) {
	info := r.ResolveDict(r.trailer["Info"])
	if info == nil {
		return "", ""
	}
	return Text(r.resolveQuiet(info["Title"])), Text(r.resolveQuiet(info["Author"]))
}
