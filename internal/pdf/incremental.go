package pdf

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"sort"
)

// Incremental collects new and replaced objects and appends them to the
// original file as an incremental update. The original bytes are copied
// unchanged, so every earlier revision stays intact.
type Incremental struct {
	r       *Reader
	objects map[int]Object
	gens    map[int]int
	next    int
}

func NewIncremental(r *Reader) *Incremental {
	return &Incremental{
		r:       r,
		objects: map[int]Object{},
		gens:    map[int]int{},
		next:    max(r.Size(), 1),
	}
}

// Add stores o as a new indirect object and returns its reference.
func (w *Incremental) Add(o Object) Ref {
	num := w.next
	w.next++
	w.objects[num] = o
	w.gens[num] = 0
	return Ref{Num: num}
}

// Update replaces the object behind ref in the new revision.
func (w *Incremental) Update(ref Ref, o Object) {
	w.objects[ref.Num] = o
	w.gens[ref.Num] = ref.Gen
	if ref.Num >= w.next {
		w.next = ref.Num + 1
	}
}

// Len reports how many objects the update will write.
func (w *Incremental) Len() int { return len(w.objects) }

type writtenEntry struct {
	kind   xrefKind
	offset int64
	gen    int
	stream int
	index  int
}

// WriteTo writes the original file followed by the update. The new xref
// section uses the same form as the newest existing one: a table or an
// uncompressed xref stream. A file whose xref had to be repaired gets a
// complete section without /Prev.
func (w *Incremental) WriteTo(out io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.Grow(len(w.r.data) + 4096)
	buf.Write(w.r.data)
	if n := len(w.r.data); n == 0 || (w.r.data[n-1] != '\n' && w.r.data[n-1] != '\r') {
		buf.WriteByte('\n')
	}

	entries := map[int]writtenEntry{}
	if w.r.repaired {
		for num, e := range w.r.xref {
			if e.kind != xrefFree {
				entries[num] = writtenEntry(e)
			}
		}
	}

	nums := make([]int, 0, len(w.objects))
	for num := range w.objects {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	for _, num := range nums {
		gen := w.gens[num]
		entries[num] = writtenEntry{kind: xrefInUse, offset: int64(buf.Len()), gen: gen}
		fmt.Fprintf(&buf, "%d %d obj\n", num, gen)
		WriteObject(&buf, w.objects[num])
		buf.WriteString("\nendobj\n")
	}

	trailer := Dict{"Root": w.r.trailer["Root"], "ID": w.documentID()}
	if info, ok := w.r.trailer["Info"]; ok {
		trailer["Info"] = info
	}
	if !w.r.repaired && w.r.startxref >= 0 {
		trailer["Prev"] = Integer(w.r.startxref)
	}

	useStream := w.r.xrefStream
	for _, e := range entries {
		if e.kind == xrefCompressed {
			useStream = true
		}
	}

	var startxref int
	if useStream {
		startxref = w.writeXrefStream(&buf, entries, trailer)
	} else {
		startxref = w.writeXrefTable(&buf, entries, trailer)
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", startxref)

	n, err := out.Write(buf.Bytes())
	return int64(n), err
}

// Bytes is a convenience wrapper around WriteTo.
func (w *Incremental) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// documentID keeps the first half of the existing /ID and generates a new
// second half for this revision.
func (w *Incremental) documentID() Array {
	second := make([]byte, 16)
	_, _ = rand.Read(second)

	first := second
	if arr, ok := w.r.resolveQuiet(w.r.trailer["ID"]).(Array); ok && len(arr) > 0 {
		if s, ok := w.r.resolveQuiet(arr[0]).(String); ok {
			first = s.Value
		}
	}
	return Array{String{Value: first, Hex: true}, String{Value: second, Hex: true}}
}

func sortedKeys(entries map[int]writtenEntry) []int {
	keys := make([]int, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// subsections groups sorted object numbers into [start, count] runs.
func subsections(nums []int) [][2]int {
	var out [][2]int
	for _, n := range nums {
		if l := len(out); l > 0 && out[l-1][0]+out[l-1][1] == n {
			out[l-1][1]++
			continue
		}
		out = append(out, [2]int{n, 1})
	}
	return out
}

func (w *Incremental) writeXrefTable(buf *bytes.Buffer, entries map[int]writtenEntry, trailer Dict) int {
	if w.r.repaired {
		entries[0] = writtenEntry{kind: xrefFree, gen: 65535}
	}
	nums := sortedKeys(entries)

	start := buf.Len()
	buf.WriteString("xref\n")
	for _, sub := range subsections(nums) {
		fmt.Fprintf(buf, "%d %d\n", sub[0], sub[1])
		for num := sub[0]; num < sub[0]+sub[1]; num++ {
			e := entries[num]
			if e.kind == xrefFree {
				fmt.Fprintf(buf, "%010d %05d f\r\n", 0, e.gen)
				continue
			}
			fmt.Fprintf(buf, "%010d %05d n\r\n", e.offset, e.gen)
		}
	}

	size := w.next
	if len(nums) > 0 {
		size = max(size, nums[len(nums)-1]+1)
	}
	trailer["Size"] = Integer(size)
	buf.WriteString("trailer\n")
	WriteObject(buf, trailer)
	buf.WriteByte('\n')
	return start
}

func (w *Incremental) writeXrefStream(buf *bytes.Buffer, entries map[int]writtenEntry, trailer Dict) int {
	xrefNum := w.next
	start := buf.Len()
	entries[xrefNum] = writtenEntry{kind: xrefInUse, offset: int64(start)}
	if w.r.repaired {
		entries[0] = writtenEntry{kind: xrefFree, gen: 65535}
	}
	nums := sortedKeys(entries)

	var maxField int64 = 1
	for _, e := range entries {
		maxField = max(maxField, e.offset, int64(e.stream))
	}
	offsetWidth := 4
	for maxField >= int64(1)<<(8*offsetWidth) {
		offsetWidth++
	}

	var data bytes.Buffer
	for _, num := range nums {
		e := entries[num]
		switch e.kind {
		case xrefFree:
			data.WriteByte(0)
			putBE(&data, 0, offsetWidth)
			putBE(&data, int64(e.gen), 2)
		case xrefCompressed:
			data.WriteByte(2)
			putBE(&data, int64(e.stream), offsetWidth)
			putBE(&data, int64(e.index), 2)
		default:
			data.WriteByte(1)
			putBE(&data, e.offset, offsetWidth)
			putBE(&data, int64(e.gen), 2)
		}
	}

	var index Array
	for _, sub := range subsections(nums) {
		index = append(index, Integer(sub[0]), Integer(sub[1]))
	}

	d := trailer.Clone()
	d["Type"] = Name("XRef")
	d["Size"] = Integer(xrefNum + 1)
	d["W"] = Array{Integer(1), Integer(offsetWidth), Integer(2)}
	d["Index"] = index

	fmt.Fprintf(buf, "%d 0 obj\n", xrefNum)
	WriteObject(buf, &Stream{Dict: d, Data: data.Bytes()})
	buf.WriteString("\nendobj\n")
	return start
}

func putBE(buf *bytes.Buffer, v int64, width int) {
	for i := width - 1; i >= 0; i-- {
		buf.WriteByte(byte(v >> (8 * i)))
	}
}
