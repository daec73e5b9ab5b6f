package pdf

import (
	"bytes"
	"fmt"
)

// LetterBox is used when neither a page nor its ancestors carry a MediaBox.
var LetterBox = Rect{URX: 612, URY: 792}

// Page is a leaf of the page tree with its inheritable attributes resolved.
type Page struct {
	Ref  Ref
	Dict Dict

	MediaBox  Rect
	CropBox   Rect
	Rotate    int
	Resources Dict
}

type inherited struct {
	resources Object
	mediaBox  Object
	cropBox   Object
	rotate    Object
}

// Pages returns every page in document order.
func (r *Reader) Pages() ([]*Page, error) {
	catalog, err := r.Catalog()
	if err != nil {
		return nil, err
	}
	rootRef, ok := catalog["Pages"].(Ref)
	if !ok {
		return nil, fmt.Errorf("%w: catalog has no /Pages reference", ErrNoPages)
	}

	var pages []*Page
	visited := map[int]bool{}
	if err := r.walkPages(rootRef, inherited{}, visited, &pages, 0); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	return pages, nil
}

func (r *Reader) walkPages(ref Ref, inh inherited, visited map[int]bool, out *[]*Page, depth int) error {
	if visited[ref.Num] {
		return fmt.Errorf("page tree cycle at object %d", ref.Num)
	}
	if depth > 64 {
		return fmt.Errorf("page tree too deep at object %d", ref.Num)
	}
	visited[ref.Num] = true

	node := r.ResolveDict(ref)
	if node == nil {
		return fmt.Errorf("page tree node %d is not a dictionary", ref.Num)
	}

	if v, ok := node["Resources"]; ok {
		inh.resources = v
	}
	if v, ok := node["MediaBox"]; ok {
		inh.mediaBox = v
	}
	if v, ok := node["CropBox"]; ok {
		inh.cropBox = v
	}
	if v, ok := node["Rotate"]; ok {
		inh.rotate = v
	}

	typ, _ := node.NameValue("Type")
	kids, hasKids := r.resolveQuiet(node["Kids"]).(Array)
	if typ == "Pages" || (typ != "Page" && hasKids) {
		for _, kid := range kids {
			kidRef, ok := kid.(Ref)
			if !ok {
				return fmt.Errorf("page tree node %d has a direct kid", ref.Num)
			}
			if err := r.walkPages(kidRef, inh, visited, out, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	page := &Page{Ref: ref, Dict: node, MediaBox: LetterBox}
	if box, ok := r.rect(inh.mediaBox); ok {
		page.MediaBox = box
	}
	page.CropBox = page.MediaBox
	if box, ok := r.rect(inh.cropBox); ok {
		page.CropBox = intersect(box, page.MediaBox)
	}
	if rot, ok := Int(r.resolveQuiet(inh.rotate)); ok {
		page.Rotate = rot
	}
	page.Resources = r.ResolveDict(inh.resources)

	*out = append(*out, page)
	return nil
}

func (r *Reader) rect(o Object) (Rect, bool) {
	arr, ok := r.resolveQuiet(o).(Array)
	if !ok || len(arr) != 4 {
		return Rect{}, false
	}
	var v [4]float64
	for i, item := range arr {
		f, ok := Number(r.resolveQuiet(item))
		if !ok {
			return Rect{}, false
		}
		v[i] = f
	}
	rect := Rect{LLX: min(v[0], v[2]), LLY: min(v[1], v[3]), URX: max(v[0], v[2]), URY: max(v[1], v[3])}
	if rect.Width() <= 0 || rect.Height() <= 0 {
		return Rect{}, false
	}
	return rect, true
}

func intersect(a, b Rect) Rect {
	out := Rect{
		LLX: max(a.LLX, b.LLX),
		LLY: max(a.LLY, b.LLY),
		URX: min(a.URX, b.URX),
		URY: min(a.URY, b.URY),
	}
	if out.Width() <= 0 || out.Height() <= 0 {
		return b
	}
	return out
}

// PageContent returns the page's content streams decoded and joined.
func (r *Reader) PageContent(p *Page) ([]byte, error) {
	var parts []Object
	switch c := r.resolveQuiet(p.Dict["Contents"]).(type) {
	case *Stream:
		parts = []Object{c}
	case Array:
		parts = c
	}

	var buf bytes.Buffer
	for _, part := range parts {
		s, ok := r.resolveQuiet(part).(*Stream)
		if !ok {
			continue
		}
		data, err := r.DecodeStream(s)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
