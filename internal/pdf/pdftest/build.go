// Package pdftest builds small PDF files for tests and inspects the content
// streams written by the finalizer.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/dmitrijs2005/pdfsigner/internal/pdf"
)

// Page describes one fixture page.
type Page struct {
	Width, Height float64
	Rotate        int
	// Content is the raw content stream; empty means a "Page N" label.
	Content string
}

// Options selects the file structure of a fixture.
type Options struct {
	// XRefStream writes a compressed cross-reference stream with a PNG
	// predictor instead of a classic table.
	XRefStream bool
	// ObjectStream puts every non-stream object in an object stream.
	// It implies XRefStream.
	ObjectStream bool
	// CompressContent Flate-encodes the page content streams.
	CompressContent bool
	// InheritMediaBox puts the first page's MediaBox on the Pages node and
	// omits it from pages of the same size.
	InheritMediaBox bool
	// BreakStartXref points startxref at garbage so readers must repair.
	BreakStartXref bool
	Title, Author  string
}

// TwoPages is the 612x792 + 300x500 document used across tests.
func TwoPages() []Page {
	return []Page{{Width: 612, Height: 792}, {Width: 300, Height: 500}}
}

// Build returns a complete PDF file.
func Build(pages []Page, opts Options) []byte {
	if opts.ObjectStream {
		opts.XRefStream = true
	}

	const (
		catalogNum = 1
		pagesNum   = 2
		fontNum    = 3
	)
	objects := map[int]pdf.Object{}

	pagesDict := pdf.Dict{"Type": pdf.Name("Pages"), "Count": pdf.Integer(len(pages))}
	var inherited *pdf.Array
	if opts.InheritMediaBox && len(pages) > 0 {
		box := mediaBox(pages[0])
		inherited = &box
		pagesDict["MediaBox"] = box
		pagesDict["Resources"] = pdf.Dict{"Font": pdf.Dict{"F1": pdf.Ref{Num: fontNum}}}
	}

	kids := pdf.Array{}
	for i, pg := range pages {
		pageNum := 4 + 2*i
		contentNum := pageNum + 1
		kids = append(kids, pdf.Ref{Num: pageNum})

		pd := pdf.Dict{
			"Type":     pdf.Name("Page"),
			"Parent":   pdf.Ref{Num: pagesNum},
			"Contents": pdf.Ref{Num: contentNum},
		}
		box := mediaBox(pg)
		if inherited == nil || !sameBox(*inherited, box) {
			pd["MediaBox"] = box
		}
		if inherited == nil {
			pd["Resources"] = pdf.Dict{"Font": pdf.Dict{"F1": pdf.Ref{Num: fontNum}}}
		}
		if pg.Rotate != 0 {
			pd["Rotate"] = pdf.Integer(pg.Rotate)
		}
		objects[pageNum] = pd

		content := pg.Content
		if content == "" {
			content = fmt.Sprintf("BT /F1 12 Tf 36 36 Td (Page %d) Tj ET", i+1)
		}
		stream := &pdf.Stream{Dict: pdf.Dict{}, Data: []byte(content)}
		if opts.CompressContent {
			stream.Dict["Filter"] = pdf.Name("FlateDecode")
			stream.Data = pdf.Deflate(stream.Data)
		}
		objects[contentNum] = stream
	}
	pagesDict["Kids"] = kids

	objects[catalogNum] = pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pdf.Ref{Num: pagesNum}}
	objects[pagesNum] = pagesDict
	objects[fontNum] = pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("Type1"),
		"BaseFont": pdf.Name("Helvetica"),
	}

	next := 4 + 2*len(pages)
	var infoRef pdf.Object
	if opts.Title != "" || opts.Author != "" {
		info := pdf.Dict{"Producer": pdf.NewText("pdftest")}
		if opts.Title != "" {
			info["Title"] = pdf.NewText(opts.Title)
		}
		if opts.Author != "" {
			info["Author"] = pdf.NewText(opts.Author)
		}
		objects[next] = info
		infoRef = pdf.Ref{Num: next}
		next++
	}

	return write(objects, next, infoRef, opts)
}

func mediaBox(p Page) pdf.Array {
	return pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Real(p.Width), pdf.Real(p.Height)}
}

func sameBox(a, b pdf.Array) bool {
	var x, y bytes.Buffer
	pdf.WriteObject(&x, a)
	pdf.WriteObject(&y, b)
	return x.String() == y.String()
}

type entry struct {
	kind   byte
	offset int
	stream int
	index  int
}

func write(objects map[int]pdf.Object, next int, infoRef pdf.Object, opts Options) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	nums := make([]int, 0, len(objects))
	for num := range objects {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	entries := map[int]entry{}
	var packed []int
	for _, num := range nums {
		if _, isStream := objects[num].(*pdf.Stream); opts.ObjectStream && !isStream {
			packed = append(packed, num)
			continue
		}
		entries[num] = entry{kind: 1, offset: buf.Len()}
		writeIndirect(&buf, num, objects[num])
	}

	if len(packed) > 0 {
		stmNum := next
		next++
		var header, body bytes.Buffer
		for i, num := range packed {
			header.WriteString(strconv.Itoa(num) + " " + strconv.Itoa(body.Len()) + " ")
			pdf.WriteObject(&body, objects[num])
			body.WriteByte('\n')
			entries[num] = entry{kind: 2, stream: stmNum, index: i}
		}
		data := append(header.Bytes(), body.Bytes()...)
		stm := &pdf.Stream{
			Dict: pdf.Dict{
				"Type":   pdf.Name("ObjStm"),
				"N":      pdf.Integer(len(packed)),
				"First":  pdf.Integer(header.Len()),
				"Filter": pdf.Name("FlateDecode"),
			},
			Data: pdf.Deflate(data),
		}
		entries[stmNum] = entry{kind: 1, offset: buf.Len()}
		writeIndirect(&buf, stmNum, stm)
	}

	trailer := pdf.Dict{
		"Root": pdf.Ref{Num: 1},
		"ID": pdf.Array{
			pdf.String{Value: []byte("pdftest-fixture1"), Hex: true},
			pdf.String{Value: []byte("pdftest-fixture1"), Hex: true},
		},
	}
	if infoRef != nil {
		trailer["Info"] = infoRef
	}

	var startxref int
	if opts.XRefStream {
		xrefNum := next
		next++
		startxref = buf.Len()
		entries[xrefNum] = entry{kind: 1, offset: startxref}

		const columns = 7
		var raw bytes.Buffer
		prev := make([]byte, columns)
		for num := 0; num < next; num++ {
			row := make([]byte, columns)
			e, ok := entries[num]
			switch {
			case !ok:
				row[5], row[6] = 0xff, 0xff
			case e.kind == 2:
				row[0] = 2
				putBE(row[1:5], e.stream)
				putBE(row[5:7], e.index)
			default:
				row[0] = 1
				putBE(row[1:5], e.offset)
			}
			raw.WriteByte(2) // PNG Up
			for i := range row {
				raw.WriteByte(row[i] - prev[i])
			}
			prev = row
		}

		d := trailer.Clone()
		d["Type"] = pdf.Name("XRef")
		d["Size"] = pdf.Integer(next)
		d["W"] = pdf.Array{pdf.Integer(1), pdf.Integer(4), pdf.Integer(2)}
		d["Filter"] = pdf.Name("FlateDecode")
		d["DecodeParms"] = pdf.Dict{"Predictor": pdf.Integer(12), "Columns": pdf.Integer(columns)}
		writeIndirect(&buf, xrefNum, &pdf.Stream{Dict: d, Data: pdf.Deflate(raw.Bytes())})
	} else {
		startxref = buf.Len()
		fmt.Fprintf(&buf, "xref\n0 %d\n", next)
		buf.WriteString("0000000000 65535 f\r\n")
		for num := 1; num < next; num++ {
			e, ok := entries[num]
			if !ok {
				buf.WriteString("0000000000 00000 f\r\n")
				continue
			}
			fmt.Fprintf(&buf, "%010d 00000 n\r\n", e.offset)
		}
		trailer["Size"] = pdf.Integer(next)
		buf.WriteString("trailer\n")
		pdf.WriteObject(&buf, trailer)
		buf.WriteByte('\n')
	}

	if opts.BreakStartXref {
		startxref = 3
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", startxref)
	return buf.Bytes()
}

func writeIndirect(buf *bytes.Buffer, num int, o pdf.Object) {
	fmt.Fprintf(buf, "%d 0 obj\n", num)
	pdf.WriteObject(buf, o)
	buf.WriteString("\nendobj\n")
}

func putBE(dst []byte, v int) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}
