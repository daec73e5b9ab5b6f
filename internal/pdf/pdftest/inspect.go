package pdftest

import (
	"fmt"

	"github.com/dmitrijs2005/pdfsigner/internal/pdf"
)

// Matrix is a PDF transformation matrix [a b c d e f].
type Matrix [6]float64

var identity = Matrix{1, 0, 0, 1, 0, 0}

// Mul returns m × n (m applied first).
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// TextRun is one string shown with Tj, in device space.
type TextRun struct {
	Text   string
	Font   string
	Size   float64
	Matrix Matrix
	Fill   [3]float64
}

// ImageDraw is one XObject painted with Do.
type ImageDraw struct {
	Name   string
	Matrix Matrix
}

// Painting lists what a content stream draws, in paint order.
type Painting struct {
	Texts  []TextRun
	Images []ImageDraw
	// Balanced is false when q/Q operators do not pair up.
	Balanced bool
}

type gstate struct {
	ctm  Matrix
	fill [3]float64
}

// Interpret runs the subset of the content stream operators the finalizer
// writes: q Q cm rg g BT ET Tf Tm Td Tj Do.
func Interpret(content []byte) (*Painting, error) {
	ops, err := pdf.ParseContent(content)
	if err != nil {
		return nil, err
	}

	out := &Painting{Balanced: true}
	gs := gstate{ctm: identity}
	var stack []gstate
	var tm Matrix
	var font string
	var size float64

	for _, op := range ops {
		nums := numbers(op.Operands)
		switch op.Operator {
		case "q":
			stack = append(stack, gs)
		case "Q":
			if len(stack) == 0 {
				out.Balanced = false
				continue
			}
			gs = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		case "cm":
			if len(nums) == 6 {
				gs.ctm = Matrix(nums).Mul(gs.ctm)
			}
		case "rg":
			if len(nums) == 3 {
				gs.fill = [3]float64{nums[0], nums[1], nums[2]}
			}
		case "g":
			if len(nums) == 1 {
				gs.fill = [3]float64{nums[0], nums[0], nums[0]}
			}
		case "BT":
			tm = identity
		case "Tf":
			if len(op.Operands) == 2 {
				if n, ok := op.Operands[0].(pdf.Name); ok {
					font = string(n)
				}
				size, _ = pdf.Number(op.Operands[1])
			}
		case "Tm":
			if len(nums) == 6 {
				tm = Matrix(nums)
			}
		case "Td":
			if len(nums) == 2 {
				tm = Matrix{1, 0, 0, 1, nums[0], nums[1]}.Mul(tm)
			}
		case "Tj":
			if len(op.Operands) == 1 {
				s, _ := op.Operands[0].(pdf.String)
				out.Texts = append(out.Texts, TextRun{
					Text:   pdf.Text(s),
					Font:   font,
					Size:   size,
					Matrix: tm.Mul(gs.ctm),
					Fill:   gs.fill,
				})
			}
		case "Do":
			if len(op.Operands) == 1 {
				n, _ := op.Operands[0].(pdf.Name)
				out.Images = append(out.Images, ImageDraw{Name: string(n), Matrix: gs.ctm})
			}
		}
	}
	if len(stack) != 0 {
		out.Balanced = false
	}
	return out, nil
}

func numbers(operands []pdf.Object) []float64 {
	out := make([]float64, 0, len(operands))
	for _, o := range operands {
		f, ok := pdf.Number(o)
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}

// PageContent opens data and returns the decoded content of the 1-based page.
func PageContent(data []byte, page int) ([]byte, *pdf.Page, error) {
	r, err := pdf.Open(data)
	if err != nil {
		return nil, nil, err
	}
	pages, err := r.Pages()
	if err != nil {
		return nil, nil, err
	}
	if page < 1 || page > len(pages) {
		return nil, nil, fmt.Errorf("page %d out of range (1..%d)", page, len(pages))
	}
	content, err := r.PageContent(pages[page-1])
	return content, pages[page-1], err
}
