// Package finalizer bakes signature overlays into a PDF as an incremental
// update.
//
// Every page that receives a signature keeps its original content streams,
// wrapped in q/Q so their graphics state cannot leak, followed by one new
// overlay stream that paints the page's signatures in the order given.
// Later signatures therefore end up on top of earlier ones.
package finalizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/coords"
	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/pdf"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

// Problem records why a signature was left out of the output.
type Problem struct {
	SignatureID string
	Err         error
}

// Result is the outcome of a render. Attempted counts every signature
// passed in; Skipped is Attempted minus Rendered.
type Result struct {
	Data      []byte
	Pages     int
	Attempted int
	Rendered  int
	Skipped   int
	Problems  []Problem
}

var (
	errPageOutOfRange = errors.New("page out of range")
	errEmptyText      = errors.New("empty text")
)

// Engine paints signatures onto a PDF. It holds no per-render state and
// can be shared across goroutines.
type Engine struct {
	logger logging.Logger
}

// NewEngine returns an Engine that reports skipped signatures to logger.
func NewEngine(logger logging.Logger) *Engine {
	return &Engine{logger: logger}
}

// pageOverlay collects what gets added to one page.
type pageOverlay struct {
	page      *pdf.Page
	content   pdf.ContentBuilder
	fonts     pdf.Dict
	xobjects  pdf.Dict
	usedNames map[pdf.Name]bool
	counter   int
}

// render is the state of a single Render call.
type render struct {
	r        *pdf.Reader
	w        *pdf.Incremental
	pages    []*pdf.Page
	overlays map[int]*pageOverlay
	order    []int
	fontRefs map[string]pdf.Ref
}

// Render returns original with sigs painted on their pages. sigs must be in
// paint order, which is creation order. A signature that cannot be drawn is
// reported in Result.Problems and does not fail the call; an original that
// cannot be parsed fails with common.ErrFatalIO.
func (e *Engine) Render(ctx context.Context, original []byte, sigs []*models.Signature) (*Result, error) {
	r, err := pdf.Open(original)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFatalIO, err)
	}
	if r.Encrypted() {
		return nil, fmt.Errorf("%w: %v", common.ErrFatalIO, pdf.ErrEncrypted)
	}
	if r.Repaired() {
		e.logger.Warn(ctx, "cross-reference table was rebuilt")
	}

	pages, err := r.Pages()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFatalIO, err)
	}

	st := &render{
		r:        r,
		w:        pdf.NewIncremental(r),
		pages:    pages,
		overlays: map[int]*pageOverlay{},
		fontRefs: map[string]pdf.Ref{},
	}

	res := &Result{Pages: len(pages), Attempted: len(sigs)}
	for _, sig := range sigs {
		if err := st.paint(sig); err != nil {
			res.Problems = append(res.Problems, Problem{SignatureID: sig.ID, Err: err})
			e.logger.Warn(ctx, "signature skipped",
				"signature_id", sig.ID, "page", sig.Page, "type", string(sig.Type), "error", err)
			continue
		}
		res.Rendered++
	}
	res.Skipped = res.Attempted - res.Rendered

	if len(st.order) == 0 {
		res.Data = append([]byte(nil), original...)
		return res, nil
	}

	st.attach()
	data, err := st.w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFatalIO, err)
	}
	res.Data = data
	return res, nil
}

// paint draws one signature into its page's overlay. Panics from image
// decoding are turned into processing errors.
func (st *render) paint(sig *models.Signature) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", common.ErrProcessing, rec)
		}
	}()

	idx := coords.PageIndex(sig.Page)
	if idx < 0 || idx >= len(st.pages) {
		return fmt.Errorf("%w: %w: page %d of %d", common.ErrProcessing, errPageOutOfRange, sig.Page, len(st.pages))
	}
	page := st.pages[idx]
	box := coords.PageBox{
		LLX: page.CropBox.LLX, LLY: page.CropBox.LLY,
		URX: page.CropBox.URX, URY: page.CropBox.URY,
		Rotate: page.Rotate,
	}
	at := box.ToPageSpace(sig.X, sig.Y)

	switch c := sig.Content.(type) {
	case *models.TypedContent:
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: %w", common.ErrProcessing, errEmptyText)
		}
		ov := st.overlay(idx)
		fontName := ov.addFont(st.fontRef(c.Font))
		drawText(&ov.content, c, fontName, at)
		return nil
	case *models.ImageContent:
		img, err := newImageXObject(c)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrProcessing, err)
		}
		ov := st.overlay(idx)
		width := c.Width
		if width <= 0 {
			width = models.DefaultImageWidth
		}
		name := ov.addImage(img.add(st.w))
		drawImage(&ov.content, name, at, width*box.VisualWidth(), img.aspect())
		return nil
	default:
		return fmt.Errorf("%w: no content for %s signature", common.ErrProcessing, sig.Type)
	}
}

func (st *render) overlay(idx int) *pageOverlay {
	if ov, ok := st.overlays[idx]; ok {
		return ov
	}
	page := st.pages[idx]
	ov := &pageOverlay{
		page:      page,
		fonts:     pdf.Dict{},
		xobjects:  pdf.Dict{},
		usedNames: map[pdf.Name]bool{},
	}
	for _, key := range []pdf.Name{"Font", "XObject"} {
		for name := range st.r.ResolveDict(page.Resources[key]) {
			ov.usedNames[name] = true
		}
	}
	st.overlays[idx] = ov
	st.order = append(st.order, idx)
	return ov
}

// fontRef returns the shared font dictionary for a standard font.
func (st *render) fontRef(base string) pdf.Ref {
	if ref, ok := st.fontRefs[base]; ok {
		return ref
	}
	font := pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("Type1"),
		"BaseFont": pdf.Name(base),
	}
	if base != "Symbol" && base != "ZapfDingbats" {
		font["Encoding"] = pdf.Name("WinAnsiEncoding")
	}
	ref := st.w.Add(font)
	st.fontRefs[base] = ref
	return ref
}

func (ov *pageOverlay) freshName(prefix string) pdf.Name {
	for {
		ov.counter++
		name := pdf.Name(fmt.Sprintf("%s%d", prefix, ov.counter))
		if !ov.usedNames[name] {
			ov.usedNames[name] = true
			return name
		}
	}
}

func (ov *pageOverlay) addFont(ref pdf.Ref) pdf.Name {
	for name, existing := range ov.fonts {
		if existing == ref {
			return name
		}
	}
	name := ov.freshName("SigF")
	ov.fonts[name] = ref
	return name
}

func (ov *pageOverlay) addImage(ref pdf.Ref) pdf.Name {
	name := ov.freshName("SigIm")
	ov.xobjects[name] = ref
	return name
}

// attach rewrites every touched page: its content becomes
// [q, original..., Q+overlay] and its resources gain the new fonts and
// images.
func (st *render) attach() {
	open := st.w.Add(&pdf.Stream{Dict: pdf.Dict{}, Data: []byte("q\n")})

	for _, idx := range st.order {
		ov := st.overlays[idx]

		var data []byte
		data = append(data, "Q\n"...)
		data = append(data, ov.content.Bytes()...)
		overlay := st.w.Add(&pdf.Stream{
			Dict: pdf.Dict{"Filter": pdf.Name("FlateDecode")},
			Data: pdf.Deflate(data),
		})

		dict := ov.page.Dict.Clone()
		contents := pdf.Array{open}
		contents = append(contents, st.originalContents(ov.page)...)
		dict["Contents"] = append(contents, overlay)
		dict["Resources"] = st.mergeResources(ov)

		st.w.Update(ov.page.Ref, dict)
	}
}

// originalContents returns the page's content stream references with any
// indirect array flattened.
func (st *render) originalContents(page *pdf.Page) pdf.Array {
	raw := page.Dict["Contents"]
	if raw == nil {
		return nil
	}
	if ref, ok := raw.(pdf.Ref); ok {
		if resolved, err := st.r.Resolve(ref); err == nil {
			if arr, ok := resolved.(pdf.Array); ok {
				return append(pdf.Array(nil), arr...)
			}
		}
		return pdf.Array{ref}
	}
	if arr, ok := raw.(pdf.Array); ok {
		return append(pdf.Array(nil), arr...)
	}
	return pdf.Array{raw}
}

// mergeResources returns a copy of the page's effective resources with the
// overlay's fonts and images added. Inherited resources are copied onto the
// page itself.
func (st *render) mergeResources(ov *pageOverlay) pdf.Dict {
	res := ov.page.Resources.Clone()
	merge := func(key pdf.Name, add pdf.Dict) {
		if len(add) == 0 {
			return
		}
		sub := st.r.ResolveDict(res[key]).Clone()
		for name, ref := range add {
			sub[name] = ref
		}
		res[key] = sub
	}
	merge("Font", ov.fonts)
	merge("XObject", ov.xobjects)
	return res
}
