package finalizer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dmitrijs2005/pdfsigner/internal/coords"
	"github.com/dmitrijs2005/pdfsigner/internal/pdf"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

const maxImagePixels = 4096 * 4096

var errImageTooLarge = errors.New("image dimensions too large")

// imageXObject is a decoded signature image ready to be embedded as an
// 8-bit DeviceRGB image with an optional soft mask.
type imageXObject struct {
	width, height int
	rgb           []byte
	alpha         []byte
}

func newImageXObject(c *models.ImageContent) (*imageXObject, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(c.Data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode image: empty %dx%d image", cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", errImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(c.Data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	x := &imageXObject{
		width:  bounds.Dx(),
		height: bounds.Dy(),
		rgb:    make([]byte, 0, bounds.Dx()*bounds.Dy()*3),
		alpha:  make([]byte, 0, bounds.Dx()*bounds.Dy()),
	}
	opaque := true
	for py := bounds.Min.Y; py < bounds.Max.Y; py++ {
		for px := bounds.Min.X; px < bounds.Max.X; px++ {
			r, g, b, a := img.At(px, py).RGBA()
			// RGBA is premultiplied; the image data must not be.
			if a > 0 && a < 0xffff {
				r, g, b = r*0xffff/a, g*0xffff/a, b*0xffff/a
			}
			x.rgb = append(x.rgb, byte(r>>8), byte(g>>8), byte(b>>8))
			x.alpha = append(x.alpha, byte(a>>8))
			if a != 0xffff {
				opaque = false
			}
		}
	}
	if opaque {
		x.alpha = nil
	}
	return x, nil
}

// aspect is height over width.
func (x *imageXObject) aspect() float64 {
	return float64(x.height) / float64(x.width)
}

// add stores the image (and its mask) in w and returns the image reference.
func (x *imageXObject) add(w *pdf.Incremental) pdf.Ref {
	dict := pdf.Dict{
		"Type":             pdf.Name("XObject"),
		"Subtype":          pdf.Name("Image"),
		"Width":            pdf.Integer(x.width),
		"Height":           pdf.Integer(x.height),
		"ColorSpace":       pdf.Name("DeviceRGB"),
		"BitsPerComponent": pdf.Integer(8),
		"Filter":           pdf.Name("FlateDecode"),
	}
	if x.alpha != nil {
		dict["SMask"] = w.Add(&pdf.Stream{
			Dict: pdf.Dict{
				"Type":             pdf.Name("XObject"),
				"Subtype":          pdf.Name("Image"),
				"Width":            pdf.Integer(x.width),
				"Height":           pdf.Integer(x.height),
				"ColorSpace":       pdf.Name("DeviceGray"),
				"BitsPerComponent": pdf.Integer(8),
				"Filter":           pdf.Name("FlateDecode"),
			},
			Data: pdf.Deflate(x.alpha),
		})
	}
	return w.Add(&pdf.Stream{Dict: dict, Data: pdf.Deflate(x.rgb)})
}

// drawImage paints the image with its bottom-left corner at the placement
// point, width points wide on the displayed page.
func drawImage(cb *pdf.ContentBuilder, name pdf.Name, at coords.Placement, width, aspect float64) {
	height := width * aspect
	cb.Op("q")
	cb.Op("cm",
		pdf.Real(at.A*width), pdf.Real(at.B*width),
		pdf.Real(at.C*height), pdf.Real(at.D*height),
		pdf.Real(at.X), pdf.Real(at.Y))
	cb.Op("Do", name)
	cb.Op("Q")
}
