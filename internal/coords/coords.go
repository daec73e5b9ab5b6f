// Package coords converts between viewer pixels, normalized page fractions
// and PDF page space.
//
// A normalized coordinate is a pair of fractions of the page as displayed:
// x grows to the right from the left edge, y grows downwards from the top
// edge. PageBox.ToPageSpace is the only place where that convention is turned
// into PDF user space, whose origin is at the bottom-left.
package coords

import "math"

// DefaultPreviewOffset is the height in pixels of the signature preview
// element the viewer positions above the cursor. The viewer adds it to the
// pointer's y before normalizing so the stored point is the preview's bottom
// edge.
const DefaultPreviewOffset = 40

// View is the size of a rendered page in pixels at the current zoom.
type View struct {
	Width  float64
	Height float64
}

// Normalize converts a pixel position inside a rendered page into page
// fractions. The result is not clamped.
func Normalize(px, py float64, v View, previewOffset float64) (x, y float64) {
	return px / v.Width, (py + previewOffset) / v.Height
}

// Denormalize is the inverse of Normalize for the same view and offset.
func Denormalize(x, y float64, v View, previewOffset float64) (px, py float64) {
	return x * v.Width, y*v.Height - previewOffset
}

// Clamp limits v to [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// PageIndex converts the 1-based page number used by the API and storage
// into a 0-based index into a document's page list.
func PageIndex(page int) int {
	return page - 1
}
