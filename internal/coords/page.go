package coords

// PageBox is the visible area of a page in PDF user space together with the
// page's /Rotate value.
type PageBox struct {
	LLX, LLY, URX, URY float64
	Rotate             int
}

// Placement is an anchor point in PDF user space plus the orientation of
// the displayed page's x and y axes (A,B and C,D), ready to be used as the
// first four operands of a Tm or cm operator.
type Placement struct {
	X, Y       float64
	A, B, C, D float64
}

// NormalizeRotation maps any multiple of 90 to 0, 90, 180 or 270. Other
// values are treated as 0.
func NormalizeRotation(r int) int {
	r %= 360
	if r < 0 {
		r += 360
	}
	switch r {
	case 90, 180, 270:
		return r
	default:
		return 0
	}
}

func (b PageBox) Width() float64  { return b.URX - b.LLX }
func (b PageBox) Height() float64 { return b.URY - b.LLY }

// VisualWidth is the width of the page as displayed, after rotation.
func (b PageBox) VisualWidth() float64 {
	if r := NormalizeRotation(b.Rotate); r == 90 || r == 270 {
		return b.Height()
	}
	return b.Width()
}

// VisualHeight is the height of the page as displayed, after rotation.
func (b PageBox) VisualHeight() float64 {
	if r := NormalizeRotation(b.Rotate); r == 90 || r == 270 {
		return b.Width()
	}
	return b.Height()
}

// ToPageSpace converts a normalized, top-origin coordinate into PDF user
// space. Both fractions are clamped to [0,1]. No vertical adjustment is
// applied: the returned point is where a text baseline starts or where an
// image's bottom-left corner goes, as seen on the displayed page.
func (b PageBox) ToPageSpace(x, y float64) Placement {
	u, v := Clamp(x), Clamp(y)
	w, h := b.Width(), b.Height()

	switch NormalizeRotation(b.Rotate) {
	case 90:
		return Placement{X: b.LLX + v*w, Y: b.LLY + u*h, A: 0, B: 1, C: -1, D: 0}
	case 180:
		return Placement{X: b.URX - u*w, Y: b.LLY + v*h, A: -1, B: 0, C: 0, D: -1}
	case 270:
		return Placement{X: b.URX - v*w, Y: b.URY - u*h, A: 0, B: -1, C: 1, D: 0}
	default:
		return Placement{X: b.LLX + u*w, Y: b.URY - v*h, A: 1, B: 0, C: 0, D: 1}
	}
}
