package preview

// Rect is an axis-aligned box. In document space the origin is the page's
// bottom-left corner and units are PDF points; in canvas space the origin
// is top-left and units are device pixels.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// FieldBox locates one widget of a form field on a page (zero-based).
type FieldBox struct {
	Page int
	Rect Rect
}

// ToCanvas converts a document-space box on a page of pageHeight points
// into canvas pixels at scale and pixelRatio, flipping the y axis.
func ToCanvas(box Rect, pageHeight, scale, pixelRatio float64) Rect {
	if pixelRatio <= 0 {
		pixelRatio = 1
	}
	k := scale * pixelRatio
	return Rect{
		X:      box.X * k,
		Y:      (pageHeight - box.Y - box.Height) * k,
		Width:  box.Width * k,
		Height: box.Height * k,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
