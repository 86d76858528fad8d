package fit

import (
	"fmt"
	"image"
)

// Size is a width and height in pixels.
type Size struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// SizeOf returns the dimensions of img.
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// Layout is the geometry of a single fit.
type Layout struct {
	// Scaled is the size the source is resampled to.
	Scaled Size

	// Crop is the region of the resampled image that ends up in the raster.
	// For Contain it covers the whole resampled image.
	Crop image.Rectangle

	// Offset is where the raster's top-left corner lands on the canvas.
	Offset image.Point
}

// Raster returns the size of the raster produced by this layout.
func (l Layout) Raster() Size {
	return Size{Width: l.Crop.Dx(), Height: l.Crop.Dy()}
}

// Plan computes the scale, crop and placement of a src sized image on canvas.
//
// Scales are compared by cross-multiplication so that the bounding dimension
// lands exactly on the canvas edge; the other dimension is truncated toward
// zero and never drops below one pixel.
func Plan(src, canvas Size, mode Mode) (Layout, error) {
	if !canvas.Valid() {
		return Layout{}, fmt.Errorf("%w: %v", ErrInvalidCanvas, canvas)
	}
	if !src.Valid() {
		return Layout{}, fmt.Errorf("%w: %v", ErrInvalidImage, src)
	}

	iw, ih := int64(src.Width), int64(src.Height)
	cw, ch := int64(canvas.Width), int64(canvas.Height)

	// cw/iw <= ch/ih
	widthBound := cw*ih <= ch*iw

	var nw, nh int64
	switch mode {
	case Contain:
		if widthBound {
			nw, nh = cw, ih*cw/iw
		} else {
			nw, nh = iw*ch/ih, ch
		}
	case Cover:
		// ch/ih <= cw/iw
		if ch*iw <= cw*ih {
			nw, nh = cw, ih*cw/iw
		} else {
			nw, nh = iw*ch/ih, ch
		}
	default:
		return Layout{}, fmt.Errorf("%w: %v", ErrUnsupportedMode, mode)
	}
	nw = max(nw, 1)
	nh = max(nh, 1)

	scaled := Size{Width: int(nw), Height: int(nh)}
	l := Layout{Scaled: scaled}

	if mode == Contain {
		l.Crop = image.Rect(0, 0, scaled.Width, scaled.Height)
		l.Offset = image.Pt((canvas.Width-scaled.Width)/2, (canvas.Height-scaled.Height)/2)
		return l, nil
	}

	w := min(canvas.Width, scaled.Width)
	h := min(canvas.Height, scaled.Height)
	left := clamp((scaled.Width-canvas.Width)/2, 0, scaled.Width-w)
	top := clamp((scaled.Height-canvas.Height)/2, 0, scaled.Height-h)
	l.Crop = image.Rect(left, top, left+w, top+h)
	return l, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
