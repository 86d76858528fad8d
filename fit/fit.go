// Package fit maps photos of arbitrary size and orientation onto a fixed
// resolution canvas.
//
// Fit is a pure function: it never mutates its input, holds no state and may
// be called concurrently on independent images.
package fit

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Result is a display-ready raster and where to place it on the canvas.
type Result struct {
	Raster *image.NRGBA
	Offset image.Point
	Canvas Size
}

// Fit orients, rotates and scales src onto a canvas sized surface.
//
// In Contain mode the raster is the scaled image only; the caller paints the
// background and blits the raster at Offset (see Compose). In Cover mode the
// raster is exactly canvas sized and Offset is the origin.
func Fit(src Image, rotation Rotation, canvas Size, mode Mode) (Result, error) {
	if !canvas.Valid() {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidCanvas, canvas)
	}
	if !mode.Valid() {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedMode, mode)
	}
	if !rotation.Valid() {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidRotation, int(rotation))
	}
	if src.Pixels == nil || !src.Size().Valid() {
		return Result{}, fmt.Errorf("%w: no pixels", ErrInvalidImage)
	}

	img := Rotate(src.Upright(), rotation)
	layout, err := Plan(SizeOf(img), canvas, mode)
	if err != nil {
		return Result{}, err
	}

	// Resample only the part of the source that survives the crop; the full
	// Cover scale of a thin photo can be millions of pixels tall.
	if region := sourceRegion(img.Bounds(), layout); region != img.Bounds() {
		img = imaging.Crop(img, region)
	}
	raster := scale(img, layout.Raster())
	return Result{
		Raster: raster,
		Offset: layout.Offset,
		Canvas: canvas,
	}, nil
}

// sourceRegion maps the layout's crop from scaled coordinates back onto the
// source bounds b, widened to whole source pixels.
func sourceRegion(b image.Rectangle, l Layout) image.Rectangle {
	iw, ih := int64(b.Dx()), int64(b.Dy())
	nw, nh := int64(l.Scaled.Width), int64(l.Scaled.Height)
	c := l.Crop
	x0 := int64(c.Min.X) * iw / nw
	y0 := int64(c.Min.Y) * ih / nh
	x1 := ceilDiv(int64(c.Max.X)*iw, nw)
	y1 := ceilDiv(int64(c.Max.Y)*ih, nh)
	return image.Rect(int(x0), int(y0), int(x1), int(y1)).Add(b.Min).Intersect(b)
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// scale resamples img to s with a Lanczos filter. Same size is a copy.
func scale(img image.Image, s Size) *image.NRGBA {
	if SizeOf(img) == s {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, s.Width, s.Height, imaging.Lanczos)
}

// Compose paints a canvas sized frame with bg and draws the raster at its
// offset. A nil bg means opaque black.
func (r Result) Compose(bg color.Color) *image.NRGBA {
	if bg == nil {
		bg = color.Black
	}
	dst := image.NewNRGBA(image.Rect(0, 0, r.Canvas.Width, r.Canvas.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	if r.Raster == nil {
		return dst
	}
	sb := r.Raster.Bounds()
	rect := image.Rectangle{Min: r.Offset, Max: r.Offset.Add(sb.Size())}
	draw.Draw(dst, rect, r.Raster, sb.Min, draw.Over)
	return dst
}

// Thumbnail returns src upright and scaled down to fit a box x box square.
// Images already inside the box are not enlarged.
func Thumbnail(src Image, box int) (*image.NRGBA, error) {
	if box <= 0 {
		return nil, fmt.Errorf("%w: thumbnail size %d", ErrInvalidCanvas, box)
	}
	if src.Pixels == nil || !src.Size().Valid() {
		return nil, fmt.Errorf("%w: no pixels", ErrInvalidImage)
	}
	thumb := resize.Thumbnail(uint(box), uint(box), src.Upright(), resize.Lanczos3)
	return imaging.Clone(thumb), nil
}

// Downscale bounds src to a box x box square, applying orientation. Uploads
// are stored this way to save space.
func Downscale(src Image, box int) *image.NRGBA {
	img := src.Upright()
	s := SizeOf(img)
	if box <= 0 || (s.Width <= box && s.Height <= box) {
		return imaging.Clone(img)
	}
	return imaging.Fit(img, box, box, imaging.Lanczos)
}
