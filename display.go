package frame

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/szxp/frame/fit"
)

// Display is the surface the slideshow paints on. Show receives complete,
// canvas sized frames and is only ever called from one goroutine at a time.
type Display interface {
	Size() fit.Size
	Show(frame *image.NRGBA) error
	Close() error
}

// FileDisplay writes every frame to a JPEG file. It stands in for a screen
// on headless machines.
type FileDisplay struct {
	Path   string
	Canvas fit.Size
}

func (d *FileDisplay) Size() fit.Size {
	return d.Canvas
}

func (d *FileDisplay) Show(frame *image.NRGBA) error {
	dir := filepath.Dir(d.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	buf, err := encodeJPEG(frame, PhotoQuality)
	if err != nil {
		return err
	}
	tmp := d.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.Path)
}

func (d *FileDisplay) Close() error {
	return nil
}

// messageScale is how many screen pixels one font pixel takes.
func messageScale(canvas fit.Size, textW, textH int) int {
	s := min(canvas.Width*3/4/max(textW, 1), canvas.Height/2/max(textH, 1))
	return max(1, min(s, 4))
}

// renderMessage draws centered lines of text on a canvas sized frame.
func renderMessage(canvas fit.Size, msg string, fg, bg color.Color) *image.NRGBA {
	face := basicfont.Face7x13
	lines := strings.Split(msg, "\n")
	lineH := face.Metrics().Height.Ceil()

	textW := 0
	for _, line := range lines {
		textW = max(textW, font.MeasureString(face, line).Ceil())
	}
	textH := lineH * len(lines)

	text := image.NewNRGBA(image.Rect(0, 0, max(textW, 1), max(textH, 1)))
	d := &font.Drawer{
		Dst:  text,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	for i, line := range lines {
		w := font.MeasureString(face, line).Ceil()
		d.Dot = fixed.P((textW-w)/2, i*lineH+face.Metrics().Ascent.Ceil())
		d.DrawString(line)
	}

	frame := imaging.New(canvas.Width, canvas.Height, bg)
	scale := messageScale(canvas, textW, textH)
	w, h := textW*scale, textH*scale
	at := image.Pt((canvas.Width-w)/2, (canvas.Height-h)/2)
	// A bitmap font is scaled without interpolation to keep its edges.
	draw.NearestNeighbor.Scale(frame, image.Rectangle{Min: at, Max: at.Add(image.Pt(w, h))}, text, text.Bounds(), draw.Over, nil)
	return frame
}
