// Package fbdev paints frames on a Linux framebuffer device such as
// /dev/fb0. It writes straight to the device file, so no display server
// is needed.
package fbdev

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/szxp/frame/fit"
)

const sysfsGraphics = "/sys/class/graphics"

var ErrUnsupportedDepth = errors.New("unsupported pixel depth")

// ChannelOrder is the byte order of a 32bpp pixel in framebuffer memory.
// 16bpp framebuffers are always RGB565.
type ChannelOrder int

const (
	BGRX ChannelOrder = iota // most fbdev drivers, vc4 included
	RGBX
)

func (o ChannelOrder) String() string {
	if o == RGBX {
		return "RGBX"
	}
	return "BGRX"
}

// Geometry is the memory layout of a framebuffer.
type Geometry struct {
	Width        int // visible
	Height       int // visible
	BitsPerPixel int
	Stride       int // bytes per line
	Order        ChannelOrder
}

func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid framebuffer size %dx%d", g.Width, g.Height)
	}
	if g.BitsPerPixel != 16 && g.BitsPerPixel != 32 {
		return fmt.Errorf("%w: %d bpp", ErrUnsupportedDepth, g.BitsPerPixel)
	}
	if g.Stride < g.Width*g.BitsPerPixel/8 {
		return fmt.Errorf("stride %d too small for %d pixels at %d bpp", g.Stride, g.Width, g.BitsPerPixel)
	}
	return nil
}

// ReadGeometry reads the layout of the named framebuffer (fb0, fb1...)
// from sysfs below root. An empty root means /sys/class/graphics.
func ReadGeometry(root, name string) (Geometry, error) {
	if root == "" {
		root = sysfsGraphics
	}
	dir := filepath.Join(root, name)

	var g Geometry
	size, err := readAttr(dir, "virtual_size")
	if err != nil {
		return g, err
	}
	w, h, ok := strings.Cut(size, ",")
	if !ok {
		return g, fmt.Errorf("parse %s/virtual_size: %q", dir, size)
	}
	if g.Width, err = strconv.Atoi(w); err != nil {
		return g, fmt.Errorf("parse %s/virtual_size: %w", dir, err)
	}
	if g.Height, err = strconv.Atoi(h); err != nil {
		return g, fmt.Errorf("parse %s/virtual_size: %w", dir, err)
	}

	// The virtual area is often taller than the screen (double buffering);
	// the current mode names the visible part.
	if modes, err := readAttr(dir, "modes"); err == nil {
		if mw, mh, ok := parseMode(modes); ok && mw <= g.Width && mh <= g.Height {
			g.Width, g.Height = mw, mh
		}
	}

	if g.BitsPerPixel, err = readIntAttr(dir, "bits_per_pixel"); err != nil {
		return g, err
	}
	if g.Stride, err = readIntAttr(dir, "stride"); err != nil {
		return g, err
	}
	return g, g.Validate()
}

// parseMode reads the size from the first line of a sysfs modes file,
// e.g. "U:800x480p-60".
func parseMode(modes string) (w, h int, ok bool) {
	line, _, _ := strings.Cut(modes, "\n")
	_, mode, ok := strings.Cut(line, ":")
	if !ok {
		return 0, 0, false
	}
	ws, rest, ok := strings.Cut(mode, "x")
	if !ok {
		return 0, 0, false
	}
	end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(rest)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, false
	}
	h, err = strconv.Atoi(rest[:end])
	if err != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

func readAttr(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readIntAttr(dir, name string) (int, error) {
	s, err := readAttr(dir, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s/%s: %w", dir, name, err)
	}
	return n, nil
}

// Framebuffer is a display backed by framebuffer memory.
type Framebuffer struct {
	w   io.WriterAt
	geo Geometry
	buf []byte
}

// Open opens a framebuffer device and reads its geometry from sysfs.
// sysfs does not expose the channel layout, so 32bpp pixels are written
// in the given order.
func Open(device string, order ChannelOrder) (*Framebuffer, error) {
	g, err := ReadGeometry("", filepath.Base(device))
	if err != nil {
		return nil, fmt.Errorf("framebuffer %s: %w", device, err)
	}
	g.Order = order
	f, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	return New(f, g)
}

// New returns a framebuffer writing to w. If w is an io.Closer, Close
// closes it.
func New(w io.WriterAt, g Geometry) (*Framebuffer, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Framebuffer{
		w:   w,
		geo: g,
		buf: make([]byte, g.Stride*g.Height),
	}, nil
}

func (fb *Framebuffer) Geometry() Geometry {
	return fb.geo
}

func (fb *Framebuffer) Size() fit.Size {
	return fit.Size{Width: fb.geo.Width, Height: fb.geo.Height}
}

// Show writes frame to the top left corner of the screen. Pixels outside
// the frame are black, parts of the frame outside the screen are dropped.
func (fb *Framebuffer) Show(frame *image.NRGBA) error {
	fb.pack(frame)
	_, err := fb.w.WriteAt(fb.buf, 0)
	return err
}

func (fb *Framebuffer) pack(frame *image.NRGBA) {
	clear(fb.buf)
	b := frame.Bounds()
	w := min(b.Dx(), fb.geo.Width)
	h := min(b.Dy(), fb.geo.Height)
	for y := 0; y < h; y++ {
		src := frame.Pix[frame.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := fb.buf[y*fb.geo.Stride:]
		for x := 0; x < w; x++ {
			r, g, bl := overBlack(src[x*4:])
			switch fb.geo.BitsPerPixel {
			case 16:
				v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(bl>>3)
				dst[x*2] = byte(v)
				dst[x*2+1] = byte(v >> 8)
			case 32:
				if fb.geo.Order == RGBX {
					dst[x*4], dst[x*4+2] = r, bl
				} else {
					dst[x*4], dst[x*4+2] = bl, r
				}
				dst[x*4+1] = g
				dst[x*4+3] = 0xff
			}
		}
	}
}

// overBlack composites a non-premultiplied RGBA pixel over black.
func overBlack(p []byte) (r, g, b uint8) {
	a := uint32(p[3])
	if a == 0xff {
		return p[0], p[1], p[2]
	}
	return uint8(uint32(p[0]) * a / 0xff), uint8(uint32(p[1]) * a / 0xff), uint8(uint32(p[2]) * a / 0xff)
}

func (fb *Framebuffer) Close() error {
	if c, ok := fb.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
