package fit

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // GIF uploads
	_ "image/jpeg" // JPEG uploads
	_ "image/png"  // PNG uploads
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP uploads
	_ "golang.org/x/image/webp" // WebP uploads
)

// Image is a decoded photo: its pixels as stored plus the orientation the
// camera recorded for them.
type Image struct {
	Pixels      image.Image
	Orientation Orientation
}

// Size returns the stored pixel dimensions, before orientation.
func (i Image) Size() Size {
	if i.Pixels == nil {
		return Size{}
	}
	return SizeOf(i.Pixels)
}

// Decode reads a complete encoded image from r. Orientation metadata is
// recorded, not applied; Fit applies it.
func Decode(r io.Reader) (Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Image{}, fmt.Errorf("%w: read: %w", ErrDecode, err)
	}
	return DecodeBytes(data)
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return Image{
		Pixels:      img,
		Orientation: readOrientation(data),
	}, nil
}

// Open decodes the image stored at path.
func Open(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return DecodeBytes(data)
}

// Upright returns the pixels with the orientation applied.
func (i Image) Upright() image.Image {
	return Orient(i.Pixels, i.Orientation)
}
