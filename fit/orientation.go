package fit

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF orientation tag (0x0112) of a photo.
type Orientation int

const (
	OrientationNormal     Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate90   Orientation = 6 // stored pixels need a clockwise quarter turn
	OrientationTransverse Orientation = 7
	OrientationRotate270  Orientation = 8
)

// Orient returns img with the orientation transform applied so that visual
// "up" matches the pixel order. Unknown or normal orientations return img as is.
func Orient(img image.Image, o Orientation) image.Image {
	switch o {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Transpose(img)
	case OrientationRotate90:
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Transverse(img)
	case OrientationRotate270:
		return imaging.Rotate90(img)
	}
	return img
}

// Rotate turns img clockwise by r. imaging rotates counter-clockwise.
func Rotate(img image.Image, r Rotation) image.Image {
	switch r {
	case Rotate90:
		return imaging.Rotate270(img)
	case Rotate180:
		return imaging.Rotate180(img)
	case Rotate270:
		return imaging.Rotate90(img)
	}
	return img
}

// readOrientation returns the EXIF orientation of an encoded photo.
// Missing, malformed or out of range tags read as normal.
func readOrientation(data []byte) (o Orientation) {
	// goexif indexes IFD data straight from the file.
	defer func() {
		if recover() != nil {
			o = OrientationNormal
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return OrientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil || tag.Count != 1 {
		return OrientationNormal
	}
	v, err := tag.Int(0)
	if err != nil || v < int(OrientationNormal) || v > int(OrientationRotate270) {
		return OrientationNormal
	}
	return Orientation(v)
}
