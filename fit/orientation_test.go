package fit

import (
	"encoding/binary"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

var exifHeader = []byte("Exif\x00\x00")

const (
	markerAPP1     = 0xE1
	tagOrientation = 0x0112
	typeShort      = 3
	typeLong       = 4
)

// exifSegment builds an APP1 segment holding a single orientation entry.
func exifSegment(order binary.ByteOrder, o Orientation) []byte {
	return exifSegmentTyped(order, typeShort, o)
}

func exifSegmentTyped(order binary.ByteOrder, typ uint16, o Orientation) []byte {
	tiff := make([]byte, 26)
	if order == binary.LittleEndian {
		copy(tiff, "II")
	} else {
		copy(tiff, "MM")
	}
	order.PutUint16(tiff[2:], 42)
	order.PutUint32(tiff[4:], 8)
	order.PutUint16(tiff[8:], 1)
	order.PutUint16(tiff[10:], tagOrientation)
	order.PutUint16(tiff[12:], typ)
	order.PutUint32(tiff[14:], 1)
	if typ == typeLong {
		order.PutUint32(tiff[18:], uint32(o))
	} else {
		order.PutUint16(tiff[18:], uint16(o))
	}

	payload := append(append([]byte(nil), exifHeader...), tiff...)
	seg := []byte{0xFF, markerAPP1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}

// withExifOrientation inserts an Exif segment right after the SOI marker.
func withExifOrientation(jpegData []byte, o Orientation) []byte {
	out := append([]byte(nil), jpegData[:2]...)
	out = append(out, exifSegment(binary.BigEndian, o)...)
	return append(out, jpegData[2:]...)
}

func TestReadOrientation(t *testing.T) {
	soi := []byte{0xFF, 0xD8}
	eoi := []byte{0xFF, 0xD9}
	app0 := []byte{0xFF, 0xE0, 0x00, 0x04, 'J', 'F'}

	join := func(parts ...[]byte) []byte {
		var out []byte
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}

	tests := []struct {
		name string
		data []byte
		want Orientation
	}{
		{"big endian", join(soi, exifSegment(binary.BigEndian, OrientationRotate90), eoi), OrientationRotate90},
		{"little endian", join(soi, exifSegment(binary.LittleEndian, OrientationTransverse), eoi), OrientationTransverse},
		{"after app0", join(soi, app0, exifSegment(binary.BigEndian, OrientationRotate180), eoi), OrientationRotate180},
		{"long value", join(soi, exifSegmentTyped(binary.LittleEndian, typeLong, OrientationRotate270), eoi), OrientationRotate270},
		{"out of range value", join(soi, exifSegment(binary.BigEndian, 9), eoi), OrientationNormal},
		{"zero value", join(soi, exifSegment(binary.BigEndian, 0), eoi), OrientationNormal},
		{"no exif", join(soi, app0, eoi), OrientationNormal},
		{"not a jpeg", []byte("\x89PNG\r\n\x1a\n"), OrientationNormal},
		{"truncated segment", join(soi, []byte{0xFF, 0xE1, 0x40, 0x00, 'E'}), OrientationNormal},
		{"bad tiff header", join(soi, []byte{0xFF, 0xE1, 0x00, 0x0C}, exifHeader, []byte("XX\x00\x00"), eoi), OrientationNormal},
		{"empty", nil, OrientationNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readOrientation(tt.data))
		})
	}
}

func TestOrient(t *testing.T) {
	// 3x2 source; after every transform that swaps axes the size is 2x3.
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(0, 0, red)

	tests := []struct {
		o     Orientation
		size  Size
		redAt image.Point
	}{
		{OrientationNormal, Size{3, 2}, image.Pt(0, 0)},
		{OrientationFlipH, Size{3, 2}, image.Pt(2, 0)},
		{OrientationRotate180, Size{3, 2}, image.Pt(2, 1)},
		{OrientationFlipV, Size{3, 2}, image.Pt(0, 1)},
		{OrientationTranspose, Size{2, 3}, image.Pt(0, 0)},
		{OrientationRotate90, Size{2, 3}, image.Pt(1, 0)},
		{OrientationTransverse, Size{2, 3}, image.Pt(1, 2)},
		{OrientationRotate270, Size{2, 3}, image.Pt(0, 2)},
	}

	for _, tt := range tests {
		out := Orient(src, tt.o)
		assert.Equal(t, tt.size, SizeOf(out), "orientation %d", tt.o)
		r, _, _, _ := out.At(tt.redAt.X, tt.redAt.Y).RGBA()
		assert.Equal(t, uint32(0xFFFF), r, "orientation %d", tt.o)
	}
}
