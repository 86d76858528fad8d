package frame

import (
	"bytes"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// JPEG quality of stored photos.
	PhotoQuality = 90

	// JPEG quality of thumbnails.
	ThumbnailQuality = 85
)

// ImageConverter turns formats the decoder cannot read into JPEG files.
type ImageConverter interface {
	Convert(dst, src string) error
}

// needsConversion reports whether name has to go through an ImageConverter
// before it can be decoded.
func needsConversion(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".heic", ".heif":
		return true
	}
	return false
}

func encodeJPEG(img image.Image, quality int) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	if err != nil {
		return nil, err
	}
	return &buf, nil
}

// encodeAs encodes img in the format implied by name's extension.
func encodeAs(name string, img image.Image) (*bytes.Buffer, error) {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = imaging.Encode(&buf, img, format, imaging.JPEGQuality(PhotoQuality))
	if err != nil {
		return nil, err
	}
	return &buf, nil
}
