package frame

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

// newTestStore returns a config store in a temp dir with a small canvas
// and the photo directory next to the config file.
func newTestStore(t *testing.T) *ConfigStore {
	t.Helper()
	dir := t.TempDir()
	store, err := LoadConfig(filepath.Join(dir, "config.toml"), nil)
	require.NoError(t, err)
	_, err = store.Update(func(c *Config) error {
		c.Display.Width = 80
		c.Display.Height = 48
		c.Photos.Directory = filepath.Join(dir, "photos")
		return nil
	})
	require.NoError(t, err)
	return store
}

func newTestLibrary(t *testing.T, store *ConfigStore) *Library {
	t.Helper()
	lib, err := NewLibrary(LibraryConfig{Config: store})
	require.NoError(t, err)
	return lib
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

func encodeTestImage(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	return encodeTestImage(t, solidImage(w, h, c), imaging.JPEG)
}

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	return encodeTestImage(t, solidImage(w, h, c), imaging.PNG)
}

// putPhoto drops a file straight into the photo directory, bypassing Save.
func putPhoto(t *testing.T, lib *Library, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(lib.Dir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err)
	return img
}

// near reports whether c is within tolerance of want on every channel,
// which is as exact as JPEG round trips get.
func near(c color.Color, want color.NRGBA, tolerance int) bool {
	got := color.NRGBAModel.Convert(c).(color.NRGBA)
	d := func(a, b uint8) bool {
		diff := int(a) - int(b)
		return diff <= tolerance && diff >= -tolerance
	}
	return d(got.R, want.R) && d(got.G, want.G) && d(got.B, want.B)
}
