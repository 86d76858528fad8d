package imagemagick

import (
	"fmt"
	"os/exec"
	"strings"
)

// Converter shells out to ImageMagick for formats the Go decoders do not
// cover, HEIC and HEIF photos from phones in particular.
type Converter struct {
	// Binary is the ImageMagick entry point, "convert" when empty.
	Binary string
}

func (c *Converter) binary() string {
	if c.Binary == "" {
		return "convert"
	}
	return c.Binary
}

// Convert writes src to dst as a JPEG.
func (c *Converter) Convert(dst, src string) error {
	out, err := exec.Command(c.binary(), args(dst, src)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("Failed to convert %s: %w: %s", src, err, out)
	}
	return nil
}

func args(dst, src string) []string {
	return []string{
		// use only the first frame
		src + "[0]",

		// reads and resets the EXIF image profile setting 'Orientation' and then performs the appropriate 90 degree rotation on the image to orient the image, for correct viewing
		"-auto-orient",

		"-quality", "90",

		// removes any ICM, EXIF, IPTC, or other profiles
		"-strip",

		"jpeg:" + dst,
	}
}

// Version returns the first line of the ImageMagick version banner.
func (c *Converter) Version() (string, error) {
	ver, err := exec.Command(c.binary(), "-version").Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(ver), "\n")
	return strings.TrimSpace(line), nil
}
