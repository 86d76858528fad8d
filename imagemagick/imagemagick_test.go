package imagemagick

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	a := args("/out/a.jpg", "/in/a.heic")
	assert.Equal(t, "/in/a.heic[0]", a[0])
	assert.Contains(t, a, "-auto-orient")
	assert.Contains(t, a, "-strip")
	assert.Equal(t, "jpeg:/out/a.jpg", a[len(a)-1])
}

// fakeConvert writes a script that records its arguments into the last one.
func fakeConvert(t *testing.T, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "convert")
	body := fmt.Sprintf("#!/bin/sh\nfor last; do :; done\necho \"$@\" > \"${last#jpeg:}\"\necho oops >&2\nexit %d\n", exitCode)
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	return script
}

func TestConverter_Convert(t *testing.T) {
	c := &Converter{Binary: fakeConvert(t, 0)}
	dst := filepath.Join(t.TempDir(), "out.jpg")

	require.NoError(t, c.Convert(dst, "in.heic"))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "in.heic[0] -auto-orient"))
}

func TestConverter_ConvertFailure(t *testing.T) {
	c := &Converter{Binary: fakeConvert(t, 3)}
	err := c.Convert(filepath.Join(t.TempDir(), "out.jpg"), "in.heic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestConverter_DefaultBinary(t *testing.T) {
	assert.Equal(t, "convert", (&Converter{}).binary())
}

func TestConverter_Version(t *testing.T) {
	script := filepath.Join(t.TempDir(), "convert")
	body := "#!/bin/sh\necho 'Version: ImageMagick 6.9.11-60 Q16 arm'\necho 'Copyright: (C) 1999-2021 ImageMagick Studio LLC'\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	ver, err := (&Converter{Binary: script}).Version()
	require.NoError(t, err)
	assert.Equal(t, "Version: ImageMagick 6.9.11-60 Q16 arm", ver)

	_, err = (&Converter{Binary: filepath.Join(t.TempDir(), "missing")}).Version()
	assert.Error(t, err)
}
