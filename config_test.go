package frame

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szxp/frame/fit"
)

func TestLoadConfig_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame", "config.toml")

	store, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), store.Get())
	assert.Equal(t, path, store.Path())
	assert.FileExists(t, path)

	again, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), again.Get())
}

func TestLoadConfig_MissingKeysKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[display]
width = 1024
fit_mode = "cover"
rotation = 90

[web]
port = 8080

[extra]
ignored = true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	store, err := LoadConfig(path, nil)
	require.NoError(t, err)

	cfg := store.Get()
	assert.Equal(t, 1024, cfg.Display.Width)
	assert.Equal(t, 480, cfg.Display.Height)
	assert.Equal(t, fit.Cover, cfg.Display.FitMode)
	assert.Equal(t, fit.Rotate90, cfg.Display.Rotation)
	assert.Equal(t, 60, cfg.Display.Interval)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, "0.0.0.0", cfg.Web.Host)
	assert.Equal(t, DefaultConfig().Photos, cfg.Photos)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{"zero width", "[display]\nwidth = 0\n", fit.ErrInvalidCanvas},
		{"odd rotation", "[display]\nrotation = 45\n", fit.ErrInvalidRotation},
		{"unknown mode", "[display]\nfit_mode = \"stretch\"\n", nil},
		{"broken toml", "[display\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))

			_, err := LoadConfig(path, nil)
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestConfigStore_UpdatePersists(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.Update(func(c *Config) error {
		c.Display.Interval = 10
		c.Display.Shuffle = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Display.Interval)

	reloaded, err := LoadConfig(store.Path(), nil)
	require.NoError(t, err)
	assert.Equal(t, store.Get(), reloaded.Get())
	assert.True(t, reloaded.Get().Display.Shuffle)
}

func TestConfigStore_UpdateRejected(t *testing.T) {
	store := newTestStore(t)
	before := store.Get()
	file, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	_, err = store.Update(func(c *Config) error {
		c.Display.Width = -1
		return nil
	})
	assert.ErrorIs(t, err, fit.ErrInvalidCanvas)

	fnErr := errors.New("boom")
	_, err = store.Update(func(c *Config) error {
		c.Display.Width = 1000
		return fnErr
	})
	assert.ErrorIs(t, err, fnErr)

	assert.Equal(t, before, store.Get())
	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, file, after)
}

func TestConfigStore_Changed(t *testing.T) {
	store := newTestStore(t)
	changed := store.Changed()

	_, err := store.Update(func(c *Config) error {
		c.Display.Width = -1
		return nil
	})
	require.Error(t, err)
	select {
	case <-changed:
		t.Fatal("rejected update must not notify")
	default:
	}

	_, err = store.Update(func(c *Config) error {
		c.Display.Interval = 5
		return nil
	})
	require.NoError(t, err)
	select {
	case <-changed:
	default:
		t.Fatal("update did not notify")
	}

	next := store.Changed()
	assert.NotEqual(t, changed, next)
	select {
	case <-next:
		t.Fatal("fresh channel is already closed")
	default:
	}
}

func TestConfigStore_GetReturnsSnapshot(t *testing.T) {
	store := newTestStore(t)

	cfg := store.Get()
	cfg.Photos.AllowedExtensions[0] = "exe"
	cfg.Display.Width = 1

	assert.Equal(t, "jpg", store.Get().Photos.AllowedExtensions[0])
	assert.Equal(t, 80, store.Get().Display.Width)
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Display.Interval = 0
	cfg.Photos.Directory = ""
	cfg.System.LogLevel = "LOUD"
	cfg.Web.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"slideshow_interval", "directory", "log_level", "port"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestDisplayConfig_BackgroundColor(t *testing.T) {
	c := DisplayConfig{Background: "#ff8000"}
	assert.Equal(t, color.NRGBA{R: 255, G: 128, B: 0, A: 255}, c.BackgroundColor())

	c.Background = "orange"
	assert.Equal(t, color.Black, c.BackgroundColor())
}

func TestPhotosConfig_Allowed(t *testing.T) {
	c := DefaultConfig().Photos
	assert.True(t, c.Allowed(".JPG"))
	assert.True(t, c.Allowed("heic"))
	assert.False(t, c.Allowed(".txt"))
	assert.False(t, c.Allowed(""))
	assert.False(t, c.Allowed("."))
}

func TestWebConfig_Addr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:5000", DefaultConfig().Web.Addr())
}
