package frame

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/hashicorp/go-hclog"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/szxp/frame/fit"
)

const configFileName = "frame/config.toml"

type Config struct {
	Display DisplayConfig `toml:"display" json:"display"`
	Photos  PhotosConfig  `toml:"photos" json:"photos"`
	System  SystemConfig  `toml:"system" json:"system"`
	Web     WebConfig     `toml:"web" json:"web"`
}

type DisplayConfig struct {
	Width      int          `toml:"width" json:"width"`
	Height     int          `toml:"height" json:"height"`
	Rotation   fit.Rotation `toml:"rotation" json:"rotation"`
	FitMode    fit.Mode     `toml:"fit_mode" json:"fit_mode"`
	Interval   int          `toml:"slideshow_interval" json:"slideshow_interval"` // seconds
	Background string       `toml:"background" json:"background"`
	Shuffle    bool         `toml:"shuffle" json:"shuffle"`
}

type PhotosConfig struct {
	Directory         string   `toml:"directory" json:"directory"`
	AllowedExtensions []string `toml:"allowed_extensions" json:"allowed_extensions"`
	MaxUploadSizeMB   int      `toml:"max_upload_size_mb" json:"max_upload_size_mb"`
	ThumbnailSize     int      `toml:"thumbnail_size" json:"thumbnail_size"`
	MaxDimension      int      `toml:"max_dimension" json:"max_dimension"`
}

type SystemConfig struct {
	LogLevel string `toml:"log_level" json:"log_level"`
}

type WebConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`
}

// DefaultConfig returns the settings used for keys missing from the file.
func DefaultConfig() Config {
	return Config{
		Display: DisplayConfig{
			Width:      800,
			Height:     480,
			Rotation:   fit.Rotate0,
			FitMode:    fit.Contain,
			Interval:   60,
			Background: "#000000",
		},
		Photos: PhotosConfig{
			Directory:         "photos",
			AllowedExtensions: []string{"jpg", "jpeg", "png", "bmp", "gif", "webp", "heic", "heif"},
			MaxUploadSizeMB:   50,
			ThumbnailSize:     200,
			MaxDimension:      1920,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
	}
}

// Canvas returns the configured display resolution.
func (c DisplayConfig) Canvas() fit.Size {
	return fit.Size{Width: c.Width, Height: c.Height}
}

// BackgroundColor parses the hex background, falling back to black.
func (c DisplayConfig) BackgroundColor() color.Color {
	col, err := colorful.Hex(c.Background)
	if err != nil {
		return color.Black
	}
	r, g, b := col.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Addr returns the listen address of the web server.
func (c WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Allowed reports whether ext (with or without the dot) is an accepted
// photo extension.
func (c PhotosConfig) Allowed(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return false
	}
	for _, e := range c.AllowedExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Validate rejects settings the frame cannot run with.
func (c Config) Validate() error {
	var errs []error
	if !c.Display.Canvas().Valid() {
		errs = append(errs, fmt.Errorf("display: %w: %v", fit.ErrInvalidCanvas, c.Display.Canvas()))
	}
	if !c.Display.Rotation.Valid() {
		errs = append(errs, fmt.Errorf("display: %w: %d", fit.ErrInvalidRotation, int(c.Display.Rotation)))
	}
	if !c.Display.FitMode.Valid() {
		errs = append(errs, fmt.Errorf("display: %w", fit.ErrUnsupportedMode))
	}
	if c.Display.Interval <= 0 {
		errs = append(errs, fmt.Errorf("display: slideshow_interval must be positive, got %d", c.Display.Interval))
	}
	if _, err := colorful.Hex(c.Display.Background); err != nil {
		errs = append(errs, fmt.Errorf("display: background %q: %w", c.Display.Background, err))
	}
	if c.Photos.Directory == "" {
		errs = append(errs, errors.New("photos: directory is empty"))
	}
	if len(c.Photos.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("photos: allowed_extensions is empty"))
	}
	if c.Photos.MaxUploadSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("photos: max_upload_size_mb must be positive, got %d", c.Photos.MaxUploadSizeMB))
	}
	if c.Photos.ThumbnailSize <= 0 {
		errs = append(errs, fmt.Errorf("photos: thumbnail_size must be positive, got %d", c.Photos.ThumbnailSize))
	}
	if c.Photos.MaxDimension < 0 {
		errs = append(errs, fmt.Errorf("photos: max_dimension must not be negative, got %d", c.Photos.MaxDimension))
	}
	if hclog.LevelFromString(c.System.LogLevel) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("system: unknown log_level %q", c.System.LogLevel))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web: invalid port %d", c.Web.Port))
	}
	return errors.Join(errs...)
}

func (c Config) clone() Config {
	c.Photos.AllowedExtensions = append([]string(nil), c.Photos.AllowedExtensions...)
	return c
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/frame/config.toml, creating
// the parent directory.
func DefaultConfigPath() (string, error) {
	return xdg.ConfigFile(configFileName)
}

// ConfigStore holds the live configuration and persists every change.
// Readers get value snapshots, so a slideshow transition never sees a
// half-applied update.
type ConfigStore struct {
	path   string
	logger hclog.Logger

	mu      sync.RWMutex
	cfg     Config
	changed chan struct{}
}

// LoadConfig reads the TOML file at path. Keys missing from the file keep
// their defaults; a missing file is created with the defaults.
func LoadConfig(path string, logger hclog.Logger) (*ConfigStore, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &ConfigStore{
		path:   path,
		logger: logger,
		cfg:    DefaultConfig(),
	}

	md, err := toml.DecodeFile(path, &s.cfg)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("Config file not found, creating default", "path", path)
		if err := s.save(s.cfg); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		logger.Warn("Unknown config key", "key", key.String())
	}

	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return s, nil
}

// Path returns the file the store persists to.
func (s *ConfigStore) Path() string {
	return s.path
}

// Get returns a snapshot of the current configuration.
func (s *ConfigStore) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.clone()
}

// Changed returns a channel that is closed by the next successful Update.
func (s *ConfigStore) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.changed == nil {
		s.changed = make(chan struct{})
	}
	return s.changed
}

// Update applies fn to a copy of the configuration, validates and persists
// it, and only then makes it live. An error from fn leaves it untouched.
func (s *ConfigStore) Update(fn func(*Config) error) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	if err := fn(&next); err != nil {
		return s.cfg.clone(), err
	}
	if err := next.Validate(); err != nil {
		return s.cfg.clone(), err
	}
	if err := s.save(next); err != nil {
		return s.cfg.clone(), err
	}
	s.cfg = next
	if s.changed != nil {
		close(s.changed)
		s.changed = nil
	}
	s.logger.Info("Configuration updated", "path", s.path)
	return next.clone(), nil
}

func (s *ConfigStore) save(cfg Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer os.Remove(f.Name())

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(f.Name(), s.path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
