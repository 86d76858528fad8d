package frame

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/szxp/frame/fit"
)

const thumbnailDirName = "thumbnails"

var (
	ErrPhotoNotFound = errors.New("photo not found")
	ErrNotAllowed    = errors.New("file type not allowed")
	ErrInvalidKey    = errors.New("invalid key")
)

// Photo describes a stored photo as the web interface lists it.
type Photo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Thumbnail string    `json:"thumbnail"`
	Size      string    `json:"size"`
	Bytes     int64     `json:"bytes"`
	Modified  time.Time `json:"date_modified"`
}

type LibraryConfig struct {
	Config    *ConfigStore
	Converter ImageConverter
	Metrics   *Metrics
	Logger    hclog.Logger
}

// Library is the flat photo directory plus its thumbnails subdirectory.
type Library struct {
	conf *LibraryConfig

	thumbnails singleflight.Group
}

func NewLibrary(conf LibraryConfig) (*Library, error) {
	if conf.Config == nil {
		return nil, errors.New("library: config store is required")
	}
	if conf.Logger == nil {
		conf.Logger = hclog.NewNullLogger()
	}
	l := &Library{conf: &conf}
	if err := os.MkdirAll(l.thumbnailDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return l, nil
}

func (l *Library) photos() PhotosConfig {
	return l.conf.Config.Get().Photos
}

// Dir returns the photo directory.
func (l *Library) Dir() string {
	return l.photos().Directory
}

func (l *Library) thumbnailDir() string {
	return filepath.Join(l.Dir(), thumbnailDirName)
}

func (l *Library) photoPath(name string) string {
	return filepath.Join(l.Dir(), filepath.FromSlash(name))
}

func (l *Library) thumbnailPath(name string) string {
	return filepath.Join(l.thumbnailDir(), stem(name)+".jpg")
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

var keyRE *regexp.Regexp = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateKey checks that name is a plain file name with an allowed
// extension, so it can never escape the photo directory.
func (l *Library) validateKey(name string) error {
	if !keyRE.MatchString(name) {
		return fmt.Errorf("%w: %v", ErrInvalidKey, name)
	}

	clean := path.Clean(name)
	if clean != name ||
		clean == "." ||
		strings.HasPrefix(clean, ".") ||
		strings.Contains(clean, "..") {
		return fmt.Errorf("%w: %v", ErrInvalidKey, name)
	}

	ext := path.Ext(name)
	if ext == "" {
		return fmt.Errorf("%w: no ext: %v", ErrInvalidKey, name)
	}
	if !l.photos().Allowed(ext) {
		return fmt.Errorf("%w: %v", ErrNotAllowed, name)
	}
	return nil
}

// Names returns the file names of all photos, sorted.
func (l *Library) Names() ([]string, error) {
	entries, err := os.ReadDir(l.Dir())
	if err != nil {
		return nil, err
	}
	conf := l.photos()
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !conf.Allowed(filepath.Ext(e.Name())) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Paths returns the full paths of all photos, sorted by name.
func (l *Library) Paths() ([]string, error) {
	names, err := l.Names()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = l.photoPath(n)
	}
	return paths, nil
}

// List returns the photos, newest first.
func (l *Library) List() ([]Photo, error) {
	names, err := l.Names()
	if err != nil {
		return nil, err
	}
	photos := make([]Photo, 0, len(names))
	for _, name := range names {
		p, err := l.describe(name)
		if err != nil {
			l.conf.Logger.Warn("Failed to stat photo", "name", name, "error", err)
			continue
		}
		photos = append(photos, p)
	}
	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].Modified.After(photos[j].Modified)
	})
	return photos, nil
}

func (l *Library) describe(name string) (Photo, error) {
	fi, err := os.Stat(l.photoPath(name))
	if err != nil {
		return Photo{}, err
	}
	return Photo{
		ID:        stem(name),
		Name:      name,
		URL:       "/photos/" + name,
		Thumbnail: "/thumbnail/" + name,
		Size:      humanize.IBytes(uint64(fi.Size())),
		Bytes:     fi.Size(),
		Modified:  fi.ModTime().UTC(),
	}, nil
}

// Lookup resolves a photo id (the file name without extension) to its
// file name.
func (l *Library) Lookup(id string) (string, error) {
	if id == "" || !keyRE.MatchString(id) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, id)
	}
	names, err := l.Names()
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if stem(n) == id {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %v", ErrPhotoNotFound, id)
}

// Open opens a stored photo for serving.
func (l *Library) Open(name string) (*os.File, error) {
	if err := l.validateKey(name); err != nil {
		return nil, err
	}
	p := l.photoPath(name)
	l.conf.Logger.Debug("Open", "path", p)
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrPhotoNotFound, name)
	}
	return f, err
}

// Checksum returns the MD5 recorded when the photo was stored, if any.
func (l *Library) Checksum(name string) string {
	sum, err := os.ReadFile(l.photoPath(name) + ".md5")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(sum))
}

// Save stores an uploaded photo. The upload is decoded, put upright,
// bounded to max_dimension and re-encoded as JPEG under a sanitized,
// unique name; its thumbnail is generated right away.
func (l *Library) Save(filename string, r io.Reader) (Photo, error) {
	conf := l.photos()
	name := SafeFilename(filename)
	if !conf.Allowed(filepath.Ext(name)) {
		l.conf.Metrics.countUpload("rejected")
		return Photo{}, fmt.Errorf("%w: %v", ErrNotAllowed, filename)
	}

	data, err := l.readUpload(name, r)
	if err != nil {
		l.conf.Metrics.countUpload("error")
		return Photo{}, err
	}

	src, err := fit.DecodeBytes(data)
	if err != nil {
		l.conf.Metrics.countUpload("invalid")
		return Photo{}, err
	}
	buf, err := encodeJPEG(fit.Downscale(src, conf.MaxDimension), PhotoQuality)
	if err != nil {
		l.conf.Metrics.countUpload("error")
		return Photo{}, fmt.Errorf("encode %s: %w", name, err)
	}

	stored, err := l.createUnique(stem(name), ".jpg", buf.Bytes())
	if err != nil {
		l.conf.Metrics.countUpload("error")
		return Photo{}, err
	}
	l.conf.Logger.Info("Saved uploaded photo", "name", stored, "size", humanize.IBytes(uint64(buf.Len())))
	l.conf.Metrics.countUpload("ok")

	if _, err := l.Thumbnail(stored); err != nil {
		l.conf.Logger.Warn("Failed to create thumbnail", "name", stored, "error", err)
	}
	return l.describe(stored)
}

// readUpload returns the decodable bytes of an upload, running formats
// the decoders do not understand through the converter first.
func (l *Library) readUpload(name string, r io.Reader) ([]byte, error) {
	if !needsConversion(name) {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return data, nil
	}
	if l.conf.Converter == nil {
		return nil, fmt.Errorf("%w: no converter for %v", ErrNotAllowed, name)
	}

	tmp := filepath.Join(l.Dir(), ".upload-"+uuid.NewString())
	src := tmp + filepath.Ext(name)
	dst := tmp + ".jpg"
	defer os.Remove(src)
	defer os.Remove(dst)

	f, err := os.OpenFile(src, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	l.conf.Logger.Debug("Convert", "src", src, "dst", dst)
	if err := l.conf.Converter.Convert(dst, src); err != nil {
		return nil, fmt.Errorf("%w: %w", fit.ErrDecode, err)
	}
	return os.ReadFile(dst)
}

// createUnique writes data under base+ext, or base_1+ext, base_2+ext...
// whichever is not taken yet. Photo ids are stems, so a stem used with any
// extension counts as taken.
func (l *Library) createUnique(base, ext string, data []byte) (string, error) {
	names, err := l.Names()
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[stem(n)] = true
	}

	for i := 0; ; i++ {
		id := base
		if i > 0 {
			id = base + "_" + strconv.Itoa(i)
		}
		if taken[id] {
			continue
		}
		name := id + ext
		_, err := l.writeFileMD5(l.photoPath(name), bytes.NewReader(data), false)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
		return name, nil
	}
}

// writeFileMD5 writes r to path along with a path.md5 sidecar holding its
// checksum. Unless replace is set, an existing path is an error.
func (l *Library) writeFileMD5(path string, r io.Reader, replace bool) (int64, error) {
	l.conf.Logger.Debug("Write file", "path", path)
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	target := path
	if replace {
		target = path + ".tmp"
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(target, flags, 0o644)
	if err != nil {
		return 0, err
	}

	h := md5.New()
	w := io.MultiWriter(f, h)
	n, err := io.Copy(w, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return n, err
	}
	if replace {
		if err := os.Rename(target, path); err != nil {
			return n, err
		}
	}

	sum := fmt.Sprintf("%x", h.Sum(nil))
	pathMD5 := path + ".md5"
	l.conf.Logger.Debug("Write MD5 file", "path", pathMD5, "md5", sum)
	return n, os.WriteFile(pathMD5, []byte(sum), 0o644)
}

// Delete removes a photo, its checksum and its thumbnail.
func (l *Library) Delete(id string) error {
	name, err := l.Lookup(id)
	if err != nil {
		return err
	}
	if err := os.Remove(l.photoPath(name)); err != nil {
		return err
	}
	os.Remove(l.photoPath(name) + ".md5")
	os.Remove(l.thumbnailPath(name))
	l.conf.Logger.Info("Deleted photo", "name", name)
	return nil
}

// Rotate turns a stored photo clockwise by degrees, any multiple of 90,
// and regenerates its thumbnail.
func (l *Library) Rotate(id string, degrees int) error {
	rot, err := fit.ParseRotation(((degrees % 360) + 360) % 360)
	if err != nil {
		return err
	}
	name, err := l.Lookup(id)
	if err != nil {
		return err
	}

	p := l.photoPath(name)
	src, err := fit.Open(p)
	if err != nil {
		return err
	}
	buf, err := encodeAs(name, fit.Rotate(src.Upright(), rot))
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if _, err := l.writeFileMD5(p, buf, true); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	os.Remove(l.thumbnailPath(name))
	if _, err := l.Thumbnail(name); err != nil {
		l.conf.Logger.Warn("Failed to create thumbnail", "name", name, "error", err)
	}
	l.conf.Logger.Info("Rotated photo", "name", name, "degrees", int(rot))
	return nil
}

var (
	unsafeChars = regexp.MustCompile(`[^\w\-.]`)
	underscores = regexp.MustCompile(`_{2,}`)
	dots        = regexp.MustCompile(`\.{2,}`)
)

// SafeFilename reduces an uploaded file name to a plain, portable name.
func SafeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "_")
	name = underscores.ReplaceAllString(name, "_")
	// Keys containing ".." are refused by every lookup.
	name = dots.ReplaceAllString(name, ".")

	ext := filepath.Ext(name)
	base := strings.Trim(strings.TrimSuffix(name, ext), "_.")
	ext = strings.ToLower(ext)
	if ext == "." {
		ext = ""
	}
	if base == "" {
		base = "unnamed_file"
	}
	return base + ext
}
