package frame

import (
	"errors"
	"fmt"
	"os"

	"github.com/szxp/frame/fit"
)

// Thumbnail returns the path of the thumbnail for the named photo,
// generating it when missing or older than the photo. Concurrent requests
// for the same photo share one generation.
func (l *Library) Thumbnail(name string) (string, error) {
	if err := l.validateKey(name); err != nil {
		return "", err
	}
	v, err, shared := l.thumbnails.Do(name, func() (interface{}, error) {
		return l.createThumbnail(name)
	})
	if err != nil {
		return "", err
	}
	if shared {
		l.conf.Logger.Trace("Shared thumbnail generation", "name", name)
	}
	return v.(string), nil
}

func (l *Library) createThumbnail(name string) (string, error) {
	src := l.photoPath(name)
	dst := l.thumbnailPath(name)

	srcInfo, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %v", ErrPhotoNotFound, name)
	}
	if err != nil {
		return "", err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err == nil && !dstInfo.ModTime().Before(srcInfo.ModTime()) {
		return dst, nil
	}

	img, err := fit.Open(src)
	if err != nil {
		l.conf.Metrics.countThumbnail("error")
		return "", err
	}
	thumb, err := fit.Thumbnail(img, l.photos().ThumbnailSize)
	if err != nil {
		l.conf.Metrics.countThumbnail("error")
		return "", err
	}
	buf, err := encodeJPEG(thumb, ThumbnailQuality)
	if err != nil {
		l.conf.Metrics.countThumbnail("error")
		return "", fmt.Errorf("encode thumbnail %s: %w", name, err)
	}

	if err := os.MkdirAll(l.thumbnailDir(), 0o755); err != nil {
		return "", err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", err
	}
	l.conf.Metrics.countThumbnail("ok")
	l.conf.Logger.Debug("Created thumbnail", "name", name, "path", dst)
	return dst, nil
}
