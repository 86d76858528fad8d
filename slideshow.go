package frame

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/szxp/frame/fit"
)

const (
	reloadInterval = 5 * time.Minute
	noPhotosText   = "No photos found!\nUpload photos via the web interface."
)

var messageColor = color.NRGBA{R: 255, G: 100, B: 100, A: 255}

type SlideshowConfig struct {
	Library *Library
	Config  *ConfigStore
	Display Display
	Metrics *Metrics
	Logger  hclog.Logger
}

// Slideshow is the display loop. Run owns the display: only its goroutine
// paints, one fit and one frame at a time. Next, Previous and Current are
// safe to call from other goroutines.
type Slideshow struct {
	conf *SlideshowConfig

	cmds chan int

	mu      sync.Mutex
	photos  []string
	index   int
	current string

	paintMu sync.Mutex
}

func NewSlideshow(conf SlideshowConfig) (*Slideshow, error) {
	if conf.Library == nil || conf.Config == nil || conf.Display == nil {
		return nil, errors.New("slideshow: library, config and display are required")
	}
	if conf.Logger == nil {
		conf.Logger = hclog.NewNullLogger()
	}
	return &Slideshow{
		conf: &conf,
		cmds: make(chan int, 1),
	}, nil
}

// Next asks the loop to advance one photo.
func (s *Slideshow) Next() {
	s.send(1)
}

// Previous asks the loop to go back one photo.
func (s *Slideshow) Previous() {
	s.send(-1)
}

func (s *Slideshow) send(step int) {
	select {
	case s.cmds <- step:
	default:
		s.conf.Logger.Debug("Slideshow busy, dropping request", "step", step)
	}
}

// Current returns the file name of the photo on screen, or "".
func (s *Slideshow) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Run paints photos until ctx is done.
func (s *Slideshow) Run(ctx context.Context) error {
	logger := s.conf.Logger
	cfg := s.conf.Config.Get()
	if ds := s.conf.Display.Size(); ds.Valid() && ds != cfg.Display.Canvas() {
		logger.Warn("Display size differs from configured canvas", "display", ds, "canvas", cfg.Display.Canvas())
	}

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watch := dirWatch{logger: logger}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Directory watching unavailable", "error", err)
	} else {
		defer watcher.Close()
		watch.watcher = watcher
		events, watchErrs = watcher.Events, watcher.Errors
	}
	watch.follow(s.conf.Library.Dir())
	changed := s.conf.Config.Changed()

	s.reload()
	s.start()

	timer := time.NewTimer(s.interval())
	defer timer.Stop()
	reload := time.NewTicker(reloadInterval)
	defer reload.Stop()

	logger.Info("Slideshow started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("Slideshow stopped")
			return nil

		case step := <-s.cmds:
			s.advance(step)
			resetTimer(timer, s.interval())

		case <-timer.C:
			s.advance(1)
			timer.Reset(s.interval())

		case <-reload.C:
			watch.follow(s.conf.Library.Dir())
			s.refresh()

		case <-changed:
			changed = s.conf.Config.Changed()
			if watch.follow(s.conf.Library.Dir()) {
				s.refresh()
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				logger.Debug("Photo directory changed", "event", ev.String())
				s.refresh()
			}

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warn("Photo directory watch error", "error", err)
		}
	}
}

// dirWatch keeps a directory watch on the configured photo directory.
type dirWatch struct {
	watcher  *fsnotify.Watcher
	logger   hclog.Logger
	dir      string
	watching bool
}

// follow moves the watch to dir, retrying a watch that failed before, and
// reports whether the directory changed.
func (w *dirWatch) follow(dir string) bool {
	moved := dir != w.dir
	if !moved && (w.watching || w.watcher == nil) {
		return false
	}
	if moved && w.watching {
		if err := w.watcher.Remove(w.dir); err != nil {
			w.logger.Debug("Failed to unwatch photo directory", "dir", w.dir, "error", err)
		}
		w.watching = false
	}
	w.dir = dir
	if w.watcher == nil {
		return moved
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("Failed to watch photo directory", "dir", dir, "error", err)
		return moved
	}
	w.watching = true
	w.logger.Debug("Watching photo directory", "dir", dir)
	return moved
}

func (s *Slideshow) interval() time.Duration {
	return time.Duration(s.conf.Config.Get().Display.Interval) * time.Second
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// reload rereads the photo list and reports whether it changed.
func (s *Slideshow) reload() bool {
	paths, err := s.conf.Library.Paths()
	if err != nil {
		s.conf.Logger.Error("Failed to load photos", "dir", s.conf.Library.Dir(), "error", err)
	}
	if s.conf.Config.Get().Display.Shuffle {
		rand.Shuffle(len(paths), func(i, j int) { paths[i], paths[j] = paths[j], paths[i] })
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !samePhotos(s.photos, paths)
	if !changed {
		return false
	}
	current := s.current
	s.photos = paths
	s.index = 0
	for i, p := range paths {
		if filepath.Base(p) == current {
			s.index = i
			break
		}
	}
	if s.conf.Metrics != nil {
		s.conf.Metrics.Photos.Set(float64(len(paths)))
	}
	s.conf.Logger.Info("Loaded photos", "count", len(paths))
	return true
}

func samePhotos(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, p := range a {
		seen[p] = true
	}
	for _, p := range b {
		if !seen[p] {
			return false
		}
	}
	return true
}

// refresh reloads the list and repaints when the photo on screen went
// away, or nothing but a message is on screen.
func (s *Slideshow) refresh() {
	changed := s.reload()

	s.mu.Lock()
	n := len(s.photos)
	current := s.current
	gone := current != ""
	for _, p := range s.photos {
		if filepath.Base(p) == current {
			gone = false
			break
		}
	}
	s.mu.Unlock()

	switch {
	case n == 0 && changed:
		s.start()
	case n > 0 && (current == "" || gone):
		s.start()
	}
}

// start shows a random photo, or the no-photos message.
func (s *Slideshow) start() {
	s.mu.Lock()
	n := len(s.photos)
	if n > 0 {
		s.index = rand.IntN(n)
	}
	s.mu.Unlock()

	if n == 0 {
		s.showMessage(noPhotosText)
		return
	}
	s.advance(0)
}

// advance moves step photos and paints. Photos that fail to decode or fit
// are skipped in the same direction until one succeeds or all have failed.
func (s *Slideshow) advance(step int) {
	s.mu.Lock()
	photos := s.photos
	index := s.index
	s.mu.Unlock()

	n := len(photos)
	if n == 0 {
		s.showMessage(noPhotosText)
		return
	}
	dir := 1
	if step < 0 {
		dir = -1
	}
	index = ((index+step)%n + n) % n

	for tries := 0; tries < n; tries++ {
		p := photos[index]
		err := s.show(p)
		if err == nil {
			s.mu.Lock()
			s.index = index
			s.current = filepath.Base(p)
			s.mu.Unlock()
			return
		}
		s.conf.Logger.Error("Failed to display photo", "path", p, "error", err)
		index = ((index+dir)%n + n) % n
	}

	s.mu.Lock()
	s.current = ""
	s.mu.Unlock()
	s.showMessage("Unable to display any photo.")
}

// show decodes, fits and paints one photo with the current settings.
func (s *Slideshow) show(path string) error {
	cfg := s.conf.Config.Get().Display

	src, err := fit.Open(path)
	if err != nil {
		s.conf.Metrics.ObserveFit(cfg.FitMode, 0, err)
		return err
	}
	start := time.Now()
	res, err := fit.Fit(src, cfg.Rotation, cfg.Canvas(), cfg.FitMode)
	elapsed := time.Since(start)
	s.conf.Metrics.ObserveFit(cfg.FitMode, elapsed, err)
	if err != nil {
		return err
	}
	s.conf.Logger.Debug("Fitted photo",
		"path", path,
		"source", src.Size(),
		"raster", fit.SizeOf(res.Raster),
		"offset", res.Offset,
		"elapsed", elapsed)

	if err := s.paint(res.Compose(cfg.BackgroundColor())); err != nil {
		return err
	}
	if s.conf.Metrics != nil {
		s.conf.Metrics.Transitions.Inc()
	}
	s.conf.Logger.Info("Displayed", "name", filepath.Base(path))
	return nil
}

func (s *Slideshow) showMessage(msg string) {
	cfg := s.conf.Config.Get().Display
	frame := renderMessage(cfg.Canvas(), msg, messageColor, cfg.BackgroundColor())
	if err := s.paint(frame); err != nil {
		s.conf.Logger.Error("Failed to display message", "error", err)
	}
}

// paint hands a frame to the display under the per-frame lock.
func (s *Slideshow) paint(frame *image.NRGBA) error {
	s.paintMu.Lock()
	defer s.paintMu.Unlock()
	return s.conf.Display.Show(frame)
}
