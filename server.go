package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/szxp/frame/fit"
)

// SlideshowController is the part of the slideshow the web interface drives.
type SlideshowController interface {
	Next()
	Previous()
	Current() string
}

type ServerConfig struct {
	Library   *Library
	Config    *ConfigStore
	Slideshow SlideshowController // nil when the display runs elsewhere
	Gatherer  prometheus.Gatherer
	Logger    hclog.Logger
}

type Server struct {
	conf    *ServerConfig
	handler http.Handler
	started time.Time
}

func NewServer(conf ServerConfig) (*Server, error) {
	if conf.Library == nil || conf.Config == nil {
		return nil, errors.New("server: library and config are required")
	}
	if conf.Logger == nil {
		conf.Logger = hclog.NewNullLogger()
	}
	if conf.Gatherer == nil {
		conf.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		conf:    &conf,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("/api/photos", s.photosHandler())
	mux.Handle("/api/photos/", s.photoHandler())
	mux.Handle("/api/config", s.configHandler())
	mux.Handle("/api/slideshow/", s.slideshowHandler())
	mux.Handle("/api/system/status", s.statusHandler())
	mux.Handle("/photos/", s.sourceHandler())
	mux.Handle("/thumbnail/", s.thumbnailHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(conf.Gatherer, promhttp.HandlerOpts{}))

	h := http.Handler(mux)
	h = s.slashRemover(h)
	s.handler = h
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type response map[string]interface{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body response) {
	if _, ok := body["success"]; !ok {
		body["success"] = status < 400
	}
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.conf.Logger.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, response{"success": false, "error": msg})
}

// errorStatus maps library and fit errors to HTTP status codes.
func errorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, ErrPhotoNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidKey),
		errors.Is(err, ErrNotAllowed),
		errors.Is(err, fit.ErrDecode),
		errors.Is(err, fit.ErrInvalidImage),
		errors.Is(err, fit.ErrInvalidRotation):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func (s *Server) photosHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" {
			s.listPhotos(w, r)
			return
		}
		if r.Method == "POST" {
			s.uploadPhoto(w, r)
			return
		}

		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

func (s *Server) listPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := s.conf.Library.List()
	if err != nil {
		s.conf.Logger.Error("Failed to list photos", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list photos")
		return
	}
	s.writeJSON(w, http.StatusOK, response{"photos": photos})
}

func (s *Server) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.conf.Config.Get().Photos.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	photo, err := s.conf.Library.Save(header.Filename, file)
	if err != nil {
		s.conf.Logger.Error("Failed to save upload", "filename", header.Filename, "error", err)
		s.writeError(w, errorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, response{
		"message":  "Photo uploaded successfully",
		"filename": photo.Name,
		"photo":    photo,
	})
}

// photoHandler serves DELETE /api/photos/{id} and POST /api/photos/{id}/rotate.
func (s *Server) photoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimSpace(removePrefix(r.URL.Path, "/api/photos/"))
		id, action, _ := strings.Cut(rest, "/")

		switch {
		case action == "" && r.Method == "DELETE":
			s.deletePhoto(w, id)
		case action == "rotate" && r.Method == "POST":
			s.rotatePhoto(w, r, id)
		default:
			s.writeError(w, http.StatusNotFound, "Not found")
		}
	})
}

func (s *Server) deletePhoto(w http.ResponseWriter, id string) {
	err := s.conf.Library.Delete(id)
	if err != nil {
		s.conf.Logger.Error("Failed to delete photo", "id", id, "error", err)
		s.writeError(w, errorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, response{"message": "Photo deleted successfully"})
}

func (s *Server) rotatePhoto(w http.ResponseWriter, r *http.Request, id string) {
	body := struct {
		Degrees *int `json:"degrees"`
	}{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}
	degrees := 90
	if body.Degrees != nil {
		degrees = *body.Degrees
	}

	if err := s.conf.Library.Rotate(id, degrees); err != nil {
		s.conf.Logger.Error("Failed to rotate photo", "id", id, "degrees", degrees, "error", err)
		s.writeError(w, errorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, response{"message": "Photo rotated successfully"})
}

func (s *Server) configHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" {
			s.writeJSON(w, http.StatusOK, response{"config": s.conf.Config.Get()})
			return
		}
		if r.Method == "POST" {
			s.updateConfig(w, r)
			return
		}

		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// updateConfig merges a partial JSON document into the configuration.
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := s.conf.Config.Update(func(c *Config) error {
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		return nil
	})
	if err != nil {
		s.conf.Logger.Warn("Rejected config update", "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, response{"message": "Configuration updated", "config": cfg})
}

func (s *Server) slideshowHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.conf.Slideshow == nil {
			s.writeError(w, http.StatusServiceUnavailable, "Slideshow is not running")
			return
		}

		action := removePrefix(r.URL.Path, "/api/slideshow/")
		switch {
		case action == "next" && r.Method == "POST":
			s.conf.Slideshow.Next()
			s.conf.Logger.Info("Next photo requested")
			s.writeJSON(w, http.StatusOK, response{"message": "Next photo requested"})
		case action == "previous" && r.Method == "POST":
			s.conf.Slideshow.Previous()
			s.conf.Logger.Info("Previous photo requested")
			s.writeJSON(w, http.StatusOK, response{"message": "Previous photo requested"})
		case action == "current" && r.Method == "GET":
			var current interface{}
			if name := s.conf.Slideshow.Current(); name != "" {
				current = name
			}
			s.writeJSON(w, http.StatusOK, response{"current_photo": current})
		default:
			s.writeError(w, http.StatusNotFound, "Not found")
		}
	})
}

func (s *Server) statusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.writeJSON(w, http.StatusOK, response{"status": s.systemStatus()})
	})
}

func (s *Server) sourceHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" || r.Method == "HEAD" {
			s.serveSource(w, r)
			return
		}

		http.Error(w, "Error", http.StatusBadRequest)
	})
}

func removePrefix(url, prefix string) string {
	return strings.Replace(url, prefix, "", 1)
}

func (s *Server) serveSource(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(removePrefix(r.URL.Path, "/photos/"))
	f, err := s.conf.Library.Open(key)
	if err != nil {
		s.conf.Logger.Debug("Failed to open photo", "key", key, "error", err)
		http.Error(w, http.StatusText(errorStatus(err)), errorStatus(err))
		return
	}
	defer f.Close()

	if sum := s.conf.Library.Checksum(key); sum != "" {
		w.Header().Set("etag", "\""+sum+"\"")
	}
	s.serveFile(w, r, f)
}

func (s *Server) thumbnailHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" || r.Method == "HEAD" {
			s.serveThumbnail(w, r)
			return
		}

		http.Error(w, "Error", http.StatusBadRequest)
	})
}

func (s *Server) serveThumbnail(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(removePrefix(r.URL.Path, "/thumbnail/"))
	p, err := s.conf.Library.Thumbnail(key)
	if err != nil {
		s.conf.Logger.Error("Failed to get thumbnail", "key", key, "error", err)
		http.Error(w, http.StatusText(errorStatus(err)), errorStatus(err))
		return
	}

	f, err := os.Open(p)
	if err != nil {
		s.conf.Logger.Error("Failed to open thumbnail", "key", key, "error", err)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("cache-control", "public, max-age=86400")
	s.serveFile(w, r, f)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, f *os.File) {
	fi, err := f.Stat()
	if err != nil {
		s.conf.Logger.Error("Failed to get file info", "path", f.Name(), "error", err)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}

	if r.Method == "HEAD" {
		w.Header().Set("content-type", mime.TypeByExtension(filepath.Ext(fi.Name())))
		w.Header().Set("content-length", strconv.FormatInt(fi.Size(), 10))
		w.Header().Set("last-modified", fi.ModTime().UTC().Format(http.TimeFormat))
		w.WriteHeader(200)
		return
	}

	s.conf.Logger.Debug("Serve", "path", f.Name())
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

func (s *Server) slashRemover(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prefer non-trailing slash URLs over trailing slash URLs.
		p := r.URL.Path
		if p != "/" && p[len(p)-1] == '/' {
			p = strings.TrimRight(p, "/")
			http.Redirect(w, r, p, 301)
			return
		}
		h.ServeHTTP(w, r)
	})
}
