package frame

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/szxp/frame/fit"
)

const metricsNamespace = "frame"

// Metrics are the Prometheus collectors shared by the slideshow and the
// web server. Fit time is a health signal: a Raspberry Pi that needs more
// than a frame interval to fit a photo is overloaded.
type Metrics struct {
	FitDuration *prometheus.HistogramVec
	FitErrors   *prometheus.CounterVec
	Transitions prometheus.Counter
	Uploads     *prometheus.CounterVec
	Thumbnails  *prometheus.CounterVec
	Photos      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "fit_duration_seconds",
				Help:      "Duration of fitting a photo onto the display canvas",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"mode"},
		),
		FitErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fit_errors_total",
				Help:      "Photos that could not be fitted, by error kind",
			},
			[]string{"kind"},
		),
		Transitions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "slideshow_transitions_total",
				Help:      "Photos painted on the display",
			},
		),
		Uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "uploads_total",
				Help:      "Photo uploads by result",
			},
			[]string{"result"},
		),
		Thumbnails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "thumbnails_total",
				Help:      "Thumbnail generations by result",
			},
			[]string{"result"},
		),
		Photos: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "slideshow_photos",
				Help:      "Photos currently in the slideshow rotation",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.FitDuration, m.FitErrors, m.Transitions, m.Uploads, m.Thumbnails, m.Photos)
	}
	return m
}

// ObserveFit records one fit call.
func (m *Metrics) ObserveFit(mode fit.Mode, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FitErrors.WithLabelValues(errorKind(err)).Inc()
		return
	}
	m.FitDuration.WithLabelValues(mode.String()).Observe(d.Seconds())
}

func (m *Metrics) countUpload(result string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) countThumbnail(result string) {
	if m == nil {
		return
	}
	m.Thumbnails.WithLabelValues(result).Inc()
}

// errorKind maps fit errors to a bounded label set.
func errorKind(err error) string {
	switch {
	case errors.Is(err, fit.ErrDecode):
		return "decode"
	case errors.Is(err, fit.ErrInvalidCanvas):
		return "invalid_canvas"
	case errors.Is(err, fit.ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, fit.ErrUnsupportedMode):
		return "unsupported_mode"
	case errors.Is(err, fit.ErrInvalidRotation):
		return "invalid_rotation"
	}
	return "other"
}
