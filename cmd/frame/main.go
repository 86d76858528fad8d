package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/szxp/frame"
	"github.com/szxp/frame/imagemagick"
)

// version will be set while building
var version string

// buildTime will be set while building
var buildTime string

const (
	envHTTPAddr = "FRAME_HTTP_ADDR"

	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "frame",
		Short: "Digital photo frame",
		Long: `frame shows a slideshow of photos on a framebuffer display and
serves a web interface to upload and manage them.

Example usage:
  frame run                     # slideshow and web interface
  frame serve                   # web interface only
  frame display --out frame.jpg # slideshow into a file
  frame fit in.jpg out.jpg      # fit one photo onto the canvas`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/frame/config.toml)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level, overrides the config file")

	root.AddCommand(
		newServeCmd(o),
		newDisplayCmd(o),
		newRunCmd(o),
		newFitCmd(o),
		newVersionCmd(),
	)
	return root
}

// app holds what every long running command needs.
type app struct {
	logger   hclog.Logger
	config   *frame.ConfigStore
	registry *prometheus.Registry
	metrics  *frame.Metrics
	library  *frame.Library
}

func (o *options) newLogger() hclog.Logger {
	level := hclog.Info
	if o.logLevel != "" {
		level = hclog.LevelFromString(o.logLevel)
	}
	return hclog.New(&hclog.LoggerOptions{
		Output:          os.Stdout,
		Level:           level,
		IncludeLocation: true,
	}).With("appVersion", version)
}

func (o *options) loadConfig(logger hclog.Logger) (*frame.ConfigStore, error) {
	path := o.configPath
	if path == "" {
		var err error
		path, err = frame.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}
	store, err := frame.LoadConfig(path, logger.Named("config"))
	if err != nil {
		return nil, err
	}
	if o.logLevel == "" {
		logger.SetLevel(hclog.LevelFromString(store.Get().System.LogLevel))
	}
	logger.Debug("Config loaded", "path", path)
	return store, nil
}

func (o *options) setup() (*app, error) {
	logger := o.newLogger()
	logger.Info("Build info", "time", buildTime)

	store, err := o.loadConfig(logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := frame.NewMetrics(registry)

	library, err := frame.NewLibrary(frame.LibraryConfig{
		Config:    store,
		Converter: &imagemagick.Converter{},
		Metrics:   metrics,
		Logger:    logger.Named("library"),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		logger:   logger,
		config:   store,
		registry: registry,
		metrics:  metrics,
		library:  library,
	}, nil
}

func signalContext(parent context.Context, logger hclog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Signal received", "sig", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// serveHTTP runs the web interface until ctx is done, then shuts it down
// gracefully.
func (a *app) serveHTTP(ctx context.Context, slideshow frame.SlideshowController) error {
	handler, err := frame.NewServer(frame.ServerConfig{
		Library:   a.library,
		Config:    a.config,
		Slideshow: slideshow,
		Gatherer:  a.registry,
		Logger:    a.logger.Named("HTTP server"),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              getenv(envHTTPAddr, a.config.Get().Web.Addr()),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server Shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	a.logger.Info("Listening", "addr", srv.Addr)
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-idleConnsClosed
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}
