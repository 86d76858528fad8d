package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/szxp/frame"
	"github.com/szxp/frame/fbdev"
	"github.com/szxp/frame/imagemagick"
)

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context(), a.logger)
			defer cancel()

			err = a.serveHTTP(ctx, nil)
			a.logger.Info("Exit normally")
			return err
		},
	}
}

type displayFlags struct {
	device string
	rgb    bool
	out    string
}

func (f *displayFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.device, "fb", "/dev/fb0", "framebuffer device")
	cmd.Flags().BoolVar(&f.rgb, "fb-rgb", false, "32bpp framebuffer stores pixels as R,G,B,X instead of B,G,R,X")
	cmd.Flags().StringVar(&f.out, "out", "", "write frames to this JPEG file instead of a framebuffer")
}

func (f *displayFlags) open(a *app) (frame.Display, error) {
	if f.out != "" {
		a.logger.Info("Painting into file", "path", f.out)
		return &frame.FileDisplay{Path: f.out, Canvas: a.config.Get().Display.Canvas()}, nil
	}
	order := fbdev.BGRX
	if f.rgb {
		order = fbdev.RGBX
	}
	fb, err := fbdev.Open(f.device, order)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Framebuffer opened", "device", f.device, "geometry", fmt.Sprintf("%+v", fb.Geometry()))
	return fb, nil
}

func (a *app) newSlideshow(display frame.Display) (*frame.Slideshow, error) {
	return frame.NewSlideshow(frame.SlideshowConfig{
		Library: a.library,
		Config:  a.config,
		Display: display,
		Metrics: a.metrics,
		Logger:  a.logger.Named("slideshow"),
	})
}

func newDisplayCmd(o *options) *cobra.Command {
	flags := &displayFlags{}
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Run the slideshow only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.setup()
			if err != nil {
				return err
			}
			display, err := flags.open(a)
			if err != nil {
				return err
			}
			defer display.Close()

			show, err := a.newSlideshow(display)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context(), a.logger)
			defer cancel()

			err = show.Run(ctx)
			a.logger.Info("Exit normally")
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func newRunCmd(o *options) *cobra.Command {
	flags := &displayFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the slideshow and the web interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.setup()
			if err != nil {
				return err
			}
			display, err := flags.open(a)
			if err != nil {
				return err
			}
			defer display.Close()

			show, err := a.newSlideshow(display)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context(), a.logger)
			defer cancel()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return show.Run(ctx)
			})
			g.Go(func() error {
				return a.serveHTTP(ctx, show)
			})
			err = g.Wait()
			a.logger.Info("Exit normally")
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			v := version
			if v == "" {
				v = "dev"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "frame %s\n", v)
			if buildTime != "" {
				fmt.Fprintf(out, "  built:       %s\n", buildTime)
			}
			fmt.Fprintf(out, "  go:          %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

			im, err := (&imagemagick.Converter{}).Version()
			if err != nil {
				im = "not found"
			}
			fmt.Fprintf(out, "  imagemagick: %s\n", im)
		},
	}
}
