package main

import (
	"time"

	"github.com/disintegration/imaging"
	"github.com/hashicorp/go-hclog"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"

	"github.com/szxp/frame"
	"github.com/szxp/frame/fit"
)

type fitFlags struct {
	width      int
	height     int
	mode       string
	rotation   int
	background string
}

func newFitCmd(o *options) *cobra.Command {
	flags := &fitFlags{}
	cmd := &cobra.Command{
		Use:   "fit <input> <output>",
		Short: "Fit one photo onto the display canvas",
		Long: `fit decodes a photo, fits it onto the canvas the way the slideshow
would and writes the composed frame. The output format follows the output
file extension. Flags left unset take their value from the config file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := o.newLogger()
			store, err := o.loadConfig(logger)
			if err != nil {
				return err
			}
			display := store.Get().Display
			if cmd.Flags().Changed("width") {
				display.Width = flags.width
			}
			if cmd.Flags().Changed("height") {
				display.Height = flags.height
			}
			if cmd.Flags().Changed("mode") {
				if display.FitMode, err = fit.ParseMode(flags.mode); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("rotation") {
				if display.Rotation, err = fit.ParseRotation(flags.rotation); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("background") {
				if _, err := colorful.Hex(flags.background); err != nil {
					return err
				}
				display.Background = flags.background
			}
			return fitFile(logger, args[0], args[1], display)
		},
	}
	cmd.Flags().IntVar(&flags.width, "width", 0, "canvas width in pixels")
	cmd.Flags().IntVar(&flags.height, "height", 0, "canvas height in pixels")
	cmd.Flags().StringVar(&flags.mode, "mode", "", "fit mode, contain or cover")
	cmd.Flags().IntVar(&flags.rotation, "rotation", 0, "clockwise display rotation, 0, 90, 180 or 270")
	cmd.Flags().StringVar(&flags.background, "background", "", "background color as #rrggbb")
	return cmd
}

func fitFile(logger hclog.Logger, in, out string, display frame.DisplayConfig) error {
	src, err := fit.Open(in)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := fit.Fit(src, display.Rotation, display.Canvas(), display.FitMode)
	if err != nil {
		return err
	}
	logger.Info("Fitted",
		"source", src.Size(),
		"canvas", display.Canvas(),
		"mode", display.FitMode,
		"raster", fit.SizeOf(res.Raster),
		"offset", res.Offset,
		"elapsed", time.Since(start))

	return imaging.Save(res.Compose(display.BackgroundColor()), out, imaging.JPEGQuality(frame.PhotoQuality))
}
