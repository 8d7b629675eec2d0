// Package cli implements rkmpp-layout, a tool that prints the pixel-format registry, the plane
// layouts computed for a frame size, and the conversion flow a decoder would choose.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	flagDebug       = "debug"
	flagFormat      = "format"
	flagWidth       = "width"
	flagHeight      = "height"
	flagAlign       = "align"
	flagHStride     = "hstride"
	flagVStride     = "vstride"
	flagFBC         = "fbc"
	flagPix         = "pix"
	flagAFBC        = "afbc"
	flagHDRBits     = "hdrbits"
	flagLibYUV      = "libyuv"
	flagScaleWidth  = "scale-width"
	flagScaleHeight = "scale-height"
	flagCodec       = "codec"
)

var sizeFlags = []cli.Flag{
	&cli.IntFlag{
		Name:     flagWidth,
		Aliases:  []string{"W"},
		Usage:    "frame width in pixels",
		Required: true,
	},
	&cli.IntFlag{
		Name:     flagHeight,
		Aliases:  []string{"H"},
		Usage:    "frame height in pixels",
		Required: true,
	},
}

var app = &cli.App{
	Name:            "rkmpp-layout",
	Usage:           "inspect pixel formats, plane layouts and decoder conversion flows",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "formats",
			Usage:  "list the pixel format registry",
			Action: FormatsAction,
		},
		{
			Name:      "layout",
			Usage:     "print the plane layout of a frame",
			ArgsUsage: " ",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     flagFormat,
					Aliases:  []string{"f"},
					Usage:    "pixel format name, such as nv12 or yuv420p10le",
					Required: true,
				},
				&cli.IntFlag{
					Name:  flagAlign,
					Usage: "row alignment in bytes",
					Value: 16,
				},
				&cli.IntFlag{
					Name:  flagHStride,
					Usage: "plane 0 row pitch in bytes, derived when zero",
				},
				&cli.IntFlag{
					Name:  flagVStride,
					Usage: "plane 0 row count, derived when zero",
				},
				&cli.BoolFlag{
					Name:  flagFBC,
					Usage: "lay the frame out AFBC compressed",
				},
			}, sizeFlags...),
			Action: LayoutAction,
		},
		{
			Name:  "flow",
			Usage: "print the conversion flow chosen for decoded frames",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:    flagFormat,
					Aliases: []string{"f"},
					Usage:   "format the engine decodes into",
					Value:   "nv12",
				},
				&cli.BoolFlag{
					Name:  flagFBC,
					Usage: "engine frames are AFBC compressed",
				},
				&cli.StringFlag{
					Name:  flagPix,
					Usage: "requested output format, drm_prime for DRM-PRIME frames",
					Value: "nv12",
				},
				&cli.StringFlag{
					Name:  flagAFBC,
					Usage: "tiled compression policy: none, decoder or drm",
					Value: "none",
				},
				&cli.IntFlag{
					Name:  flagHDRBits,
					Usage: "bit depth of DRM-PRIME output for 10-bit streams: 8, 10 or 16",
					Value: 10,
				},
				&cli.BoolFlag{
					Name:  flagLibYUV,
					Usage: "run the final conversion on the CPU",
				},
				&cli.IntFlag{
					Name:  flagScaleWidth,
					Usage: "post-scale width",
				},
				&cli.IntFlag{
					Name:  flagScaleHeight,
					Usage: "post-scale height",
				},
				&cli.StringFlag{
					Name:  flagCodec,
					Usage: "codec the frames come from, used to size buffer pools",
					Value: "h264",
				},
			}, sizeFlags...),
			Action: FlowAction,
		},
	},
}

// NewApp returns a new app with Writer set to out, and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
