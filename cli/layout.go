package cli

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/rkmpp/codec"
	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/decoder"
	"go.viam.com/rkmpp/logging"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
)

func loggerFor(c *cli.Context) logging.Logger {
	logger := logging.NewLogger("rkmpp-layout")
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}

func hexOrDash(v uint32, none bool) string {
	if none {
		return "-"
	}
	return fmt.Sprintf("%#x", v)
}

// FormatsAction prints every registry row.
func FormatsAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Format", "Engine", "Raster", "DRM", "DRM (AFBC)", "Planes", "Depth", "Quality"})
	for _, f := range pixfmt.All() {
		t.AppendRow(table.Row{
			f.Pixel.String(),
			hexOrDash(uint32(f.Engine), !f.HasEngine()),
			hexOrDash(uint32(f.Raster), !f.HasRaster()),
			fourccOrDash(f.DRM),
			fourccOrDash(f.DRMFBC),
			f.NumPlanes,
			f.Depth,
			f.Quality,
		})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

func fourccOrDash(f pixfmt.Fourcc) string {
	if f == 0 {
		return "-"
	}
	return f.String()
}

// LayoutAction prints the planes of one frame.
func LayoutAction(c *cli.Context) error {
	pix, err := pixfmt.ParsePixelFormat(c.String(flagFormat))
	if err != nil {
		return err
	}
	f, ok := pixfmt.ByPixel(pix)
	if !ok {
		return errors.Errorf("%s has no layout", pix)
	}
	g := pixfmt.Geometry{
		Width:   c.Int(flagWidth),
		Height:  c.Int(flagHeight),
		Align:   c.Int(flagAlign),
		HStride: c.Int(flagHStride),
		VStride: c.Int(flagVStride),
	}
	if g.Width <= 0 || g.Height <= 0 {
		return errors.Errorf("frame size %dx%d", g.Width, g.Height)
	}
	if g.Align <= 0 {
		return errors.Errorf("alignment %d", g.Align)
	}
	if c.Bool(flagFBC) {
		g.FBCStride = g.Width
	}
	printLayout(c, "", f.Layout(g))
	return nil
}

func printLayout(c *cli.Context, title string, l pixfmt.Layout) {
	t := table.NewWriter()
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(table.Row{"Plane", "Offset", "HStride", "VStride", "Width", "Height", "Size"})
	for i, p := range l.Planes {
		t.AppendRow(table.Row{i, p.Offset, p.HStride, p.VStride, p.Width, p.Height, p.Size})
	}
	t.AppendFooter(table.Row{
		l.Pixel.String(), fmt.Sprintf("%dx%d", l.Width, l.Height), l.HStride, l.VStride,
		"", "total", fmt.Sprintf("%d (%s)", l.Total(), units.BytesSize(float64(l.Total()))),
	})
	fmt.Fprintln(c.App.Writer, t.Render())
}

// FlowAction prints the flow, layouts and pool sizes a decoder would use for the frames an
// engine info change announces.
func FlowAction(c *cli.Context) error {
	logger := loggerFor(c)
	enginePix, err := pixfmt.ParsePixelFormat(c.String(flagFormat))
	if err != nil {
		return err
	}
	ef, ok := pixfmt.ByPixel(enginePix)
	if !ok || !ef.HasEngine() {
		return errors.Errorf("the engine does not decode into %s", enginePix)
	}
	pix, err := pixfmt.ParsePixelFormat(c.String(flagPix))
	if err != nil {
		return err
	}
	afbc, err := config.ParseAFBCMode(c.String(flagAFBC))
	if err != nil {
		return err
	}
	id, err := codec.ParseID(c.String(flagCodec))
	if err != nil {
		return err
	}

	info := &mpp.Frame{
		Width:  c.Int(flagWidth),
		Height: c.Int(flagHeight),
		Format: ef.Engine,
	}
	if c.Bool(flagFBC) {
		info.Format |= pixfmt.EngineFBCAFBCV2
	}
	req := decoder.Request{
		Pixel:       pix,
		AFBC:        afbc,
		HDRBits:     c.Int(flagHDRBits),
		LibYUV:      c.Bool(flagLibYUV),
		ScaleWidth:  c.Int(flagScaleWidth),
		ScaleHeight: c.Int(flagScaleHeight),
	}
	plan, err := decoder.SelectFlow(req, info)
	if err != nil {
		return err
	}
	logger.Debugw("flow selected", "plan", plan.String(), "flow", plan.Flow.String(), "lossy", plan.Lossy())

	fmt.Fprintf(c.App.Writer, "flow: %s (%s)\n", plan.Flow, plan)
	if plan.Lossy() {
		fmt.Fprintln(c.App.Writer, "warning: the conversion loses chroma resolution or bit depth")
	}
	printLayout(c, "input", plan.In)
	if plan.Flow == decoder.SwapAndConvert {
		printLayout(c, "swap", plan.Swap)
	}
	if plan.Flow != decoder.NoConversion {
		printLayout(c, "output", plan.Out)
	}

	pools := decoder.SizePools(plan, id.Coding())
	t := table.NewWriter()
	t.SetTitle("pools")
	t.AppendHeader(table.Row{"Pool", "Buffers"})
	t.AppendRow(table.Row{"decode", pools.Decode})
	t.AppendRow(table.Row{"swap", pools.Swap})
	t.AppendRow(table.Row{"raster", pools.Raster})
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}
