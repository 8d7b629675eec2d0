package decoder

import (
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/rkmpp/binding"
	"go.viam.com/rkmpp/codec"
	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/media"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pipeline"
	"go.viam.com/rkmpp/pixfmt"
	"go.viam.com/rkmpp/rga"
)

// configure picks the flow for the frames an info change announces and (re)allocates the pools.
func (d *Decoder) configure(info *mpp.Frame) error {
	req := d.req
	if req.AFBC != config.AFBCNone && !info.Format.IsFBC() {
		d.logger.Warnw("engine ignored the afbc request, using linear frames", "afbc", req.AFBC.String())
		req.AFBC = config.AFBCNone
		d.req = req
	}
	plan, err := SelectFlow(req, info)
	if err != nil {
		return codec.Wrap(codec.ErrBadInput, err, "select flow")
	}
	if req.LibYUV && !plan.LibYUV && plan.Flow != NoConversion {
		d.logger.Warnw("no soft conversion path, using the raster instead", "flow", plan.String())
	}
	if plan.Flow == NoConversion {
		d.logger.Infof("Pixfmt (%s), Decoder Output (%s)", plan.Pixel, plan)
	} else {
		d.logger.Infof("Pixfmt (%s), Conversion (%s)", plan.Pixel, plan)
	}
	if plan.Lossy() {
		d.logger.Warnw("Potential quality loss on conversion", "flow", plan.String())
	}

	sizes := SizePools(plan, d.coding)
	if err := d.decodePool.Allocate(plan.In.Total(), sizes.Decode); err != nil {
		return codec.Wrap(codec.ErrResource, err, "decode pool")
	}
	if err := d.base.Engine.SetExternalBufferGroup(d.decodePool.Group()); err != nil {
		return codec.Wrap(codec.ErrFatal, err, "attach decode pool")
	}
	if sizes.Swap > 0 {
		if err := d.swapPool.Allocate(plan.Swap.Total(), sizes.Swap); err != nil {
			return codec.Wrap(codec.ErrResource, err, "swap pool")
		}
	} else if err := d.swapPool.Release(); err != nil {
		return codec.Wrap(codec.ErrResource, err, "release swap pool")
	}
	if sizes.Raster > 0 {
		if err := d.rgaPool.Allocate(plan.Out.Total(), sizes.Raster); err != nil {
			return codec.Wrap(codec.ErrResource, err, "rga pool")
		}
	} else if err := d.rgaPool.Release(); err != nil {
		return codec.Wrap(codec.ErrResource, err, "release rga pool")
	}

	if plan.Pixel == pixfmt.DRMPrime {
		if d.hw != nil {
			d.hw.Unref()
		}
		d.hw = media.NewHWFramesContext(plan.Out.Pixel, plan.Out.Width, plan.Out.Height, nil)
	}
	d.plan, d.hasPlan, d.configured = plan, true, true
	d.activate()
	return nil
}

// activate moves a fresh or flushed decoder to the running state.
func (d *Decoder) activate() {
	switch {
	case d.eosSent:
		d.state = StateDraining
	case d.state == StateFresh || d.state == StateFlushed:
		d.state = StateConfigured
	}
}

// decodeStage takes one frame from the engine. It reports whether anything changed.
func (d *Decoder) decodeStage() (bool, error) {
	if d.eos {
		return false, nil
	}
	if d.hasPlan {
		if d.plan.Flow == NoConversion && d.rgaFifo.Full() {
			return false, nil
		}
		if d.plan.Flow != NoConversion && d.decodeFifo.Full() {
			return false, nil
		}
		if d.plan.Flow == SwapAndConvert && d.swapPool.Unused() == 0 {
			return false, nil
		}
	}

	timeout := mpp.NonBlock
	if d.eosSent {
		timeout = DrainTimeout
	}
	frame, err := d.base.Engine.DecodeGetFrame(timeout)
	if err != nil {
		if errors.Is(err, mpp.ErrTimeout) {
			return false, nil
		}
		d.logger.Errorw("failed to get frame", "error", err)
		return false, codec.Wrap(codec.ErrFatal, err, "get frame")
	}
	if frame == nil {
		return false, nil
	}

	switch {
	case frame.EOS:
		goutils.UncheckedError(frame.Deinit())
		d.eos, d.eofAt = true, d.frameNum
		d.logger.Debugw("engine reached end of stream", "frames", d.frameNum)
		return true, nil
	case frame.InfoChange:
		goutils.UncheckedError(frame.Deinit())
		d.logger.Infow("info change",
			"width", frame.Width, "height", frame.Height,
			"hstride", frame.HorStride, "vstride", frame.VerStride, "format", frame.Format)
		if err := d.configure(frame); err != nil {
			d.logger.Errorw("failed to configure decoder", "error", err)
			return false, err
		}
		if err := d.base.Engine.SetInfoChangeReady(); err != nil {
			return false, codec.Wrap(codec.ErrFatal, err, "acknowledge info change")
		}
		return true, nil
	case frame.Discard:
		goutils.UncheckedError(frame.Deinit())
		d.logger.Debugw("engine discarded a frame", "pts", frame.PTS)
		return true, nil
	case frame.ErrInfo != 0:
		goutils.UncheckedError(frame.Deinit())
		d.logger.Errorw("engine reported a broken frame, dropping it", "errinfo", frame.ErrInfo)
		return true, nil
	case frame.Buffer == nil:
		goutils.UncheckedError(frame.Deinit())
		d.logger.Warn("engine returned a frame without buffer")
		return true, nil
	case !d.hasPlan:
		goutils.UncheckedError(frame.Deinit())
		d.logger.Warn("frame before info change, dropping it")
		return true, nil
	}

	d.frameNum++
	d.activate()
	it := pipeline.NewItem(frame, d.plan.In, d.frameNum, d.base.Clock.Now())

	switch d.plan.Flow {
	case NoConversion:
		return true, d.push(d.rgaFifo, it)
	case Convert:
		return true, d.push(d.decodeFifo, it)
	}

	swap, err := pipeline.NewItemFrom(d.swapPool, d.plan.Swap, it.Num)
	if err != nil {
		goutils.UncheckedError(it.Release())
		d.logger.Errorw("no swap buffer, frame lost", "frame", it.Num, "error", err)
		return true, nil
	}
	swap.Frame.CopyProps(frame)
	job, err := d.base.Driver.Convert(it.Surface(), swap.Surface(), rga.Options{})
	if err != nil {
		goutils.UncheckedError(swap.Release())
		goutils.UncheckedError(it.Release())
		d.logger.Errorw("swap conversion failed", "frame", it.Num, "error", err)
		return false, codec.Wrap(codec.ErrHwFail, err, "swap conversion")
	}
	swap.Job = job
	goutils.UncheckedError(it.Attach(pipeline.StageSwapped, swap))
	return true, d.push(d.decodeFifo, it)
}

func (d *Decoder) push(f *pipeline.Fifo, it *pipeline.Item) error {
	if err := f.Push(it); err != nil {
		goutils.UncheckedError(it.Release())
		return codec.Wrap(codec.ErrFatal, err, "queue frame %d", it.Num)
	}
	return nil
}

// convertStage starts the last conversion of the decode queue head.
func (d *Decoder) convertStage() (bool, error) {
	head := d.decodeFifo.Head()
	if head == nil || d.rgaFifo.Full() {
		return false, nil
	}

	src := head
	if d.plan.Flow == SwapAndConvert {
		swap := head.Child()
		status, err := swap.Poll(mpp.NonBlock)
		switch {
		case status == rga.Stuck:
			d.dropHead(d.decodeFifo, "swap", err)
			return true, nil
		case status == rga.Pending:
			return false, nil
		}
		swap.PrevStamp = head.Stamp
		swap.Stamp = d.base.Clock.Now()
		src = swap
	}

	dst, err := pipeline.NewItemFrom(d.rgaPool, d.plan.Out, src.Num)
	if err != nil {
		d.logger.Debugw("no rga buffer yet", "frame", src.Num)
		return false, nil
	}
	dst.Frame.CopyProps(src.Frame)
	opts := rga.Options{SoftOnly: d.plan.LibYUV, ShareLuma: d.plan.LibYUV}
	job, err := d.base.Driver.Convert(src.Surface(), dst.Surface(), opts)
	if err != nil {
		goutils.UncheckedError(dst.Release())
		d.logger.Errorw("conversion failed", "frame", src.Num, "error", err)
		return false, codec.Wrap(codec.ErrHwFail, err, "convert frame %d", src.Num)
	}
	dst.Job = job

	if _, err := d.decodeFifo.Pop(); err != nil {
		goutils.UncheckedError(dst.Release())
		return false, codec.Wrap(codec.ErrFatal, err, "pop decode queue")
	}
	if src != head {
		head.Detach()
		goutils.UncheckedError(head.Release())
	}
	goutils.UncheckedError(src.Attach(pipeline.StageConverted, dst))
	return true, d.push(d.rgaFifo, src)
}

// dropHead abandons the head of f after its blit got stuck.
func (d *Decoder) dropHead(f *pipeline.Fifo, stage string, cause error) {
	it, err := f.Pop()
	if err != nil {
		return
	}
	d.logger.Warnw("raster fence stuck, frame dropped", "stage", stage, "frame", it.Num, "error", cause)
	goutils.UncheckedError(it.Release())
}

// publishStage hands out the raster queue head once its conversion finished.
func (d *Decoder) publishStage() (*media.Frame, bool, error) {
	head := d.rgaFifo.Head()
	if head == nil {
		return nil, false, nil
	}
	converted := head.Child()
	if converted != nil {
		status, err := converted.Poll(mpp.NonBlock)
		switch {
		case status == rga.Stuck:
			d.dropHead(d.rgaFifo, "convert", err)
			return nil, true, nil
		case status == rga.Pending:
			return nil, false, nil
		}
		converted.PrevStamp = head.Stamp
		converted.Stamp = d.base.Clock.Now()
	}
	if _, err := d.rgaFifo.Pop(); err != nil {
		return nil, false, codec.Wrap(codec.ErrFatal, err, "pop rga queue")
	}

	if d.base.Timing != nil {
		stamp := head.Stamp
		if converted != nil {
			stamp = converted.Stamp
		}
		d.base.Timing.Row(head.Num, head.PrevStamp, head.Stamp, stamp)
	}

	var src binding.Source
	switch {
	case converted == nil:
		src = binding.Source{Item: head, Owner: head}
	case !d.plan.LibYUV:
		child := head.Detach()
		child.Num = head.Num
		goutils.UncheckedError(head.Release())
		src = binding.Source{Item: child, Owner: child}
	default:
		converted.Num = head.Num
		src = binding.Source{Item: converted, Luma: head, Owner: head}
	}

	var (
		frame *media.Frame
		err   error
	)
	if d.plan.Pixel == pixfmt.DRMPrime {
		frame, err = binding.Export(src, d.hw)
	} else {
		frame, err = binding.Map(src)
	}
	if err != nil {
		goutils.UncheckedError(src.Owner.Release())
		d.logger.Errorw("failed to publish frame", "frame", src.Item.Num, "error", err)
		return nil, false, codec.Wrap(codec.ErrResource, err, "publish frame %d", src.Item.Num)
	}
	if d.base.FPS != nil {
		d.base.FPS.Tick()
	}
	return frame, true, nil
}
