package rga

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rkmpp/logging"
)

// Options tune a single conversion.
type Options struct {
	// SoftOnly forces the CPU path.
	SoftOnly bool
	// ShareLuma leaves the destination luma plane untouched on the CPU path; the consumer reads
	// luma from the source buffer instead.
	ShareLuma bool
}

// Driver picks between the accelerator and the CPU for each conversion. Once a hardware blit
// fails the driver stays on the CPU path.
type Driver struct {
	dev       Device
	clock     clock.Clock
	logger    logging.Logger
	disableHW bool
}

// NewDriver returns a driver. A nil device or disableHW means every conversion runs on the CPU.
func NewDriver(dev Device, disableHW bool, clk clock.Clock, logger logging.Logger) *Driver {
	if clk == nil {
		clk = clock.New()
	}
	return &Driver{dev: dev, clock: clk, logger: logger, disableHW: disableHW || dev == nil}
}

// HardwareDisabled reports whether conversions are forced to the CPU.
func (d *Driver) HardwareDisabled() bool {
	return d.disableHW
}

// Clock is the clock jobs are timed with.
func (d *Driver) Clock() clock.Clock {
	return d.clock
}

// CanUseHardware reports whether a blit between the two surfaces would go to the accelerator.
func (d *Driver) CanUseHardware(src, dst Surface) bool {
	return !d.disableHW &&
		src.Layout.HasRaster() && dst.Layout.HasRaster() &&
		src.InHardwareRange() && dst.InHardwareRange()
}

// Convert converts src into dst. Hardware jobs complete asynchronously; poll the returned job
// before touching dst. When the accelerator fails, the driver disables it and retries on the CPU.
func (d *Driver) Convert(src, dst Surface, opts Options) (*Job, error) {
	if !opts.SoftOnly && d.CanUseHardware(src, dst) {
		fence, err := d.dev.Blit(src, dst)
		if err == nil {
			return newJob(fence, d.clock), nil
		}
		d.disableHW = true
		d.logger.Warnw("raster blit failed, falling back to soft conversion",
			"src", src.Layout.Pixel.String(), "dst", dst.Layout.Pixel.String(), "error", err)
		if softErr := Soft(src, dst, opts.ShareLuma); softErr != nil {
			return nil, multierr.Combine(errors.Wrap(err, "raster blit"), softErr)
		}
		return newJob(nil, d.clock), nil
	}
	if err := Soft(src, dst, opts.ShareLuma); err != nil {
		return nil, err
	}
	return newJob(nil, d.clock), nil
}

// Close closes the device.
func (d *Driver) Close() error {
	if d.dev == nil {
		return nil
	}
	dev := d.dev
	d.dev = nil
	d.disableHW = true
	return dev.Close()
}
