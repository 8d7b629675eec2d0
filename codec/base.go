package codec

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rkmpp/config"
	"go.viam.com/rkmpp/dmaheap"
	"go.viam.com/rkmpp/logging"
	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/rga"
	"go.viam.com/rkmpp/utils"
)

// Deps are the devices a codec instance takes ownership of.
type Deps struct {
	Engine mpp.Engine
	Heap   dmaheap.Heap
	// Raster may be nil; conversions then run on the CPU.
	Raster rga.Device
	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Lookup reads environment switches. Nil reads the process environment.
	Lookup utils.LookupFunc
}

// ReleaseDeps closes the raster device and the heap of deps that never reached NewBase.
func ReleaseDeps(deps Deps) error {
	var err error
	if deps.Raster != nil {
		err = multierr.Append(err, deps.Raster.Close())
	}
	if deps.Heap != nil {
		err = multierr.Append(err, deps.Heap.Close())
	}
	return err
}

// Base is the state every codec instance carries.
type Base struct {
	Entry  Entry
	Logger logging.Logger
	Engine mpp.Engine
	Heap   dmaheap.Heap
	Driver *rga.Driver
	Clock  clock.Clock
	Env    config.Env
	Opts   config.Options

	FPS    *FPSTracker
	Timing *TimingLog

	raster rga.Device
	inited bool
	closed bool
}

// NewBase validates the configuration and initializes the engine context. On failure everything
// already acquired is released.
func NewBase(entry Entry, deps Deps, opts config.Options, logger logging.Logger) (*Base, error) {
	if logger == nil {
		logger = logging.Global()
	}
	b := &Base{
		Entry:  entry,
		Logger: logger.Sublogger(entry.Name),
		Engine: deps.Engine,
		Heap:   deps.Heap,
		Clock:  deps.Clock,
		Opts:   opts,
		raster: deps.Raster,
	}
	if b.Clock == nil {
		b.Clock = clock.New()
	}

	if err := b.init(deps); err != nil {
		b.Logger.Errorw("failed to initialize codec", "error", err)
		return nil, multierr.Combine(err, b.Close())
	}
	return b, nil
}

func (b *Base) init(deps Deps) error {
	if deps.Engine == nil || deps.Heap == nil {
		return Errorf(ErrBadInput, "%s needs an engine and a dma heap", b.Entry.Name)
	}
	if err := b.Opts.Validate(); err != nil {
		return Wrap(ErrBadInput, err, "%s options", b.Entry.Name)
	}
	env, err := config.LoadEnv(deps.Lookup)
	if err != nil {
		return Wrap(ErrBadInput, err, "%s environment", b.Entry.Name)
	}
	b.Env = env
	b.Driver = rga.NewDriver(b.raster, env.NoRGA, b.Clock, b.Logger.Sublogger("rga"))
	if env.LogFPS {
		b.FPS = NewFPSTracker(b.Clock, b.Logger)
	}
	if env.Timing {
		b.Timing = NewTimingLog(b.Logger)
	}

	ctxType := mpp.CtxDecoder
	if b.Entry.Kind == KindEncoder {
		ctxType = mpp.CtxEncoder
	}
	coding := b.Entry.Coding()
	if err := b.Engine.CheckSupport(ctxType, coding); err != nil {
		return Wrap(ErrBadInput, err, "%s is not supported by the engine", coding)
	}
	if err := b.Engine.Init(ctxType, coding); err != nil {
		return Wrap(ErrFatal, err, "failed to initialize %s context", coding)
	}
	b.inited = true
	b.Logger.Debugw("engine initialized", "coding", coding.String(), "rga", !b.Driver.HardwareDisabled())
	return nil
}

// Inited reports whether the engine context is live.
func (b *Base) Inited() bool {
	return b.inited && !b.closed
}

// Closed reports whether Close ran.
func (b *Base) Closed() bool {
	return b.closed
}

// Close destroys the engine context and closes the raster device and the heap. It is safe to call
// more than once.
func (b *Base) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	var err error
	if b.inited && b.Engine != nil {
		err = multierr.Append(err, errors.Wrap(b.Engine.Destroy(), "destroy engine"))
		b.inited = false
	}
	switch {
	case b.Driver != nil:
		err = multierr.Append(err, errors.Wrap(b.Driver.Close(), "close raster device"))
	case b.raster != nil:
		err = multierr.Append(err, errors.Wrap(b.raster.Close(), "close raster device"))
	}
	if b.Heap != nil {
		err = multierr.Append(err, errors.Wrap(b.Heap.Close(), "close dma heap"))
	}
	return err
}
