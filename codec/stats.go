package codec

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"

	"go.viam.com/rkmpp/logging"
)

// FPSWindow is the number of frames the FPS tracker averages over.
const FPSWindow = 30

// FPSSnapshot is the tracker state after a frame.
type FPSSnapshot struct {
	Frames      uint64
	FPS         float64
	MeanLatency time.Duration
	P95Latency  time.Duration
}

// FPSTracker measures delivery rate and the interval between delivered frames.
type FPSTracker struct {
	clock  clock.Clock
	logger logging.Logger

	frames    uint64
	last      time.Time
	intervals []float64
}

// NewFPSTracker returns a tracker. A nil logger keeps it silent.
func NewFPSTracker(clk clock.Clock, logger logging.Logger) *FPSTracker {
	return &FPSTracker{clock: clk, logger: logger, intervals: make([]float64, 0, FPSWindow)}
}

// Tick records a delivered frame.
func (t *FPSTracker) Tick() FPSSnapshot {
	now := t.clock.Now()
	t.frames++
	if !t.last.IsZero() {
		if len(t.intervals) == FPSWindow {
			t.intervals = t.intervals[1:]
		}
		t.intervals = append(t.intervals, float64(now.Sub(t.last)))
	}
	t.last = now

	snap := FPSSnapshot{Frames: t.frames}
	if len(t.intervals) == 0 {
		return snap
	}
	mean, err := stats.Mean(t.intervals)
	if err != nil || mean <= 0 {
		return snap
	}
	snap.MeanLatency = time.Duration(mean)
	snap.FPS = float64(time.Second) / mean
	if p95, err := stats.Percentile(t.intervals, 95); err == nil {
		snap.P95Latency = time.Duration(p95)
	}
	if t.logger != nil {
		t.logger.Infow("throughput",
			"frames", snap.Frames,
			"fps", fmt.Sprintf("%.2f", snap.FPS),
			"latency", snap.MeanLatency,
			"p95_latency", snap.P95Latency)
	}
	return snap
}

// Reset forgets all history.
func (t *FPSTracker) Reset() {
	t.frames = 0
	t.last = time.Time{}
	t.intervals = t.intervals[:0]
}

// TimingLog writes one CSV row per delivered frame: the frame number, then the stamp of the
// previous stage when there was one, the decode stamp and the output stamp, in nanoseconds.
type TimingLog struct {
	logger logging.Logger
}

// NewTimingLog returns a timing log writing at info level.
func NewTimingLog(logger logging.Logger) *TimingLog {
	return &TimingLog{logger: logger}
}

// Row formats and logs one row.
func (l *TimingLog) Row(num uint64, prev, decoded, output time.Time) string {
	var row string
	if prev.IsZero() {
		row = fmt.Sprintf("%d,%d,%d", num, decoded.UnixNano(), output.UnixNano())
	} else {
		row = fmt.Sprintf("%d,%d,%d,%d", num, prev.UnixNano(), decoded.UnixNano(), output.UnixNano())
	}
	l.logger.Info(row)
	return row
}
