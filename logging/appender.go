package logging

import (
	"io"
	"sync"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the default time format string for log appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// WriterAppender encodes entries with the console encoder and writes them to an `io.Writer`.
type WriterAppender struct {
	mu      sync.Mutex
	encoder zapcore.Encoder
	out     io.Writer
}

// NewWriterAppender returns an appender that writes tab separated console lines to `out`.
func NewWriterAppender(out io.Writer) *WriterAppender {
	return &WriterAppender{
		encoder: zapcore.NewConsoleEncoder(NewEncoderConfig()),
		out:     out,
	}
}

// Write outputs the log entry to the underlying writer.
func (wa *WriterAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := wa.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	wa.mu.Lock()
	defer wa.mu.Unlock()
	_, err = wa.out.Write(buf.Bytes())
	return err
}

// Sync is a no-op unless the writer is itself syncable.
func (wa *WriterAppender) Sync() error {
	if syncer, ok := wa.out.(zapcore.WriteSyncer); ok {
		return syncer.Sync()
	}
	return nil
}

func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}
