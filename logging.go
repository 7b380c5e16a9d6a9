package admin

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joeycumines/logiface"
)

// event is this package's logiface.Event implementation, bridging to
// log/slog. Grounded on the minimal Event pattern shown in
// joeycumines-go-utilpkg/logiface/mock_test.go (mockSimpleEvent): embed
// UnimplementedEvent, hold a level and an ordered slice of fields. The
// overall call shape (logger.Info().Str(...).Log("msg")) mirrors
// logiface-slog's documented Quick Start.
type event struct {
	logiface.UnimplementedEvent
	level Level
	msg   string
	attrs []slog.Attr
}

// Level is an alias so callers configuring this package don't need to
// import logiface directly for the common case.
type Level = logiface.Level

func (e *event) Level() Level { return e.level }

func (e *event) AddField(key string, val any) {
	e.attrs = append(e.attrs, slog.Any(key, val))
}

func (e *event) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func (e *event) AddError(err error) bool {
	e.attrs = append(e.attrs, slog.Any("error", err))
	return true
}

func (e *event) AddString(key string, val string) bool {
	e.attrs = append(e.attrs, slog.String(key, val))
	return true
}

func (e *event) AddInt(key string, val int) bool {
	e.attrs = append(e.attrs, slog.Int(key, val))
	return true
}

func (e *event) AddInt64(key string, val int64) bool {
	e.attrs = append(e.attrs, slog.Int64(key, val))
	return true
}

func (e *event) AddUint64(key string, val uint64) bool {
	e.attrs = append(e.attrs, slog.Uint64(key, val))
	return true
}

func (e *event) AddFloat32(key string, val float32) bool {
	e.attrs = append(e.attrs, slog.Float64(key, float64(val)))
	return true
}

func (e *event) AddFloat64(key string, val float64) bool {
	e.attrs = append(e.attrs, slog.Float64(key, val))
	return true
}

func (e *event) AddBool(key string, val bool) bool {
	e.attrs = append(e.attrs, slog.Bool(key, val))
	return true
}

func (e *event) AddTime(key string, val time.Time) bool {
	e.attrs = append(e.attrs, slog.Time(key, val))
	return true
}

func (e *event) AddDuration(key string, val time.Duration) bool {
	e.attrs = append(e.attrs, slog.Duration(key, val))
	return true
}

func (e *event) AddBase64Bytes(key string, val []byte, enc *base64.Encoding) bool {
	e.attrs = append(e.attrs, slog.String(key, enc.EncodeToString(val)))
	return true
}

func (e *event) reset() {
	e.level = logiface.LevelDisabled
	e.msg = ""
	e.attrs = e.attrs[:0]
}

// eventFactory pools *event values, serving as logiface's EventFactory and,
// through its ReleaseEvent method, as the EventReleaser (avoids an
// allocation per log call).
type eventFactory struct{ pool chan *event }

func newEventFactory() *eventFactory {
	return &eventFactory{pool: make(chan *event, 64)}
}

func (f *eventFactory) NewEvent(level Level) *event {
	select {
	case e := <-f.pool:
		e.level = level
		return e
	default:
		return &event{level: level}
	}
}

func (f *eventFactory) ReleaseEvent(e *event) {
	e.reset()
	select {
	case f.pool <- e:
	default:
	}
}

// slogWriter implements logiface.Writer[*event] by translating the event
// into a slog.Record and handing it to a slog.Handler.
type slogWriter struct {
	handler slog.Handler
}

func levelToSlog(l Level) slog.Level {
	switch {
	case l >= logiface.LevelDebug:
		return slog.LevelDebug
	case l >= logiface.LevelInformational, l == logiface.LevelNotice:
		return slog.LevelInfo
	case l == logiface.LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (w *slogWriter) Write(e *event) error {
	rec := slog.NewRecord(time.Now(), levelToSlog(e.level), e.msg, 0)
	rec.AddAttrs(e.attrs...)
	return w.handler.Handle(context.Background(), rec)
}

// NewLogger constructs the structured logger used throughout this package,
// JSON-encoding records to w, alongside the LogDrain the event loop
// flushes once per iteration (spec.md §6's "log drain contract").
func NewLogger(w io.Writer, level Level) (*logiface.Logger[*event], LogDrain) {
	factory := newEventFactory()
	writer := &slogWriter{handler: slog.NewJSONHandler(w, nil)}
	logger := logiface.New[*event](
		logiface.WithEventFactory[*event](factory),
		logiface.WithEventReleaser[*event](logiface.EventReleaserFunc[*event](factory.ReleaseEvent)),
		logiface.WithWriter[*event](writer),
		logiface.WithLevel[*event](level),
	)
	return logger, newLogDrain(w)
}

// LogDrain is the "flush-capable drain" collaborator spec.md §1 treats as
// external/out of scope; this package still needs something to call once
// per loop iteration (spec.md §4.1 step 7), so it's modeled as a minimal
// interface with a default, best-effort implementation.
type LogDrain interface {
	// Flush commits any buffered log output. A failure is logged but never
	// fatal (spec.md §7).
	Flush() error
}

type noopDrain struct{}

func (noopDrain) Flush() error { return nil }

// NewNoopDrain returns a LogDrain that does nothing, for loggers whose
// writer needs no explicit flush (e.g. a channel-backed test sink).
func NewNoopDrain() LogDrain { return noopDrain{} }

type syncDrain struct{ f *os.File }

func (d syncDrain) Flush() error { return d.f.Sync() }

type flushDrain struct{ w interface{ Flush() error } }

func (d flushDrain) Flush() error { return d.w.Flush() }

// newLogDrain adapts w to a LogDrain: if w implements Flush() error
// directly (e.g. a bufio.Writer), that's used; if w is an *os.File, Sync
// is used; otherwise flushing is a no-op.
func newLogDrain(w io.Writer) LogDrain {
	if f, ok := w.(interface{ Flush() error }); ok {
		return flushDrain{f}
	}
	if f, ok := w.(*os.File); ok {
		return syncDrain{f}
	}
	return noopDrain{}
}
