package store

import (
	"errors"
	"log/slog"

	"github.com/victorivanov/retrostate/internal/snowflake"
	"github.com/victorivanov/retrostate/internal/timeline"
)

// Recorder receives ingest outcomes. The observability package provides a
// Prometheus-backed implementation.
type Recorder interface {
	Ingested(kind string)
	Rejected(kind, code string)
}

type nopRecorder struct{}

func (nopRecorder) Ingested(string)         {}
func (nopRecorder) Rejected(string, string) {}

type options struct {
	log      *slog.Logger
	metrics  Recorder
	timeline []timeline.Option
	ids      *snowflake.Generator
}

// Option configures a store.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRecorder sets the ingest metrics sink.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.metrics = r
		}
	}
}

// WithTimelineOptions sets the options every channel timeline is built with.
func WithTimelineOptions(opts ...timeline.Option) Option {
	return func(o *options) {
		o.timeline = append(o.timeline, opts...)
	}
}

// WithIDGenerator sets the generator used for locally posted messages.
func WithIDGenerator(g *snowflake.Generator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		log:     slog.Default(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func errorCode(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return "UNKNOWN"
}
