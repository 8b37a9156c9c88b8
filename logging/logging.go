// Package logging writes chainz hook events as structured zerolog entries.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/chainz"
)

// Observer forwards capitan events to a zerolog logger until closed.
type Observer struct {
	close func()
}

// Close stops forwarding events.
func (o *Observer) Close() {
	o.close()
}

// New builds a timestamped logger writing to w (stderr when nil).
// pretty selects zerolog's console format instead of JSON lines.
func New(w io.Writer, pretty bool, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ParseLevel reads a level name such as "debug" or "warn", defaulting to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

// Attach logs every chainz event through logger. Failure signals log at error level,
// start signals at debug, everything else at info.
func Attach(logger zerolog.Logger) *Observer {
	listener := capitan.Observe(func(_ context.Context, e *capitan.Event) {
		signal := e.Signal().Name()
		entry := logger.WithLevel(levelFor(signal))
		if entry == nil {
			return
		}
		entry = entry.Str("signal", signal)

		for _, k := range stringKeys {
			if v, ok := k.from(e); ok && v != "" {
				entry = entry.Str(k.name, v)
			}
		}
		for _, k := range intKeys {
			if v, ok := k.from(e); ok {
				entry = entry.Int(k.name, v)
			}
		}
		if v, ok := chainz.TemperatureKey.From(e); ok {
			entry = entry.Float64("temperature", v)
		}

		entry.Msg(e.Signal().Description())
	})
	return &Observer{close: func() { listener.Close() }}
}

func levelFor(signal string) zerolog.Level {
	switch {
	case strings.HasSuffix(signal, ".failed"):
		return zerolog.ErrorLevel
	case strings.HasSuffix(signal, ".started"):
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

type stringField struct {
	name string
	from func(*capitan.Event) (string, bool)
}

type intField struct {
	name string
	from func(*capitan.Event) (int, bool)
}

var stringKeys = []stringField{
	{"request_id", func(e *capitan.Event) (string, bool) { return chainz.RequestIDKey.From(e) }},
	{"session_id", func(e *capitan.Event) (string, bool) { return chainz.SessionIDKey.From(e) }},
	{"link", func(e *capitan.Event) (string, bool) { return chainz.LinkKey.From(e) }},
	{"pipeline", func(e *capitan.Event) (string, bool) { return chainz.PipelineKey.From(e) }},
	{"stage", func(e *capitan.Event) (string, bool) { return chainz.StageKey.From(e) }},
	{"policy", func(e *capitan.Event) (string, bool) { return chainz.PolicyKey.From(e) }},
	{"decision", func(e *capitan.Event) (string, bool) { return chainz.DecisionKey.From(e) }},
	{"tool", func(e *capitan.Event) (string, bool) { return chainz.ToolKey.From(e) }},
	{"provider", func(e *capitan.Event) (string, bool) { return chainz.ProviderKey.From(e) }},
	{"model", func(e *capitan.Event) (string, bool) { return chainz.ModelKey.From(e) }},
	{"error", func(e *capitan.Event) (string, bool) { return chainz.ErrorKey.From(e) }},
	{"error_type", func(e *capitan.Event) (string, bool) { return chainz.ErrorTypeKey.From(e) }},
	{"api_error_type", func(e *capitan.Event) (string, bool) { return chainz.APIErrorTypeKey.From(e) }},
	{"response_id", func(e *capitan.Event) (string, bool) { return chainz.ResponseIDKey.From(e) }},
	{"finish_reason", func(e *capitan.Event) (string, bool) { return chainz.ResponseFinishReasonKey.From(e) }},
}

var intKeys = []intField{
	{"stage_index", func(e *capitan.Event) (int, bool) { return chainz.StageIndexKey.From(e) }},
	{"prompt_tokens", func(e *capitan.Event) (int, bool) { return chainz.PromptTokensKey.From(e) }},
	{"completion_tokens", func(e *capitan.Event) (int, bool) { return chainz.CompletionTokensKey.From(e) }},
	{"total_tokens", func(e *capitan.Event) (int, bool) { return chainz.TotalTokensKey.From(e) }},
	{"duration_ms", func(e *capitan.Event) (int, bool) { return chainz.DurationMsKey.From(e) }},
	{"http_status", func(e *capitan.Event) (int, bool) { return chainz.HTTPStatusCodeKey.From(e) }},
}
