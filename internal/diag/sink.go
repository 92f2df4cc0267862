package diag

import (
	"golang.org/x/text/unicode/norm"
	"go.uber.org/zap"
)

// Verbosity gates which reports reach a Sink. Absence of a sink disables
// all diagnostic formatting for performance: callers should check
// Sink == nil before building a Report's Data map when construction itself
// is expensive.
type Verbosity int

const (
	VerbositySilent Verbosity = iota
	VerbosityError
	VerbosityWarn
	VerbosityInfo
	VerbosityTrace
)

func (r *Report) severity() Verbosity {
	switch r.Kind {
	case FatalFailure, UserException:
		return VerbosityError
	case MonitoredError, PropagateFailure:
		return VerbosityWarn
	default:
		return VerbosityInfo
	}
}

// Sink receives reports at or above its minimum verbosity.
type Sink interface {
	Emit(r *Report)
	MinVerbosity() Verbosity
}

// Emit routes r to sink if non-nil and r's severity clears the sink's
// minimum verbosity; a nil sink is the zero-cost path.
func Emit(sink Sink, r *Report) {
	if sink == nil || r == nil {
		return
	}
	if r.severity() > sink.MinVerbosity() {
		return
	}
	sink.Emit(r)
}

// ZapSink backs the Sink interface with a structured go.uber.org/zap
// logger, the production logging library used throughout this pipeline's
// ambient stack.
type ZapSink struct {
	Logger *zap.Logger
	Min    Verbosity
}

// NewZapSink wraps an existing zap.Logger.
func NewZapSink(logger *zap.Logger, min Verbosity) *ZapSink {
	return &ZapSink{Logger: logger, Min: min}
}

func (s *ZapSink) MinVerbosity() Verbosity { return s.Min }

func (s *ZapSink) Emit(r *Report) {
	msg := normalizeMessage(r.Message)
	fields := []zap.Field{
		zap.String("kind", string(r.Kind)),
		zap.String("phase", r.Phase),
	}
	if r.Pos != nil {
		fields = append(fields, zap.String("pos", r.Pos.URI))
	}
	switch r.severity() {
	case VerbosityError:
		s.Logger.Error(msg, fields...)
	case VerbosityWarn:
		s.Logger.Warn(msg, fields...)
	default:
		s.Logger.Info(msg, fields...)
	}
}

// normalizeMessage applies Unicode NFC normalization to diagnostic text
// before rendering, using golang.org/x/text
// for deterministic string handling — source snippets embedded in a
// Report's Message may arrive in any normalization form from the parser
// collaborator, and diagnostics should compare/render consistently.
func normalizeMessage(s string) string {
	return norm.NFC.String(s)
}
