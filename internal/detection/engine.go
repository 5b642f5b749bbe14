package detection

import (
	"io"
	"log/slog"
)

// Engine runs analyzers over a visit and aggregates their signals.
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	analyzers []Analyzer
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithAnalyzers replaces the default analyzer set.
func WithAnalyzers(analyzers ...Analyzer) Option {
	return func(e *Engine) {
		e.analyzers = append([]Analyzer(nil), analyzers...)
	}
}

// WithLogger sets the logger used to report analyzer failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.With("component", "detection.Engine")
		}
	}
}

// NewEngine builds an engine with the default analyzers.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		analyzers: DefaultAnalyzers(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify runs every analyzer and returns the aggregated verdict.
// It never fails: an analyzer that panics is skipped.
func (e *Engine) Classify(v Visit) Verdict {
	signals := make([]Signal, 0, len(e.analyzers))
	for _, a := range e.analyzers {
		if s, ok := e.run(a, &v); ok {
			signals = append(signals, s)
		}
	}
	return Aggregate(signals, v.UserAgent, v.Referrer)
}

// Analyzers returns the names of the configured analyzers in order.
func (e *Engine) Analyzers() []string {
	names := make([]string, len(e.analyzers))
	for i, a := range e.analyzers {
		names[i] = a.Name
	}
	return names
}

func (e *Engine) run(a Analyzer, v *Visit) (sig Signal, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("analyzer failed", "analyzer", a.Name, "panic", r)
			sig, ok = Signal{}, false
		}
	}()

	s := a.Fn(v)
	if s == nil {
		return Signal{}, false
	}
	out := *s
	out.Method = a.Name
	out.Confidence = clamp(out.Confidence)
	return out, true
}

// Classify classifies a single visit with the default analyzers.
// Missing fields are treated as suspicious, never as errors.
func Classify(userAgent, sourceIP, referrer string, headers map[string]string) Verdict {
	return NewEngine().Classify(NewVisit(userAgent, sourceIP, referrer, headers))
}
