package rules

import (
	"io"
	"log/slog"
	"time"

	"github.com/solatis/surveylogic/internal/types"
)

// PassStats summarizes one evaluation pass for observers.
type PassStats struct {
	SurveyID types.SurveyID
	PageID   types.PageID
	Rules    int // rules supplied
	Targeted int // rules targeting the page
	Results  int // evaluation results produced
	Failed   int // rules that could not compile
	Duration time.Duration
}

// Observer receives per-pass statistics. Implementations must be safe for
// concurrent use when one Engine serves concurrent passes.
type Observer interface {
	ObservePass(stats PassStats)
}

// Engine runs page evaluation passes. It holds no per-pass state, so one
// Engine may serve concurrent passes without locking.
type Engine struct {
	logger   *slog.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for malformed-rule warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers an observer notified after every pass.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates a rules engine. Without WithLogger, warnings are discarded.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
