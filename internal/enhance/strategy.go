// Package enhance composes the analysis strategies and drives the note
// lifecycle: capturing → enhancing → enhanced | failed.
package enhance

import (
	"context"
	"log/slog"

	"github.com/starford/ansuz/internal/models"
)

// Strategy turns normalized text into a complete EnhancementResult.
// Implementations: heuristic.Analyzer (always present) and model.Adapter
// (capability-gated).
type Strategy interface {
	Name() string
	Analyze(ctx context.Context, text string) (*models.EnhancementResult, error)
}

// Fallback tries a primary strategy and, on any failure, the secondary.
// This is how the model-backed strategy degrades to heuristics when the
// backend is absent, slow, or failing.
type Fallback struct {
	primary   Strategy
	secondary Strategy
	log       *slog.Logger
}

// NewFallback composes primary over secondary.
func NewFallback(primary, secondary Strategy, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, log: logger}
}

// Name identifies the strategy chain in logs.
func (f *Fallback) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

// Analyze returns the primary result when it succeeds, otherwise the
// secondary's. The primary's error is logged, never surfaced.
func (f *Fallback) Analyze(ctx context.Context, text string) (*models.EnhancementResult, error) {
	res, err := f.primary.Analyze(ctx, text)
	if err == nil {
		return res, nil
	}
	if f.log != nil {
		f.log.Debug("primary strategy failed, falling back",
			slog.String("primary", f.primary.Name()),
			slog.String("secondary", f.secondary.Name()),
			slog.String("error", err.Error()))
	}
	return f.secondary.Analyze(ctx, text)
}
