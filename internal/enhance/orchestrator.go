package enhance

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/heuristic"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/normalize"
	"github.com/starford/ansuz/internal/store"
)

// EventCallback is called after each lifecycle transition.
// kind is one of "note.captured", "note.enhanced", "note.failed".
type EventCallback func(kind, id string)

// Orchestrator owns the note lifecycle. Submission inserts a placeholder
// record synchronously and returns immediately; exactly one background
// task later patches the record with the enhancement result or a failure
// state. No other writer touches those fields.
type Orchestrator struct {
	store      store.NoteStore
	strategy   Strategy
	log        *slog.Logger
	minVisible time.Duration
	timeout    time.Duration
	notify     EventCallback

	ctx context.Context
	wg  sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMinVisible pads successful enhancements so a note is visibly
// enhancing for at least d. Prevents flicker on fast heuristic runs.
func WithMinVisible(d time.Duration) Option {
	return func(o *Orchestrator) { o.minVisible = d }
}

// WithTimeout bounds each note's background enhancement.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithNotify installs a lifecycle event callback.
func WithNotify(cb EventCallback) Option {
	return func(o *Orchestrator) { o.notify = cb }
}

// NewOrchestrator creates an orchestrator whose background tasks stop
// when ctx is cancelled.
func NewOrchestrator(ctx context.Context, st store.NoteStore, strategy Strategy, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		strategy: strategy,
		log:      logger,
		timeout:  90 * time.Second,
		ctx:      ctx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit captures raw text: it inserts a placeholder record in the
// enhancing state and spawns the single background enhancement task.
// It never blocks on analysis. Empty input is rejected before any record
// is created.
func (o *Orchestrator) Submit(rawText string) (*models.NoteRecord, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, apperr.ErrEmptyInput
	}

	rec := &models.NoteRecord{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		RawText:   rawText,
		Corrected: rawText,
		Title:     heuristic.PlaceholderTitle,
		Emoji:     heuristic.DefaultEmoji(),
		Tags:      []string{},
		Kind:      models.KindIdea,
		Status:    models.StatusInbox,
		Priority:  models.PriorityP3,
		Area:      models.AreaOther,
		Enhancing: true,
	}
	if err := o.store.Insert(rec); err != nil {
		return nil, err
	}
	o.emit("note.captured", rec.ID)

	o.wg.Add(1)
	go o.enhance(rec.ID, rawText)

	return rec, nil
}

// Wait blocks until all in-flight background enhancements finish.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// enhance is the one background task per submitted note. It references
// the record by id only; the patch targeting a deleted id is a silent
// no-op in the store.
func (o *Orchestrator) enhance(id, rawText string) {
	defer o.wg.Done()

	ctx, cancel := context.WithTimeout(o.ctx, o.timeout)
	defer cancel()

	start := time.Now()
	text := normalize.Text(rawText)

	res, err := o.strategy.Analyze(ctx, text)
	if err != nil {
		// The strategy chain is exhausted; in practice only empty input
		// reaches this point. Keep the raw text verbatim.
		o.log.Warn("enhancement failed",
			slog.String("id", id),
			slog.String("error", err.Error()))
		if perr := o.store.ApplyFailure(id, err.Error()); perr != nil {
			o.log.Error("failure patch failed", slog.String("id", id), slog.String("error", perr.Error()))
		}
		o.emit("note.failed", id)
		return
	}

	o.padVisible(ctx, start)

	if perr := o.store.ApplyResult(id, res); perr != nil {
		o.log.Error("result patch failed", slog.String("id", id), slog.String("error", perr.Error()))
		return
	}
	o.log.Debug("note enhanced",
		slog.String("id", id),
		slog.String("title", res.Title),
		slog.String("kind", string(res.Kind)),
		slog.Duration("elapsed", time.Since(start)))
	o.emit("note.enhanced", id)
}

// padVisible sleeps out the remainder of the minimum visible enhancing
// duration, if any.
func (o *Orchestrator) padVisible(ctx context.Context, start time.Time) {
	remaining := o.minVisible - time.Since(start)
	if remaining <= 0 {
		return
	}
	select {
	case <-time.After(remaining):
	case <-ctx.Done():
	}
}

func (o *Orchestrator) emit(kind, id string) {
	if o.notify != nil {
		o.notify(kind, id)
	}
}
