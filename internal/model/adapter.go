package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/heuristic"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/normalize"
)

// Adapter is the model-backed analysis strategy. It attempts the same
// extraction as the heuristic analyzer via two model calls (rewrite +
// structured extraction), validating and repairing each output field
// independently. Whole-result fallback is the orchestrator's job; the
// adapter only repairs per-field.
type Adapter struct {
	backend Backend
	heur    *heuristic.Analyzer
	log     *slog.Logger
	now     func() time.Time
}

// NewAdapter creates a model-backed strategy. The heuristic analyzer
// supplies per-field repair values.
func NewAdapter(backend Backend, heur *heuristic.Analyzer, logger *slog.Logger) *Adapter {
	now := time.Now
	if heur != nil && heur.Now != nil {
		now = heur.Now
	}
	return &Adapter{backend: backend, heur: heur, log: logger, now: now}
}

// Name identifies the strategy in logs.
func (a *Adapter) Name() string { return "model" }

// extraction is the versioned field schema the model must fill.
type extraction struct {
	Title       string   `json:"title"`
	Emoji       string   `json:"emoji"`
	Tags        []string `json:"tags"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Area        string   `json:"area"`
	Project     string   `json:"project"`
	People      []string `json:"people"`
	DueAt       string   `json:"due_at"`
	Summary     string   `json:"summary"`
	ActionItems []string `json:"action_items"`
}

// Analyze runs the capability check, the rewrite call, and the
// structured-extraction call, then repairs the result field by field.
func (a *Adapter) Analyze(ctx context.Context, text string) (*models.EnhancementResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.ErrEmptyInput
	}
	// Precondition: fail fast when the capability is absent, before any
	// model work.
	if err := a.backend.Available(ctx); err != nil {
		return nil, err
	}

	normalized := normalize.Text(text)

	corrected, err := a.backend.Generate(ctx, rewritePrompt(normalized))
	if err != nil {
		return nil, apperr.NewModelError("rewrite", err)
	}
	corrected = strings.TrimSpace(corrected)
	if corrected == "" {
		a.repaired("corrected_text")
		corrected = normalized
	}

	var ex extraction
	if err := a.backend.GenerateJSON(ctx, extractPrompt(corrected, a.now()), &ex); err != nil {
		return nil, apperr.NewModelError("extract", err)
	}

	return a.repair(corrected, &ex), nil
}

// repair validates every field independently, substituting heuristic or
// neutral values for anything missing or invalid. Links are always
// recomputed from the corrected text; model-provided URLs are not
// trusted.
func (a *Adapter) repair(corrected string, ex *extraction) *models.EnhancementResult {
	res := &models.EnhancementResult{Corrected: corrected}

	res.Title = a.repairTitle(ex.Title, corrected)
	res.Tags = a.repairTags(ex.Tags, corrected)

	res.Emoji = strings.TrimSpace(ex.Emoji)
	if !heuristic.IsEmoji(res.Emoji) {
		a.repaired("emoji")
		res.Emoji = heuristic.DefaultEmoji()
	}

	res.Kind = models.ParseKind(strings.ToLower(strings.TrimSpace(ex.Kind)))
	res.Status = models.ParseStatus(strings.ToLower(strings.TrimSpace(ex.Status)))
	res.Priority = models.ParsePriority(strings.ToLower(strings.TrimSpace(ex.Priority)))
	res.Area = models.ParseArea(strings.ToLower(strings.TrimSpace(ex.Area)))
	if res.Kind == models.KindTask {
		if res.Status == models.StatusInbox {
			res.Status = models.StatusNext
		}
	} else {
		res.Priority = models.PriorityP3
	}

	res.Project = strings.TrimSpace(ex.Project)

	for _, p := range ex.People {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		res.People = append(res.People, p)
		if len(res.People) == 3 {
			break
		}
	}

	res.DueAt = ParseDue(ex.DueAt, a.now().Location())

	res.Summary = strings.TrimSpace(ex.Summary)
	if res.Summary == "" {
		a.repaired("summary")
		res.Summary = heuristic.Summarize(corrected)
	}

	for _, item := range ex.ActionItems {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		res.ActionItems = append(res.ActionItems, item)
		if len(res.ActionItems) == 7 {
			break
		}
	}

	res.Links = heuristic.ExtractLinks(corrected)
	return res
}

// repairTitle accepts a model title of 3-5 words after trimming stopword
// runs from both ends, capitalizing its first letter; anything else is
// recomputed heuristically from the corrected text.
func (a *Adapter) repairTitle(title, corrected string) string {
	words := strings.Fields(strings.TrimSpace(title))
	for len(words) > 0 && heuristic.IsStopword(words[0]) {
		words = words[1:]
	}
	for len(words) > 0 && heuristic.IsStopword(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	if len(words) >= 3 && len(words) <= 5 {
		return heuristic.CapitalizeFirst(strings.Join(words, " "))
	}
	a.repaired("title")
	return a.heur.Title(corrected)
}

// repairTags keeps valid marker-prefixed tags and tops the set up from
// the heuristic ranking until exactly three exist.
func (a *Adapter) repairTags(tags []string, corrected string) []string {
	out := make([]string, 0, 3)
	seen := make(map[string]struct{})
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.TrimPrefix(t, heuristic.TagMarker)
		t = strings.ReplaceAll(t, " ", "-")
		if t == "" || len(out) == 3 {
			return
		}
		tagged := heuristic.TagMarker + t
		if _, dup := seen[tagged]; dup {
			return
		}
		seen[tagged] = struct{}{}
		out = append(out, tagged)
	}
	for _, t := range tags {
		add(t)
	}
	if len(out) != 3 {
		a.repaired("tags")
		for _, t := range a.heur.Tags(corrected) {
			add(t)
		}
	}
	return out
}

func (a *Adapter) repaired(field string) {
	if a.log != nil {
		a.log.Debug("model field repaired", slog.String("field", field))
	}
}

// ParseDue tries RFC3339 with fractional seconds, RFC3339, then a bare
// date, and gives up with nil.
func ParseDue(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return &t
	}
	return nil
}

func rewritePrompt(text string) string {
	return fmt.Sprintf(`You are a careful copy editor. Rewrite the note below with correct spelling, grammar, and punctuation. Preserve the meaning, the tone, and any URLs exactly. Keep it about the same length. Reply with the rewritten note only, no commentary.

Note:
%s`, text)
}

func extractPrompt(corrected string, now time.Time) string {
	return fmt.Sprintf(`Current date and time: %s (timezone %s). Resolve relative date phrases like "tomorrow" or "next week" to absolute dates using it.

Extract structured fields from the note below. Respond with a single JSON object with exactly these keys:
{"title":"3-5 word title","emoji":"one emoji","tags":["#tag1","#tag2","#tag3"],"kind":"idea|task|meeting|journal|reference","status":"inbox|next|later|done","priority":"p1|p2|p3","area":"work|personal|health|finance|learning|admin|other","project":"project name or empty","people":["up to 3 names"],"due_at":"RFC3339 timestamp or empty","summary":"one sentence","action_items":["imperative steps"]}

Note:
%s`, now.Format(time.RFC1123), now.Location(), corrected)
}
