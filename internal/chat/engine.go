// Package chat answers natural-language questions against the note
// corpus. A heuristic multi-field scorer is always available; when the
// model capability is present, question intent is extracted first, the
// candidates are filtered and ranked, and the answer is synthesized from
// the top notes with citations.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/heuristic"
	"github.com/starford/ansuz/internal/model"
	"github.com/starford/ansuz/internal/models"
)

// NoMatchAnswer is the fixed response when nothing in the corpus scores.
const NoMatchAnswer = "No matching notes found."

// Response is the chat result: a synthesized answer plus the ids of the
// notes it cites.
type Response struct {
	Answer         string   `json:"answer"`
	MatchedNoteIDs []string `json:"matched_note_ids"`
}

// Engine ranks a read-only corpus snapshot against a question. Stateless
// between calls.
type Engine struct {
	backend model.Backend
	log     *slog.Logger
}

// NewEngine creates a chat engine. backend may be nil for a pure
// heuristic deployment.
func NewEngine(backend model.Backend, logger *slog.Logger) *Engine {
	return &Engine{backend: backend, log: logger}
}

// weights are the per-field multipliers for keyword containment.
type weights struct {
	title, tags, summary, actions float64
	project, people               float64
	corrected, raw                float64
	pinBonus, enhancingPenalty    float64
}

var (
	heuristicWeights = weights{
		title: 5, tags: 4, summary: 3, actions: 2.5,
		project: 2, people: 1.5, corrected: 1, raw: 0.6,
		pinBonus: 0.5, enhancingPenalty: 0.75,
	}
	intentWeights = weights{
		title: 6, tags: 5, summary: 3, actions: 2.6,
		project: 2.2, people: 1.7, corrected: 1.1, raw: 0.7,
		pinBonus: 0.5, enhancingPenalty: 0.75,
	}
)

// Respond answers question against the supplied corpus snapshot. The
// model-assisted path runs when the capability is available; any failure
// there falls back to the heuristic path with the error appended to the
// answer for diagnosis.
func (e *Engine) Respond(ctx context.Context, question string, notes []models.NoteRecord) *Response {
	if e.backend != nil {
		if err := e.backend.Available(ctx); err == nil {
			resp, mErr := e.modelRespond(ctx, question, notes)
			if mErr == nil {
				return resp
			}
			if e.log != nil {
				e.log.Debug("model-assisted chat failed, using heuristic path",
					slog.String("error", mErr.Error()))
			}
			resp = e.heuristicRespond(question, notes)
			resp.Answer += fmt.Sprintf("\n\n(model-assisted search failed: %v)", mErr)
			return resp
		}
	}
	return e.heuristicRespond(question, notes)
}

// heuristicRespond is the always-available path: tokenize, score, rank,
// and compose a plain listing answer.
func (e *Engine) heuristicRespond(question string, notes []models.NoteRecord) *Response {
	keywords := heuristic.Tokenize(question, 3)
	ranked := rank(notes, keywords, heuristicWeights)
	if len(ranked) == 0 {
		return &Response{Answer: NoMatchAnswer, MatchedNoteIDs: []string{}}
	}
	if len(ranked) > 6 {
		ranked = ranked[:6]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching note(s):\n", len(ranked))
	ids := make([]string, 0, len(ranked))
	for i, n := range ranked {
		line := n.Title
		if n.Summary != "" && n.Summary != n.Title {
			line += " — " + n.Summary
		}
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, n.Emoji, line)
		ids = append(ids, n.ID)
	}
	return &Response{Answer: strings.TrimRight(b.String(), "\n"), MatchedNoteIDs: ids}
}

// rank scores every note and returns those with a positive keyword score,
// best first. Ties break on id so the ordering is deterministic.
func rank(notes []models.NoteRecord, keywords []string, w weights) []models.NoteRecord {
	type scored struct {
		note  models.NoteRecord
		score float64
	}
	var out []scored
	for _, n := range notes {
		base := keywordScore(&n, keywords, w)
		if base <= 0 {
			continue
		}
		if n.Pinned {
			base += w.pinBonus
		}
		if n.Enhancing {
			base -= w.enhancingPenalty
		}
		out = append(out, scored{n, base})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].note.ID < out[j].note.ID
	})
	ranked := make([]models.NoteRecord, len(out))
	for i, s := range out {
		ranked[i] = s.note
	}
	return ranked
}

// keywordScore sums the field weights for every keyword contained in the
// corresponding field.
func keywordScore(n *models.NoteRecord, keywords []string, w weights) float64 {
	title := strings.ToLower(n.Title)
	tags := strings.ToLower(strings.Join(n.Tags, " "))
	summary := strings.ToLower(n.Summary)
	actions := strings.ToLower(strings.Join(n.ActionItems, " "))
	project := strings.ToLower(n.Project)
	people := strings.ToLower(strings.Join(n.People, " "))
	corrected := strings.ToLower(n.Corrected)
	raw := strings.ToLower(n.RawText)

	var score float64
	for _, kw := range keywords {
		if strings.Contains(title, kw) {
			score += w.title
		}
		if strings.Contains(tags, kw) {
			score += w.tags
		}
		if strings.Contains(summary, kw) {
			score += w.summary
		}
		if strings.Contains(actions, kw) {
			score += w.actions
		}
		if project != "" && strings.Contains(project, kw) {
			score += w.project
		}
		if people != "" && strings.Contains(people, kw) {
			score += w.people
		}
		if strings.Contains(corrected, kw) {
			score += w.corrected
		}
		if strings.Contains(raw, kw) {
			score += w.raw
		}
	}
	return score
}
