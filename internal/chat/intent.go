package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/heuristic"
	"github.com/starford/ansuz/internal/model"
	"github.com/starford/ansuz/internal/models"
)

// intentDTO is the JSON schema the model fills when interpreting a
// question.
type intentDTO struct {
	Keywords    []string `json:"keywords"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	Area        string   `json:"area"`
	Project     string   `json:"project"`
	People      []string `json:"people"`
	IncludeDone bool     `json:"include_done"`
	DueBefore   string   `json:"due_before"`
	DueAfter    string   `json:"due_after"`
	Limit       int      `json:"limit"`
}

// answerDTO is the JSON schema of the synthesis call.
type answerDTO struct {
	Answer    string `json:"answer"`
	UsedNotes []int  `json:"used_notes"`
}

// modelRespond runs intent extraction, filtered ranking, and answer
// synthesis. Any error aborts the whole path; the caller falls back.
func (e *Engine) modelRespond(ctx context.Context, question string, notes []models.NoteRecord) (*Response, error) {
	var dto intentDTO
	if err := e.backend.GenerateJSON(ctx, intentPrompt(question, time.Now()), &dto); err != nil {
		return nil, apperr.NewModelError("intent", err)
	}
	intent := buildIntent(&dto)

	keywords := intent.Keywords
	if len(keywords) == 0 {
		keywords = heuristic.Tokenize(question, 3)
	}

	candidates := filterByIntent(notes, intent)
	ranked := rank(candidates, keywords, intentWeights)
	if len(ranked) == 0 {
		return &Response{Answer: NoMatchAnswer, MatchedNoteIDs: []string{}}, nil
	}
	if limit := intent.ClampLimit(); len(ranked) > limit {
		ranked = ranked[:limit]
	}

	var adto answerDTO
	if err := e.backend.GenerateJSON(ctx, answerPrompt(question, ranked), &adto); err != nil {
		return nil, apperr.NewModelError("answer", err)
	}

	ids := citedIDs(adto.UsedNotes, ranked)
	answer := strings.TrimSpace(adto.Answer)
	if answer == "" {
		return nil, apperr.NewModelError("answer", fmt.Errorf("empty answer"))
	}
	return &Response{Answer: answer, MatchedNoteIDs: ids}, nil
}

// buildIntent converts the raw DTO into a validated QueryIntent; invalid
// enum values simply leave the corresponding filter unset.
func buildIntent(dto *intentDTO) *models.QueryIntent {
	intent := &models.QueryIntent{
		Project:     strings.TrimSpace(dto.Project),
		IncludeDone: dto.IncludeDone,
		Limit:       dto.Limit,
		DueBefore:   model.ParseDue(dto.DueBefore, time.Local),
		DueAfter:    model.ParseDue(dto.DueAfter, time.Local),
	}
	for _, kw := range dto.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			intent.Keywords = append(intent.Keywords, kw)
		}
	}
	if k := strings.ToLower(strings.TrimSpace(dto.Kind)); k != "" && string(models.ParseKind(k)) == k {
		intent.Kind = models.Kind(k)
	}
	if s := strings.ToLower(strings.TrimSpace(dto.Status)); s != "" && string(models.ParseStatus(s)) == s {
		intent.Status = models.Status(s)
	}
	if a := strings.ToLower(strings.TrimSpace(dto.Area)); a != "" && string(models.ParseArea(a)) == a {
		intent.Area = models.Area(a)
	}
	for _, p := range dto.People {
		if p = strings.TrimSpace(p); p != "" {
			intent.People = append(intent.People, p)
		}
	}
	return intent
}

// filterByIntent applies exact kind/status/area filters, project and
// people matching, the done-notes default, and due-date bounds (tasks
// only).
func filterByIntent(notes []models.NoteRecord, intent *models.QueryIntent) []models.NoteRecord {
	var out []models.NoteRecord
	for _, n := range notes {
		if intent.Kind != "" && n.Kind != intent.Kind {
			continue
		}
		if intent.Status != "" {
			if n.Status != intent.Status {
				continue
			}
		} else if n.Status == models.StatusDone && !intent.IncludeDone {
			// Done notes are hidden unless asked for.
			continue
		}
		if intent.Area != "" && n.Area != intent.Area {
			continue
		}
		if intent.Project != "" &&
			!strings.Contains(strings.ToLower(n.Project), strings.ToLower(intent.Project)) {
			continue
		}
		if len(intent.People) > 0 && !mentionsAny(n.People, intent.People) {
			continue
		}
		if n.Kind == models.KindTask && !withinDueBounds(&n, intent) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func mentionsAny(have, want []string) bool {
	for _, w := range want {
		lw := strings.ToLower(w)
		for _, h := range have {
			if strings.Contains(strings.ToLower(h), lw) {
				return true
			}
		}
	}
	return false
}

func withinDueBounds(n *models.NoteRecord, intent *models.QueryIntent) bool {
	if intent.DueBefore == nil && intent.DueAfter == nil {
		return true
	}
	if n.DueAt == nil {
		return false
	}
	if intent.DueBefore != nil && n.DueAt.After(*intent.DueBefore) {
		return false
	}
	if intent.DueAfter != nil && n.DueAt.Before(*intent.DueAfter) {
		return false
	}
	return true
}

// citedIDs maps the 1-based indices the model claims to have used onto
// note ids, clamping out-of-range values. An empty list falls back to
// citing the top six ranked candidates.
func citedIDs(used []int, ranked []models.NoteRecord) []string {
	var ids []string
	seen := make(map[int]struct{})
	for _, idx := range used {
		if idx < 1 {
			idx = 1
		}
		if idx > len(ranked) {
			idx = len(ranked)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		ids = append(ids, ranked[idx-1].ID)
	}
	if len(ids) == 0 {
		top := len(ranked)
		if top > 6 {
			top = 6
		}
		for i := 0; i < top; i++ {
			ids = append(ids, ranked[i].ID)
		}
	}
	return ids
}

func intentPrompt(question string, now time.Time) string {
	return fmt.Sprintf(`Current date and time: %s (timezone %s).

Interpret the question about a personal note collection. Respond with a single JSON object with exactly these keys:
{"keywords":["search terms"],"kind":"idea|task|meeting|journal|reference or empty","status":"inbox|next|later|done or empty","area":"work|personal|health|finance|learning|admin or empty","project":"project name or empty","people":["names"],"include_done":false,"due_before":"RFC3339 or empty","due_after":"RFC3339 or empty","limit":6}

Question:
%s`, now.Format(time.RFC1123), now.Location(), question)
}

func answerPrompt(question string, ranked []models.NoteRecord) string {
	var b strings.Builder
	for i, n := range ranked {
		summary := n.Summary
		if words := strings.Fields(summary); len(words) > 30 {
			summary = strings.Join(words[:30], " ") + "…"
		}
		fmt.Fprintf(&b, "%d. %s %s — %s (%s/%s)\n", i+1, n.Emoji, n.Title, summary, n.Kind, n.Status)
	}
	return fmt.Sprintf(`Answer the question using ONLY the numbered notes below. Do not invent notes. Respond with a single JSON object: {"answer":"concise answer in plain language","used_notes":[numbers of the notes the answer draws on]}

Notes:
%s
Question:
%s`, b.String(), question)
}
