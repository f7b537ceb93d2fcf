// Package heuristic implements the deterministic, offline analysis
// strategy. It produces a complete enhancement result from normalized
// text with no external dependencies.
package heuristic

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/normalize"
)

// PlaceholderTitle is used when no meaningful title can be derived.
const PlaceholderTitle = "Quick note"

// TagMarker prefixes every persisted tag.
const TagMarker = "#"

// fallbackTags pad the tag set to exactly three entries.
var fallbackTags = []string{TagMarker + "note", TagMarker + "inbox", TagMarker + "misc"}

var (
	linkRe       = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	actionLineRe = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?(?:\[[ xX]?\]\s*)?(?:\d+[.)]\s*)?(?:todo:?\s*)?`)
	projectRe    = regexp.MustCompile(`(?i)\bproject\s+([A-Za-z][\w-]*)`)
	peopleRe     = regexp.MustCompile(`(?:\bwith|\bw/)\s+((?:[A-Z][a-z]+)(?:(?:,\s*|\s+and\s+|\s+&\s+)[A-Z][a-z]+)*)`)
	peopleSplit  = regexp.MustCompile(`,\s*|\s+and\s+|\s+&\s+`)
)

// Analyzer is the always-available analysis strategy. Now supplies the
// clock used to resolve relative date phrases.
type Analyzer struct {
	Now func() time.Time
}

// New returns an Analyzer using the wall clock.
func New() *Analyzer {
	return &Analyzer{Now: time.Now}
}

// Name identifies the strategy in logs.
func (a *Analyzer) Name() string { return "heuristic" }

// Analyze produces a complete EnhancementResult for text. It fails only
// when text is empty after trimming.
func (a *Analyzer) Analyze(_ context.Context, text string) (*models.EnhancementResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.ErrEmptyInput
	}
	corrected := normalize.Text(text)

	title := a.Title(corrected)
	tags := a.Tags(corrected)
	lower := strings.ToLower(text + "\n" + corrected + "\n" + title + "\n" + strings.Join(tags, " "))

	kind := classifyKind(lower)
	status := models.StatusInbox
	priority := models.PriorityP3
	if kind == models.KindTask {
		status = models.StatusNext
		priority = classifyPriority(lower)
	}

	actions := actionItems(corrected)
	if len(actions) == 0 && kind == models.KindTask {
		actions = []string{title}
	}

	return &models.EnhancementResult{
		Corrected:   corrected,
		Title:       title,
		Emoji:       pickEmoji(title, tags),
		Tags:        tags,
		Kind:        kind,
		Status:      status,
		Priority:    priority,
		Area:        classifyArea(lower),
		Project:     extractProject(corrected),
		People:      extractPeople(corrected),
		DueAt:       relativeDue(lower, a.Now()),
		Summary:     Summarize(corrected),
		ActionItems: actions,
		Links:       ExtractLinks(corrected),
	}, nil
}

// Title derives a 1-5 word title from text. The first line or sentence of
// at least eight characters is preferred; a whole-text frequency fallback
// runs when it yields fewer than three meaningful words.
func (a *Analyzer) Title(text string) string {
	if seg := firstSegment(text, 8); seg != "" {
		words := splitWords(seg)
		// Drop the leading run of stopwords and short words.
		for len(words) > 0 {
			w := strings.ToLower(words[0])
			if IsStopword(w) || len([]rune(w)) <= 2 {
				words = words[1:]
				continue
			}
			break
		}
		if len(words) > 5 {
			words = words[:5]
		}
		// Trim a trailing stopword run left by the cut.
		for len(words) > 0 && IsStopword(words[len(words)-1]) {
			words = words[:len(words)-1]
		}
		if len(words) >= 3 {
			return CapitalizeFirst(strings.Join(words, " "))
		}
	}

	// Frequency fallback over the whole text.
	top := topTokens(text, 4, 3)
	if len(top) >= 3 {
		candidate := strings.Join(top, " ")
		// An echo of the opening words is not a title.
		if !strings.HasPrefix(strings.ToLower(text), strings.ToLower(candidate)) {
			return CapitalizeFirst(candidate)
		}
	}
	return PlaceholderTitle
}

// Tags returns exactly three marker-prefixed tags ranked by token
// frequency, ties broken alphabetically, padded from the fallback set.
func (a *Analyzer) Tags(text string) []string {
	type scored struct {
		tok    string
		weight int
	}
	counts := make(map[string]int)
	capitalized := make(map[string]bool)
	for _, w := range splitWords(text) {
		lw := strings.ToLower(w)
		if len([]rune(lw)) < 4 || IsStopword(lw) {
			continue
		}
		counts[lw]++
		if unicode.IsUpper([]rune(w)[0]) {
			capitalized[lw] = true
		}
	}

	ranked := make([]scored, 0, len(counts))
	for tok, c := range counts {
		w := c
		if capitalized[tok] {
			w *= 2
		}
		ranked = append(ranked, scored{tok, w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].tok < ranked[j].tok
	})
	if len(ranked) > 12 {
		ranked = ranked[:12]
	}

	tags := make([]string, 0, 3)
	seen := make(map[string]struct{})
	for _, r := range ranked {
		if len(tags) == 3 {
			break
		}
		t := TagMarker + r.tok
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	for _, fb := range fallbackTags {
		if len(tags) == 3 {
			break
		}
		if _, dup := seen[fb]; dup {
			continue
		}
		seen[fb] = struct{}{}
		tags = append(tags, fb)
	}
	return tags
}

// ExtractLinks returns up to three deduplicated http(s) URLs found in text.
func ExtractLinks(text string) []string {
	matches := linkRe.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?")
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// IsEmoji reports whether s contains at least one emoji-range codepoint.
func IsEmoji(s string) bool {
	for _, r := range s {
		if r >= 0x1F000 || (r >= 0x2600 && r <= 0x27BF) || r == 0x2B50 || r == 0x2764 {
			return true
		}
	}
	return false
}

// DefaultEmoji is the generic note glyph.
func DefaultEmoji() string { return defaultEmoji }

func pickEmoji(title string, tags []string) string {
	haystack := strings.ToLower(title + " " + strings.Join(tags, " "))
	for _, e := range emojiTable {
		if strings.Contains(haystack, e.keyword) {
			return e.glyph
		}
	}
	return defaultEmoji
}

// classifyKind runs the ordered kind cascade: task, meeting, journal,
// reference, then idea as the default. First match wins.
func classifyKind(lower string) models.Kind {
	switch {
	case containsAny(lower, taskWords):
		return models.KindTask
	case containsAny(lower, meetingWords):
		return models.KindMeeting
	case containsAny(lower, journalWords):
		return models.KindJournal
	case containsAny(lower, referenceWords):
		return models.KindReference
	}
	return models.KindIdea
}

func classifyPriority(lower string) models.Priority {
	switch {
	case containsAny(lower, urgentWords):
		return models.PriorityP1
	case containsAny(lower, soonWords):
		return models.PriorityP2
	}
	return models.PriorityP3
}

// classifyArea runs the ordered area cascade: finance, health, learning,
// work, personal, admin, then other. First match wins.
func classifyArea(lower string) models.Area {
	switch {
	case containsAny(lower, financeWords):
		return models.AreaFinance
	case containsAny(lower, healthWords):
		return models.AreaHealth
	case containsAny(lower, learningWords):
		return models.AreaLearning
	case containsAny(lower, workWords):
		return models.AreaWork
	case containsAny(lower, personalWords):
		return models.AreaPersonal
	case containsAny(lower, adminWords):
		return models.AreaAdmin
	}
	return models.AreaOther
}

// Summarize returns the first meaningful line or sentence, truncated to
// twenty words.
func Summarize(text string) string {
	seg := firstSegment(text, 1)
	if seg == "" {
		return ""
	}
	words := strings.Fields(seg)
	if len(words) > 20 {
		words = words[:20]
	}
	return strings.Join(words, " ")
}

// actionItems scans lines, strips bullet/checkbox/todo prefixes, and keeps
// lines of at least six characters opening with an imperative verb.
func actionItems(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(actionLineRe.ReplaceAllString(line, ""))
		if len(stripped) < 6 {
			continue
		}
		words := strings.FieldsFunc(stripped, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		if len(words) == 0 {
			continue
		}
		if _, ok := imperativeVerbs[strings.ToLower(words[0])]; !ok {
			continue
		}
		out = append(out, stripped)
		if len(out) == 7 {
			break
		}
	}
	return out
}

func extractProject(text string) string {
	if m := projectRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func extractPeople(text string) []string {
	m := peopleRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var out []string
	for _, name := range peopleSplit.Split(m[1], -1) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// relativeDue resolves simple relative date phrases against now. The
// model path handles richer phrases; this keeps the offline path useful.
func relativeDue(lower string, now time.Time) *time.Time {
	day := 0
	switch {
	case strings.Contains(lower, "today") || strings.Contains(lower, "tonight"):
		day = 0
	case strings.Contains(lower, "tomorrow"):
		day = 1
	case strings.Contains(lower, "next week"):
		day = 7
	default:
		return nil
	}
	d := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location()).AddDate(0, 0, day)
	return &d
}

// firstSegment returns the first line or sentence of at least minLen
// characters after trimming, or "" when none exists.
func firstSegment(text string, minLen int) string {
	for _, line := range strings.Split(text, "\n") {
		for _, seg := range splitSentences(line) {
			seg = strings.TrimSpace(seg)
			if len([]rune(seg)) >= minLen {
				return seg
			}
		}
		// A whole short line may still qualify on its own.
		if t := strings.TrimSpace(line); len([]rune(t)) >= minLen {
			return t
		}
	}
	return ""
}

func splitSentences(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
}

// topTokens returns up to max tokens ranked by weighted frequency
// (capitalized occurrences count double), ordered by first appearance,
// or nil when fewer than min qualify.
func topTokens(text string, max, min int) []string {
	counts := make(map[string]int)
	firstAt := make(map[string]int)
	for i, w := range splitWords(text) {
		lw := strings.ToLower(w)
		if len([]rune(lw)) < 3 || IsStopword(lw) {
			continue
		}
		weight := 1
		if unicode.IsUpper([]rune(w)[0]) && i > 0 {
			weight = 2
		}
		counts[lw] += weight
		if _, ok := firstAt[lw]; !ok {
			firstAt[lw] = i
		}
	}
	if len(counts) < min {
		return nil
	}

	toks := make([]string, 0, len(counts))
	for t := range counts {
		toks = append(toks, t)
	}
	sort.Slice(toks, func(i, j int) bool {
		if counts[toks[i]] != counts[toks[j]] {
			return counts[toks[i]] > counts[toks[j]]
		}
		return toks[i] < toks[j]
	})
	if len(toks) > max {
		toks = toks[:max]
	}
	sort.Slice(toks, func(i, j int) bool { return firstAt[toks[i]] < firstAt[toks[j]] })
	return toks
}

// CapitalizeFirst upper-cases the first rune when it is alphabetic.
func CapitalizeFirst(s string) string {
	r := []rune(s)
	if len(r) > 0 && unicode.IsLetter(r[0]) {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r)
}
