package heuristic

import (
	"strings"
	"unicode"
)

// stopwords is the closed set of tokens ignored for title, tag, and
// keyword extraction.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "the", "and", "or", "but", "so", "to", "of", "in", "on",
		"at", "by", "for", "with", "about", "from", "into", "over", "after",
		"before", "is", "are", "was", "were", "be", "been", "being", "am",
		"do", "does", "did", "will", "would", "can", "could", "should",
		"shall", "may", "might", "must", "have", "has", "had", "it", "its",
		"this", "that", "these", "those", "i", "me", "my", "we", "our",
		"you", "your", "he", "she", "they", "them", "his", "her", "their",
		"what", "which", "who", "when", "where", "how", "why", "not", "no",
		"yes", "just", "very", "really", "some", "any", "all", "there",
		"here", "then", "than", "also", "too", "as", "if", "up", "out",
		"get", "got", "go", "going", "need", "needs", "want", "wants",
		"like", "make", "made", "thing", "things", "stuff", "note", "notes",
		"todo", "dont", "don't", "im", "i'm", "ive", "i've", "lets", "let's",
	} {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether the lowercase token is in the stopword set.
func IsStopword(tok string) bool {
	_, ok := stopwords[strings.ToLower(tok)]
	return ok
}

// Tokenize splits s into lowercase word tokens of at least minLen runes,
// excluding stopwords. Order of first occurrence is preserved.
func Tokenize(s string, minLen int) []string {
	var out []string
	for _, w := range splitWords(s) {
		lw := strings.ToLower(w)
		if len([]rune(lw)) < minLen {
			continue
		}
		if IsStopword(lw) {
			continue
		}
		out = append(out, lw)
	}
	return out
}

// splitWords breaks s on any rune that is not a letter, digit, or
// apostrophe, preserving original casing.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// emojiEntry maps a keyword to the glyph chosen when the keyword appears
// in the title or tags. Scanned in order, first match wins.
type emojiEntry struct {
	keyword string
	glyph   string
}

// defaultEmoji is used when no keyword matches.
const defaultEmoji = "📝"

var emojiTable = []emojiEntry{
	{"meeting", "🗓️"},
	{"call", "📞"},
	{"email", "✉️"},
	{"buy", "🛒"},
	{"money", "💰"},
	{"invoice", "💰"},
	{"budget", "💰"},
	{"tax", "💰"},
	{"doctor", "🏥"},
	{"health", "🏥"},
	{"gym", "💪"},
	{"workout", "💪"},
	{"book", "📚"},
	{"read", "📚"},
	{"learn", "📚"},
	{"course", "📚"},
	{"idea", "💡"},
	{"trip", "✈️"},
	{"travel", "✈️"},
	{"flight", "✈️"},
	{"food", "🍽️"},
	{"recipe", "🍽️"},
	{"birthday", "🎂"},
	{"project", "🔧"},
	{"deploy", "🚀"},
	{"ship", "🚀"},
	{"link", "🔗"},
	{"journal", "📖"},
	{"task", "✅"},
	{"deadline", "⏰"},
	{"urgent", "⏰"},
}

// Keyword cascades for classification. Each list is scanned in order
// against the combined note text; the first matching list decides.
var (
	taskWords      = []string{"todo", "task", "deadline", "due", "must ", "remember to", "don't forget", "need to"}
	meetingWords   = []string{"meeting", "standup", "stand-up", "1:1", "agenda", "sync with", "call with", "retro"}
	journalWords   = []string{"journal", "diary", "today i", "grateful", "feeling", "felt", "reflect"}
	referenceWords = []string{"http://", "https://", "article", "reference", "docs", "documentation", "read later", "bookmark"}

	urgentWords = []string{"urgent", "asap", "p1", "right away", "immediately", "critical"}
	soonWords   = []string{"p2", "important", "this week", "soon", "high priority"}

	financeWords  = []string{"invoice", "budget", "tax", "bank", "money", "salary", "owe", "payment", "rent", "bill"}
	healthWords   = []string{"doctor", "dentist", "gym", "workout", "health", "medication", "sleep", "therapy", "run"}
	learningWords = []string{"learn", "course", "study", "tutorial", "book", "lecture", "practice", "exam"}
	workWords     = []string{"work", "project", "client", "meeting", "deploy", "ship", "release", "standup", "review", "pr "}
	personalWords = []string{"family", "home", "friend", "mom", "dad", "kids", "birthday", "trip", "vacation", "dinner"}
	adminWords    = []string{"renew", "passport", "visa", "form", "appointment", "paperwork", "insurance", "registration", "license"}
)

// imperativeVerbs is the closed list of verbs that mark a line as an
// action item when they open the line.
var imperativeVerbs = map[string]struct{}{}

func init() {
	for _, v := range []string{
		"call", "email", "buy", "review", "ship", "send", "schedule",
		"book", "fix", "write", "read", "pay", "update", "check", "follow",
		"plan", "finish", "clean", "submit", "order", "ask", "renew",
		"cancel", "prepare", "draft", "research", "talk", "text", "print",
		"sign", "pick", "drop", "return",
	} {
		imperativeVerbs[v] = struct{}{}
	}
}

// containsAny reports whether lower contains any of the needles.
func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
