package heuristic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

func fixedAnalyzer() *Analyzer {
	return &Analyzer{Now: func() time.Time {
		return time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	}}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	a := fixedAnalyzer()
	_, err := a.Analyze(context.Background(), "   \n\t  ")
	if !errors.Is(err, apperr.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestAnalyze_TaskScenario(t *testing.T) {
	a := fixedAnalyzer()
	res, err := a.Analyze(context.Background(), "todo: call mom tomorrow about the trip")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Kind != models.KindTask {
		t.Errorf("kind = %q, want task", res.Kind)
	}
	if res.Status != models.StatusNext {
		t.Errorf("status = %q, want next", res.Status)
	}
	found := false
	for _, item := range res.ActionItems {
		if strings.Contains(strings.ToLower(item), "call mom") {
			found = true
		}
	}
	if !found {
		t.Errorf("action items %v missing 'call mom'", res.ActionItems)
	}
	if res.DueAt == nil {
		t.Fatal("due date not resolved")
	}
	if got, want := res.DueAt.Day(), 11; got != want {
		t.Errorf("due day = %d, want %d (tomorrow)", got, want)
	}
}

func TestAnalyze_Invariants(t *testing.T) {
	a := fixedAnalyzer()
	inputs := []string{
		"x",
		"ok",
		"meeting with Alice and Bob about project Apollo next week",
		"read https://example.com/article about go concurrency",
		"urgent: pay the invoice deadline friday",
		"today i felt grateful for the small things in life",
		strings.Repeat("blah ", 300),
	}
	for _, in := range inputs {
		res, err := a.Analyze(context.Background(), in)
		if err != nil {
			t.Fatalf("Analyze(%q): %v", in, err)
		}
		words := strings.Fields(res.Title)
		if len(words) < 1 || len(words) > 5 {
			t.Errorf("title %q has %d words for input %q", res.Title, len(words), in)
		}
		if len(res.Tags) != 3 {
			t.Errorf("got %d tags for %q, want 3", len(res.Tags), in)
		}
		for _, tag := range res.Tags {
			if !strings.HasPrefix(tag, TagMarker) || len(tag) < 2 {
				t.Errorf("bad tag %q for %q", tag, in)
			}
		}
		if res.Kind != models.KindTask && res.Priority != models.PriorityP3 {
			t.Errorf("non-task priority = %q for %q", res.Priority, in)
		}
		if res.Emoji == "" {
			t.Errorf("empty emoji for %q", in)
		}
	}
}

func TestAnalyze_KindCascadeOrder(t *testing.T) {
	a := fixedAnalyzer()
	// A note mentioning both meeting and deadline is a task: the task
	// rule is checked first.
	res, err := a.Analyze(context.Background(), "meeting notes: deadline for the launch is friday")
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != models.KindTask {
		t.Errorf("kind = %q, want task (cascade order)", res.Kind)
	}
}

func TestAnalyze_UrgencyPriority(t *testing.T) {
	a := fixedAnalyzer()
	res, _ := a.Analyze(context.Background(), "todo: fix the build asap")
	if res.Priority != models.PriorityP1 {
		t.Errorf("priority = %q, want p1", res.Priority)
	}
	res, _ = a.Analyze(context.Background(), "todo: water the plants")
	if res.Priority != models.PriorityP3 {
		t.Errorf("priority = %q, want p3", res.Priority)
	}
}

func TestAnalyze_AreaCascade(t *testing.T) {
	a := fixedAnalyzer()
	cases := []struct {
		in   string
		want models.Area
	}{
		{"pay the invoice before the gym session", models.AreaFinance},
		{"dentist appointment next month", models.AreaHealth},
		{"study the new course on databases", models.AreaLearning},
		{"deploy the client release", models.AreaWork},
		{"plan the family dinner this weekend", models.AreaPersonal},
		{"renew my passport", models.AreaAdmin},
		{"random musings without category", models.AreaOther},
	}
	for _, c := range cases {
		res, err := a.Analyze(context.Background(), c.in)
		if err != nil {
			t.Fatal(err)
		}
		if res.Area != c.want {
			t.Errorf("area(%q) = %q, want %q", c.in, res.Area, c.want)
		}
	}
}

func TestAnalyze_PeopleAndProject(t *testing.T) {
	a := fixedAnalyzer()
	res, err := a.Analyze(context.Background(), "Sync with Alice and Bob about project Apollo")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.People) != 2 || res.People[0] != "Alice" || res.People[1] != "Bob" {
		t.Errorf("people = %v, want [Alice Bob]", res.People)
	}
	if res.Project != "Apollo" {
		t.Errorf("project = %q, want Apollo", res.Project)
	}
}

func TestExtractLinks(t *testing.T) {
	text := "see https://a.example/x and https://a.example/x plus http://b.example/y, " +
		"then https://c.example and https://d.example"
	links := ExtractLinks(text)
	if len(links) != 3 {
		t.Fatalf("got %d links, want 3 (dedup + cap): %v", len(links), links)
	}
	if links[0] != "https://a.example/x" {
		t.Errorf("links[0] = %q", links[0])
	}
}

func TestTitle_PlaceholderWhenMeaningless(t *testing.T) {
	a := fixedAnalyzer()
	res, err := a.Analyze(context.Background(), "ok")
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != PlaceholderTitle {
		t.Errorf("title = %q, want placeholder", res.Title)
	}
}

func TestTitle_TaskSeedActionItem(t *testing.T) {
	a := fixedAnalyzer()
	res, err := a.Analyze(context.Background(), "deadline approaching for quarterly report filing")
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != models.KindTask {
		t.Fatalf("kind = %q", res.Kind)
	}
	if len(res.ActionItems) == 0 {
		t.Fatal("task with no detected actions should be seeded with the title")
	}
	if res.ActionItems[0] != res.Title {
		t.Errorf("seed = %q, want title %q", res.ActionItems[0], res.Title)
	}
}

func TestTokenize(t *testing.T) {
	toks := Tokenize("What do I owe the Finance team?", 3)
	want := map[string]bool{"owe": true, "finance": true, "team": true}
	for _, tok := range toks {
		if !want[tok] {
			t.Errorf("unexpected token %q", tok)
		}
		delete(want, tok)
	}
	if len(want) != 0 {
		t.Errorf("missing tokens: %v", want)
	}
}
