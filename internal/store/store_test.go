package store

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func placeholder(id, raw string) *models.NoteRecord {
	return &models.NoteRecord{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		RawText:   raw,
		Corrected: raw,
		Title:     "Quick note",
		Emoji:     "📝",
		Tags:      []string{},
		Kind:      models.KindIdea,
		Status:    models.StatusInbox,
		Priority:  models.PriorityP3,
		Area:      models.AreaOther,
		Enhancing: true,
	}
}

func result() *models.EnhancementResult {
	due := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	return &models.EnhancementResult{
		Corrected:   "Call mom tomorrow about the trip.",
		Title:       "Call mom tomorrow",
		Emoji:       "📞",
		Tags:        []string{"#call", "#tomorrow", "#trip"},
		Kind:        models.KindTask,
		Status:      models.StatusNext,
		Priority:    models.PriorityP3,
		Area:        models.AreaPersonal,
		People:      []string{"Mom"},
		DueAt:       &due,
		Summary:     "Call mom tomorrow about the trip",
		ActionItems: []string{"call mom tomorrow about the trip"},
		Links:       []string{},
	}
}

func TestInsertAndGet(t *testing.T) {
	db := testDB(t)
	rec := placeholder("n1", "todo: call mom")
	if err := db.Insert(rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := db.Get("n1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RawText != "todo: call mom" || !got.Enhancing {
		t.Errorf("got %+v", got)
	}
	if got.Tags == nil {
		t.Error("tags should round-trip as empty slice, not nil")
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApplyResult(t *testing.T) {
	db := testDB(t)
	if err := db.Insert(placeholder("n1", "todo: call mom tomorrow about the trip")); err != nil {
		t.Fatal(err)
	}
	if err := db.ApplyResult("n1", result()); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}

	got, err := db.Get("n1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Enhancing {
		t.Error("enhancing flag not cleared")
	}
	if got.Title != "Call mom tomorrow" || got.Kind != models.KindTask {
		t.Errorf("patch incomplete: %+v", got)
	}
	if got.DueAt == nil || got.DueAt.UTC().Day() != 11 {
		t.Errorf("due = %v", got.DueAt)
	}
	if len(got.Tags) != 3 {
		t.Errorf("tags = %v", got.Tags)
	}
	// Raw text survives the patch untouched.
	if got.RawText != "todo: call mom tomorrow about the trip" {
		t.Errorf("raw text mutated: %q", got.RawText)
	}
}

func TestApplyResult_DeletedIDIsNoOp(t *testing.T) {
	db := testDB(t)
	if err := db.ApplyResult("gone", result()); err != nil {
		t.Fatalf("patch of deleted id should be a silent no-op, got %v", err)
	}
}

func TestApplyFailure(t *testing.T) {
	db := testDB(t)
	rec := placeholder("n1", "raw capture text")
	rec.Corrected = "placeholder"
	if err := db.Insert(rec); err != nil {
		t.Fatal(err)
	}
	if err := db.ApplyFailure("n1", "empty input"); err != nil {
		t.Fatal(err)
	}

	got, _ := db.Get("n1")
	if got.Enhancing {
		t.Error("enhancing flag not cleared")
	}
	if got.EnhancementError != "empty input" {
		t.Errorf("error = %q", got.EnhancementError)
	}
	if got.Corrected != got.RawText {
		t.Errorf("corrected = %q, want raw text preserved", got.Corrected)
	}
}

func TestListFilters(t *testing.T) {
	db := testDB(t)
	a := placeholder("a", "one")
	a.Kind = models.KindTask
	a.Status = models.StatusNext
	b := placeholder("b", "two")
	b.Kind = models.KindIdea
	c := placeholder("c", "three")
	c.Kind = models.KindTask
	c.Status = models.StatusDone
	for _, r := range []*models.NoteRecord{a, b, c} {
		if err := db.Insert(r); err != nil {
			t.Fatal(err)
		}
	}

	notes, total, err := db.List(10, 0, "task", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(notes) != 2 {
		t.Errorf("task filter: total=%d len=%d", total, len(notes))
	}

	notes, total, err = db.List(10, 0, "task", "done", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || notes[0].ID != "c" {
		t.Errorf("task+done filter: total=%d notes=%v", total, notes)
	}
}

func TestDeleteAndPin(t *testing.T) {
	db := testDB(t)
	if err := db.Insert(placeholder("n1", "text")); err != nil {
		t.Fatal(err)
	}

	if err := db.SetPinned("n1", true); err != nil {
		t.Fatal(err)
	}
	got, _ := db.Get("n1")
	if !got.Pinned {
		t.Error("pin flag not set")
	}

	if err := db.Delete("n1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get("n1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("note survived delete")
	}
	if err := db.Delete("n1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
