package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/chat"
	"github.com/starford/ansuz/internal/enhance"
	"github.com/starford/ansuz/internal/heuristic"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/store"
	"github.com/starford/ansuz/internal/testutil"
)

// testEnv sets up a temp SQLite DB, orchestrator, chat engine, and router.
// authToken="" means auth disabled.
func testEnv(t *testing.T, authToken string) (*store.DB, http.Handler) {
	t.Helper()

	db := testutil.TestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	orch := enhance.NewOrchestrator(ctx, db, heuristic.New(), discardLogger(),
		enhance.WithMinVisible(0))
	t.Cleanup(func() {
		cancel()
		orch.Wait()
	})

	engine := chat.NewEngine(nil, nil)
	h := NewHandler(db, orch, engine, nil)
	router := NewRouter(h, authToken != "", authToken, nil)
	return db, router
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seedNote(t *testing.T, db *store.DB, id, title string, kind models.Kind) {
	t.Helper()
	rec := &models.NoteRecord{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		RawText:   title,
		Corrected: title,
		Title:     title,
		Emoji:     "📝",
		Tags:      []string{"#a", "#b", "#c"},
		Kind:      kind,
		Status:    models.StatusInbox,
		Priority:  models.PriorityP3,
		Area:      models.AreaOther,
		Summary:   title,
	}
	if rec.Kind == models.KindTask {
		rec.Status = models.StatusNext
	}
	if err := db.Insert(rec); err != nil {
		t.Fatal(err)
	}
}

func TestCaptureAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(CaptureNoteRequest{Text: "call mom tomorrow about the trip"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("capture status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp CaptureNoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Note.ID == "" {
		t.Fatal("capture response missing id")
	}
	if resp.Note.Title != heuristic.PlaceholderTitle {
		t.Errorf("placeholder title = %q", resp.Note.Title)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes/"+resp.Note.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note models.NoteRecord
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.RawText != "call mom tomorrow about the trip" {
		t.Errorf("raw text = %q", note.RawText)
	}
}

func TestCaptureEmptyText(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(CaptureNoteRequest{Text: "   "})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListNotesFiltered(t *testing.T) {
	db, router := testEnv(t, "")
	seedNote(t, db, "n1", "Buy groceries", models.KindTask)
	seedNote(t, db, "n2", "App idea", models.KindIdea)
	seedNote(t, db, "n3", "Standup notes", models.KindMeeting)

	req := httptest.NewRequest(http.MethodGet, "/notes?kind=task", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp NoteListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Notes) != 1 || resp.Notes[0].ID != "n1" {
		t.Errorf("filtered list = total %d, notes %v", resp.Total, resp.Notes)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodGet, "/notes/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	db, router := testEnv(t, "")
	seedNote(t, db, "gone", "Short lived", models.KindIdea)

	req := httptest.NewRequest(http.MethodDelete, "/notes/gone", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes/gone", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/notes/gone", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestPinNote(t *testing.T) {
	db, router := testEnv(t, "")
	seedNote(t, db, "p1", "Keep this handy", models.KindReference)

	body, _ := json.Marshal(PinRequest{Pinned: true})
	req := httptest.NewRequest(http.MethodPost, "/notes/p1/pin", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("pin status = %d", w.Code)
	}

	rec, err := db.Get("p1")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Pinned {
		t.Error("note not pinned")
	}
}

func TestChat(t *testing.T) {
	db, router := testEnv(t, "")
	seedNote(t, db, "c1", "Quarterly budget review", models.KindMeeting)

	body, _ := json.Marshal(ChatRequest{Question: "anything about the budget?"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("chat status = %d", w.Code)
	}
	var resp chat.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.MatchedNoteIDs) != 1 || resp.MatchedNoteIDs[0] != "c1" {
		t.Errorf("citations = %v", resp.MatchedNoteIDs)
	}
}

func TestChat_MissingQuestion(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("good token = %d, want 200", w.Code)
	}
}
