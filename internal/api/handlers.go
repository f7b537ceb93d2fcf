package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/chat"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/store"
)

// Enhancer accepts raw text for asynchronous enhancement.
type Enhancer interface {
	Submit(rawText string) (*models.NoteRecord, error)
}

// Responder answers a question against a corpus snapshot.
type Responder interface {
	Respond(ctx context.Context, question string, notes []models.NoteRecord) *chat.Response
}

// EventFunc is invoked after mutations so callers can broadcast them.
type EventFunc func(kind, id string)

// Handler holds API route handlers.
type Handler struct {
	store  store.NoteStore
	enh    Enhancer
	chat   Responder
	events EventFunc
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(st store.NoteStore, enh Enhancer, responder Responder, events EventFunc) *Handler {
	return &Handler{store: st, enh: enh, chat: responder, events: events}
}

func (h *Handler) emit(kind, id string) {
	if h.events != nil {
		h.events(kind, id)
	}
}

// CaptureNote handles POST /api/notes.
//
//	@Summary		Capture a note for background enhancement
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CaptureNoteRequest	true	"Raw note text"
//	@Success		202		{object}	CaptureNoteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CaptureNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CaptureNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.enh.Submit(req.Text)
	if err != nil {
		if errors.Is(err, apperr.ErrEmptyInput) {
			writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
			return
		}
		slog.Error("capture note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusAccepted, CaptureNoteResponse{Note: *rec})
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			kind	query		string	false	"Filter by kind"
//	@Param			status	query		string	false	"Filter by status"
//	@Param			area	query		string	false	"Filter by area"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	notes, total, err := h.store.List(limit, offset, q.Get("kind"), q.Get("status"), q.Get("area"))
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: total})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.NoteRecord
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}. Deleting a note whose
// enhancement is still in flight is allowed; the late result is dropped.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.emit("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// PinNote handles POST /api/notes/{id}/pin.
//
//	@Summary		Pin or unpin a note
//	@Tags			notes
//	@Accept			json
//	@Param			id		path	string		true	"Note id"
//	@Param			body	body	PinRequest	true	"Desired pin state"
//	@Success		204		"Pin state updated"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/pin [post]
func (h *Handler) PinNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req PinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.store.SetPinned(id, req.Pinned); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("pin note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Chat handles POST /api/chat.
//
//	@Summary		Ask a question over the note corpus
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChatRequest	true	"Question"
//	@Success		200		{object}	chat.Response
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/chat [post]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("question is required"))
		return
	}
	notes, err := h.store.All()
	if err != nil {
		slog.Error("chat snapshot failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, h.chat.Respond(r.Context(), req.Question, notes))
}
