package api

import "github.com/starford/ansuz/internal/models"

// CaptureNoteRequest is the request body for capturing a note.
type CaptureNoteRequest struct {
	Text string `json:"text"`
}

// CaptureNoteResponse acknowledges an accepted capture. The returned
// record is the placeholder; enhancement continues in the background.
type CaptureNoteResponse struct {
	Note models.NoteRecord `json:"note"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []models.NoteRecord `json:"notes"`
	Total int                 `json:"total"`
}

// PinRequest is the request body for pinning or unpinning a note.
type PinRequest struct {
	Pinned bool `json:"pinned"`
}

// ChatRequest is the request body for asking the corpus a question.
type ChatRequest struct {
	Question string `json:"question"`
}
