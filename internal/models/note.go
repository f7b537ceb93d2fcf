// Package models defines the domain types for Ansuz.
package models

import "time"

// Kind is the closed note-kind axis.
type Kind string

// Kind values.
const (
	KindIdea      Kind = "idea"
	KindTask      Kind = "task"
	KindMeeting   Kind = "meeting"
	KindJournal   Kind = "journal"
	KindReference Kind = "reference"
)

// Status is the closed workflow-status axis.
type Status string

// Status values.
const (
	StatusInbox Status = "inbox"
	StatusNext  Status = "next"
	StatusLater Status = "later"
	StatusDone  Status = "done"
)

// Priority is the closed priority axis. Only meaningful for task notes;
// non-task notes always carry PriorityP3 as a neutral default.
type Priority string

// Priority values.
const (
	PriorityP1 Priority = "p1"
	PriorityP2 Priority = "p2"
	PriorityP3 Priority = "p3"
)

// Area is the closed life-area axis.
type Area string

// Area values.
const (
	AreaWork     Area = "work"
	AreaPersonal Area = "personal"
	AreaHealth   Area = "health"
	AreaFinance  Area = "finance"
	AreaLearning Area = "learning"
	AreaAdmin    Area = "admin"
	AreaOther    Area = "other"
)

// ParseKind returns the Kind matching s, or KindIdea for any
// unrecognized value.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindIdea, KindTask, KindMeeting, KindJournal, KindReference:
		return Kind(s)
	}
	return KindIdea
}

// ParseStatus returns the Status matching s, or StatusInbox for any
// unrecognized value.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusInbox, StatusNext, StatusLater, StatusDone:
		return Status(s)
	}
	return StatusInbox
}

// ParsePriority returns the Priority matching s, or PriorityP3 for any
// unrecognized value.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityP1, PriorityP2, PriorityP3:
		return Priority(s)
	}
	return PriorityP3
}

// ParseArea returns the Area matching s, or AreaOther for any
// unrecognized value.
func ParseArea(s string) Area {
	switch Area(s) {
	case AreaWork, AreaPersonal, AreaHealth, AreaFinance, AreaLearning, AreaAdmin, AreaOther:
		return Area(s)
	}
	return AreaOther
}

// NoteRecord is a captured note together with its enhancement output and
// lifecycle flags. The orchestrator is the only writer of the enhancement
// fields after insertion.
type NoteRecord struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	Pinned      bool       `json:"pinned"`
	RawText     string     `json:"raw_text"`
	Corrected   string     `json:"corrected_text"`
	Title       string     `json:"title"`
	Emoji       string     `json:"emoji"`
	Tags        []string   `json:"tags"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Area        Area       `json:"area"`
	Project     string     `json:"project,omitempty"`
	People      []string   `json:"people,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Summary     string     `json:"summary"`
	ActionItems []string   `json:"action_items,omitempty"`
	Links       []string   `json:"links,omitempty"`

	Enhancing        bool   `json:"enhancing"`
	EnhancementError string `json:"enhancement_error,omitempty"`
}

// EnhancementResult is the immutable output of one analysis strategy.
// It is produced once per attempt and copied field-by-field into a
// NoteRecord by the orchestrator.
type EnhancementResult struct {
	Corrected   string
	Title       string
	Emoji       string
	Tags        []string
	Kind        Kind
	Status      Status
	Priority    Priority
	Area        Area
	Project     string
	People      []string
	DueAt       *time.Time
	Summary     string
	ActionItems []string
	Links       []string
}

// QueryIntent is the structured interpretation of a chat question, used
// to filter and rank notes before answer synthesis. Ephemeral, one per
// question.
type QueryIntent struct {
	Keywords    []string
	Kind        Kind // zero value means no filter
	Status      Status
	Area        Area
	Project     string
	People      []string
	IncludeDone bool
	DueBefore   *time.Time
	DueAfter    *time.Time
	Limit       int
}

// ClampLimit bounds the result limit to the 3..12 window, defaulting to 6
// when unset.
func (q *QueryIntent) ClampLimit() int {
	switch {
	case q.Limit <= 0:
		return 6
	case q.Limit < 3:
		return 3
	case q.Limit > 12:
		return 12
	}
	return q.Limit
}
