package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// NoteStore defines the persistence operations the engine needs.
// Consumers should depend on this interface rather than the concrete
// *DB type to facilitate testing with mocks.
type NoteStore interface {
	Insert(rec *models.NoteRecord) error
	Get(id string) (*models.NoteRecord, error)
	List(limit, offset int, kind, status, area string) ([]models.NoteRecord, int, error)
	All() ([]models.NoteRecord, error)
	Delete(id string) error
	SetPinned(id string, pinned bool) error
	ApplyResult(id string, res *models.EnhancementResult) error
	ApplyFailure(id string, message string) error
	Close() error
}

// Verify *DB satisfies NoteStore at compile time.
var _ NoteStore = (*DB)(nil)

const noteColumns = `id, created_at, pinned, raw_text, corrected, title, emoji, tags,
	kind, status, priority, area, project, people, due_at, summary,
	action_items, links, enhancing, enhancement_error`

// Insert stores a freshly captured note record.
func (db *DB) Insert(rec *models.NoteRecord) error {
	_, err := db.conn.Exec(`
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.CreatedAt, rec.Pinned, rec.RawText, rec.Corrected,
		rec.Title, rec.Emoji, marshalList(rec.Tags),
		string(rec.Kind), string(rec.Status), string(rec.Priority), string(rec.Area),
		rec.Project, marshalList(rec.People), nullTime(rec.DueAt), rec.Summary,
		marshalList(rec.ActionItems), marshalList(rec.Links),
		rec.Enhancing, rec.EnhancementError,
	)
	if err != nil {
		return fmt.Errorf("store: insert note: %w", err)
	}
	return nil
}

// Get returns the note with the given id, or apperr.ErrNotFound.
func (db *DB) Get(id string) (*models.NoteRecord, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	rec, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return rec, err
}

// List returns notes ordered newest first, with optional exact filters on
// kind, status, and area, plus the total count matching the filters.
func (db *DB) List(limit, offset int, kind, status, area string) ([]models.NoteRecord, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := " WHERE 1=1"
	args := []any{}
	if kind != "" {
		where += " AND kind = ?"
		args = append(args, kind)
	}
	if status != "" {
		where += " AND status = ?"
		args = append(args, status)
	}
	if area != "" {
		where += " AND area = ?"
		args = append(args, area)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count notes: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT `+noteColumns+` FROM notes`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	notes, err := collectNotes(rows)
	return notes, total, err
}

// All returns the entire corpus ordered by id, for retrieval scoring.
func (db *DB) All() ([]models.NoteRecord, error) {
	rows, err := db.conn.Query(`SELECT ` + noteColumns + ` FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: all notes: %w", err)
	}
	defer rows.Close()
	return collectNotes(rows)
}

// Delete removes a note. Deleting an unknown id returns ErrNotFound.
func (db *DB) Delete(id string) error {
	res, err := db.conn.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetPinned updates the pin flag.
func (db *DB) SetPinned(id string, pinned bool) error {
	res, err := db.conn.Exec(`UPDATE notes SET pinned = ? WHERE id = ?`, pinned, id)
	if err != nil {
		return fmt.Errorf("store: set pinned: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ApplyResult patches a note with its enhancement result in a single
// UPDATE, clearing the enhancing flag. Patching an id that no longer
// exists is a silent no-op: the note was deleted mid-flight.
func (db *DB) ApplyResult(id string, res *models.EnhancementResult) error {
	_, err := db.conn.Exec(`
		UPDATE notes SET
			corrected = ?, title = ?, emoji = ?, tags = ?,
			kind = ?, status = ?, priority = ?, area = ?,
			project = ?, people = ?, due_at = ?, summary = ?,
			action_items = ?, links = ?,
			enhancing = 0, enhancement_error = ''
		WHERE id = ?
	`,
		res.Corrected, res.Title, res.Emoji, marshalList(res.Tags),
		string(res.Kind), string(res.Status), string(res.Priority), string(res.Area),
		res.Project, marshalList(res.People), nullTime(res.DueAt), res.Summary,
		marshalList(res.ActionItems), marshalList(res.Links),
		id,
	)
	if err != nil {
		return fmt.Errorf("store: apply result: %w", err)
	}
	return nil
}

// ApplyFailure marks a note's enhancement as failed, preserving the raw
// text verbatim as the corrected text so no user data is lost. A missing
// id is a silent no-op.
func (db *DB) ApplyFailure(id string, message string) error {
	_, err := db.conn.Exec(`
		UPDATE notes SET enhancing = 0, enhancement_error = ?, corrected = raw_text
		WHERE id = ?
	`, message, id)
	if err != nil {
		return fmt.Errorf("store: apply failure: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.NoteRecord, error) {
	var rec models.NoteRecord
	var tags, people, actions, links string
	var due sql.NullTime
	err := row.Scan(
		&rec.ID, &rec.CreatedAt, &rec.Pinned, &rec.RawText, &rec.Corrected,
		&rec.Title, &rec.Emoji, &tags,
		&rec.Kind, &rec.Status, &rec.Priority, &rec.Area,
		&rec.Project, &people, &due, &rec.Summary,
		&actions, &links, &rec.Enhancing, &rec.EnhancementError,
	)
	if err != nil {
		return nil, err
	}
	rec.Tags = unmarshalList(tags)
	rec.People = unmarshalList(people)
	rec.ActionItems = unmarshalList(actions)
	rec.Links = unmarshalList(links)
	if due.Valid {
		t := due.Time
		rec.DueAt = &t
	}
	return &rec, nil
}

func collectNotes(rows *sql.Rows) ([]models.NoteRecord, error) {
	var out []models.NoteRecord
	for rows.Next() {
		rec, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func marshalList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalList(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{}
	}
	return out
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
