package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of note lifecycle states.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusRevived  Status = "revived"
)

// Live reports whether the note's decay timer is running.
// Revived notes behave identically to active ones.
func (s Status) Live() bool {
	return s == StatusActive || s == StatusRevived
}

// Note is a decaying note owned by a single user.
type Note struct {
	ID                   string
	OwnerID              string
	Title                string
	Content              string
	DecayMinutes         int
	OriginalDecayMinutes int
	LastRevised          int64 // unix milli
	Status               Status
	ArchivedAt           *int64
	RevivedAt            *int64
	WrongAnswers         int
	PenaltyApplied       bool
	AISummary            string
	AIQuestions          []string
	CreatedAt            int64
}

// HasQuestions reports whether AI revision questions have been generated.
func (n *Note) HasQuestions() bool {
	return len(n.AIQuestions) > 0
}

const noteColumns = `id, owner_id, title, content, decay_minutes, original_decay_minutes,
	last_revised, status, archived_at, revived_at, wrong_answers, penalty_applied,
	ai_summary, ai_questions, created_at`

// CreateNote inserts a new note. Assigns a UUID if the ID is empty and
// stamps created_at/last_revised with the current instant.
func (db *DB) CreateNote(n *Note) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()
	if n.CreatedAt == 0 {
		n.CreatedAt = now
	}
	if n.LastRevised == 0 {
		n.LastRevised = now
	}
	if n.Status == "" {
		n.Status = StatusActive
	}

	questions, err := marshalQuestions(n.AIQuestions)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.OwnerID, n.Title, n.Content, n.DecayMinutes, n.OriginalDecayMinutes,
		n.LastRevised, n.Status, n.ArchivedAt, n.RevivedAt, n.WrongAnswers, boolInt(n.PenaltyApplied),
		nullIfEmpty(n.AISummary), questions, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// GetNote returns a note by id scoped to its owner, or nil if not found.
// Owner scoping in the query means a foreign note is indistinguishable
// from a missing one.
func (db *DB) GetNote(id, ownerID string) (*Note, error) {
	row := db.QueryRow(`
		SELECT `+noteColumns+` FROM notes WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// UpdateNote writes the full mutable state of a note back in one statement.
// Single-row UPDATE keeps per-note mutations atomic.
func (db *DB) UpdateNote(n *Note) error {
	questions, err := marshalQuestions(n.AIQuestions)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		UPDATE notes SET title = ?, content = ?, decay_minutes = ?, original_decay_minutes = ?,
			last_revised = ?, status = ?, archived_at = ?, revived_at = ?,
			wrong_answers = ?, penalty_applied = ?, ai_summary = ?, ai_questions = ?
		WHERE id = ?
	`, n.Title, n.Content, n.DecayMinutes, n.OriginalDecayMinutes,
		n.LastRevised, n.Status, n.ArchivedAt, n.RevivedAt,
		n.WrongAnswers, boolInt(n.PenaltyApplied), nullIfEmpty(n.AISummary), questions, n.ID)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return nil
}

// DeleteNote permanently removes a note. Returns false if no row matched.
func (db *DB) DeleteNote(id, ownerID string) (bool, error) {
	result, err := db.Exec(`DELETE FROM notes WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// ListLive returns an owner's active and revived notes, most recently
// revised first.
func (db *DB) ListLive(ownerID string) ([]Note, error) {
	rows, err := db.Query(`
		SELECT `+noteColumns+` FROM notes
		WHERE owner_id = ? AND status IN ('active', 'revived')
		ORDER BY last_revised DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list live notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// ListArchived returns an owner's archived notes, most recently archived first.
func (db *DB) ListArchived(ownerID string) ([]Note, error) {
	rows, err := db.Query(`
		SELECT `+noteColumns+` FROM notes
		WHERE owner_id = ? AND status = 'archived'
		ORDER BY archived_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list archived notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// ListLiveAll returns every active/revived note across all owners.
// Used by the archive sweeper.
func (db *DB) ListLiveAll() ([]Note, error) {
	rows, err := db.Query(`
		SELECT ` + noteColumns + ` FROM notes
		WHERE status IN ('active', 'revived')
		ORDER BY last_revised ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list live notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// CountByStatus returns an owner's note counts grouped by status.
func (db *DB) CountByStatus(ownerID string) (map[Status]int, error) {
	rows, err := db.Query(`
		SELECT status, COUNT(*) FROM notes WHERE owner_id = ? GROUP BY status
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var c int
		if err := rows.Scan(&s, &c); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[s] = c
	}
	return counts, rows.Err()
}

// CountAllByStatus returns note counts grouped by status across all owners.
func (db *DB) CountAllByStatus() (map[Status]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM notes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count all by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var c int
		if err := rows.Scan(&s, &c); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[s] = c
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*Note, error) {
	var n Note
	var archivedAt, revivedAt sql.NullInt64
	var summary, questions sql.NullString
	var penalty int

	err := row.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.DecayMinutes, &n.OriginalDecayMinutes,
		&n.LastRevised, &n.Status, &archivedAt, &revivedAt, &n.WrongAnswers, &penalty,
		&summary, &questions, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	n.PenaltyApplied = penalty != 0
	n.AISummary = summary.String
	if archivedAt.Valid {
		n.ArchivedAt = &archivedAt.Int64
	}
	if revivedAt.Valid {
		n.RevivedAt = &revivedAt.Int64
	}
	if questions.Valid && questions.String != "" {
		if err := json.Unmarshal([]byte(questions.String), &n.AIQuestions); err != nil {
			return nil, fmt.Errorf("decode ai_questions: %w", err)
		}
	}
	return &n, nil
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func marshalQuestions(questions []string) (any, error) {
	if len(questions) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("encode ai_questions: %w", err)
	}
	return string(data), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
