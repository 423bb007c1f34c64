package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/lazypower/freshnote/internal/store"
)

// UpdateParams carries the optional fields of a note edit. Nil means
// "leave unchanged".
type UpdateParams struct {
	Title        *string
	Content      *string
	DecayMinutes *int
}

// AnswerResult reports the outcome of one revision answer.
type AnswerResult struct {
	Correct bool
	Penalty *PenaltyResult // set on a wrong answer
	Note    *store.Note
}

// ReviveResult reports the outcome of a revival attempt.
type ReviveResult struct {
	Revived bool
	Penalty *PenaltyResult // set on a rejected attempt
	Note    *store.Note
}

// ResetResult reports a penalty reset.
type ResetResult struct {
	RestoredFrom int
	RestoredTo   int
	Note         *store.Note
}

// PenaltyDetail is the derived penalty report for a note.
type PenaltyDetail struct {
	NoteID               string
	Title                string
	WrongAnswers         int
	PenaltyApplied       bool
	PenaltyPct           float64 // percentage of the baseline lost, one decimal
	OriginalDecayMinutes int
	CurrentDecayMinutes  int
	ReductionMinutes     int
	MaxPenaltiesReached  bool
	NextPenaltyPct       float64 // further percentage lost by the next wrong answer
}

// SessionResult reports a completed revision session.
type SessionResult struct {
	Correct      int
	Total        int
	ScorePct     float64
	BonusApplied bool
	Note         *store.Note
}

// Stats are an owner's note counts by status.
type Stats struct {
	Active   int
	Archived int
	Revived  int
	Total    int
}

// Create validates input and persists a new active note with its baseline
// decay timer. A zero TTL selects the configured default.
func (e *Engine) Create(ownerID, title, content string, decayMinutes int) (*store.Note, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrValidation)
	}
	if decayMinutes == 0 {
		decayMinutes = e.defaultTTL
	}
	if err := validateTTL(decayMinutes); err != nil {
		return nil, err
	}

	now := e.now().UnixMilli()
	n := &store.Note{
		OwnerID:              ownerID,
		Title:                title,
		Content:              content,
		DecayMinutes:         decayMinutes,
		OriginalDecayMinutes: decayMinutes,
		LastRevised:          now,
		CreatedAt:            now,
		Status:               store.StatusActive,
	}
	if err := e.db.CreateNote(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Get returns a note and, if it is live and unexpired, touches it —
// viewing a fresh note is itself a revision.
func (e *Engine) Get(ownerID, id string) (*store.Note, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	n, err := e.getNote(ownerID, id)
	if err != nil {
		return nil, err
	}

	if n.Status.Live() && !expired(n, e.now()) {
		e.touch(n)
		if err := e.db.UpdateNote(n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// ListActive archives any expired live notes first (lazy sweep), then
// returns the owner's live notes ordered by last revised. The int is the
// number of notes archived by the lazy sweep.
func (e *Engine) ListActive(ctx context.Context, ownerID string) ([]store.Note, int, error) {
	archived, err := e.SweepOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	notes, err := e.db.ListLive(ownerID)
	if err != nil {
		return nil, 0, err
	}
	return notes, archived, nil
}

// ListArchived returns the owner's archived notes, newest archive first.
func (e *Engine) ListArchived(ownerID string) ([]store.Note, error) {
	return e.db.ListArchived(ownerID)
}

// Update edits a note's title, content, or baseline TTL. Archived notes
// cannot be edited. Changing the TTL is a full baseline change: the
// timer restarts from the new value and penalties reset. Always touches.
func (e *Engine) Update(ownerID, id string, p UpdateParams) (*store.Note, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	n, err := e.getNote(ownerID, id)
	if err != nil {
		return nil, err
	}
	if n.Status == store.StatusArchived {
		return nil, fmt.Errorf("%w: cannot edit an archived note, revive it first", ErrConflict)
	}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		n.Title = title
	}
	if p.Content != nil {
		content := strings.TrimSpace(*p.Content)
		if content == "" {
			return nil, fmt.Errorf("%w: content cannot be empty", ErrValidation)
		}
		n.Content = content
	}
	if p.DecayMinutes != nil {
		if err := validateTTL(*p.DecayMinutes); err != nil {
			return nil, err
		}
		if *p.DecayMinutes != n.OriginalDecayMinutes {
			n.OriginalDecayMinutes = *p.DecayMinutes
			n.DecayMinutes = *p.DecayMinutes
			ResetPenalties(n)
		}
	}

	e.touch(n)
	if err := e.db.UpdateNote(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Delete permanently removes a note. Valid from any state; no tombstone.
func (e *Engine) Delete(ownerID, id string) error {
	unlock := e.locks.lock(id)
	defer unlock()

	deleted, err := e.db.DeleteNote(id, ownerID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// GenerateRevision produces fresh AI study material for a live note and
// touches it — engaging with a note extends its timer.
func (e *Engine) GenerateRevision(ctx context.Context, ownerID, id string) (*store.Note, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	n, err := e.getNote(ownerID, id)
	if err != nil {
		return nil, err
	}
	if n.Status == store.StatusArchived {
		return nil, fmt.Errorf("%w: cannot revise an archived note, try reviving it", ErrConflict)
	}

	e.summarize(ctx, n)
	e.touch(n)
	if err := e.db.UpdateNote(n); err != nil {
		return nil, err
	}
	return n, nil
}

// AnswerQuestion judges one answer against a revision question. A correct
// answer refreshes the timer; a wrong one applies a penalty and still
// refreshes it, just with the reduced duration. Both branches commit —
// there is no way to leave the note untouched after an attempt.
func (e *Engine) AnswerQuestion(ctx context.Context, ownerID, id string, index int, answer string) (*AnswerResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer is required", ErrValidation)
	}

	unlock := e.locks.lock(id)
	defer unlock()

	n, err := e.getNote(ownerID, id)
	if err != nil {
		return nil, err
	}
	if n.Status == store.StatusArchived {
		return nil, fmt.Errorf("%w: cannot answer questions for an archived note", ErrConflict)
	}
	if !n.HasQuestions() || index < 0 || index >= len(n.AIQuestions) {
		return nil, fmt.Errorf("%w: no questions available or invalid question index", ErrConflict)
	}

	result := &AnswerResult{Note: n}
	result.Correct = e.judgeAnswer(ctx, n.AIQuestions[index], answer, n.Content)
	if !result.Correct {
		p := ApplyWrongAnswer(n)
		result.Penalty = &p
	}
	e.touch(n)

	if err := e.db.UpdateNote(n); err != nil {
		return nil, err
	}
	return result, nil
}

// Revive attempts to restore an archived note by proving recall. A valid
// answer transitions the note to revived with penalties cleared and the
// timer restarted; an invalid one keeps it archived, applies a penalty,
// and does not move the timer anchor (archived notes have no running timer).
func (e *Engine) Revive(ctx context.Context, ownerID, id string, index int, answer string) (*ReviveResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer is required", ErrValidation)
	}

	unlock := e.locks.lock(id)
	defer unlock()

	n, err := e.getNote(ownerID, id)
	if err != nil {
		return nil, err
	}
	if n.Status != store.StatusArchived {
		return nil, fmt.Errorf("%w: note is not archived", ErrConflict)
	}

	// Notes archived before their questions were generated get them now.
	e.ensureRevision(ctx, n)

	if index < 0 || index >= len(n.AIQuestions) {
		return nil, fmt.Errorf("%w: invalid question index", ErrConflict)
	}

	result := &ReviveResult{Note: n}
	if e.judgeAnswer(ctx, n.AIQuestions[index], answer, n.Content) {
		ResetPenalties(n)
		now := e.now().UnixMilli()
		n.Status = store.StatusRevived
		n.RevivedAt = &now
		e.touch(n)
		result.Revived = true
	} else {
		p := ApplyWrongAnswer(n)
		result.Penalty = &p
	}

	if err := e.db.UpdateNote(n); err != nil {
		return nil, err
	}
	return result, nil
}

// ResetPenalties clears a note's penalty state and restores the baseline
// timer, reporting the before/after decay values.
func (e *Engine) ResetPenalties(ownerID, id string) (*ResetResult, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	n, err := e.getNote(ownerID, id)
	if err != nil {
		return nil, err
	}

	result := &ResetResult{RestoredFrom: n.DecayMinutes, Note: n}
	ResetPenalties(n)
	result.RestoredTo = n.DecayMinutes

	if err := e.db.UpdateNote(n); err != nil {
		return nil, err
	}
	return result, nil
}

// PenaltyDetail reports the note's penalty state without mutating it.
func (e *Engine) PenaltyDetail(ownerID, id string) (*PenaltyDetail, error) {
	n, err := e.getNote(ownerID, id)
	if err != nil {
		return nil, err
	}

	pct := 0.0
	if n.PenaltyApplied && n.OriginalDecayMinutes > 0 {
		raw := float64(n.OriginalDecayMinutes-n.DecayMinutes) / float64(n.OriginalDecayMinutes) * 100
		pct = math.Round(raw*10) / 10
	}
	next := 0.0
	if pct < MaxPenalty*100 {
		next = math.Min(PenaltyStep*100, MaxPenalty*100-pct)
	}

	return &PenaltyDetail{
		NoteID:               n.ID,
		Title:                n.Title,
		WrongAnswers:         n.WrongAnswers,
		PenaltyApplied:       n.PenaltyApplied,
		PenaltyPct:           pct,
		OriginalDecayMinutes: n.OriginalDecayMinutes,
		CurrentDecayMinutes:  n.DecayMinutes,
		ReductionMinutes:     n.OriginalDecayMinutes - n.DecayMinutes,
		MaxPenaltiesReached:  n.WrongAnswers >= 5,
		NextPenaltyPct:       next,
	}, nil
}

// CompleteSession closes a revision session with its batch score. The note
// is touched; a perfect score on a penalized note earns back one wrong
// answer (full reset if the count reaches zero).
func (e *Engine) CompleteSession(ownerID, id string, correct, total int) (*SessionResult, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: no questions answered", ErrValidation)
	}
	if correct < 0 || correct > total {
		return nil, fmt.Errorf("%w: correct answers out of range", ErrValidation)
	}

	unlock := e.locks.lock(id)
	defer unlock()

	n, err := e.getNote(ownerID, id)
	if err != nil {
		return nil, err
	}
	if n.Status == store.StatusArchived {
		return nil, fmt.Errorf("%w: cannot complete a session for an archived note", ErrConflict)
	}

	e.touch(n)

	result := &SessionResult{
		Correct:  correct,
		Total:    total,
		ScorePct: float64(correct) / float64(total) * 100,
		Note:     n,
	}
	if correct == total {
		result.BonusApplied = ApplyPerfectScoreBonus(n)
	}

	if err := e.db.UpdateNote(n); err != nil {
		return nil, err
	}
	return result, nil
}

// Stats returns the owner's note counts by status.
func (e *Engine) Stats(ownerID string) (*Stats, error) {
	counts, err := e.db.CountByStatus(ownerID)
	if err != nil {
		return nil, err
	}
	s := &Stats{
		Active:   counts[store.StatusActive],
		Archived: counts[store.StatusArchived],
		Revived:  counts[store.StatusRevived],
	}
	s.Total = s.Active + s.Archived + s.Revived
	return s, nil
}

// SweepOwner archives the owner's expired live notes. Each note is handled
// independently; a failure on one is logged and never blocks the rest.
func (e *Engine) SweepOwner(ctx context.Context, ownerID string) (int, error) {
	notes, err := e.db.ListLive(ownerID)
	if err != nil {
		return 0, err
	}

	archived := 0
	now := e.now()
	for i := range notes {
		if !expired(&notes[i], now) {
			continue
		}
		ok, err := e.archiveExpired(ctx, notes[i].ID, notes[i].OwnerID)
		if err != nil {
			log.Printf("archive note %s: %v", notes[i].ID, err)
			continue
		}
		if ok {
			archived++
		}
	}
	return archived, nil
}

// archiveExpired re-fetches a note under its lock, re-checks expiry (a
// concurrent touch may have refreshed the timer), ensures study material
// exists best-effort, and archives. Returns true if the note was archived
// by this call.
func (e *Engine) archiveExpired(ctx context.Context, id, ownerID string) (bool, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	n, err := e.db.GetNote(id, ownerID)
	if err != nil {
		return false, err
	}
	if n == nil || !n.Status.Live() {
		return false, nil
	}
	if !expired(n, e.now()) {
		return false, nil
	}

	e.ensureRevision(ctx, n)
	e.archive(n)
	if err := e.db.UpdateNote(n); err != nil {
		return false, err
	}
	return true, nil
}

func validateTTL(minutes int) error {
	if minutes < MinDecayMinutes || minutes > MaxDecayMinutes {
		return fmt.Errorf("%w: decay time must be between %d minute and %d minutes",
			ErrValidation, MinDecayMinutes, MaxDecayMinutes)
	}
	return nil
}

// Derived clock views for presentation layers.

// NoteExpiresAt returns the note's expiry instant.
func NoteExpiresAt(n *store.Note) time.Time {
	return ExpiresAt(time.UnixMilli(n.LastRevised), n.DecayMinutes)
}

// NoteTimeRemaining returns the time left on the note's timer at now,
// zero for archived or expired notes.
func NoteTimeRemaining(n *store.Note, now time.Time) time.Duration {
	if !n.Status.Live() {
		return 0
	}
	return TimeRemaining(time.UnixMilli(n.LastRevised), n.DecayMinutes, now)
}
