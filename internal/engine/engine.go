package engine

import (
	"context"
	"log"
	"time"

	"github.com/lazypower/freshnote/internal/revision"
	"github.com/lazypower/freshnote/internal/store"
)

// Engine owns the note lifecycle: decay timers, penalties, archival, and
// revival. All note mutations go through here, serialized per note id.
type Engine struct {
	db        *store.DB
	validator revision.Validator

	defaultTTL       int
	validatorTimeout time.Duration
	sweepInterval    time.Duration

	// now is injectable for tests; captured once per operation.
	now func() time.Time

	locks  noteLocks
	stopCh chan struct{}
}

// New creates an Engine with default timing knobs.
func New(db *store.DB, validator revision.Validator) *Engine {
	return &Engine{
		db:               db,
		validator:        validator,
		defaultTTL:       DefaultDecayMinutes,
		validatorTimeout: 30 * time.Second,
		sweepInterval:    5 * time.Minute,
		now:              time.Now,
		stopCh:           make(chan struct{}),
	}
}

// SetDefaultTTL overrides the TTL for notes created without one.
func (e *Engine) SetDefaultTTL(minutes int) {
	e.defaultTTL = minutes
}

// SetValidatorTimeout bounds each external validator call.
func (e *Engine) SetValidatorTimeout(d time.Duration) {
	e.validatorTimeout = d
}

// SetSweepInterval configures the period between background sweeps.
func (e *Engine) SetSweepInterval(d time.Duration) {
	e.sweepInterval = d
}

// SetClock replaces the wall clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// getNote loads an owner-scoped note or reports ErrNotFound.
func (e *Engine) getNote(ownerID, id string) (*store.Note, error) {
	n, err := e.db.GetNote(id, ownerID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotFound
	}
	return n, nil
}

// touch resets the note's decay anchor to the current instant.
func (e *Engine) touch(n *store.Note) {
	n.LastRevised = e.now().UnixMilli()
}

// expired evaluates the decay clock for a note against a captured now.
func expired(n *store.Note, now time.Time) bool {
	return IsExpired(time.UnixMilli(n.LastRevised), n.DecayMinutes, now)
}

// archive moves a live note to archived. Archiving an already-archived
// note is a no-op, never an error.
func (e *Engine) archive(n *store.Note) {
	if n.Status == store.StatusArchived {
		return
	}
	now := e.now().UnixMilli()
	n.Status = store.StatusArchived
	n.ArchivedAt = &now
}

// judgeAnswer asks the validator whether the answer demonstrates
// understanding. A validator failure is logged and resolved by the
// deterministic fallback — it never reaches the caller.
func (e *Engine) judgeAnswer(ctx context.Context, question, answer, content string) bool {
	ctx, cancel := context.WithTimeout(ctx, e.validatorTimeout)
	defer cancel()

	ok, err := e.validator.Validate(ctx, question, answer, content)
	if err != nil {
		log.Printf("validator unavailable, falling back: %v", err)
		return revision.FallbackAccept(answer)
	}
	return ok
}

// summarize generates study material for the note, falling back to the
// deterministic title-based material on any validator failure.
func (e *Engine) summarize(ctx context.Context, n *store.Note) {
	ctx, cancel := context.WithTimeout(ctx, e.validatorTimeout)
	defer cancel()

	rev, err := e.validator.Summarize(ctx, n.Title, n.Content)
	if err != nil {
		log.Printf("summarize failed for note %s, falling back: %v", n.ID, err)
		rev = revision.FallbackRevision(n.Title)
	}
	n.AISummary = rev.Summary
	n.AIQuestions = rev.Questions
}

// ensureRevision populates summary/questions only if missing.
func (e *Engine) ensureRevision(ctx context.Context, n *store.Note) {
	if n.AISummary != "" && n.HasQuestions() {
		return
	}
	e.summarize(ctx, n)
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}
