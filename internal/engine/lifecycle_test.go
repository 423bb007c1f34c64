package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lazypower/freshnote/internal/revision"
	"github.com/lazypower/freshnote/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// scriptedValidator is a deterministic Validator for lifecycle tests.
type scriptedValidator struct {
	valid        bool
	validateErr  error
	summarizeErr error
}

func (s *scriptedValidator) Summarize(ctx context.Context, title, content string) (*revision.Revision, error) {
	if s.summarizeErr != nil {
		return nil, s.summarizeErr
	}
	return revision.FallbackRevision(title), nil
}

func (s *scriptedValidator) Validate(ctx context.Context, question, answer, content string) (bool, error) {
	return s.valid, s.validateErr
}

func testEngine(t *testing.T, v revision.Validator) (*Engine, *fakeClock) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	e := New(db, v)
	e.SetClock(clock.Now)
	return e, clock
}

func TestCreate(t *testing.T) {
	e, clock := testEngine(t, &scriptedValidator{})

	n, err := e.Create("u1", "Go scheduler", "GMP model notes", 60)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.ID == "" {
		t.Error("expected store-assigned id")
	}
	if n.Status != store.StatusActive {
		t.Errorf("status = %s, want active", n.Status)
	}
	if n.DecayMinutes != 60 || n.OriginalDecayMinutes != 60 {
		t.Errorf("decay = %d/%d, want 60/60", n.DecayMinutes, n.OriginalDecayMinutes)
	}
	if n.LastRevised != clock.Now().UnixMilli() {
		t.Error("last_revised should anchor at creation")
	}
	if expired(n, clock.Now()) {
		t.Error("fresh note must not be expired")
	}
}

func TestCreateDefaultTTL(t *testing.T) {
	e, _ := testEngine(t, &scriptedValidator{})

	n, err := e.Create("u1", "t", "c", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.OriginalDecayMinutes != DefaultDecayMinutes {
		t.Errorf("default ttl = %d, want %d", n.OriginalDecayMinutes, DefaultDecayMinutes)
	}
}

func TestCreateValidation(t *testing.T) {
	e, _ := testEngine(t, &scriptedValidator{})

	cases := []struct {
		name    string
		title   string
		content string
		ttl     int
	}{
		{"empty title", "", "content", 60},
		{"blank title", "   ", "content", 60},
		{"empty content", "title", "", 60},
		{"ttl too small", "title", "content", -1},
		{"ttl too large", "title", "content", 10081},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Create("u1", tc.title, tc.content, tc.ttl)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestExpiryRoundTrip(t *testing.T) {
	e, clock := testEngine(t, &scriptedValidator{})

	n, _ := e.Create("u1", "t", "c", 60)
	if expired(n, clock.Now()) {
		t.Fatal("freshly created note should not be expired")
	}

	clock.Advance(61 * time.Minute)
	got, err := e.Get("u1", n.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !expired(got, clock.Now()) {
		t.Error("note should be expired after 61 minutes without a touch")
	}
	if got.LastRevised != n.LastRevised {
		t.Error("Get must not touch an expired note")
	}
}

func TestGetTouchesFreshNote(t *testing.T) {
	e, clock := testEngine(t, &scriptedValidator{})

	n, _ := e.Create("u1", "t", "c", 60)
	clock.Advance(30 * time.Minute)

	got, err := e.Get("u1", n.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastRevised != clock.Now().UnixMilli() {
		t.Error("viewing an unexpired note should reset its anchor")
	}
}

func TestGetWrongOwner(t *testing.T) {
	e, _ := testEngine(t, &scriptedValidator{})

	n, _ := e.Create("u1", "t", "c", 60)
	if _, err := e.Get("u2", n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign note: err = %v, want ErrNotFound", err)
	}
}

func TestAnswerQuestionPenaltySequence(t *testing.T) {
	v := &scriptedValidator{valid: false}
	e, clock := testEngine(t, v)

	n, _ := e.Create("u1", "t", "c", 100)
	if _, err := e.GenerateRevision(context.Background(), "u1", n.ID); err != nil {
		t.Fatalf("GenerateRevision: %v", err)
	}

	wants := []int{88, 75, 63}
	for i, want := range wants {
		result, err := e.AnswerQuestion(context.Background(), "u1", n.ID, 0, "a plausible but wrong answer")
		if err != nil {
			t.Fatalf("AnswerQuestion %d: %v", i, err)
		}
		if result.Correct {
			t.Fatal("scripted validator should reject")
		}
		if result.Penalty.NewDecayMinutes != want {
			t.Errorf("decay after %d wrong = %d, want %d", i+1, result.Penalty.NewDecayMinutes, want)
		}
		if !result.Note.PenaltyApplied {
			t.Error("penalty_applied should be true")
		}
	}

	// A wrong answer still refreshes the timer, just with less runway.
	got, _ := e.Get("u1", n.ID)
	if got.LastRevised != clock.Now().UnixMilli() {
		t.Error("wrong answer should still touch the note")
	}

	// A correct answer leaves the reduced decay in place but resets the anchor.
	v.valid = true
	clock.Advance(5 * time.Minute)
	result, err := e.AnswerQuestion(context.Background(), "u1", n.ID, 0, "correct this time")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if !result.Correct {
		t.Fatal("expected correct")
	}
	if result.Note.DecayMinutes != 63 {
		t.Errorf("decay = %d, want 63 (correct answers do not restore it)", result.Note.DecayMinutes)
	}
	if result.Note.LastRevised != clock.Now().UnixMilli() {
		t.Error("correct answer should touch the note")
	}
}

func TestAnswerQuestionRejections(t *testing.T) {
	e, _ := testEngine(t, &scriptedValidator{valid: true})
	ctx := context.Background()

	n, _ := e.Create("u1", "t", "c", 60)

	if _, err := e.AnswerQuestion(ctx, "u1", n.ID, 0, "answer"); !errors.Is(err, ErrConflict) {
		t.Errorf("no questions: err = %v, want ErrConflict", err)
	}

	e.GenerateRevision(ctx, "u1", n.ID)
	if _, err := e.AnswerQuestion(ctx, "u1", n.ID, 3, "answer"); !errors.Is(err, ErrConflict) {
		t.Errorf("index out of range: err = %v, want ErrConflict", err)
	}
	if _, err := e.AnswerQuestion(ctx, "u1", n.ID, -1, "answer"); !errors.Is(err, ErrConflict) {
		t.Errorf("negative index: err = %v, want ErrConflict", err)
	}
	if _, err := e.AnswerQuestion(ctx, "u1", n.ID, 0, "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank answer: err = %v, want ErrValidation", err)
	}
}

func TestValidatorFallback(t *testing.T) {
	// When the judge is down, trimmed answers over 10 characters pass.
	v := &scriptedValidator{validateErr: errors.New("backend down")}
	e, _ := testEngine(t, v)
	ctx := context.Background()

	n, _ := e.Create("u1", "t", "c", 100)
	e.GenerateRevision(ctx, "u1", n.ID)

	result, err := e.AnswerQuestion(ctx, "u1", n.ID, 0, "abcdefghijk") // 11 chars
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if !result.Correct {
		t.Error("11-character answer should pass the fallback")
	}

	result, err = e.AnswerQuestion(ctx, "u1", n.ID, 0, "abcdefghij") // 10 chars
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if result.Correct {
		t.Error("10-character answer should fail the fallback")
	}
}

func TestUpdate(t *testing.T) {
	e, _ := testEngine(t, &scriptedValidator{valid: false})
	ctx := context.Background()

	n, _ := e.Create("u1", "t", "c", 1440)
	e.GenerateRevision(ctx, "u1", n.ID)
	e.AnswerQuestion(ctx, "u1", n.ID, 0, "wrong answer text")

	// TTL change is a baseline change: penalties reset.
	ttl := 720
	got, err := e.Update("u1", n.ID, UpdateParams{DecayMinutes: &ttl})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.OriginalDecayMinutes != 720 || got.DecayMinutes != 720 {
		t.Errorf("decay = %d/%d, want 720/720", got.DecayMinutes, got.OriginalDecayMinutes)
	}
	if got.WrongAnswers != 0 || got.PenaltyApplied {
		t.Error("TTL change should reset penalties")
	}

	// Same TTL is not a baseline change.
	e.AnswerQuestion(ctx, "u1", n.ID, 0, "another wrong one")
	same := 720
	got, err = e.Update("u1", n.ID, UpdateParams{DecayMinutes: &same})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.WrongAnswers != 1 {
		t.Error("unchanged TTL must not reset penalties")
	}

	title := "new title"
	got, err = e.Update("u1", n.ID, UpdateParams{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "new title" {
		t.Errorf("title = %q", got.Title)
	}

	empty := "  "
	if _, err := e.Update("u1", n.ID, UpdateParams{Content: &empty}); !errors.Is(err, ErrValidation) {
		t.Errorf("blank content: err = %v, want ErrValidation", err)
	}
}

func TestDelete(t *testing.T) {
	e, _ := testEngine(t, &scriptedValidator{})

	n, _ := e.Create("u1", "t", "c", 60)
	if err := e.Delete("u1", n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.Get("u1", n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v, want ErrNotFound", err)
	}
	if err := e.Delete("u1", n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestListActiveLazyArchive(t *testing.T) {
	e, clock := testEngine(t, &scriptedValidator{})
	ctx := context.Background()

	short, _ := e.Create("u1", "short lived", "c", 60)
	long, _ := e.Create("u1", "long lived", "c", 10080)

	clock.Advance(61 * time.Minute)

	notes, archived, err := e.ListActive(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}
	if len(notes) != 1 || notes[0].ID != long.ID {
		t.Fatalf("expected only the long-lived note, got %d", len(notes))
	}

	// Archived note got study material for later revival, and archived_at.
	got, _ := e.Get("u1", short.ID)
	if got.Status != store.StatusArchived {
		t.Errorf("status = %s, want archived", got.Status)
	}
	if !got.HasQuestions() || got.AISummary == "" {
		t.Error("archived note should carry fallback study material")
	}
	if got.ArchivedAt == nil {
		t.Error("archived_at should be set")
	}

	// The surviving note's timer state is untouched by the sweep.
	if survivor, _ := e.Get("u1", long.ID); survivor.DecayMinutes != 10080 {
		t.Errorf("survivor decay = %d, want 10080", survivor.DecayMinutes)
	}
}

func TestReviveFlow(t *testing.T) {
	v := &scriptedValidator{valid: false}
	e, clock := testEngine(t, v)
	ctx := context.Background()

	n, _ := e.Create("u1", "t", "c", 1440)
	e.GenerateRevision(ctx, "u1", n.ID)

	// Two wrong answers: 1440 → 1080.
	e.AnswerQuestion(ctx, "u1", n.ID, 0, "wrong answer one")
	e.AnswerQuestion(ctx, "u1", n.ID, 0, "wrong answer two")

	// Let it decay past the reduced timer and sweep it into the archive.
	clock.Advance(1081 * time.Minute)
	if archived, _ := e.SweepOwner(ctx, "u1"); archived != 1 {
		t.Fatal("expected the note to be archived")
	}

	// Operations on archived notes are conflicts.
	if _, err := e.AnswerQuestion(ctx, "u1", n.ID, 0, "some answer here"); !errors.Is(err, ErrConflict) {
		t.Errorf("answer while archived: err = %v, want ErrConflict", err)
	}
	title := "x"
	if _, err := e.Update("u1", n.ID, UpdateParams{Title: &title}); !errors.Is(err, ErrConflict) {
		t.Errorf("edit while archived: err = %v, want ErrConflict", err)
	}

	// Wrong revival answer: penalty accrues, still archived, anchor frozen.
	before, _ := e.Get("u1", n.ID)
	result, err := e.Revive(ctx, "u1", n.ID, 0, "not good enough")
	if err != nil {
		t.Fatalf("Revive: %v", err)
	}
	if result.Revived {
		t.Fatal("wrong answer must not revive")
	}
	if result.Penalty == nil || result.Penalty.WrongAnswers != 3 {
		t.Errorf("penalty = %+v, want 3 wrong answers", result.Penalty)
	}
	if result.Note.Status != store.StatusArchived {
		t.Error("note should stay archived")
	}
	if result.Note.LastRevised != before.LastRevised {
		t.Error("rejected revival must not move the timer anchor")
	}

	// Correct revival answer: revived, penalties cleared, timer restarted.
	v.valid = true
	result, err = e.Revive(ctx, "u1", n.ID, 0, "a real demonstration of recall")
	if err != nil {
		t.Fatalf("Revive: %v", err)
	}
	if !result.Revived {
		t.Fatal("expected revival")
	}
	n = result.Note
	if n.Status != store.StatusRevived {
		t.Errorf("status = %s, want revived", n.Status)
	}
	if n.WrongAnswers != 0 || n.PenaltyApplied || n.DecayMinutes != 1440 {
		t.Errorf("penalties not cleared: wrong=%d decay=%d", n.WrongAnswers, n.DecayMinutes)
	}
	if n.RevivedAt == nil {
		t.Error("revived_at should be set")
	}
	if n.LastRevised != clock.Now().UnixMilli() {
		t.Error("revival should touch the note")
	}
}

func TestReviveNotArchived(t *testing.T) {
	e, _ := testEngine(t, &scriptedValidator{valid: true})

	n, _ := e.Create("u1", "t", "c", 60)
	if _, err := e.Revive(context.Background(), "u1", n.ID, 0, "some answer text"); !errors.Is(err, ErrConflict) {
		t.Errorf("revive active note: err = %v, want ErrConflict", err)
	}
}

func TestArchiveFallsBackOnSummarizeFailure(t *testing.T) {
	// A note that expires while the backend is down still gets deterministic
	// study material, so it can be revived later.
	e, clock := testEngine(t, &scriptedValidator{valid: true, summarizeErr: errors.New("backend down")})
	ctx := context.Background()

	n, _ := e.Create("u1", "orphan", "c", 60)
	clock.Advance(61 * time.Minute)
	e.SweepOwner(ctx, "u1")

	got, _ := e.Get("u1", n.ID)
	if !got.HasQuestions() || got.AISummary == "" {
		t.Fatal("archived note should carry fallback study material")
	}

	result, err := e.Revive(ctx, "u1", n.ID, 0, "a sufficiently long answer")
	if err != nil {
		t.Fatalf("Revive: %v", err)
	}
	if !result.Revived {
		t.Fatal("expected revival")
	}
}

func TestCompleteSession(t *testing.T) {
	v := &scriptedValidator{valid: false}
	e, _ := testEngine(t, v)
	ctx := context.Background()

	n, _ := e.Create("u1", "t", "c", 1440)
	e.GenerateRevision(ctx, "u1", n.ID)
	e.AnswerQuestion(ctx, "u1", n.ID, 0, "wrong answer one")
	e.AnswerQuestion(ctx, "u1", n.ID, 0, "wrong answer two")

	// Perfect score forgives exactly one wrong answer.
	result, err := e.CompleteSession("u1", n.ID, 3, 3)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if !result.BonusApplied {
		t.Fatal("expected bonus on perfect score")
	}
	if result.Note.WrongAnswers != 1 || result.Note.DecayMinutes != 1260 {
		t.Errorf("after bonus: wrong=%d decay=%d, want 1/1260", result.Note.WrongAnswers, result.Note.DecayMinutes)
	}

	// Imperfect score: no bonus.
	result, _ = e.CompleteSession("u1", n.ID, 2, 3)
	if result.BonusApplied {
		t.Error("no bonus below 100%")
	}

	// Second perfect score clears the last penalty entirely.
	result, _ = e.CompleteSession("u1", n.ID, 3, 3)
	if !result.BonusApplied {
		t.Fatal("expected bonus")
	}
	if result.Note.WrongAnswers != 0 || result.Note.DecayMinutes != 1440 || result.Note.PenaltyApplied {
		t.Errorf("expected full reset, got %+v", result.Note)
	}

	if _, err := e.CompleteSession("u1", n.ID, 0, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("zero questions: err = %v, want ErrValidation", err)
	}
	if _, err := e.CompleteSession("u1", n.ID, 4, 3); !errors.Is(err, ErrValidation) {
		t.Errorf("score out of range: err = %v, want ErrValidation", err)
	}
}

func TestResetPenaltiesOperation(t *testing.T) {
	v := &scriptedValidator{valid: false}
	e, _ := testEngine(t, v)
	ctx := context.Background()

	n, _ := e.Create("u1", "t", "c", 100)
	e.GenerateRevision(ctx, "u1", n.ID)
	e.AnswerQuestion(ctx, "u1", n.ID, 0, "wrong answer text")

	result, err := e.ResetPenalties("u1", n.ID)
	if err != nil {
		t.Fatalf("ResetPenalties: %v", err)
	}
	if result.RestoredFrom != 88 || result.RestoredTo != 100 {
		t.Errorf("restored %d → %d, want 88 → 100", result.RestoredFrom, result.RestoredTo)
	}

	// Idempotent at the operation level too.
	result, _ = e.ResetPenalties("u1", n.ID)
	if result.RestoredFrom != 100 || result.RestoredTo != 100 {
		t.Errorf("second reset: %d → %d, want 100 → 100", result.RestoredFrom, result.RestoredTo)
	}
}

func TestPenaltyDetail(t *testing.T) {
	v := &scriptedValidator{valid: false}
	e, _ := testEngine(t, v)
	ctx := context.Background()

	n, _ := e.Create("u1", "t", "c", 1440)
	e.GenerateRevision(ctx, "u1", n.ID)
	e.AnswerQuestion(ctx, "u1", n.ID, 0, "wrong answer one")
	e.AnswerQuestion(ctx, "u1", n.ID, 0, "wrong answer two")

	detail, err := e.PenaltyDetail("u1", n.ID)
	if err != nil {
		t.Fatalf("PenaltyDetail: %v", err)
	}
	if detail.WrongAnswers != 2 || !detail.PenaltyApplied {
		t.Errorf("wrong=%d applied=%v", detail.WrongAnswers, detail.PenaltyApplied)
	}
	if detail.PenaltyPct != 25.0 {
		t.Errorf("penalty pct = %v, want 25.0", detail.PenaltyPct)
	}
	if detail.CurrentDecayMinutes != 1080 || detail.ReductionMinutes != 360 {
		t.Errorf("decay=%d reduction=%d", detail.CurrentDecayMinutes, detail.ReductionMinutes)
	}
	if detail.MaxPenaltiesReached {
		t.Error("max not reached at 2 wrong answers")
	}
	if detail.NextPenaltyPct != 12.5 {
		t.Errorf("next penalty = %v, want 12.5", detail.NextPenaltyPct)
	}
}

func TestStats(t *testing.T) {
	e, clock := testEngine(t, &scriptedValidator{valid: true})
	ctx := context.Background()

	e.Create("u1", "a", "c", 10080)
	e.Create("u1", "b", "c", 10080)
	doomed, _ := e.Create("u1", "c", "c", 60)
	e.Create("u2", "other owner", "c", 60)

	clock.Advance(61 * time.Minute)
	e.SweepOwner(ctx, "u1")

	stats, err := e.Stats("u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Active != 2 || stats.Archived != 1 || stats.Revived != 0 || stats.Total != 3 {
		t.Errorf("stats = %+v", stats)
	}

	// Revival moves the count.
	if _, err := e.Revive(ctx, "u1", doomed.ID, 0, "a long enough answer"); err != nil {
		t.Fatalf("Revive: %v", err)
	}
	stats, _ = e.Stats("u1")
	if stats.Archived != 0 || stats.Revived != 1 || stats.Total != 3 {
		t.Errorf("stats after revival = %+v", stats)
	}
}
