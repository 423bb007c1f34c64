package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/freshnote/internal/engine"
	"github.com/lazypower/freshnote/internal/store"
)

// noteJSON is the wire representation of a note, including derived clock
// fields so clients never do their own expiry math.
type noteJSON struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Content              string   `json:"content"`
	Status               string   `json:"status"`
	DecayMinutes         int      `json:"decay_minutes"`
	OriginalDecayMinutes int      `json:"original_decay_minutes"`
	LastRevised          string   `json:"last_revised"`
	ExpiresAt            string   `json:"expires_at"`
	TimeRemainingMinutes int      `json:"time_remaining_minutes"`
	IsExpired            bool     `json:"is_expired"`
	WrongAnswersCount    int      `json:"wrong_answers_count"`
	PenaltyApplied       bool     `json:"penalty_applied"`
	AISummary            string   `json:"ai_summary,omitempty"`
	AIQuestions          []string `json:"ai_questions,omitempty"`
	CreatedAt            string   `json:"created_at"`
	ArchivedAt           string   `json:"archived_at,omitempty"`
	RevivedAt            string   `json:"revived_at,omitempty"`
}

func noteToJSON(n *store.Note) noteJSON {
	now := time.Now()
	out := noteJSON{
		ID:                   n.ID,
		Title:                n.Title,
		Content:              n.Content,
		Status:               string(n.Status),
		DecayMinutes:         n.DecayMinutes,
		OriginalDecayMinutes: n.OriginalDecayMinutes,
		LastRevised:          time.UnixMilli(n.LastRevised).UTC().Format(time.RFC3339),
		ExpiresAt:            engine.NoteExpiresAt(n).UTC().Format(time.RFC3339),
		TimeRemainingMinutes: int(engine.NoteTimeRemaining(n, now).Minutes()),
		WrongAnswersCount:    n.WrongAnswers,
		PenaltyApplied:       n.PenaltyApplied,
		AISummary:            n.AISummary,
		AIQuestions:          n.AIQuestions,
		CreatedAt:            time.UnixMilli(n.CreatedAt).UTC().Format(time.RFC3339),
	}
	if n.Status.Live() {
		out.IsExpired = engine.IsExpired(time.UnixMilli(n.LastRevised), n.DecayMinutes, now)
	}
	if n.ArchivedAt != nil {
		out.ArchivedAt = time.UnixMilli(*n.ArchivedAt).UTC().Format(time.RFC3339)
	}
	if n.RevivedAt != nil {
		out.RevivedAt = time.UnixMilli(*n.RevivedAt).UTC().Format(time.RFC3339)
	}
	return out
}

func notesToJSON(notes []store.Note) []noteJSON {
	out := make([]noteJSON, len(notes))
	for i := range notes {
		out[i] = noteToJSON(&notes[i])
	}
	return out
}

func penaltyToJSON(p *engine.PenaltyResult) map[string]any {
	return map[string]any{
		"wrong_answers_count": p.WrongAnswers,
		"penalty_percentage":  p.PenaltyPct * 100,
		"new_decay_minutes":   p.NewDecayMinutes,
	}
}

// writeError maps engine taxonomy errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string `json:"title"`
		Content      string `json:"content"`
		DecayMinutes int    `json:"decay_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	note, err := s.engine.Create(ownerFrom(r), req.Title, req.Content, req.DecayMinutes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Note created successfully",
		"note":    noteToJSON(note),
	})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, archived, err := s.engine.ListActive(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notes":          notesToJSON(notes),
		"archived_count": archived,
	})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.engine.Get(ownerFrom(r), chi.URLParam(r, "noteID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"note": noteToJSON(note)})
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        *string `json:"title"`
		Content      *string `json:"content"`
		DecayMinutes *int    `json:"decay_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	note, err := s.engine.Update(ownerFrom(r), chi.URLParam(r, "noteID"), engine.UpdateParams{
		Title:        req.Title,
		Content:      req.Content,
		DecayMinutes: req.DecayMinutes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Note updated successfully",
		"note":    noteToJSON(note),
	})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(ownerFrom(r), chi.URLParam(r, "noteID")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted permanently"})
}

func (s *Server) handleGenerateRevision(w http.ResponseWriter, r *http.Request) {
	note, err := s.engine.GenerateRevision(r.Context(), ownerFrom(r), chi.URLParam(r, "noteID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   note.AISummary,
		"questions": note.AIQuestions,
		"note":      noteToJSON(note),
		"message":   "Ready for revision! Answer the questions to test your memory.",
	})
}

func (s *Server) handleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionIndex int    `json:"question_index"`
		Answer        string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := s.engine.AnswerQuestion(r.Context(), ownerFrom(r), chi.URLParam(r, "noteID"), req.QuestionIndex, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Correct {
		writeJSON(w, http.StatusOK, map[string]any{
			"correct": true,
			"message": "Correct! Your memory is strong. Timer refreshed.",
			"note":    noteToJSON(result.Note),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"correct":      false,
		"message":      fmt.Sprintf("Incorrect answer. Decay time reduced to %d minutes.", result.Penalty.NewDecayMinutes),
		"penalty_info": penaltyToJSON(result.Penalty),
		"note":         noteToJSON(result.Note),
		"feedback":     "Study this note more carefully before the next revision!",
	})
}

func (s *Server) handleListArchived(w http.ResponseWriter, r *http.Request) {
	notes, err := s.engine.ListArchived(ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"archived_notes": notesToJSON(notes)})
}

func (s *Server) handleRevive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionIndex int    `json:"question_index"`
		Answer        string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := s.engine.Revive(r.Context(), ownerFrom(r), chi.URLParam(r, "noteID"), req.QuestionIndex, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Revived {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":        "Note revived successfully! Memory restored and penalties cleared.",
			"note":           noteToJSON(result.Note),
			"correct_answer": true,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":        fmt.Sprintf("Answer needs more detail. Decay time reduced to %d minutes due to wrong answer.", result.Penalty.NewDecayMinutes),
		"penalty_info":   penaltyToJSON(result.Penalty),
		"note":           noteToJSON(result.Note),
		"correct_answer": false,
		"hint":           "Try to provide more specific details about the content to revive this memory.",
	})
}

func (s *Server) handleResetPenalties(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ResetPenalties(ownerFrom(r), chi.URLParam(r, "noteID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":             "Penalties reset successfully",
		"note":                noteToJSON(result.Note),
		"decay_restored_from": result.RestoredFrom,
		"decay_restored_to":   result.RestoredTo,
	})
}

func (s *Server) handlePenaltyDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.engine.PenaltyDetail(ownerFrom(r), chi.URLParam(r, "noteID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"note_id":                detail.NoteID,
		"title":                  detail.Title,
		"wrong_answers_count":    detail.WrongAnswers,
		"penalty_applied":        detail.PenaltyApplied,
		"penalty_percentage":     detail.PenaltyPct,
		"original_decay_minutes": detail.OriginalDecayMinutes,
		"current_decay_minutes":  detail.CurrentDecayMinutes,
		"time_reduction_minutes": detail.ReductionMinutes,
		"max_penalties_reached":  detail.MaxPenaltiesReached,
		"next_penalty_reduction": detail.NextPenaltyPct,
	})
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CorrectAnswers int `json:"correct_answers"`
		TotalQuestions int `json:"total_questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := s.engine.CompleteSession(ownerFrom(r), chi.URLParam(r, "noteID"), req.CorrectAnswers, req.TotalQuestions)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_complete": true,
		"score": map[string]any{
			"correct":    result.Correct,
			"total":      result.Total,
			"percentage": result.ScorePct,
		},
		"note":          noteToJSON(result.Note),
		"message":       fmt.Sprintf("Revision complete! Score: %d/%d (%.1f%%)", result.Correct, result.Total, result.ScorePct),
		"bonus_applied": result.BonusApplied,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats": map[string]int{
			"active_notes":   stats.Active,
			"archived_notes": stats.Archived,
			"revived_notes":  stats.Revived,
			"total_notes":    stats.Total,
		},
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	archived, err := s.engine.SweepOwner(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":        fmt.Sprintf("Archived %d expired notes", archived),
		"archived_count": archived,
	})
}
