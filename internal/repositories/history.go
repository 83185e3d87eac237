package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/models"
)

// HistoryRecorder implements tasks.Recorder on top of the run and outcome repositories.
type HistoryRecorder struct {
	Runs     *RunRepository
	Outcomes *OutcomeRepository
}

// NewHistoryRecorder creates a HistoryRecorder sharing db between both repositories.
func NewHistoryRecorder(db *sql.DB) *HistoryRecorder {
	return &HistoryRecorder{Runs: NewRunRepository(db), Outcomes: NewOutcomeRepository(db)}
}

// Record inserts run and its outcomes. On failure to store the outcomes the run is soft-deleted
// so history never shows a run without its tracks.
func (h *HistoryRecorder) Record(run *models.SyncRun, outcomes []match.Outcome) error {
	if err := h.Runs.Create(run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	if err := h.Outcomes.CreateAll(run.ID(), outcomes); err != nil {
		_ = h.Runs.Delete(run.ID())
		return fmt.Errorf("failed to record outcomes of run #%d: %w", run.Sequence(), err)
	}
	return nil
}

// RunDetail is a stored run with its outcomes.
type RunDetail struct {
	Run    *models.SyncRun
	Result *match.Result
}

// Show loads a run by ID or run number ("42" or "#42").
func (h *HistoryRecorder) Show(ref string) (*RunDetail, error) {
	run, err := h.lookup(ref)
	if err != nil {
		return nil, err
	}

	outcomes, err := h.Outcomes.ListByRun(run.ID())
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: run, Result: match.NewResult(outcomes)}, nil
}

// Recent lists the latest runs, newest first.
func (h *HistoryRecorder) Recent(limit int) ([]*models.SyncRun, error) {
	return h.Runs.List(map[string]any{"limit": limit})
}

func (h *HistoryRecorder) lookup(ref string) (*models.SyncRun, error) {
	var n int
	if _, err := fmt.Sscanf(ref, "#%d", &n); err == nil {
		return h.Runs.GetBySequence(n)
	}
	if _, err := fmt.Sscanf(ref, "%d", &n); err == nil && fmt.Sprint(n) == ref {
		return h.Runs.GetBySequence(n)
	}
	return h.Runs.Get(ref)
}
