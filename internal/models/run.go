package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/shared"
)

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunDryRun    RunStatus = "dry_run"
)

// SyncRun records one resolution batch against the library.
type SyncRun struct {
	id                  string
	sequence            int
	sourcePlaylistID    string
	sourcePlaylistName  string
	destinationPlaylist string
	mode                string
	pattern             string
	total               int
	matched             int
	unmatched           int
	skipped             int
	added               int
	status              RunStatus
	errorMessage        string
	startedAt           time.Time
	finishedAt          *time.Time
	createdAt           time.Time
	updatedAt           time.Time
	deletedAt           *time.Time
}

// NewSyncRun creates a running SyncRun started now. The sequence is assigned on insert.
func NewSyncRun(sourcePlaylistID, sourcePlaylistName, mode, pattern string) *SyncRun {
	now := time.Now().UTC()
	return &SyncRun{
		sourcePlaylistID:   sourcePlaylistID,
		sourcePlaylistName: sourcePlaylistName,
		mode:               mode,
		pattern:            pattern,
		status:             RunRunning,
		startedAt:          now,
		createdAt:          now,
		updatedAt:          now,
	}
}

func (r *SyncRun) ID() string                  { return r.id }
func (r *SyncRun) Sequence() int               { return r.sequence }
func (r *SyncRun) SourcePlaylistID() string    { return r.sourcePlaylistID }
func (r *SyncRun) SourcePlaylistName() string  { return r.sourcePlaylistName }
func (r *SyncRun) DestinationPlaylist() string { return r.destinationPlaylist }
func (r *SyncRun) Mode() string                { return r.mode }
func (r *SyncRun) Pattern() string             { return r.pattern }
func (r *SyncRun) Total() int                  { return r.total }
func (r *SyncRun) Matched() int                { return r.matched }
func (r *SyncRun) Unmatched() int              { return r.unmatched }
func (r *SyncRun) Skipped() int                { return r.skipped }
func (r *SyncRun) Added() int                  { return r.added }
func (r *SyncRun) Status() RunStatus           { return r.status }
func (r *SyncRun) ErrorMessage() string        { return r.errorMessage }
func (r *SyncRun) StartedAt() time.Time        { return r.startedAt }
func (r *SyncRun) FinishedAt() *time.Time      { return r.finishedAt }
func (r *SyncRun) CreatedAt() time.Time        { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time        { return r.updatedAt }
func (r *SyncRun) DeletedAt() *time.Time       { return r.deletedAt }

func (r *SyncRun) SetID(id string)                    { r.id = id }
func (r *SyncRun) SetSequence(n int)                  { r.sequence = n }
func (r *SyncRun) SetDestinationPlaylist(name string) { r.destinationPlaylist = name }
func (r *SyncRun) SetStatus(s RunStatus)              { r.status = s }
func (r *SyncRun) SetErrorMessage(msg string)         { r.errorMessage = msg }
func (r *SyncRun) SetStartedAt(t time.Time)           { r.startedAt = t }
func (r *SyncRun) SetFinishedAt(t *time.Time)         { r.finishedAt = t }
func (r *SyncRun) SetCreatedAt(t time.Time)           { r.createdAt = t }
func (r *SyncRun) SetUpdatedAt(t time.Time)           { r.updatedAt = t }
func (r *SyncRun) SetDeletedAt(t *time.Time)          { r.deletedAt = t }

// SetCounts stores the partition sizes of the resolved batch and how many tracks reached the playlist.
func (r *SyncRun) SetCounts(total, matched, unmatched, skipped, added int) {
	r.total, r.matched, r.unmatched, r.skipped, r.added = total, matched, unmatched, skipped, added
}

// Finish stamps the run with its final status. A non-nil err marks the run failed.
func (r *SyncRun) Finish(status RunStatus, err error) {
	now := time.Now().UTC()
	r.finishedAt = &now
	r.updatedAt = now
	r.status = status
	if err != nil {
		r.status = RunFailed
		r.errorMessage = err.Error()
	}
}

// Duration is the time between start and finish, zero while running.
func (r *SyncRun) Duration() time.Duration {
	if r.finishedAt == nil {
		return 0
	}
	return r.finishedAt.Sub(r.startedAt)
}

// MatchPercentage is the share of non-skipped tracks that matched.
func (r *SyncRun) MatchPercentage() float64 {
	considered := r.total - r.skipped
	if considered <= 0 {
		return 0
	}
	return float64(r.matched) / float64(considered) * 100
}

func (r *SyncRun) Validate() error {
	switch {
	case r.mode == "":
		return fmt.Errorf("%w: run mode is required", shared.ErrInvalidInput)
	case r.pattern == "":
		return fmt.Errorf("%w: run pattern is required", shared.ErrInvalidInput)
	case r.matched+r.unmatched+r.skipped != r.total:
		return fmt.Errorf("%w: counts %d+%d+%d do not add up to %d", shared.ErrInvalidInput, r.matched, r.unmatched, r.skipped, r.total)
	}

	_, err := ParseRunStatus(string(r.status))
	return err
}

// ParseRunStatus validates s as a [RunStatus].
func ParseRunStatus(s string) (RunStatus, error) {
	switch status := RunStatus(s); status {
	case RunRunning, RunCompleted, RunFailed, RunDryRun:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown run status %q (valid: running, completed, failed, dry_run)", shared.ErrInvalidInput, s)
	}
}
