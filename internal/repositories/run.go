package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
)

// ErrRunNotFound is returned when a run does not exist or has been deleted.
var ErrRunNotFound = errors.New("sync run not found")

const runColumns = `
	id, sequence, source_playlist_id, source_playlist_name, destination_playlist,
	mode, pattern, total, matched, unmatched, skipped, added, status, error,
	started_at, finished_at, created_at, updated_at, deleted_at`

// RunRepository implements models.Repository[*models.SyncRun].
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.SyncRun] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run with a generated ID and the next run number.
func (r *RunRepository) Create(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO sync_runs (
			id, sequence, source_playlist_id, source_playlist_name, destination_playlist,
			mode, pattern, total, matched, unmatched, skipped, added, status, error,
			started_at, finished_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.SourcePlaylistID(),
		run.SourcePlaylistName(),
		run.DestinationPlaylist(),
		run.Mode(),
		run.Pattern(),
		run.Total(),
		run.Matched(),
		run.Unmatched(),
		run.Skipped(),
		run.Added(),
		string(run.Status()),
		run.ErrorMessage(),
		run.StartedAt(),
		run.FinishedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.SyncRun, error) {
	query := "SELECT " + runColumns + " FROM sync_runs WHERE id = ? AND deleted_at IS NULL"
	return r.scan(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a run by its run number.
func (r *RunRepository) GetBySequence(sequence int) (*models.SyncRun, error) {
	query := "SELECT " + runColumns + " FROM sync_runs WHERE sequence = ? AND deleted_at IS NULL"
	return r.scan(r.db.QueryRow(query, sequence))
}

// Update stores the counts and final state of a run.
func (r *RunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE sync_runs
		SET destination_playlist = ?, total = ?, matched = ?, unmatched = ?, skipped = ?,
			added = ?, status = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.DestinationPlaylist(),
		run.Total(),
		run.Matched(),
		run.Unmatched(),
		run.Skipped(),
		run.Added(),
		string(run.Status()),
		run.ErrorMessage(),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return expectOne(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	query := `
		UPDATE sync_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectOne(result, id)
}

// List retrieves runs newest first, excluding soft-deleted runs.
//
// Supported criteria: "status" (string), "source_playlist_id" (string) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := "SELECT " + runColumns + " FROM sync_runs WHERE deleted_at IS NULL"
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if sourceID, ok := criteria["source_playlist_id"].(string); ok && sourceID != "" {
		query += " AND source_playlist_id = ?"
		args = append(args, sourceID)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scan reads one row selected with runColumns into a [models.SyncRun]
func (r *RunRepository) scan(row scanner) (*models.SyncRun, error) {
	var (
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
		status              string
		errorMessage        string
		startedAt           time.Time
		finishedAt          sql.NullTime
		createdAt           time.Time
		updatedAt           time.Time
		deletedAt           sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &sourcePlaylistID, &sourcePlaylistName, &destinationPlaylist,
		&mode, &pattern, &total, &matched, &unmatched, &skipped, &added, &status, &errorMessage,
		&startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewSyncRun(sourcePlaylistID, sourcePlaylistName, mode, pattern)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetDestinationPlaylist(destinationPlaylist)
	run.SetCounts(total, matched, unmatched, skipped, added)
	run.SetStatus(models.RunStatus(status))
	run.SetErrorMessage(errorMessage)
	run.SetStartedAt(startedAt)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		run.SetFinishedAt(&finishedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}
	return run, nil
}

func expectOne(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
