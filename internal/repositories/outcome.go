package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
)

// ErrOutcomeNotFound is returned when a match record does not exist.
var ErrOutcomeNotFound = errors.New("match outcome not found")

const outcomeColumns = `
	id, run_id, position, source_id, title, artist, album, status, strategy, pinned,
	library_id, library_title, library_artist, library_album, created_at`

const insertOutcome = `
	INSERT INTO match_outcomes (
		id, run_id, position, source_id, title, artist, album, status, strategy, pinned,
		library_id, library_title, library_artist, library_album, created_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// OutcomeRepository stores the per-track outcomes of a run.
type OutcomeRepository struct {
	db *sql.DB
}

// NewOutcomeRepository creates a new OutcomeRepository with the given database connection
func NewOutcomeRepository(db *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// execer is satisfied by [sql.DB] and [sql.Tx].
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Create inserts a single record with a generated ID.
func (r *OutcomeRepository) Create(record *models.MatchRecord) error {
	return r.insert(r.db, record)
}

// CreateAll stores outcomes for runID in one transaction, using the slice index as position.
func (r *OutcomeRepository) CreateAll(runID string, outcomes []match.Outcome) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, o := range outcomes {
		if err := r.insert(tx, models.NewMatchRecord(runID, i, o)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcomes: %w", err)
	}
	return nil
}

func (r *OutcomeRepository) insert(db execer, record *models.MatchRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	src := record.Source()

	var libID, libTitle, libArtist, libAlbum string
	if c := record.Candidate(); c != nil {
		libID, libTitle, libArtist, libAlbum = c.ID, c.Title, c.ArtistTitle, c.AlbumTitle
	}

	_, err := db.Exec(insertOutcome,
		id,
		record.RunID(),
		record.Position(),
		src.ID,
		src.Title,
		src.Artist,
		src.Album,
		record.Status().String(),
		record.Strategy(),
		record.Pinned(),
		libID,
		libTitle,
		libArtist,
		libAlbum,
		record.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome %d: %w", record.Position(), err)
	}

	record.SetID(id)
	return nil
}

// Get retrieves a record by ID.
func (r *OutcomeRepository) Get(id string) (*models.MatchRecord, error) {
	query := "SELECT " + outcomeColumns + " FROM match_outcomes WHERE id = ?"
	return r.scan(r.db.QueryRow(query, id))
}

// List retrieves records ordered by run and position.
//
// Supported criteria: "run_id", "status" and "source_id" (all strings).
func (r *OutcomeRepository) List(criteria map[string]any) ([]*models.MatchRecord, error) {
	query := "SELECT " + outcomeColumns + " FROM match_outcomes WHERE 1 = 1"
	args := []any{}

	for _, key := range []string{"run_id", "status", "source_id"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY run_id, position"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var records []*models.MatchRecord
	for rows.Next() {
		record, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// ListByRun returns the outcomes of runID in source order.
func (r *OutcomeRepository) ListByRun(runID string) ([]match.Outcome, error) {
	records, err := r.List(map[string]any{"run_id": runID})
	if err != nil {
		return nil, err
	}

	outcomes := make([]match.Outcome, len(records))
	for i, rec := range records {
		outcomes[i] = rec.Outcome()
	}
	return outcomes, nil
}

// scan reads one row selected with outcomeColumns into a [models.MatchRecord]
func (r *OutcomeRepository) scan(row scanner) (*models.MatchRecord, error) {
	var (
		id        string
		runID     string
		position  int
		status    string
		strategy  string
		pinned    bool
		src       match.SourceTrack
		libID     string
		libTitle  string
		libArtist string
		libAlbum  string
		createdAt time.Time
	)

	err := row.Scan(
		&id, &runID, &position, &src.ID, &src.Title, &src.Artist, &src.Album, &status, &strategy, &pinned,
		&libID, &libTitle, &libArtist, &libAlbum, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOutcomeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}

	st, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	o := match.Outcome{Source: src, Status: st, Pinned: pinned}
	if libID != "" {
		o.Candidate = &match.Track{ID: libID, Title: libTitle, ArtistTitle: libArtist, AlbumTitle: libAlbum}
	}

	record := models.NewMatchRecord(runID, position, o)
	record.SetID(id)
	record.SetStrategy(strategy)
	record.SetCreatedAt(createdAt)
	return record, nil
}
