package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/shared"
)

// MatchRecord is the stored outcome of the source track at Position within a run.
type MatchRecord struct {
	id        string
	runID     string
	position  int
	outcome   match.Outcome
	strategy  string
	createdAt time.Time
}

// NewMatchRecord captures o for storage. The strategy is stored by name.
func NewMatchRecord(runID string, position int, o match.Outcome) *MatchRecord {
	return &MatchRecord{
		runID:     runID,
		position:  position,
		outcome:   o,
		strategy:  o.StrategyName(),
		createdAt: time.Now().UTC(),
	}
}

func (m *MatchRecord) ID() string           { return m.id }
func (m *MatchRecord) RunID() string        { return m.runID }
func (m *MatchRecord) Position() int        { return m.position }
func (m *MatchRecord) Strategy() string     { return m.strategy }
func (m *MatchRecord) CreatedAt() time.Time { return m.createdAt }

// UpdatedAt equals CreatedAt; records are immutable once written.
func (m *MatchRecord) UpdatedAt() time.Time { return m.createdAt }

func (m *MatchRecord) Source() match.SourceTrack { return m.outcome.Source }
func (m *MatchRecord) Status() match.Status      { return m.outcome.Status }
func (m *MatchRecord) Pinned() bool              { return m.outcome.Pinned }
func (m *MatchRecord) Candidate() *match.Track   { return m.outcome.Candidate }

func (m *MatchRecord) SetID(id string)            { m.id = id }
func (m *MatchRecord) SetCreatedAt(t time.Time)   { m.createdAt = t }
func (m *MatchRecord) SetStrategy(name string)    { m.strategy = name }
func (m *MatchRecord) SetOutcome(o match.Outcome) { m.outcome = o }

// Outcome rebuilds the resolution outcome. Strategy names that no longer parse are dropped.
func (m *MatchRecord) Outcome() match.Outcome {
	o := m.outcome
	if !o.Pinned && m.strategy != "" {
		if s, err := match.ParseStrategy(m.strategy); err == nil {
			o.Strategy = s
		}
	}
	return o
}

func (m *MatchRecord) Validate() error {
	if m.runID == "" {
		return fmt.Errorf("%w: match record needs a run id", shared.ErrInvalidInput)
	}
	if m.position < 0 {
		return fmt.Errorf("%w: negative position %d", shared.ErrInvalidInput, m.position)
	}
	if err := m.outcome.Source.Validate(); err != nil {
		return err
	}
	if m.outcome.Status == match.Matched && m.outcome.Candidate == nil {
		return fmt.Errorf("%w: matched record for %s has no library track", shared.ErrInvalidInput, m.outcome.Source.ID)
	}
	return nil
}

// ParseStatus maps a stored status name back to a [match.Status].
func ParseStatus(s string) (match.Status, error) {
	switch s {
	case match.Matched.String():
		return match.Matched, nil
	case match.Unmatched.String():
		return match.Unmatched, nil
	case match.Skipped.String():
		return match.Skipped, nil
	default:
		return 0, fmt.Errorf("%w: unknown match status %q", shared.ErrInvalidInput, s)
	}
}
