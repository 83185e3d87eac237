// Package repositories implements SQLite persistence for the match history.
//
// Key Implementations:
//   - [RunRepository] : sync runs with soft deletes and run numbers
//   - [OutcomeRepository] : per-track outcomes of a run, ordered by source position
//   - [HistoryRecorder] : stores a finished run and its outcomes for the sync engine
//
// Run numbers provide stable, human-readable ordering (e.g. run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
