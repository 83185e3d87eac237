// Package tasks orchestrates playlist syncs with real-time progress reporting.
//
// # Sync
//
// [SyncEngine.Run] performs a Spotify → Plex sync:
//   - Finds the source playlist by ID, or by exact name when no ID matches
//   - Resolves every track with a [match.Resolver] (overrides, then the strategy pattern)
//   - Writes the matched tracks according to the sync mode:
//     from_scratch creates the playlist, append adds every match to an existing playlist,
//     append_new adds only tracks the playlist does not hold yet ([NewTracks])
//   - Returns the per-track outcomes for reports, even when writing fails
//
// A dry run stops after resolution. Append modes check that the destination playlist exists
// before any track is resolved.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # History
//
// The optional [Recorder] receives every finished run, including failed ones, together with its outcomes.
// Recording errors are logged and never fail the sync.
package tasks
