// package tasks implements playlist syncs from a source service into a destination library.
//
// The core abstraction is SyncEngine, which resolves a source playlist against the library and writes the result.
// Operations emit progress updates via channels, dropping them when the reader falls behind unless blocking progress is enabled.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
)

// SyncOpts selects the source playlist and how matched tracks are written.
type SyncOpts struct {
	PlaylistID   string          // Source playlist ID or exact name
	PlaylistName string          // Destination playlist, defaults to the source playlist name
	Mode         shared.SyncMode // Defaults to [shared.SyncFromScratch]
	DryRun       bool            // Resolve and report without writing to the destination
}

// SyncResult contains all data from a sync.
type SyncResult struct {
	Source      services.Playlist  // Source playlist metadata
	Destination string             // Destination playlist name
	Mode        shared.SyncMode    // Applied sync mode
	Result      *match.Result      // Per-track outcomes in source order
	Added       []match.Track      // Tracks written to the destination (or that would be, on a dry run)
	Present     int                // Matched tracks already in the destination (append_new)
	Playlist    *services.Playlist // Destination playlist after writing, nil on dry runs
	Run         *models.SyncRun    // History entry, nil without a recorder
	Elapsed     time.Duration
}

// SyncEngine defines operations for syncing playlists between services.
type SyncEngine interface {
	// Run resolves every track of the source playlist against the library and writes the matches according to the mode.
	Run(ctx context.Context, opts SyncOpts, progress chan<- ProgressUpdate) (*SyncResult, error)
}

// Recorder persists finished runs. Implemented by repositories.HistoryRecorder.
type Recorder interface {
	Record(run *models.SyncRun, outcomes []match.Outcome) error
}

// PlaylistEngine implements SyncEngine for playlist operations.
type PlaylistEngine struct {
	source   services.Source
	dest     services.Destination
	resolver *match.Resolver
	recorder Recorder
	logger   *log.Logger
	blocking bool
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided services.
func NewPlaylistEngine(source services.Source, dest services.Destination, resolver *match.Resolver) *PlaylistEngine {
	return &PlaylistEngine{
		source:   source,
		dest:     dest,
		resolver: resolver,
		logger:   log.New(io.Discard),
	}
}

// WithRecorder stores every run through r. Recording failures are logged, never returned.
func (e *PlaylistEngine) WithRecorder(r Recorder) *PlaylistEngine {
	e.recorder = r
	return e
}

// WithLogger sets the logger used for warnings.
func (e *PlaylistEngine) WithLogger(l *log.Logger) *PlaylistEngine {
	if l != nil {
		e.logger = l
	}
	return e
}

// WithBlockingProgress makes every update wait for the reader until ctx is done.
// Use it only when a reader drains the channel for the whole run.
func (e *PlaylistEngine) WithBlockingProgress() *PlaylistEngine {
	e.blocking = true
	return e
}

// sendProgress sends a progress update through the channel. Updates are dropped when the
// channel is full unless the engine blocks on progress.
func (e *PlaylistEngine) sendProgress(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	if e.blocking {
		select {
		case progress <- update:
		case <-ctx.Done():
		}
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs a full sync of one source playlist.
func (e *PlaylistEngine) Run(ctx context.Context, opts SyncOpts, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: source service not initialized", shared.ErrServiceUnavailable)
	}
	if e.dest == nil {
		return nil, fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}
	if e.resolver == nil {
		return nil, fmt.Errorf("%w: matching engine not initialized", shared.ErrServiceUnavailable)
	}

	mode := opts.Mode
	if mode == "" {
		mode = shared.SyncFromScratch
	}
	mode, err := shared.ParseSyncMode(string(mode))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	e.sendProgress(ctx, progress, fetchingSourceUpdate(e.source.Name()))

	src, err := e.findPlaylist(ctx, opts.PlaylistID)
	if err != nil {
		return nil, err
	}

	tracks, err := e.source.PlaylistTracks(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracks of %q: %w", src.Name, err)
	}
	src.TrackCount = len(tracks)
	e.sendProgress(ctx, progress, foundPlaylistUpdate(src))

	result := &SyncResult{Source: *src, Destination: opts.PlaylistName, Mode: mode}
	if result.Destination == "" {
		result.Destination = src.Name
	}

	var existing []match.Track
	if mode != shared.SyncFromScratch {
		e.sendProgress(ctx, progress, fetchingDestUpdate(e.dest.Name(), result.Destination))
		existing, err = e.dest.PlaylistTracks(ctx, result.Destination)
		if err != nil {
			return nil, err
		}
	}

	run := models.NewSyncRun(src.ID, src.Name, string(mode), e.resolver.Engine().Pattern().String())
	run.SetDestinationPlaylist(result.Destination)

	e.sendProgress(ctx, progress, resolveTracksUpdate(0, len(tracks), nil))
	res, err := e.resolver.ResolveAll(ctx, tracks, func(p match.Progress) {
		e.sendProgress(ctx, progress, resolveTracksUpdate(p.Done, p.Total, &p.Outcome))
	})
	if err != nil {
		e.finish(run, nil, 0, models.RunFailed, err)
		return nil, err
	}
	result.Result = res

	result.Added = res.Tracks()
	if mode == shared.SyncAppendNew {
		result.Added = NewTracks(existing, result.Added)
		result.Present = len(res.Matched) - len(result.Added)
	}

	if opts.DryRun {
		result.Elapsed = time.Since(start)
		result.Run = e.finish(run, res, len(result.Added), models.RunDryRun, nil)
		return result, nil
	}

	result.Playlist, err = e.write(ctx, mode, result.Destination, result.Added, progress)
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Run = e.finish(run, res, 0, models.RunFailed, err)
		return result, err
	}

	result.Run = e.finish(run, res, len(result.Added), models.RunCompleted, nil)
	return result, nil
}

// findPlaylist looks a playlist up by ID, falling back to an exact name match.
func (e *PlaylistEngine) findPlaylist(ctx context.Context, idOrName string) (*services.Playlist, error) {
	if strings.TrimSpace(idOrName) == "" {
		return nil, fmt.Errorf("%w: source playlist", shared.ErrMissingArgument)
	}

	p, err := e.source.Playlist(ctx, idOrName)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, shared.ErrPlaylistNotFound) {
		return nil, err
	}

	playlists, listErr := e.source.Playlists(ctx)
	if listErr != nil {
		return nil, fmt.Errorf("%w: failed to get playlists: %v", shared.ErrAPIRequest, listErr)
	}

	names := make([]string, 0, len(playlists))
	for _, pl := range playlists {
		if pl.Name == idOrName {
			return &pl, nil
		}
		names = append(names, pl.Name)
	}
	return nil, fmt.Errorf("%w: no playlist with id or name %q (available: %s)", shared.ErrPlaylistNotFound, idOrName, listOrNone(names))
}

func (e *PlaylistEngine) write(ctx context.Context, mode shared.SyncMode, name string, tracks []match.Track, progress chan<- ProgressUpdate) (*services.Playlist, error) {
	if mode == shared.SyncFromScratch {
		if len(tracks) == 0 {
			return nil, fmt.Errorf("%w: no tracks were matched, cannot create empty playlist %q", shared.ErrInvalidArgument, name)
		}
		e.sendProgress(ctx, progress, writePlaylistUpdate(e.dest.Name(), name, len(tracks), false))
		p, err := e.dest.CreatePlaylist(ctx, name, tracks)
		if err != nil {
			return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
		}
		e.sendProgress(ctx, progress, playlistWrittenUpdate(p))
		return p, nil
	}

	if len(tracks) == 0 {
		e.sendProgress(ctx, progress, nothingToAddUpdate(name))
		return nil, nil
	}

	e.sendProgress(ctx, progress, writePlaylistUpdate(e.dest.Name(), name, len(tracks), true))
	p, err := e.dest.AppendItems(ctx, name, tracks)
	if err != nil {
		return nil, fmt.Errorf("failed to append to playlist %q: %w", name, err)
	}
	e.sendProgress(ctx, progress, playlistWrittenUpdate(p))
	return p, nil
}

// finish stamps run with the outcome of the sync and hands it to the recorder.
func (e *PlaylistEngine) finish(run *models.SyncRun, res *match.Result, added int, status models.RunStatus, runErr error) *models.SyncRun {
	var outcomes []match.Outcome
	if res != nil {
		outcomes = res.Outcomes
		run.SetCounts(len(res.Outcomes), len(res.Matched), len(res.Unmatched), len(res.Skipped), added)
	}
	run.Finish(status, runErr)

	if e.recorder != nil {
		if err := e.recorder.Record(run, outcomes); err != nil {
			e.logger.Warn("failed to record run history", "error", err)
		}
	}
	return run
}

// NewTracks returns the tracks whose IDs are neither in existing nor earlier in tracks.
func NewTracks(existing, tracks []match.Track) []match.Track {
	seen := make(map[string]struct{}, len(existing)+len(tracks))
	for _, t := range existing {
		seen[t.ID] = struct{}{}
	}

	var out []match.Track
	for _, t := range tracks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
