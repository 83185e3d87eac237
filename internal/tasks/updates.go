package tasks

import (
	"fmt"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	FetchDest
	ResolveTracks
	WritePlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case FetchDest:
		return "fetch_dest"
	case ResolveTracks:
		return "resolve_tracks"
	case WritePlaylist:
		return "write_playlist"
	default:
		return ""
	}
}

func fetchingSourceUpdate(service string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching source playlist from %s...", service),
	}
}

func foundPlaylistUpdate(p *services.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", p.Name, p.TrackCount),
		Data:    p,
	}
}

func fetchingDestUpdate(service, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching %q from %s...", name, service),
	}
}

// resolveTracksUpdate carries the [match.Outcome] as Data once a track is resolved.
func resolveTracksUpdate(step, total int, o *match.Outcome) ProgressUpdate {
	if o == nil {
		return ProgressUpdate{
			Phase:   ResolveTracks,
			Step:    step,
			Total:   total,
			Message: "Resolving tracks against the library...",
		}
	}

	mark := "✗"
	switch o.Status {
	case match.Matched:
		mark = "✓"
	case match.Skipped:
		mark = "-"
	}
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s - %s", step, total, mark, o.Source.Artist, o.Source.Title),
		Data:    *o,
	}
}

func writePlaylistUpdate(service, name string, count int, appending bool) ProgressUpdate {
	verb := "Creating"
	if appending {
		verb = "Appending to"
	}
	return ProgressUpdate{
		Phase:   WritePlaylist,
		Step:    1,
		Total:   2,
		Message: fmt.Sprintf("%s %q on %s (%d tracks)...", verb, name, service, count),
	}
}

func playlistWrittenUpdate(p *services.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WritePlaylist,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Playlist written: %s (%d tracks)", p.Name, p.TrackCount),
		Data:    p,
	}
}

func nothingToAddUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WritePlaylist,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Nothing new to add to %q", name),
	}
}
