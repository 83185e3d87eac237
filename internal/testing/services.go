package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
)

// FakeSource is an in-memory [services.Source] keyed by playlist ID.
type FakeSource struct {
	Lists  map[string]services.Playlist
	Tracks map[string][]match.SourceTrack
	Err    error
}

// NewFakeSource creates a source with one playlist.
func NewFakeSource(p services.Playlist, tracks ...match.SourceTrack) *FakeSource {
	p.TrackCount = len(tracks)
	return &FakeSource{
		Lists:  map[string]services.Playlist{p.ID: p},
		Tracks: map[string][]match.SourceTrack{p.ID: tracks},
	}
}

func (f *FakeSource) Name() string { return "fake-source" }

func (f *FakeSource) Playlists(ctx context.Context) ([]services.Playlist, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	lists := make([]services.Playlist, 0, len(f.Lists))
	for _, p := range f.Lists {
		lists = append(lists, p)
	}
	return lists, nil
}

func (f *FakeSource) Playlist(ctx context.Context, id string) (*services.Playlist, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	p, ok := f.Lists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return &p, nil
}

func (f *FakeSource) PlaylistTracks(ctx context.Context, id string) ([]match.SourceTrack, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if _, ok := f.Lists[id]; !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return f.Tracks[id], nil
}

// FakeDestination is an in-memory [services.Destination] keyed by playlist name.
type FakeDestination struct {
	mu    sync.Mutex
	Lists map[string][]match.Track
	// Created and Appended record write calls in order.
	Created  []string
	Appended []string
	Err      error
}

// NewFakeDestination creates an empty destination.
func NewFakeDestination() *FakeDestination {
	return &FakeDestination{Lists: map[string][]match.Track{}}
}

func (f *FakeDestination) Name() string { return "fake-destination" }

func (f *FakeDestination) Playlists(ctx context.Context) ([]services.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	lists := make([]services.Playlist, 0, len(f.Lists))
	for name, tracks := range f.Lists {
		lists = append(lists, services.Playlist{ID: name, Name: name, TrackCount: len(tracks)})
	}
	return lists, nil
}

func (f *FakeDestination) PlaylistTracks(ctx context.Context, name string) ([]match.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	tracks, ok := f.Lists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
	}
	return append([]match.Track(nil), tracks...), nil
}

func (f *FakeDestination) CreatePlaylist(ctx context.Context, name string, tracks []match.Track) (*services.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: empty playlist %q", shared.ErrInvalidArgument, name)
	}
	f.Lists[name] = append([]match.Track(nil), tracks...)
	f.Created = append(f.Created, name)
	return &services.Playlist{ID: name, Name: name, TrackCount: len(tracks)}, nil
}

func (f *FakeDestination) AppendItems(ctx context.Context, name string, tracks []match.Track) (*services.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	existing, ok := f.Lists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
	}
	f.Lists[name] = append(existing, tracks...)
	f.Appended = append(f.Appended, name)
	return &services.Playlist{ID: name, Name: name, TrackCount: len(f.Lists[name])}, nil
}
