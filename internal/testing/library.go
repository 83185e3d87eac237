package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/shared"
)

// FakeLibrary is an in-memory [match.Library]. Searches match case-insensitive substrings like the
// Plex "contains" filter and return tracks in insertion order. Artists and albums are derived
// from the tracks.
type FakeLibrary struct {
	Tracks []match.Track
	// Err is returned from every call when set.
	Err error

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeLibrary creates a library holding tracks.
func NewFakeLibrary(tracks ...match.Track) *FakeLibrary {
	return &FakeLibrary{Tracks: tracks}
}

func (f *FakeLibrary) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
	return f.Err
}

// Calls returns how many times method was called, or the total across methods when method is empty.
func (f *FakeLibrary) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if method != "" {
		return f.calls[method]
	}
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (f *FakeLibrary) SearchTracks(ctx context.Context, title string, filters match.Filters) ([]match.Track, error) {
	if err := f.record("SearchTracks"); err != nil {
		return nil, err
	}

	var found []match.Track
	for _, t := range f.Tracks {
		if contains(t.Title, title) && contains(t.ArtistTitle, filters.ArtistTitle) && contains(t.AlbumTitle, filters.AlbumTitle) {
			found = append(found, t)
		}
	}
	return found, nil
}

func (f *FakeLibrary) SearchArtists(ctx context.Context, title string) ([]match.Artist, error) {
	if err := f.record("SearchArtists"); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var found []match.Artist
	for _, t := range f.Tracks {
		if !seen[t.ArtistTitle] && contains(t.ArtistTitle, title) {
			seen[t.ArtistTitle] = true
			found = append(found, match.Artist{ID: "artist:" + t.ArtistTitle, Title: t.ArtistTitle})
		}
	}
	return found, nil
}

func (f *FakeLibrary) SearchAlbums(ctx context.Context, title string, filters match.Filters) ([]match.Album, error) {
	if err := f.record("SearchAlbums"); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var found []match.Album
	for _, t := range f.Tracks {
		key := t.ArtistTitle + "/" + t.AlbumTitle
		if !seen[key] && contains(t.AlbumTitle, title) && contains(t.ArtistTitle, filters.ArtistTitle) {
			seen[key] = true
			found = append(found, match.Album{ID: "album:" + key, Title: t.AlbumTitle, ArtistTitle: t.ArtistTitle})
		}
	}
	return found, nil
}

func (f *FakeLibrary) ArtistTracks(ctx context.Context, artist match.Artist) ([]match.Track, error) {
	if err := f.record("ArtistTracks"); err != nil {
		return nil, err
	}

	var found []match.Track
	for _, t := range f.Tracks {
		if t.ArtistTitle == artist.Title {
			found = append(found, t)
		}
	}
	return found, nil
}

func (f *FakeLibrary) AlbumTracks(ctx context.Context, album match.Album) ([]match.Track, error) {
	if err := f.record("AlbumTracks"); err != nil {
		return nil, err
	}

	var found []match.Track
	for _, t := range f.Tracks {
		if t.AlbumTitle == album.Title && t.ArtistTitle == album.ArtistTitle {
			found = append(found, t)
		}
	}
	return found, nil
}

func (f *FakeLibrary) Track(ctx context.Context, id string) (*match.Track, error) {
	if err := f.record("Track"); err != nil {
		return nil, err
	}

	for _, t := range f.Tracks {
		if t.ID == id {
			c := t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
}
