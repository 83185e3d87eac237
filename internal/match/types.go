package match

import (
	"context"
	"fmt"
	"strings"
)

// SourceTrack is a track reference from the source playlist. ID is unique within the source.
type SourceTrack struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

// Validate reports a [ErrMalformedTrack] when the id, title or artist is blank. Album may be empty.
func (t SourceTrack) Validate() error {
	var missing []string
	if strings.TrimSpace(t.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(t.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(t.Artist) == "" {
		missing = append(missing, "artist")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %q by %q is missing %s", ErrMalformedTrack, t.Title, t.Artist, strings.Join(missing, ", "))
	}
	return nil
}

func (t SourceTrack) String() string {
	if t.Album == "" {
		return t.Artist + " - " + t.Title
	}
	return t.Artist + " - " + t.Title + " [" + t.Album + "]"
}

// Track is a playable item in the destination library.
type Track struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ArtistTitle string `json:"artist"`
	AlbumTitle  string `json:"album"`
}

func (t Track) String() string {
	return t.ArtistTitle + " - " + t.Title + " [" + t.AlbumTitle + "]"
}

// Artist is a library artist whose tracks are fetched lazily through [Library.ArtistTracks].
type Artist struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Album is a library album whose tracks are fetched lazily through [Library.AlbumTracks].
type Album struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ArtistTitle string `json:"artist"`
}

// Filters narrows a library search. Empty fields are not applied.
type Filters struct {
	ArtistTitle string
	AlbumTitle  string
}

// Library is the search surface of the destination music library.
//
// Searches return candidates in the library's own order; strategies rely on that order to break ties.
// Track returns [shared.ErrTrackNotFound] (wrapped) when id does not exist.
type Library interface {
	SearchTracks(ctx context.Context, title string, filters Filters) ([]Track, error)
	SearchArtists(ctx context.Context, title string) ([]Artist, error)
	SearchAlbums(ctx context.Context, title string, filters Filters) ([]Album, error)
	ArtistTracks(ctx context.Context, artist Artist) ([]Track, error)
	AlbumTracks(ctx context.Context, album Album) ([]Track, error)
	Track(ctx context.Context, id string) (*Track, error)
}
