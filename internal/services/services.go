// package services defines the source and destination ports used by a sync and implements them
// for Spotify and Plex.
package services

import (
	"context"

	"github.com/desertthunder/spx/internal/match"
	"golang.org/x/oauth2"
)

// Source provides the playlists whose tracks are matched.
type Source interface {
	// Playlists lists the playlists visible to the authenticated account.
	Playlists(ctx context.Context) ([]Playlist, error)

	// Playlist retrieves playlist metadata by ID.
	Playlist(ctx context.Context, playlistID string) (*Playlist, error)

	// PlaylistTracks retrieves every track of a playlist in playlist order, following pagination.
	PlaylistTracks(ctx context.Context, playlistID string) ([]match.SourceTrack, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Destination stores matched tracks as playlists, addressed by name.
type Destination interface {
	// Playlists lists the destination's audio playlists.
	Playlists(ctx context.Context) ([]Playlist, error)

	// PlaylistTracks returns the items of the named playlist.
	// Fails with [shared.ErrPlaylistNotFound] listing existing names.
	PlaylistTracks(ctx context.Context, name string) ([]match.Track, error)

	// CreatePlaylist creates a playlist containing tracks.
	CreatePlaylist(ctx context.Context, name string, tracks []match.Track) (*Playlist, error)

	// AppendItems adds tracks to the end of the named playlist.
	// Fails with [shared.ErrPlaylistNotFound] listing existing names.
	AppendItems(ctx context.Context, name string, tracks []match.Track) (*Playlist, error)

	// Name returns the name of the service (e.g., "Plex")
	Name() string
}

// OAuthService is a [Source] that authenticates users through an OAuth authorization code flow.
type OAuthService interface {
	Source
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Playlist represents a playlist on either side of a sync.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}
