// Package services implements the ports a sync runs between.
//
// # Spotify
//
// [SpotifyService] is the [Source]. It authenticates with a stored user token (refreshed
// automatically by the [oauth2] client), an authorization code exchanged through the local
// callback server, or, when neither exists, the client credentials grant which can read public
// playlists only. Playlist items are paged with the API's "next" links; local files keep their
// spotify:local URI as id and podcast episodes are dropped.
//
// # Plex
//
// [PlexService] is both the [match.Library] searched by the matching engine and the
// [Destination] playlists are written to. It speaks the Plex Media Server XML API with the
// X-Plex-Token header and is bound to one music section chosen by name in [PlexService.Connect].
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrUnauthorized] : the server rejected the token (the message carries a redacted fragment)
//   - [shared.ErrServiceUnavailable] : the server could not be reached
//   - [shared.ErrSectionNotFound] : the configured library does not exist (available sections listed)
//   - [shared.ErrPlaylistNotFound] : the playlist does not exist (available playlists listed)
//   - [shared.ErrTrackNotFound] : a rating key does not exist
//   - [shared.ErrAPIRequest] : any other non-2xx response
package services
