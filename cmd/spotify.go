package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/server"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultAuthTimeout = 2 * time.Minute

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and stores the tokens in the config file.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireConfig(); err != nil {
		return err
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: credentials.spotify client_id and client_secret must be set in %s",
			shared.ErrMissingCredentials, r.configPath)
	}

	svc := r.spotify
	if svc == nil {
		s, err := services.NewSpotifyService(creds.Map())
		if err != nil {
			return fmt.Errorf("failed to create Spotify service: %w", err)
		}
		svc = s
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}

	token, err := r.doOAuth(ctx, svc, timeout)
	if err != nil {
		return err
	}

	r.config.Credentials.Spotify.Update(tokenMap(token))
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.spotify = svc

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: spx spotify playlists\n")

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server.
// The callback path is taken from the configured redirect URI.
func (r *Runner) doOAuth(ctx context.Context, svc services.OAuthService, timeout time.Duration) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	path := "/callback"
	if u, err := url.Parse(r.config.Credentials.Spotify.RedirectURI); err == nil && u.Path != "" {
		path = u.Path
	}

	authURL := svc.GetAuthURL(state)
	handler := server.NewOAuthHandler(svc, state, path)
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)

	return server.WaitForCallback(ctx, addr, handler, timeout, r.logger, func(bound string) {
		r.logger.Infof("waiting for OAuth callback at http://%s%s", bound, path)

		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
		r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)
	})
}

// SpotifyPlaylists lists Spotify playlists with optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	spotify, err := r.spotifyService(ctx)
	if err != nil {
		return err
	}

	r.logger.Infof("listing spotify playlists with limit %v", limit)

	playlists, err := spotify.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}

	return nil
}

// playlistTracks is the JSON shape printed by [Runner.SpotifyTracks].
type playlistTracks struct {
	Playlist *services.Playlist  `json:"playlist"`
	Tracks   []match.SourceTrack `json:"tracks"`
}

// SpotifyTracks prints the tracks of one playlist as they are fed to the matcher.
func (r *Runner) SpotifyTracks(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("playlist")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	}

	spotify, err := r.spotifyService(ctx)
	if err != nil {
		return err
	}

	playlist, err := spotify.Playlist(ctx, playlistID)
	if err != nil {
		return err
	}
	tracks, err := spotify.PlaylistTracks(ctx, playlist.ID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlistTracks{Playlist: playlist, Tracks: tracks}, cmd.Bool("pretty"))
	}

	r.writePlain("Playlist: %s\n", playlist.Name)
	if playlist.Description != "" {
		r.writePlain("Description: %s\n", playlist.Description)
	}
	r.writePlain("Tracks: %d\n\n", len(tracks))

	for i, t := range tracks {
		r.writePlain("%d. %s - %s\n", i+1, t.Artist, t.Title)
		if t.Album != "" {
			r.writePlain("   Album: %s\n", t.Album)
		}
		r.writePlain("   ID: %s\n", t.ID)
	}
	return nil
}
