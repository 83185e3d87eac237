// Spotify API implementation of [Source]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultRedirectURI = "http://127.0.0.1:3000/callback"
	playlistPageSize   = 50
	tracksPageSize     = 100
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track or, when Type is "episode", a podcast episode.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Owner is the account a playlist belongs to.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a playlist object without its items.
type SpotifyPlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      bool              `json:"public"`
	Tracks      playlistTracksRef `json:"tracks"`
	Images      []SpotifyImage    `json:"images"`
	URI         string            `json:"uri"`
}

func (p SpotifyPlaylist) toPlaylist() Playlist {
	return Playlist{ID: p.ID, Name: p.Name, Description: p.Description, TrackCount: p.Tracks.Total, Public: p.Public}
}

// SpotifyPlaylistItem represents a track within a playlist context. Track is null for items
// that are no longer available.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPage is a page of a paginated collection.
type SpotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// SpotifyService implements [Source] for the Spotify Web API.
// Uses [oauth2] for authentication and provides methods for playlist and track operations.
type SpotifyService struct {
	config         *oauth2.Config
	tokenSource    oauth2.TokenSource
	httpClient     *http.Client
	baseURL        string
	clientOnly     bool
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{config: config, baseURL: spotifyBaseURL}, nil
}

// Authenticate prepares the HTTP client.
//
// An "access_token" (with optional "refresh_token" and RFC 3339 "expiry") is used and refreshed as
// needed, an "auth_code" is exchanged for a token, and otherwise the client credentials grant is
// used, which only reads public playlists.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		}
		if expiry := credentials["expiry"]; expiry != "" {
			t, err := time.Parse(time.RFC3339, expiry)
			if err != nil {
				return fmt.Errorf("%w: expiry %q is not RFC 3339", shared.ErrInvalidConfig, expiry)
			}
			token.Expiry = t
		}
		s.useUserToken(ctx, token)
		return nil
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		_, err := s.Exchange(ctx, authCode)
		return err
	}

	cc := &clientcredentials.Config{
		ClientID:     s.config.ClientID,
		ClientSecret: s.config.ClientSecret,
		TokenURL:     s.config.Endpoint.TokenURL,
	}
	s.useTokenSource(ctx, cc.TokenSource(ctx), true)
	return nil
}

// Exchange trades an authorization code for a user token and authenticates with it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	s.useUserToken(ctx, token)
	return token, nil
}

// SetTokenRefreshCallback registers fn to receive every token that replaces the current one.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

func (s *SpotifyService) useUserToken(ctx context.Context, token *oauth2.Token) {
	s.useTokenSource(ctx, &refreshableTokenSource{
		source: s.config.TokenSource(ctx, token),
		last:   token.AccessToken,
		callback: func(t *oauth2.Token) {
			if s.onTokenRefresh != nil {
				s.onTokenRefresh(t)
			}
		},
	}, false)
}

func (s *SpotifyService) useTokenSource(ctx context.Context, ts oauth2.TokenSource, clientOnly bool) {
	s.tokenSource = oauth2.ReuseTokenSource(nil, ts)
	s.httpClient = oauth2.NewClient(ctx, s.tokenSource)
	s.clientOnly = clientOnly
}

// refreshableTokenSource calls callback whenever source yields a token different from the last one.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// Token returns the current user token, refreshing it first when it has expired.
// Tokens from the client credentials grant are not returned since they cannot be persisted usefully.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokenSource == nil || s.clientOnly {
		return nil, shared.ErrNotAuthenticated
	}
	return s.tokenSource.Token()
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// doRequest performs an authenticated GET. endpoint is either a path below the API base or an
// absolute "next" link from a previous page.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.httpClient == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: spotify: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg := "run `spx spotify auth`"
		if s.clientOnly {
			msg = "client credentials can only read public playlists, run `spx spotify auth`"
		}
		return fmt.Errorf("%w: spotify returned %d: %s", shared.ErrUnauthorized, resp.StatusCode, msg)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: spotify %s", shared.ErrPlaylistNotFound, req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Playlists retrieves all playlists of the authenticated user.
func (s *SpotifyService) Playlists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	next := fmt.Sprintf("/me/playlists?limit=%d", playlistPageSize)
	for next != "" {
		var page SpotifyPage[SpotifyPlaylist]
		if err := s.doRequest(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, sp := range page.Items {
			playlists = append(playlists, sp.toPlaylist())
		}
		next = nextLink(page.Next)
	}
	return playlists, nil
}

// Playlist retrieves a playlist by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*Playlist, error) {
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "?fields=id,name,description,public,owner,tracks.total,uri"

	var sp SpotifyPlaylist
	if err := s.doRequest(ctx, endpoint, &sp); err != nil {
		return nil, err
	}
	p := sp.toPlaylist()
	return &p, nil
}

// PlaylistTracks retrieves every track of a playlist in order.
//
// Unavailable items and podcast episodes are dropped. Local files have no Spotify id so their
// URI is used instead.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]match.SourceTrack, error) {
	var tracks []match.SourceTrack
	next := fmt.Sprintf("/playlists/%s/tracks?limit=%d&additional_types=track", url.PathEscape(playlistID), tracksPageSize)
	for next != "" {
		var page SpotifyPage[SpotifyPlaylistItem]
		if err := s.doRequest(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if t, ok := toSourceTrack(item); ok {
				tracks = append(tracks, t)
			}
		}
		next = nextLink(page.Next)
	}
	return tracks, nil
}

func toSourceTrack(item SpotifyPlaylistItem) (match.SourceTrack, bool) {
	if item.Track == nil || item.Track.Type == "episode" {
		return match.SourceTrack{}, false
	}

	t := match.SourceTrack{
		ID:    item.Track.ID,
		Title: item.Track.Name,
		Album: item.Track.Album.Name,
	}
	if t.ID == "" {
		t.ID = item.Track.URI
	}
	if len(item.Track.Artists) > 0 {
		t.Artist = item.Track.Artists[0].Name
	}
	return t, true
}

func nextLink(next *string) string {
	if next == nil {
		return ""
	}
	return *next
}
