// Plex Media Server implementation of [match.Library] and [Destination]
//
// Endpoints and XML attributes follow the Plex Media Server HTTP API: search results and
// metadata arrive as a MediaContainer of Track, Directory or Playlist elements.
package services

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/shared"
)

const (
	plexTypeArtist = "8"
	plexTypeAlbum  = "9"
	plexTypeTrack  = "10"

	// plexURIBatch caps how many rating keys go into one playlist uri parameter.
	plexURIBatch = 200
)

type plexContainer struct {
	XMLName           xml.Name        `xml:"MediaContainer"`
	Size              int             `xml:"size,attr"`
	MachineIdentifier string          `xml:"machineIdentifier,attr"`
	FriendlyName      string          `xml:"friendlyName,attr"`
	Version           string          `xml:"version,attr"`
	Tracks            []plexTrack     `xml:"Track"`
	Directories       []plexDirectory `xml:"Directory"`
	Playlists         []plexPlaylist  `xml:"Playlist"`
}

type plexTrack struct {
	RatingKey        string `xml:"ratingKey,attr"`
	Title            string `xml:"title,attr"`
	GrandparentTitle string `xml:"grandparentTitle,attr"`
	ParentTitle      string `xml:"parentTitle,attr"`
}

func (t plexTrack) toTrack() match.Track {
	return match.Track{ID: t.RatingKey, Title: t.Title, ArtistTitle: t.GrandparentTitle, AlbumTitle: t.ParentTitle}
}

// plexDirectory is a library section, an artist or an album depending on Type.
type plexDirectory struct {
	Key         string `xml:"key,attr"`
	RatingKey   string `xml:"ratingKey,attr"`
	Title       string `xml:"title,attr"`
	Type        string `xml:"type,attr"`
	ParentTitle string `xml:"parentTitle,attr"`
}

type plexPlaylist struct {
	RatingKey    string `xml:"ratingKey,attr"`
	Title        string `xml:"title,attr"`
	Summary      string `xml:"summary,attr"`
	PlaylistType string `xml:"playlistType,attr"`
	Smart        bool   `xml:"smart,attr"`
	LeafCount    int    `xml:"leafCount,attr"`
}

func (p plexPlaylist) toPlaylist() *Playlist {
	return &Playlist{ID: p.RatingKey, Name: p.Title, Description: p.Summary, TrackCount: p.LeafCount}
}

// Section is a Plex library section.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// PlexService talks to one Plex Media Server and searches one music section.
//
// Call [PlexService.Connect] before searching or writing playlists.
type PlexService struct {
	baseURL    string
	token      string
	library    string
	httpClient *http.Client

	machineID string
	sectionID string
}

// NewPlexService creates a client for the server described by cfg.
func NewPlexService(cfg shared.PlexConfig) *PlexService {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &PlexService{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		library:    cfg.Library,
		httpClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
	}
}

func (p *PlexService) Name() string {
	return "Plex"
}

// Connect checks the server and token, remembers the machine identifier used in playlist URIs
// and resolves the configured library name to a music section.
func (p *PlexService) Connect(ctx context.Context) error {
	var identity plexContainer
	if err := p.do(ctx, http.MethodGet, "/", nil, &identity); err != nil {
		return err
	}
	p.machineID = identity.MachineIdentifier

	sections, err := p.Sections(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.Type != "artist" {
			continue
		}
		if strings.EqualFold(s.Title, p.library) {
			p.sectionID = s.ID
			return nil
		}
		names = append(names, s.Title)
	}
	return fmt.Errorf("%w: %q on %s (available music libraries: %s)",
		shared.ErrSectionNotFound, p.library, p.baseURL, listOrNone(names))
}

// Sections lists every library section on the server.
func (p *PlexService) Sections(ctx context.Context) ([]Section, error) {
	var c plexContainer
	if err := p.do(ctx, http.MethodGet, "/library/sections", nil, &c); err != nil {
		return nil, err
	}

	sections := make([]Section, 0, len(c.Directories))
	for _, d := range c.Directories {
		sections = append(sections, Section{ID: d.Key, Title: d.Title, Type: d.Type})
	}
	return sections, nil
}

// SearchTracks searches the music section for tracks whose title contains title.
func (p *PlexService) SearchTracks(ctx context.Context, title string, filters match.Filters) ([]match.Track, error) {
	q := url.Values{"type": {plexTypeTrack}, "title": {title}}
	setFilters(q, filters)

	c, err := p.searchSection(ctx, q)
	if err != nil {
		return nil, err
	}
	return toTracks(c.Tracks), nil
}

// SearchArtists searches the music section for artists whose name contains title.
func (p *PlexService) SearchArtists(ctx context.Context, title string) ([]match.Artist, error) {
	c, err := p.searchSection(ctx, url.Values{"type": {plexTypeArtist}, "title": {title}})
	if err != nil {
		return nil, err
	}

	artists := make([]match.Artist, 0, len(c.Directories))
	for _, d := range c.Directories {
		artists = append(artists, match.Artist{ID: d.RatingKey, Title: d.Title})
	}
	return artists, nil
}

// SearchAlbums searches the music section for albums whose title contains title.
func (p *PlexService) SearchAlbums(ctx context.Context, title string, filters match.Filters) ([]match.Album, error) {
	q := url.Values{"type": {plexTypeAlbum}, "title": {title}}
	if filters.ArtistTitle != "" {
		q.Set("artist.title", filters.ArtistTitle)
	}

	c, err := p.searchSection(ctx, q)
	if err != nil {
		return nil, err
	}

	albums := make([]match.Album, 0, len(c.Directories))
	for _, d := range c.Directories {
		albums = append(albums, match.Album{ID: d.RatingKey, Title: d.Title, ArtistTitle: d.ParentTitle})
	}
	return albums, nil
}

// ArtistTracks returns every track of an artist across albums.
func (p *PlexService) ArtistTracks(ctx context.Context, artist match.Artist) ([]match.Track, error) {
	var c plexContainer
	if err := p.do(ctx, http.MethodGet, "/library/metadata/"+url.PathEscape(artist.ID)+"/allLeaves", nil, &c); err != nil {
		return nil, err
	}
	return toTracks(c.Tracks), nil
}

// AlbumTracks returns the tracks of an album in disc order.
func (p *PlexService) AlbumTracks(ctx context.Context, album match.Album) ([]match.Track, error) {
	var c plexContainer
	if err := p.do(ctx, http.MethodGet, "/library/metadata/"+url.PathEscape(album.ID)+"/children", nil, &c); err != nil {
		return nil, err
	}
	return toTracks(c.Tracks), nil
}

// Track fetches a track by rating key.
func (p *PlexService) Track(ctx context.Context, id string) (*match.Track, error) {
	var c plexContainer
	err := p.do(ctx, http.MethodGet, "/library/metadata/"+url.PathEscape(id), nil, &c)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: rating key %s", shared.ErrTrackNotFound, id)
		}
		return nil, err
	}
	if len(c.Tracks) == 0 {
		return nil, fmt.Errorf("%w: rating key %s is not a track", shared.ErrTrackNotFound, id)
	}
	t := c.Tracks[0].toTrack()
	return &t, nil
}

// Playlists lists the server's audio playlists.
func (p *PlexService) Playlists(ctx context.Context) ([]Playlist, error) {
	raw, err := p.audioPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	playlists := make([]Playlist, 0, len(raw))
	for _, pl := range raw {
		playlists = append(playlists, *pl.toPlaylist())
	}
	return playlists, nil
}

// PlaylistTracks returns the items of the named playlist.
func (p *PlexService) PlaylistTracks(ctx context.Context, name string) ([]match.Track, error) {
	pl, err := p.findPlaylist(ctx, name)
	if err != nil {
		return nil, err
	}

	var c plexContainer
	if err := p.do(ctx, http.MethodGet, "/playlists/"+url.PathEscape(pl.RatingKey)+"/items", nil, &c); err != nil {
		return nil, err
	}
	return toTracks(c.Tracks), nil
}

// CreatePlaylist creates an audio playlist. Plex cannot create an empty playlist so at least
// one track is required.
func (p *PlexService) CreatePlaylist(ctx context.Context, name string, tracks []match.Track) (*Playlist, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks were matched, cannot create empty playlist %q", shared.ErrInvalidArgument, name)
	}
	if p.machineID == "" {
		return nil, fmt.Errorf("%w: plex: call Connect first", shared.ErrNotAuthenticated)
	}

	first, rest := splitBatch(tracks)
	q := url.Values{
		"type":  {"audio"},
		"title": {name},
		"smart": {"0"},
		"uri":   {p.itemsURI(first)},
	}

	var c plexContainer
	if err := p.do(ctx, http.MethodPost, "/playlists", q, &c); err != nil {
		return nil, err
	}
	if len(c.Playlists) == 0 {
		return nil, fmt.Errorf("%w: plex did not return the created playlist %q", shared.ErrAPIRequest, name)
	}

	created := c.Playlists[0]
	if err := p.addItems(ctx, created.RatingKey, rest); err != nil {
		return nil, err
	}
	created.LeafCount = len(tracks)
	return created.toPlaylist(), nil
}

// AppendItems adds tracks to the end of the named playlist.
func (p *PlexService) AppendItems(ctx context.Context, name string, tracks []match.Track) (*Playlist, error) {
	pl, err := p.findPlaylist(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := p.addItems(ctx, pl.RatingKey, tracks); err != nil {
		return nil, err
	}
	pl.LeafCount += len(tracks)
	return pl.toPlaylist(), nil
}

func (p *PlexService) addItems(ctx context.Context, ratingKey string, tracks []match.Track) error {
	if len(tracks) > 0 && p.machineID == "" {
		return fmt.Errorf("%w: plex: call Connect first", shared.ErrNotAuthenticated)
	}
	for len(tracks) > 0 {
		var batch []match.Track
		batch, tracks = splitBatch(tracks)
		q := url.Values{"uri": {p.itemsURI(batch)}}
		if err := p.do(ctx, http.MethodPut, "/playlists/"+url.PathEscape(ratingKey)+"/items", q, nil); err != nil {
			return err
		}
	}
	return nil
}

func (p *PlexService) audioPlaylists(ctx context.Context) ([]plexPlaylist, error) {
	var c plexContainer
	if err := p.do(ctx, http.MethodGet, "/playlists", url.Values{"playlistType": {"audio"}}, &c); err != nil {
		return nil, err
	}
	return c.Playlists, nil
}

// findPlaylist looks up a non-smart audio playlist by exact title.
func (p *PlexService) findPlaylist(ctx context.Context, name string) (*plexPlaylist, error) {
	playlists, err := p.audioPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(playlists))
	for i := range playlists {
		if playlists[i].Title == name && !playlists[i].Smart {
			return &playlists[i], nil
		}
		names = append(names, playlists[i].Title)
	}
	return nil, fmt.Errorf("%w: %q on %s (available playlists: %s)",
		shared.ErrPlaylistNotFound, name, p.baseURL, listOrNone(names))
}

// itemsURI builds the server:// URI Plex expects when adding library items to a playlist.
func (p *PlexService) itemsURI(tracks []match.Track) string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", p.machineID, strings.Join(ids, ","))
}

func (p *PlexService) searchSection(ctx context.Context, q url.Values) (*plexContainer, error) {
	if p.sectionID == "" {
		return nil, fmt.Errorf("%w: plex: call Connect first", shared.ErrNotAuthenticated)
	}

	var c plexContainer
	if err := p.do(ctx, http.MethodGet, "/library/sections/"+url.PathEscape(p.sectionID)+"/all", q, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// errPlexNotFound marks a 404 so callers can translate it into a domain error.
var errPlexNotFound = fmt.Errorf("%w: plex returned 404", shared.ErrAPIRequest)

func isNotFound(err error) bool {
	return errors.Is(err, errPlexNotFound)
}

// do sends an authenticated request and decodes an XML MediaContainer into out when it is non-nil.
func (p *PlexService) do(ctx context.Context, method, path string, q url.Values, out any) error {
	u := p.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", p.token)
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Plex-Product", "spx")
	req.Header.Set("X-Plex-Client-Identifier", "spx")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: plex at %s: %v", shared.ErrServiceUnavailable, p.baseURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: plex at %s rejected token %s", shared.ErrUnauthorized, p.baseURL, shared.RedactSecret(p.token))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", errPlexNotFound, method, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: plex at %s returned %d", shared.ErrServiceUnavailable, p.baseURL, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: plex %s %s returned %d: %s", shared.ErrAPIRequest, method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode plex response for %s: %v", shared.ErrAPIRequest, path, err)
	}
	return nil
}

func setFilters(q url.Values, f match.Filters) {
	if f.ArtistTitle != "" {
		q.Set("artist.title", f.ArtistTitle)
	}
	if f.AlbumTitle != "" {
		q.Set("album.title", f.AlbumTitle)
	}
}

func toTracks(raw []plexTrack) []match.Track {
	tracks := make([]match.Track, 0, len(raw))
	for _, t := range raw {
		tracks = append(tracks, t.toTrack())
	}
	return tracks
}

func splitBatch(tracks []match.Track) (batch, rest []match.Track) {
	if len(tracks) <= plexURIBatch {
		return tracks, nil
	}
	return tracks[:plexURIBatch], tracks[plexURIBatch:]
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
