package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/shared"
)

const plexToken = "plex-secret-token"

// fakePlex serves a small music library over the Plex XML API.
type fakePlex struct {
	mu       sync.Mutex
	requests []*http.Request
	created  url.Values
	appended []url.Values
}

func (f *fakePlex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()

	if r.Header.Get("X-Plex-Token") != plexToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	q := r.URL.Query()
	switch {
	case r.URL.Path == "/":
		fmt.Fprint(w, `<MediaContainer machineIdentifier="machine-1" friendlyName="home" version="1.40"/>`)
	case r.URL.Path == "/library/sections":
		fmt.Fprint(w, `<MediaContainer size="2">
			<Directory key="1" type="movie" title="Movies"/>
			<Directory key="3" type="artist" title="Music"/>
			<Directory key="4" type="artist" title="Audiobooks"/>
		</MediaContainer>`)
	case r.URL.Path == "/library/sections/3/all" && q.Get("type") == "10":
		if q.Get("artist.title") == "nobody" {
			fmt.Fprint(w, `<MediaContainer size="0"/>`)
			return
		}
		fmt.Fprint(w, `<MediaContainer size="1">
			<Track ratingKey="101" title="Let It Be" grandparentTitle="The Beatles" parentTitle="Let It Be... Naked"/>
		</MediaContainer>`)
	case r.URL.Path == "/library/sections/3/all" && q.Get("type") == "8":
		fmt.Fprint(w, `<MediaContainer><Directory ratingKey="10" type="artist" title="The Beatles"/></MediaContainer>`)
	case r.URL.Path == "/library/sections/3/all" && q.Get("type") == "9":
		fmt.Fprint(w, `<MediaContainer><Directory ratingKey="20" type="album" title="Abbey Road" parentTitle="The Beatles"/></MediaContainer>`)
	case r.URL.Path == "/library/metadata/10/allLeaves", r.URL.Path == "/library/metadata/20/children":
		fmt.Fprint(w, `<MediaContainer>
			<Track ratingKey="201" title="Come Together" grandparentTitle="The Beatles" parentTitle="Abbey Road"/>
			<Track ratingKey="202" title="Something" grandparentTitle="The Beatles" parentTitle="Abbey Road"/>
		</MediaContainer>`)
	case r.URL.Path == "/library/metadata/201":
		fmt.Fprint(w, `<MediaContainer><Track ratingKey="201" title="Come Together" grandparentTitle="The Beatles" parentTitle="Abbey Road"/></MediaContainer>`)
	case r.URL.Path == "/library/metadata/20":
		fmt.Fprint(w, `<MediaContainer><Directory ratingKey="20" type="album" title="Abbey Road"/></MediaContainer>`)
	case r.URL.Path == "/playlists" && r.Method == http.MethodGet:
		fmt.Fprint(w, `<MediaContainer>
			<Playlist ratingKey="500" title="Road Trip" playlistType="audio" smart="0" leafCount="2"/>
			<Playlist ratingKey="501" title="Recently Added" playlistType="audio" smart="1" leafCount="50"/>
		</MediaContainer>`)
	case r.URL.Path == "/playlists" && r.Method == http.MethodPost:
		f.mu.Lock()
		f.created = q
		f.mu.Unlock()
		fmt.Fprintf(w, `<MediaContainer><Playlist ratingKey="600" title=%q playlistType="audio" leafCount="1"/></MediaContainer>`, q.Get("title"))
	case r.URL.Path == "/playlists/500/items" && r.Method == http.MethodGet:
		fmt.Fprint(w, `<MediaContainer><Track ratingKey="201" title="Come Together" grandparentTitle="The Beatles" parentTitle="Abbey Road"/></MediaContainer>`)
	case strings.HasSuffix(r.URL.Path, "/items") && r.Method == http.MethodPut:
		f.mu.Lock()
		f.appended = append(f.appended, q)
		f.mu.Unlock()
		fmt.Fprint(w, `<MediaContainer/>`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestPlex(t *testing.T, token, library string) (*PlexService, *fakePlex) {
	t.Helper()

	fake := &fakePlex{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	return NewPlexService(shared.PlexConfig{BaseURL: server.URL + "/", Token: token, Library: library}), fake
}

func connectedPlex(t *testing.T) (*PlexService, *fakePlex) {
	t.Helper()
	p, fake := newTestPlex(t, plexToken, "music")
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return p, fake
}

func TestPlexConnect(t *testing.T) {
	t.Run("resolves section case-insensitively", func(t *testing.T) {
		p, _ := connectedPlex(t)
		if p.sectionID != "3" || p.machineID != "machine-1" {
			t.Errorf("unexpected connection state section=%q machine=%q", p.sectionID, p.machineID)
		}
	})

	t.Run("unknown section lists music libraries", func(t *testing.T) {
		p, _ := newTestPlex(t, plexToken, "Vinyl")
		err := p.Connect(context.Background())
		if !errors.Is(err, shared.ErrSectionNotFound) {
			t.Fatalf("expected ErrSectionNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), "Music, Audiobooks") || strings.Contains(err.Error(), "Movies") {
			t.Errorf("error should list music sections only: %v", err)
		}
	})

	t.Run("bad token is unauthorized and redacted", func(t *testing.T) {
		p, _ := newTestPlex(t, "wrong-token-value", "Music")
		err := p.Connect(context.Background())
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if !strings.Contains(err.Error(), "wron****") || strings.Contains(err.Error(), "wrong-token-value") {
			t.Errorf("token should be redacted: %v", err)
		}
		if !strings.Contains(err.Error(), p.baseURL) {
			t.Errorf("error should name the server: %v", err)
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		p := NewPlexService(shared.PlexConfig{BaseURL: "http://127.0.0.1:1", Token: plexToken, Library: "Music"})
		if err := p.Connect(context.Background()); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("search before connect", func(t *testing.T) {
		p, _ := newTestPlex(t, plexToken, "Music")
		if _, err := p.SearchTracks(context.Background(), "x", match.Filters{}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestPlexLibrary(t *testing.T) {
	ctx := context.Background()
	var _ match.Library = (*PlexService)(nil)

	t.Run("SearchTracks sends filters", func(t *testing.T) {
		p, fake := connectedPlex(t)

		tracks, err := p.SearchTracks(ctx, "let it be", match.Filters{ArtistTitle: "the beatles", AlbumTitle: "let it be"})
		if err != nil {
			t.Fatalf("SearchTracks() error = %v", err)
		}
		want := match.Track{ID: "101", Title: "Let It Be", ArtistTitle: "The Beatles", AlbumTitle: "Let It Be... Naked"}
		if len(tracks) != 1 || tracks[0] != want {
			t.Errorf("unexpected tracks %+v", tracks)
		}

		q := fake.requests[len(fake.requests)-1].URL.Query()
		if q.Get("title") != "let it be" || q.Get("artist.title") != "the beatles" || q.Get("album.title") != "let it be" {
			t.Errorf("unexpected query %v", q)
		}
	})

	t.Run("SearchTracks empty result", func(t *testing.T) {
		p, _ := connectedPlex(t)
		tracks, err := p.SearchTracks(ctx, "x", match.Filters{ArtistTitle: "nobody"})
		if err != nil || len(tracks) != 0 {
			t.Errorf("expected no tracks, got %v, %v", tracks, err)
		}
	})

	t.Run("artists and albums", func(t *testing.T) {
		p, fake := connectedPlex(t)

		artists, err := p.SearchArtists(ctx, "the beatles")
		if err != nil || len(artists) != 1 || artists[0].ID != "10" {
			t.Fatalf("SearchArtists() = %+v, %v", artists, err)
		}

		albums, err := p.SearchAlbums(ctx, "abbey road", match.Filters{ArtistTitle: "the beatles"})
		if err != nil || len(albums) != 1 || albums[0].ArtistTitle != "The Beatles" {
			t.Fatalf("SearchAlbums() = %+v, %v", albums, err)
		}
		if got := fake.requests[len(fake.requests)-1].URL.Query().Get("artist.title"); got != "the beatles" {
			t.Errorf("album search should filter by artist, got %q", got)
		}

		byArtist, err := p.ArtistTracks(ctx, artists[0])
		if err != nil || len(byArtist) != 2 {
			t.Errorf("ArtistTracks() = %+v, %v", byArtist, err)
		}

		byAlbum, err := p.AlbumTracks(ctx, albums[0])
		if err != nil || len(byAlbum) != 2 || byAlbum[1].Title != "Something" {
			t.Errorf("AlbumTracks() = %+v, %v", byAlbum, err)
		}
	})

	t.Run("Track by rating key", func(t *testing.T) {
		p, _ := connectedPlex(t)

		track, err := p.Track(ctx, "201")
		if err != nil || track.Title != "Come Together" {
			t.Fatalf("Track() = %+v, %v", track, err)
		}

		if _, err := p.Track(ctx, "999"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound for missing key, got %v", err)
		}
		if _, err := p.Track(ctx, "20"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound for an album key, got %v", err)
		}
	})
}

func TestPlexPlaylists(t *testing.T) {
	ctx := context.Background()
	var _ Destination = (*PlexService)(nil)

	t.Run("Playlists", func(t *testing.T) {
		p, _ := connectedPlex(t)
		playlists, err := p.Playlists(ctx)
		if err != nil || len(playlists) != 2 || playlists[0].TrackCount != 2 {
			t.Errorf("Playlists() = %+v, %v", playlists, err)
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		p, _ := connectedPlex(t)
		tracks, err := p.PlaylistTracks(ctx, "Road Trip")
		if err != nil || len(tracks) != 1 || tracks[0].ID != "201" {
			t.Errorf("PlaylistTracks() = %+v, %v", tracks, err)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		p, fake := connectedPlex(t)
		tracks := []match.Track{{ID: "201"}, {ID: "202"}}

		pl, err := p.CreatePlaylist(ctx, "New Mix", tracks)
		if err != nil {
			t.Fatalf("CreatePlaylist() error = %v", err)
		}
		if pl.ID != "600" || pl.TrackCount != 2 {
			t.Errorf("unexpected playlist %+v", pl)
		}

		want := "server://machine-1/com.plexapp.plugins.library/library/metadata/201,202"
		if fake.created.Get("uri") != want || fake.created.Get("type") != "audio" || fake.created.Get("smart") != "0" {
			t.Errorf("unexpected create query %v", fake.created)
		}
		if len(fake.appended) != 0 {
			t.Errorf("small playlists should be created in one request")
		}
	})

	t.Run("CreatePlaylist batches large playlists", func(t *testing.T) {
		p, fake := connectedPlex(t)
		tracks := make([]match.Track, plexURIBatch+5)
		for i := range tracks {
			tracks[i] = match.Track{ID: fmt.Sprint(1000 + i)}
		}

		if _, err := p.CreatePlaylist(ctx, "Big", tracks); err != nil {
			t.Fatalf("CreatePlaylist() error = %v", err)
		}
		if len(fake.appended) != 1 || !strings.HasSuffix(fake.appended[0].Get("uri"), "1200,1201,1202,1203,1204") {
			t.Errorf("expected remaining tracks appended in one batch, got %v", fake.appended)
		}
	})

	t.Run("CreatePlaylist rejects empty", func(t *testing.T) {
		p, _ := connectedPlex(t)
		if _, err := p.CreatePlaylist(ctx, "Empty", nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("AppendItems", func(t *testing.T) {
		p, fake := connectedPlex(t)
		pl, err := p.AppendItems(ctx, "Road Trip", []match.Track{{ID: "202"}})
		if err != nil {
			t.Fatalf("AppendItems() error = %v", err)
		}
		if pl.TrackCount != 3 || len(fake.appended) != 1 {
			t.Errorf("unexpected append result %+v, requests %v", pl, fake.appended)
		}
	})

	t.Run("AppendItems to missing playlist lists names", func(t *testing.T) {
		p, _ := connectedPlex(t)
		_, err := p.AppendItems(ctx, "Nope", []match.Track{{ID: "202"}})
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), "Road Trip, Recently Added") {
			t.Errorf("error should list playlists: %v", err)
		}
	})

	t.Run("smart playlists cannot be appended to", func(t *testing.T) {
		p, _ := connectedPlex(t)
		if _, err := p.AppendItems(ctx, "Recently Added", []match.Track{{ID: "1"}}); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})
}

func TestPlexSections(t *testing.T) {
	p, _ := newTestPlex(t, plexToken, "Music")
	sections, err := p.Sections(context.Background())
	if err != nil {
		t.Fatalf("Sections() error = %v", err)
	}
	if len(sections) != 3 || sections[1] != (Section{ID: "3", Title: "Music", Type: "artist"}) {
		t.Errorf("unexpected sections %+v", sections)
	}
}
