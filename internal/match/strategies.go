package match

import (
	"context"
	"fmt"
)

// searcher runs individual strategies against a library. A nil track with a nil error means
// the strategy found nothing.
type searcher struct {
	lib       Library
	threshold float64
}

func (s searcher) run(ctx context.Context, strategy Strategy, t SourceTrack) (*Track, error) {
	switch strategy {
	case Exact:
		return s.exact(ctx, t)
	case Strict:
		return s.strict(ctx, t)
	case Loose:
		return s.loose(ctx, t)
	case ByArtist:
		return s.artist(ctx, t, false)
	case ArtistFuzzy:
		return s.artist(ctx, t, true)
	case ByAlbum:
		return s.album(ctx, t, false)
	case AlbumArtist:
		return s.album(ctx, t, true)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
	}
}

// passes reports whether score clears the threshold.
func (s searcher) passes(score float64) bool {
	return score > s.threshold
}

func (s searcher) exact(ctx context.Context, t SourceTrack) (*Track, error) {
	found, err := s.lib.SearchTracks(ctx, t.Title, Filters{ArtistTitle: t.Artist, AlbumTitle: t.Album})
	if err != nil {
		return nil, err
	}

	for i := range found {
		c := found[i]
		if c.Title == t.Title && c.ArtistTitle == t.Artist && c.AlbumTitle == t.Album {
			return &c, nil
		}
	}
	return nil, nil
}

func (s searcher) strict(ctx context.Context, t SourceTrack) (*Track, error) {
	title, artist, album := Normalize(t.Title), Normalize(t.Artist), Normalize(t.Album)
	if album == "" {
		return nil, nil
	}
	found, err := s.lib.SearchTracks(ctx, title, Filters{ArtistTitle: artist, AlbumTitle: album})
	if err != nil {
		return nil, err
	}

	for i := range found {
		if s.passes(Similarity(album, Normalize(found[i].AlbumTitle))) {
			c := found[i]
			return &c, nil
		}
	}
	return nil, nil
}

// loose ranks title matches by artist similarity plus a fifth of album similarity.
// The first candidate with the highest positive score wins.
func (s searcher) loose(ctx context.Context, t SourceTrack) (*Track, error) {
	title, artist, album := Normalize(t.Title), Normalize(t.Artist), Normalize(t.Album)
	found, err := s.lib.SearchTracks(ctx, title, Filters{})
	if err != nil {
		return nil, err
	}

	var best *Track
	bestScore := 0.0
	for i := range found {
		score := Similarity(artist, Normalize(found[i].ArtistTitle)) + 0.2*Similarity(album, Normalize(found[i].AlbumTitle))
		if score > bestScore {
			best, bestScore = &found[i], score
		}
	}
	return copyTrack(best), nil
}

// artist picks the best artist for the source artist, then the best track of that artist.
// Without fuzzy both steps require equal normalized names.
func (s searcher) artist(ctx context.Context, t SourceTrack, fuzzy bool) (*Track, error) {
	title, artistName := Normalize(t.Title), Normalize(t.Artist)
	artists, err := s.lib.SearchArtists(ctx, artistName)
	if err != nil {
		return nil, err
	}

	var best *Artist
	bestScore := 0.0
	for i := range artists {
		score, ok := s.compare(artistName, Normalize(artists[i].Title), fuzzy)
		if ok && score > bestScore {
			best, bestScore = &artists[i], score
		}
	}
	if best == nil {
		return nil, nil
	}

	tracks, err := s.lib.ArtistTracks(ctx, *best)
	if err != nil {
		return nil, err
	}

	var match *Track
	bestScore = 0
	for i := range tracks {
		score, ok := s.compare(title, Normalize(tracks[i].Title), fuzzy)
		if ok && score > bestScore {
			match, bestScore = &tracks[i], score
		}
	}
	return copyTrack(match), nil
}

// compare scores normalized strings a and b. Exact comparison scores 100 on equality.
func (s searcher) compare(a, b string, fuzzy bool) (float64, bool) {
	if !fuzzy {
		return 100, a == b
	}
	score := Similarity(a, b)
	return score, s.passes(score)
}

// album picks the best album, then the first of its tracks whose title clears the threshold.
//
// With byArtist the album search is filtered by artist and albums are ranked on title alone;
// otherwise albums are ranked on the sum of title and artist similarity.
func (s searcher) album(ctx context.Context, t SourceTrack, byArtist bool) (*Track, error) {
	title, artist, albumTitle := Normalize(t.Title), Normalize(t.Artist), Normalize(t.Album)
	if albumTitle == "" {
		return nil, nil
	}

	filters := Filters{}
	if byArtist {
		filters.ArtistTitle = artist
	}
	albums, err := s.lib.SearchAlbums(ctx, albumTitle, filters)
	if err != nil {
		return nil, err
	}

	var best *Album
	bestScore := 0.0
	for i := range albums {
		score := Similarity(Normalize(albums[i].Title), albumTitle)
		if !byArtist {
			score += Similarity(Normalize(albums[i].ArtistTitle), artist)
		}
		if score > bestScore {
			best, bestScore = &albums[i], score
		}
	}
	if best == nil {
		return nil, nil
	}

	tracks, err := s.lib.AlbumTracks(ctx, *best)
	if err != nil {
		return nil, err
	}
	for i := range tracks {
		if s.passes(Similarity(Normalize(tracks[i].Title), title)) {
			return copyTrack(&tracks[i]), nil
		}
	}
	return nil, nil
}

func copyTrack(t *Track) *Track {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
