package match

import (
	"fmt"
	"strings"
)

// Strategy is one way of searching the library for a source track.
type Strategy int

const (
	// Exact searches by the raw title filtered by raw artist and album and accepts only identical metadata.
	Exact Strategy = iota + 1
	// Strict searches by normalized title, artist and album and checks album similarity.
	Strict
	// Loose searches by normalized title alone and ranks candidates by artist and album similarity.
	Loose
	// ByArtist finds the artist by exact normalized name, then the track by exact normalized title.
	ByArtist
	// ArtistFuzzy is ByArtist with similarity in place of equality.
	ArtistFuzzy
	// ByAlbum finds the best album by album and artist similarity, then the track within it.
	ByAlbum
	// AlbumArtist searches albums filtered by artist, then the track within the best album.
	AlbumArtist
)

var strategyNames = map[Strategy]string{
	Exact:       "exact",
	Strict:      "strict",
	Loose:       "loose",
	ByArtist:    "artist",
	ArtistFuzzy: "artistfuzzy",
	ByAlbum:     "album",
	AlbumArtist: "albumartist",
}

// Strategies lists every strategy in declaration order.
var Strategies = []Strategy{Exact, Strict, Loose, ByArtist, ArtistFuzzy, ByAlbum, AlbumArtist}

// Descending is the name that expands to [DescendingPattern].
const Descending = "descending"

// DescendingPattern is tried strictest first.
var DescendingPattern = Pattern{Exact, Strict, AlbumArtist, ByAlbum, ByArtist, Loose}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return ""
}

// MarshalText implements [encoding.TextMarshaler].
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStrategy returns the strategy with the given case-insensitive name.
func ParseStrategy(name string) (Strategy, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, s := range Strategies {
		if strategyNames[s] == want {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w %q (valid: %s)", ErrUnknownStrategy, name, validNames())
}

func validNames() string {
	names := make([]string, 0, len(Strategies)+1)
	for _, s := range Strategies {
		names = append(names, s.String())
	}
	return strings.Join(append(names, Descending), ", ")
}

// Pattern is a non-empty ordered list of strategies tried until one finds a candidate.
type Pattern []Strategy

// ParsePattern validates names and builds a pattern.
//
// A single "descending" expands to [DescendingPattern]; it cannot appear alongside other names.
func ParsePattern(names []string) (Pattern, error) {
	if len(names) == 0 {
		return nil, ErrEmptyPattern
	}

	if len(names) == 1 && strings.EqualFold(strings.TrimSpace(names[0]), Descending) {
		return append(Pattern(nil), DescendingPattern...), nil
	}

	p := make(Pattern, 0, len(names))
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), Descending) {
			return nil, fmt.Errorf("%w: %s", ErrNestedPattern, strings.Join(names, ", "))
		}
		s, err := ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		p = append(p, s)
	}
	return p, nil
}

func (p Pattern) String() string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}
