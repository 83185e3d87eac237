package match

import (
	"context"

	"golang.org/x/time/rate"
)

// limitedLibrary waits on a shared limiter before every library call.
type limitedLibrary struct {
	lib     Library
	limiter *rate.Limiter
}

// RateLimited wraps lib so that calls from all workers share perSecond requests per second.
// A non-positive rate returns lib unchanged.
func RateLimited(lib Library, perSecond float64) Library {
	if perSecond <= 0 {
		return lib
	}
	burst := max(int(perSecond), 1)
	return &limitedLibrary{lib: lib, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *limitedLibrary) SearchTracks(ctx context.Context, title string, filters Filters) ([]Track, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.lib.SearchTracks(ctx, title, filters)
}

func (l *limitedLibrary) SearchArtists(ctx context.Context, title string) ([]Artist, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.lib.SearchArtists(ctx, title)
}

func (l *limitedLibrary) SearchAlbums(ctx context.Context, title string, filters Filters) ([]Album, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.lib.SearchAlbums(ctx, title, filters)
}

func (l *limitedLibrary) ArtistTracks(ctx context.Context, artist Artist) ([]Track, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.lib.ArtistTracks(ctx, artist)
}

func (l *limitedLibrary) AlbumTracks(ctx context.Context, album Album) ([]Track, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.lib.AlbumTracks(ctx, album)
}

func (l *limitedLibrary) Track(ctx context.Context, id string) (*Track, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.lib.Track(ctx, id)
}
