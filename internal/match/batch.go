package match

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Progress is reported once per resolved track. Index is the track's zero-based position in the
// input and Done counts resolved tracks so far; they differ when workers run in parallel.
type Progress struct {
	Index   int
	Done    int
	Total   int
	Outcome Outcome
}

// Result holds every outcome in input order plus the same outcomes split by status.
// The buckets partition Outcomes and keep its relative order.
type Result struct {
	Outcomes  []Outcome `json:"outcomes"`
	Matched   []Outcome `json:"matched"`
	Unmatched []Outcome `json:"unmatched"`
	Skipped   []Outcome `json:"skipped"`
}

// NewResult buckets outcomes by status.
func NewResult(outcomes []Outcome) *Result {
	r := &Result{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case Matched:
			r.Matched = append(r.Matched, o)
		case Skipped:
			r.Skipped = append(r.Skipped, o)
		default:
			r.Unmatched = append(r.Unmatched, o)
		}
	}
	return r
}

// Tracks returns the matched library tracks in source order.
func (r *Result) Tracks() []Track {
	tracks := make([]Track, 0, len(r.Matched))
	for _, o := range r.Matched {
		tracks = append(tracks, *o.Candidate)
	}
	return tracks
}

// MatchPercentage is the share of non-skipped tracks that matched.
func (r *Result) MatchPercentage() float64 {
	considered := len(r.Outcomes) - len(r.Skipped)
	if considered == 0 {
		return 0
	}
	return float64(len(r.Matched)) / float64(considered) * 100
}

// ResolverOpts configures [NewResolver]. Workers below 2 resolve sequentially.
type ResolverOpts struct {
	Workers int
	Logger  *log.Logger
}

// Resolver resolves whole playlists with an [Engine].
type Resolver struct {
	engine  *Engine
	workers int
	logger  *log.Logger
}

// NewResolver creates a resolver around engine.
func NewResolver(engine *Engine, opts ResolverOpts) *Resolver {
	workers := max(opts.Workers, 1)
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{engine: engine, workers: workers, logger: logger}
}

// Engine returns the engine used for single tracks.
func (r *Resolver) Engine() *Engine {
	return r.engine
}

// ResolveAll resolves tracks and returns their outcomes in input order.
//
// Every track is validated before the library is queried; a malformed track fails the whole
// batch with [ErrMalformedTrack] unless its id is in the skip list. The first library error stops the batch and cancels any
// in-flight work. onProgress may be nil; with several workers it is called from their
// goroutines one at a time.
func (r *Resolver) ResolveAll(ctx context.Context, tracks []SourceTrack, onProgress func(Progress)) (*Result, error) {
	for i, t := range tracks {
		if r.engine.overrides.Skipped(t.ID) {
			continue
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("track %d: %w", i+1, err)
		}
	}

	outcomes := make([]Outcome, len(tracks))
	var (
		mu   sync.Mutex
		done int
	)
	report := func(i int, o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		done++
		r.logger.Info("resolved", "n", done, "total", len(tracks), "status", o.Status, "track", o.Source, "strategy", o.StrategyName())
		if onProgress != nil {
			onProgress(Progress{Index: i, Done: done, Total: len(tracks), Outcome: o})
		}
	}

	if r.workers == 1 || len(tracks) < 2 {
		for i, t := range tracks {
			o, err := r.engine.Resolve(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", t.ID, err)
			}
			outcomes[i] = o
			report(i, o)
		}
		return NewResult(outcomes), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, t := range tracks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o, err := r.engine.Resolve(gctx, t)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", t.ID, err)
			}
			outcomes[i] = o
			report(i, o)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewResult(outcomes), nil
}
