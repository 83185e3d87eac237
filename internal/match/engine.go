package match

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/shared"
)

// Status classifies the resolution of one source track.
type Status int

const (
	Unmatched Status = iota
	Matched
	Skipped
)

func (s Status) String() string {
	switch s {
	case Matched:
		return "matched"
	case Skipped:
		return "skipped"
	default:
		return "unmatched"
	}
}

// MarshalText implements [encoding.TextMarshaler] so reports carry the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the resolution of one source track.
//
// Candidate is set only when Status is [Matched]. Strategy names the strategy that found it and
// is zero for pinned tracks.
type Outcome struct {
	Source    SourceTrack `json:"source"`
	Status    Status      `json:"status"`
	Candidate *Track      `json:"candidate,omitempty"`
	Strategy  Strategy    `json:"strategy,omitempty"`
	Pinned    bool        `json:"pinned,omitempty"`
}

// StrategyName returns the strategy name, "pinned" for pins and "" when nothing matched.
func (o Outcome) StrategyName() string {
	if o.Pinned {
		return "pinned"
	}
	return o.Strategy.String()
}

// EngineOpts configures [NewEngine]. A threshold that is not positive means [DefaultThreshold].
type EngineOpts struct {
	Library   Library
	Pattern   Pattern
	Overrides *Overrides
	Threshold float64
	Logger    *log.Logger
}

// Engine resolves single source tracks. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	search    searcher
	pattern   Pattern
	overrides *Overrides
	logger    *log.Logger
}

// NewEngine validates opts and builds an engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Library == nil {
		return nil, fmt.Errorf("%w: library is required", shared.ErrInvalidConfig)
	}
	if len(opts.Pattern) == 0 {
		return nil, ErrEmptyPattern
	}
	for _, s := range opts.Pattern {
		if s.String() == "" {
			return nil, fmt.Errorf("%w %d (valid: %s)", ErrUnknownStrategy, int(s), validNames())
		}
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Engine{
		search:    searcher{lib: opts.Library, threshold: threshold},
		pattern:   append(Pattern(nil), opts.Pattern...),
		overrides: opts.Overrides,
		logger:    logger,
	}, nil
}

// Pattern returns the strategies the engine tries, in order.
func (e *Engine) Pattern() Pattern {
	return append(Pattern(nil), e.pattern...)
}

// Resolve classifies one source track.
//
// Skipped tracks never reach the library. Pinned tracks are fetched by id; a pin to a missing item
// fails with [ErrOverrideTarget]. Otherwise the pattern runs until a strategy finds a candidate.
// Errors are returned only for library failures; finding nothing yields [Unmatched].
func (e *Engine) Resolve(ctx context.Context, t SourceTrack) (Outcome, error) {
	out := Outcome{Source: t, Status: Unmatched}

	if e.overrides.Skipped(t.ID) {
		e.logger.Debug("skipping track", "id", t.ID, "track", t)
		out.Status = Skipped
		return out, nil
	}

	if libraryID, ok := e.overrides.Pin(t.ID); ok {
		c, err := e.search.lib.Track(ctx, libraryID)
		if err != nil {
			if errors.Is(err, shared.ErrTrackNotFound) {
				return out, fmt.Errorf("%w: %s pinned to %s", ErrOverrideTarget, t.ID, libraryID)
			}
			return out, err
		}
		if c == nil {
			return out, fmt.Errorf("%w: %s pinned to %s", ErrOverrideTarget, t.ID, libraryID)
		}
		e.logger.Debug("pinned track", "id", t.ID, "library_id", libraryID)
		out.Status, out.Candidate, out.Pinned = Matched, c, true
		return out, nil
	}

	for _, strategy := range e.pattern {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		c, err := e.search.run(ctx, strategy, t)
		if err != nil {
			return out, fmt.Errorf("%s search for %q: %w", strategy, t.Title, err)
		}
		if c != nil {
			e.logger.Debug("matched", "strategy", strategy, "track", t, "candidate", c)
			out.Status, out.Candidate, out.Strategy = Matched, c, strategy
			return out, nil
		}
		e.logger.Debug("no candidate", "strategy", strategy, "track", t)
	}
	return out, nil
}
