package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spx/internal/match"
	"github.com/urfave/cli/v3"
)

// Match resolves a single track given on the command line and prints which strategy found it.
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireConfig(); err != nil {
		return err
	}

	track := match.SourceTrack{
		ID:     cmd.String("id"),
		Title:  cmd.String("title"),
		Artist: cmd.String("artist"),
		Album:  cmd.String("album"),
	}
	if err := track.Validate(); err != nil {
		return err
	}

	engine, err := r.matchEngine(ctx, cmd.StringSlice("pattern"))
	if err != nil {
		return err
	}

	r.logger.Debug("resolving track", "track", track.String(), "pattern", engine.Pattern().String())
	outcome, err := engine.Resolve(ctx, track)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", track, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(outcome, true)
	}

	switch outcome.Status {
	case match.Matched:
		c := outcome.Candidate
		how := "strategy " + outcome.StrategyName()
		if outcome.Pinned {
			how = "pinned"
		}
		r.writePlain("✓ %s\n", track)
		r.writePlain("  → %s (%s)\n", c, how)
		r.writePlain("  Rating key: %s\n", c.ID)
	case match.Skipped:
		r.writePlain("- %s is listed in the skip file\n", track)
	default:
		r.writePlain("✗ %s\n", track)
		r.writePlain("  No match (tried: %s)\n", engine.Pattern())
	}
	return nil
}
