package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/desertthunder/spx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync resolves a Spotify playlist against the Plex library, writes the matches and the reports.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireConfig(); err != nil {
		return err
	}
	if w := cmd.Int("workers"); w > 0 {
		r.config.Sync.Workers = w
	}

	opts, err := r.syncOpts(cmd)
	if err != nil {
		return err
	}
	if opts.PlaylistID == "" {
		return fmt.Errorf("%w: --playlist or sync.playlist_id", shared.ErrMissingArgument)
	}

	format := cmd.String("format")
	if format == "" {
		format = r.config.Output.Format
	}
	if format, err = formatter.ParseFormat(format); err != nil {
		return err
	}

	engine, err := r.playlistEngine(ctx, cmd.StringSlice("pattern"), !cmd.Bool("no-history"))
	if err != nil {
		return err
	}

	r.logger.Info("starting sync", "playlist", opts.PlaylistID, "mode", opts.Mode, "dry_run", opts.DryRun)

	quiet := cmd.Bool("quiet")
	progressCh := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if !quiet {
				r.printProgress(update)
			}
		}
	}()

	result, err := engine.WithBlockingProgress().Run(ctx, opts, progressCh)
	close(progressCh)
	<-done

	if result != nil && result.Result != nil {
		if reportErr := r.writeReports(result, format, cmd.String("write-overrides")); reportErr != nil {
			r.logger.Error("failed to write reports", "error", reportErr)
		}
	}
	if err != nil {
		return err
	}

	r.printSummary(result, opts.DryRun)
	return nil
}

// syncOpts merges the command flags over the [sync] section of the configuration.
func (r *Runner) syncOpts(cmd *cli.Command) (tasks.SyncOpts, error) {
	opts := tasks.SyncOpts{
		PlaylistID:   r.config.Sync.PlaylistID,
		PlaylistName: r.config.Sync.PlaylistName,
		Mode:         r.config.Sync.Mode,
		DryRun:       cmd.Bool("dry-run"),
	}
	if v := cmd.String("playlist"); v != "" {
		opts.PlaylistID = v
	}
	if v := cmd.String("name"); v != "" {
		opts.PlaylistName = v
	}
	if v := cmd.String("mode"); v != "" {
		opts.Mode = shared.SyncMode(v)
	}

	if opts.Mode == "" {
		opts.Mode = shared.SyncFromScratch
	}
	mode, err := shared.ParseSyncMode(string(opts.Mode))
	if err != nil {
		return opts, err
	}
	opts.Mode = mode
	return opts, nil
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FetchSource, tasks.FetchDest:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.ResolveTracks:
		if update.Step == 0 {
			r.writePlain("\n🔍 %s\n", update.Message)
		} else {
			r.writePlain("   %s\n", update.Message)
		}
	case tasks.WritePlaylist:
		r.writePlain("\n📝 %s\n", update.Message)
	}
}

// writeReports writes the configured unmatched and matched reports and the override template.
// Skipped tracks are listed in the unmatched report.
func (r *Runner) writeReports(result *tasks.SyncResult, format, overridesPath string) error {
	res := result.Result
	out := r.config.Output

	if out.UnmatchedFile != "" {
		outcomes := append(append([]match.Outcome(nil), res.Unmatched...), res.Skipped...)
		report := formatter.NewReport(fmt.Sprintf("Unmatched tracks from %s", result.Source.Name), result.Destination, outcomes)
		if err := formatter.WriteReport(report, format, out.UnmatchedFile); err != nil {
			return err
		}
		r.logger.Info("wrote unmatched report", "path", out.UnmatchedFile, "tracks", len(outcomes))
	}

	if out.MatchedFile != "" {
		report := formatter.NewReport(fmt.Sprintf("Matched tracks from %s", result.Source.Name), result.Destination, res.Matched)
		if err := formatter.WriteReport(report, format, out.MatchedFile); err != nil {
			return err
		}
		r.logger.Info("wrote matched report", "path", out.MatchedFile, "tracks", len(res.Matched))
	}

	if overridesPath != "" {
		n, err := formatter.WriteOverrideTemplate(overridesPath, res.Outcomes)
		if err != nil {
			return err
		}
		r.logger.Info("wrote override template", "path", overridesPath, "tracks", n)
		r.writePlain("✓ Override template with %d tracks written to %s\n", n, overridesPath)
	}
	return nil
}

func (r *Runner) printSummary(result *tasks.SyncResult, dryRun bool) {
	res := result.Result

	r.writePlain("\n")
	if dryRun {
		r.writePlainHeader("Dry Run Complete")
	} else {
		r.writePlainHeader("Sync Complete!")
	}
	r.writePlain("Source: %s (%d tracks)\n", result.Source.Name, len(res.Outcomes))
	r.writePlain("Destination: %s (%s)\n", result.Destination, result.Mode)
	r.writePlain("Matched: %d/%d (%.1f%%)\n", len(res.Matched), len(res.Outcomes)-len(res.Skipped), res.MatchPercentage())
	if len(res.Skipped) > 0 {
		r.writePlain("Skipped: %d\n", len(res.Skipped))
	}
	if dryRun {
		r.writePlain("Would add: %d\n", len(result.Added))
	} else {
		r.writePlain("Added: %d\n", len(result.Added))
	}
	if result.Present > 0 {
		r.writePlain("Already present: %d\n", result.Present)
	}
	if result.Run != nil && result.Run.Sequence() > 0 {
		r.writePlain("Run: #%d\n", result.Run.Sequence())
	}
	r.writePlain("Took: %s\n", shared.FormatDuration(result.Elapsed))

	if len(res.Unmatched) > 0 {
		r.writePlain("\nUnmatched %d tracks:\n", len(res.Unmatched))
		for _, o := range res.Unmatched {
			r.writePlain("  - %s\n", o.Source)
		}
	}
}
