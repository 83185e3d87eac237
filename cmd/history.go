package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
)

// runView is the JSON shape of a stored run.
type runView struct {
	ID              string     `json:"id"`
	Number          int        `json:"number"`
	SourceID        string     `json:"source_playlist_id"`
	SourceName      string     `json:"source_playlist_name"`
	Destination     string     `json:"destination_playlist"`
	Mode            string     `json:"mode"`
	Pattern         string     `json:"pattern"`
	Status          string     `json:"status"`
	Error           string     `json:"error,omitempty"`
	Total           int        `json:"total"`
	Matched         int        `json:"matched"`
	Unmatched       int        `json:"unmatched"`
	Skipped         int        `json:"skipped"`
	Added           int        `json:"added"`
	MatchPercentage float64    `json:"match_percentage"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

func newRunView(r *models.SyncRun) runView {
	return runView{
		ID:              r.ID(),
		Number:          r.Sequence(),
		SourceID:        r.SourcePlaylistID(),
		SourceName:      r.SourcePlaylistName(),
		Destination:     r.DestinationPlaylist(),
		Mode:            r.Mode(),
		Pattern:         r.Pattern(),
		Status:          string(r.Status()),
		Error:           r.ErrorMessage(),
		Total:           r.Total(),
		Matched:         r.Matched(),
		Unmatched:       r.Unmatched(),
		Skipped:         r.Skipped(),
		Added:           r.Added(),
		MatchPercentage: r.MatchPercentage(),
		StartedAt:       r.StartedAt(),
		FinishedAt:      r.FinishedAt(),
	}
}

// HistoryList prints recent runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{"limit": cmd.Int("limit")}
	if s := cmd.String("status"); s != "" {
		status, err := models.ParseRunStatus(s)
		if err != nil {
			return err
		}
		criteria["status"] = string(status)
	}

	history, err := r.history()
	if err != nil {
		return err
	}
	runs, err := history.Runs.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, len(runs))
		for i, run := range runs {
			views[i] = newRunView(run)
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		r.writePlain("No runs recorded yet.\n")
		return nil
	}

	r.writePlain("%-5s %-17s %-10s %-13s %-9s %s\n", "RUN", "STARTED", "STATUS", "MODE", "MATCHED", "PLAYLIST")
	for _, run := range runs {
		r.writePlain("#%-4d %-17s %-10s %-13s %-9s %s → %s\n",
			run.Sequence(),
			run.StartedAt().Local().Format("2006-01-02 15:04"),
			run.Status(),
			run.Mode(),
			fmt.Sprintf("%d/%d", run.Matched(), run.Total()-run.Skipped()),
			run.SourcePlaylistName(),
			run.DestinationPlaylist(),
		)
	}
	return nil
}

// HistoryShow renders the outcomes of one run as a report, on stdout or into a file.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("run")
	if ref == "" {
		return fmt.Errorf("%w: run ID or number", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	history, err := r.history()
	if err != nil {
		return err
	}
	detail, err := history.Show(ref)
	if err != nil {
		return err
	}

	run := detail.Run
	report := formatter.NewReport(
		fmt.Sprintf("Run #%d: %s", run.Sequence(), run.SourcePlaylistName()),
		run.DestinationPlaylist(),
		detail.Result.Outcomes,
	)
	report.GeneratedAt = run.StartedAt()

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteReport(report, format, path); err != nil {
			return err
		}
		r.writePlain("✓ Run #%d written to %s\n", run.Sequence(), path)
		return nil
	}

	if format == "txt" {
		r.writePlainHeader(fmt.Sprintf("Run #%d (%s)", run.Sequence(), run.Status()))
		r.writePlain("Mode: %s  Pattern: %s\n", run.Mode(), run.Pattern())
		r.writePlain("Matched: %d/%d (%.1f%%)  Added: %d\n", run.Matched(), run.Total()-run.Skipped(), run.MatchPercentage(), run.Added())
		if msg := run.ErrorMessage(); msg != "" {
			r.writePlain("Error: %s\n", msg)
		}
		r.writePlain("Took: %s\n\n", shared.FormatDuration(run.Duration()))
	}

	data, err := formatter.Render(report, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}
