package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/desertthunder/spx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI: pick a Spotify playlist, confirm, and watch it sync.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.syncOpts(cmd)
	if err != nil {
		return err
	}

	// Logs go to a file so they do not tear the TUI rendering.
	fileLogger, closer, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return err
	}
	defer closer.Close()
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	engine, err := r.playlistEngine(ctx, nil, true)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.spotify, engine, opts)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if err := model.Err(); err != nil {
		return err
	}
	if result := model.Result(); result != nil && result.Result != nil {
		format, err := formatter.ParseFormat(r.config.Output.Format)
		if err != nil {
			return err
		}
		if err := r.writeReports(result, format, ""); err != nil {
			return err
		}
		r.printSummary(result, result.Run != nil && result.Run.Status() == models.RunDryRun)
	}
	return nil
}
