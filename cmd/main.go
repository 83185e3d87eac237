package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// Exit codes reported by the CLI.
const (
	exitOK = iota
	exitFailure
	exitConfig
	exitAuth
	exitService
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:    "spx",
		Usage:   "Recreate Spotify playlists from a Plex music library",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
				Sources: cli.EnvVars("SPX_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   runner.Before,
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := app.Run(ctx, os.Args)
	stop()

	if closeErr := runner.Close(); closeErr != nil {
		logger.Warn("failed to close database", "error", closeErr)
	}

	if err != nil {
		runner.logger.Error(err.Error())
	}
	os.Exit(exitCode(err))
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, shared.ErrInvalidConfig),
		errors.Is(err, shared.ErrMissingConfig),
		errors.Is(err, shared.ErrMissingCredentials),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidInput):
		return exitConfig
	case errors.Is(err, shared.ErrAuthFailed),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrUnauthorized):
		return exitAuth
	case errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrAPIRequest),
		errors.Is(err, shared.ErrSectionNotFound),
		errors.Is(err, shared.ErrPlaylistNotFound),
		errors.Is(err, shared.ErrTimeout):
		return exitService
	default:
		return exitFailure
	}
}
