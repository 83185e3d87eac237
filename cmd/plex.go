package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"
)

// PlexSections lists the library sections of the server and marks the configured music library.
func (r *Runner) PlexSections(ctx context.Context, cmd *cli.Command) error {
	plex, err := r.plexService(ctx)
	if err != nil {
		return err
	}

	sections, err := plex.Sections(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(sections, true)
	}

	r.writePlain("Found %d sections:\n\n", len(sections))
	for _, s := range sections {
		marker := " "
		if s.Type == "artist" && strings.EqualFold(s.Title, r.config.Plex.Library) {
			marker = "*"
		}
		r.writePlain("%s %-4s %-24s %s\n", marker, s.ID, s.Title, s.Type)
	}
	return nil
}

// PlexPlaylists lists the audio playlists on the server.
func (r *Runner) PlexPlaylists(ctx context.Context, cmd *cli.Command) error {
	plex, err := r.plexService(ctx)
	if err != nil {
		return err
	}

	playlists, err := plex.Playlists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s (%d tracks)\n", i+1, p.Name, p.TrackCount)
	}
	return nil
}
