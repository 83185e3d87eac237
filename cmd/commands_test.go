package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/repositories"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	tu "github.com/desertthunder/spx/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// fakePlex is an in-memory [PlexClient].
type fakePlex struct {
	*tu.FakeLibrary
	*tu.FakeDestination
	sections   []services.Section
	connects   int
	connectErr error
}

func newFakePlex(tracks ...match.Track) *fakePlex {
	return &fakePlex{
		FakeLibrary:     tu.NewFakeLibrary(tracks...),
		FakeDestination: tu.NewFakeDestination(),
		sections: []services.Section{
			{ID: "1", Title: "Movies", Type: "movie"},
			{ID: "3", Title: "Music", Type: "artist"},
		},
	}
}

func (p *fakePlex) Connect(ctx context.Context) error {
	p.connects++
	return p.connectErr
}

func (p *fakePlex) Sections(ctx context.Context) ([]services.Section, error) {
	return p.sections, nil
}

// fakeSpotify is an in-memory [services.OAuthService] accepting one authorization code.
type fakeSpotify struct {
	*tu.FakeSource
	code  string
	token *oauth2.Token
}

func newFakeSpotify() *fakeSpotify {
	return &fakeSpotify{
		FakeSource: tu.NewFakeSource(services.Playlist{ID: "pl1", Name: "Road Trip"},
			match.SourceTrack{ID: "sp1", Title: "Let It Be", Artist: "The Beatles", Album: "Let It Be"},
			match.SourceTrack{ID: "sp2", Title: "Obscure B-Side", Artist: "Nobody"},
		),
		code:  "abc",
		token: &oauth2.Token{AccessToken: "user_access", RefreshToken: "user_refresh"},
	}
}

func (s *fakeSpotify) GetAuthURL(state string) string {
	return "https://accounts.test/authorize?state=" + url.QueryEscape(state)
}

func (s *fakeSpotify) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code != s.code {
		return nil, fmt.Errorf("%w: bad code %q", shared.ErrAuthFailed, code)
	}
	return s.token, nil
}

type fixture struct {
	runner  *Runner
	output  *bytes.Buffer
	config  *shared.Config
	plex    *fakePlex
	spotify *fakeSpotify
	db      *sql.DB
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Output.UnmatchedFile = filepath.Join(dir, "unmatched.txt")
	config.Output.MatchedFile = filepath.Join(dir, "matched.txt")
	config.Database.Path = filepath.Join(dir, "spx.db")

	db, err := shared.OpenConfigured(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		output:  &bytes.Buffer{},
		config:  config,
		plex:    newFakePlex(match.Track{ID: "101", Title: "Let It Be", ArtistTitle: "The Beatles", AlbumTitle: "Let It Be"}),
		spotify: newFakeSpotify(),
		db:      db,
		dir:     dir,
	}
	f.runner = NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: filepath.Join(dir, "config.toml"),
		Spotify:    f.spotify,
		Plex:       f.plex,
		DB:         db,
		Logger:     shared.NewLogger(&bytes.Buffer{}),
		Output:     f.output,
	})
	return f
}

func (f *fixture) run(args ...string) error {
	app := &cli.Command{Name: "spx", Commands: f.runner.register()}
	return app.Run(context.Background(), append([]string{"spx"}, args...))
}

func TestSyncCommand(t *testing.T) {
	t.Run("creates the playlist and writes reports", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("sync", "--playlist", "pl1", "--quiet"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		out := f.output.String()
		for _, want := range []string{"Sync Complete!", "Matched: 1/2", "Added: 1", "Run: #1", "Nobody - Obscure B-Side"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "🔍") {
			t.Error("--quiet should suppress progress")
		}

		if got := f.plex.Lists["Road Trip"]; len(got) != 1 || got[0].ID != "101" {
			t.Errorf("destination playlist = %v", got)
		}

		unmatched := tu.MustReadFile(t, f.config.Output.UnmatchedFile)
		if !strings.Contains(unmatched, "[sp2] Nobody - Obscure B-Side") || strings.Contains(unmatched, "[sp1]") {
			t.Errorf("unexpected unmatched report:\n%s", unmatched)
		}
		tu.AssertFileExists(t, f.config.Output.MatchedFile)

		runs, err := repositories.NewHistoryRecorder(f.db).Recent(10)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 || runs[0].Status() != models.RunCompleted || runs[0].Added() != 1 {
			t.Errorf("recorded runs = %+v", runs)
		}
	})

	t.Run("dry run leaves plex untouched", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("sync", "--playlist", "Road Trip", "--dry-run", "--no-history", "--name", "Trip"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		if len(f.plex.Created) != 0 || len(f.plex.Appended) != 0 {
			t.Error("dry run must not write to plex")
		}
		out := f.output.String()
		if !strings.Contains(out, "Dry Run Complete") || !strings.Contains(out, "Would add: 1") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if !strings.Contains(out, "🔍") {
			t.Error("expected progress output")
		}

		runs, err := repositories.NewHistoryRecorder(f.db).Recent(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 0 {
			t.Errorf("--no-history recorded %d runs", len(runs))
		}
	})

	t.Run("append_new only adds missing tracks", func(t *testing.T) {
		f := newFixture(t)
		f.plex.Lists["Road Trip"] = []match.Track{f.plex.Tracks[0]}

		if err := f.run("sync", "-p", "pl1", "-m", "append_new", "-q"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if len(f.plex.Appended) != 0 {
			t.Errorf("nothing should be appended, got %v", f.plex.Appended)
		}
		if !strings.Contains(f.output.String(), "Already present: 1") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
	})

	t.Run("writes an override template", func(t *testing.T) {
		f := newFixture(t)
		path := filepath.Join(f.dir, "overrides", "mapping.yaml")

		if err := f.run("sync", "-p", "pl1", "-q", "--write-overrides", path); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, `sp2: ""`) || strings.Contains(content, "sp1") {
			t.Errorf("unexpected template:\n%s", content)
		}

		overrides, err := match.LoadOverrides(path, "")
		if err != nil {
			t.Fatalf("template should load as a mapping file: %v", err)
		}
		if pins, _ := overrides.Len(); pins != 0 {
			t.Errorf("empty pins should be ignored, got %d", pins)
		}
	})

	t.Run("configuration errors fail before contacting services", func(t *testing.T) {
		tc := []struct {
			name string
			args []string
			want error
		}{
			{name: "unknown mode", args: []string{"sync", "-p", "pl1", "--mode", "sideways"}, want: shared.ErrInvalidConfig},
			{name: "unknown strategy", args: []string{"sync", "-p", "pl1", "--pattern", "fuzzymax"}, want: match.ErrUnknownStrategy},
			{name: "nested descending", args: []string{"sync", "-p", "pl1", "--pattern", "exact", "--pattern", "descending"}, want: match.ErrNestedPattern},
			{name: "unknown format", args: []string{"sync", "-p", "pl1", "--format", "xlsx"}, want: shared.ErrInvalidArgument},
			{name: "no playlist", args: []string{"sync"}, want: shared.ErrMissingArgument},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)

				err := f.run(tt.args...)
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				if f.plex.connects != 0 || f.plex.Calls("") != 0 {
					t.Error("plex must not be contacted on a configuration error")
				}
				if exitCode(err) != exitConfig {
					t.Errorf("exit code = %d, want %d", exitCode(err), exitConfig)
				}
			})
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		f := newFixture(t)
		f.config.Plex.BaseURL = "plex.local"
		f.config.Matching.Threshold = 120

		err := f.run("sync", "-p", "pl1")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
		for _, want := range []string{"plex.base_url", "matching.threshold"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error should mention %s: %v", want, err)
			}
		}
	})

	t.Run("unknown playlist", func(t *testing.T) {
		f := newFixture(t)

		err := f.run("sync", "-p", "Nope", "-q")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), "Road Trip") {
			t.Errorf("error should list available playlists: %v", err)
		}
	})

	t.Run("append to a missing playlist", func(t *testing.T) {
		f := newFixture(t)

		err := f.run("sync", "-p", "pl1", "-m", "append", "-q")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
		if f.plex.Calls("") != 0 {
			t.Error("tracks should not be resolved when the destination is missing")
		}
	})
}

func TestMatchCommand(t *testing.T) {
	t.Run("matched", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("match", "-t", "Let It Be", "-a", "The Beatles", "--album", "Let It Be"); err != nil {
			t.Fatalf("match failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "✓ The Beatles - Let It Be") || !strings.Contains(out, "strategy exact") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if !strings.Contains(out, "Rating key: 101") {
			t.Errorf("output should show the rating key:\n%s", out)
		}
	})

	t.Run("unmatched", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("match", "-t", "Obscure B-Side", "-a", "Nobody", "--pattern", "exact", "--pattern", "loose"); err != nil {
			t.Fatalf("match failed: %v", err)
		}
		if out := f.output.String(); !strings.Contains(out, "No match (tried: exact,loose)") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("skipped by id", func(t *testing.T) {
		f := newFixture(t)
		skipPath := filepath.Join(f.dir, "skip.yaml")
		if err := os.WriteFile(skipPath, []byte("skips:\n  - sp9\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		f.config.Matching.SkipFile = skipPath

		if err := f.run("match", "-t", "Let It Be", "-a", "The Beatles", "--id", "sp9"); err != nil {
			t.Fatalf("match failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "listed in the skip file") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
		if f.plex.Calls("") != 0 {
			t.Error("skipped tracks must not be searched")
		}
	})

	t.Run("json", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("match", "-t", "Let It Be", "-a", "The Beatles", "--json"); err != nil {
			t.Fatalf("match failed: %v", err)
		}
		if out := f.output.String(); !strings.Contains(out, `"id": "101"`) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

func TestPlexCommands(t *testing.T) {
	t.Run("sections marks the music library", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("plex", "sections"); err != nil {
			t.Fatalf("plex sections failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "Found 2 sections") || !strings.Contains(out, "* 3") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("playlists", func(t *testing.T) {
		f := newFixture(t)
		f.plex.Lists["Favorites"] = []match.Track{f.plex.Tracks[0]}

		if err := f.run("plex", "playlists"); err != nil {
			t.Fatalf("plex playlists failed: %v", err)
		}
		if out := f.output.String(); !strings.Contains(out, "1. Favorites (1 tracks)") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

func TestSpotifyCommands(t *testing.T) {
	t.Run("tracks", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("spotify", "tracks", "pl1"); err != nil {
			t.Fatalf("spotify tracks failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "Playlist: Road Trip") || !strings.Contains(out, "2. Nobody - Obscure B-Side") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("tracks needs a playlist", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("spotify", "tracks"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("playlists json", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("spotify", "playlists", "--json"); err != nil {
			t.Fatalf("spotify playlists failed: %v", err)
		}
		if out := f.output.String(); !strings.Contains(out, `"name":"Road Trip"`) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("auth stores the user token", func(t *testing.T) {
		f := newFixture(t)
		if err := shared.SaveConfig(f.runner.configPath, f.config); err != nil {
			t.Fatal(err)
		}

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()
		f.config.Server.Port = port

		callbackErr := make(chan error, 1)
		f.runner.openBrowser = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			state := u.Query().Get("state")
			go func() {
				resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/callback?code=abc&state=%s", port, url.QueryEscape(state)))
				if err == nil {
					resp.Body.Close()
				}
				callbackErr <- err
			}()
			return nil
		}

		if err := f.run("spotify", "auth", "--timeout", "5s"); err != nil {
			t.Fatalf("spotify auth failed: %v", err)
		}
		if err := <-callbackErr; err != nil {
			t.Fatalf("callback request failed: %v", err)
		}

		if !strings.Contains(f.output.String(), "✓ Authorization successful") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
		saved, err := shared.LoadConfig(f.runner.configPath)
		if err != nil {
			t.Fatal(err)
		}
		if saved.Credentials.Spotify.AccessToken != "user_access" || saved.Credentials.Spotify.RefreshToken != "user_refresh" {
			t.Errorf("tokens not saved: %+v", saved.Credentials.Spotify)
		}
	})

	t.Run("auth times out", func(t *testing.T) {
		f := newFixture(t)
		f.config.Server.Port = 0
		f.runner.openBrowser = func(string) error { return errors.New("no browser") }

		start := time.Now()
		err := f.run("spotify", "auth", "--timeout", "50ms")
		if !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
		if time.Since(start) > 5*time.Second {
			t.Error("auth should give up after the timeout")
		}
		if !strings.Contains(f.output.String(), "https://accounts.test/authorize") {
			t.Error("the URL should be printed when the browser cannot be opened")
		}
	})

	t.Run("auth needs client credentials", func(t *testing.T) {
		f := newFixture(t)
		f.config.Credentials.Spotify.ClientSecret = ""

		if err := f.run("spotify", "auth"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestHistoryCommands(t *testing.T) {
	f := newFixture(t)
	if err := f.run("sync", "-p", "pl1", "-q"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if err := f.run("sync", "-p", "pl1", "-q", "--dry-run"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	t.Run("list", func(t *testing.T) {
		f.output.Reset()

		if err := f.run("history", "list"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "#2") || !strings.Contains(out, "#1") {
			t.Errorf("expected both runs:\n%s", out)
		}
		if strings.Index(out, "#2") > strings.Index(out, "#1") {
			t.Error("runs should be listed newest first")
		}
		if !strings.Contains(out, "Road Trip → Road Trip") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("list by status", func(t *testing.T) {
		f.output.Reset()

		if err := f.run("history", "list", "--status", "dry_run", "--json"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, `"status": "dry_run"`) || strings.Contains(out, `"status": "completed"`) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("list rejects unknown status", func(t *testing.T) {
		if err := f.run("history", "list", "--status", "exploded"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("show", func(t *testing.T) {
		f.output.Reset()

		if err := f.run("history", "show", "#1"); err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		out := f.output.String()
		for _, want := range []string{"Run #1 (completed)", "Run #1: Road Trip", "[sp1] The Beatles - Let It Be -> 101", "[sp2] Nobody - Obscure B-Side"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("show to file", func(t *testing.T) {
		f.output.Reset()
		path := filepath.Join(f.dir, "run2.csv")

		if err := f.run("history", "show", "2", "--format", "csv", "-o", path); err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		if !strings.Contains(tu.MustReadFile(t, path), "sp2") {
			t.Error("csv report should list the unmatched track")
		}
		if !strings.Contains(f.output.String(), "✓ Run #2 written to") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
	})

	t.Run("show unknown run", func(t *testing.T) {
		if err := f.run("history", "show", "#42"); err == nil {
			t.Error("expected an error for an unknown run")
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "config.toml")
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{ConfigPath: path, Output: output, Logger: shared.NewLogger(&bytes.Buffer{})})
		app := &cli.Command{Name: "spx", Commands: runner.register()}

		if err := app.Run(context.Background(), []string{"spx", "setup", "config"}); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), "Next steps") {
			t.Errorf("unexpected output:\n%s", output.String())
		}

		if err := app.Run(context.Background(), []string{"spx", "setup", "config"}); err == nil {
			t.Error("an existing config must not be overwritten")
		}
	})

	t.Run("database and rollback", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, f.config.Database.Path)
		if !strings.Contains(f.output.String(), "✓ Database") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}

		f.output.Reset()
		if err := f.run("setup", "database"); err != nil {
			t.Fatalf("setup database should be idempotent: %v", err)
		}
		if !strings.Contains(f.output.String(), "(0 migrations applied)") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}

		f.output.Reset()
		if err := f.run("setup", "rollback"); err != nil {
			t.Fatalf("setup rollback failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "✓ Rolled back migration") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
	})
}
