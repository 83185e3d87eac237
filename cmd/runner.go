package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/repositories"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/desertthunder/spx/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// PlexClient is the part of [services.PlexService] used by the commands.
type PlexClient interface {
	match.Library
	services.Destination
	Connect(ctx context.Context) error
	Sections(ctx context.Context) ([]services.Section, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services and the database are created from the configuration on first use unless supplied
// through [RunnerOpts].
type Runner struct {
	config        *shared.Config
	configPath    string
	configLoaded  bool
	spotify       services.OAuthService
	plex          PlexClient
	plexConnected bool
	db            *sql.DB
	ownsDB        bool
	logger        *log.Logger
	output        io.Writer
	openBrowser   func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.OAuthService
	Plex       PlexClient
	DB         *sql.DB
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	loaded := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		configLoaded: loaded,
		spotify:      opts.Spotify,
		plex:         opts.Plex,
		db:           opts.DB,
		logger:       opts.Logger,
		output:       opts.Output,
		openBrowser:  shared.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, matchCommand, plexCommand, spotifyCommand, historyCommand, setupCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before applies the global flags: --verbose raises the log level and --config is loaded when the
// file exists. A missing file leaves the defaults in place for commands that do not need one.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	if path == "" || r.configLoaded {
		return ctx, nil
	}
	r.configPath = path

	config, err := shared.LoadConfig(path)
	switch {
	case err == nil:
		r.config = config
		r.configLoaded = true
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", path)
	default:
		return ctx, err
	}
	return ctx, nil
}

// Close releases the database opened by the runner.
func (r *Runner) Close() error {
	if r.db != nil && r.ownsDB {
		return r.db.Close()
	}
	return nil
}

// SetLogger replaces the logger used by the runner and the services it builds.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// requireConfig fails unless a configuration file was loaded or supplied.
func (r *Runner) requireConfig() error {
	if r.configLoaded {
		return nil
	}
	path := r.configPath
	if path == "" {
		path = defaultConfigPath
	}
	return fmt.Errorf("%w: %s (run 'spx setup config' to create one)", shared.ErrMissingConfig, path)
}

// spotifyService returns the Spotify source, authenticating with the stored user token or,
// without one, the client credentials grant.
func (r *Runner) spotifyService(ctx context.Context) (services.OAuthService, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}
	if err := r.requireConfig(); err != nil {
		return nil, err
	}

	creds := r.config.Credentials.Spotify.Map()
	svc, err := services.NewSpotifyService(creds)
	if err != nil {
		return nil, err
	}
	svc.SetTokenRefreshCallback(r.saveToken)
	if err := svc.Authenticate(ctx, creds); err != nil {
		return nil, err
	}
	if creds["access_token"] == "" {
		r.logger.Warn("no Spotify user token, only public playlists are readable", "hint", "run 'spx spotify auth'")
	}

	r.spotify = svc
	return svc, nil
}

// plexService returns the Plex client after checking the server and resolving the music section.
func (r *Runner) plexService(ctx context.Context) (PlexClient, error) {
	if r.plex == nil {
		if err := r.requireConfig(); err != nil {
			return nil, err
		}
		r.plex = services.NewPlexService(r.config.Plex)
	}
	if !r.plexConnected {
		if err := r.plex.Connect(ctx); err != nil {
			return nil, err
		}
		r.plexConnected = true
		r.logger.Debug("connected to plex", "url", r.config.Plex.BaseURL, "library", r.config.Plex.Library)
	}
	return r.plex, nil
}

// database opens the history database on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenConfigured(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.ownsDB = true
	return db, nil
}

// history returns a recorder on the history database.
func (r *Runner) history() (*repositories.HistoryRecorder, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewHistoryRecorder(db), nil
}

// matchEngine validates the matching configuration and builds an engine over the Plex library.
// patternOverride replaces matching.pattern when not empty.
func (r *Runner) matchEngine(ctx context.Context, patternOverride []string) (*match.Engine, error) {
	names := []string(r.config.Matching.Pattern)
	if len(patternOverride) > 0 {
		names = patternOverride
	}
	pattern, err := match.ParsePattern(names)
	if err != nil {
		return nil, err
	}

	overrides, err := match.LoadOverrides(r.config.Matching.MappingFile, r.config.Matching.SkipFile)
	if err != nil {
		return nil, err
	}
	if pins, skips := overrides.Len(); pins+skips > 0 {
		r.logger.Info("loaded overrides", "pins", pins, "skips", skips)
	}

	plex, err := r.plexService(ctx)
	if err != nil {
		return nil, err
	}

	return match.NewEngine(match.EngineOpts{
		Library:   match.RateLimited(plex, r.config.Sync.RateLimit),
		Pattern:   pattern,
		Overrides: overrides,
		Threshold: r.config.Matching.Threshold,
		Logger:    shared.WithLogger(r.logger, "component", "match"),
	})
}

// playlistEngine builds a sync engine. Configuration is fully validated before any service is contacted.
// History is recorded unless disabled or the database cannot be opened.
func (r *Runner) playlistEngine(ctx context.Context, patternOverride []string, recordHistory bool) (*tasks.PlaylistEngine, error) {
	if err := r.requireConfig(); err != nil {
		return nil, err
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	engine, err := r.matchEngine(ctx, patternOverride)
	if err != nil {
		return nil, err
	}

	spotify, err := r.spotifyService(ctx)
	if err != nil {
		return nil, err
	}

	resolver := match.NewResolver(engine, match.ResolverOpts{
		Workers: r.config.Sync.Workers,
		Logger:  shared.WithLogger(r.logger, "component", "resolver"),
	})

	pe := tasks.NewPlaylistEngine(spotify, r.plex, resolver).WithLogger(r.logger)
	if recordHistory {
		if h, err := r.history(); err != nil {
			r.logger.Warn("history disabled", "error", err)
		} else {
			pe.WithRecorder(h)
		}
	}
	return pe, nil
}

// saveToken persists a refreshed Spotify token to the loaded config file.
func (r *Runner) saveToken(token *oauth2.Token) {
	r.config.Credentials.Spotify.Update(tokenMap(token))
	if !r.configLoaded || r.configPath == "" {
		r.logger.Debug("not persisting refreshed token, no config file loaded")
		return
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("failed to save refreshed token", "error", err)
		return
	}
	r.logger.Debug("saved refreshed spotify token", "path", r.configPath)
}

func tokenMap(token *oauth2.Token) map[string]string {
	m := map[string]string{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expiry":        "",
	}
	if !token.Expiry.IsZero() {
		m["expiry"] = token.Expiry.UTC().Format(time.RFC3339)
	}
	return m
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
