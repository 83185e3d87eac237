package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Plex        PlexConfig        `toml:"plex"`
	Matching    MatchingConfig    `toml:"matching"`
	Sync        SyncConfig        `toml:"sync"`
	Output      OutputConfig      `toml:"output"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the persisted user token.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	Expiry       string `toml:"expiry"`
}

// Map returns the credentials in the key/value form accepted by the Spotify service.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
		"expiry":        s.Expiry,
	}
}

// Update copies token fields from m, ignoring keys that are absent.
func (s *SpotifyConfig) Update(m map[string]string) {
	if v, ok := m["access_token"]; ok {
		s.AccessToken = v
	}
	if v, ok := m["refresh_token"]; ok {
		s.RefreshToken = v
	}
	if v, ok := m["expiry"]; ok {
		s.Expiry = v
	}
}

// PlexConfig points at the Plex Media Server and the music section to search.
type PlexConfig struct {
	BaseURL       string `toml:"base_url"`
	Token         string `toml:"token"`
	Library       string `toml:"library"`
	SkipTLSVerify bool   `toml:"skip_tls_verify"`
}

// MatchingConfig configures the resolution engine.
type MatchingConfig struct {
	Pattern     StringList `toml:"pattern"`
	MappingFile string     `toml:"mapping_file"`
	SkipFile    string     `toml:"skip_file"`
	Threshold   float64    `toml:"threshold"`
}

// SyncConfig selects the source playlist and how results are written to Plex.
type SyncConfig struct {
	Mode         SyncMode `toml:"mode"`
	PlaylistID   string   `toml:"playlist_id"`
	PlaylistName string   `toml:"playlist_name"`
	Workers      int      `toml:"workers"`
	RateLimit    float64  `toml:"rate_limit"`
}

// OutputConfig names the report files written after a sync.
type OutputConfig struct {
	UnmatchedFile string `toml:"unmatched_file"`
	MatchedFile   string `toml:"matched_file"`
	Format        string `toml:"format"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SyncMode controls how matched tracks reach the destination playlist.
type SyncMode string

const (
	SyncFromScratch SyncMode = "from_scratch"
	SyncAppend      SyncMode = "append"
	SyncAppendNew   SyncMode = "append_new"
)

// SyncModes lists every accepted mode.
var SyncModes = []SyncMode{SyncFromScratch, SyncAppend, SyncAppendNew}

// ParseSyncMode validates s against [SyncModes].
func ParseSyncMode(s string) (SyncMode, error) {
	m := SyncMode(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(SyncModes, m) {
		return m, nil
	}
	names := make([]string, len(SyncModes))
	for i, mode := range SyncModes {
		names[i] = string(mode)
	}
	return "", fmt.Errorf("%w: unknown sync mode %q (valid: %s)", ErrInvalidConfig, s, strings.Join(names, ", "))
}

// ReportFormats lists the accepted values for output.format.
var ReportFormats = []string{"csv", "json", "txt", "markdown"}

// StringList decodes either a single TOML string or an array of strings.
type StringList []string

// UnmarshalTOML implements [toml.Unmarshaler].
func (l *StringList) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		*l = StringList{val}
	case []any:
		out := make(StringList, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("%w: list item %d is %T, expected string", ErrInvalidConfig, i, item)
			}
			out = append(out, s)
		}
		*l = out
	default:
		return fmt.Errorf("%w: expected string or list of strings, got %T", ErrInvalidConfig, v)
	}
	return nil
}

// Validate reports every problem found in the configuration at once.
//
// Strategy names are checked separately by the matching package.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Plex.BaseURL == "" {
		invalid("plex.base_url is required")
	} else if u, err := url.Parse(c.Plex.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		invalid("plex.base_url %q must be an http(s) URL", c.Plex.BaseURL)
	}
	if strings.TrimSpace(c.Plex.Library) == "" {
		invalid("plex.library is required")
	}

	if len(c.Matching.Pattern) == 0 {
		invalid("matching.pattern must name at least one strategy")
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 100 {
		invalid("matching.threshold %.1f must be above 0 and at most 100", c.Matching.Threshold)
	}

	if c.Sync.Mode != "" {
		if _, err := ParseSyncMode(string(c.Sync.Mode)); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Sync.Workers < 0 {
		invalid("sync.workers %d must not be negative", c.Sync.Workers)
	}
	if c.Sync.RateLimit < 0 {
		invalid("sync.rate_limit %.2f must not be negative", c.Sync.RateLimit)
	}

	if c.Output.Format != "" && !slices.Contains(ReportFormats, c.Output.Format) {
		invalid("output.format %q (valid: %s)", c.Output.Format, strings.Join(ReportFormats, ", "))
	}

	return errors.Join(errs...)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveConfig writes c to path, replacing the file. The file holds tokens so it is kept private.
func SaveConfig(path string, c *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
