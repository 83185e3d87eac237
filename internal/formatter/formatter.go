// package formatter renders match results as reports (CSV, JSON, Markdown, plain text) and
// writes override templates for unmatched tracks.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/spx/internal/match"
	"github.com/desertthunder/spx/internal/shared"
	"gopkg.in/yaml.v3"
)

// Report is a titled list of outcomes.
type Report struct {
	Title       string          `json:"title"`
	Playlist    string          `json:"playlist,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Outcomes    []match.Outcome `json:"outcomes"`
}

// NewReport creates a report stamped with the current time.
func NewReport(title, playlist string, outcomes []match.Outcome) *Report {
	return &Report{Title: title, Playlist: playlist, GeneratedAt: time.Now().UTC(), Outcomes: outcomes}
}

// sections groups outcomes by status, keeping report order within each group.
func (r *Report) sections() []section {
	res := match.NewResult(r.Outcomes)
	all := []section{
		{title: "Matched", outcomes: res.Matched},
		{title: "Unmatched", outcomes: res.Unmatched},
		{title: "Skipped", outcomes: res.Skipped},
	}

	var out []section
	for _, s := range all {
		if len(s.outcomes) > 0 {
			out = append(out, s)
		}
	}
	return out
}

type section struct {
	title    string
	outcomes []match.Outcome
}

var csvHeaders = []string{
	"Status", "Source ID", "Title", "Artist", "Album", "Strategy",
	"Library ID", "Library Title", "Library Artist", "Library Album",
}

// ReportToCSV writes one row per outcome in report order.
func ReportToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range r.Outcomes {
		record := []string{o.Status.String(), o.Source.ID, o.Source.Title, o.Source.Artist, o.Source.Album, o.StrategyName()}
		if c := o.Candidate; c != nil {
			record = append(record, c.ID, c.Title, c.ArtistTitle, c.AlbumTitle)
		} else {
			record = append(record, "", "", "", "")
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportToJSON encodes the report with indentation.
func ReportToJSON(r *Report) ([]byte, error) {
	return shared.MarshalJSON(r, true)
}

// ReportToMarkdown renders a heading per status with numbered tracks.
func ReportToMarkdown(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", r.Title)
	if r.Playlist != "" {
		fmt.Fprintf(&buf, "**Playlist**: %s\n", r.Playlist)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(r.Outcomes))
	fmt.Fprintf(&buf, "**Generated**: %s\n", r.GeneratedAt.Format(time.RFC3339))

	for _, s := range r.sections() {
		fmt.Fprintf(&buf, "\n## %s (%d)\n\n", s.title, len(s.outcomes))
		for i, o := range s.outcomes {
			fmt.Fprintf(&buf, "%d. %s - %s", i+1, o.Source.Artist, o.Source.Title)
			if o.Source.Album != "" {
				fmt.Fprintf(&buf, " (%s)", o.Source.Album)
			}
			if c := o.Candidate; c != nil {
				fmt.Fprintf(&buf, " → %s - %s (%s) `%s`", c.ArtistTitle, c.Title, c.AlbumTitle, o.StrategyName())
			}
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// ReportToText renders the report as plain text.
func ReportToText(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", r.Title)
	if r.Playlist != "" {
		fmt.Fprintf(&buf, "Playlist: %s\n", r.Playlist)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n", len(r.Outcomes))

	for _, s := range r.sections() {
		fmt.Fprintf(&buf, "\n%s (%d):\n", s.title, len(s.outcomes))
		for _, o := range s.outcomes {
			fmt.Fprintf(&buf, "  [%s] %s - %s", o.Source.ID, o.Source.Artist, o.Source.Title)
			if c := o.Candidate; c != nil {
				fmt.Fprintf(&buf, " -> %s (%s)", c.ID, o.StrategyName())
			}
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// ParseFormat normalizes a report format name to one of [shared.ReportFormats]. An empty name means text.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return "csv", nil
	case "json":
		return "json", nil
	case "markdown", "md":
		return "markdown", nil
	case "txt", "text", "":
		return "txt", nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q (valid: %s)",
			shared.ErrInvalidArgument, s, strings.Join(shared.ReportFormats, ", "))
	}
}

// Render encodes r in format, see [ParseFormat].
func Render(r *Report, format string) ([]byte, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	switch f {
	case "csv":
		return ReportToCSV(r)
	case "json":
		return ReportToJSON(r)
	case "markdown":
		return ReportToMarkdown(r)
	default:
		return ReportToText(r)
	}
}

// WriteReport renders r and writes it to path, creating parent directories.
func WriteReport(r *Report, format, path string) error {
	data, err := Render(r, format)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// WriteOverrideTemplate writes a mapping file with an empty pin for every unmatched outcome.
// Each entry carries the source track as a comment so the rating key can be filled in by hand.
func WriteOverrideTemplate(path string, outcomes []match.Outcome) (int, error) {
	doc := &yaml.Node{
		Kind:        yaml.MappingNode,
		HeadComment: "spotify track id: plex rating key\nLeave a value empty to keep searching for that track.",
	}

	n := 0
	for _, o := range outcomes {
		if o.Status != match.Unmatched {
			continue
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: o.Source.ID}
		value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "", Style: yaml.DoubleQuotedStyle, LineComment: o.Source.String()}
		doc.Content = append(doc.Content, key, value)
		n++
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("failed to encode override template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("failed to encode override template: %w", err)
	}

	return n, writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
