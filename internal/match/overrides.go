package match

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Overrides holds user decisions that bypass searching: pins map a source track id to a
// library id and skips exclude source tracks. A skip wins over a pin for the same id.
//
// Overrides are read-only once built and safe for concurrent use.
type Overrides struct {
	pins  map[string]string
	skips map[string]struct{}
}

// NewOverrides copies pins and skips. Entries with a blank key or value are ignored.
func NewOverrides(pins map[string]string, skips []string) *Overrides {
	o := &Overrides{pins: make(map[string]string, len(pins)), skips: make(map[string]struct{}, len(skips))}
	for k, v := range pins {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			o.pins[k] = v
		}
	}
	for _, id := range skips {
		if id = strings.TrimSpace(id); id != "" {
			o.skips[id] = struct{}{}
		}
	}
	return o
}

// Pin returns the library id pinned for a source id.
func (o *Overrides) Pin(sourceID string) (string, bool) {
	if o == nil {
		return "", false
	}
	id, ok := o.pins[sourceID]
	return id, ok
}

// Skipped reports whether a source id is excluded from matching.
func (o *Overrides) Skipped(sourceID string) bool {
	if o == nil {
		return false
	}
	_, ok := o.skips[sourceID]
	return ok
}

// Len returns the number of pins and skips.
func (o *Overrides) Len() (pins, skips int) {
	if o == nil {
		return 0, 0
	}
	return len(o.pins), len(o.skips)
}

// skipFile is the YAML layout of a skip file.
type skipFile struct {
	Skips []string `yaml:"skips"`
}

// LoadOverrides reads a mapping file (a YAML map of source id to library id) and a skip file
// (a YAML document with a "skips" list). Either path may be empty. Pins with an empty value are
// treated as unset so generated templates load before they are filled in.
func LoadOverrides(mappingPath, skipPath string) (*Overrides, error) {
	var pins map[string]string
	if mappingPath != "" {
		if err := decodeYAML(mappingPath, &pins); err != nil {
			return nil, err
		}
	}

	var skips skipFile
	if skipPath != "" {
		if err := decodeYAML(skipPath, &skips); err != nil {
			return nil, err
		}
	}

	return NewOverrides(pins, skips.Skips), nil
}

func decodeYAML(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedOverride, path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %v", ErrMalformedOverride, path, err)
	}
	return nil
}
