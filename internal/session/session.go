// Package session persists what the tool remembers between runs: the last
// workspace root, the theme flag, the window position and the p4 login target.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written into every saved file.
const FormatVersion = 1

// Position is the last window placement in screen coordinates.
type Position struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// String renders the legacy "x,y" form.
func (p Position) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// ParsePosition reads an "x,y" pair.
func ParsePosition(s string) (Position, error) {
	m := positionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Position{}, fmt.Errorf("invalid position %q (want x,y)", s)
	}
	x, _ := strconv.Atoi(m[1])
	y, _ := strconv.Atoi(m[2])
	return Position{X: x, Y: y}, nil
}

// P4 is the server/user pair used for the last successful login.
type P4 struct {
	Port string `yaml:"port,omitempty"`
	User string `yaml:"user,omitempty"`
}

// Config is the persisted session state.
type Config struct {
	Version  int      `yaml:"version"`
	Root     string   `yaml:"root"`
	DarkMode bool     `yaml:"dark_mode"`
	Window   Position `yaml:"window"`
	P4       P4       `yaml:"p4,omitempty"`
}

// Defaults returns the state used when nothing was saved yet.
func Defaults() Config {
	return Config{Version: FormatVersion, DarkMode: true, Window: Position{X: 100, Y: 100}}
}

// Store reads and writes the session file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a store for path on fs.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved session, or Defaults when the file does not exist.
// Files written by older releases as plain lines are still accepted.
func (s *Store) Load() (Config, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), fmt.Errorf("failed to read session file: %w", err)
	}
	return Decode(data)
}

// Save rewrites the whole session file.
func (s *Store) Save(cfg Config) error {
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Update loads the session, applies fn and saves the result.
func (s *Store) Update(fn func(*Config)) (Config, error) {
	cfg, err := s.Load()
	if err != nil {
		return cfg, err
	}
	fn(&cfg)
	return cfg, s.Save(cfg)
}

// Encode renders cfg in the canonical YAML form.
func Encode(cfg Config) ([]byte, error) {
	cfg.Version = FormatVersion

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses the canonical YAML form or one of the legacy line layouts.
func Decode(data []byte) (Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Defaults(), nil
	}

	if isYAML(data) {
		cfg := Defaults()
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("failed to parse session file: %w", err)
		}
		if cfg.Version > FormatVersion {
			return Defaults(), fmt.Errorf("session file version %d is newer than supported version %d", cfg.Version, FormatVersion)
		}
		cfg.Version = FormatVersion
		return cfg, nil
	}

	return decodeLegacy(string(data)), nil
}

var (
	positionPattern = regexp.MustCompile(`^(-?\d+)\s*,\s*(-?\d+)$`)
	versionLine     = regexp.MustCompile(`(?m)^version:\s*\d+\s*$`)
)

func isYAML(data []byte) bool {
	return versionLine.Match(data)
}

// decodeLegacy reads the line layouts of earlier releases:
//
//	root / True|False / x,y
//	root / x,y
//
// Missing trailing lines keep their defaults.
func decodeLegacy(text string) Config {
	cfg := Defaults()
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	next := func() (string, bool) {
		if len(lines) == 0 {
			return "", false
		}
		l := strings.TrimSpace(lines[0])
		lines = lines[1:]
		return l, true
	}

	if root, ok := next(); ok {
		cfg.Root = root
	}

	line, ok := next()
	if !ok {
		return cfg
	}
	switch line {
	case "True":
		cfg.DarkMode = true
		line, ok = next()
	case "False":
		cfg.DarkMode = false
		line, ok = next()
	}
	if ok {
		if pos, err := ParsePosition(line); err == nil {
			cfg.Window = pos
		}
	}
	return cfg
}
