// Package manifest handles nasal.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/nasal/vm"
)

// FileName is the manifest looked up in a project directory.
const FileName = "nasal.toml"

// Manifest represents a nasal.toml project configuration.
type Manifest struct {
	Project Project   `toml:"project"`
	Script  Script    `toml:"script"`
	Runtime vm.Config `toml:"runtime"`

	// Dir is the directory containing the nasal.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Script configures what the CLI runs. Include files are run, in order,
// into the same namespace before the entry script.
type Script struct {
	Entry   string   `toml:"entry"`
	Include []string `toml:"include"`
}

// Default returns the manifest used when no nasal.toml exists.
func Default(dir string) *Manifest {
	return &Manifest{
		Script:  Script{Entry: "main.nas"},
		Runtime: vm.DefaultConfig(),
		Dir:     dir,
	}
}

// Load parses a nasal.toml file from the given directory. Runtime keys
// that are absent keep their vm.DefaultConfig values.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m := Default(abs)
	m.Script.Entry = ""
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	// Defaults
	if m.Script.Entry == "" {
		m.Script.Entry = "main.nas"
	}
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(abs)
	}
	if m.Runtime.GrowThreshold < 0 || m.Runtime.GrowThreshold >= 1 {
		return nil, fmt.Errorf("%s: runtime.grow-threshold must be in [0, 1), got %g", path, m.Runtime.GrowThreshold)
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find a nasal.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the entry script.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Script.Entry)
}

// IncludePaths returns absolute paths for the configured include scripts.
func (m *Manifest) IncludePaths() []string {
	var paths []string
	for _, p := range m.Script.Include {
		paths = append(paths, m.resolve(p))
	}
	return paths
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
