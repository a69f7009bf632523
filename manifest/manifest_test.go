package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/nasal/vm"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test-app"
version = "0.1.0"

[script]
entry = "src/app.nas"
include = ["lib/util.nas", "lib/strings.nas"]

[runtime]
pool-block-size = 64
max-frames = 100
gc-interval = 1000
grow-threshold = 0.75
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Script.Entry != "src/app.nas" {
		t.Errorf("entry = %q, want src/app.nas", m.Script.Entry)
	}
	if len(m.Script.Include) != 2 {
		t.Errorf("include count = %d, want 2", len(m.Script.Include))
	}
	if m.Runtime.PoolBlockSize != 64 {
		t.Errorf("pool-block-size = %d, want 64", m.Runtime.PoolBlockSize)
	}
	if m.Runtime.MaxFrames != 100 {
		t.Errorf("max-frames = %d, want 100", m.Runtime.MaxFrames)
	}
	if m.Runtime.GCInterval != 1000 {
		t.Errorf("gc-interval = %d, want 1000", m.Runtime.GCInterval)
	}
	if m.Runtime.GrowThreshold != 0.75 {
		t.Errorf("grow-threshold = %g, want 0.75", m.Runtime.GrowThreshold)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Script.Entry != "main.nas" {
		t.Errorf("default entry = %q, want main.nas", m.Script.Entry)
	}
	if m.Runtime != vm.DefaultConfig() {
		t.Errorf("runtime = %+v, want defaults %+v", m.Runtime, vm.DefaultConfig())
	}
	if m.Dir == "" {
		t.Error("Dir should be set")
	}
}

func TestLoadManifestNameFromDir(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "widgets")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[script]\nentry = \"w.nas\"\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Name != "widgets" {
		t.Errorf("project name = %q, want widgets", m.Project.Name)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[project\nname = 1"},
		{"wrong type", "[runtime]\nmax-frames = \"lots\""},
		{"threshold", "[runtime]\ngrow-threshold = 1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadManifestMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing nasal.toml")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"found\"\n")

	sub := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found" {
		t.Errorf("project name = %q, want found", m.Project.Name)
	}
}

func TestFindAndLoadNoManifest(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest")
	}
}

func TestPaths(t *testing.T) {
	m := &Manifest{
		Dir:    "/project",
		Script: Script{Entry: "main.nas", Include: []string{"lib/a.nas", "/abs/b.nas"}},
	}
	if got := m.EntryPath(); got != "/project/main.nas" {
		t.Errorf("EntryPath = %q", got)
	}
	paths := m.IncludePaths()
	if len(paths) != 2 || paths[0] != "/project/lib/a.nas" || paths[1] != "/abs/b.nas" {
		t.Errorf("IncludePaths = %v", paths)
	}
}
