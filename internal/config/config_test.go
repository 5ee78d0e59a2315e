package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, path, err := Load(t.TempDir())
	if err != nil || path != "" {
		t.Fatalf("Load = %q, %v", path, err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFindsParentFile(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, `
[dump]
array_preview = 3

[image]
format = "cbor"

[trace]
level = "phase"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, path, err := Load(nested)
	if err != nil {
		t.Fatal(err)
	}
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if cfg.Dump.ArrayPreview != 3 || cfg.Image.Format != "cbor" || cfg.Trace.Level != "phase" {
		t.Errorf("cfg = %+v", cfg)
	}
	// unset keys keep their defaults
	if cfg.Dump.SinkCapacity != 1000 || cfg.Archive.Path != "heapwalk.db" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"syntax", "[dump\n", "failed to parse TOML"},
		{"unknown key", "[dump]\ncolour = 1\n", "unknown key dump.colour"},
		{"bad format", "[image]\nformat = \"gob\"\n", "[image].format"},
		{"small sink", "[dump]\nsink_capacity = 8\n", "sink_capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("LoadFile = %v, want %q", err, tt.want)
			}
		})
	}
}
