// Package config loads heapwalk.toml, searched upward from the working
// directory the way project manifests are found.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Find.
const FileName = "heapwalk.toml"

// Config is the decoded configuration. Zero fields take defaults.
type Config struct {
	Dump    DumpConfig    `toml:"dump"`
	Image   ImageConfig   `toml:"image"`
	Archive ArchiveConfig `toml:"archive"`
	Trace   TraceConfig   `toml:"trace"`
	Verify  VerifyConfig  `toml:"verify"`
}

type DumpConfig struct {
	SinkCapacity int `toml:"sink_capacity"`
	ArrayPreview int `toml:"array_preview"`
	InlineDepth  int `toml:"inline_depth"`
}

type ImageConfig struct {
	Format string `toml:"format"`
}

type ArchiveConfig struct {
	Path string `toml:"path"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

type VerifyConfig struct {
	// Jobs bounds parallel image checks; 0 means GOMAXPROCS.
	Jobs int `toml:"jobs"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Dump:    DumpConfig{SinkCapacity: 1000, ArrayPreview: 10, InlineDepth: 4},
		Image:   ImageConfig{Format: "msgpack"},
		Archive: ArchiveConfig{Path: "heapwalk.db"},
		Trace:   TraceConfig{Level: "off", Output: "-"},
	}
}

// Find returns the nearest heapwalk.toml at or above startDir.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// LoadFile decodes path over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %s", path, undec[0])
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Load finds and decodes the configuration for startDir. Without a file
// it returns the defaults and an empty path.
func Load(startDir string) (Config, string, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, "", err
	}
	if !ok {
		return Default(), "", nil
	}
	cfg, err := LoadFile(path)
	return cfg, path, err
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.Dump.SinkCapacity < 64 {
		return fmt.Errorf("[dump].sink_capacity must be at least 64, got %d", c.Dump.SinkCapacity)
	}
	if c.Dump.ArrayPreview < 0 {
		return fmt.Errorf("[dump].array_preview must not be negative, got %d", c.Dump.ArrayPreview)
	}
	switch c.Image.Format {
	case "msgpack", "cbor":
	default:
		return fmt.Errorf("[image].format must be msgpack or cbor, got %q", c.Image.Format)
	}
	if c.Verify.Jobs < 0 {
		return fmt.Errorf("[verify].jobs must not be negative, got %d", c.Verify.Jobs)
	}
	return nil
}
