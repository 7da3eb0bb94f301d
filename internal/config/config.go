// Package config is the typed YAML configuration tree: chunking,
// embeddings, storage paths, and the daemon block (§4.11 ConfigStore).
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ChunkingConfig controls the line-window chunker (C1).
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// EmbeddingsConfig selects the embedding provider and its batching
// behavior for VectorCalculationManager (C2).
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	MaxWorkers int    `yaml:"max_workers" json:"max_workers"`
}

// PathsConfig locates the on-disk artifacts this module reads and
// writes: the vectors/indexes tree and the progress log.
type PathsConfig struct {
	VectorsDir   string `yaml:"vectors_dir" json:"vectors_dir"`
	IndexesDir   string `yaml:"indexes_dir" json:"indexes_dir"`
	ProgressFile string `yaml:"progress_file" json:"progress_file"`
}

// DaemonConfig is the §4.11 daemon block. SocketPath is never read
// from YAML: it is always derived from the project root at load time,
// so a stale or hand-edited socket field in an old config file is
// silently ignored.
type DaemonConfig struct {
	Enabled                      bool  `yaml:"enabled" json:"enabled"`
	TTLMinutes                   int   `yaml:"ttl_minutes" json:"ttl_minutes"`
	AutoShutdownOnIdle           bool  `yaml:"auto_shutdown_on_idle" json:"auto_shutdown_on_idle"`
	MaxRetries                   int   `yaml:"max_retries" json:"max_retries"`
	RetryDelaysMs                []int `yaml:"retry_delays_ms" json:"retry_delays_ms"`
	EvictionCheckIntervalSeconds int   `yaml:"eviction_check_interval_seconds" json:"eviction_check_interval_seconds"`

	// SocketPath is derived, not persisted; yaml:"-" keeps a legacy
	// socket_path key in an old file from round-tripping back out.
	SocketPath string `yaml:"-" json:"socket_path"`
}

// Config is the complete configuration tree for one project.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Daemon     DaemonConfig     `yaml:"daemon" json:"daemon"`
}

const (
	minTTLMinutes = 1
	maxTTLMinutes = 10080 // 7 days

	// maxSocketPathBytes is the historical sun_path limit on Linux/BSD
	// (108 bytes including the trailing NUL); bind(2) fails above it.
	maxSocketPathBytes = 108
)

// NewConfig returns a Config populated with the spec's defaults.
func NewConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			ChunkSize:    1500,
			ChunkOverlap: 200,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // empty triggers auto-detection by the caller
			Model:      "",
			Dimensions: 0,
			BatchSize:  32,
			MaxWorkers: 4,
		},
		Paths: PathsConfig{
			VectorsDir:   ".cidx/vectors",
			IndexesDir:   ".cidx/indexes",
			ProgressFile: ".cidx/indexing_progress.json",
		},
		Daemon: DaemonConfig{
			Enabled:                      false,
			TTLMinutes:                   10,
			AutoShutdownOnIdle:           true,
			MaxRetries:                   4,
			RetryDelaysMs:                []int{100, 500, 1000, 2000},
			EvictionCheckIntervalSeconds: 60,
		},
	}
}

// Load reads the project config file at <projectRoot>/.cidx.yaml if it
// exists, merges it onto the defaults, derives the socket path, and
// validates the result. A missing file is not an error: the defaults
// apply.
func Load(projectRoot string) (*Config, error) {
	cfg := NewConfig()

	path := filepath.Join(projectRoot, ".cidx.yaml")
	if data, err := os.ReadFile(path); err == nil {
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.mergeWith(&parsed)

		// A daemon block that omits enabled or auto_shutdown_on_idle keeps
		// that key's default: decode the block over the defaults and take
		// the two booleans from there.
		var withDefaults struct {
			Daemon DaemonConfig `yaml:"daemon"`
		}
		withDefaults.Daemon = NewConfig().Daemon
		_ = yaml.Unmarshal(data, &withDefaults)
		cfg.Daemon.Enabled = withDefaults.Daemon.Enabled
		cfg.Daemon.AutoShutdownOnIdle = withDefaults.Daemon.AutoShutdownOnIdle
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.Daemon.SocketPath = DeriveSocketPath(projectRoot)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// mergeWith overlays non-zero fields from other onto c, the same
// field-by-field precedence rule the teacher's config loader uses.
func (c *Config) mergeWith(other *Config) {
	if other.Chunking.ChunkSize != 0 {
		c.Chunking.ChunkSize = other.Chunking.ChunkSize
	}
	if other.Chunking.ChunkOverlap != 0 {
		c.Chunking.ChunkOverlap = other.Chunking.ChunkOverlap
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.MaxWorkers != 0 {
		c.Embeddings.MaxWorkers = other.Embeddings.MaxWorkers
	}

	if other.Paths.VectorsDir != "" {
		c.Paths.VectorsDir = other.Paths.VectorsDir
	}
	if other.Paths.IndexesDir != "" {
		c.Paths.IndexesDir = other.Paths.IndexesDir
	}
	if other.Paths.ProgressFile != "" {
		c.Paths.ProgressFile = other.Paths.ProgressFile
	}

	// Daemon.Enabled/AutoShutdownOnIdle are booleans that can legally be
	// set to false; merge them whenever any daemon field was present in
	// the parsed file (mirrors the teacher's submodule-block approach).
	if other.daemonBlockPresent() {
		c.Daemon.Enabled = other.Daemon.Enabled
		c.Daemon.AutoShutdownOnIdle = other.Daemon.AutoShutdownOnIdle
	}
	if other.Daemon.TTLMinutes != 0 {
		c.Daemon.TTLMinutes = other.Daemon.TTLMinutes
	}
	if other.Daemon.MaxRetries != 0 {
		c.Daemon.MaxRetries = other.Daemon.MaxRetries
	}
	if len(other.Daemon.RetryDelaysMs) > 0 {
		c.Daemon.RetryDelaysMs = other.Daemon.RetryDelaysMs
	}
	if other.Daemon.EvictionCheckIntervalSeconds != 0 {
		c.Daemon.EvictionCheckIntervalSeconds = other.Daemon.EvictionCheckIntervalSeconds
	}
}

// daemonBlockPresent reports whether the parsed file set any daemon
// field at all, used to decide whether to overlay the two plain
// booleans (which have no non-zero sentinel of their own).
func (c *Config) daemonBlockPresent() bool {
	d := c.Daemon
	return d.Enabled || d.AutoShutdownOnIdle || d.TTLMinutes != 0 || d.MaxRetries != 0 ||
		len(d.RetryDelaysMs) > 0 || d.EvictionCheckIntervalSeconds != 0
}

// Validate checks the invariants spec §4.11 requires.
func (c *Config) Validate() error {
	if c.Daemon.TTLMinutes < minTTLMinutes || c.Daemon.TTLMinutes > maxTTLMinutes {
		return fmt.Errorf("daemon.ttl_minutes must be in [%d, %d], got %d", minTTLMinutes, maxTTLMinutes, c.Daemon.TTLMinutes)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Embeddings.MaxWorkers <= 0 {
		return fmt.Errorf("embeddings.max_workers must be positive, got %d", c.Embeddings.MaxWorkers)
	}
	if len(c.Daemon.SocketPath) > maxSocketPathBytes {
		return fmt.Errorf("derived socket path exceeds %d bytes: %s", maxSocketPathBytes, c.Daemon.SocketPath)
	}
	return nil
}

// DeriveSocketPath computes /<tmp>/cidx/<hash16>.sock, where hash16 is
// the first 16 hex characters of SHA-256(projectRoot). The project
// root's absolute path is hashed so two checkouts of the same repo
// never collide on the same socket.
func DeriveSocketPath(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	sum := sha256.Sum256([]byte(abs))
	hash16 := hex.EncodeToString(sum[:])[:16]
	return filepath.Join(os.TempDir(), "cidx", hash16+".sock")
}

// FindProjectRoot walks up from startDir looking for a `.git` directory
// or a `.cidx.yaml` file, the same two markers the teacher's loader
// looks for. If neither is found before reaching the filesystem root,
// it returns startDir's absolute path unchanged.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if info, err := os.Stat(filepath.Join(currentDir, ".git")); err == nil && info.IsDir() {
			return currentDir, nil
		}
		if _, err := os.Stat(filepath.Join(currentDir, ".cidx.yaml")); err == nil {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// WriteYAML persists c to path. The derived SocketPath is never
// written out (yaml:"-"), so reloading the file always re-derives it.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
