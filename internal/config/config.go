// Package config resolves localdocs settings from defaults, an optional
// YAML file and LOCALDOCS_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure so callers can
// distinguish bad settings from I/O problems with errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the in-memory representation of localdocs.yaml.
//
// The API key is deliberately not part of the file; it is resolved from the
// environment only (see APIKey).
type Config struct {
	DataDir        string  `yaml:"data_dir"`
	IndexRoot      string  `yaml:"index_root"`
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	TopK           int     `yaml:"top_k"`
	MinScore       float64 `yaml:"min_score"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	ModelName      string  `yaml:"model_name"`
	EmbeddingModel string  `yaml:"embedding_model"`
	BaseURL        string  `yaml:"base_url,omitempty"`
	RequestTimeout int     `yaml:"request_timeout,omitempty"` // seconds, per API call
	AskTimeout     int     `yaml:"ask_timeout,omitempty"`     // seconds, per question
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:        "./documents",
		IndexRoot:      "./.localdocs",
		ChunkSize:      500,
		ChunkOverlap:   50,
		TopK:           3,
		MinScore:       0.30,
		MaxTokens:      1000,
		Temperature:    0.1,
		ModelName:      "gpt-5-mini-2025-08-07",
		EmbeddingModel: "text-embedding-3-small",
		RequestTimeout: 60,
		AskTimeout:     60,
	}
}

// ConfigPath returns the first config file that exists: the explicit path if
// given, then ./localdocs.yaml, then ~/.localdocs/localdocs.yaml. An empty
// return with nil error means no file is present and defaults apply.
func ConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("cannot read config %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if _, err := os.Stat("localdocs.yaml"); err == nil {
		return "localdocs.yaml", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	p := filepath.Join(home, ".localdocs", "localdocs.yaml")
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return "", nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// Load builds the effective configuration: defaults, then the YAML file (if
// any), then LOCALDOCS_* environment variables. Validate is left to the
// caller so that `localdocs config` can still display a broken setup.
func Load(explicitPath string) (*Config, error) {
	cfg := Default()

	path, err := ConfigPath(explicitPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.DataDir, err = ExpandPath(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.IndexRoot, err = ExpandPath(cfg.IndexRoot)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save marshals cfg and writes it to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// Validate checks every tunable against its allowed range. It runs before
// any document or network I/O so a bad setup fails fast.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.ChunkSize < 100 || c.ChunkSize > 2000 {
		return bad("chunk_size %d out of range [100, 2000]", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap > 500 {
		return bad("chunk_overlap %d out of range [0, 500]", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return bad("chunk_overlap %d must be smaller than chunk_size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK < 1 || c.TopK > 10 {
		return bad("top_k %d out of range [1, 10]", c.TopK)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return bad("min_score %.2f out of range [0, 1]", c.MinScore)
	}
	if c.MaxTokens < 100 || c.MaxTokens > 4000 {
		return bad("max_tokens %d out of range [100, 4000]", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return bad("temperature %.2f out of range [0, 1]", c.Temperature)
	}
	if c.ModelName == "" {
		return bad("model_name must not be empty")
	}
	if c.EmbeddingModel == "" {
		return bad("embedding_model must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return bad("request_timeout %d must be positive", c.RequestTimeout)
	}
	if c.AskTimeout <= 0 {
		return bad("ask_timeout %d must be positive", c.AskTimeout)
	}
	return nil
}

// IndexDir is the directory the published index lives in.
func (c *Config) IndexDir() string {
	return filepath.Join(c.IndexRoot, "index")
}

// TmpDir is the staging area for index builds, on the same filesystem as
// IndexDir so the final rename is atomic.
func (c *Config) TmpDir() string {
	return filepath.Join(c.IndexRoot, "tmp")
}

// LockPath is the ingest lock file. It sits outside IndexDir because the
// index directory itself is replaced on every rebuild.
func (c *Config) LockPath() string {
	return filepath.Join(c.IndexRoot, "ingest.lock")
}
