package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// Environment variable names recognized by localdocs. Real environment
// variables win over ./.env, which wins over the YAML file.
const (
	EnvAPIKey         = "LOCALDOCS_OPENAI_API_KEY"
	EnvAPIKeyFallback = "OPENAI_API_KEY"
)

var dotenvOnce sync.Once

// loadDotEnv pulls ./.env into the process environment once. godotenv never
// overrides variables that are already set, which preserves precedence.
func loadDotEnv() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// APIKey resolves the OpenAI API key from the environment or ./.env.
// Returns "" when unset; callers decide whether that is fatal.
func APIKey() string {
	loadDotEnv()
	if v := os.Getenv(EnvAPIKey); v != "" {
		return v
	}
	return os.Getenv(EnvAPIKeyFallback)
}

// applyEnv overlays LOCALDOCS_* variables onto cfg.
func applyEnv(cfg *Config) error {
	loadDotEnv()

	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	var parseErr error
	setInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" || parseErr != nil {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErr = fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
			return
		}
		*dst = n
	}
	setFloat := func(key string, dst *float64) {
		v := os.Getenv(key)
		if v == "" || parseErr != nil {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErr = fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
			return
		}
		*dst = f
	}

	setStr("LOCALDOCS_DATA_DIR", &cfg.DataDir)
	setStr("LOCALDOCS_INDEX_ROOT", &cfg.IndexRoot)
	setInt("LOCALDOCS_CHUNK_SIZE", &cfg.ChunkSize)
	setInt("LOCALDOCS_CHUNK_OVERLAP", &cfg.ChunkOverlap)
	setInt("LOCALDOCS_TOP_K", &cfg.TopK)
	setFloat("LOCALDOCS_MIN_SCORE", &cfg.MinScore)
	setInt("LOCALDOCS_MAX_TOKENS", &cfg.MaxTokens)
	setFloat("LOCALDOCS_TEMPERATURE", &cfg.Temperature)
	setStr("LOCALDOCS_MODEL_NAME", &cfg.ModelName)
	setStr("LOCALDOCS_EMBEDDING_MODEL", &cfg.EmbeddingModel)
	setStr("LOCALDOCS_BASE_URL", &cfg.BaseURL)
	setInt("LOCALDOCS_REQUEST_TIMEOUT", &cfg.RequestTimeout)
	setInt("LOCALDOCS_ASK_TIMEOUT", &cfg.AskTimeout)

	return parseErr
}
