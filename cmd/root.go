package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/localdocs/localdocs-cli/internal/config"
	"github.com/localdocs/localdocs-cli/internal/embeddings"
	"github.com/localdocs/localdocs-cli/internal/llm"
	"github.com/localdocs/localdocs-cli/internal/logger"
)

var (
	flagConfigPath string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "localdocs",
	Short:        "Ask questions about your local documents from the terminal",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `localdocs indexes the PDF, DOCX and Markdown files in a directory and
answers questions about them with cited sources, using OpenAI-compatible
models for embeddings and completions.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "",
		"Config file (default: ./localdocs.yaml, then ~/.localdocs/localdocs.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug logging")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadValidatedConfig resolves the effective configuration and rejects
// out-of-range settings before any I/O happens.
func loadValidatedConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newProvider(cfg *config.Config) (embeddings.Provider, error) {
	return embeddings.New(embeddings.Config{
		APIKey:  config.APIKey(),
		Model:   cfg.EmbeddingModel,
		BaseURL: cfg.BaseURL,
		Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
	})
}

func newClient(cfg *config.Config) (llm.Client, error) {
	return llm.New(llm.Config{
		APIKey:      config.APIKey(),
		Model:       cfg.ModelName,
		BaseURL:     cfg.BaseURL,
		Timeout:     time.Duration(cfg.RequestTimeout) * time.Second,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	})
}

// redactKey shows just enough of an API key to recognize it.
func redactKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}
