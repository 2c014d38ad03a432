package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/localdocs/localdocs-cli/internal/config"
)

var flagConfigInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Print the effective configuration after merging defaults, the YAML file
and LOCALDOCS_* environment variables. The API key is shown redacted and
never lives in the file.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter localdocs.yaml with the default settings",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&flagConfigInitForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	source := "(defaults)"
	if path, _ := config.ConfigPath(flagConfigPath); path != "" {
		source = path
	}

	fmt.Printf("Source:          %s\n", source)
	fmt.Printf("data_dir:        %s\n", cfg.DataDir)
	fmt.Printf("index_root:      %s\n", cfg.IndexRoot)
	fmt.Printf("chunk_size:      %d\n", cfg.ChunkSize)
	fmt.Printf("chunk_overlap:   %d\n", cfg.ChunkOverlap)
	fmt.Printf("top_k:           %d\n", cfg.TopK)
	fmt.Printf("min_score:       %.2f\n", cfg.MinScore)
	fmt.Printf("max_tokens:      %d\n", cfg.MaxTokens)
	fmt.Printf("temperature:     %.2f\n", cfg.Temperature)
	fmt.Printf("model_name:      %s\n", cfg.ModelName)
	fmt.Printf("embedding_model: %s\n", cfg.EmbeddingModel)
	if cfg.BaseURL != "" {
		fmt.Printf("base_url:        %s\n", cfg.BaseURL)
	}
	fmt.Printf("request_timeout: %ds\n", cfg.RequestTimeout)
	fmt.Printf("ask_timeout:     %ds\n", cfg.AskTimeout)
	fmt.Printf("api_key:         %s\n", redactKey(config.APIKey()))

	if err := cfg.Validate(); err != nil {
		fmt.Println()
		printErr("", err.Error())
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := flagConfigPath
	if path == "" {
		path = "localdocs.yaml"
	}
	if _, err := os.Stat(path); err == nil && !flagConfigInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	printOK("", fmt.Sprintf("wrote %s", abs))
	printInfo("", "set LOCALDOCS_OPENAI_API_KEY in your environment or a .env file")
	return nil
}
