package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/localdocs/localdocs-cli/internal/config"
	"github.com/localdocs/localdocs-cli/internal/document"
	"github.com/localdocs/localdocs-cli/internal/ingest"
	"github.com/localdocs/localdocs-cli/internal/search/index"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the documents directory and index health",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	printSection("localdocs status")

	fmt.Println("\n[ Config ]")
	if path, _ := config.ConfigPath(flagConfigPath); path != "" {
		printOK("", fmt.Sprintf("loaded from %s", path))
	} else {
		printInfo("", "no config file — using defaults")
	}
	if err := cfg.Validate(); err != nil {
		printErr("", err.Error())
	}
	if config.APIKey() == "" {
		printWarn("", "API key not set — export LOCALDOCS_OPENAI_API_KEY")
	}

	fmt.Println("\n[ Documents ]")
	paths, err := document.Discover(cfg.DataDir)
	switch {
	case err != nil:
		printMiss("", fmt.Sprintf("%v — create it and add .pdf/.docx/.md files", err))
	case len(paths) == 0:
		printMiss("", fmt.Sprintf("no supported files under %s", cfg.DataDir))
	default:
		byExt := map[string]int{}
		for _, p := range paths {
			byExt[filepath.Ext(p)]++
		}
		printOK("", fmt.Sprintf("%d supported files under %s", len(paths), cfg.DataDir))
		exts := make([]string, 0, len(byExt))
		for ext := range byExt {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		for _, ext := range exts {
			printInfo("", fmt.Sprintf("%-6s %d", ext, byExt[ext]))
		}
	}

	fmt.Println("\n[ Index ]")
	m, statErr := index.Stats(cfg.IndexDir())
	switch {
	case statErr == nil:
		printOK("", fmt.Sprintf("%d chunks from %d documents (dim %d)", m.TotalChunks, m.TotalDocuments, m.Dim))
		printInfo("", fmt.Sprintf("model:   %s", m.EmbeddingModel))
		printInfo("", fmt.Sprintf("created: %s", m.CreatedAt))
		printInfo("", fmt.Sprintf("updated: %s", m.UpdatedAt))
		if len(paths) > 0 {
			if hash, err := ingest.CorpusFingerprint(cfg.DataDir, paths); err == nil {
				if hash == m.CorpusHash {
					printOK("", "index is up to date with the documents directory")
				} else {
					printWarn("", "documents changed since the last ingest — run 'localdocs ingest'")
				}
			}
		}
	default:
		printMiss("", fmt.Sprintf("%v — run 'localdocs ingest'", statErr))
	}

	return nil
}
