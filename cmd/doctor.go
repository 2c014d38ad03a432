package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localdocs/localdocs-cli/internal/config"
	"github.com/localdocs/localdocs-cli/internal/document"
	"github.com/localdocs/localdocs-cli/internal/search/index"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that localdocs is ready to ingest and answer",
	Long: `Doctor verifies the local setup: configuration values, the API key, the
documents directory and the integrity of the index. It exits non-zero when
a required check fails.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	printSection("localdocs doctor")
	failed := 0

	// ── Configuration ─────────────────────────────────────────────────────────
	fmt.Println("\n[ Configuration ]")
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		printErr("config", err.Error())
		return fmt.Errorf("doctor found 1 problem")
	}
	if path, _ := config.ConfigPath(flagConfigPath); path != "" {
		printOK("config", fmt.Sprintf("loaded from %s", path))
	} else {
		printInfo("config", "no config file, using defaults")
	}
	if err := cfg.Validate(); err != nil {
		printErr("config", err.Error())
		failed++
	} else {
		printOK("config", "all settings within range")
	}

	// ── Credentials ───────────────────────────────────────────────────────────
	fmt.Println("\n[ Credentials ]")
	if key := config.APIKey(); key == "" {
		printErr("api key", "not set — export "+config.EnvAPIKey+" or add it to .env")
		failed++
	} else {
		printOK("api key", redactKey(key))
	}

	// ── Documents ─────────────────────────────────────────────────────────────
	fmt.Println("\n[ Documents ]")
	paths, err := document.Discover(cfg.DataDir)
	switch {
	case err != nil:
		printErr("documents", err.Error())
		failed++
	case len(paths) == 0:
		printWarn("documents", fmt.Sprintf("no supported files under %s", cfg.DataDir))
	default:
		printOK("documents", fmt.Sprintf("%d supported files under %s", len(paths), cfg.DataDir))
	}

	// ── Index ─────────────────────────────────────────────────────────────────
	// Full Load, not just the manifest, so corruption surfaces here rather
	// than at question time.
	fmt.Println("\n[ Index ]")
	idx, err := index.Load(cfg.IndexDir())
	switch {
	case err == nil:
		m := idx.Manifest
		printOK("index", fmt.Sprintf("%d chunks from %d documents (model %s, dim %d)",
			m.TotalChunks, m.TotalDocuments, m.EmbeddingModel, m.Dim))
		if m.EmbeddingModel != cfg.EmbeddingModel {
			printErr("index", fmt.Sprintf("built with %q but config says %q — run 'localdocs ingest --force'",
				m.EmbeddingModel, cfg.EmbeddingModel))
			failed++
		}
	case errors.Is(err, index.ErrNotFound):
		printWarn("index", fmt.Sprintf("%v — run 'localdocs ingest'", err))
	default:
		printErr("index", fmt.Sprintf("%v — run 'localdocs ingest --force'", err))
		failed++
	}

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("doctor found %d problems", failed)
	}
	printOK("", "everything looks good")
	return nil
}
