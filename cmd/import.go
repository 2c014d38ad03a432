package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/localdocs/localdocs-cli/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import SRC_DIR",
	Short: "Copy documents from a directory into the documents directory",
	Long: `Import copies every supported file (.pdf, .docx, .md) under SRC_DIR into
the configured documents directory, keeping the relative layout. Files that
already exist with identical content are skipped; a name collision with
different content stores the incoming file under a numbered sibling name
and never overwrites what is there.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(_ *cobra.Command, args []string) error {
	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}

	printSection("localdocs import")
	res, err := importer.ImportDir(args[0], cfg.DataDir)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	for _, c := range res.Conflicts {
		printWarn(filepath.Base(c.Existing),
			fmt.Sprintf("differs from the incoming file — stored as %s", filepath.Base(c.Stored)))
	}
	printOK("", fmt.Sprintf("imported %d files into %s (%d identical skipped, %d unsupported)",
		res.Imported, cfg.DataDir, res.Skipped, res.Unsupported))
	if res.Imported > 0 {
		printInfo("", "run 'localdocs ingest' to index the new documents")
	}
	return nil
}
