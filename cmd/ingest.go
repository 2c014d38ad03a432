package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/localdocs/localdocs-cli/internal/ingest"
	"github.com/localdocs/localdocs-cli/internal/search/index"
)

var flagIngestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scan the documents directory and (re)build the chunk index",
	Long: `Ingest walks the configured documents directory, extracts text from every
supported file (.pdf, .docx, .md), chunks it, embeds the chunks and writes
a fresh index. An unchanged corpus is detected by fingerprint and skipped;
use --force to rebuild anyway.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&flagIngestForce, "force", false, "Rebuild even if the corpus is unchanged")
	rootCmd.AddCommand(ingestCmd)
}

// confirmRebuild asks before replacing a valid index whose corpus changed.
// --force never reaches this point.
func confirmRebuild(existing index.Manifest) bool {
	printWarn("", fmt.Sprintf("documents changed since the last ingest (%d chunks, updated %s)",
		existing.TotalChunks, existing.UpdatedAt))
	fmt.Print("Rebuild the index? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func runIngest(_ *cobra.Command, _ []string) error {
	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}
	prov, err := newProvider(cfg)
	if err != nil {
		return err
	}

	printSection("localdocs ingest")
	printInfo("", fmt.Sprintf("documents: %s", cfg.DataDir))
	printInfo("", fmt.Sprintf("model:     %s", cfg.EmbeddingModel))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	sum, err := ingest.Run(ctx, prov, ingest.Options{
		DataDir:      cfg.DataDir,
		IndexDir:     cfg.IndexDir(),
		TmpDir:       cfg.TmpDir(),
		LockPath:     cfg.LockPath(),
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Force:        flagIngestForce,
		Confirm:      confirmRebuild,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	for _, sk := range sum.Skipped {
		printWarn(filepath.Base(sk.Path), fmt.Sprintf("skipped: %v", sk.Err))
	}
	if sum.Cancelled {
		printSkip("", "ingest cancelled — existing index left untouched")
		return nil
	}
	if sum.Unchanged {
		printSkip("", fmt.Sprintf("corpus unchanged — index is up to date (%d documents, %d chunks)",
			sum.Documents, sum.Chunks))
		return nil
	}
	printOK("", fmt.Sprintf("indexed %d documents into %d chunks (dim %d) in %s",
		sum.Documents, sum.Chunks, sum.Dim, sum.Duration.Round(time.Millisecond)))
	return nil
}
