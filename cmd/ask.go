package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/localdocs/localdocs-cli/internal/answer"
	"github.com/localdocs/localdocs-cli/internal/config"
	"github.com/localdocs/localdocs-cli/internal/search"
	"github.com/localdocs/localdocs-cli/internal/search/index"
)

var (
	flagAskInteractive bool
	flagAskJSON        bool
	flagAskTopK        int
	flagAskMinScore    float64
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question and get a cited answer from your documents",
	Long: `Ask embeds the question, retrieves the most similar chunks from the index
and has the completion model answer using only those chunks, citing them as
[Source N]. Without a question, --interactive starts a prompt loop.`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&flagAskInteractive, "interactive", "i", false, "Start an interactive question loop")
	askCmd.Flags().BoolVar(&flagAskJSON, "json", false, "Emit the answer and sources as JSON")
	askCmd.Flags().IntVar(&flagAskTopK, "top-k", 0, "Number of chunks to retrieve (default from config)")
	askCmd.Flags().Float64Var(&flagAskMinScore, "min-score", 0, "Similarity floor, 0 disables (default from config)")
	rootCmd.AddCommand(askCmd)
}

type askSession struct {
	cfg       *config.Config
	retriever *search.Retriever
	assembler *answer.Assembler
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}

	idx, err := index.Load(cfg.IndexDir())
	switch {
	case errors.Is(err, index.ErrNotFound):
		return fmt.Errorf("no index at %s — run 'localdocs ingest' first", cfg.IndexDir())
	case errors.Is(err, index.ErrCorrupt):
		return fmt.Errorf("%w\nRun 'localdocs ingest --force' to rebuild.", err)
	case err != nil:
		return err
	}

	prov, err := newProvider(cfg)
	if err != nil {
		return err
	}
	cli, err := newClient(cfg)
	if err != nil {
		return err
	}

	s := &askSession{
		cfg: cfg,
		retriever: &search.Retriever{
			Index:    idx,
			Provider: prov,
			TopK:     resolveTopK(cmd, cfg),
			MinScore: resolveMinScore(cmd, cfg),
		},
		assembler: &answer.Assembler{Client: cli},
	}

	if flagAskInteractive {
		return s.interactive()
	}
	if len(args) == 0 {
		return fmt.Errorf("no question given (pass one as an argument, or use --interactive)")
	}
	return s.ask(strings.Join(args, " "))
}

// resolveTopK honors an explicit --top-k and falls back to the config value.
func resolveTopK(cmd *cobra.Command, cfg *config.Config) int {
	if cmd.Flags().Changed("top-k") {
		return flagAskTopK
	}
	return cfg.TopK
}

// resolveMinScore honors an explicit --min-score (including 0 to disable
// the floor) and falls back to the config value.
func resolveMinScore(cmd *cobra.Command, cfg *config.Config) float64 {
	if cmd.Flags().Changed("min-score") {
		return flagAskMinScore
	}
	return cfg.MinScore
}

func (s *askSession) ask(question string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.AskTimeout)*time.Second)
	defer cancel()

	results, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return s.translateTimeout(err)
	}

	ans, err := s.assembler.Assemble(ctx, question, results)
	if errors.Is(err, answer.ErrNoRelevantContext) {
		return s.printNoContext(question)
	}
	if err != nil {
		return s.translateTimeout(err)
	}

	if flagAskJSON {
		return printJSON(ans)
	}
	fmt.Println()
	fmt.Println(ans.Answer)
	printBullet("Sources:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, src := range ans.Sources {
		loc := src.Location()
		if loc != "" {
			loc = "(" + loc + ")"
		}
		fmt.Fprintf(w, "  %d.\t[%.3f]\t%s\t%s\tchunk %d\n", src.SourceNum, src.Score, src.File, loc, src.ChunkID)
		fmt.Fprintf(w, "  \t\t%s\n", src.Preview)
	}
	return w.Flush()
}

// printNoContext reports an empty retrieval as an outcome, not a failure.
func (s *askSession) printNoContext(question string) error {
	if flagAskJSON {
		return printJSON(&answer.Answer{
			Question: question,
			Answer:   "No relevant information found in the indexed documents.",
			Model:    s.cfg.ModelName,
			Sources:  []answer.Source{},
		})
	}
	printMiss("", "no relevant information found — try rephrasing, or re-run 'localdocs ingest'")
	return nil
}

func (s *askSession) translateTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("ask timed out after %ds (ask_timeout)", s.cfg.AskTimeout)
	}
	return err
}

func (s *askSession) interactive() error {
	printSection("localdocs interactive")
	fmt.Println("Type a question, or 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n? ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := s.ask(line); err != nil {
			printErr("", err.Error())
		}
	}
	return scanner.Err()
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
