package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/ragify/internal/orchestrator"
)

var (
	askPersona string
	topK       int
	verbose    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the indexed documents",
	Long: `Ask a natural language question using RAG (Retrieval-Augmented Generation).

This command:
1. Embeds your question
2. Retrieves the most relevant chunks from the vector index
3. Builds the persona's grounded system prompt
4. Streams the answer as it is generated

Examples:
  ragify ask "What does the report conclude?"
  ragify ask "Explain the method section" --persona teacher
  ragify ask "List the key figures" --persona analyst --topk 5 --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askPersona, "persona", "researcher", "Persona that shapes the answer")
	askCmd.Flags().IntVar(&topK, "topk", 0, "Number of chunks to retrieve for context (default: rag.top_k)")
	askCmd.Flags().BoolVar(&verbose, "verbose", false, "Show the retrieved context")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if topK > 0 {
		cfg.RAG.TopK = topK
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := orchestrator.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer rt.Close()

	req := orchestrator.ChatRequest{Message: question, Persona: askPersona}

	// Print question
	fmt.Println()
	fmt.Println(headerStyle.Render("Question:"))
	fmt.Println(accentStyle.Render(question))
	fmt.Println()

	prepared, err := rt.Pipeline.Prepare(ctx, req)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	if verbose {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("→ %d chunks retrieved", len(prepared.Chunks))))
		for i, c := range prepared.Chunks {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("  [%d] %.3f %v", i+1, c.Score, c.Metadata["source"])))
		}
		fmt.Println()
	}

	fragments, err := rt.Pipeline.StreamPrepared(ctx, req, prepared)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	fmt.Println(headerStyle.Render("Answer:"))
	fmt.Println()
	for f := range fragments {
		if f.Err != nil {
			fmt.Println()
			return fmt.Errorf("%s %w", errorStyle.Render("Error:"), f.Err)
		}
		fmt.Print(answerStyle.Render(f.Content))
	}
	fmt.Println()
	fmt.Println()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s interrupted", errorStyle.Render("Error:"))
	}
	return nil
}
