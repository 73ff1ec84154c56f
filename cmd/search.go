package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragchat/internal/rag"
)

var searchTop int

var searchCmd = &cobra.Command{
	Use:   "search \"query\"",
	Short: "Retrieve documents without generating an answer",
	Long: `Search runs the retrieval step alone and prints the matching document
chunks with their relevance scores. Useful for checking what the index
returns before involving the model:

  ragchat search "waiting period"
  ragchat search --top 10 "deductible"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchTop, "top", 0, "number of documents to retrieve (default: index setting)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Config.RequireRetrieval(); err != nil {
		return err
	}

	return runSearchWith(ctx, a.Engine, os.Stdout, args[0], searchTop)
}

func runSearchWith(ctx context.Context, engine *rag.Engine, w io.Writer, query string, topK int) error {
	docs, err := engine.Documents(ctx, query, topK)
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents found.")
		return nil
	}

	fmt.Fprintf(w, "%d documents:\n\n", len(docs))
	fmt.Fprintln(w, rag.FormatCitations(docs))
	return nil
}
