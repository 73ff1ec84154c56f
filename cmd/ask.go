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

var askShowSources bool

var askCmd = &cobra.Command{
	Use:   "ask \"question\"",
	Short: "Ask a single question and print the answer",
	Long: `Ask runs one question through the retrieval pipeline and prints the
answer to stdout. Unlike the interactive chat there is no history; each
invocation stands alone, which makes it useful in scripts:

  ragchat ask "What is the waiting period for pre-existing conditions?"
  ragchat ask --sources "What does the plan cover?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowSources, "sources", false, "print retrieved sources after the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Config.RequireChat(); err != nil {
		return err
	}

	return runAskWith(ctx, a.Engine, os.Stdout, args[0], askShowSources)
}

// runAskWith streams the answer for one question to w. Sources are
// appended after the answer when showSources is set.
func runAskWith(ctx context.Context, engine *rag.Engine, w io.Writer, query string, showSources bool) error {
	var result *rag.Result
	for sv, err := range engine.ChatStream(ctx, query, nil) {
		if err != nil {
			fmt.Fprintln(w)
			return err
		}
		if sv.Done {
			result = sv.Result
			continue
		}
		fmt.Fprint(w, sv.Fragment)
	}
	fmt.Fprintln(w)

	if showSources && result != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		fmt.Fprintln(w, rag.FormatCitations(result.Documents))
	}
	return nil
}
