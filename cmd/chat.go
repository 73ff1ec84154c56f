package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragchat/internal/rag"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat (same as running ragchat alone)",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Config.RequireChat(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: Azure OpenAI endpoint not configured")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Please run:")
		fmt.Fprintln(os.Stderr, "  export AZURE_OPENAI_ENDPOINT=https://<resource>.openai.azure.com")
		return err
	}

	r := &repl{
		engine: a.Engine,
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		useRAG: a.SearchConfigured(),
	}
	return r.run(ctx)
}

// repl is the line-oriented chat loop. History and the last retrieved
// document set live for the duration of the session only.
type repl struct {
	engine *rag.Engine
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	history  []rag.Message
	lastDocs []rag.Document
	useRAG   bool
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintf(r.out, "ragchat %s\n", AppVersion)
	fmt.Fprintln(r.out, "Ask a question about your documents. /help for commands, Ctrl+D to exit.")
	fmt.Fprintln(r.out)

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Fprintln(r.out, "\nGoodbye!")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if r.handleCommand(input) {
				break
			}
			continue
		}

		r.turn(ctx, input)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// turn runs one question through the pipeline, printing fragments as
// they arrive. Failures are printed, not fatal; the loop continues.
func (r *repl) turn(ctx context.Context, query string) {
	var opts []rag.Option
	if !r.useRAG {
		opts = append(opts, rag.WithoutRetrieval())
	}

	var result *rag.Result
	for sv, err := range r.engine.ChatStream(ctx, query, r.history, opts...) {
		if err != nil {
			fmt.Fprintln(r.out)
			fmt.Fprintf(r.errOut, "Error: %v\n", err)
			return
		}
		if sv.Done {
			result = sv.Result
			continue
		}
		fmt.Fprint(r.out, sv.Fragment)
	}
	fmt.Fprintln(r.out)

	if result == nil {
		// Stream ended without a completion value: interrupted.
		return
	}

	r.history = append(r.history,
		rag.Message{Role: rag.RoleUser, Content: query},
		rag.Message{Role: rag.RoleAssistant, Content: result.Answer},
	)
	r.lastDocs = result.Documents

	if len(result.Documents) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintf(r.out, "Sources (%d):\n", len(result.Documents))
		fmt.Fprintln(r.out, rag.FormatCitations(result.Documents))
	}
	fmt.Fprintln(r.out)
}

// handleCommand handles slash commands, returns true if the loop should
// exit.
func (r *repl) handleCommand(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "/help":
		fmt.Fprintln(r.out, "Commands:")
		fmt.Fprintln(r.out, "  /help          Show this help")
		fmt.Fprintln(r.out, "  /sources       Show sources for the last answer")
		fmt.Fprintln(r.out, "  /rag [on|off]  Toggle document retrieval")
		fmt.Fprintln(r.out, "  /clear         Clear conversation history")
		fmt.Fprintln(r.out, "  /exit          Exit")
		fmt.Fprintln(r.out)

	case "/sources":
		fmt.Fprintln(r.out, rag.FormatCitations(r.lastDocs))
		fmt.Fprintln(r.out)

	case "/rag":
		if len(parts) > 1 {
			switch parts[1] {
			case "on":
				r.useRAG = true
			case "off":
				r.useRAG = false
			default:
				fmt.Fprintln(r.out, "Usage: /rag [on|off]")
				fmt.Fprintln(r.out)
				return false
			}
		} else {
			r.useRAG = !r.useRAG
		}
		if r.useRAG {
			fmt.Fprintln(r.out, "Retrieval enabled: answers are grounded in your documents.")
		} else {
			fmt.Fprintln(r.out, "Retrieval disabled: answers come from the model alone.")
		}
		fmt.Fprintln(r.out)

	case "/clear":
		r.history = nil
		r.lastDocs = nil
		fmt.Fprintln(r.out, "Conversation cleared.")
		fmt.Fprintln(r.out)

	case "/exit", "/quit":
		fmt.Fprintln(r.out, "Goodbye!")
		return true

	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", parts[0])
		fmt.Fprintln(r.out, "Type /help to see available commands.")
		fmt.Fprintln(r.out)
	}

	return false
}
